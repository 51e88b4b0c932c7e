/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:build linux

package shmkv

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func testRegionName(t testing.TB, tag string) string {
	t.Helper()
	name := fmt.Sprintf("shmkv_test_%s_%s_%d", tag, strings.ReplaceAll(t.Name(), "/", "_"), os.Getpid())
	_ = Cleanup(name)
	t.Cleanup(func() { _ = Cleanup(name) })
	return name
}

func openTest(t testing.TB, name string, d Discipline) *Manager {
	t.Helper()
	m, err := Open(&Config{Name: name, Discipline: d})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

type ManagerTestSuite struct {
	suite.Suite
	discipline Discipline
	name       string
	m          *Manager
}

func (s *ManagerTestSuite) SetupTest() {
	s.name = testRegionName(s.T(), s.discipline.String())
	s.m = openTest(s.T(), s.name, s.discipline)
	s.Require().True(s.m.Creator())
	s.Require().Equal(s.discipline, s.m.Discipline())
}

func (s *ManagerTestSuite) TestScenarioA() {
	s.Require().NoError(s.m.Insert(1001, "A"))
	s.Require().NoError(s.m.Insert(1002, "B"))
	s.Require().NoError(s.m.Update(1001, "A2"))
	s.Require().NoError(s.m.Upsert(1003, "C"))
	s.Require().NoError(s.m.Upsert(1001, "A3"))

	s.Equal("A3", s.m.Lookup(1001))
	s.Equal("B", s.m.Lookup(1002))
	s.Equal("C", s.m.Lookup(1003))
	s.Equal(3, s.m.Count())
}

func (s *ManagerTestSuite) TestScenarioB() {
	s.TestScenarioA()
	s.Require().NoError(s.m.Remove(1002))

	s.False(s.m.Contains(1002))
	s.Equal(2, s.m.Count())
	s.Equal("", s.m.Lookup(1002))
	s.Equal(1, s.m.Stats().Tombstones)
}

func (s *ManagerTestSuite) TestScenarioC() {
	for k := int32(0); k < MaxEntries; k++ {
		s.Require().NoError(s.m.Insert(k, fmt.Sprint("v", k)))
	}
	s.Zero(s.m.Stats().Rehashes)

	err := s.m.Insert(MaxEntries, "one too many")
	s.ErrorIs(err, ErrSpaceExhausted)
	s.Equal(CodeSpaceExhausted, CodeOf(err))

	st := s.m.Stats()
	s.Equal(uint32(1), st.Rehashes)
	s.Equal(MaxEntries, st.Live)
	s.Zero(st.Tombstones)
	for k := int32(0); k < MaxEntries; k++ {
		s.Require().Equal(fmt.Sprint("v", k), s.m.Lookup(k), "key %d", k)
	}
	s.False(s.m.Contains(MaxEntries))
}

func (s *ManagerTestSuite) TestDuplicateInsert() {
	s.Require().NoError(s.m.Insert(7, "first"))
	err := s.m.Insert(7, "second")
	s.ErrorIs(err, ErrDuplicateKey)
	s.Equal(CodeDuplicateKey, CodeOf(err))
	s.Equal("first", s.m.Lookup(7))
	s.Equal(1, s.m.Count())
}

func (s *ManagerTestSuite) TestUpsertIsIdempotent() {
	s.Require().NoError(s.m.Upsert(5, "v1"))
	s.Require().NoError(s.m.Upsert(5, "v2"))
	s.Equal("v2", s.m.Lookup(5))
	s.Equal(1, s.m.Count())
}

func (s *ManagerTestSuite) TestValueLimits() {
	longest := strings.Repeat("x", MaxValueLen)
	s.Require().NoError(s.m.Insert(1, longest))
	s.Equal(longest, s.m.Lookup(1))

	tooLong := longest + "y"
	for _, err := range []error{
		s.m.Insert(2, tooLong),
		s.m.Update(1, tooLong),
		s.m.Upsert(1, tooLong),
	} {
		s.ErrorIs(err, ErrValueTooLong)
		s.Equal(CodeSpaceExhausted, CodeOf(err))
	}
	s.ErrorIs(s.m.Insert(3, "a\x00b"), ErrInvalidValue)
	s.Equal(longest, s.m.Lookup(1), "rejected update must not touch the record")
	s.Equal(1, s.m.Count())
}

func (s *ManagerTestSuite) TestEmptyValue() {
	s.Require().NoError(s.m.Insert(9, ""))
	s.True(s.m.Contains(9))
	s.Equal("", s.m.Lookup(9))

	s.Require().NoError(s.m.Update(9, "filled"))
	s.Require().NoError(s.m.Update(9, "f"))
	s.Equal("f", s.m.Lookup(9), "shorter value leaves no tail behind")
}

func (s *ManagerTestSuite) TestMissingKeys() {
	s.ErrorIs(s.m.Update(1, "x"), ErrNotFound)
	s.ErrorIs(s.m.Remove(1), ErrNotFound)
	s.Equal(CodeNotFound, CodeOf(s.m.Remove(1)))
	s.False(s.m.Contains(1))
	s.Equal("", s.m.Lookup(1))
}

func (s *ManagerTestSuite) TestBatchOperations() {
	for k := int32(1); k <= 5; k++ {
		s.Require().NoError(s.m.Insert(k, fmt.Sprint("init_", k)))
	}
	n := s.m.BatchUpdate(map[int32]string{
		1: "batch_1",
		3: "batch_3",
		5: strings.Repeat("z", MaxValueLen+1),
		7: "absent",
	})
	s.Equal(2, n)

	want := map[int32]string{
		1: "batch_1",
		2: "init_2",
		3: "batch_3",
		4: "init_4",
		5: "init_5",
	}
	if diff := cmp.Diff(want, s.m.BatchLookup()); diff != "" {
		s.Failf("batch lookup mismatch", "(-want +got):\n%s", diff)
	}
	s.False(s.m.Contains(7), "batch update never inserts")
}

func (s *ManagerTestSuite) TestClear() {
	for k := int32(0); k < 100; k++ {
		s.Require().NoError(s.m.Insert(k, "v"))
	}
	s.Require().NoError(s.m.Remove(3))
	seed := s.m.Stats().Seed

	s.Require().NoError(s.m.Clear())
	st := s.m.Stats()
	s.Zero(st.Live)
	s.Zero(st.Tombstones)
	s.Equal(seed, st.Seed)
	s.Empty(s.m.BatchLookup())
	s.Require().NoError(s.m.Insert(3, "again"))
	s.Equal("again", s.m.Lookup(3))
}

func (s *ManagerTestSuite) TestChurnKeepsLoadBound() {
	next := int32(0)
	for round := 0; round < 10; round++ {
		for i := 0; i < 400; i++ {
			s.Require().NoError(s.m.Insert(next, "v"))
			next++
		}
		for k := next - 400; k < next-50; k++ {
			s.Require().NoError(s.m.Remove(k))
		}
		st := s.m.Stats()
		s.Require().LessOrEqual(st.Live+st.Tombstones, MaxEntries)
		s.Require().LessOrEqual(s.m.LoadFactor(), 0.75)
	}
	s.Equal(500, s.m.Count())
	s.Positive(s.m.Stats().Rehashes)
	for k := next - 50; k < next; k++ {
		s.Require().True(s.m.Contains(k))
	}
}

func (s *ManagerTestSuite) TestStatsOutput() {
	s.Require().NoError(s.m.Insert(1, "a"))
	s.Require().NoError(s.m.Insert(2, "b"))
	st := s.m.Stats()
	s.Equal(Capacity, st.Capacity)
	s.Equal(2, st.Live)
	s.InDelta(2.0/Capacity, st.LoadFactor, 1e-9)
	s.GreaterOrEqual(st.AvgProbeDist, 1.0)
	s.GreaterOrEqual(st.MaxProbeDist, 1)

	var buf bytes.Buffer
	s.Require().NoError(s.m.PrintStats(&buf))
	out := buf.String()
	s.Contains(out, "Hash Table Statistics")
	s.Contains(out, s.name)
	s.Contains(out, "Live Records:     2")
}

func (s *ManagerTestSuite) TestSecondHandleSharesTable() {
	s.Require().NoError(s.m.Insert(1, "from first"))

	other := openTest(s.T(), s.name, s.discipline)
	s.False(other.Creator())
	s.Equal("from first", other.Lookup(1))
	s.Equal(s.m.Stats().Seed, other.Stats().Seed)

	s.Require().NoError(other.Insert(2, "from second"))
	s.Equal("from second", s.m.Lookup(2))
	s.ErrorIs(s.m.Insert(2, "dup"), ErrDuplicateKey)
}

func (s *ManagerTestSuite) TestConcurrentHandles() {
	const writers, perWriter = 4, 200
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		m := s.m
		if w%2 == 1 {
			m = openTest(s.T(), s.name, s.discipline)
		}
		wg.Add(1)
		go func(w int, m *Manager) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := int32(w*perWriter + i)
				if err := m.Insert(key, fmt.Sprint(key)); err != nil {
					s.T().Errorf("insert %d: %v", key, err)
				}
				_ = m.Lookup(key)
			}
		}(w, m)
	}
	wg.Wait()
	s.Equal(writers*perWriter, s.m.Count())
	snap := s.m.BatchLookup()
	for k, v := range snap {
		s.Equal(fmt.Sprint(k), v)
	}
}

func (s *ManagerTestSuite) TestClosedManager() {
	s.Require().NoError(s.m.Insert(1, "kept"))
	s.Require().NoError(s.m.Close())
	s.Require().NoError(s.m.Close())

	s.ErrorIs(s.m.Insert(2, "x"), ErrClosed)
	s.ErrorIs(s.m.Clear(), ErrClosed)
	s.Equal(CodeFailed, CodeOf(s.m.Remove(1)))
	s.Equal("", s.m.Lookup(1))
	s.Zero(s.m.Count())
	s.ErrorIs(s.m.PrintStats(&bytes.Buffer{}), ErrClosed)

	// the region outlives the handle
	again := openTest(s.T(), s.name, s.discipline)
	s.False(again.Creator())
	s.Equal("kept", again.Lookup(1))
}

func (s *ManagerTestSuite) TestCleanupStartsFresh() {
	s.Require().NoError(s.m.Insert(1, "old"))
	s.Require().NoError(Cleanup(s.name))
	s.ErrorIs(Cleanup(s.name), ErrNotFound)

	fresh := openTest(s.T(), s.name, s.discipline)
	s.True(fresh.Creator())
	s.False(fresh.Contains(1))
	s.Equal("old", s.m.Lookup(1), "old handle keeps its mapping")
}

func TestManagerExclusive(t *testing.T) {
	suite.Run(t, &ManagerTestSuite{discipline: Exclusive})
}

func TestManagerReaderWriter(t *testing.T) {
	suite.Run(t, &ManagerTestSuite{discipline: ReaderWriter})
}

func TestDisciplineMismatch(t *testing.T) {
	name := testRegionName(t, "mismatch")
	openTest(t, name, Exclusive)

	_, err := Open(&Config{Name: name, Discipline: ReaderWriter})
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestDisciplineEquivalence(t *testing.T) {
	ex := openTest(t, testRegionName(t, "ex"), Exclusive)
	rw := openTest(t, testRegionName(t, "rw"), ReaderWriter)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		key := int32(rng.Intn(1200))
		value := fmt.Sprint("v", rng.Intn(1000))
		var errEx, errRW error
		switch rng.Intn(6) {
		case 0, 1:
			errEx, errRW = ex.Insert(key, value), rw.Insert(key, value)
		case 2:
			errEx, errRW = ex.Update(key, value), rw.Update(key, value)
		case 3:
			errEx, errRW = ex.Upsert(key, value), rw.Upsert(key, value)
		case 4:
			errEx, errRW = ex.Remove(key), rw.Remove(key)
		case 5:
			batch := map[int32]string{key: value, key + 1: value}
			require.Equal(t, ex.BatchUpdate(batch), rw.BatchUpdate(batch))
		}
		require.Equal(t, CodeOf(errEx), CodeOf(errRW), "step %d", i)
	}

	if diff := cmp.Diff(ex.BatchLookup(), rw.BatchLookup()); diff != "" {
		t.Fatalf("final contents differ (-exclusive +rwlock):\n%s", diff)
	}
	assert.Equal(t, ex.Count(), rw.Count())
}

func TestReadersShareTheLock(t *testing.T) {
	m := openTest(t, testRegionName(t, "rw"), ReaderWriter)
	require.NoError(t, m.Insert(1, "v"))

	unlock := m.disc.RLock()
	done := make(chan struct{})
	go func() {
		_ = m.Lookup(1)
		_ = m.Contains(1)
		_ = m.Count()
		_ = m.BatchLookup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reads blocked behind another reader")
	}
	unlock()
}

func TestExclusiveSerializesReads(t *testing.T) {
	m := openTest(t, testRegionName(t, "ex"), Exclusive)
	require.NoError(t, m.Insert(1, "v"))

	unlock := m.disc.RLock()
	done := make(chan string)
	go func() { done <- m.Lookup(1) }()
	select {
	case <-done:
		t.Fatal("read ran while the exclusive lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case v := <-done:
		assert.Equal(t, "v", v)
	case <-time.After(5 * time.Second):
		t.Fatal("read never ran")
	}
}

func TestOpenDefaults(t *testing.T) {
	name := testRegionName(t, "defaults")
	m, err := Open(&Config{Name: name})
	require.Error(t, err, "zero discipline is rejected")
	assert.Nil(t, m)

	_, err = Open(&Config{Name: "bad/name", Discipline: Exclusive})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrIncompatible))
}
