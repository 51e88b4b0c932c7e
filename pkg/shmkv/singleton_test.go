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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceIsShared(t *testing.T) {
	name := testRegionName(t, "singleton")
	cfg := &Config{Name: name, Discipline: ReaderWriter}

	const callers = 8
	got := make([]*Manager, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := Instance(cfg)
			assert.NoError(t, err)
			got[i] = m
		}(i)
	}
	wg.Wait()
	for _, m := range got {
		require.Same(t, got[0], m)
	}

	_, err := Instance(&Config{Name: name, Discipline: Exclusive})
	assert.ErrorIs(t, err, ErrIncompatible)

	require.NoError(t, got[0].Close())
	again, err := Instance(cfg)
	require.NoError(t, err)
	assert.NotSame(t, got[0], again, "a closed instance is replaced")
	require.NoError(t, Shutdown())
	assert.ErrorIs(t, again.Insert(1, "x"), ErrClosed)
}

func TestInstanceRetriesAfterFailure(t *testing.T) {
	name := testRegionName(t, "singleton")
	m, err := Open(&Config{Name: name, Discipline: Exclusive})
	require.NoError(t, err)
	defer m.Close()

	_, err = Instance(&Config{Name: name, Discipline: ReaderWriter})
	require.ErrorIs(t, err, ErrIncompatible)
	assert.False(t, instances.Has(name), "failed opens are not cached")
}

func TestShutdownDuringInstance(t *testing.T) {
	name := testRegionName(t, "singleton")
	cfg := &Config{Name: name, Discipline: Exclusive}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			if m, err := Instance(cfg); err == nil {
				_ = m.Upsert(1, "x")
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, Shutdown())
		}()
	}
	close(start)
	wg.Wait()

	require.NoError(t, Shutdown())
	assert.Zero(t, instances.Count(), "every shared instance is closed and forgotten")
}
