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

// Package shmkv is a key/value store shared by unrelated processes through
// a named memory region. Keys are int32, values are strings of at most
// MaxValueLen bytes, and at most MaxEntries records are live at once.
//
// Every process that opens the same name sees the same table. The first
// one creates and initializes the region; the others wait until it is
// ready. The region outlives the processes using it until Cleanup.
package shmkv

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/srediag/shmkv/api"
	"github.com/srediag/shmkv/internal/lifecycle"
	"github.com/srediag/shmkv/internal/lock"
	"github.com/srediag/shmkv/internal/logger"
	"github.com/srediag/shmkv/internal/shm"
	"github.com/srediag/shmkv/internal/table"
)

var log = logger.New("shmkv")

var _ api.Manager = (*Manager)(nil)

// Manager is one process's handle on a region. It is safe for concurrent
// use by multiple goroutines.
type Manager struct {
	cfg     Config
	seg     *lifecycle.Segment
	disc    lock.Discipline
	tbl     *table.Table
	metrics *collector

	// life keeps the mapping alive while operations run.
	life   sync.RWMutex
	closed bool
}

// Open attaches to the region named in cfg, creating it if needed. A nil
// cfg means DefaultConfig. An empty name selects DefaultName.
func Open(cfg *Config) (*Manager, error) {
	c := *DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.Name == "" {
		c.Name = DefaultName(c.Discipline)
	}
	if c.PollInterval == 0 {
		c.PollInterval = lifecycle.DefaultPollInterval
	}
	if err := VerifyConfig(&c); err != nil {
		return nil, err
	}

	seg, err := lifecycle.AttachOrCreate(lifecycle.Options{
		Name:         c.Name,
		Size:         RegionSize,
		Init:         initRegion(c.Discipline),
		Validate:     validateRegion(c.Discipline),
		PollInterval: c.PollInterval,
	})
	if err != nil {
		if errors.Is(err, lifecycle.ErrIncompatible) && !errors.Is(err, ErrIncompatible) {
			err = fmt.Errorf("%w: %v", ErrIncompatible, err)
		}
		return nil, fmt.Errorf("open region %s: %w", c.Name, err)
	}
	disc, tbl, err := regionViews(c.Discipline, seg.Mem())
	if err != nil {
		_ = seg.Detach()
		return nil, err
	}

	m := &Manager{cfg: c, seg: seg, disc: disc, tbl: tbl}
	m.metrics = newCollector(m)
	if c.Registerer != nil {
		if err := c.Registerer.Register(m.metrics); err != nil {
			log.Warnf("region %s: metrics not registered: %v", c.Name, err)
			m.cfg.Registerer = nil
		}
	}
	log.Infof("opened region %s with %s locking (creator=%t)", c.Name, c.Discipline, seg.Creator())
	return m, nil
}

// Name returns the region name.
func (m *Manager) Name() string { return m.cfg.Name }

// Discipline returns the lock discipline in use.
func (m *Manager) Discipline() Discipline { return m.cfg.Discipline }

// Creator reports whether this process created the region.
func (m *Manager) Creator() bool { return m.seg.Creator() }

// read runs fn under the shared side of the discipline.
func (m *Manager) read(fn func(t *table.Table)) error {
	m.life.RLock()
	defer m.life.RUnlock()
	if m.closed {
		return ErrClosed
	}
	defer m.disc.RLock()()
	fn(m.tbl)
	return nil
}

// write runs fn under the exclusive side of the discipline.
func (m *Manager) write(fn func(t *table.Table) error) error {
	m.life.RLock()
	defer m.life.RUnlock()
	if m.closed {
		return ErrClosed
	}
	defer m.disc.Lock()()
	return fn(m.tbl)
}

func checkValue(value string) error {
	if len(value) > MaxValueLen {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrValueTooLong, len(value), MaxValueLen)
	}
	if strings.IndexByte(value, 0) >= 0 {
		return ErrInvalidValue
	}
	return nil
}

// Insert adds key with value. It fails with ErrDuplicateKey if key is
// live and with ErrSpaceExhausted if the table is full even after a
// rehash.
//
// The load bound is enforced before the write, not after it: the insert
// that would take live plus tombstoned records past MaxEntries rehashes
// first, and if the table still holds MaxEntries live records the insert
// is refused. A table therefore never holds more than MaxEntries records,
// and the (MaxEntries+1)th distinct key fails with ErrSpaceExhausted
// rather than being stored above three-quarters occupancy.
func (m *Manager) Insert(key int32, value string) (err error) {
	defer m.metrics.observe(opInsert, &err)
	if err = checkValue(value); err != nil {
		return err
	}
	return m.write(func(t *table.Table) error {
		return m.insertLocked(t, key, value)
	})
}

func (m *Manager) insertLocked(t *table.Table, key int32, value string) error {
	i, outcome := t.FindInsertionPoint(key)
	if outcome == table.Present {
		return ErrDuplicateKey
	}
	if t.NeedsRehash() {
		if err := m.rehashLocked(t); err != nil {
			return err
		}
		i, outcome = t.FindInsertionPoint(key)
	}
	if outcome == table.Full || !t.HasRoom() {
		return fmt.Errorf("%w: %d live records", ErrSpaceExhausted, t.Live())
	}
	t.Put(i, key, value)
	return nil
}

func (m *Manager) rehashLocked(t *table.Table) error {
	live, tombs := t.Live(), t.Tombstones()
	if err := t.Rehash(); err != nil {
		log.Errorf("region %s: rehash failed: %v", m.cfg.Name, err)
		return fmt.Errorf("%w: %v", ErrSpaceExhausted, err)
	}
	log.Infof("region %s: rehashed %d live records, dropped %d tombstones", m.cfg.Name, live, tombs)
	return nil
}

// Update replaces the value of a live key. It fails with ErrNotFound if
// key is absent.
func (m *Manager) Update(key int32, value string) (err error) {
	defer m.metrics.observe(opUpdate, &err)
	if err = checkValue(value); err != nil {
		return err
	}
	return m.write(func(t *table.Table) error {
		i, ok := t.Find(key)
		if !ok {
			return ErrNotFound
		}
		t.SetValue(i, value)
		return nil
	})
}

// Upsert updates key if it is live and inserts it otherwise.
func (m *Manager) Upsert(key int32, value string) (err error) {
	defer m.metrics.observe(opUpsert, &err)
	if err = checkValue(value); err != nil {
		return err
	}
	return m.write(func(t *table.Table) error {
		if i, ok := t.Find(key); ok {
			t.SetValue(i, value)
			return nil
		}
		return m.insertLocked(t, key, value)
	})
}

// Lookup returns the value of key, or "" when key is absent. A stored
// empty value and a miss look the same; use Contains to tell them apart.
func (m *Manager) Lookup(key int32) string {
	var value string
	var ok bool
	err := m.read(func(t *table.Table) {
		var i int
		if i, ok = t.Find(key); ok {
			value = t.Value(i)
		}
	})
	if err == nil && !ok {
		err = ErrNotFound
	}
	m.metrics.observe(opLookup, &err)
	return value
}

// Remove deletes key. It fails with ErrNotFound if key is absent.
func (m *Manager) Remove(key int32) (err error) {
	defer m.metrics.observe(opRemove, &err)
	return m.write(func(t *table.Table) error {
		i, ok := t.Find(key)
		if !ok {
			return ErrNotFound
		}
		t.Remove(i)
		return nil
	})
}

// Contains reports whether key is live.
func (m *Manager) Contains(key int32) bool {
	var ok bool
	_ = m.read(func(t *table.Table) {
		_, ok = t.Find(key)
	})
	return ok
}

// BatchUpdate replaces the values of the live keys in entries under one
// lock acquisition. Absent keys and invalid values are skipped. It
// returns the number of records updated.
func (m *Manager) BatchUpdate(entries map[int32]string) int {
	var n int
	err := m.write(func(t *table.Table) error {
		for key, value := range entries {
			if checkValue(value) != nil {
				continue
			}
			if i, ok := t.Find(key); ok {
				t.SetValue(i, value)
				n++
			}
		}
		return nil
	})
	m.metrics.observe(opBatchUpdate, &err)
	return n
}

// BatchLookup returns a snapshot of every live record.
func (m *Manager) BatchLookup() map[int32]string {
	var out map[int32]string
	err := m.read(func(t *table.Table) {
		out = t.Snapshot()
	})
	m.metrics.observe(opBatchLookup, &err)
	if out == nil {
		out = map[int32]string{}
	}
	return out
}

// Clear removes every record. The seed is kept.
func (m *Manager) Clear() (err error) {
	defer m.metrics.observe(opClear, &err)
	return m.write(func(t *table.Table) error {
		t.Clear()
		return nil
	})
}

// Count returns the number of live records.
func (m *Manager) Count() int {
	var n int
	_ = m.read(func(t *table.Table) { n = t.Live() })
	return n
}

// LoadFactor returns (live+tombstones)/Capacity.
func (m *Manager) LoadFactor() float64 {
	var lf float64
	_ = m.read(func(t *table.Table) { lf = t.LoadFactor() })
	return lf
}

// Close detaches from the region and unregisters the collector. The
// region itself stays; see Cleanup. Closing twice is a no-op.
func (m *Manager) Close() error {
	m.life.Lock()
	if m.closed {
		m.life.Unlock()
		return nil
	}
	m.closed = true
	err := m.seg.Detach()
	m.life.Unlock()

	if m.cfg.Registerer != nil {
		m.cfg.Registerer.Unregister(m.metrics)
	}
	forget(m)
	log.Debugf("closed region %s", m.cfg.Name)
	return err
}

// Cleanup removes the region called name. Processes still attached keep
// their mapping; the next Open creates a fresh region. It returns
// ErrNotFound when no region has that name.
func Cleanup(name string) error {
	err := lifecycle.Cleanup(name)
	if err != nil && errors.Is(err, shm.ErrNotFound) {
		return fmt.Errorf("%w: region %s", ErrNotFound, name)
	}
	return err
}

// PrintStats writes a human-readable summary of the table to w.
func (m *Manager) PrintStats(w io.Writer) error {
	st, err := m.stats()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, st.String())
	return err
}
