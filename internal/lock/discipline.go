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

package lock

import (
	"fmt"
	"strings"
)

// Kind names a locking discipline. The zero value is invalid so an
// uninitialized region never matches a real discipline.
type Kind uint32

const (
	// Exclusive serializes every operation, reads included.
	Exclusive Kind = iota + 1
	// ReaderWriter lets reads run concurrently and makes writes exclusive.
	ReaderWriter
)

func (k Kind) String() string {
	switch k {
	case Exclusive:
		return "exclusive"
	case ReaderWriter:
		return "rwlock"
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Valid reports whether k is a known discipline.
func (k Kind) Valid() bool {
	return k == Exclusive || k == ReaderWriter
}

// ParseKind parses the names printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclusive", "mutex":
		return Exclusive, nil
	case "rwlock", "rw", "readerwriter":
		return ReaderWriter, nil
	}
	return 0, fmt.Errorf("unknown lock discipline %q", s)
}

// Size is the number of region bytes reserved for discipline state.
const Size = 16

// Discipline guards table access. Both methods block until the lock is
// held and return the function that releases it:
//
//	defer d.Lock()()
type Discipline interface {
	Kind() Kind
	// Init puts the lock words into their free state. Only the creator of
	// the region calls it, before publishing readiness.
	Init()
	// RLock acquires the lock for an operation that only reads the table.
	RLock() (unlock func())
	// Lock acquires the lock for an operation that mutates the table.
	Lock() (unlock func())
}

// New returns the discipline kind over the first Size bytes of mem.
func New(kind Kind, mem []byte) (Discipline, error) {
	if len(mem) < Size {
		return nil, fmt.Errorf("lock area is %d bytes, need %d", len(mem), Size)
	}
	switch kind {
	case Exclusive:
		return &exclusive{mu: NewMutex(mem, 0)}, nil
	case ReaderWriter:
		return &readerWriter{rw: NewRWMutex(mem, 0)}, nil
	}
	return nil, fmt.Errorf("unsupported lock discipline %s", kind)
}

type exclusive struct {
	mu *Mutex
}

func (d *exclusive) Kind() Kind { return Exclusive }
func (d *exclusive) Init()      { d.mu.Init() }

func (d *exclusive) RLock() func() {
	d.mu.Lock()
	return d.mu.Unlock
}

func (d *exclusive) Lock() func() {
	d.mu.Lock()
	return d.mu.Unlock
}

type readerWriter struct {
	rw *RWMutex
}

func (d *readerWriter) Kind() Kind { return ReaderWriter }
func (d *readerWriter) Init()      { d.rw.Init() }

func (d *readerWriter) RLock() func() {
	d.rw.RLock()
	return d.rw.RUnlock
}

func (d *readerWriter) Lock() func() {
	d.rw.Lock()
	return d.rw.Unlock
}
