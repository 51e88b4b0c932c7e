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

// Package lock provides mutual exclusion primitives whose entire state is
// a few 32-bit words inside a shared region, so that every process mapping
// the region contends on the same lock. They block in the kernel through
// futexes on Linux and never allocate.
package lock

import (
	"github.com/srediag/shmkv/internal/shm"
)

const (
	unlocked  = 0
	locked    = 1 // held, no waiters
	contended = 2 // held, waiters may be sleeping
)

// MutexSize is the number of region bytes a Mutex occupies.
const MutexSize = 4

// Mutex is an exclusive lock over one region word.
type Mutex struct {
	state *uint32
}

// NewMutex returns a Mutex over the word at off in mem. It does not touch
// the word; the process that creates the region calls Init exactly once.
func NewMutex(mem []byte, off int) *Mutex {
	return &Mutex{state: shm.Word(mem, off)}
}

// Init sets the mutex to unlocked.
func (m *Mutex) Init() {
	shm.AtomicStoreUint32(m.state, unlocked)
}

// Lock acquires the mutex, sleeping while another holder has it.
func (m *Mutex) Lock() {
	if shm.AtomicCompareAndSwapUint32(m.state, unlocked, locked) {
		return
	}
	// Mark contended before sleeping so the holder knows to wake someone.
	for shm.AtomicSwapUint32(m.state, contended) != unlocked {
		shm.FutexWait(m.state, contended)
	}
}

// Unlock releases the mutex. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	switch shm.AtomicSwapUint32(m.state, unlocked) {
	case unlocked:
		panic("lock: unlock of unlocked mutex")
	case contended:
		shm.FutexWake(m.state, 1)
	}
}
