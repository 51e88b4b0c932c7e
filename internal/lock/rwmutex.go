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
	"github.com/srediag/shmkv/internal/shm"
)

// State word bits. The low 30 bits count active readers.
const (
	writerHeld    = 1 << 31
	writerWaiting = 1 << 30
	readerMask    = writerWaiting - 1
)

// RWMutexSize is the number of region bytes an RWMutex occupies.
const RWMutexSize = 8

// RWMutex is a reader-writer lock over two region words: a state word and
// an epoch word that every release bumps and every waiter sleeps on.
// A waiting writer blocks new readers, so writers do not starve.
type RWMutex struct {
	state *uint32
	epoch *uint32
}

// NewRWMutex returns an RWMutex over the two words starting at off in mem.
func NewRWMutex(mem []byte, off int) *RWMutex {
	return &RWMutex{
		state: shm.Word(mem, off),
		epoch: shm.Word(mem, off+4),
	}
}

// Init sets the lock to free with no waiters.
func (rw *RWMutex) Init() {
	shm.AtomicStoreUint32(rw.state, 0)
	shm.AtomicStoreUint32(rw.epoch, 0)
}

// RLock acquires the lock for reading.
func (rw *RWMutex) RLock() {
	for {
		// epoch is read before state so a release between the two reads
		// makes the wait below return at once.
		e := shm.AtomicLoadUint32(rw.epoch)
		s := shm.AtomicLoadUint32(rw.state)
		if s&(writerHeld|writerWaiting) == 0 {
			if s&readerMask == readerMask {
				panic("lock: too many readers")
			}
			if shm.AtomicCompareAndSwapUint32(rw.state, s, s+1) {
				return
			}
			continue
		}
		shm.FutexWait(rw.epoch, e)
	}
}

// RUnlock releases one read hold.
func (rw *RWMutex) RUnlock() {
	s := shm.AtomicAddUint32(rw.state, ^uint32(0))
	if s&readerMask == readerMask {
		panic("lock: runlock of unlocked rwmutex")
	}
	if s&readerMask == 0 && s&writerWaiting != 0 {
		rw.release()
	}
}

// Lock acquires the lock for writing.
func (rw *RWMutex) Lock() {
	for {
		e := shm.AtomicLoadUint32(rw.epoch)
		s := shm.AtomicLoadUint32(rw.state)
		if s&writerHeld == 0 && s&readerMask == 0 {
			if shm.AtomicCompareAndSwapUint32(rw.state, s, (s|writerHeld)&^writerWaiting) {
				return
			}
			continue
		}
		if s&writerWaiting == 0 {
			// Re-read after announcing: the last reader may already be gone.
			shm.AtomicCompareAndSwapUint32(rw.state, s, s|writerWaiting)
			continue
		}
		shm.FutexWait(rw.epoch, e)
	}
}

// Unlock releases the write hold and wakes every waiter.
func (rw *RWMutex) Unlock() {
	s := shm.AtomicAddUint32(rw.state, writerHeld)
	if s&writerHeld != 0 {
		panic("lock: unlock of unlocked rwmutex")
	}
	rw.release()
}

func (rw *RWMutex) release() {
	shm.AtomicAddUint32(rw.epoch, 1)
	shm.FutexWake(rw.epoch, shm.WakeAll)
}
