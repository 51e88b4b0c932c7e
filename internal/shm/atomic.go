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

package shm

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Word returns the 32-bit word at byte offset off inside mem. The offset
// must be 4-byte aligned relative to an aligned base; mmap and large heap
// allocations both satisfy that.
func Word(mem []byte, off int) *uint32 {
	if off < 0 || off+4 > len(mem) {
		panic(fmt.Sprintf("shm: word offset %d out of range [0,%d)", off, len(mem)))
	}
	p := unsafe.Pointer(&mem[off])
	if uintptr(p)%4 != 0 {
		panic(fmt.Sprintf("shm: word offset %d is not 4-byte aligned", off))
	}
	return (*uint32)(p)
}

// AtomicLoadUint32 loads a uint32 from shared memory. sync/atomic is
// sequentially consistent, which covers the acquire side of a publish.
func AtomicLoadUint32(addr *uint32) uint32 {
	return atomic.LoadUint32(addr)
}

// AtomicStoreUint32 stores a uint32 to shared memory. Every write made by
// this process before the store is visible to any process that observes it.
func AtomicStoreUint32(addr *uint32, val uint32) {
	atomic.StoreUint32(addr, val)
}

// AtomicCompareAndSwapUint32 atomically compares and swaps a uint32 in
// shared memory.
func AtomicCompareAndSwapUint32(addr *uint32, old, new uint32) bool {
	return atomic.CompareAndSwapUint32(addr, old, new)
}

// AtomicSwapUint32 atomically stores val and returns the previous value.
func AtomicSwapUint32(addr *uint32, val uint32) uint32 {
	return atomic.SwapUint32(addr, val)
}

// AtomicAddUint32 atomically adds delta and returns the new value. Pass
// ^uint32(n-1) to subtract n.
func AtomicAddUint32(addr *uint32, delta uint32) uint32 {
	return atomic.AddUint32(addr, delta)
}
