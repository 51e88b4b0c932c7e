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

//go:build !linux

package shm

import (
	"math"
	"time"
)

// FutexWait sleeps briefly; callers spin on their condition.
func FutexWait(addr *uint32, val uint32) {
	if AtomicLoadUint32(addr) == val {
		time.Sleep(50 * time.Microsecond)
	}
}

// FutexWake is a no-op without kernel wait queues.
func FutexWake(addr *uint32, n int) int { return 0 }

// WakeAll is the n argument that wakes every waiter.
const WakeAll = math.MaxInt32
