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

package shm

import (
	"errors"
	"math"
	"unsafe"

	"golang.org/x/sys/unix"
)

// No FUTEX_PRIVATE_FLAG: waiters in other processes must meet on the same
// kernel wait queue through the shared page.
const (
	futexWaitOp = 0 // FUTEX_WAIT
	futexWakeOp = 1 // FUTEX_WAKE
)

// FutexWait blocks while *addr == val or until woken. Spurious returns are
// allowed; callers re-check their condition in a loop.
func FutexWait(addr *uint32, val uint32) {
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWaitOp, uintptr(val), 0, 0, 0)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
	default:
		panic("shm: futex wait: " + errno.Error())
	}
}

// FutexWake wakes up to n waiters blocked on addr and returns how many
// were woken.
func FutexWake(addr *uint32, n int) int {
	if n <= 0 {
		return 0
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	woken, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWakeOp, uintptr(n), 0, 0, 0)
	if errno != 0 && !errors.Is(errno, unix.EINTR) {
		panic("shm: futex wake: " + errno.Error())
	}
	return int(woken)
}

// WakeAll is the n argument that wakes every waiter.
const WakeAll = math.MaxInt32
