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

// Package shm contains the platform layer for named shared memory regions:
// open, exclusive create, resize, map, unmap, close and unlink, plus the
// atomic and futex helpers used on words that live inside a mapping.
package shm

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no region exists under the given name.
	ErrNotFound = errors.New("shm: region not found")
	// ErrExists is returned by CreateExclusive when the name is taken.
	ErrExists = errors.New("shm: region already exists")
	// ErrUnsupported is returned on platforms without named shared memory.
	ErrUnsupported = errors.New("shm: named shared memory not supported on this platform")
	// ErrNoSpace is returned when the shm mount cannot hold the region.
	ErrNoSpace = errors.New("shm: not enough space left on shared memory mount")
)

// maxNameLen mirrors NAME_MAX for a single path component.
const maxNameLen = 255

// DevShmDir is the tmpfs mount backing POSIX shared memory on Linux.
const DevShmDir = "/dev/shm"

// ValidName reports whether name can be used as a region name. A single
// leading slash is accepted and ignored, as shm_open(3) does.
func ValidName(name string) bool {
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." || name == ".." || len(name) > maxNameLen {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}
