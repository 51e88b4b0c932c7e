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
	"fmt"

	"golang.org/x/sys/unix"
)

const regionPerm = 0o666

// OpenExisting opens the region called name for reading and writing.
func OpenExisting(name string) (int, error) {
	fd, err := unix.Open(RegionPath(name), unix.O_RDWR|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return -1, ErrNotFound
		}
		return -1, fmt.Errorf("open %s: %w", name, err)
	}
	return fd, nil
}

// CreateExclusive creates the region called name, failing with ErrExists if
// another process got there first. The new region has size zero.
func CreateExclusive(name string) (int, error) {
	fd, err := unix.Open(RegionPath(name), unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC|unix.O_NOFOLLOW, regionPerm)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return -1, ErrExists
		}
		return -1, fmt.Errorf("create %s: %w", name, err)
	}
	// umask must not narrow access for unrelated processes.
	if err := unix.Fchmod(fd, regionPerm); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("fchmod %s: %w", name, err)
	}
	return fd, nil
}

// Resize sets the region size in bytes.
func Resize(fd int, size int) error {
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return fmt.Errorf("ftruncate: %w", err)
	}
	return nil
}

// Size returns the current region size in bytes.
func Size(fd int) (int, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, fmt.Errorf("fstat: %w", err)
	}
	return int(st.Size), nil
}

// Map maps size bytes of the region shared and writable.
func Map(fd int, size int) ([]byte, error) {
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return mem, nil
}

// Unmap releases a mapping returned by Map.
func Unmap(mem []byte) error {
	if mem == nil {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// Close closes a region handle. Mappings stay valid after Close.
func Close(fd int) error {
	if fd < 0 {
		return nil
	}
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Unlink removes the name. Processes that still map the region keep using
// it until they unmap.
func Unlink(name string) error {
	if err := unix.Unlink(RegionPath(name)); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return ErrNotFound
		}
		return fmt.Errorf("unlink %s: %w", name, err)
	}
	return nil
}

// Linked reports whether name still refers to the region open as fd. It is
// false once the name is unlinked or reused by a newer region.
func Linked(fd int, name string) (bool, error) {
	var held, named unix.Stat_t
	if err := unix.Fstat(fd, &held); err != nil {
		return false, fmt.Errorf("fstat: %w", err)
	}
	if err := unix.Stat(RegionPath(name), &named); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return held.Dev == named.Dev && held.Ino == named.Ino, nil
}
