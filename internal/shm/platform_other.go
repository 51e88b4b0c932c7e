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

// OpenExisting is not available on this platform.
func OpenExisting(name string) (int, error) { return -1, ErrUnsupported }

// CreateExclusive is not available on this platform.
func CreateExclusive(name string) (int, error) { return -1, ErrUnsupported }

// Resize is not available on this platform.
func Resize(fd int, size int) error { return ErrUnsupported }

// Size is not available on this platform.
func Size(fd int) (int, error) { return 0, ErrUnsupported }

// Map is not available on this platform.
func Map(fd int, size int) ([]byte, error) { return nil, ErrUnsupported }

// Unmap is not available on this platform.
func Unmap(mem []byte) error { return nil }

// Close is not available on this platform.
func Close(fd int) error { return nil }

// Unlink is not available on this platform.
func Unlink(name string) error { return ErrUnsupported }

// Linked is not available on this platform.
func Linked(fd int, name string) (bool, error) { return false, ErrUnsupported }
