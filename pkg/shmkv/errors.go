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

package shmkv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key (or, from Cleanup, a region) does
	// not exist.
	ErrNotFound = errors.New("shmkv: not found")
	// ErrDuplicateKey is returned by Insert when the key is already live.
	ErrDuplicateKey = errors.New("shmkv: duplicate key")
	// ErrSpaceExhausted is returned when the table cannot take another
	// record even after a rehash.
	ErrSpaceExhausted = errors.New("shmkv: space exhausted")
	// ErrValueTooLong is returned for values over MaxValueLen bytes.
	ErrValueTooLong = errors.New("shmkv: value too long")
	// ErrInvalidValue is returned for values containing a NUL byte, which
	// would be cut short by the NUL-terminated value field.
	ErrInvalidValue = errors.New("shmkv: value contains NUL byte")
	// ErrIncompatible is returned by Open when the existing region was
	// created with a different layout, size or lock discipline.
	ErrIncompatible = errors.New("shmkv: incompatible region")
	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("shmkv: manager closed")
)

// Code is the numeric result of an operation.
type Code int

const (
	CodeOK             Code = 0
	CodeNotFound       Code = -1
	CodeSpaceExhausted Code = -2
	CodeDuplicateKey   Code = -3
	// CodeFailed covers closed managers and environment failures.
	CodeFailed Code = -4
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNotFound:
		return "not_found"
	case CodeSpaceExhausted:
		return "space_exhausted"
	case CodeDuplicateKey:
		return "duplicate_key"
	case CodeFailed:
		return "failed"
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// CodeOf maps err to its result code. Rejected values share
// CodeSpaceExhausted, the code the value checks have always reported.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateKey):
		return CodeDuplicateKey
	case errors.Is(err, ErrSpaceExhausted),
		errors.Is(err, ErrValueTooLong),
		errors.Is(err, ErrInvalidValue):
		return CodeSpaceExhausted
	}
	return CodeFailed
}
