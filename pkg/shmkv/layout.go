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
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/srediag/shmkv/internal/lifecycle"
	"github.com/srediag/shmkv/internal/lock"
	"github.com/srediag/shmkv/internal/table"
)

// Region layout. The first lifecycle.HeaderSize bytes hold the readiness
// flag and its barrier mutex.
const (
	magicOff      = lifecycle.HeaderSize
	disciplineOff = magicOff + 4
	lockOff       = disciplineOff + 4
	tableHdrOff   = lockOff + lock.Size
	slotsOff      = 64

	// RegionSize is the exact size of every region in bytes.
	RegionSize = slotsOff + table.SlotsSize

	layoutMagic = 0x564b4d53 // "SMKV"
)

// Table geometry.
const (
	Capacity    = table.Capacity
	MaxEntries  = table.MaxEntries
	MaxValueLen = table.MaxValueLen
)

// The table header must end before the slot array starts.
const _ = uint(slotsOff - (tableHdrOff + table.HeaderSize))

// regionViews returns the lock and table views over a mapped region.
func regionViews(kind lock.Kind, mem []byte) (lock.Discipline, *table.Table, error) {
	if len(mem) < RegionSize {
		return nil, nil, fmt.Errorf("region is %d bytes, need %d", len(mem), RegionSize)
	}
	disc, err := lock.New(kind, mem[lockOff:lockOff+lock.Size])
	if err != nil {
		return nil, nil, err
	}
	tbl := table.New(mem[tableHdrOff:tableHdrOff+table.HeaderSize], mem[slotsOff:RegionSize])
	return disc, tbl, nil
}

func newSeed() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// initRegion returns the creator's initialization hook for kind.
func initRegion(kind lock.Kind) func(mem []byte) error {
	return func(mem []byte) error {
		disc, tbl, err := regionViews(kind, mem)
		if err != nil {
			return err
		}
		seed, err := newSeed()
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(mem[magicOff:], layoutMagic)
		binary.LittleEndian.PutUint32(mem[disciplineOff:], uint32(kind))
		disc.Init()
		tbl.Init(seed)
		return nil
	}
}

// validateRegion returns the attacher's check that the region was built
// by a compatible creator.
func validateRegion(kind lock.Kind) func(mem []byte) error {
	return func(mem []byte) error {
		if m := binary.LittleEndian.Uint32(mem[magicOff:]); m != layoutMagic {
			return fmt.Errorf("%w: layout magic %#x, want %#x", ErrIncompatible, m, layoutMagic)
		}
		if k := lock.Kind(binary.LittleEndian.Uint32(mem[disciplineOff:])); k != kind {
			return fmt.Errorf("%w: region uses %s locking, want %s", ErrIncompatible, k, kind)
		}
		return nil
	}
}
