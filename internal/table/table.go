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

// Package table implements the fixed-capacity open-addressing hash table
// that lives inside a shared region. It uses double hashing for collision
// resolution and tombstones for deletion.
//
// The table is a view over caller-owned bytes and holds no pointers into
// them beyond the two slices, so the same bytes can be mapped at different
// addresses in different processes. Nothing here locks: every method
// assumes the caller already holds the lock appropriate for the access.
package table

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrFull is returned by Rehash when a record cannot be reinserted.
var ErrFull = errors.New("table: no free slot")

// Outcome classifies the result of FindInsertionPoint.
type Outcome int

const (
	// Vacant means the returned slot is Empty or Tombstone and may take the key.
	Vacant Outcome = iota
	// Present means the key already occupies the returned slot.
	Present
	// Full means the walk visited every slot without finding room.
	Full
)

func (o Outcome) String() string {
	switch o {
	case Vacant:
		return "vacant"
	case Present:
		return "present"
	case Full:
		return "full"
	}
	return "invalid"
}

// Record is a key/value pair copied out of the table.
type Record struct {
	Key   int32
	Value string
}

// Table is a view over a table header and slot array.
type Table struct {
	hdr   []byte
	slots []byte
}

// New returns a table over hdr (HeaderSize bytes) and slots (SlotsSize
// bytes). The bytes are used as they are; call Init on fresh memory.
func New(hdr, slots []byte) *Table {
	if len(hdr) < HeaderSize {
		panic(fmt.Sprintf("table: header is %d bytes, need %d", len(hdr), HeaderSize))
	}
	if len(slots) < SlotsSize {
		panic(fmt.Sprintf("table: slot array is %d bytes, need %d", len(slots), SlotsSize))
	}
	return &Table{hdr: hdr[:HeaderSize], slots: slots[:SlotsSize]}
}

// Init resets every slot to Empty, both counts to zero and fixes seed for
// the life of the table.
func (t *Table) Init(seed uint32) {
	clear(t.slots)
	clear(t.hdr)
	t.putHdr(hdrSeedOff, seed)
}

func (t *Table) hdrWord(off int) uint32 {
	return binary.LittleEndian.Uint32(t.hdr[off:])
}

func (t *Table) putHdr(off int, v uint32) {
	binary.LittleEndian.PutUint32(t.hdr[off:], v)
}

// Seed returns the hashing seed chosen at creation.
func (t *Table) Seed() uint32 { return t.hdrWord(hdrSeedOff) }

// Live returns the number of Occupied slots.
func (t *Table) Live() int { return int(t.hdrWord(hdrLiveOff)) }

// Tombstones returns the number of Tombstone slots.
func (t *Table) Tombstones() int { return int(t.hdrWord(hdrTombOff)) }

// Rehashes returns how many times the table has been rehashed.
func (t *Table) Rehashes() uint32 { return t.hdrWord(hdrRehashOff) }

// LoadFactor returns (live+tombstones)/Capacity.
func (t *Table) LoadFactor() float64 {
	return float64(t.Live()+t.Tombstones()) / Capacity
}

func (t *Table) slot(i int) []byte {
	off := i * SlotSize
	return t.slots[off : off+SlotSize]
}

// State returns the state of slot i.
func (t *Table) State(i int) State {
	return State(t.slot(i)[slotStateOff])
}

// Key returns the key stored in slot i.
func (t *Table) Key(i int) int32 {
	return int32(binary.LittleEndian.Uint32(t.slot(i)[slotKeyOff:]))
}

// Value returns the value stored in slot i.
func (t *Table) Value(i int) string {
	field := t.slot(i)[slotValueOff : slotValueOff+ValueFieldSize]
	if n := bytes.IndexByte(field, 0); n >= 0 {
		field = field[:n]
	}
	return string(field)
}

// position returns the ideal slot cached in slot i when it was written.
func (t *Table) position(i int) uint32 {
	return binary.LittleEndian.Uint32(t.slot(i)[slotPosOff:])
}

// Position returns the ideal slot of key under this table's seed.
func (t *Table) Position(key int32) uint32 { return Position(key, t.Seed()) }

// Stride returns the probe stride of key under this table's seed.
func (t *Table) Stride(key int32) uint32 { return Stride(key, t.Seed()) }

// Find walks the probe sequence of key. It stops at the first Empty slot
// (miss) or the Occupied slot holding key (hit).
func (t *Table) Find(key int32) (int, bool) {
	seed := t.Seed()
	start, stride := Position(key, seed), Stride(key, seed)
	for step := uint32(0); step < Capacity; step++ {
		i := int(Probe(start, step, stride))
		switch t.State(i) {
		case Empty:
			return -1, false
		case Occupied:
			if t.Key(i) == key {
				return i, true
			}
		}
	}
	return -1, false
}

// FindInsertionPoint walks the probe sequence of key looking for room. The
// first Tombstone on the way is preferred over the terminating Empty slot,
// which recycles dead slots without lengthening later walks. A walk that
// meets key itself reports Present.
func (t *Table) FindInsertionPoint(key int32) (int, Outcome) {
	seed := t.Seed()
	start, stride := Position(key, seed), Stride(key, seed)
	firstTomb := -1
	for step := uint32(0); step < Capacity; step++ {
		i := int(Probe(start, step, stride))
		switch t.State(i) {
		case Empty:
			if firstTomb >= 0 {
				return firstTomb, Vacant
			}
			return i, Vacant
		case Tombstone:
			if firstTomb < 0 {
				firstTomb = i
			}
		case Occupied:
			if t.Key(i) == key {
				return i, Present
			}
		}
	}
	if firstTomb >= 0 {
		return firstTomb, Vacant
	}
	return -1, Full
}

// NeedsRehash reports whether one more record would push
// live+tombstones past MaxEntries.
func (t *Table) NeedsRehash() bool {
	return t.Live()+t.Tombstones()+1 > MaxEntries
}

// HasRoom reports whether one more live record fits under MaxEntries.
func (t *Table) HasRoom() bool {
	return t.Live()+t.Tombstones()+1 <= MaxEntries
}

// Put writes key and value into slot i, which must be Vacant for key.
func (t *Table) Put(i int, key int32, value string) {
	s := t.slot(i)
	switch State(s[slotStateOff]) {
	case Occupied:
		panic(fmt.Sprintf("table: put into occupied slot %d", i))
	case Tombstone:
		t.putHdr(hdrTombOff, t.hdrWord(hdrTombOff)-1)
	}
	binary.LittleEndian.PutUint32(s[slotKeyOff:], uint32(key))
	t.writeValue(s, value)
	binary.LittleEndian.PutUint32(s[slotPosOff:], t.Position(key))
	s[slotStateOff] = byte(Occupied)
	t.putHdr(hdrLiveOff, t.hdrWord(hdrLiveOff)+1)
}

// SetValue overwrites the value of the Occupied slot i.
func (t *Table) SetValue(i int, value string) {
	t.writeValue(t.slot(i), value)
}

func (t *Table) writeValue(s []byte, value string) {
	if len(value) > MaxValueLen {
		panic(fmt.Sprintf("table: value of %d bytes exceeds %d", len(value), MaxValueLen))
	}
	field := s[slotValueOff : slotValueOff+ValueFieldSize]
	n := copy(field, value)
	clear(field[n:])
}

// Remove turns the Occupied slot i into a Tombstone.
func (t *Table) Remove(i int) {
	s := t.slot(i)
	if State(s[slotStateOff]) != Occupied {
		panic(fmt.Sprintf("table: remove of %s slot %d", State(s[slotStateOff]), i))
	}
	s[slotStateOff] = byte(Tombstone)
	t.putHdr(hdrLiveOff, t.hdrWord(hdrLiveOff)-1)
	t.putHdr(hdrTombOff, t.hdrWord(hdrTombOff)+1)
}

// Clear resets every slot to Empty and both counts to zero. The seed and
// the rehash counter are kept.
func (t *Table) Clear() {
	for i := 0; i < Capacity; i++ {
		t.slot(i)[slotStateOff] = byte(Empty)
	}
	t.putHdr(hdrLiveOff, 0)
	t.putHdr(hdrTombOff, 0)
}

// Records copies every Occupied record out of the table in slot order.
func (t *Table) Records() []Record {
	out := make([]Record, 0, t.Live())
	for i := 0; i < Capacity; i++ {
		if t.State(i) == Occupied {
			out = append(out, Record{Key: t.Key(i), Value: t.Value(i)})
		}
	}
	return out
}

// Snapshot returns every Occupied key and its value.
func (t *Table) Snapshot() map[int32]string {
	out := make(map[int32]string, t.Live())
	for i := 0; i < Capacity; i++ {
		if t.State(i) == Occupied {
			out[t.Key(i)] = t.Value(i)
		}
	}
	return out
}

// Rehash rebuilds the table in place: every live record is copied out, all
// slots are reset and the records are reinserted under the unchanged seed.
// Tombstones disappear; only positions are recomputed.
func (t *Table) Rehash() error {
	records := t.Records()
	t.Clear()
	for _, r := range records {
		i, outcome := t.FindInsertionPoint(r.Key)
		if outcome != Vacant {
			return fmt.Errorf("rehash key %d: %w", r.Key, ErrFull)
		}
		t.Put(i, r.Key, r.Value)
	}
	t.putHdr(hdrRehashOff, t.hdrWord(hdrRehashOff)+1)
	return nil
}
