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

package table

// Capacity is the fixed number of slots. It must stay a power of two.
const Capacity = 2048

const mask = Capacity - 1

// MaxLoadFactor bounds (live+tombstones)/Capacity.
const MaxLoadFactor = 0.75

// MaxEntries is the largest live+tombstone count the table admits.
const MaxEntries = Capacity * 3 / 4

// Value field: MaxValueLen payload bytes plus a NUL terminator.
const (
	ValueFieldSize = 256
	MaxValueLen    = ValueFieldSize - 1
)

// Slot layout: key(4) value(256) state(1) pad(3) position(4).
const (
	slotKeyOff   = 0
	slotValueOff = slotKeyOff + 4
	slotStateOff = slotValueOff + ValueFieldSize
	slotPosOff   = slotStateOff + 4

	// SlotSize is the width of one slot in bytes.
	SlotSize = slotPosOff + 4

	// SlotsSize is the width of the whole slot array in bytes.
	SlotsSize = Capacity * SlotSize
)

// Header layout: live(4) tombstones(4) seed(4) rehashes(4).
const (
	hdrLiveOff   = 0
	hdrTombOff   = 4
	hdrSeedOff   = 8
	hdrRehashOff = 12

	// HeaderSize is the width of the table header in bytes.
	HeaderSize = 16
)

// State is the lifecycle state of one slot.
type State uint8

const (
	// Empty slots have never held a record since the last reset.
	Empty State = iota
	// Occupied slots hold a live record.
	Occupied
	// Tombstone slots held a record that was removed. They keep probe
	// sequences of other keys intact until the next rehash.
	Tombstone
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Occupied:
		return "occupied"
	case Tombstone:
		return "tombstone"
	}
	return "invalid"
}
