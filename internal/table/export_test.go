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

import "fmt"

// Test-only helpers.

// Verify checks the structural invariants: counts agree with slot states,
// no key is stored twice and every live key is reachable by Find.
func (t *Table) Verify() error {
	var live, tombs int
	seen := make(map[int32]int, t.Live())
	for i := 0; i < Capacity; i++ {
		switch st := t.State(i); st {
		case Empty:
		case Tombstone:
			tombs++
		case Occupied:
			live++
			k := t.Key(i)
			if j, dup := seen[k]; dup {
				return fmt.Errorf("key %d stored in slots %d and %d", k, j, i)
			}
			seen[k] = i
			if found, ok := t.Find(k); !ok || found != i {
				return fmt.Errorf("key %d in slot %d is not reachable", k, i)
			}
		default:
			return fmt.Errorf("slot %d has invalid state %d", i, st)
		}
	}
	if live != t.Live() {
		return fmt.Errorf("live count is %d, %d slots are occupied", t.Live(), live)
	}
	if tombs != t.Tombstones() {
		return fmt.Errorf("tombstone count is %d, %d slots are tombstones", t.Tombstones(), tombs)
	}
	return nil
}
