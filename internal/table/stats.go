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

// Stats is a diagnostic summary of the table.
type Stats struct {
	Capacity     int
	Live         int
	Tombstones   int
	LoadFactor   float64
	Seed         uint32
	Rehashes     uint32
	AvgProbeDist float64
	MaxProbeDist int
}

// Stats computes the summary. Probe distance counts the slots a lookup
// visits to reach a record, so a record in its ideal slot has distance 1.
func (t *Table) Stats() Stats {
	st := Stats{
		Capacity:   Capacity,
		Live:       t.Live(),
		Tombstones: t.Tombstones(),
		LoadFactor: t.LoadFactor(),
		Seed:       t.Seed(),
		Rehashes:   t.Rehashes(),
	}
	var total, n int
	for i := 0; i < Capacity; i++ {
		if t.State(i) != Occupied {
			continue
		}
		d := t.probeDistance(i)
		total += d
		n++
		if d > st.MaxProbeDist {
			st.MaxProbeDist = d
		}
	}
	if n > 0 {
		st.AvgProbeDist = float64(total) / float64(n)
	}
	return st
}

func (t *Table) probeDistance(i int) int {
	start := t.position(i)
	if int(start) == i {
		return 1
	}
	stride := t.Stride(t.Key(i))
	for step := uint32(0); step < Capacity; step++ {
		if int(Probe(start, step, stride)) == i {
			return int(step) + 1
		}
	}
	return Capacity
}
