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
	"fmt"

	"github.com/valyala/bytebufferpool"

	"github.com/srediag/shmkv/internal/table"
)

// Stats is a diagnostic snapshot of a region.
type Stats struct {
	Name         string
	Discipline   Discipline
	Capacity     int
	Live         int
	Tombstones   int
	LoadFactor   float64
	Seed         uint32
	Rehashes     uint32
	AvgProbeDist float64
	MaxProbeDist int
}

// Stats returns a snapshot of the table. It walks every slot under the
// read lock. A closed Manager returns the zero Stats.
func (m *Manager) Stats() Stats {
	st, _ := m.stats()
	return st
}

func (m *Manager) stats() (Stats, error) {
	var ts table.Stats
	if err := m.read(func(t *table.Table) { ts = t.Stats() }); err != nil {
		return Stats{}, err
	}
	return Stats{
		Name:         m.cfg.Name,
		Discipline:   m.cfg.Discipline,
		Capacity:     ts.Capacity,
		Live:         ts.Live,
		Tombstones:   ts.Tombstones,
		LoadFactor:   ts.LoadFactor,
		Seed:         ts.Seed,
		Rehashes:     ts.Rehashes,
		AvgProbeDist: ts.AvgProbeDist,
		MaxProbeDist: ts.MaxProbeDist,
	}, nil
}

func (s Stats) String() string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "=== Hash Table Statistics (%s, %s) ===\n", s.Name, s.Discipline)
	fmt.Fprintf(buf, "Table Size:       %d\n", s.Capacity)
	fmt.Fprintf(buf, "Live Records:     %d\n", s.Live)
	fmt.Fprintf(buf, "Tombstones:       %d\n", s.Tombstones)
	fmt.Fprintf(buf, "Load Factor:      %.4f\n", s.LoadFactor)
	fmt.Fprintf(buf, "Hash Seed:        %#08x\n", s.Seed)
	fmt.Fprintf(buf, "Rehashes:         %d\n", s.Rehashes)
	fmt.Fprintf(buf, "Avg Probe Length: %.3f\n", s.AvgProbeDist)
	fmt.Fprintf(buf, "Max Probe Length: %d\n", s.MaxProbeDist)
	return buf.String()
}
