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

package shmkv

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counterWith(f *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range f.GetMetric() {
		matched := 0
		for _, lp := range m.GetLabel() {
			if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	name := testRegionName(t, "metrics")
	m, err := Open(&Config{Name: name, Discipline: ReaderWriter, Registerer: reg})
	require.NoError(t, err)

	require.NoError(t, m.Insert(1, "a"))
	require.NoError(t, m.Insert(2, "b"))
	require.NoError(t, m.Remove(2))
	require.ErrorIs(t, m.Insert(1, "dup"), ErrDuplicateKey)
	_ = m.Lookup(1)
	_ = m.Lookup(404)

	families := gather(t, reg)
	require.Contains(t, families, "shmkv_table_live_records")
	live := families["shmkv_table_live_records"].GetMetric()
	require.Len(t, live, 1)
	assert.Equal(t, 1.0, live[0].GetGauge().GetValue())
	assert.Equal(t, 1.0, families["shmkv_table_tombstones"].GetMetric()[0].GetGauge().GetValue())
	assert.InDelta(t, 2.0/Capacity, families["shmkv_table_load_factor"].GetMetric()[0].GetGauge().GetValue(), 1e-9)
	assert.Zero(t, families["shmkv_table_rehashes_total"].GetMetric()[0].GetCounter().GetValue())

	ops := families["shmkv_operations_total"]
	require.NotNil(t, ops)
	assert.Equal(t, 2.0, counterWith(ops, map[string]string{"op": "insert", "result": "ok"}))
	assert.Equal(t, 1.0, counterWith(ops, map[string]string{"op": "insert", "result": "duplicate_key"}))
	assert.Equal(t, 1.0, counterWith(ops, map[string]string{"op": "lookup", "result": "not_found"}))
	assert.Equal(t, 1.0, counterWith(ops, map[string]string{"region": name, "discipline": "rwlock", "op": "remove", "result": "ok"}))

	require.NoError(t, m.Close())
	families = gather(t, reg)
	assert.NotContains(t, families, "shmkv_table_live_records")
	assert.NotContains(t, families, "shmkv_operations_total")
}

func TestCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	name := testRegionName(t, "metrics")
	first, err := Open(&Config{Name: name, Discipline: Exclusive, Registerer: reg})
	require.NoError(t, err)
	defer first.Close()

	// same region, same labels: the second handle works without metrics
	second, err := Open(&Config{Name: name, Discipline: Exclusive, Registerer: reg})
	require.NoError(t, err)
	require.NoError(t, second.Insert(1, "x"))
	require.NoError(t, second.Close())

	families := gather(t, reg)
	require.Contains(t, families, "shmkv_table_live_records")
	assert.Equal(t, 1.0, families["shmkv_table_live_records"].GetMetric()[0].GetGauge().GetValue())
}
