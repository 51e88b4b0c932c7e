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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shmkv/internal/table"
)

const namespace = "shmkv"

const (
	opInsert      = "insert"
	opUpdate      = "update"
	opUpsert      = "upsert"
	opLookup      = "lookup"
	opRemove      = "remove"
	opBatchUpdate = "batch_update"
	opBatchLookup = "batch_lookup"
	opClear       = "clear"
)

// collector exports the shared table gauges, read from the region on
// every scrape, and this process's operation counts.
type collector struct {
	m *Manager

	live       *prometheus.Desc
	tombstones *prometheus.Desc
	loadFactor *prometheus.Desc
	rehashes   *prometheus.Desc
	ops        *prometheus.CounterVec
}

func newCollector(m *Manager) *collector {
	labels := prometheus.Labels{"region": m.cfg.Name, "discipline": m.cfg.Discipline.String()}
	return &collector{
		m: m,
		live: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "table", "live_records"),
			"Number of live records in the shared table.",
			nil, labels),
		tombstones: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "table", "tombstones"),
			"Number of tombstone slots in the shared table.",
			nil, labels),
		loadFactor: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "table", "load_factor"),
			"Live plus tombstone slots over capacity.",
			nil, labels),
		rehashes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "table", "rehashes_total"),
			"Rehashes performed by any attached process since the region was created.",
			nil, labels),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "operations_total",
			Help:        "Operations issued by this process, by operation and result.",
			ConstLabels: labels,
		}, []string{"op", "result"}),
	}
}

func (c *collector) observe(op string, err *error) {
	c.ops.WithLabelValues(op, CodeOf(*err).String()).Inc()
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.live
	ch <- c.tombstones
	ch <- c.loadFactor
	ch <- c.rehashes
	c.ops.Describe(ch)
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	var live, tombs int
	var lf float64
	var rehashes uint32
	err := c.m.read(func(t *table.Table) {
		live, tombs = t.Live(), t.Tombstones()
		lf = t.LoadFactor()
		rehashes = t.Rehashes()
	})
	if err == nil {
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(live))
		ch <- prometheus.MustNewConstMetric(c.tombstones, prometheus.GaugeValue, float64(tombs))
		ch <- prometheus.MustNewConstMetric(c.loadFactor, prometheus.GaugeValue, lf)
		ch <- prometheus.MustNewConstMetric(c.rehashes, prometheus.CounterValue, float64(rehashes))
	}
	c.ops.Collect(ch)
}
