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

// Package health exposes liveness and readiness endpoints for a process
// attached to a shared region.
package health

import (
	"fmt"
	"io"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shmkv/api"
	"github.com/srediag/shmkv/pkg/shmkv"
)

// NewHandler returns a handler serving /live and /ready for m. When reg is
// set, check results are also exported as prometheus gauges.
func NewHandler(m api.Manager, reg prometheus.Registerer) healthcheck.Handler {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, "shmkv")
	} else {
		h = healthcheck.NewHandler()
	}
	h.AddLivenessCheck("region-attached", Attached(m))
	h.AddReadinessCheck("table-capacity", HasCapacity(m, shmkv.MaxEntries))
	return h
}

// Attached fails once m can no longer reach its region.
func Attached(m api.Manager) healthcheck.Check {
	return func() error {
		return m.PrintStats(io.Discard)
	}
}

// HasCapacity fails while the table holds max or more live records.
func HasCapacity(m api.Manager, max int) healthcheck.Check {
	return func() error {
		if n := m.Count(); n >= max {
			return fmt.Errorf("table full: %d of %d records live", n, max)
		}
		return nil
	}
}
