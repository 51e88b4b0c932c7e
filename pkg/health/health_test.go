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

package health

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/shmkv/api"
	"github.com/srediag/shmkv/pkg/shmkv"
)

// stubManager reports a fixed count and fails PrintStats once closed.
type stubManager struct {
	api.Manager
	count  int
	closed bool
}

func (s *stubManager) Count() int { return s.count }

func (s *stubManager) PrintStats(w io.Writer) error {
	if s.closed {
		return shmkv.ErrClosed
	}
	_, err := io.WriteString(w, "ok")
	return err
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path+"?full=1", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandler(t *testing.T) {
	m := &stubManager{count: 10}
	h := NewHandler(m, nil)

	code, _ := get(t, h, "/live")
	assert.Equal(t, http.StatusOK, code)
	code, body := get(t, h, "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "table-capacity")

	m.count = shmkv.MaxEntries
	code, body = get(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "table full")
	code, _ = get(t, h, "/live")
	assert.Equal(t, http.StatusOK, code, "a full table is still alive")

	m.closed = true
	code, body = get(t, h, "/live")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.True(t, strings.Contains(body, "closed"))
}

func TestHandlerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHandler(&stubManager{count: shmkv.MaxEntries}, reg)
	code, _ := get(t, h, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, code)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "shmkv_healthcheck_status" {
			found = true
		}
	}
	assert.True(t, found)
}
