// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New()
	m.MessagesReceived.WithLabelValues("sensor").Inc()
	m.MessagesReceived.WithLabelValues("sensor").Inc()
	m.Publishes.WithLabelValues("local", "ok").Inc()

	if got := testutil.ToFloat64(m.MessagesReceived.WithLabelValues("sensor")); got != 2 {
		t.Errorf("sensor messages = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `meteodash_publishes_total{destination="local",result="ok"} 1`) {
		t.Errorf("metrics output missing publish counter:\n%s", body)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// two instances must not collide on registration
	a, b := New(), New()
	a.Reconnects.Inc()
	if testutil.ToFloat64(b.Reconnects) != 0 {
		t.Error("registries share state")
	}
}
