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

// Package metrics exposes Prometheus counters for the receiver, the
// control gate and the publisher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived *prometheus.CounterVec // by topic role
	DecodeErrors     *prometheus.CounterVec // by topic role
	Reconnects       prometheus.Counter
	Connected        prometheus.Gauge

	GateDecisions  *prometheus.CounterVec // by destination, decision
	Publishes      *prometheus.CounterVec // by destination, result
	PublishLatency *prometheus.HistogramVec
	HandleDiscards prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meteodash_messages_received_total",
			Help: "Inbound MQTT messages by topic role.",
		}, []string{"role"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meteodash_decode_errors_total",
			Help: "Inbound messages dropped or wrapped because they did not decode.",
		}, []string{"role"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meteodash_receiver_reconnects_total",
			Help: "Receiver connect cycles that ended and were retried.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meteodash_receiver_connected",
			Help: "1 while the receiver holds a broker connection.",
		}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meteodash_gate_decisions_total",
			Help: "Change/throttle gate outcomes.",
		}, []string{"destination", "decision"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meteodash_publishes_total",
			Help: "Outbound publish calls by destination and result.",
		}, []string{"destination", "result"}),
		PublishLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meteodash_publish_seconds",
			Help:    "Time spent in a publish call.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"discipline"}),
		HandleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meteodash_publisher_handle_discards_total",
			Help: "Persistent connections thrown away after a failed publish.",
		}),
	}

	m.registry.MustRegister(
		m.MessagesReceived, m.DecodeErrors, m.Reconnects, m.Connected,
		m.GateDecisions, m.Publishes, m.PublishLatency, m.HandleDiscards,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
