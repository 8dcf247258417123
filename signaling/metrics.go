// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the server's prometheus collectors.
type Metrics struct {
	lobbies  prometheus.Gauge
	clients  prometheus.Gauge
	sessions *prometheus.CounterVec
	relayed  *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewMetrics creates the server collectors and registers them with
// registerer. A nil registerer leaves them unregistered, which tests
// use to run several servers in one process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		lobbies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rendezvous",
			Subsystem: "signaling",
			Name:      "lobbies",
			Help:      "Number of registered host lobbies.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rendezvous",
			Subsystem: "signaling",
			Name:      "client_slots",
			Help:      "Number of client ids currently assigned.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous",
			Subsystem: "signaling",
			Name:      "sessions_total",
			Help:      "Sessions started, by role.",
		}, []string{"role"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous",
			Subsystem: "signaling",
			Name:      "relayed_messages_total",
			Help:      "Messages forwarded between sessions, by variant.",
		}, []string{"variant"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous",
			Subsystem: "signaling",
			Name:      "errors_sent_total",
			Help:      "Error envelopes sent to peers, by code.",
		}, []string{"code"}),
	}
	if registerer != nil {
		registerer.MustRegister(
			metrics.lobbies,
			metrics.clients,
			metrics.sessions,
			metrics.relayed,
			metrics.errors,
		)
	}
	return metrics
}
