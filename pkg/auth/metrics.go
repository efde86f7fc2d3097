// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains Prometheus metrics for the session lifecycle.
type Metrics struct {
	SessionsStarted prometheus.Counter
	StartFailures   *prometheus.CounterVec
	Validations     *prometheus.CounterVec
	SessionsEnded   prometheus.Counter
	SessionsSwept   prometheus.Counter
}

// NewMetrics creates and registers session metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tropics_sessions_started_total",
			Help: "Total number of sessions started",
		}),
		StartFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tropics_session_start_failures_total",
				Help: "Total number of failed session starts by reason",
			},
			[]string{"reason"},
		),
		Validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tropics_session_validations_total",
				Help: "Total number of session validations by result",
			},
			[]string{"result"},
		),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tropics_sessions_ended_total",
			Help: "Total number of sessions ended explicitly",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tropics_sessions_swept_total",
			Help: "Total number of stale sessions removed by sweeps",
		}),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.StartFailures,
		m.Validations,
		m.SessionsEnded,
		m.SessionsSwept,
	)

	return m
}
