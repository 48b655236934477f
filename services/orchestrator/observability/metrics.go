// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the session
// orchestrator: turn counters, phase latencies, streamed fragment
// counts and active stream gauges. Metrics are exposed via /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "litora"

const sessionSubsystem = "session"

// SessionMetrics holds all Prometheus metrics for session turns.
//
// # Description
//
// Initialize once at startup via InitMetrics(). All operations are
// thread-safe via Prometheus's internal locking.
//
// # Fields
//
//   - TurnsTotal: Counter of turns by phase outcome.
//   - FragmentsTotal: Counter of streamed data fragments.
//   - TurnDurationSeconds: Histogram of whole-turn duration.
//   - PhaseDurationSeconds: Histogram of per-phase duration.
//   - ActiveStreams: Gauge of currently open SSE streams.
//   - ErrorsTotal: Counter of turn errors by error kind.
//   - PassagesStoredTotal: Counter of passages written to the store.
type SessionMetrics struct {
	// TurnsTotal counts turns. Labels: status (success, error, rejected)
	TurnsTotal *prometheus.CounterVec

	// FragmentsTotal counts streamed data fragments.
	FragmentsTotal prometheus.Counter

	// TurnDurationSeconds measures whole-turn duration.
	// Labels: status (success, error)
	TurnDurationSeconds *prometheus.HistogramVec

	// PhaseDurationSeconds measures per-phase duration.
	// Labels: phase (fetch, store, retrieve, generate)
	PhaseDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open SSE streams.
	ActiveStreams prometheus.Gauge

	// ErrorsTotal counts turn errors.
	// Labels: error_kind (source_fetch, store, retrieve, generation,
	// validation, turn_in_flight, not_initialized)
	ErrorsTotal *prometheus.CounterVec

	// PassagesStoredTotal counts passages written to the store.
	// Labels: origin (fetch, upload)
	PassagesStoredTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *SessionMetrics

// InitMetrics creates and registers all session metrics. Call once at
// startup; a second call panics on duplicate registration.
func InitMetrics() *SessionMetrics {
	DefaultMetrics = &SessionMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "turns_total",
				Help:      "Total chat turns by outcome",
			},
			[]string{"status"},
		),

		FragmentsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "fragments_total",
				Help:      "Total generated fragments streamed to clients",
			},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Whole-turn duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),

		PhaseDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "phase_duration_seconds",
				Help:      "Per-phase duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"phase"},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "active_streams",
				Help:      "Currently open SSE turn streams",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "errors_total",
				Help:      "Total turn errors by kind",
			},
			[]string{"error_kind"},
		),

		PassagesStoredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "passages_stored_total",
				Help:      "Total content passages written to the store",
			},
			[]string{"origin"},
		),
	}
	return DefaultMetrics
}

// Error kind label values for ErrorsTotal.
const (
	ErrorKindSourceFetch    = "source_fetch"
	ErrorKindStore          = "store"
	ErrorKindRetrieve       = "retrieve"
	ErrorKindGeneration     = "generation"
	ErrorKindValidation     = "validation"
	ErrorKindTurnInFlight   = "turn_in_flight"
	ErrorKindNotInitialized = "not_initialized"
)
