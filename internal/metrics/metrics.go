// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus metrics recorded by edit
// sessions. A nil *Metrics records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/petar-djukic/go-editfiles/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeNoChanges = "no_changes"
	OutcomeAborted   = "aborted"
)

// Metrics holds the edit session collectors.
type Metrics struct {
	sessions    *prometheus.CounterVec
	actions     *prometheus.CounterVec
	parseErrors prometheus.Counter
	duration    prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "editfiles_sessions_total",
			Help: "Edit sessions by outcome.",
		}, []string{"outcome"}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "editfiles_actions_total",
			Help: "Edit actions processed by kind and match stage.",
		}, []string{"kind", "stage"}),
		parseErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "editfiles_parse_errors_total",
			Help: "Malformed edit blocks in model output.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "editfiles_session_duration_seconds",
			Help:    "Wall time of edit sessions.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// ObserveSession records a finished session.
func (m *Metrics) ObserveSession(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

// ObserveAction records one processed action.
func (m *Metrics) ObserveAction(kind types.ActionKind, stage types.MatchStage) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(kind.String(), stage.String()).Inc()
}

// AddParseErrors records n malformed blocks.
func (m *Metrics) AddParseErrors(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.parseErrors.Add(float64(n))
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
