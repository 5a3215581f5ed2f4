// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the routing pipeline.
var (
	promDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careflow_orchestrator_dispatches_total",
			Help: "Total dispatches by decided mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
	promDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "careflow_orchestrator_dispatch_duration_milliseconds",
			Help:    "Dispatch duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"mode"},
	)
	promHandoffsOutstanding = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "careflow_orchestrator_handoffs_outstanding",
			Help: "Number of conversations currently waiting on an operator",
		},
	)
)

// RegisterMetrics registers the orchestrator collectors with a registry.
// Call once at startup.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(promDispatchTotal, promDispatchDuration, promHandoffsOutstanding)
}

// RoutingMetrics keeps an in-process snapshot next to the Prometheus
// export, for the /health and /stats endpoints.
type RoutingMetrics struct {
	mu        sync.RWMutex
	startTime time.Time
	bridge    *HandoffBridge

	totalDispatches    int64
	failedDispatches   int64
	degradedDispatches int64
	perMode            map[ExecutionMode]int64
}

// NewRoutingMetrics creates a metrics recorder. bridge may be nil.
func NewRoutingMetrics(bridge *HandoffBridge) *RoutingMetrics {
	return &RoutingMetrics{
		startTime: time.Now(),
		bridge:    bridge,
		perMode:   make(map[ExecutionMode]int64),
	}
}

// RecordDispatch records one completed dispatch.
func (m *RoutingMetrics) RecordDispatch(decided, result ExecutionMode, err error, elapsed time.Duration) {
	outcome := "success"
	degraded := result == ModeParallelTimeout || result == ModeParallelFailed
	if err != nil {
		outcome = "error"
	} else if degraded {
		outcome = "degraded"
	}

	promDispatchTotal.WithLabelValues(string(decided), outcome).Inc()
	promDispatchDuration.WithLabelValues(string(decided)).Observe(float64(elapsed.Milliseconds()))
	if m.bridge != nil {
		promHandoffsOutstanding.Set(float64(m.bridge.Outstanding()))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalDispatches++
	m.perMode[decided]++
	if err != nil {
		m.failedDispatches++
	}
	if degraded {
		m.degradedDispatches++
	}
}

// MetricsSnapshot is the JSON shape served by the stats endpoint.
type MetricsSnapshot struct {
	UptimeSeconds       int64                   `json:"uptime_seconds"`
	TotalDispatches     int64                   `json:"total_dispatches"`
	FailedDispatches    int64                   `json:"failed_dispatches"`
	DegradedDispatches  int64                   `json:"degraded_dispatches"`
	DispatchesByMode    map[ExecutionMode]int64 `json:"dispatches_by_mode"`
	HandoffsOutstanding int                     `json:"handoffs_outstanding"`
}

// Snapshot returns a copy of the current counters.
func (m *RoutingMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	perMode := make(map[ExecutionMode]int64, len(m.perMode))
	for mode, n := range m.perMode {
		perMode[mode] = n
	}

	outstanding := 0
	if m.bridge != nil {
		outstanding = m.bridge.Outstanding()
	}

	return MetricsSnapshot{
		UptimeSeconds:       int64(time.Since(m.startTime).Seconds()),
		TotalDispatches:     m.totalDispatches,
		FailedDispatches:    m.failedDispatches,
		DegradedDispatches:  m.degradedDispatches,
		DispatchesByMode:    perMode,
		HandoffsOutstanding: outstanding,
	}
}
