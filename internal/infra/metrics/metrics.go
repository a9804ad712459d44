// Package metrics provides Prometheus metrics for studyquest.
// Counters for rule-engine events, point flow, unlocks, synchronization
// and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Rule Engine ────────────────────────────────────────────────────────────

// EventsApplied counts events by kind and result ("ok" or the error class).
var EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studyquest",
	Name:      "events_applied_total",
	Help:      "Total events applied to progress snapshots.",
}, []string{"kind", "result"})

// PointsAwarded tracks gross points added, by event kind.
var PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studyquest",
	Name:      "points_awarded_total",
	Help:      "Total points added to users.",
}, []string{"kind"})

// PointsDeducted tracks gross points removed, by event kind.
var PointsDeducted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studyquest",
	Name:      "points_deducted_total",
	Help:      "Total points removed from users.",
}, []string{"kind"})

// Unlocks counts badges, achievements, quests, challenges and levels earned.
var Unlocks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studyquest",
	Name:      "unlocks_total",
	Help:      "Total items unlocked.",
}, []string{"kind"})

// ─── Synchronization ────────────────────────────────────────────────────────

// SyncOperations counts replica push/pull attempts by result.
var SyncOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studyquest",
	Name:      "sync_operations_total",
	Help:      "Total replica push and pull operations.",
}, []string{"op", "result"})

// SyncLatency tracks push/pull round-trip time in seconds.
var SyncLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "studyquest",
	Name:      "sync_latency_seconds",
	Help:      "Replica push and pull duration in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
}, []string{"op"})

// HistoryAppendFailures counts history entries that could not be written.
var HistoryAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "studyquest",
	Name:      "history_append_failures_total",
	Help:      "History entries dropped after a store error.",
})

// ─── Jobs ───────────────────────────────────────────────────────────────────

// RolloverSnapshots counts snapshots rewritten by the nightly rollover.
var RolloverSnapshots = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "studyquest",
	Name:      "rollover_snapshots_total",
	Help:      "Snapshots rewritten by the nightly rollover job.",
})

// ─── API ────────────────────────────────────────────────────────────────────

// APIRequests counts HTTP requests by route pattern and status code.
var APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studyquest",
	Name:      "api_requests_total",
	Help:      "Total HTTP API requests.",
}, []string{"route", "code"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "studyquest",
	Name:      "health_check_status",
	Help:      "Health check result (1=healthy, 0=unhealthy).",
}, []string{"check"})
