// Package metrics declares the prometheus collectors exported by garden.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "garden"

// TasksTotal counts tasks reaching a terminal state, by task type and state.
var TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "tasks_total",
	Help:      "Tasks that reached a terminal state.",
}, []string{"type", "state"})

// TasksActive tracks currently executing tasks.
var TasksActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "tasks_active",
	Help:      "Number of currently executing tasks.",
})

// TaskDuration tracks task processing time by task type.
var TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "task_duration_seconds",
	Help:      "Task processing duration in seconds.",
	Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
}, []string{"type"})

// CacheInvalidations counts scoped cache entries removed, by invalidation mode.
var CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "cache_invalidations_total",
	Help:      "Scoped cache entries removed by invalidation.",
}, []string{"mode"})

// VersionResolutions counts module version resolutions by outcome (hit, miss, dirty, error).
var VersionResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "version_resolutions_total",
	Help:      "Module version resolutions by outcome.",
}, []string{"outcome"})

// WatchEvents counts classified filesystem events by classification.
var WatchEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "watch_events_total",
	Help:      "Filesystem events by classification.",
}, []string{"class"})
