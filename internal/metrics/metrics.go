package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// registry is a dedicated registry so a textfile snapshot contains only
// switcher metrics, not Go runtime collectors
var registry = prometheus.NewRegistry()

// Switch operation metrics
var (
	// SwitchesTotal counts switch invocations by terminal outcome
	SwitchesTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelswitch_switches_total",
			Help: "Total number of switch invocations by outcome",
		},
		[]string{"outcome"},
	)

	// RollbacksTotal counts rollback attempts
	RollbacksTotal = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "modelswitch_rollbacks_total",
			Help: "Total number of rollback attempts after a failed health check",
		},
	)

	// HealthPollDuration tracks how long the health poll took to settle
	HealthPollDuration = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelswitch_health_poll_duration_seconds",
			Help:    "Duration of the health polling phase",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
	)

	// HealthPollAttempts tracks the number of probes needed
	HealthPollAttempts = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelswitch_health_poll_attempts",
			Help:    "Number of health probes per switch invocation",
			Buckets: prometheus.LinearBuckets(1, 1, 10), // 1 to 10 attempts
		},
	)

	// RestartsTotal counts container restarts issued by the switcher
	RestartsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelswitch_container_restarts_total",
			Help: "Total number of container restarts issued, by result",
		},
		[]string{"result"},
	)

	// LastSwitchTimestamp records when the last switch completed
	LastSwitchTimestamp = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "modelswitch_last_switch_timestamp_seconds",
			Help: "Unix timestamp of the last completed switch invocation",
		},
	)
)

// ObserveHealthPoll records the outcome of one health polling phase
func ObserveHealthPoll(duration time.Duration, attempts int) {
	HealthPollDuration.Observe(duration.Seconds())
	HealthPollAttempts.Observe(float64(attempts))
}

// WriteTextfile dumps the registry to a node-exporter textfile collector
// path. Best-effort: failures are logged, never fatal. A blank path
// disables the export.
func WriteTextfile(ctx context.Context, path string) {
	if path == "" {
		return
	}
	LastSwitchTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		slog.WarnContext(ctx, "failed to write metrics textfile",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
