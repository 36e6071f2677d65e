package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fcfsweep_build_info",
			Help: "Build information of the sweeper",
		},
		[]string{"version", "asset"},
	)

	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcfsweep_attempts_total",
			Help: "Total number of sweep attempts by outcome",
		},
		[]string{"outcome"},
	)

	SkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcfsweep_skips_total",
			Help: "Total number of skipped sweep attempts by reason",
		},
		[]string{"reason"},
	)

	SubmitRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcfsweep_submit_retries_total",
			Help: "Total number of failed submissions that were retried with a higher bid",
		},
	)

	ConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fcfsweep_confirmations_total",
			Help: "Total number of submitted transactions by final status",
		},
		[]string{"status"},
	)

	ErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fcfsweep_errors_total",
			Help: "Total number of reported errors",
		},
	)

	AttemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fcfsweep_attempt_duration_seconds",
			Help:    "Duration of sweep attempts that got past the guard",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
	)

	LastHeartbeat = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fcfsweep_last_heartbeat_timestamp_seconds",
			Help: "Unix time of the last heartbeat",
		},
	)

	PendingSubmission = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fcfsweep_pending_submission",
			Help: "1 while a submitted transaction awaits confirmation",
		},
	)
)
