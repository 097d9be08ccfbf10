// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_applications_started_total",
			Help: "Total number of /apply sessions opened",
		},
	)

	ApplicationsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_applications_submitted_total",
			Help: "Total number of applications persisted for scoring",
		},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_decisions_total",
			Help: "Total number of decisions recorded by outcome",
		},
		[]string{"decision"},
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_scoring_duration_seconds",
			Help:    "Duration of scoring calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"provider", "outcome"},
	)

	OnboardingSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_onboarding_steps_total",
			Help: "Total number of onboarding steps by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_stage_failures_total",
			Help: "Total number of pipeline stage failures",
		},
		[]string{"task_type", "error_code"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_sessions_active",
			Help: "Number of wizard sessions held in memory",
		},
	)
)
