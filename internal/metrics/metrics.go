package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "attendance"

var (
	SessionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_outcomes_total",
		Help:      "Faculty sightings by resulting session outcome.",
	}, []string{"outcome"})

	SubstitutesAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "substitutes_assigned_total",
		Help:      "Pending substitute requests received.",
	})

	TimersArmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "finalize_timers_armed_total",
		Help:      "Auto-finalize countdowns started.",
	})

	TimersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "finalize_timers_fired_total",
		Help:      "Auto-finalize countdowns that expired, by result.",
	}, []string{"result"})

	TimersRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "finalize_timers_running",
		Help:      "Auto-finalize countdowns currently armed.",
	})

	StudentEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "student_entries_total",
		Help:      "Student sightings by log outcome.",
	}, []string{"outcome"})

	RowsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_finalized_total",
		Help:      "Attendance rows moved from temporary to final.",
	})

	LivenessVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "liveness_verdicts_total",
		Help:      "Windowed liveness decisions by verdict.",
	}, []string{"verdict"})

	RecognitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recognition_errors_total",
		Help:      "Skipped regions and failed api calls in the recognizer, by stage.",
	}, []string{"stage"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
