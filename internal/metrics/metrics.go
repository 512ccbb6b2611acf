// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gymbro"

var (
	// InboundEvents counts accepted inbound events.
	// Labels: kind (text, button, media)
	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "inbound_events_total",
			Help:      "Total number of inbound events accepted by the router",
		},
		[]string{"kind"},
	)

	// ActiveSessions is the number of sessions currently stored.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "active_sessions",
			Help:      "Number of conversation sessions held in memory",
		},
	)

	// InactivityClosures counts sessions closed by the inactivity timeout.
	InactivityClosures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "inactivity_closures_total",
			Help:      "Total number of sessions closed for inactivity",
		},
	)

	// OutboundMessages counts outbound sends.
	// Labels: kind (text, buttons, media, read), result (success, error)
	OutboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "outbound_messages_total",
			Help:      "Total number of outbound messaging operations",
		},
		[]string{"kind", "result"},
	)

	// SendDuration tracks how long outbound sends take.
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "send_duration_seconds",
			Help:      "Duration of outbound messaging operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// AIQuestions counts answered AI questions.
	AIQuestions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "questions_total",
			Help:      "Total number of AI questions answered",
		},
	)

	// AIRateLimited counts AI requests denied by the per-user window.
	AIRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "rate_limited_total",
			Help:      "Total number of AI requests denied by the rate limiter",
		},
	)

	// Reminders counts renewal reminders.
	// Labels: result (sent, failed, skipped)
	Reminders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminder",
			Name:      "reminders_total",
			Help:      "Total number of membership renewal reminders by result",
		},
		[]string{"result"},
	)

	// StoreOperations counts backing store calls.
	// Labels: backend (sheets, sqlite, postgres, memory), op, result (success, error)
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations",
		},
		[]string{"backend", "op", "result"},
	)
)

// Result maps an error to the "success"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
