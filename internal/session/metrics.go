package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rings_session_steps_total",
		Help: "Primitive grid steps applied, by move kind",
	}, []string{"kind"})

	rejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rings_session_rejected_total",
		Help: "Rejected session operations, by reason",
	}, []string{"reason"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rings_sessions_active",
		Help: "Open puzzle sessions",
	})

	subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rings_session_subscribers",
		Help: "Open session event subscriptions",
	})

	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rings_session_events_dropped_total",
		Help: "Events not delivered to a slow subscriber",
	})
)
