// Package metrics holds the Prometheus collectors served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathak",
		Name:      "checkins_total",
		Help:      "Check-in attempts by outcome code.",
	}, []string{"outcome"})

	Corrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathak",
		Name:      "corrections_total",
		Help:      "Correction request actions.",
	}, []string{"action"})

	ScoresLocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathak",
		Name:      "scores_locked_total",
		Help:      "Parikshan marks locked, by round.",
	}, []string{"round"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pathak",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	WorkerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathak",
		Name:      "worker_events_total",
		Help:      "Queue events handled by the worker.",
	}, []string{"type", "result"})
)
