// Package metrics exposes Prometheus counters for the session-security core.
// Outcome labels match the authenticator's rejection taxonomy so dashboards
// can split expected expiries from active attack signals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthDecisions counts authentication outcomes. The outcome label is
	// "accepted" or one of the rejection reasons.
	AuthDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskdeck",
		Subsystem: "auth",
		Name:      "decisions_total",
		Help:      "Authentication decisions by outcome.",
	}, []string{"outcome"})

	// SecurityEvents counts persisted security events by kind.
	SecurityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskdeck",
		Subsystem: "auth",
		Name:      "security_events_total",
		Help:      "Security events recorded, by kind.",
	}, []string{"kind"})

	// SessionsSuperseded counts sessions force-ended because the same user
	// logged in again (single-session policy).
	SessionsSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskdeck",
		Subsystem: "auth",
		Name:      "sessions_superseded_total",
		Help:      "Sessions deactivated by a newer login for the same user.",
	})
)
