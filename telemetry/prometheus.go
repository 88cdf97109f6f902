// Package telemetry exports identity activity as Prometheus metrics.
package telemetry

import (
	"context"

	sts "github.com/goliatone/go-sts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink is an sts.ActivitySink counting events by type and outcome.
type PrometheusSink struct {
	// Activity counts every event by event type and outcome
	Activity *prometheus.CounterVec

	// Lockouts counts sign-ins refused because the account was locked
	Lockouts prometheus.Counter

	// AccountsCreated counts accounts created from external sign-ins by provider
	AccountsCreated *prometheus.CounterVec
}

var _ sts.ActivitySink = (*PrometheusSink)(nil)

// NewPrometheusSink registers the sink metrics on reg. A nil reg uses the
// default registerer.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusSink{
		Activity: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sts_activity_events_total",
			Help: "Identity activity events by type and outcome",
		}, []string{"event_type", "outcome"}),

		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "sts_lockout_refusals_total",
			Help: "Sign-ins and session checks refused for locked accounts",
		}),

		AccountsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sts_accounts_created_total",
			Help: "Accounts created from external sign-ins by provider",
		}, []string{"provider"}),
	}
}

// Record implements sts.ActivitySink.
func (p *PrometheusSink) Record(_ context.Context, event sts.ActivityEvent) error {
	if p == nil {
		return nil
	}

	p.Activity.WithLabelValues(string(event.EventType), string(event.Outcome)).Inc()

	switch {
	case event.Outcome == sts.OutcomeLockedOut:
		p.Lockouts.Inc()
	case event.EventType == sts.ActivityEventAccountCreated:
		p.AccountsCreated.WithLabelValues(event.Provider).Inc()
	}
	return nil
}
