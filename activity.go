package sts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLocalLogin      ActivityEventType = "sts.login.local"
	ActivityEventExternalLogin   ActivityEventType = "sts.login.external"
	ActivityEventAccountCreated  ActivityEventType = "sts.account.created"
	ActivityEventClaimsMerged    ActivityEventType = "sts.claims.reconciled"
	ActivityEventSessionRejected ActivityEventType = "sts.session.rejected"
	ActivityEventConsentUpdated  ActivityEventType = "sts.consent.updated"
	ActivityEventConsentRevoked  ActivityEventType = "sts.consent.revoked"
)

// AuthOutcome classifies an authentication attempt. The protocol engine only
// ever sees "result" or "no result"; the outcome is for logs and sinks.
type AuthOutcome string

const (
	OutcomeSucceeded       AuthOutcome = "succeeded"
	OutcomeUnsupported     AuthOutcome = "unsupported"
	OutcomeUnknownUser     AuthOutcome = "unknown_user"
	OutcomeLockedOut       AuthOutcome = "locked_out"
	OutcomeInvalidPassword AuthOutcome = "invalid_password"
	OutcomeStoreError      AuthOutcome = "store_error"
	OutcomeAccountCreated  AuthOutcome = "account_created"
	OutcomeCreateFailed    AuthOutcome = "create_failed"
	OutcomeLinkFailed      AuthOutcome = "link_failed"
	OutcomeReconcileFailed AuthOutcome = "reconcile_failed"
	OutcomeStampMismatch   AuthOutcome = "stamp_mismatch"
	OutcomeInvalidSubject  AuthOutcome = "invalid_subject"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Outcome    AuthOutcome
	UserID     string
	UserName   string
	Provider   string
	ClientID   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiSink fans events out to every sink, returning the first error.
type MultiSink []ActivitySink

// Record implements ActivitySink.
func (m MultiSink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
