// Package lockout tracks failed sign-in attempts and locks accounts out once
// a policy threshold is reached.
package lockout

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Policy controls when an account gets locked and for how long.
// A MaxFailedAttempts of zero disables lockout. LockoutDuration is also the
// failure window: a counter with no new failure for that long starts over.
type Policy struct {
	MaxFailedAttempts int           `json:"max_failed_attempts"`
	LockoutDuration   time.Duration `json:"lockout_duration"`
}

// DefaultPolicy locks an account for 15 minutes after 5 failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
	}
}

// Enabled reports whether the policy can lock accounts.
func (p Policy) Enabled() bool {
	return p.MaxFailedAttempts > 0 && p.LockoutDuration > 0
}

// State is the lockout state of a single account.
type State struct {
	Failures    int       `json:"failures"`
	LockedUntil time.Time `json:"locked_until,omitempty"`
}

// LockedAt reports whether the account is locked at t.
func (s State) LockedAt(t time.Time) bool {
	return !s.LockedUntil.IsZero() && s.LockedUntil.After(t)
}

// Tracker stores failed attempt counters. Keys are opaque account ids.
type Tracker interface {
	IsLockedOut(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) (State, error)
	Reset(ctx context.Context, key string) error
}

// ErrEmptyKey is returned when a tracker is called without an account key.
var ErrEmptyKey = goerrors.New("lockout key is required", goerrors.CategoryBadInput).
	WithTextCode("LOCKOUT_EMPTY_KEY").
	WithCode(goerrors.CodeBadRequest)
