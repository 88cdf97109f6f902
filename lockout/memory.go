package lockout

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Tracker. Like Redis, failure counters expire once
// the lockout window passes without a new failure.
type Memory struct {
	mu     sync.Mutex
	policy Policy
	now    func() time.Time
	states map[string]memoryEntry
}

type memoryEntry struct {
	State
	lastFailure time.Time
}

// MemoryOption configures a Memory tracker.
type MemoryOption func(*Memory)

// WithClock overrides the clock used to evaluate lockout windows.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns an empty in-memory tracker applying policy.
func NewMemory(policy Policy, opts ...MemoryOption) *Memory {
	m := &Memory{
		policy: policy,
		now:    time.Now,
		states: make(map[string]memoryEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// IsLockedOut implements Tracker.
func (m *Memory) IsLockedOut(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if key == "" {
		return false, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[key].LockedAt(m.now()), nil
}

// RecordFailure implements Tracker. Reaching the threshold locks the account
// and resets the counter; failures during an active lock do not extend it.
func (m *Memory) RecordFailure(ctx context.Context, key string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	if key == "" {
		return State{}, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry := m.current(key, now)
	if entry.LockedAt(now) {
		return entry.State, nil
	}

	entry.LockedUntil = time.Time{}
	entry.Failures++
	entry.lastFailure = now
	if m.policy.Enabled() && entry.Failures >= m.policy.MaxFailedAttempts {
		entry.Failures = 0
		entry.LockedUntil = now.Add(m.policy.LockoutDuration)
	}

	m.states[key] = entry
	return entry.State, nil
}

// current returns the entry for key with expired failures dropped. Callers
// hold m.mu.
func (m *Memory) current(key string, now time.Time) memoryEntry {
	entry := m.states[key]
	if entry.Failures > 0 && !now.Before(entry.lastFailure.Add(m.window())) {
		entry.Failures = 0
	}
	return entry
}

func (m *Memory) window() time.Duration {
	if m.policy.LockoutDuration > 0 {
		return m.policy.LockoutDuration
	}
	return DefaultPolicy().LockoutDuration
}

// Reset implements Tracker.
func (m *Memory) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

// State returns the current state for key.
func (m *Memory) State(key string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current(key, m.now()).State
}
