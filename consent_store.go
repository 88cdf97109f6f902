package sts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Consent is the structured consent model the protocol engine works with.
type Consent struct {
	ClientID string   `json:"client_id"`
	Subject  string   `json:"subject"`
	Scopes   []string `json:"scopes"`
}

// ConsentStore adapts flat consent records to Consent values.
type ConsentStore struct {
	records  ConsentRecordStore
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

// NewConsentStore wraps a store implementing ConsentRecordStore.
func NewConsentStore(records ConsentRecordStore) *ConsentStore {
	return &ConsentStore{
		records:  records,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
}

// NewConsentStoreFrom builds a ConsentStore from any store, failing when the
// store does not persist consents.
func NewConsentStoreFrom(store any) (*ConsentStore, error) {
	records, ok := store.(ConsentRecordStore)
	if !ok {
		return nil, ErrCapabilityNotSupported
	}
	if reporter, ok := store.(CapabilityReporter); ok && !reporter.Capabilities().Consent {
		return nil, ErrCapabilityNotSupported
	}
	return NewConsentStore(records), nil
}

// WithLogger sets the logger.
func (c *ConsentStore) WithLogger(logger Logger) *ConsentStore {
	c.logger = normalizeLogger(logger)
	return c
}

// WithActivitySink sets the sink receiving consent changes.
func (c *ConsentStore) WithActivitySink(sink ActivitySink) *ConsentStore {
	c.activity = normalizeActivitySink(sink)
	return c
}

// LoadAll returns every consent granted by subject. The result is never nil.
func (c *ConsentStore) LoadAll(ctx context.Context, subject string) ([]Consent, error) {
	records, err := c.records.FindConsentsBySubject(ctx, subject)
	if err != nil {
		return nil, storeError(err, "failed to load consents")
	}

	consents := make([]Consent, 0, len(records))
	for _, r := range records {
		consents = append(consents, toConsent(r))
	}
	return consents, nil
}

// Load returns the consent subject granted client, or nil when none exists.
func (c *ConsentStore) Load(ctx context.Context, subject, client string) (*Consent, error) {
	record, found, err := c.records.FindConsent(ctx, subject, client)
	if err != nil {
		return nil, storeError(err, "failed to load consent")
	}
	if !found {
		return nil, nil
	}

	consent := toConsent(record)
	return &consent, nil
}

// Update stores consent, replacing any previous grant for the same client and
// subject. An empty scope set revokes the grant.
func (c *ConsentStore) Update(ctx context.Context, consent Consent) error {
	if strings.TrimSpace(consent.ClientID) == "" || strings.TrimSpace(consent.Subject) == "" {
		return goerrors.New("consent requires client and subject", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidConsent).
			WithCode(goerrors.CodeBadRequest)
	}

	scopes := normalizeScopes(consent.Scopes)
	if len(scopes) == 0 {
		return c.Revoke(ctx, consent.Subject, consent.ClientID)
	}

	if err := c.records.UpsertConsent(ctx, consent.ClientID, consent.Subject, strings.Join(scopes, " ")); err != nil {
		return storeError(err, "failed to update consent")
	}

	c.logger.Debug("consent updated", "subject", consent.Subject, "client_id", consent.ClientID, "scopes", len(scopes))
	c.record(ctx, ActivityEventConsentUpdated, consent.Subject, consent.ClientID, scopes)
	return nil
}

// Revoke removes the consent subject granted client. Revoking a missing
// consent is not an error.
func (c *ConsentStore) Revoke(ctx context.Context, subject, client string) error {
	if err := c.records.RevokeConsent(ctx, subject, client); err != nil {
		return storeError(err, "failed to revoke consent")
	}

	c.logger.Debug("consent revoked", "subject", subject, "client_id", client)
	c.record(ctx, ActivityEventConsentRevoked, subject, client, nil)
	return nil
}

func (c *ConsentStore) record(ctx context.Context, typ ActivityEventType, subject, client string, scopes []string) {
	evt := ActivityEvent{
		EventType:  typ,
		Outcome:    OutcomeSucceeded,
		UserID:     subject,
		ClientID:   client,
		OccurredAt: c.now(),
	}
	if scopes != nil {
		evt.Metadata = map[string]any{"scopes": scopes}
	}
	if err := c.activity.Record(ctx, evt); err != nil {
		c.logger.Error("activity sink failed", "event", typ, "error", err)
	}
}

func toConsent(r StoredConsent) Consent {
	return Consent{
		ClientID: r.Client,
		Subject:  r.Subject,
		Scopes:   ParseScopes(r.ScopeList),
	}
}

// ParseScopes splits a space delimited scope list, dropping empty and
// duplicate entries while keeping order.
func ParseScopes(list string) []string {
	return normalizeScopes(strings.Fields(list))
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		for _, f := range strings.Fields(s) {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
