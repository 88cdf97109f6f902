package sts

import (
	"context"
	"strings"
)

// User is the minimal identity contract a store record must satisfy. K is the
// store native key type (string, int32, uint32, int64, uuid.UUID, ...).
type User[K comparable] interface {
	GetID() K
	GetUserName() string
}

// ExternalLoginInfo identifies a federated identity.
type ExternalLoginInfo struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
}

// NewExternalLogin builds an ExternalLoginInfo.
func NewExternalLogin(provider, providerID string) ExternalLoginInfo {
	return ExternalLoginInfo{Provider: provider, ProviderID: providerID}
}

// SameProvider reports whether both logins belong to the same provider.
// Provider names compare case-insensitively.
func (l ExternalLoginInfo) SameProvider(o ExternalLoginInfo) bool {
	return strings.EqualFold(l.Provider, o.Provider)
}

// Matches reports whether both logins identify the same federated identity.
func (l ExternalLoginInfo) Matches(o ExternalLoginInfo) bool {
	return l.SameProvider(o) && l.ProviderID == o.ProviderID
}

// StoredConsent is the flat consent record kept by stores.
type StoredConsent struct {
	Client    string `json:"client"`
	Subject   string `json:"subject"`
	ScopeList string `json:"scope_list"`
}

// UserStore is the core persistence contract every store implements.
// Lookups report absence through the boolean, never through the error.
type UserStore[U User[K], K comparable] interface {
	Create(ctx context.Context, user U) (OperationResult, error)
	AddLogin(ctx context.Context, userID K, login ExternalLoginInfo) (OperationResult, error)
	FindByID(ctx context.Context, id K) (U, bool, error)
	FindByUserName(ctx context.Context, userName string) (U, bool, error)
	FindByLogin(ctx context.Context, login ExternalLoginInfo) (U, bool, error)
}

// ClaimStore is implemented by stores that keep per-user claims.
type ClaimStore[K comparable] interface {
	GetClaims(ctx context.Context, userID K) ([]Claim, error)
	AddClaim(ctx context.Context, userID K, claim Claim) (OperationResult, error)
}

// RoleStore is implemented by stores that keep user roles.
type RoleStore[K comparable] interface {
	GetRoles(ctx context.Context, userID K) ([]string, error)
}

// PasswordStore is implemented by stores that can verify local passwords.
type PasswordStore[U any] interface {
	CheckPassword(ctx context.Context, user U, password string) (bool, error)
}

// LockoutStore is implemented by stores that track failed attempts.
type LockoutStore[K comparable] interface {
	IsLockedOut(ctx context.Context, userID K) (bool, error)
	ResetAccessFailedCount(ctx context.Context, userID K) error
	AccessFailed(ctx context.Context, userID K) error
}

// EmailStore is implemented by stores that keep an email address per user.
type EmailStore[K comparable] interface {
	GetEmail(ctx context.Context, userID K) (string, error)
	SetEmail(ctx context.Context, userID K, email string) (OperationResult, error)
}

// SecurityStampStore is implemented by stores that maintain security stamps.
type SecurityStampStore[K comparable] interface {
	GetSecurityStamp(ctx context.Context, userID K) (string, error)
}

// ConsentRecordStore is implemented by stores that persist consents.
type ConsentRecordStore interface {
	FindConsentsBySubject(ctx context.Context, subject string) ([]StoredConsent, error)
	FindConsent(ctx context.Context, subject, client string) (StoredConsent, bool, error)
	UpsertConsent(ctx context.Context, client, subject, scopeList string) error
	RevokeConsent(ctx context.Context, subject, client string) error
}

// UserFactory is implemented by stores able to instantiate a blank user for
// external sign-ups.
type UserFactory[U any] interface {
	NewUser(userName string) U
}

// Capabilities describes which optional parts of the contract a store offers.
type Capabilities struct {
	Claims        bool `json:"claims"`
	Roles         bool `json:"roles"`
	Password      bool `json:"password"`
	Lockout       bool `json:"lockout"`
	Email         bool `json:"email"`
	SecurityStamp bool `json:"security_stamp"`
	Consent       bool `json:"consent"`
}

// AllCapabilities enables everything.
func AllCapabilities() Capabilities {
	return Capabilities{
		Claims:        true,
		Roles:         true,
		Password:      true,
		Lockout:       true,
		Email:         true,
		SecurityStamp: true,
		Consent:       true,
	}
}

// Intersect keeps only the capabilities enabled in both.
func (c Capabilities) Intersect(o Capabilities) Capabilities {
	return Capabilities{
		Claims:        c.Claims && o.Claims,
		Roles:         c.Roles && o.Roles,
		Password:      c.Password && o.Password,
		Lockout:       c.Lockout && o.Lockout,
		Email:         c.Email && o.Email,
		SecurityStamp: c.SecurityStamp && o.SecurityStamp,
		Consent:       c.Consent && o.Consent,
	}
}

// CapabilityReporter lets a store narrow the capabilities derived from the
// interfaces it implements, e.g. to switch lockout off by configuration.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

// ResolveCapabilities inspects store once and returns what it can do.
func ResolveCapabilities[U User[K], K comparable](store UserStore[U, K]) Capabilities {
	var caps Capabilities
	_, caps.Claims = store.(ClaimStore[K])
	_, caps.Roles = store.(RoleStore[K])
	_, caps.Password = store.(PasswordStore[U])
	_, caps.Lockout = store.(LockoutStore[K])
	_, caps.Email = store.(EmailStore[K])
	_, caps.SecurityStamp = store.(SecurityStampStore[K])
	_, caps.Consent = store.(ConsentRecordStore)

	if reporter, ok := store.(CapabilityReporter); ok {
		caps = caps.Intersect(reporter.Capabilities())
	}
	return caps
}
