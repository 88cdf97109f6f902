// Package repository is a durable user store backed by bun. Keys are UUIDs;
// uniqueness rules are enforced by indexes and checked inside transactions.
package repository

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/lockout"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a row of sts_users.
type User struct {
	bun.BaseModel `bun:"table:sts_users,alias:u"`

	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserName           string     `bun:"user_name,notnull" json:"user_name"`
	NormalizedUserName string     `bun:"normalized_user_name,notnull" json:"-"`
	Email              string     `bun:"email" json:"email,omitempty"`
	PasswordHash       string     `bun:"password_hash" json:"-"`
	FirstName          string     `bun:"first_name" json:"first_name,omitempty"`
	LastName           string     `bun:"last_name" json:"last_name,omitempty"`
	SecurityStamp      string     `bun:"security_stamp" json:"-"`
	AccessFailedCount  int        `bun:"access_failed_count,notnull,default:0" json:"-"`
	LockoutEnd         *time.Time `bun:"lockout_end,nullzero" json:"-"`
	LastFailedAt       *time.Time `bun:"last_failed_at,nullzero" json:"-"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt          time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

var _ sts.User[uuid.UUID] = (*User)(nil)

// GetID implements sts.User.
func (u *User) GetID() uuid.UUID {
	return u.ID
}

// GetUserName implements sts.User.
func (u *User) GetUserName() string {
	return u.UserName
}

// Validate checks the fields required to persist the user.
func (u *User) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.UserName, validation.Required, validation.Length(1, 256)),
		validation.Field(&u.Email, validation.Length(0, 256), is.Email),
	)
}

// lockoutState reads the counter kept on the row, dropping failures older
// than window.
func (u *User) lockoutState(now time.Time, window time.Duration) lockout.State {
	state := lockout.State{Failures: u.AccessFailedCount}
	if u.LockoutEnd != nil {
		state.LockedUntil = *u.LockoutEnd
	}
	if state.Failures > 0 && (u.LastFailedAt == nil || !now.Before(u.LastFailedAt.Add(window))) {
		state.Failures = 0
	}
	return state
}

func (u *User) derivedClaims() []sts.Claim {
	claims := make([]sts.Claim, 0, 2)
	if strings.TrimSpace(u.FirstName) != "" {
		claims = append(claims, sts.NewClaim(sts.ClaimGivenName, u.FirstName))
	}
	if strings.TrimSpace(u.LastName) != "" {
		claims = append(claims, sts.NewClaim(sts.ClaimFamilyName, u.LastName))
	}
	return claims
}

// UserLogin links a user to an external identity. Provider is stored lower
// case.
type UserLogin struct {
	bun.BaseModel `bun:"table:sts_user_logins,alias:ul"`

	ID         uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID     uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Provider   string    `bun:"provider,notnull" json:"provider"`
	ProviderID string    `bun:"provider_id,notnull" json:"provider_id"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// UserClaim is a stored claim. IDs are version 7 UUIDs so claims read back
// in insertion order.
type UserClaim struct {
	bun.BaseModel `bun:"table:sts_user_claims,alias:uc"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Type      string    `bun:"claim_type,notnull" json:"type"`
	Value     string    `bun:"claim_value,notnull" json:"value"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// UserRole grants a role to a user.
type UserRole struct {
	bun.BaseModel `bun:"table:sts_user_roles,alias:ur"`

	UserID uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id"`
	Role   string    `bun:"role,pk" json:"role"`
}

// Consent is a row of sts_consents. Client and subject are unique together.
type Consent struct {
	bun.BaseModel `bun:"table:sts_consents,alias:c"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Client    string    `bun:"client,notnull" json:"client"`
	Subject   string    `bun:"subject,notnull" json:"subject"`
	ScopeList string    `bun:"scope_list,notnull" json:"scope_list"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (c *Consent) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Client, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Subject, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.ScopeList, validation.Length(0, 2000)),
	)
}

func (c *Consent) stored() sts.StoredConsent {
	return sts.StoredConsent{Client: c.Client, Subject: c.Subject, ScopeList: c.ScopeList}
}
