package memstore

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	sts "github.com/goliatone/go-sts"
)

// User is the record kept by the in-memory store.
type User struct {
	ID            string   `json:"id"`
	UserName      string   `json:"user_name"`
	Email         string   `json:"email,omitempty"`
	PasswordHash  string   `json:"-"`
	FirstName     string   `json:"first_name,omitempty"`
	LastName      string   `json:"last_name,omitempty"`
	SecurityStamp string   `json:"-"`
	Roles         []string `json:"roles,omitempty"`
}

var _ sts.User[string] = (*User)(nil)

// GetID implements sts.User.
func (u *User) GetID() string {
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

func (u *User) clone() *User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}

// derivedClaims are computed from the profile fields on every read.
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

// NewLocalUser builds a user with a hashed password. The username doubles as
// the email address when it looks like one and no email is given.
func NewLocalUser(userName, email, password, firstName, lastName string, roles ...string) (*User, error) {
	hash, err := sts.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if email == "" && is.Email.Validate(userName) == nil {
		email = userName
	}
	return &User{
		UserName:     userName,
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Roles:        roles,
	}, nil
}

// Sample user seeded into every store built without WithSeedUsers.
const (
	SampleUserName = "alice@example.com"
	SamplePassword = "test"
)

// SampleUser returns the default seed user.
func SampleUser() *User {
	u, err := NewLocalUser(SampleUserName, "", SamplePassword, "Alice", "Smith")
	if err != nil {
		panic(err)
	}
	return u
}
