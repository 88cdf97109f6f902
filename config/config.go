// Package config loads the STS settings from STS_* environment variables.
// Clients, scopes and bootstrap users are JSON encoded.
package config

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-sts/lockout"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

const TextCodeInvalidConfig = "STS_INVALID_CONFIG"

// Config is the resolved STS configuration.
type Config struct {
	Store                string
	DSN                  string
	RedisURL             string
	Lockout              lockout.Policy
	DisplayNameClaimType string
	SecurityStamp        bool
	Token                TokenConfig
	Clients              []Client
	Scopes               []Scope
	BootstrapUsers       []BootstrapUser
}

// TokenConfig holds the signing settings for issued tokens.
type TokenConfig struct {
	SigningKey   string
	PreviousKeys []string
	Issuer       string
	Audience     []string
	TTL          time.Duration
}

// BootstrapUser seeds a local user with a password.
type BootstrapUser struct {
	UserName  string   `json:"username"`
	Password  string   `json:"password"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// Validate implements validation.Validatable.
func (u BootstrapUser) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.UserName, validation.Required, validation.Length(1, 256)),
		validation.Field(&u.Password, validation.Required),
	)
}

type stsEnv struct {
	Store                string        `env:"STS_STORE"                 envDefault:"memory"`
	DSN                  string        `env:"STS_DSN"                   envDefault:"file:sts.db?cache=shared"`
	RedisURL             string        `env:"STS_REDIS_URL"`
	LockoutMaxFailures   int           `env:"STS_LOCKOUT_MAX_FAILURES"  envDefault:"5"`
	LockoutDuration      time.Duration `env:"STS_LOCKOUT_DURATION"      envDefault:"15m"`
	DisplayNameClaimType string        `env:"STS_DISPLAY_NAME_CLAIM"`
	SecurityStamp        bool          `env:"STS_SECURITY_STAMP"        envDefault:"true"`
	TokenSigningKey      string        `env:"STS_TOKEN_SIGNING_KEY"`
	TokenPreviousKeys    []string      `env:"STS_TOKEN_PREVIOUS_KEYS"   envSeparator:","`
	TokenIssuer          string        `env:"STS_TOKEN_ISSUER"          envDefault:"https://localhost:44301/identity"`
	TokenAudience        []string      `env:"STS_TOKEN_AUDIENCE"        envSeparator:","`
	TokenTTL             time.Duration `env:"STS_TOKEN_TTL"             envDefault:"1h"`
	ClientsJSON          string        `env:"STS_CLIENTS"`
	ScopesJSON           string        `env:"STS_SCOPES"`
	UsersJSON            string        `env:"STS_BOOTSTRAP_USERS"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFromMap reads the configuration from vars instead of the process
// environment.
func LoadFromMap(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var raw stsEnv
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Config{}, invalid(err, "parse env")
	}

	cfg := Config{
		Store:    strings.ToLower(strings.TrimSpace(raw.Store)),
		DSN:      raw.DSN,
		RedisURL: strings.TrimSpace(raw.RedisURL),
		Lockout: lockout.Policy{
			MaxFailedAttempts: raw.LockoutMaxFailures,
			LockoutDuration:   raw.LockoutDuration,
		},
		DisplayNameClaimType: raw.DisplayNameClaimType,
		SecurityStamp:        raw.SecurityStamp,
		Token: TokenConfig{
			SigningKey:   raw.TokenSigningKey,
			PreviousKeys: trimCSV(raw.TokenPreviousKeys),
			Issuer:       raw.TokenIssuer,
			Audience:     trimCSV(raw.TokenAudience),
			TTL:          raw.TokenTTL,
		},
		Clients: DefaultClients(),
		Scopes:  DefaultScopes(),
	}

	if err := decodeJSON(raw.ClientsJSON, &cfg.Clients, "STS_CLIENTS"); err != nil {
		return Config{}, err
	}
	if err := decodeJSON(raw.ScopesJSON, &cfg.Scopes, "STS_SCOPES"); err != nil {
		return Config{}, err
	}
	if err := decodeJSON(raw.UsersJSON, &cfg.BootstrapUsers, "STS_BOOTSTRAP_USERS"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	dsnRules := []validation.Rule{}
	if c.Store == StoreSQLite {
		dsnRules = append(dsnRules, validation.Required)
	}

	err := validation.ValidateStruct(&c,
		validation.Field(&c.Store, validation.Required, validation.In(StoreMemory, StoreSQLite)),
		validation.Field(&c.DSN, dsnRules...),
		validation.Field(&c.Lockout, validation.By(validatePolicy)),
		validation.Field(&c.Token, validation.By(validateToken)),
		validation.Field(&c.Clients),
		validation.Field(&c.Scopes),
		validation.Field(&c.BootstrapUsers),
	)
	if err != nil {
		return invalid(err, "invalid configuration")
	}
	return nil
}

func validatePolicy(value interface{}) error {
	p, _ := value.(lockout.Policy)
	if p.MaxFailedAttempts < 0 || p.LockoutDuration < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func validateToken(value interface{}) error {
	t, _ := value.(TokenConfig)
	if t.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	return nil
}

func decodeJSON(raw string, target any, name string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return invalid(err, "decode "+name)
	}
	return nil
}

func invalid(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, msg).
		WithTextCode(TextCodeInvalidConfig).
		WithCode(goerrors.CodeBadRequest)
}

func trimCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
