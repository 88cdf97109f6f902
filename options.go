package sts

import (
	"context"
	"time"
)

// Option configures a UserService.
type Option func(*serviceConfig)

type serviceConfig struct {
	displayNameClaimType string
	enableSecurityStamp  bool
	logger               Logger
	activity             ActivitySink
	now                  func() time.Time
	capabilities         *Capabilities

	// generic hooks, type-checked against the store types at construction
	subjectParser any
	findExisting  any
	newUser       any
	postLocal     any
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		enableSecurityStamp: true,
		logger:              defLogger{},
		activity:            noopActivitySink{},
		now:                 time.Now,
	}
}

// WithDisplayNameClaimType sets the claim type preferred for display names.
func WithDisplayNameClaimType(claimType string) Option {
	return func(c *serviceConfig) {
		c.displayNameClaimType = claimType
	}
}

// WithSecurityStamp toggles security stamp issuance and validation.
func WithSecurityStamp(enabled bool) Option {
	return func(c *serviceConfig) {
		c.enableSecurityStamp = enabled
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger Logger) Option {
	return func(c *serviceConfig) {
		c.logger = normalizeLogger(logger)
	}
}

// WithActivitySink sets the sink receiving authentication outcomes.
func WithActivitySink(sink ActivitySink) Option {
	return func(c *serviceConfig) {
		c.activity = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *serviceConfig) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithCapabilities narrows the capabilities detected on the store.
func WithCapabilities(caps Capabilities) Option {
	return func(c *serviceConfig) {
		c.capabilities = &caps
	}
}

// WithSubjectParser overrides the subject-to-key conversion. Required for key
// types without a default parser.
func WithSubjectParser[K comparable](parser func(subject string) (K, error)) Option {
	return func(c *serviceConfig) {
		if parser != nil {
			c.subjectParser = SubjectParser[K](parser)
		}
	}
}

// WithExistingUserResolver installs the hook that looks for an existing local
// account matching the claims asserted by an external provider. The default
// finds none.
func WithExistingUserResolver[U any](fn func(ctx context.Context, provider string, claims []Claim) (U, bool, error)) Option {
	return func(c *serviceConfig) {
		if fn != nil {
			c.findExisting = fn
		}
	}
}

// WithNewUserFactory installs the hook that instantiates users for first time
// external sign-ins. The default asks the store for a user with a random
// opaque username.
func WithNewUserFactory[U any](fn func(ctx context.Context, identity ExternalIdentity) (U, error)) Option {
	return func(c *serviceConfig) {
		if fn != nil {
			c.newUser = fn
		}
	}
}

// WithPostAuthenticateLocal installs a hook that runs after a successful
// password check. A non-nil result replaces the default sign-in result.
func WithPostAuthenticateLocal[U any](fn func(ctx context.Context, user U, msg *SignInMessage) (*AuthenticateResult, error)) Option {
	return func(c *serviceConfig) {
		if fn != nil {
			c.postLocal = fn
		}
	}
}
