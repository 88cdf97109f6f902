// Package registration assembles the identity services from configuration:
// the user store backend, lockout tracking, activity sinks, consents and
// token signing.
package registration

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/config"
	"github.com/goliatone/go-sts/lockout"
	"github.com/goliatone/go-sts/memstore"
	"github.com/goliatone/go-sts/repository"
	"github.com/goliatone/go-sts/telemetry"
	"github.com/goliatone/go-sts/tokens"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Services is what the protocol engine needs from the identity core.
type Services struct {
	Backend   string
	Users     sts.IdentityService
	Consents  *sts.ConsentStore
	Tokens    *tokens.Service
	Validator tokens.Validator
	Metrics   *telemetry.PrometheusSink
	Clients   []config.Client
	Scopes    []config.Scope

	closers []func() error
}

// Close releases database and Redis connections in reverse order of
// creation and returns the first error.
func (s *Services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// Option configures Build.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	sinks      []sts.ActivitySink
	logSink    bool
}

// WithRegisterer exports activity metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithActivitySink adds a sink receiving every activity event.
func WithActivitySink(sink sts.ActivitySink) Option {
	return func(o *options) {
		if sink != nil {
			o.sinks = append(o.sinks, sink)
		}
	}
}

// WithAuditLog toggles logging every activity event through the logger.
// It is on by default.
func WithAuditLog(enabled bool) Option {
	return func(o *options) {
		o.logSink = enabled
	}
}

// Build wires the services described by cfg. Callers must Close the result.
func Build(ctx context.Context, cfg config.Config, logger sts.Logger, opts ...Option) (*Services, error) {
	if logger == nil {
		logger = sts.DefaultLogger()
	}

	o := options{logSink: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	svc := &Services{
		Backend: cfg.Store,
		Clients: cfg.Clients,
		Scopes:  cfg.Scopes,
	}

	sinks := append(sts.MultiSink{}, o.sinks...)
	if o.logSink {
		sinks = append(sinks, telemetry.NewLogSink(logger))
	}
	if o.registerer != nil {
		svc.Metrics = telemetry.NewPrometheusSink(o.registerer)
		sinks = append(sinks, svc.Metrics)
	}

	tracker, err := svc.lockoutTracker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	serviceOpts := []sts.Option{
		sts.WithLogger(logger),
		sts.WithActivitySink(sinks),
		sts.WithSecurityStamp(cfg.SecurityStamp),
		sts.WithDisplayNameClaimType(cfg.DisplayNameClaimType),
	}

	var store any
	switch cfg.Store {
	case config.StoreMemory, "":
		store, svc.Users, err = buildMemory(cfg, tracker, logger, serviceOpts)
	case config.StoreSQLite:
		store, svc.Users, err = svc.buildSQLite(ctx, cfg, tracker, logger, serviceOpts)
	default:
		err = goerrors.New("unknown store backend "+cfg.Store, goerrors.CategoryValidation).
			WithTextCode(config.TextCodeInvalidConfig)
	}
	if err != nil {
		svc.Close()
		return nil, err
	}

	consents, err := sts.NewConsentStoreFrom(store)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Consents = consents.WithLogger(logger).WithActivitySink(sinks)

	if err := svc.buildTokens(cfg, logger); err != nil {
		svc.Close()
		return nil, err
	}

	logger.Info("identity services ready", "store", svc.Backend, "clients", len(svc.Clients),
		"scopes", len(svc.Scopes), "tokens", svc.Tokens != nil)
	return svc, nil
}

func (s *Services) lockoutTracker(ctx context.Context, cfg config.Config, logger sts.Logger) (lockout.Tracker, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	client, err := lockout.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, client.Close)
	logger.Debug("lockout state kept in redis", "addr", client.Options().Addr)
	return lockout.NewRedis(client, cfg.Lockout), nil
}

func buildMemory(cfg config.Config, tracker lockout.Tracker, logger sts.Logger, opts []sts.Option) (any, sts.IdentityService, error) {
	if tracker == nil {
		tracker = lockout.NewMemory(cfg.Lockout)
	}

	storeOpts := []memstore.Option{
		memstore.WithLogger(logger),
		memstore.WithLockoutTracker(tracker),
	}
	if len(cfg.BootstrapUsers) > 0 {
		users := make([]*memstore.User, 0, len(cfg.BootstrapUsers))
		for _, b := range cfg.BootstrapUsers {
			u, err := memstore.NewLocalUser(b.UserName, b.Email, b.Password, b.FirstName, b.LastName, b.Roles...)
			if err != nil {
				return nil, nil, err
			}
			users = append(users, u)
		}
		storeOpts = append(storeOpts, memstore.WithSeedUsers(users...))
	}

	store, err := memstore.New(storeOpts...)
	if err != nil {
		return nil, nil, err
	}

	users, err := sts.NewUserService[*memstore.User, string](store, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, users, nil
}

func (s *Services) buildSQLite(ctx context.Context, cfg config.Config, tracker lockout.Tracker, logger sts.Logger, opts []sts.Option) (any, sts.IdentityService, error) {
	db, err := repository.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryExternal, "open sqlite store")
	}
	s.closers = append(s.closers, db.Close)

	storeOpts := []repository.Option{
		repository.WithLogger(logger),
		repository.WithLockoutPolicy(cfg.Lockout),
	}
	if tracker != nil {
		storeOpts = append(storeOpts, repository.WithLockoutTracker(tracker))
	}
	store := repository.New(db, storeOpts...)

	users := make([]*repository.User, 0, len(cfg.BootstrapUsers))
	roles := make(map[string][]string, len(cfg.BootstrapUsers))
	for _, b := range cfg.BootstrapUsers {
		hash, err := sts.HashPassword(b.Password)
		if err != nil {
			return nil, nil, err
		}
		email := b.Email
		if email == "" && strings.Contains(b.UserName, "@") {
			email = b.UserName
		}
		users = append(users, &repository.User{
			UserName:     b.UserName,
			Email:        email,
			PasswordHash: hash,
			FirstName:    b.FirstName,
			LastName:     b.LastName,
		})
		roles[b.UserName] = b.Roles
	}
	if err := repository.Seed(ctx, store, users, roles); err != nil {
		return nil, nil, err
	}

	service, err := sts.NewUserService[*repository.User, uuid.UUID](store, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, service, nil
}

func (s *Services) buildTokens(cfg config.Config, logger sts.Logger) error {
	if cfg.Token.SigningKey == "" {
		logger.Warn("no token signing key configured, token issuance disabled")
		return nil
	}

	tokenCfg := tokens.Config{
		SigningKey: []byte(cfg.Token.SigningKey),
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		TTL:        cfg.Token.TTL,
	}

	current, err := tokens.NewService(tokenCfg, tokens.WithLogger(logger))
	if err != nil {
		return err
	}
	s.Tokens = current

	validators := []tokens.Validator{current}
	for _, key := range cfg.Token.PreviousKeys {
		tokenCfg.SigningKey = []byte(key)
		retired, err := tokens.NewService(tokenCfg, tokens.WithLogger(logger))
		if err != nil {
			return err
		}
		validators = append(validators, retired)
	}
	s.Validator = tokens.NewMultiValidator(validators...)
	return nil
}
