package sts

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// UserService turns authentication events into token-ready claim sets and
// re-validates subjects on every protected request.
type UserService[U User[K], K comparable] struct {
	store UserStore[U, K]
	caps  Capabilities

	claims    ClaimStore[K]
	roles     RoleStore[K]
	passwords PasswordStore[U]
	lockout   LockoutStore[K]
	emails    EmailStore[K]
	stamps    SecurityStampStore[K]

	parseSubject         SubjectParser[K]
	displayNameClaimType string
	enableSecurityStamp  bool

	findExisting func(ctx context.Context, provider string, claims []Claim) (U, bool, error)
	newUser      func(ctx context.Context, identity ExternalIdentity) (U, error)
	postLocal    func(ctx context.Context, user U, msg *SignInMessage) (*AuthenticateResult, error)

	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

var _ IdentityService = (*UserService[User[string], string])(nil)

// NewUserService wires a store into the claims pipeline. Capabilities and
// hooks are resolved here so unsupported combinations fail at construction.
func NewUserService[U User[K], K comparable](store UserStore[U, K], opts ...Option) (*UserService[U, K], error) {
	if store == nil {
		return nil, ErrMissingStore
	}

	cfg := defaultServiceConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	caps := ResolveCapabilities(store)
	if cfg.capabilities != nil {
		caps = caps.Intersect(*cfg.capabilities)
	}

	s := &UserService[U, K]{
		store:                store,
		caps:                 caps,
		displayNameClaimType: cfg.displayNameClaimType,
		enableSecurityStamp:  cfg.enableSecurityStamp,
		logger:               cfg.logger,
		activity:             cfg.activity,
		now:                  cfg.now,
	}

	if caps.Claims {
		s.claims = store.(ClaimStore[K])
	}
	if caps.Roles {
		s.roles = store.(RoleStore[K])
	}
	if caps.Password {
		s.passwords = store.(PasswordStore[U])
	}
	if caps.Lockout {
		s.lockout = store.(LockoutStore[K])
	}
	if caps.Email {
		s.emails = store.(EmailStore[K])
	}
	if caps.SecurityStamp {
		s.stamps = store.(SecurityStampStore[K])
	}

	if err := s.resolveHooks(cfg); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *UserService[U, K]) resolveHooks(cfg serviceConfig) error {
	switch p := cfg.subjectParser.(type) {
	case nil:
		parser, ok := DefaultSubjectParser[K]()
		if !ok {
			return ErrUnsupportedKeyType
		}
		s.parseSubject = parser
	case SubjectParser[K]:
		s.parseSubject = p
	default:
		return hookTypeError("subject parser", p)
	}

	switch fn := cfg.findExisting.(type) {
	case nil:
		s.findExisting = func(context.Context, string, []Claim) (U, bool, error) {
			var zero U
			return zero, false, nil
		}
	case func(context.Context, string, []Claim) (U, bool, error):
		s.findExisting = fn
	default:
		return hookTypeError("existing user resolver", fn)
	}

	switch fn := cfg.newUser.(type) {
	case nil:
		factory, ok := s.store.(UserFactory[U])
		if !ok {
			return ErrNoUserFactory
		}
		s.newUser = func(context.Context, ExternalIdentity) (U, error) {
			return factory.NewUser(RandomUserName()), nil
		}
	case func(context.Context, ExternalIdentity) (U, error):
		s.newUser = fn
	default:
		return hookTypeError("new user factory", fn)
	}

	switch fn := cfg.postLocal.(type) {
	case nil:
	case func(context.Context, U, *SignInMessage) (*AuthenticateResult, error):
		s.postLocal = fn
	default:
		return hookTypeError("post authenticate hook", fn)
	}

	return nil
}

func hookTypeError(name string, hook any) error {
	return goerrors.New(name+" does not match the store types", goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidHook).
		WithMetadata(map[string]any{"hook_type": fmt.Sprintf("%T", hook)})
}

// RandomUserName returns an opaque username for accounts created from
// external sign-ins.
func RandomUserName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Capabilities returns the capabilities resolved at construction.
func (s *UserService[U, K]) Capabilities() Capabilities {
	return s.caps
}

// GetProfileData populates req.IssuedClaims with the subject's claims,
// filtered by the requested claim types when any are given.
func (s *UserService[U, K]) GetProfileData(ctx context.Context, req *ProfileDataRequest) error {
	if req == nil {
		return ErrMissingContext
	}
	if req.Subject == nil {
		return ErrMissingSubject
	}

	key, err := s.parseSubject(req.Subject.ID)
	if err != nil {
		return ErrInvalidSubject
	}

	user, found, err := s.store.FindByID(ctx, key)
	if err != nil {
		return storeError(err, "failed to find subject")
	}
	if !found {
		return ErrInvalidSubject
	}

	claims, err := s.accountClaims(ctx, user)
	if err != nil {
		return err
	}

	req.IssuedClaims = FilterClaims(claims, req.RequestedClaimTypes)
	return nil
}

// AuthenticateLocal verifies a username/password pair. Unsupported password
// auth, unknown users, locked accounts and wrong passwords all leave
// lc.AuthenticateResult nil. Only store failures are returned as errors.
func (s *UserService[U, K]) AuthenticateLocal(ctx context.Context, lc *LocalAuthenticationContext) error {
	if lc == nil {
		return ErrMissingContext
	}

	lc.AuthenticateResult = nil

	result, attempt, err := s.authenticateLocal(ctx, lc.UserName, lc.Password, lc.SignInMessage)
	s.recordAttempt(ctx, ActivityEventLocalLogin, attempt, lc.SignInMessage)
	if err != nil {
		return err
	}

	lc.AuthenticateResult = result
	return nil
}

type loginAttempt struct {
	outcome  AuthOutcome
	userID   string
	userName string
	provider string
	err      error
}

func (s *UserService[U, K]) authenticateLocal(ctx context.Context, userName, password string, msg *SignInMessage) (*AuthenticateResult, loginAttempt, error) {
	attempt := loginAttempt{userName: userName}

	if s.passwords == nil {
		attempt.outcome = OutcomeUnsupported
		return nil, attempt, nil
	}

	user, found, err := s.store.FindByUserName(ctx, userName)
	if err != nil {
		return s.failAttempt(attempt, err, "failed to find user by name")
	}
	if !found {
		attempt.outcome = OutcomeUnknownUser
		return nil, attempt, nil
	}

	id := user.GetID()
	attempt.userID = FormatSubject(id)

	if s.lockout != nil {
		locked, err := s.lockout.IsLockedOut(ctx, id)
		if err != nil {
			return s.failAttempt(attempt, err, "failed to read lockout state")
		}
		if locked {
			attempt.outcome = OutcomeLockedOut
			return nil, attempt, nil
		}
	}

	ok, err := s.passwords.CheckPassword(ctx, user, password)
	if err != nil {
		return s.failAttempt(attempt, err, "failed to check password")
	}

	if !ok {
		if s.lockout != nil {
			if err := s.lockout.AccessFailed(ctx, id); err != nil {
				return s.failAttempt(attempt, err, "failed to record failed attempt")
			}
		}
		attempt.outcome = OutcomeInvalidPassword
		return nil, attempt, nil
	}

	if s.lockout != nil {
		if err := s.lockout.ResetAccessFailedCount(ctx, id); err != nil {
			return s.failAttempt(attempt, err, "failed to reset failed attempts")
		}
	}

	if s.postLocal != nil {
		result, err := s.postLocal(ctx, user, msg)
		if err != nil {
			return s.failAttempt(attempt, err, "post authenticate hook failed")
		}
		if result != nil {
			attempt.outcome = OutcomeSucceeded
			return result, attempt, nil
		}
	}

	result, err := s.signInResult(ctx, user, AuthMethodPassword, "")
	if err != nil {
		return s.failAttempt(attempt, err, "failed to assemble sign-in result")
	}

	attempt.outcome = OutcomeSucceeded
	return result, attempt, nil
}

func (s *UserService[U, K]) failAttempt(attempt loginAttempt, err error, msg string) (*AuthenticateResult, loginAttempt, error) {
	attempt.outcome = OutcomeStoreError
	attempt.err = storeError(err, msg)
	return nil, attempt, attempt.err
}

// IsActive reports whether the subject may still receive tokens: it must
// exist, must not be locked out, and its security stamp, when carried, must
// match the stored one.
func (s *UserService[U, K]) IsActive(ctx context.Context, ac *IsActiveContext) error {
	if ac == nil {
		return ErrMissingContext
	}
	if ac.Subject == nil {
		return ErrMissingSubject
	}

	ac.IsActive = false

	outcome, err := s.checkActive(ctx, ac.Subject)
	if err != nil {
		return err
	}

	if outcome != OutcomeSucceeded {
		s.recordAttempt(ctx, ActivityEventSessionRejected, loginAttempt{
			outcome: outcome,
			userID:  ac.Subject.ID,
		}, &SignInMessage{ClientID: ac.ClientID})
		return nil
	}

	ac.IsActive = true
	return nil
}

func (s *UserService[U, K]) checkActive(ctx context.Context, subject *Subject) (AuthOutcome, error) {
	key, err := s.parseSubject(subject.ID)
	if err != nil {
		return OutcomeInvalidSubject, nil
	}

	_, found, err := s.store.FindByID(ctx, key)
	if err != nil {
		return OutcomeStoreError, storeError(err, "failed to find subject")
	}
	if !found {
		return OutcomeUnknownUser, nil
	}

	if s.lockout != nil {
		locked, err := s.lockout.IsLockedOut(ctx, key)
		if err != nil {
			return OutcomeStoreError, storeError(err, "failed to read lockout state")
		}
		if locked {
			return OutcomeLockedOut, nil
		}
	}

	if s.enableSecurityStamp && s.stamps != nil {
		if carried, ok := subject.ClaimValue(ClaimSecurityStamp); ok {
			current, err := s.stamps.GetSecurityStamp(ctx, key)
			if err != nil {
				return OutcomeStoreError, storeError(err, "failed to read security stamp")
			}
			if current != carried {
				return OutcomeStampMismatch, nil
			}
		}
	}

	return OutcomeSucceeded, nil
}

// accountClaims assembles sub, preferred_username, email, store claims and
// role claims for user, honoring the store capabilities.
func (s *UserService[U, K]) accountClaims(ctx context.Context, user U) ([]Claim, error) {
	id := user.GetID()
	claims := []Claim{
		NewClaim(ClaimSubject, FormatSubject(id)),
		NewClaim(ClaimPreferredUserName, user.GetUserName()),
	}

	if s.emails != nil {
		email, err := s.emails.GetEmail(ctx, id)
		if err != nil {
			return nil, storeError(err, "failed to read email")
		}
		if strings.TrimSpace(email) != "" {
			claims = append(claims, NewClaim(ClaimEmail, email))
		}
	}

	if s.claims != nil {
		stored, err := s.claims.GetClaims(ctx, id)
		if err != nil {
			return nil, storeError(err, "failed to read claims")
		}
		claims = append(claims, stored...)
	}

	if s.roles != nil {
		roles, err := s.roles.GetRoles(ctx, id)
		if err != nil {
			return nil, storeError(err, "failed to read roles")
		}
		for _, role := range roles {
			claims = append(claims, NewClaim(ClaimRole, role))
		}
	}

	return claims, nil
}

// displayName resolves the configured claim type, then "name", then the
// WS-Federation name claim, falling back to the username.
func (s *UserService[U, K]) displayName(user U, claims []Claim) string {
	candidates := []string{ClaimName, ClaimWSName}
	if s.displayNameClaimType != "" {
		candidates = append([]string{s.displayNameClaimType}, candidates...)
	}

	for _, typ := range candidates {
		if c, ok := FindClaim(claims, typ); ok {
			return c.Value
		}
	}
	return user.GetUserName()
}

// sessionClaims are the claims attached to an authenticate result.
func (s *UserService[U, K]) sessionClaims(ctx context.Context, id K) ([]Claim, error) {
	claims := []Claim{}
	if s.enableSecurityStamp && s.stamps != nil {
		stamp, err := s.stamps.GetSecurityStamp(ctx, id)
		if err != nil {
			return nil, storeError(err, "failed to read security stamp")
		}
		if strings.TrimSpace(stamp) != "" {
			claims = append(claims, NewClaim(ClaimSecurityStamp, stamp))
		}
	}
	return claims, nil
}

func (s *UserService[U, K]) signInResult(ctx context.Context, user U, method, provider string) (*AuthenticateResult, error) {
	id := user.GetID()

	claims, err := s.sessionClaims(ctx, id)
	if err != nil {
		return nil, err
	}

	account, err := s.accountClaims(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthenticateResult{
		SubjectID:            FormatSubject(id),
		DisplayName:          s.displayName(user, account),
		Claims:               claims,
		AuthenticationMethod: method,
		IdentityProvider:     provider,
	}, nil
}

func (s *UserService[U, K]) recordAttempt(ctx context.Context, eventType ActivityEventType, attempt loginAttempt, msg *SignInMessage) {
	switch attempt.outcome {
	case OutcomeStoreError, OutcomeCreateFailed, OutcomeLinkFailed, OutcomeReconcileFailed:
		s.logger.Error("authentication failed", "event", eventType, "outcome", attempt.outcome,
			"user_id", attempt.userID, "provider", attempt.provider, "error", attempt.err)
	case OutcomeLockedOut:
		s.logger.Warn("authentication refused for locked account", "event", eventType, "user_id", attempt.userID)
	default:
		s.logger.Debug("authentication attempt", "event", eventType, "outcome", attempt.outcome,
			"user_id", attempt.userID, "provider", attempt.provider)
	}

	evt := ActivityEvent{
		EventType:  eventType,
		Outcome:    attempt.outcome,
		UserID:     attempt.userID,
		UserName:   attempt.userName,
		Provider:   attempt.provider,
		OccurredAt: s.now(),
	}
	if msg != nil {
		evt.ClientID = msg.ClientID
	}
	if attempt.err != nil {
		evt.Metadata = map[string]any{"error": attempt.err.Error()}
	}

	if err := s.activity.Record(ctx, evt); err != nil {
		s.logger.Error("activity sink failed", "event", eventType, "error", err)
	}
}

func storeError(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
