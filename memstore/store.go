// Package memstore is an in-memory user store implementing the full store
// contract. State is owned by each Store value; nothing is package global.
// It is meant for samples, tests and single-process setups.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/lockout"
	"github.com/google/uuid"
)

type loginKey struct {
	provider   string
	providerID string
}

func newLoginKey(l sts.ExternalLoginInfo) loginKey {
	return loginKey{provider: strings.ToLower(l.Provider), providerID: l.ProviderID}
}

// Store keeps users, external logins, claims and consents in maps guarded by
// a single RWMutex.
type Store struct {
	mu sync.RWMutex

	users      map[string]*User
	byUserName map[string]string
	logins     map[loginKey]string
	userLogins map[string][]sts.ExternalLoginInfo
	claims     map[string][]sts.Claim
	consents   map[string]map[string]sts.StoredConsent

	tracker lockout.Tracker
	caps    sts.Capabilities
	seed    []*User
	logger  sts.Logger
}

var (
	_ sts.UserStore[*User, string]   = (*Store)(nil)
	_ sts.ClaimStore[string]         = (*Store)(nil)
	_ sts.RoleStore[string]          = (*Store)(nil)
	_ sts.PasswordStore[*User]       = (*Store)(nil)
	_ sts.LockoutStore[string]       = (*Store)(nil)
	_ sts.EmailStore[string]         = (*Store)(nil)
	_ sts.SecurityStampStore[string] = (*Store)(nil)
	_ sts.ConsentRecordStore         = (*Store)(nil)
	_ sts.UserFactory[*User]         = (*Store)(nil)
	_ sts.CapabilityReporter         = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLockoutTracker replaces the default in-memory lockout tracker.
func WithLockoutTracker(tracker lockout.Tracker) Option {
	return func(s *Store) {
		if tracker != nil {
			s.tracker = tracker
		}
	}
}

// WithCapabilities narrows the capabilities reported by the store.
func WithCapabilities(caps sts.Capabilities) Option {
	return func(s *Store) {
		s.caps = caps
	}
}

// WithSeedUsers replaces the sample user with the given users.
func WithSeedUsers(users ...*User) Option {
	return func(s *Store) {
		s.seed = append([]*User{}, users...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger sts.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a store seeded with SampleUser unless WithSeedUsers is given.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		users:      make(map[string]*User),
		byUserName: make(map[string]string),
		logins:     make(map[loginKey]string),
		userLogins: make(map[string][]sts.ExternalLoginInfo),
		claims:     make(map[string][]sts.Claim),
		consents:   make(map[string]map[string]sts.StoredConsent),
		tracker:    lockout.NewMemory(lockout.DefaultPolicy()),
		caps:       sts.AllCapabilities(),
		logger:     sts.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	custom := s.seed != nil
	if !custom {
		s.seed = []*User{SampleUser()}
	}

	for _, u := range s.seed {
		res, err := s.Create(context.Background(), u)
		if err != nil {
			return nil, err
		}
		if !res.Succeeded {
			return nil, res.Err()
		}
	}
	s.logger.Debug("memory store ready", "users", len(s.seed), "custom_seed", custom)

	return s, nil
}

// Capabilities implements sts.CapabilityReporter.
func (s *Store) Capabilities() sts.Capabilities {
	return s.caps
}

// NewUser implements sts.UserFactory.
func (s *Store) NewUser(userName string) *User {
	return &User{UserName: userName}
}

// Create stores user. An empty ID gets a generated one and an empty security
// stamp is initialized. The record is copied; later changes to user are not
// seen by the store.
func (s *Store) Create(ctx context.Context, user *User) (sts.OperationResult, error) {
	if err := ctx.Err(); err != nil {
		return sts.OperationResult{}, err
	}
	if user == nil {
		return sts.Failed("user is required"), nil
	}
	if err := user.Validate(); err != nil {
		return sts.Failed(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := normalize(user.UserName)
	if _, exists := s.byUserName[name]; exists {
		return sts.Failed(sts.MsgDuplicateUserName), nil
	}

	record := user.clone()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if _, exists := s.users[record.ID]; exists {
		return sts.Failed(sts.MsgDuplicateUserID), nil
	}
	if record.SecurityStamp == "" {
		record.SecurityStamp = uuid.NewString()
	}

	s.users[record.ID] = record
	s.byUserName[name] = record.ID
	return sts.Success(), nil
}

// AddLogin links an external login. A user holds at most one login per
// provider and a login belongs to at most one user.
func (s *Store) AddLogin(ctx context.Context, userID string, login sts.ExternalLoginInfo) (sts.OperationResult, error) {
	if err := ctx.Err(); err != nil {
		return sts.OperationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return sts.Failed(sts.MsgUnknownUser), nil
	}

	for _, existing := range s.userLogins[userID] {
		if existing.SameProvider(login) {
			return sts.Failed(sts.MsgDuplicateExternalLogin), nil
		}
	}

	key := newLoginKey(login)
	if _, taken := s.logins[key]; taken {
		return sts.Failed(sts.MsgDuplicateExternalLogin), nil
	}

	s.logins[key] = userID
	s.userLogins[userID] = append(s.userLogins[userID], login)
	user.SecurityStamp = uuid.NewString()
	return sts.Success(), nil
}

// FindByID returns a copy of the user with id.
func (s *Store) FindByID(ctx context.Context, id string) (*User, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, false, nil
	}
	return user.clone(), true, nil
}

// FindByUserName looks a user up by name, ignoring case.
func (s *Store) FindByUserName(ctx context.Context, userName string) (*User, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUserName[normalize(userName)]
	if !ok {
		return nil, false, nil
	}
	return s.users[id].clone(), true, nil
}

// FindByLogin returns the user linked to login.
func (s *Store) FindByLogin(ctx context.Context, login sts.ExternalLoginInfo) (*User, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.logins[newLoginKey(login)]
	if !ok {
		return nil, false, nil
	}
	user, ok := s.users[id]
	if !ok {
		return nil, false, nil
	}
	return user.clone(), true, nil
}

// Logins returns the external logins linked to userID.
func (s *Store) Logins(ctx context.Context, userID string) ([]sts.ExternalLoginInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]sts.ExternalLoginInfo{}, s.userLogins[userID]...), nil
}

// GetClaims returns the stored claims followed by given_name and family_name
// derived from the profile.
func (s *Store) GetClaims(ctx context.Context, userID string) ([]sts.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := append([]sts.Claim{}, s.claims[userID]...)
	if user, ok := s.users[userID]; ok {
		claims = append(claims, user.derivedClaims()...)
	}
	return claims, nil
}

// AddClaim appends claim to the user's stored claims.
func (s *Store) AddClaim(ctx context.Context, userID string, claim sts.Claim) (sts.OperationResult, error) {
	if err := ctx.Err(); err != nil {
		return sts.OperationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return sts.Failed(sts.MsgUnknownUser), nil
	}
	s.claims[userID] = append(s.claims[userID], claim)
	return sts.Success(), nil
}

// GetRoles implements sts.RoleStore.
func (s *Store) GetRoles(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, user.Roles...), nil
}

// AddRole grants role to the user. Granting a role twice is a no-op.
func (s *Store) AddRole(ctx context.Context, userID, role string) (sts.OperationResult, error) {
	if err := ctx.Err(); err != nil {
		return sts.OperationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return sts.Failed(sts.MsgUnknownUser), nil
	}
	for _, r := range user.Roles {
		if r == role {
			return sts.Success(), nil
		}
	}
	user.Roles = append(user.Roles, role)
	return sts.Success(), nil
}

// CheckPassword compares password against the stored bcrypt hash.
func (s *Store) CheckPassword(ctx context.Context, user *User, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	s.mu.RLock()
	stored, ok := s.users[user.ID]
	var hash string
	if ok {
		hash = stored.PasswordHash
	}
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return sts.CheckPasswordHash(password, hash)
}

// SetPassword replaces the password hash and rotates the security stamp.
func (s *Store) SetPassword(ctx context.Context, userID, password string) (sts.OperationResult, error) {
	if err := ctx.Err(); err != nil {
		return sts.OperationResult{}, err
	}

	hash, err := sts.HashPassword(password)
	if err != nil {
		return sts.OperationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return sts.Failed(sts.MsgUnknownUser), nil
	}
	user.PasswordHash = hash
	user.SecurityStamp = uuid.NewString()
	return sts.Success(), nil
}

// IsLockedOut implements sts.LockoutStore.
func (s *Store) IsLockedOut(ctx context.Context, userID string) (bool, error) {
	return s.tracker.IsLockedOut(ctx, userID)
}

// ResetAccessFailedCount implements sts.LockoutStore.
func (s *Store) ResetAccessFailedCount(ctx context.Context, userID string) error {
	return s.tracker.Reset(ctx, userID)
}

// AccessFailed implements sts.LockoutStore.
func (s *Store) AccessFailed(ctx context.Context, userID string) error {
	state, err := s.tracker.RecordFailure(ctx, userID)
	if err != nil {
		return err
	}
	if !state.LockedUntil.IsZero() {
		s.logger.Warn("account locked out", "user_id", userID, "locked_until", state.LockedUntil)
	}
	return nil
}

// GetEmail returns the user's email, empty for unknown users.
func (s *Store) GetEmail(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, ok := s.users[userID]; ok {
		return user.Email, nil
	}
	return "", nil
}

// SetEmail implements sts.EmailStore.
func (s *Store) SetEmail(ctx context.Context, userID, email string) (sts.OperationResult, error) {
	if err := ctx.Err(); err != nil {
		return sts.OperationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return sts.Failed(sts.MsgUnknownUser), nil
	}
	user.Email = email
	return sts.Success(), nil
}

// GetSecurityStamp implements sts.SecurityStampStore.
func (s *Store) GetSecurityStamp(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, ok := s.users[userID]; ok {
		return user.SecurityStamp, nil
	}
	return "", nil
}

// RotateSecurityStamp issues a new stamp, invalidating sessions carrying the
// previous one.
func (s *Store) RotateSecurityStamp(ctx context.Context, userID string) (sts.OperationResult, error) {
	if err := ctx.Err(); err != nil {
		return sts.OperationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return sts.Failed(sts.MsgUnknownUser), nil
	}
	user.SecurityStamp = uuid.NewString()
	return sts.Success(), nil
}

// FindConsentsBySubject returns the consents of subject ordered by client.
func (s *Store) FindConsentsBySubject(ctx context.Context, subject string) ([]sts.StoredConsent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]sts.StoredConsent, 0, len(s.consents[subject]))
	for _, c := range s.consents[subject] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out, nil
}

// FindConsent implements sts.ConsentRecordStore.
func (s *Store) FindConsent(ctx context.Context, subject, client string) (sts.StoredConsent, bool, error) {
	if err := ctx.Err(); err != nil {
		return sts.StoredConsent{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.consents[subject][client]
	return c, ok, nil
}

// UpsertConsent creates or replaces the consent for (client, subject).
func (s *Store) UpsertConsent(ctx context.Context, client, subject, scopeList string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bySubject, ok := s.consents[subject]
	if !ok {
		bySubject = make(map[string]sts.StoredConsent)
		s.consents[subject] = bySubject
	}
	bySubject[client] = sts.StoredConsent{Client: client, Subject: subject, ScopeList: scopeList}
	return nil
}

// RevokeConsent removes the consent for (client, subject) if present.
func (s *Store) RevokeConsent(ctx context.Context, subject, client string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bySubject, ok := s.consents[subject]; ok {
		delete(bySubject, client)
		if len(bySubject) == 0 {
			delete(s.consents, subject)
		}
	}
	return nil
}

func normalize(userName string) string {
	return strings.ToLower(strings.TrimSpace(userName))
}
