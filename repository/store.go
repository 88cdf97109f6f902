package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/lockout"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store implements the full store contract on top of a bun database. Row
// access goes through Repositories; upserts and counter resets use bun
// directly.
type Store struct {
	db      *bun.DB
	repos   Repositories
	policy  lockout.Policy
	tracker lockout.Tracker
	caps    sts.Capabilities
	logger  sts.Logger
	now     func() time.Time
}

var (
	_ sts.UserStore[*User, uuid.UUID]   = (*Store)(nil)
	_ sts.ClaimStore[uuid.UUID]         = (*Store)(nil)
	_ sts.RoleStore[uuid.UUID]          = (*Store)(nil)
	_ sts.PasswordStore[*User]          = (*Store)(nil)
	_ sts.LockoutStore[uuid.UUID]       = (*Store)(nil)
	_ sts.EmailStore[uuid.UUID]         = (*Store)(nil)
	_ sts.SecurityStampStore[uuid.UUID] = (*Store)(nil)
	_ sts.ConsentRecordStore            = (*Store)(nil)
	_ sts.UserFactory[*User]            = (*Store)(nil)
	_ sts.CapabilityReporter            = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLockoutPolicy sets the policy applied to the failure counter kept on
// the user row.
func WithLockoutPolicy(policy lockout.Policy) Option {
	return func(s *Store) {
		s.policy = policy
	}
}

// WithLockoutTracker moves lockout state out of the database, e.g. into
// Redis. The policy of the tracker applies.
func WithLockoutTracker(tracker lockout.Tracker) Option {
	return func(s *Store) {
		s.tracker = tracker
	}
}

// WithCapabilities narrows the capabilities reported by the store.
func WithCapabilities(caps sts.Capabilities) Option {
	return func(s *Store) {
		s.caps = caps
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

// WithClock overrides the clock used for lockout windows and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store using db. Call CreateSchema before first use.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		repos:  NewRepositories(db),
		policy: lockout.DefaultPolicy(),
		caps:   sts.AllCapabilities(),
		logger: sts.DefaultLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// DB returns the underlying database.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Repositories returns the repositories the store reads and writes through.
func (s *Store) Repositories() Repositories {
	return s.repos
}

// Capabilities implements sts.CapabilityReporter.
func (s *Store) Capabilities() sts.Capabilities {
	return s.caps
}

// NewUser implements sts.UserFactory.
func (s *Store) NewUser(userName string) *User {
	return &User{UserName: userName}
}

// Create inserts user, assigning an ID and security stamp when missing. The
// username must be unique ignoring case.
func (s *Store) Create(ctx context.Context, user *User) (sts.OperationResult, error) {
	if user == nil {
		return sts.Failed("user is required"), nil
	}
	if err := user.Validate(); err != nil {
		return sts.Failed(err.Error()), nil
	}

	record := *user
	record.NormalizedUserName = normalize(user.UserName)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.SecurityStamp == "" {
		record.SecurityStamp = uuid.NewString()
	}
	now := s.now()
	record.CreatedAt = now
	record.UpdatedAt = now

	result := sts.Success()
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.repos.Users().GetByIdentifierTx(ctx, tx, record.NormalizedUserName)
		switch {
		case err == nil:
			result = sts.Failed(sts.MsgDuplicateUserName)
			return nil
		case !repository.IsRecordNotFound(err):
			return err
		}

		taken, err := tx.NewSelect().Model((*User)(nil)).Where("id = ?", record.ID).Exists(ctx)
		if err != nil {
			return err
		}
		if taken {
			result = sts.Failed(sts.MsgDuplicateUserID)
			return nil
		}

		_, err = s.repos.Users().CreateTx(ctx, tx, &record)
		return err
	})

	switch {
	case isUniqueViolation(err):
		return sts.Failed(sts.MsgDuplicateUserName), nil
	case err != nil:
		return sts.OperationResult{}, err
	}

	if result.Succeeded {
		user.ID = record.ID
		user.NormalizedUserName = record.NormalizedUserName
		user.SecurityStamp = record.SecurityStamp
	}
	return result, nil
}

// AddLogin links login to the user. A user holds at most one login per
// provider and a login belongs to at most one user. Linking rotates the
// security stamp.
func (s *Store) AddLogin(ctx context.Context, userID uuid.UUID, login sts.ExternalLoginInfo) (sts.OperationResult, error) {
	provider := strings.ToLower(login.Provider)

	result := sts.Success()
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*User)(nil)).Where("id = ?", userID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			result = sts.Failed(sts.MsgUnknownUser)
			return nil
		}

		taken, err := tx.NewSelect().
			Model((*UserLogin)(nil)).
			Where("(user_id = ? AND provider = ?) OR (provider = ? AND provider_id = ?)",
				userID, provider, provider, login.ProviderID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if taken {
			result = sts.Failed(sts.MsgDuplicateExternalLogin)
			return nil
		}

		now := s.now()
		record := &UserLogin{
			ID:         uuid.New(),
			UserID:     userID,
			Provider:   provider,
			ProviderID: login.ProviderID,
			CreatedAt:  now,
		}
		if _, err := s.repos.Logins().CreateTx(ctx, tx, record); err != nil {
			return err
		}

		return s.updateUserTx(ctx, tx, &User{ID: userID, SecurityStamp: uuid.NewString(), UpdatedAt: now})
	})

	switch {
	case isUniqueViolation(err):
		return sts.Failed(sts.MsgDuplicateExternalLogin), nil
	case err != nil:
		return sts.OperationResult{}, err
	}
	return result, nil
}

// FindByID implements sts.UserStore.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*User, bool, error) {
	return foundUser(s.repos.Users().GetByID(ctx, id.String()))
}

// FindByUserName looks a user up by name, ignoring case.
func (s *Store) FindByUserName(ctx context.Context, userName string) (*User, bool, error) {
	return foundUser(s.repos.Users().GetByIdentifier(ctx, normalize(userName)))
}

// FindByLogin returns the user linked to login.
func (s *Store) FindByLogin(ctx context.Context, login sts.ExternalLoginInfo) (*User, bool, error) {
	q := s.db.NewSelect().
		Join("JOIN sts_user_logins AS ul ON ul.user_id = u.id").
		Where("ul.provider = ? AND ul.provider_id = ?", strings.ToLower(login.Provider), login.ProviderID)
	return s.findOne(ctx, q)
}

func (s *Store) findOne(ctx context.Context, q *bun.SelectQuery) (*User, bool, error) {
	user := &User{}
	return foundUser(user, q.Model(user).Limit(1).Scan(ctx))
}

func foundUser(user *User, err error) (*User, bool, error) {
	if repository.IsRecordNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Logins returns the external logins linked to userID. Providers are lower
// case.
func (s *Store) Logins(ctx context.Context, userID uuid.UUID) ([]sts.ExternalLoginInfo, error) {
	var records []UserLogin
	err := s.db.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		Order("created_at", "provider").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]sts.ExternalLoginInfo, 0, len(records))
	for _, r := range records {
		out = append(out, sts.NewExternalLogin(r.Provider, r.ProviderID))
	}
	return out, nil
}

// GetClaims returns the stored claims in insertion order followed by
// given_name and family_name derived from the profile.
func (s *Store) GetClaims(ctx context.Context, userID uuid.UUID) ([]sts.Claim, error) {
	user, found, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return []sts.Claim{}, nil
	}

	var records []UserClaim
	err = s.db.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		Order("id").
		Scan(ctx)
	if repository.IsRecordNotFound(err) {
		err = nil
	}
	if err != nil {
		return nil, err
	}

	claims := make([]sts.Claim, 0, len(records)+2)
	for _, r := range records {
		claims = append(claims, sts.NewClaim(r.Type, r.Value))
	}
	return append(claims, user.derivedClaims()...), nil
}

// AddClaim implements sts.ClaimStore.
func (s *Store) AddClaim(ctx context.Context, userID uuid.UUID, claim sts.Claim) (sts.OperationResult, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return sts.OperationResult{}, err
	}

	result := sts.Success()
	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*User)(nil)).Where("id = ?", userID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			result = sts.Failed(sts.MsgUnknownUser)
			return nil
		}

		_, err = s.repos.Claims().CreateTx(ctx, tx, &UserClaim{
			ID:        id,
			UserID:    userID,
			Type:      claim.Type,
			Value:     claim.Value,
			CreatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return sts.OperationResult{}, err
	}
	return result, nil
}

// GetRoles returns the user's roles in name order.
func (s *Store) GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	roles := make([]string, 0)
	err := s.db.NewSelect().
		Model((*UserRole)(nil)).
		Column("role").
		Where("user_id = ?", userID).
		Order("role").
		Scan(ctx, &roles)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// AddRole grants role to the user. Granting a role twice is a no-op.
func (s *Store) AddRole(ctx context.Context, userID uuid.UUID, role string) (sts.OperationResult, error) {
	if ok, err := s.userExists(ctx, userID); err != nil || !ok {
		return unknownUser(err)
	}

	_, err := s.db.NewInsert().
		Model(&UserRole{UserID: userID, Role: role}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return sts.OperationResult{}, err
	}
	return sts.Success(), nil
}

// CheckPassword compares password against the stored bcrypt hash.
func (s *Store) CheckPassword(ctx context.Context, user *User, password string) (bool, error) {
	if user == nil {
		return false, nil
	}

	stored, ok, err := s.FindByID(ctx, user.ID)
	if err != nil || !ok {
		return false, err
	}
	return sts.CheckPasswordHash(password, stored.PasswordHash)
}

// SetPassword replaces the password hash and rotates the security stamp.
func (s *Store) SetPassword(ctx context.Context, userID uuid.UUID, password string) (sts.OperationResult, error) {
	hash, err := sts.HashPassword(password)
	if err != nil {
		return sts.OperationResult{}, err
	}

	return s.updateUser(ctx, &User{ID: userID, PasswordHash: hash, SecurityStamp: uuid.NewString()})
}

// IsLockedOut implements sts.LockoutStore.
func (s *Store) IsLockedOut(ctx context.Context, userID uuid.UUID) (bool, error) {
	if s.tracker != nil {
		return s.tracker.IsLockedOut(ctx, userID.String())
	}

	user, found, err := s.FindByID(ctx, userID)
	if err != nil || !found {
		return false, err
	}
	now := s.now()
	return user.lockoutState(now, s.failureWindow()).LockedAt(now), nil
}

// ResetAccessFailedCount implements sts.LockoutStore.
func (s *Store) ResetAccessFailedCount(ctx context.Context, userID uuid.UUID) error {
	if s.tracker != nil {
		return s.tracker.Reset(ctx, userID.String())
	}

	_, err := s.db.NewUpdate().
		Model((*User)(nil)).
		Set("access_failed_count = 0").
		Set("lockout_end = NULL").
		Set("last_failed_at = NULL").
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

// AccessFailed counts a failed attempt. Reaching the policy threshold locks
// the account and resets the counter; failures during a lock do not extend
// it.
func (s *Store) AccessFailed(ctx context.Context, userID uuid.UUID) error {
	if s.tracker != nil {
		state, err := s.tracker.RecordFailure(ctx, userID.String())
		if err != nil {
			return err
		}
		s.warnLocked(userID, state)
		return nil
	}

	var state lockout.State
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user := &User{}
		err := tx.NewSelect().Model(user).Where("u.id = ?", userID).Scan(ctx)
		if repository.IsRecordNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		now := s.now()
		state = user.lockoutState(now, s.failureWindow())
		if state.LockedAt(now) {
			return nil
		}

		state.LockedUntil = time.Time{}
		state.Failures++
		if s.policy.Enabled() && state.Failures >= s.policy.MaxFailedAttempts {
			state.Failures = 0
			state.LockedUntil = now.Add(s.policy.LockoutDuration)
		}

		user.AccessFailedCount = state.Failures
		user.LastFailedAt = &now
		user.LockoutEnd = nil
		if !state.LockedUntil.IsZero() {
			until := state.LockedUntil
			user.LockoutEnd = &until
		}
		user.UpdatedAt = now

		_, err = tx.NewUpdate().
			Model(user).
			Column("access_failed_count", "last_failed_at", "lockout_end", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}

	s.warnLocked(userID, state)
	return nil
}

func (s *Store) failureWindow() time.Duration {
	if s.policy.LockoutDuration > 0 {
		return s.policy.LockoutDuration
	}
	return lockout.DefaultPolicy().LockoutDuration
}

func (s *Store) warnLocked(userID uuid.UUID, state lockout.State) {
	if !state.LockedUntil.IsZero() {
		s.logger.Warn("account locked out", "user_id", userID.String(), "locked_until", state.LockedUntil)
	}
}

// GetEmail returns the user's email, empty for unknown users.
func (s *Store) GetEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	user, ok, err := s.FindByID(ctx, userID)
	if err != nil || !ok {
		return "", err
	}
	return user.Email, nil
}

// SetEmail implements sts.EmailStore. An empty email clears the column.
func (s *Store) SetEmail(ctx context.Context, userID uuid.UUID, email string) (sts.OperationResult, error) {
	if email != "" {
		return s.updateUser(ctx, &User{ID: userID, Email: email})
	}

	// updateUser skips zero values
	res, err := s.db.NewUpdate().
		Model((*User)(nil)).
		Set("email = ''").
		Set("updated_at = ?", s.now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return sts.OperationResult{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sts.Failed(sts.MsgUnknownUser), nil
	}
	return sts.Success(), nil
}

// GetSecurityStamp implements sts.SecurityStampStore.
func (s *Store) GetSecurityStamp(ctx context.Context, userID uuid.UUID) (string, error) {
	user, ok, err := s.FindByID(ctx, userID)
	if err != nil || !ok {
		return "", err
	}
	return user.SecurityStamp, nil
}

// RotateSecurityStamp issues a new stamp, invalidating sessions carrying the
// previous one.
func (s *Store) RotateSecurityStamp(ctx context.Context, userID uuid.UUID) (sts.OperationResult, error) {
	return s.updateUser(ctx, &User{ID: userID, SecurityStamp: uuid.NewString()})
}

// FindConsentsBySubject returns the consents of subject ordered by client.
func (s *Store) FindConsentsBySubject(ctx context.Context, subject string) ([]sts.StoredConsent, error) {
	records, err := s.repos.Consents().RawTx(ctx, s.db,
		"SELECT * FROM sts_consents WHERE subject = ? ORDER BY client", subject)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	out := make([]sts.StoredConsent, 0, len(records))
	for _, r := range records {
		out = append(out, r.stored())
	}
	return out, nil
}

// FindConsent implements sts.ConsentRecordStore.
func (s *Store) FindConsent(ctx context.Context, subject, client string) (sts.StoredConsent, bool, error) {
	records, err := s.repos.Consents().RawTx(ctx, s.db,
		"SELECT * FROM sts_consents WHERE subject = ? AND client = ? LIMIT 1", subject, client)
	if repository.IsRecordNotFound(err) || (err == nil && len(records) == 0) {
		return sts.StoredConsent{}, false, nil
	}
	if err != nil {
		return sts.StoredConsent{}, false, err
	}
	return records[0].stored(), true, nil
}

// UpsertConsent creates or replaces the consent for (client, subject).
func (s *Store) UpsertConsent(ctx context.Context, client, subject, scopeList string) error {
	record := &Consent{
		ID:        uuid.New(),
		Client:    client,
		Subject:   subject,
		ScopeList: scopeList,
		UpdatedAt: s.now(),
	}
	if err := record.Validate(); err != nil {
		return err
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (client, subject) DO UPDATE").
		Set("scope_list = EXCLUDED.scope_list").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// RevokeConsent removes the consent for (client, subject) if present.
func (s *Store) RevokeConsent(ctx context.Context, subject, client string) error {
	_, err := s.db.NewDelete().
		Model((*Consent)(nil)).
		Where("subject = ? AND client = ?", subject, client).
		Exec(ctx)
	return err
}

func (s *Store) userExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.db.NewSelect().Model((*User)(nil)).Where("id = ?", userID).Exists(ctx)
}

// updateUser writes the non-zero fields of changes to the row with its ID.
func (s *Store) updateUser(ctx context.Context, changes *User) (sts.OperationResult, error) {
	result := sts.Success()
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*User)(nil)).Where("id = ?", changes.ID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			result = sts.Failed(sts.MsgUnknownUser)
			return nil
		}
		changes.UpdatedAt = s.now()
		return s.updateUserTx(ctx, tx, changes)
	})
	if err != nil {
		return sts.OperationResult{}, err
	}
	return result, nil
}

func (s *Store) updateUserTx(ctx context.Context, tx bun.IDB, changes *User) error {
	_, err := s.repos.Users().UpdateTx(ctx, tx, changes,
		repository.UpdateByID(changes.ID.String()),
		repository.UpdateSkipZeroValues(),
	)
	return err
}

func unknownUser(err error) (sts.OperationResult, error) {
	if err != nil {
		return sts.OperationResult{}, err
	}
	return sts.Failed(sts.MsgUnknownUser), nil
}

// isUniqueViolation matches the messages of the sqlite and postgres drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "23505")
}

func normalize(userName string) string {
	return strings.ToLower(strings.TrimSpace(userName))
}
