package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repositories exposes the generic repositories the Store is built on.
type Repositories interface {
	repository.Validator
	repository.TransactionManager
	Users() repository.Repository[*User]
	Logins() repository.Repository[*UserLogin]
	Claims() repository.Repository[*UserClaim]
	Consents() repository.Repository[*Consent]
}

// NewUsersRepository looks users up by id, or by normalized username through
// GetByIdentifier.
func NewUsersRepository(db *bun.DB) repository.Repository[*User] {
	return repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "normalized_user_name"
		},
	})
}

func NewLoginsRepository(db *bun.DB) repository.Repository[*UserLogin] {
	return repository.NewRepository[*UserLogin](db, repository.ModelHandlers[*UserLogin]{
		NewRecord: func() *UserLogin { return &UserLogin{} },
		GetID: func(l *UserLogin) uuid.UUID {
			if l == nil {
				return uuid.Nil
			}
			return l.ID
		},
		SetID: func(l *UserLogin, id uuid.UUID) {
			if l != nil {
				l.ID = id
			}
		},
	})
}

func NewClaimsRepository(db *bun.DB) repository.Repository[*UserClaim] {
	return repository.NewRepository[*UserClaim](db, repository.ModelHandlers[*UserClaim]{
		NewRecord: func() *UserClaim { return &UserClaim{} },
		GetID: func(c *UserClaim) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *UserClaim, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})
}

func NewConsentsRepository(db *bun.DB) repository.Repository[*Consent] {
	return repository.NewRepository[*Consent](db, repository.ModelHandlers[*Consent]{
		NewRecord: func() *Consent { return &Consent{} },
		GetID: func(c *Consent) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Consent, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})
}

type repos struct {
	db       *bun.DB
	users    repository.Repository[*User]
	logins   repository.Repository[*UserLogin]
	claims   repository.Repository[*UserClaim]
	consents repository.Repository[*Consent]
}

// NewRepositories builds every repository on db.
func NewRepositories(db *bun.DB) Repositories {
	return &repos{
		db:       db,
		users:    NewUsersRepository(db),
		logins:   NewLoginsRepository(db),
		claims:   NewClaimsRepository(db),
		consents: NewConsentsRepository(db),
	}
}

func (r repos) Validate() error {
	switch {
	case r.db == nil:
		return errors.New("repositories require a database")
	case r.users == nil, r.logins == nil, r.claims == nil, r.consents == nil:
		return errors.New("repositories should be initialized")
	}
	return nil
}

func (r repos) MustValidate() {
	if err := r.Validate(); err != nil {
		log.Panic(err)
	}
}

func (r repos) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return r.db.RunInTx(ctx, opts, f)
	}
}

func (r repos) Users() repository.Repository[*User] { return r.users }

func (r repos) Logins() repository.Repository[*UserLogin] { return r.logins }

func (r repos) Claims() repository.Repository[*UserClaim] { return r.claims }

func (r repos) Consents() repository.Repository[*Consent] { return r.consents }
