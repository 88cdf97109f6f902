package repository

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Open connects to the sqlite database at dsn, enables foreign keys and
// creates the schema.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Seed creates users that do not exist yet and grants them roles. Existing
// usernames are left untouched.
func Seed(ctx context.Context, store *Store, users []*User, roles map[string][]string) error {
	for _, u := range users {
		existing, found, err := store.FindByUserName(ctx, u.UserName)
		if err != nil {
			return err
		}
		if !found {
			res, err := store.Create(ctx, u)
			if err != nil {
				return err
			}
			if !res.Succeeded {
				return res.Err()
			}
			existing = u
		}

		for _, role := range roles[u.UserName] {
			res, err := store.AddRole(ctx, existing.ID, role)
			if err != nil {
				return err
			}
			if !res.Succeeded {
				return res.Err()
			}
		}
	}
	return nil
}
