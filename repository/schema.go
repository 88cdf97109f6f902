package repository

import (
	"context"

	"github.com/uptrace/bun"
)

type uniqueIndex struct {
	model   any
	name    string
	columns []string
}

var uniqueIndexes = []uniqueIndex{
	{(*User)(nil), "sts_users_normalized_user_name_idx", []string{"normalized_user_name"}},
	{(*UserLogin)(nil), "sts_user_logins_provider_idx", []string{"provider", "provider_id"}},
	{(*UserLogin)(nil), "sts_user_logins_user_provider_idx", []string{"user_id", "provider"}},
	{(*Consent)(nil), "sts_consents_client_subject_idx", []string{"client", "subject"}},
}

const userFK = `("user_id") REFERENCES "sts_users" ("id") ON DELETE CASCADE`

// CreateSchema creates the store tables and indexes. It is safe to call on
// every start.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []*bun.CreateTableQuery{
		db.NewCreateTable().Model((*User)(nil)),
		db.NewCreateTable().Model((*UserLogin)(nil)).ForeignKey(userFK),
		db.NewCreateTable().Model((*UserClaim)(nil)).ForeignKey(userFK),
		db.NewCreateTable().Model((*UserRole)(nil)).ForeignKey(userFK),
		db.NewCreateTable().Model((*Consent)(nil)),
	}

	for _, q := range tables {
		if _, err := q.IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	for _, idx := range uniqueIndexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Unique().
			IfNotExists().
			Index(idx.name).
			Column(idx.columns...).
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}
