package postgres

import (
	_ "embed"

	"github.com/ageniuscoder/chatsphere/backend/internal/storage/sqlstore"
)

//go:embed schema.sql
var schema string

func (s *Postgres) Migrate() error {
	return sqlstore.Migrate(s.Db, schema)
}
