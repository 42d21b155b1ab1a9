package postgres

import (
	"database/sql"

	"github.com/ageniuscoder/chatsphere/backend/internal/storage/sqlstore"
	_ "github.com/lib/pq"
)

type Postgres struct {
	Db *sql.DB
	*sqlstore.Store
}

func New(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{
		Db:    db,
		Store: sqlstore.New(db, sqlstore.Postgres),
	}, nil
}
