package sqlite

import (
	"database/sql"

	"github.com/ageniuscoder/chatsphere/backend/internal/storage/sqlstore"
	_ "modernc.org/sqlite"
)

type Sqlite struct {
	Db *sql.DB
	*sqlstore.Store
}

func New(dsn string) (*Sqlite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, err
	}

	// Single connection for SQLite; it also serializes message read-modify-write.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL for better concurrency
	_, _ = db.Exec(`PRAGMA journal_mode=WAL;`)

	// Wait up to 5s if locked
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000;`)

	return &Sqlite{
		Db:    db,
		Store: sqlstore.New(db, sqlstore.SQLite),
	}, nil
}
