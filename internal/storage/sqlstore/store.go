// Package sqlstore implements storage.Store on database/sql. The sqlite and
// postgres packages open the connection and hand it over with their dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	DB  *sql.DB
	Now func() time.Time
	d   Dialect
}

var _ storage.Store = (*Store)(nil)

func New(db *sql.DB, d Dialect) *Store {
	return &Store{DB: db, Now: time.Now, d: d}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) q(query string) string {
	return s.d.rebind(query)
}

func (s *Store) now() int64 {
	return s.Now().UTC().UnixMicro()
}

// Migrate runs every statement of schema in order.
func Migrate(db *sql.DB, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		st := strings.TrimSpace(stmt)
		if st == "" {
			continue
		}
		if _, err := db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func fromMicro(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
