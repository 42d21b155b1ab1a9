package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
)

func (s *Store) CreateUser(ctx context.Context, name, passwordHash string) (*model.Identity, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM users WHERE LOWER(username)=?`),
		strings.ToLower(name)).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, storage.ErrConflict
	}
	var id int64
	if err := s.DB.QueryRowContext(ctx, s.q(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id`),
		name, passwordHash, s.now()).Scan(&id); err != nil {
		return nil, err
	}
	return &model.Identity{ID: id, Name: name}, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.Identity, error) {
	var ident model.Identity
	var avatar sql.NullString
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT id, username, avatar FROM users WHERE id=?`), id).
		Scan(&ident.ID, &ident.Name, &avatar)
	if err != nil {
		return nil, notFound(err)
	}
	ident.Avatar = avatar.String
	return &ident, nil
}

func (s *Store) GetUserByName(ctx context.Context, name string) (*storage.User, error) {
	var u storage.User
	var avatar sql.NullString
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT id, username, avatar, password_hash FROM users WHERE LOWER(username)=?`),
		strings.ToLower(name)).Scan(&u.ID, &u.Name, &avatar, &u.PasswordHash)
	if err != nil {
		return nil, notFound(err)
	}
	u.Avatar = avatar.String
	return &u, nil
}

func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]model.Identity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.QueryContext(ctx, s.q(`SELECT id, username, avatar FROM users
		WHERE LOWER(username) LIKE ? ORDER BY id LIMIT ?`), "%"+strings.ToLower(query)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Identity
	for rows.Next() {
		var ident model.Identity
		var avatar sql.NullString
		if err := rows.Scan(&ident.ID, &ident.Name, &avatar); err != nil {
			return nil, err
		}
		ident.Avatar = avatar.String
		out = append(out, ident)
	}
	return out, rows.Err()
}
