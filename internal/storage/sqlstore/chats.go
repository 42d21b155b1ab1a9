package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
	"github.com/samber/lo"
)

func (s *Store) GetChat(ctx context.Context, id int64) (*model.Chat, error) {
	var (
		c        model.Chat
		name     sql.NullString
		latestID sql.NullInt64
		created  int64
	)
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT id, name, is_group, latest_message_id, created_at
		FROM chats WHERE id=?`), id).Scan(&c.ID, &name, &c.IsGroup, &latestID, &created)
	if err != nil {
		return nil, notFound(err)
	}
	c.Name = name.String
	c.CreatedAt = fromMicro(created)

	rows, err := s.DB.QueryContext(ctx, s.q(`SELECT u.id, u.username, u.avatar FROM participants p
		JOIN users u ON u.id = p.user_id WHERE p.chat_id=? ORDER BY p.joined_at, u.id`), id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var ident model.Identity
		var avatar sql.NullString
		if err := rows.Scan(&ident.ID, &ident.Name, &avatar); err != nil {
			rows.Close()
			return nil, err
		}
		ident.Avatar = avatar.String
		c.Participants = append(c.Participants, ident)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if latestID.Valid {
		m, err := s.GetMessage(ctx, latestID.Int64)
		if err != nil {
			return nil, err
		}
		c.LatestMessage = m
	}
	return &c, nil
}

func (s *Store) UpdateChatLatestMessage(ctx context.Context, chatID int64, m *model.Message) error {
	res, err := s.DB.ExecContext(ctx, s.q(`UPDATE chats SET latest_message_id=? WHERE id=?`), m.ID, chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateChat(ctx context.Context, in storage.NewChat) (*model.Chat, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var name sql.NullString
	if in.Name != "" {
		name = sql.NullString{String: in.Name, Valid: true}
	}
	var id int64
	now := s.now()
	if err := tx.QueryRowContext(ctx, s.q(`INSERT INTO chats (name, is_group, created_at) VALUES (?, ?, ?) RETURNING id`),
		name, in.IsGroup, now).Scan(&id); err != nil {
		return nil, err
	}
	for _, uid := range lo.Uniq(in.ParticipantIDs) {
		var n int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM users WHERE id=?`), uid).Scan(&n); err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("user %d: %w", uid, storage.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO participants (chat_id, user_id, is_admin, joined_at) VALUES (?, ?, ?, ?)`),
			id, uid, uid == in.AdminID, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetChat(ctx, id)
}

func (s *Store) FindDirectChat(ctx context.Context, a, b int64) (*model.Chat, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT c.id FROM chats c
		JOIN participants p1 ON p1.chat_id=c.id AND p1.user_id=?
		JOIN participants p2 ON p2.chat_id=c.id AND p2.user_id=?
		WHERE c.is_group=? LIMIT 1`), a, b, false).Scan(&id)
	if err != nil {
		return nil, notFound(err)
	}
	return s.GetChat(ctx, id)
}

func (s *Store) ListChatsFor(ctx context.Context, userID int64) ([]model.Chat, error) {
	rows, err := s.DB.QueryContext(ctx, s.q(`SELECT c.id FROM chats c
		JOIN participants p ON p.chat_id = c.id
		WHERE p.user_id=? ORDER BY c.created_at DESC, c.id DESC`), userID)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	list := make([]model.Chat, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetChat(ctx, id)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, nil
}

func (s *Store) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM participants WHERE chat_id=? AND user_id=? AND is_admin=?`),
		chatID, userID, true).Scan(&n)
	return n > 0, err
}

func (s *Store) AddParticipant(ctx context.Context, chatID, userID int64) error {
	var n int
	if err := s.DB.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM participants WHERE chat_id=? AND user_id=?`),
		chatID, userID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := s.DB.ExecContext(ctx, s.q(`INSERT INTO participants (chat_id, user_id, is_admin, joined_at) VALUES (?, ?, ?, ?)`),
		chatID, userID, false, s.now())
	return err
}

// RemoveParticipant locks the chat row so concurrent leaves cannot empty it.
func (s *Store) RemoveParticipant(ctx context.Context, chatID, userID int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var isGroup bool
	if err := tx.QueryRowContext(ctx, s.q(`SELECT is_group FROM chats WHERE id=?`+s.d.LockRow), chatID).Scan(&isGroup); err != nil {
		return notFound(err)
	}
	var count, member int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(1), COALESCE(SUM(CASE WHEN user_id=? THEN 1 ELSE 0 END), 0)
		FROM participants WHERE chat_id=?`), userID, chatID).Scan(&count, &member); err != nil {
		return err
	}
	if err := storage.CheckRemoval(chatID, isGroup, count, member > 0); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM participants WHERE chat_id=? AND user_id=?`), chatID, userID); err != nil {
		return err
	}
	return tx.Commit()
}
