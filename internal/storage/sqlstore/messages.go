package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
)

const messageColumns = `m.id, m.chat_id, m.sender_id, u.username, u.avatar, m.message_type, m.content,
	m.file_url, m.file_name, m.file_size, m.file_mime, m.created_at, m.edited_at, m.is_deleted`

const messageFrom = ` FROM messages m JOIN users u ON u.id = m.sender_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*model.Message, error) {
	var (
		m        model.Message
		kind     string
		body     string
		fileURL  sql.NullString
		fileName sql.NullString
		fileSize sql.NullInt64
		fileMIME sql.NullString
		avatar   sql.NullString
		created  int64
		edited   sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.ChatID, &m.Sender.ID, &m.Sender.Name, &avatar, &kind, &body,
		&fileURL, &fileName, &fileSize, &fileMIME, &created, &edited, &m.IsDeleted)
	if err != nil {
		return nil, err
	}
	m.Sender.Avatar = avatar.String
	m.CreatedAt = fromMicro(created)
	if edited.Valid {
		at := fromMicro(edited.Int64)
		m.EditedAt = &at
	}
	var file *model.File
	if fileURL.Valid && fileURL.String != "" {
		file = &model.File{URL: fileURL.String, Name: fileName.String, Size: fileSize.Int64, MIME: fileMIME.String}
	}
	m.Content, err = model.NewContent(model.Kind(kind), body, file)
	if err != nil {
		return nil, fmt.Errorf("message %d: %w", m.ID, err)
	}
	return &m, nil
}

// contentColumns flattens c into the message_type, content and file_* columns.
func contentColumns(c model.Content) (kind string, body string, url, name, mime sql.NullString, size sql.NullInt64) {
	kind, body = string(c.Kind()), model.Body(c)
	if f := model.FileOf(c); f != nil {
		url = sql.NullString{String: f.URL, Valid: true}
		name = sql.NullString{String: f.Name, Valid: true}
		mime = sql.NullString{String: f.MIME, Valid: f.MIME != ""}
		size = sql.NullInt64{Int64: f.Size, Valid: true}
	}
	return
}

func (s *Store) CreateMessage(ctx context.Context, in storage.NewMessage) (*model.Message, error) {
	var exists int
	if err := s.DB.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM chats WHERE id=?`), in.ChatID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("chat %d: %w", in.ChatID, storage.ErrNotFound)
	}
	kind, body, url, name, mime, size := contentColumns(in.Content)
	var id int64
	err := s.DB.QueryRowContext(ctx, s.q(`INSERT INTO messages
		(chat_id, sender_id, message_type, content, file_url, file_name, file_size, file_mime, created_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		in.ChatID, in.SenderID, kind, body, url, name, size, mime, s.now(), false).Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, id)
}

func (s *Store) getMessage(ctx context.Context, q querier, id int64, lock string) (*model.Message, error) {
	row := q.QueryRowContext(ctx, s.q(`SELECT `+messageColumns+messageFrom+` WHERE m.id=?`+lock), id)
	m, err := scanMessage(row)
	if err != nil {
		return nil, notFound(err)
	}
	if m.Reactions, err = s.reactions(ctx, q, id); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	return s.getMessage(ctx, s.DB, id, "")
}

func (s *Store) reactions(ctx context.Context, q querier, messageID int64) ([]model.Reaction, error) {
	rows, err := q.QueryContext(ctx, s.q(`SELECT user_id, emoji, created_at FROM message_reactions
		WHERE message_id=? ORDER BY created_at, user_id`), messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reaction
	for rows.Next() {
		var r model.Reaction
		var at int64
		if err := rows.Scan(&r.UserID, &r.Emoji, &at); err != nil {
			return nil, err
		}
		r.CreatedAt = fromMicro(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateMessage reads the row under a transaction (row lock on postgres, the
// single connection on sqlite), applies fn and writes the whole message back.
func (s *Store) UpdateMessage(ctx context.Context, id int64, fn storage.Mutation) (*model.Message, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := s.getMessage(ctx, tx, id, s.d.ForUpdate)
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return nil, err
	}

	kind, body, url, name, mime, size := contentColumns(m.Content)
	var edited sql.NullInt64
	if m.EditedAt != nil {
		edited = sql.NullInt64{Int64: m.EditedAt.UTC().UnixMicro(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE messages SET message_type=?, content=?, file_url=?, file_name=?,
		file_size=?, file_mime=?, edited_at=?, is_deleted=? WHERE id=?`),
		kind, body, url, name, size, mime, edited, m.IsDeleted, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM message_reactions WHERE message_id=?`), id); err != nil {
		return nil, err
	}
	for _, r := range m.Reactions {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
			VALUES (?, ?, ?, ?)`), id, r.UserID, r.Emoji, r.CreatedAt.UTC().UnixMicro()); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID int64) ([]model.Message, error) {
	var exists int
	if err := s.DB.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM chats WHERE id=?`), chatID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("chat %d: %w", chatID, storage.ErrNotFound)
	}

	rows, err := s.DB.QueryContext(ctx, s.q(`SELECT `+messageColumns+messageFrom+`
		WHERE m.chat_id=? ORDER BY m.created_at, m.id`), chatID)
	if err != nil {
		return nil, err
	}
	var list []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// sqlite runs on one connection, so reactions are read after the cursor is closed.
	for i := range list {
		if list[i].Reactions, err = s.reactions(ctx, s.DB, list[i].ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}
