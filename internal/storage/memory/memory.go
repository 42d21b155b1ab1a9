// Package memory is an in-process storage.Store. Each message carries its own
// lock so UpdateMessage is an atomic read-modify-write per message id.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
	"github.com/samber/lo"
)

type messageEntry struct {
	mu sync.Mutex
	m  *model.Message
}

type chatRow struct {
	id           int64
	isGroup      bool
	name         string
	participants []int64
	admins       map[int64]bool
	latestID     int64
	createdAt    time.Time
}

type Store struct {
	Now func() time.Time

	mu       sync.RWMutex
	nextID   int64
	users    map[int64]*storage.User
	byName   map[string]int64
	chats    map[int64]*chatRow
	messages map[int64]*messageEntry
	byChat   map[int64][]int64
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		Now:      time.Now,
		users:    make(map[int64]*storage.User),
		byName:   make(map[string]int64),
		chats:    make(map[int64]*chatRow),
		messages: make(map[int64]*messageEntry),
		byChat:   make(map[int64][]int64),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) identity(id int64) model.Identity {
	if u, ok := s.users[id]; ok {
		return u.Identity
	}
	return model.Identity{ID: id}
}

// Users

func (s *Store) CreateUser(_ context.Context, name, passwordHash string) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := s.byName[key]; ok {
		return nil, storage.ErrConflict
	}
	u := &storage.User{Identity: model.Identity{ID: s.id(), Name: name}, PasswordHash: passwordHash}
	s.users[u.ID] = u
	s.byName[key] = u.ID
	ident := u.Identity
	return &ident, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	ident := u.Identity
	return &ident, nil
}

func (s *Store) GetUserByName(_ context.Context, name string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) SearchUsers(_ context.Context, query string, limit int) ([]model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var out []model.Identity
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Name), q) {
			out = append(out, u.Identity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Chats

func (s *Store) chat(row *chatRow) *model.Chat {
	c := &model.Chat{
		ID:           row.id,
		IsGroup:      row.isGroup,
		Name:         row.name,
		Participants: lo.Map(row.participants, func(id int64, _ int) model.Identity { return s.identity(id) }),
		CreatedAt:    row.createdAt,
	}
	if e, ok := s.messages[row.latestID]; ok {
		e.mu.Lock()
		c.LatestMessage = e.m.Clone()
		e.mu.Unlock()
	}
	return c
}

func (s *Store) GetChat(_ context.Context, id int64) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.chats[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.chat(row), nil
}

func (s *Store) CreateChat(_ context.Context, in storage.NewChat) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := lo.Uniq(in.ParticipantIDs)
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
		}
	}
	row := &chatRow{
		id:           s.id(),
		isGroup:      in.IsGroup,
		name:         in.Name,
		participants: ids,
		admins:       map[int64]bool{},
		createdAt:    s.Now().UTC(),
	}
	if in.AdminID != 0 {
		row.admins[in.AdminID] = true
	}
	s.chats[row.id] = row
	return s.chat(row), nil
}

func (s *Store) FindDirectChat(_ context.Context, a, b int64) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.chats {
		if !row.isGroup && lo.Contains(row.participants, a) && lo.Contains(row.participants, b) {
			return s.chat(row), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListChatsFor(_ context.Context, userID int64) ([]model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Chat
	for _, row := range s.chats {
		if lo.Contains(row.participants, userID) {
			out = append(out, *s.chat(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) IsAdmin(_ context.Context, chatID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.chats[chatID]
	if !ok {
		return false, storage.ErrNotFound
	}
	return row.admins[userID], nil
}

func (s *Store) AddParticipant(_ context.Context, chatID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.chats[chatID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	if !lo.Contains(row.participants, userID) {
		row.participants = append(row.participants, userID)
	}
	return nil
}

func (s *Store) RemoveParticipant(_ context.Context, chatID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.chats[chatID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := storage.CheckRemoval(chatID, row.isGroup, len(row.participants), lo.Contains(row.participants, userID)); err != nil {
		return err
	}
	row.participants = lo.Without(row.participants, userID)
	delete(row.admins, userID)
	return nil
}

func (s *Store) UpdateChatLatestMessage(_ context.Context, chatID int64, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.chats[chatID]
	if !ok {
		return storage.ErrNotFound
	}
	row.latestID = m.ID
	return nil
}

// Messages

func (s *Store) CreateMessage(_ context.Context, in storage.NewMessage) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[in.ChatID]; !ok {
		return nil, fmt.Errorf("chat %d: %w", in.ChatID, storage.ErrNotFound)
	}
	m := &model.Message{
		ID:        s.id(),
		ChatID:    in.ChatID,
		Sender:    s.identity(in.SenderID),
		Content:   in.Content,
		CreatedAt: s.Now().UTC(),
	}
	s.messages[m.ID] = &messageEntry{m: m}
	s.byChat[in.ChatID] = append(s.byChat[in.ChatID], m.ID)
	return m.Clone(), nil
}

func (s *Store) entry(id int64) (*messageEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.messages[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) GetMessage(_ context.Context, id int64) (*model.Message, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m.Clone(), nil
}

func (s *Store) UpdateMessage(_ context.Context, id int64, fn storage.Mutation) (*model.Message, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.m.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	e.m = next
	return next.Clone(), nil
}

func (s *Store) ListMessages(_ context.Context, chatID int64) ([]model.Message, error) {
	s.mu.RLock()
	ids, ok := s.byChat[chatID]
	_, chatOK := s.chats[chatID]
	entries := lo.Map(ids, func(id int64, _ int) *messageEntry { return s.messages[id] })
	s.mu.RUnlock()
	if !ok && !chatOK {
		return nil, storage.ErrNotFound
	}
	out := make([]model.Message, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, *e.m.Clone())
		e.mu.Unlock()
	}
	return out, nil
}
