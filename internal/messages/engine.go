package messages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage"
	"github.com/samber/lo"
)

const (
	DefaultEditWindow   = 10 * time.Minute
	DefaultDeleteWindow = 10 * time.Minute
	Tombstone           = "This message was deleted"
)

type Store interface {
	storage.MessageStore
	GetChat(ctx context.Context, id int64) (*model.Chat, error)
	UpdateChatLatestMessage(ctx context.Context, chatID int64, m *model.Message) error
}

// Engine decides which message mutations are allowed and applies them.
//
// A message moves Active -> Edited* -> Deleted. Edits and deletes belong to the
// sender and are only allowed while now - CreatedAt is within the window; the
// window is always measured from creation, never from the last edit. Deleted
// is terminal. Reactions toggle per (user, emoji) with no window.
type Engine struct {
	Store        Store
	Now          func() time.Time
	EditWindow   time.Duration
	DeleteWindow time.Duration
}

func NewEngine(store Store) *Engine {
	return &Engine{
		Store:        store,
		Now:          time.Now,
		EditWindow:   DefaultEditWindow,
		DeleteWindow: DefaultDeleteWindow,
	}
}

func (e *Engine) List(ctx context.Context, requester, chatID int64) ([]model.Message, error) {
	if _, err := e.participantChat(ctx, requester, chatID); err != nil {
		return nil, err
	}
	return e.Store.ListMessages(ctx, chatID)
}

// Create stores a new message and makes it the chat's latest message.
func (e *Engine) Create(ctx context.Context, requester, chatID int64, content model.Content) (*model.Message, *model.Chat, error) {
	if chatID <= 0 {
		return nil, nil, fmt.Errorf("%w: chat id is required", model.ErrValidation)
	}
	content, err := normalize(content)
	if err != nil {
		return nil, nil, err
	}
	chat, err := e.participantChat(ctx, requester, chatID)
	if err != nil {
		return nil, nil, err
	}

	m, err := e.Store.CreateMessage(ctx, storage.NewMessage{ChatID: chatID, SenderID: requester, Content: content})
	if err != nil {
		return nil, nil, err
	}
	if err := e.Store.UpdateChatLatestMessage(ctx, chatID, m); err != nil {
		return nil, nil, err
	}
	chat.LatestMessage = m
	return m, chat, nil
}

func (e *Engine) Edit(ctx context.Context, requester, messageID int64, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: content is required", model.ErrValidation)
	}
	return e.Store.UpdateMessage(ctx, messageID, func(m *model.Message) error {
		now := e.Now().UTC()
		if err := e.owned(m, requester, now, e.EditWindow, "edit"); err != nil {
			return err
		}
		if _, ok := m.Content.(model.Text); !ok {
			return fmt.Errorf("%w: only text messages can be edited", model.ErrValidation)
		}
		m.Content = model.Text{Body: body}
		m.EditedAt = &now
		return nil
	})
}

func (e *Engine) Delete(ctx context.Context, requester, messageID int64) (*model.Message, error) {
	return e.Store.UpdateMessage(ctx, messageID, func(m *model.Message) error {
		if err := e.owned(m, requester, e.Now().UTC(), e.DeleteWindow, "delete"); err != nil {
			return err
		}
		m.IsDeleted = true
		m.Content = model.Text{Body: Tombstone}
		return nil
	})
}

// React toggles the (requester, emoji) reaction. Any participant may react,
// the sender included.
func (e *Engine) React(ctx context.Context, requester, messageID int64, emoji string) (*model.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji is required", model.ErrValidation)
	}
	// The chat of a message never changes, so membership is checked up front
	// and the store transaction only covers the message itself.
	current, err := e.Store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := e.participantChat(ctx, requester, current.ChatID); err != nil {
		return nil, err
	}

	return e.Store.UpdateMessage(ctx, messageID, func(m *model.Message) error {
		if m.IsDeleted {
			return fmt.Errorf("%w: message %d is deleted", model.ErrValidation, m.ID)
		}
		if m.HasReaction(requester, emoji) {
			m.Reactions = lo.Reject(m.Reactions, func(r model.Reaction, _ int) bool {
				return r.UserID == requester && r.Emoji == emoji
			})
			return nil
		}
		m.Reactions = append(m.Reactions, model.Reaction{UserID: requester, Emoji: emoji, CreatedAt: e.Now().UTC()})
		return nil
	})
}

// owned checks, in order: sender, tombstone, window.
func (e *Engine) owned(m *model.Message, requester int64, now time.Time, window time.Duration, op string) error {
	if m.Sender.ID != requester {
		return fmt.Errorf("%w: only the sender can %s message %d", model.ErrUnauthorized, op, m.ID)
	}
	if m.IsDeleted {
		return fmt.Errorf("%w: message %d is deleted", model.ErrValidation, m.ID)
	}
	if now.Sub(m.CreatedAt) > window {
		return fmt.Errorf("%w: message %s limit of %s exceeded", model.ErrWindowExpired, op, window)
	}
	return nil
}

func (e *Engine) participantChat(ctx context.Context, requester, chatID int64) (*model.Chat, error) {
	chat, err := e.Store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(requester) {
		return nil, fmt.Errorf("%w: not a participant of chat %d", model.ErrUnauthorized, chatID)
	}
	return chat, nil
}

// normalize validates content for creation and trims text bodies.
func normalize(c model.Content) (model.Content, error) {
	switch v := c.(type) {
	case nil:
		return nil, fmt.Errorf("%w: content is required", model.ErrValidation)
	case model.Text:
		v.Body = strings.TrimSpace(v.Body)
		if v.Body == "" {
			return nil, fmt.Errorf("%w: content is required", model.ErrValidation)
		}
		return v, nil
	case model.Image:
		return v, checkFile(v.File)
	case model.Audio:
		return v, checkFile(v.File)
	case model.Document:
		return v, checkFile(v.File)
	default:
		panic(fmt.Sprintf("messages: unhandled content %T", c))
	}
}

func checkFile(f model.File) error {
	if f.URL == "" || strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: file url and name are required", model.ErrValidation)
	}
	return nil
}
