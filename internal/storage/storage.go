// Package storage defines the document store the chat core consumes. The store
// is the only source of truth for users, chats and messages.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
)

var (
	ErrNotFound = fmt.Errorf("storage: %w", model.ErrNotFound)
	ErrConflict = errors.New("storage: already exists")
)

// Mutation edits a message in place. Returning an error aborts the update and
// nothing is written.
type Mutation func(m *model.Message) error

type NewMessage struct {
	ChatID   int64
	SenderID int64
	Content  model.Content
}

type NewChat struct {
	IsGroup        bool
	Name           string
	ParticipantIDs []int64
	AdminID        int64
}

type User struct {
	model.Identity
	PasswordHash string
}

type Store interface {
	MessageStore
	ChatStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, in NewMessage) (*model.Message, error)
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	// UpdateMessage applies fn as one atomic read-modify-write on the current
	// version of the message and returns the stored result.
	UpdateMessage(ctx context.Context, id int64, fn Mutation) (*model.Message, error)
	ListMessages(ctx context.Context, chatID int64) ([]model.Message, error)
}

type ChatStore interface {
	GetChat(ctx context.Context, id int64) (*model.Chat, error)
	UpdateChatLatestMessage(ctx context.Context, chatID int64, m *model.Message) error
	CreateChat(ctx context.Context, in NewChat) (*model.Chat, error)
	// FindDirectChat returns the direct chat between a and b, or ErrNotFound.
	FindDirectChat(ctx context.Context, a, b int64) (*model.Chat, error)
	ListChatsFor(ctx context.Context, userID int64) ([]model.Chat, error)
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	AddParticipant(ctx context.Context, chatID, userID int64) error
	// RemoveParticipant fails with model.ErrValidation when the removal would
	// leave the chat malformed (see CheckRemoval).
	RemoveParticipant(ctx context.Context, chatID, userID int64) error
}

// CheckRemoval reports whether userID may leave a chat with the given shape.
// Direct chats keep exactly their two participants and a group never becomes
// empty.
func CheckRemoval(chatID int64, isGroup bool, participants int, member bool) error {
	switch {
	case !member:
		return fmt.Errorf("chat %d participant: %w", chatID, ErrNotFound)
	case !isGroup:
		return fmt.Errorf("%w: cannot leave direct chat %d", model.ErrValidation, chatID)
	case participants <= 1:
		return fmt.Errorf("%w: last participant cannot leave chat %d", model.ErrValidation, chatID)
	}
	return nil
}

type UserStore interface {
	CreateUser(ctx context.Context, name, passwordHash string) (*model.Identity, error)
	GetUser(ctx context.Context, id int64) (*model.Identity, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]model.Identity, error)
}
