package messages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ageniuscoder/chatsphere/backend/internal/metrics"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
)

type Publisher interface {
	Publish(kind model.EventKind, chat *model.Chat, originUserID int64, m *model.Message) int
}

// Service applies a mutation through the Engine and, once it is committed,
// announces the canonical message to the chat's peers. Announcing never fails
// the call.
type Service struct {
	Engine    *Engine
	Publisher Publisher
	Log       *slog.Logger
}

func NewService(engine *Engine, pub Publisher, log *slog.Logger) *Service {
	return &Service{Engine: engine, Publisher: pub, Log: log}
}

func (s *Service) List(ctx context.Context, requester, chatID int64) ([]model.Message, error) {
	return s.Engine.List(ctx, requester, chatID)
}

// Send creates a text message. Files go through SendContent after upload.
func (s *Service) Send(ctx context.Context, requester, chatID int64, kind model.Kind, body string) (*model.Message, error) {
	if kind != model.KindText {
		err := fmt.Errorf("%w: %s messages are sent through file upload", model.ErrValidation, kind)
		s.count("send", err)
		return nil, err
	}
	return s.SendContent(ctx, requester, chatID, model.Text{Body: body})
}

func (s *Service) SendContent(ctx context.Context, requester, chatID int64, content model.Content) (*model.Message, error) {
	m, chat, err := s.Engine.Create(ctx, requester, chatID, content)
	s.count("send", err)
	if err != nil {
		return nil, err
	}
	s.Publisher.Publish(model.EventMessageCreated, chat, requester, m)
	return m, nil
}

func (s *Service) Edit(ctx context.Context, requester, messageID int64, body string) (*model.Message, error) {
	m, err := s.Engine.Edit(ctx, requester, messageID, body)
	s.count("edit", err)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, model.EventMessageEdited, requester, m)
	return m, nil
}

func (s *Service) Delete(ctx context.Context, requester, messageID int64) (*model.Message, error) {
	m, err := s.Engine.Delete(ctx, requester, messageID)
	s.count("delete", err)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, model.EventMessageDeleted, requester, m)
	return m, nil
}

func (s *Service) React(ctx context.Context, requester, messageID int64, emoji string) (*model.Message, error) {
	m, err := s.Engine.React(ctx, requester, messageID, emoji)
	s.count("react", err)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, model.EventReactionChanged, requester, m)
	return m, nil
}

func (s *Service) announce(ctx context.Context, kind model.EventKind, requester int64, m *model.Message) {
	chat, err := s.Engine.Store.GetChat(ctx, m.ChatID)
	if err != nil {
		s.Log.Warn("[messages] announce skipped, chat lookup failed", "event", kind, "chat_id", m.ChatID, "err", err)
		return
	}
	s.Publisher.Publish(kind, chat, requester, m)
}

func (s *Service) count(op string, err error) {
	result := "ok"
	if err != nil {
		result = model.KindOf(err)
	}
	metrics.Mutations.WithLabelValues(op, result).Inc()
}
