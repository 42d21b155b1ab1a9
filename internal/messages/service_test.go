package messages

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/stretchr/testify/require"
)

type published struct {
	kind   model.EventKind
	chat   *model.Chat
	origin int64
	msg    *model.Message
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(kind model.EventKind, chat *model.Chat, origin int64, m *model.Message) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{kind: kind, chat: chat, origin: origin, msg: m})
	return 1
}

func (r *recorder) all() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}

func newService(t *testing.T) (*Service, *recorder, *fixture) {
	f := newFixture(t)
	rec := &recorder{}
	return NewService(f.engine, rec, slog.New(slog.NewTextHandler(io.Discard, nil))), rec, f
}

func TestService_Publishes_Committed_Changes(t *testing.T) {
	req := require.New(t)
	svc, rec, f := newService(t)
	ctx := context.Background()

	m, err := svc.Send(ctx, f.alice, f.chat.ID, model.KindText, "hello")
	req.NoError(err)
	_, err = svc.Edit(ctx, f.alice, m.ID, "hello there")
	req.NoError(err)
	_, err = svc.React(ctx, f.bob, m.ID, "👍")
	req.NoError(err)
	_, err = svc.Delete(ctx, f.alice, m.ID)
	req.NoError(err)

	events := rec.all()
	req.Len(events, 4)
	req.Equal(model.EventMessageCreated, events[0].kind)
	req.Equal(model.EventMessageEdited, events[1].kind)
	req.Equal(model.EventReactionChanged, events[2].kind)
	req.Equal(model.EventMessageDeleted, events[3].kind)

	req.Equal(f.alice, events[0].origin)
	req.Equal(f.bob, events[2].origin)
	req.ElementsMatch([]int64{f.alice, f.bob}, events[1].chat.ParticipantIDs())

	// The announced message is the stored version
	req.Equal("hello there", model.Body(events[1].msg.Content))
	req.True(events[3].msg.IsDeleted)
}

func TestService_Rejected_Mutations_Are_Not_Published(t *testing.T) {
	req := require.New(t)
	svc, rec, f := newService(t)
	ctx := context.Background()

	m, err := svc.Send(ctx, f.alice, f.chat.ID, model.KindText, "hello")
	req.NoError(err)

	_, err = svc.Edit(ctx, f.bob, m.ID, "hijack")
	req.ErrorIs(err, model.ErrUnauthorized)
	_, err = svc.Send(ctx, f.carol, f.chat.ID, model.KindText, "intrude")
	req.ErrorIs(err, model.ErrUnauthorized)
	_, err = svc.Send(ctx, f.alice, f.chat.ID, model.KindImage, "photo.png")
	req.ErrorIs(err, model.ErrValidation)

	req.Len(rec.all(), 1)
}
