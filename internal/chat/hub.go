package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/metrics"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/presence"
	"github.com/ageniuscoder/chatsphere/backend/internal/room"
	"github.com/ageniuscoder/chatsphere/backend/internal/session"
	"github.com/samber/lo"
)

// Mutator applies message changes durably and announces them. It is the same
// path the REST handlers use.
type Mutator interface {
	Send(ctx context.Context, requester, chatID int64, kind model.Kind, body string) (*model.Message, error)
	Edit(ctx context.Context, requester, messageID int64, body string) (*model.Message, error)
	Delete(ctx context.Context, requester, messageID int64) (*model.Message, error)
	React(ctx context.Context, requester, messageID int64, emoji string) (*model.Message, error)
}

type ChatGetter interface {
	GetChat(ctx context.Context, id int64) (*model.Chat, error)
}

type Options struct {
	SendBuffer   int
	EventsPerSec float64
	EventsBurst  int
	StoreTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.EventsPerSec <= 0 {
		o.EventsPerSec = 20
	}
	if o.EventsBurst <= 0 {
		o.EventsBurst = 40
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	return o
}

// Hub owns the real-time side: connection lifecycle, inbound event dispatch
// and the registries the broadcaster reads.
type Hub struct {
	Sessions    *session.Registry
	Rooms       *room.Coordinator
	Broadcaster *Broadcaster
	Typing      *presence.Signaler

	messages Mutator
	chats    ChatGetter
	log      *slog.Logger
	opts     Options
}

func NewHub(b *Broadcaster, typing *presence.Signaler, messages Mutator, chats ChatGetter, log *slog.Logger, opts Options) *Hub {
	return &Hub{
		Sessions:    b.Sessions,
		Rooms:       b.Rooms,
		Broadcaster: b,
		Typing:      typing,
		messages:    messages,
		chats:       chats,
		log:         log,
		opts:        opts.withDefaults(),
	}
}

func (h *Hub) register(c *Client) {
	metrics.Connections.Inc()
	h.log.Debug("[hub] connection opened", "conn", c.id, "user_id", c.userID)
}

func (h *Hub) unregister(c *Client) {
	h.Sessions.Unbind(c)
	h.Typing.ClearConnection(c)
	h.Rooms.LeaveAll(c)
	metrics.Connections.Dec()
	h.log.Debug("[hub] connection closed", "conn", c.id, "user_id", c.userID)
}

func (h *Hub) handle(c *Client, in Inbound) {
	if in.Type == TypeSetup {
		h.Sessions.Bind(c.userID, c)
		h.Broadcaster.Send(c, WireEvent{Type: TypeConnected, RequestID: in.RequestID, UserID: c.userID})
		return
	}
	if !h.Sessions.IsBound(c) {
		h.reject(c, in, "setup required", "validation")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.StoreTimeout)
	defer cancel()

	switch model.EventKind(in.Type) {
	case model.EventTyping:
		if !h.joined(c, in.ChatID) {
			h.reject(c, in, "join the chat first", "validation")
			return
		}
		ch, err := h.chats.GetChat(ctx, in.ChatID)
		if err != nil {
			h.fail(c, in, err)
			return
		}
		h.prune(ch)
		if !ch.HasParticipant(c.userID) {
			h.fail(c, in, fmt.Errorf("%w: not a participant of chat %d", model.ErrUnauthorized, in.ChatID))
			return
		}
		h.Typing.SetTyping(in.ChatID, c.userID, c)
		return
	case model.EventStopTyping:
		h.Typing.ClearTyping(in.ChatID, c.userID)
		return
	case model.EventMessageCreated:
		kind, err := model.ParseKind(in.MessageType)
		if err != nil {
			h.fail(c, in, err)
			return
		}
		h.reply(c, in)(h.messages.Send(ctx, c.userID, in.ChatID, kind, in.Content))
		return
	case model.EventMessageEdited:
		h.reply(c, in)(h.messages.Edit(ctx, c.userID, in.MessageID, in.Content))
		return
	case model.EventMessageDeleted:
		h.reply(c, in)(h.messages.Delete(ctx, c.userID, in.MessageID))
		return
	case model.EventReactionChanged:
		h.reply(c, in)(h.messages.React(ctx, c.userID, in.MessageID, in.Emoji))
		return
	}

	switch in.Type {
	case TypeJoinChat:
		ch, err := h.chats.GetChat(ctx, in.ChatID)
		if err != nil {
			h.fail(c, in, err)
			return
		}
		if !ch.HasParticipant(c.userID) {
			h.fail(c, in, fmt.Errorf("%w: not a participant of chat %d", model.ErrUnauthorized, in.ChatID))
			return
		}
		h.Rooms.Join(c, in.ChatID)
		h.Broadcaster.Send(c, WireEvent{Type: TypeAck, RequestID: in.RequestID, ChatID: in.ChatID})
	case TypeLeaveChat:
		h.Typing.ClearTyping(in.ChatID, c.userID)
		h.Rooms.Leave(c, in.ChatID)
		h.Broadcaster.Send(c, WireEvent{Type: TypeAck, RequestID: in.RequestID, ChatID: in.ChatID})
	default:
		h.reject(c, in, fmt.Sprintf("unknown event %q", in.Type), "validation")
	}
}

// Evict drops every connection of userID from the chat's room and ends their
// typing there. Call it when userID stops being a participant.
func (h *Hub) Evict(chatID, userID int64) {
	for _, conn := range h.Sessions.ConnectionsFor(userID) {
		h.Rooms.Leave(conn, chatID)
	}
	h.Typing.ClearTyping(chatID, userID)
}

// prune removes room members that are no longer participants of ch, so typing
// never reaches them.
func (h *Hub) prune(ch *model.Chat) {
	for _, conn := range h.Rooms.MembersOf(ch.ID) {
		if !ch.HasParticipant(conn.UserID()) {
			h.Rooms.Leave(conn, ch.ID)
			h.Typing.ClearTyping(ch.ID, conn.UserID())
		}
	}
}

func (h *Hub) joined(c *Client, chatID int64) bool {
	return lo.Contains(h.Rooms.RoomsOf(c), chatID)
}

// reply acks the originating connection with the canonical message, or reports
// the rule failure. Peers are notified by the Mutator, not here.
func (h *Hub) reply(c *Client, in Inbound) func(*model.Message, error) {
	return func(m *model.Message, err error) {
		if err != nil {
			h.fail(c, in, err)
			return
		}
		h.Broadcaster.Send(c, WireEvent{Type: TypeAck, RequestID: in.RequestID, ChatID: m.ChatID, Message: m})
	}
}

func (h *Hub) fail(c *Client, in Inbound, err error) {
	kind := model.KindOf(err)
	msg := err.Error()
	if kind == "internal" {
		h.log.Error("[hub] event failed", "type", in.Type, "user_id", c.userID, "err", err)
		msg = "internal error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "store timeout"
	}
	h.reject(c, in, msg, kind)
}

func (h *Hub) reject(c *Client, in Inbound, msg, code string) {
	h.Broadcaster.Send(c, WireEvent{Type: TypeError, RequestID: in.RequestID, Error: msg, Code: code})
}
