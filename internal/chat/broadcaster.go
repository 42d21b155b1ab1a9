package chat

import (
	"encoding/json"
	"log/slog"

	"github.com/ageniuscoder/chatsphere/backend/internal/metrics"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/room"
	"github.com/ageniuscoder/chatsphere/backend/internal/session"
)

// Broadcaster delivers events to peer connections. Delivery is best effort:
// no retry, no offline queue, and failures never reach the publisher.
//
// Message lifecycle events go to every connection of every chat participant,
// skipping all connections of the originating identity. Typing events go to
// the chat's room members, skipping only the originating connection.
type Broadcaster struct {
	Sessions *session.Registry
	Rooms    *room.Coordinator
	Log      *slog.Logger
}

func NewBroadcaster(sessions *session.Registry, rooms *room.Coordinator, log *slog.Logger) *Broadcaster {
	return &Broadcaster{Sessions: sessions, Rooms: rooms, Log: log}
}

// Publish announces a committed message change and returns the number of
// connections it was queued on.
func (b *Broadcaster) Publish(kind model.EventKind, c *model.Chat, originUserID int64, m *model.Message) int {
	if !kind.Lifecycle() {
		b.Log.Error("[hub] publish called with non lifecycle event", "event", kind)
		return 0
	}
	if err := c.Validate(); err != nil {
		b.Log.Warn("[hub] dropping event for malformed room", "event", kind, "err", err)
		metrics.Dropped.WithLabelValues(string(kind), "malformed_room").Inc()
		return 0
	}

	evt := WireEvent{Type: string(kind), ChatID: c.ID, UserID: originUserID, Message: m}
	if kind == model.EventMessageCreated {
		ctx := *c
		ctx.LatestMessage = nil
		evt.Chat = &ctx
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		b.Log.Error("[hub] failed to marshal wire event", "event", kind, "err", err)
		return 0
	}

	delivered := 0
	for _, uid := range c.ParticipantIDs() {
		if uid == originUserID {
			continue
		}
		for _, conn := range b.Sessions.ConnectionsFor(uid) {
			if b.deliver(kind, conn, payload) {
				delivered++
			}
		}
	}
	return delivered
}

// PublishTyping relays typing state to the room, excluding only origin.
func (b *Broadcaster) PublishTyping(kind model.EventKind, chatID, userID int64, origin session.Conn) int {
	if kind != model.EventTyping && kind != model.EventStopTyping {
		b.Log.Error("[hub] typing publish with wrong event", "event", kind)
		return 0
	}
	payload, err := json.Marshal(WireEvent{Type: string(kind), ChatID: chatID, UserID: userID})
	if err != nil {
		b.Log.Error("[hub] failed to marshal typing event", "err", err)
		return 0
	}

	delivered := 0
	for _, conn := range b.Rooms.MembersOf(chatID) {
		if origin != nil && conn.ID() == origin.ID() {
			continue
		}
		if b.deliver(kind, conn, payload) {
			delivered++
		}
	}
	return delivered
}

// Send writes one event to a single connection, used for acks and errors.
func (b *Broadcaster) Send(conn session.Conn, evt WireEvent) bool {
	payload, err := json.Marshal(evt)
	if err != nil {
		b.Log.Error("[hub] failed to marshal reply", "type", evt.Type, "err", err)
		return false
	}
	return conn.Deliver(payload)
}

func (b *Broadcaster) deliver(kind model.EventKind, conn session.Conn, payload []byte) bool {
	if conn.Deliver(payload) {
		metrics.Delivered.WithLabelValues(string(kind)).Inc()
		return true
	}
	// slow/broken client → drop
	metrics.Dropped.WithLabelValues(string(kind), "slow_client").Inc()
	b.Log.Warn("[hub] dropped event for slow client", "event", kind, "user_id", conn.UserID(), "conn", conn.ID())
	return false
}
