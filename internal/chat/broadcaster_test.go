package chat

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/room"
	"github.com/ageniuscoder/chatsphere/backend/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type captureConn struct {
	id     string
	userID int64
	full   bool

	mu     sync.Mutex
	frames []WireEvent
}

func newCapture(userID int64) *captureConn {
	return &captureConn{id: uuid.NewString(), userID: userID}
}

func (c *captureConn) ID() string    { return c.id }
func (c *captureConn) UserID() int64 { return c.userID }

func (c *captureConn) Deliver(payload []byte) bool {
	if c.full {
		return false
	}
	var evt WireEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		panic(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, evt)
	return true
}

func (c *captureConn) events() []WireEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WireEvent(nil), c.frames...)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newBroadcaster() *Broadcaster {
	return NewBroadcaster(session.NewRegistry(), room.NewCoordinator(), discard())
}

func group(id int64, members ...int64) *model.Chat {
	c := &model.Chat{ID: id, IsGroup: true, Name: "team"}
	for _, m := range members {
		c.Participants = append(c.Participants, model.Identity{ID: m})
	}
	return c
}

func TestBroadcaster_Lifecycle_Skips_All_Origin_Devices(t *testing.T) {
	req := require.New(t)
	b := newBroadcaster()
	alicePhone, aliceLaptop := newCapture(1), newCapture(1)
	bobPhone, bobLaptop := newCapture(2), newCapture(2)
	carol := newCapture(3)
	for _, c := range []*captureConn{alicePhone, aliceLaptop, bobPhone, bobLaptop, carol} {
		b.Sessions.Bind(c.userID, c)
	}

	// Given a group of alice and bob, carol outside it
	chat := group(7, 1, 2)
	m := &model.Message{ID: 70, ChatID: 7, Sender: model.Identity{ID: 1}, Content: model.Text{Body: "hi"}}

	// When alice's edit is published
	n := b.Publish(model.EventMessageEdited, chat, 1, m)

	// Then every bob device gets it, no alice device and not carol
	req.Equal(2, n)
	req.Empty(alicePhone.events())
	req.Empty(aliceLaptop.events())
	req.Empty(carol.events())
	for _, c := range []*captureConn{bobPhone, bobLaptop} {
		events := c.events()
		req.Len(events, 1)
		req.Equal("message_edited", events[0].Type)
		req.Equal(int64(70), events[0].Message.ID)
		req.Equal(int64(1), events[0].UserID)
		req.Nil(events[0].Chat)
	}
}

func TestBroadcaster_Lifecycle_Ignores_Room_Membership(t *testing.T) {
	req := require.New(t)
	b := newBroadcaster()
	bob, carol := newCapture(2), newCapture(3)
	b.Sessions.Bind(bob.userID, bob)
	b.Sessions.Bind(carol.userID, carol)

	// Given carol still sits in room 7 without being a participant
	b.Rooms.Join(carol, 7)
	m := &model.Message{ID: 71, ChatID: 7, Sender: model.Identity{ID: 1}, Content: model.Text{Body: "hi"}}

	// When alice's message is published
	n := b.Publish(model.EventMessageCreated, group(7, 1, 2), 1, m)

	// Then bob gets it without joining the room and carol gets nothing
	req.Equal(1, n)
	req.Len(bob.events(), 1)
	req.Empty(carol.events())
}

func TestBroadcaster_Created_Carries_Chat(t *testing.T) {
	req := require.New(t)
	b := newBroadcaster()
	bob := newCapture(2)
	b.Sessions.Bind(2, bob)

	chat := group(7, 1, 2)
	m := &model.Message{ID: 70, ChatID: 7, Sender: model.Identity{ID: 1}, Content: model.Text{Body: "hi"}}
	chat.LatestMessage = m

	req.Equal(1, b.Publish(model.EventMessageCreated, chat, 1, m))

	events := bob.events()
	req.Len(events, 1)
	req.Equal("new_message", events[0].Type)
	req.NotNil(events[0].Chat)
	req.Equal("team", events[0].Chat.Name)
	req.Nil(events[0].Chat.LatestMessage)
	// The caller's chat is left alone
	req.NotNil(chat.LatestMessage)
}

func TestBroadcaster_Malformed_Chat_Is_Dropped(t *testing.T) {
	req := require.New(t)
	b := newBroadcaster()
	bob := newCapture(2)
	b.Sessions.Bind(2, bob)
	m := &model.Message{ID: 1, Content: model.Text{Body: "x"}}

	tests := []struct {
		name string
		chat *model.Chat
	}{
		{"nil chat", nil},
		{"no participants", &model.Chat{ID: 1, IsGroup: true}},
		{"direct with three", &model.Chat{ID: 1, Participants: []model.Identity{{ID: 1}, {ID: 2}, {ID: 3}}}},
		{"duplicate participant", group(1, 2, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.Zero(t, b.Publish(model.EventMessageCreated, tt.chat, 1, m))
			})
		})
	}
	req.Empty(bob.events())
}

func TestBroadcaster_Offline_Peer_Is_Not_An_Error(t *testing.T) {
	b := newBroadcaster()
	m := &model.Message{ID: 1, Content: model.Text{Body: "x"}}
	require.Zero(t, b.Publish(model.EventMessageDeleted, group(1, 1, 2), 1, m))
}

func TestBroadcaster_Slow_Client_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	b := newBroadcaster()
	slow, fast := newCapture(2), newCapture(3)
	slow.full = true
	b.Sessions.Bind(2, slow)
	b.Sessions.Bind(3, fast)
	m := &model.Message{ID: 1, Content: model.Text{Body: "x"}}

	req.Equal(1, b.Publish(model.EventReactionChanged, group(1, 1, 2, 3), 1, m))
	req.Len(fast.events(), 1)
}

func TestBroadcaster_Rejects_Typing_On_Publish(t *testing.T) {
	b := newBroadcaster()
	bob := newCapture(2)
	b.Sessions.Bind(2, bob)
	require.Zero(t, b.Publish(model.EventTyping, group(1, 1, 2), 1, &model.Message{}))
	require.Empty(t, bob.events())
}

func TestBroadcaster_Typing_Skips_Only_Origin_Connection(t *testing.T) {
	req := require.New(t)
	b := newBroadcaster()
	alicePhone, aliceLaptop := newCapture(1), newCapture(1)
	bob, bobElsewhere := newCapture(2), newCapture(2)
	b.Rooms.Join(alicePhone, 7)
	b.Rooms.Join(aliceLaptop, 7)
	b.Rooms.Join(bob, 7)
	// bob's second device has not joined the room
	b.Sessions.Bind(2, bobElsewhere)

	n := b.PublishTyping(model.EventTyping, 7, 1, alicePhone)

	req.Equal(2, n)
	req.Empty(alicePhone.events())
	req.Len(aliceLaptop.events(), 1)
	req.Empty(bobElsewhere.events())
	events := bob.events()
	req.Len(events, 1)
	req.Equal("typing", events[0].Type)
	req.Equal(int64(7), events[0].ChatID)
	req.Equal(int64(1), events[0].UserID)

	req.Zero(b.PublishTyping(model.EventMessageCreated, 7, 1, alicePhone))
}
