package presence

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/session"
	"github.com/stretchr/testify/require"
)

type published struct {
	kind   model.EventKind
	chatID int64
	userID int64
	origin string
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) PublishTyping(kind model.EventKind, chatID, userID int64, origin session.Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := ""
	if origin != nil {
		id = origin.ID()
	}
	r.events = append(r.events, published{kind, chatID, userID, id})
	return 1
}

func (r *recorder) count(kind model.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

type conn string

func (c conn) ID() string            { return string(c) }
func (c conn) UserID() int64         { return 1 }
func (c conn) Deliver(_ []byte) bool { return true }

func newSignaler(window time.Duration) (*Signaler, *recorder) {
	rec := &recorder{}
	return NewSignaler(rec, window, slog.New(slog.NewTextHandler(io.Discard, nil))), rec
}

func TestSignaler_Expiry_Emits_Stop_Once(t *testing.T) {
	req := require.New(t)
	s, rec := newSignaler(30 * time.Millisecond)

	// When a user starts typing and goes quiet
	s.SetTyping(10, 1, conn("a"))

	// Then typing is broadcast and stop_typing follows exactly once
	req.Equal(1, rec.count(model.EventTyping))
	req.Eventually(func() bool { return rec.count(model.EventStopTyping) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	req.Equal(1, rec.count(model.EventStopTyping))
	req.False(s.IsTyping(10, 1))
}

func TestSignaler_Refresh_Replaces_Timer(t *testing.T) {
	req := require.New(t)
	s, rec := newSignaler(60 * time.Millisecond)

	// When the user keeps typing past the first window
	s.SetTyping(10, 1, conn("a"))
	for i := 0; i < 4; i++ {
		time.Sleep(25 * time.Millisecond)
		s.SetTyping(10, 1, conn("a"))
	}

	// Then nothing expired and typing was announced once
	req.True(s.IsTyping(10, 1))
	req.Equal(1, rec.count(model.EventTyping))
	req.Equal(0, rec.count(model.EventStopTyping))

	// And the superseded timers never fire an extra stop
	req.Eventually(func() bool { return rec.count(model.EventStopTyping) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)
	req.Equal(1, rec.count(model.EventStopTyping))
}

func TestSignaler_Clear_Cancels_Expiry(t *testing.T) {
	req := require.New(t)
	s, rec := newSignaler(30 * time.Millisecond)

	s.SetTyping(10, 1, conn("a"))
	s.ClearTyping(10, 1)
	req.Equal(1, rec.count(model.EventStopTyping))

	// Then the pending expiry does not produce a second stop
	time.Sleep(60 * time.Millisecond)
	req.Equal(1, rec.count(model.EventStopTyping))

	// And clearing an idle pair is silent
	s.ClearTyping(10, 1)
	req.Equal(1, rec.count(model.EventStopTyping))
}

func TestSignaler_Pairs_Are_Independent(t *testing.T) {
	req := require.New(t)
	s, rec := newSignaler(time.Minute)
	defer s.Stop()

	s.SetTyping(10, 1, conn("a"))
	s.SetTyping(10, 2, conn("b"))
	s.SetTyping(11, 1, conn("a"))
	req.Equal(3, rec.count(model.EventTyping))

	s.ClearTyping(10, 1)
	req.False(s.IsTyping(10, 1))
	req.True(s.IsTyping(10, 2))
	req.True(s.IsTyping(11, 1))
}

func TestSignaler_ClearConnection(t *testing.T) {
	req := require.New(t)
	s, rec := newSignaler(time.Minute)
	defer s.Stop()

	s.SetTyping(10, 1, conn("a"))
	s.SetTyping(11, 1, conn("a"))
	s.SetTyping(10, 2, conn("b"))

	// When connection a drops
	s.ClearConnection(conn("a"))

	// Then its two episodes end, b keeps typing
	req.Equal(2, rec.count(model.EventStopTyping))
	req.True(s.IsTyping(10, 2))
	req.False(s.IsTyping(11, 1))
}
