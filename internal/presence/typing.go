// Package presence holds transient typing state. Nothing here is persisted;
// a typing signal lives until it is refreshed, cleared or expires.
package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/metrics"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/session"
)

const DefaultWindow = 3 * time.Second

type Publisher interface {
	PublishTyping(kind model.EventKind, chatID, userID int64, origin session.Conn) int
}

type key struct {
	chatID int64
	userID int64
}

type signal struct {
	timer  *time.Timer
	gen    uint64
	origin session.Conn
}

// Signaler broadcasts typing and stop_typing per (chat, user). Every typing
// episode ends with exactly one stop_typing, whether by clear or by expiry.
type Signaler struct {
	Window time.Duration
	pub    Publisher
	log    *slog.Logger

	mu     sync.Mutex
	gen    uint64
	active map[key]*signal
}

func NewSignaler(pub Publisher, window time.Duration, log *slog.Logger) *Signaler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Signaler{
		Window: window,
		pub:    pub,
		log:    log,
		active: make(map[key]*signal),
	}
}

// SetTyping starts a typing episode or refreshes the running one. Only the
// start of an episode is broadcast.
func (s *Signaler) SetTyping(chatID, userID int64, origin session.Conn) {
	k := key{chatID, userID}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	timer := time.AfterFunc(s.Window, func() { s.expire(k, gen) })
	if sig, ok := s.active[k]; ok {
		sig.timer.Stop()
		sig.timer, sig.gen, sig.origin = timer, gen, origin
		s.mu.Unlock()
		return
	}
	s.active[k] = &signal{timer: timer, gen: gen, origin: origin}
	metrics.TypingActive.Inc()
	s.mu.Unlock()

	s.pub.PublishTyping(model.EventTyping, chatID, userID, origin)
}

// ClearTyping ends the episode now. Clearing an idle pair does nothing.
func (s *Signaler) ClearTyping(chatID, userID int64) {
	k := key{chatID, userID}

	s.mu.Lock()
	sig, ok := s.active[k]
	if !ok {
		s.mu.Unlock()
		return
	}
	sig.timer.Stop()
	delete(s.active, k)
	metrics.TypingActive.Dec()
	s.mu.Unlock()

	s.pub.PublishTyping(model.EventStopTyping, chatID, userID, sig.origin)
}

// ClearConnection ends every episode started from conn, used when it disconnects.
func (s *Signaler) ClearConnection(conn session.Conn) {
	type ended struct {
		k      key
		origin session.Conn
	}
	var done []ended

	s.mu.Lock()
	for k, sig := range s.active {
		if sig.origin != nil && sig.origin.ID() == conn.ID() {
			sig.timer.Stop()
			delete(s.active, k)
			metrics.TypingActive.Dec()
			done = append(done, ended{k, sig.origin})
		}
	}
	s.mu.Unlock()

	for _, e := range done {
		s.pub.PublishTyping(model.EventStopTyping, e.k.chatID, e.k.userID, e.origin)
	}
}

func (s *Signaler) expire(k key, gen uint64) {
	s.mu.Lock()
	sig, ok := s.active[k]
	// A refresh or clear raced the timer; the newer state wins.
	if !ok || sig.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.active, k)
	metrics.TypingActive.Dec()
	s.mu.Unlock()

	s.log.Debug("typing expired", "component", "presence", "chat_id", k.chatID, "user_id", k.userID)
	s.pub.PublishTyping(model.EventStopTyping, k.chatID, k.userID, sig.origin)
}

func (s *Signaler) IsTyping(chatID, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key{chatID, userID}]
	return ok
}

// Stop cancels all timers without broadcasting.
func (s *Signaler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, sig := range s.active {
		sig.timer.Stop()
		delete(s.active, k)
		metrics.TypingActive.Dec()
	}
}
