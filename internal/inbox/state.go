// Package inbox reconciles a client's chat list, open transcript, unread
// counters and notification queue with the live event stream.
package inbox

import (
	"slices"
	"sync"

	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/samber/lo"
)

type BadgeKind int

const (
	BadgeNone BadgeKind = iota
	BadgeNewer
	BadgeNotification
	BadgeUnread
)

func (k BadgeKind) String() string {
	switch k {
	case BadgeUnread:
		return "unread"
	case BadgeNotification:
		return "notification"
	case BadgeNewer:
		return "newer"
	default:
		return "none"
	}
}

type Badge struct {
	Kind   BadgeKind
	Unread int
}

// Entry is one queued notification.
type Entry struct {
	ChatID   int64
	ChatName string
	Message  model.Message
}

// Event is a live lifecycle event as received from the server.
type Event struct {
	Kind    model.EventKind
	Chat    *model.Chat
	Message *model.Message
}

// State is the per-client reconciliation state. The zero value is not usable;
// call New.
//
// For every chat, Unread(chat) is at least the number of queued entries of
// that chat: entries are only queued together with an increment, and every
// reset of the counter also drops the chat's entries.
type State struct {
	mu sync.Mutex

	self       int64
	active     int64
	transcript []model.Message

	unread map[int64]int
	queue  []Entry
	// counted holds, per chat, the ids counted since the chat was last read;
	// readUpTo is the highest id the user has read in each chat.
	counted  map[int64]map[int64]struct{}
	readUpTo map[int64]int64

	names    map[int64]string
	latest   map[int64]int64
	lastSeen map[int64]int64
}

func New(self int64) *State {
	return &State{
		self:     self,
		unread:   make(map[int64]int),
		counted:  make(map[int64]map[int64]struct{}),
		readUpTo: make(map[int64]int64),
		names:    make(map[int64]string),
		latest:   make(map[int64]int64),
		lastSeen: make(map[int64]int64),
	}
}

// Seed folds a chat list snapshot into the state. A chat whose latest message
// came from someone else and that has no local unread state gets an unread
// count of at least one; a snapshot cannot tell how many messages were missed.
func (s *State) Seed(chats []model.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chats {
		s.names[c.ID] = displayName(&c, s.self)
		m := c.LatestMessage
		if m == nil || m.Sender.ID == s.self {
			continue
		}
		s.latest[c.ID] = max(s.latest[c.ID], m.ID)
		if _, ok := s.unread[c.ID]; ok || c.ID == s.active {
			continue
		}
		s.unread[c.ID] = max(s.unread[c.ID], 1)
	}
}

// Apply folds one live event into the state and reports whether a new
// notification was queued.
func (s *State) Apply(evt Event) bool {
	if evt.Message == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := *evt.Message
	if evt.Chat != nil {
		s.names[evt.Chat.ID] = displayName(evt.Chat, s.self)
	}
	switch evt.Kind {
	case model.EventMessageCreated:
		return s.created(m)
	case model.EventMessageEdited, model.EventMessageDeleted, model.EventReactionChanged:
		s.replace(m)
	}
	return false
}

func (s *State) created(m model.Message) bool {
	if m.ChatID == s.active {
		if !lo.ContainsBy(s.transcript, func(t model.Message) bool { return t.ID == m.ID }) {
			s.transcript = append(s.transcript, m)
		}
		s.lastSeen[m.ChatID] = max(s.lastSeen[m.ChatID], m.ID)
		return false
	}
	if m.Sender.ID == s.self {
		return false
	}
	s.latest[m.ChatID] = max(s.latest[m.ChatID], m.ID)
	if m.ID <= s.readUpTo[m.ChatID] {
		return false
	}
	ids := s.counted[m.ChatID]
	if ids == nil {
		ids = make(map[int64]struct{})
		s.counted[m.ChatID] = ids
	}
	if _, dup := ids[m.ID]; dup {
		return false
	}
	ids[m.ID] = struct{}{}
	s.unread[m.ChatID]++
	s.queue = slices.Insert(s.queue, 0, Entry{ChatID: m.ChatID, ChatName: s.names[m.ChatID], Message: m})
	return true
}

func (s *State) replace(m model.Message) {
	for i := range s.transcript {
		if s.transcript[i].ID == m.ID {
			s.transcript[i] = m
		}
	}
	for i := range s.queue {
		if s.queue[i].Message.ID == m.ID {
			s.queue[i].Message = m
		}
	}
}

// Open makes chatID the active chat with the given transcript, clearing its
// unread count and its notifications.
func (s *State) Open(chatID int64, transcript []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = chatID
	s.transcript = slices.Clone(transcript)

	seen := s.latest[chatID]
	for _, m := range transcript {
		seen = max(seen, m.ID)
	}
	s.lastSeen[chatID] = max(s.lastSeen[chatID], seen)
	s.read(chatID, seen)
}

func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = 0
	s.transcript = nil
}

// MarkRead clears the unread count and the notifications of chatID without
// opening it. Other chats are untouched.
func (s *State) MarkRead(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read(chatID, s.latest[chatID])
}

// read resets chatID: its counter, its entries and the ids counted for it.
// Ids up to upTo are treated as read from now on, which replaces the dropped
// ids for deduplication.
func (s *State) read(chatID, upTo int64) {
	s.unread[chatID] = 0
	s.dropChat(chatID)
	for id := range s.counted[chatID] {
		upTo = max(upTo, id)
	}
	delete(s.counted, chatID)
	s.readUpTo[chatID] = max(s.readUpTo[chatID], upTo)
}

// Dismiss removes the notification for messageID. Counters stay.
func (s *State) Dismiss(messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = lo.Reject(s.queue, func(e Entry, _ int) bool { return e.Message.ID == messageID })
}

func (s *State) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
}

func (s *State) dropChat(chatID int64) {
	s.queue = lo.Reject(s.queue, func(e Entry, _ int) bool { return e.ChatID == chatID })
}

func (s *State) Active() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *State) Unread(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[chatID]
}

// Notifications returns the queue, newest first.
func (s *State) Notifications() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queue)
}

func (s *State) Transcript() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transcript)
}

// Badge picks the marker to show next to chatID: an unread count, then a
// pending notification, then a newer message than the last one seen.
func (s *State) Badge(chatID int64) Badge {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.unread[chatID]; n > 0 {
		return Badge{Kind: BadgeUnread, Unread: n}
	}
	if lo.ContainsBy(s.queue, func(e Entry) bool { return e.ChatID == chatID }) {
		return Badge{Kind: BadgeNotification}
	}
	if s.latest[chatID] > s.lastSeen[chatID] {
		return Badge{Kind: BadgeNewer}
	}
	return Badge{Kind: BadgeNone}
}

// displayName is the group name, or the other participant of a direct chat.
func displayName(c *model.Chat, self int64) string {
	if c.IsGroup && c.Name != "" {
		return c.Name
	}
	for _, p := range c.Participants {
		if p.ID != self {
			return p.Name
		}
	}
	return c.Name
}
