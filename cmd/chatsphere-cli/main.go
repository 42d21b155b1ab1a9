// Command chatsphere-cli is a terminal client: it keeps the local unread and
// notification state in sync with the server's live events.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ageniuscoder/chatsphere/backend/internal/chat"
	"github.com/ageniuscoder/chatsphere/backend/internal/inbox"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	Server   string `envconfig:"CHATSPHERE_SERVER" default:"http://localhost:8080"`
	Token    string `envconfig:"CHATSPHERE_TOKEN"`
	Username string `envconfig:"CHATSPHERE_USER"`
	Password string `envconfig:"CHATSPHERE_PASSWORD"`
	// CHATSPHERE_COLOURS toggles ANSI colours in the output
	Colours bool `envconfig:"CHATSPHERE_COLOURS" default:"true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatsphere-cli: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newAPI(cfg.Server, cfg.Token)
	if cfg.Token == "" {
		if cfg.Username == "" {
			return exitConfig, errors.New("set CHATSPHERE_TOKEN or CHATSPHERE_USER and CHATSPHERE_PASSWORD")
		}
		if _, err := client.Login(ctx, cfg.Username, cfg.Password); err != nil {
			return exitConfig, fmt.Errorf("login: %w", err)
		}
	}

	me, err := client.Me(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("whoami: %w", err)
	}
	list, err := client.Chats(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("list chats: %w", err)
	}
	state := inbox.New(me.ID)
	state.Seed(list)

	endpoint, err := client.wsURL()
	if err != nil {
		return exitConfig, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", cfg.Server, err)
	}
	defer conn.Close()

	sh := &shell{
		api:     client,
		state:   state,
		chats:   list,
		conn:    conn,
		pending: make(map[string]model.EventKind),
		out:     printer{out: os.Stdout, colours: cfg.Colours, self: me.ID},
	}
	if err := sh.write(chat.Inbound{Type: chat.TypeSetup}); err != nil {
		return exitRuntime, fmt.Errorf("setup: %w", err)
	}

	readErr := make(chan error, 1)
	go func() { readErr <- sh.listen() }()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	sh.out.info("signed in as %s, /help for commands", me.Name)
	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok || sh.exec(ctx, line) {
				_ = sh.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
				return exitOK, nil
			}
		}
	}
}

type shell struct {
	api   *api
	state *inbox.State
	out   printer

	mu      sync.Mutex
	chats   []model.Chat
	pending map[string]model.EventKind

	wmu  sync.Mutex
	conn *websocket.Conn
}

// write is the only path that writes to the websocket.
func (s *shell) write(in chat.Inbound) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteJSON(in)
}

func (s *shell) request(in chat.Inbound, kind model.EventKind) error {
	in.RequestID = uuid.NewString()
	s.mu.Lock()
	s.pending[in.RequestID] = kind
	s.mu.Unlock()
	return s.write(in)
}

func (s *shell) listen() error {
	for {
		var evt chat.WireEvent
		if err := s.conn.ReadJSON(&evt); err != nil {
			return err
		}
		s.dispatch(evt)
	}
}

func (s *shell) dispatch(evt chat.WireEvent) {
	kind := model.EventKind(evt.Type)
	switch {
	case kind.Lifecycle():
		s.apply(kind, evt.Chat, evt.Message)
	case kind == model.EventTyping:
		if evt.ChatID == s.state.Active() {
			s.out.info("%s is typing...", s.nameOf(evt.ChatID, evt.UserID))
		}
	case kind == model.EventStopTyping:
	case evt.Type == chat.TypeConnected:
		s.out.info("connected")
	case evt.Type == chat.TypeAck:
		s.mu.Lock()
		k, ok := s.pending[evt.RequestID]
		delete(s.pending, evt.RequestID)
		s.mu.Unlock()
		// own changes are not echoed as lifecycle events
		if ok && evt.Message != nil {
			s.apply(k, nil, evt.Message)
		}
	case evt.Type == chat.TypeError:
		s.mu.Lock()
		delete(s.pending, evt.RequestID)
		s.mu.Unlock()
		s.out.fail(fmt.Errorf("%s (%s)", evt.Error, evt.Code))
	}
}

func (s *shell) apply(kind model.EventKind, c *model.Chat, m *model.Message) {
	if m == nil {
		return
	}
	if s.state.Apply(inbox.Event{Kind: kind, Chat: c, Message: m}) {
		if n := s.state.Notifications(); len(n) > 0 {
			s.out.notify(n[0])
		}
		return
	}
	if m.ChatID == s.state.Active() {
		s.out.message(*m)
	}
}

func (s *shell) nameOf(chatID, userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.ID != chatID {
			continue
		}
		for _, p := range c.Participants {
			if p.ID == userID {
				return p.Name
			}
		}
	}
	return "user " + strconv.FormatInt(userID, 10)
}

const help = `/list                 chats with badges
/open <chat>          open a chat and show its transcript
/close                close the active chat
/read <chat>          mark a chat read
/notifs               show notifications
/dismiss <message>    dismiss one notification
/clear                dismiss all notifications
/edit <message> text  edit your message
/delete <message>     delete your message
/react <message> :e:  toggle a reaction
/quit
anything else is sent to the active chat`

// exec runs one input line and reports whether the client should quit.
func (s *shell) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		s.send(ctx, line)
		return false
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(s.out.out, help)
	case "/list":
		s.list(ctx)
	case "/open":
		if id, ok := s.id(rest); ok {
			s.open(ctx, id)
		}
	case "/close":
		if active := s.state.Active(); active != 0 {
			s.state.Close()
			s.leave(active)
		}
	case "/read":
		if id, ok := s.id(rest); ok {
			s.state.MarkRead(id)
		}
	case "/notifs":
		s.out.notifications(s.state.Notifications())
	case "/dismiss":
		if id, ok := s.id(rest); ok {
			s.state.Dismiss(id)
		}
	case "/clear":
		s.state.ClearAll()
	case "/send":
		s.send(ctx, rest)
	case "/edit":
		idText, text, _ := strings.Cut(rest, " ")
		if id, ok := s.id(idText); ok {
			s.check(s.request(chat.Inbound{Type: string(model.EventMessageEdited), MessageID: id, Content: text}, model.EventMessageEdited))
		}
	case "/delete":
		if id, ok := s.id(rest); ok {
			s.check(s.request(chat.Inbound{Type: string(model.EventMessageDeleted), MessageID: id}, model.EventMessageDeleted))
		}
	case "/react":
		idText, emoji, _ := strings.Cut(rest, " ")
		if id, ok := s.id(idText); ok {
			m, err := s.api.React(ctx, id, strings.TrimSpace(emoji))
			if s.check(err) {
				s.apply(model.EventReactionChanged, nil, m)
			}
		}
	default:
		s.out.fail(fmt.Errorf("unknown command %s", cmd))
	}
	return false
}

func (s *shell) id(arg string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		s.out.fail(fmt.Errorf("expected an id, got %q", arg))
		return 0, false
	}
	return id, true
}

func (s *shell) check(err error) bool {
	if err != nil {
		s.out.fail(err)
		return false
	}
	return true
}

func deadline() time.Time { return time.Now().Add(time.Second) }

func (s *shell) list(ctx context.Context) {
	list, err := s.api.Chats(ctx)
	if !s.check(err) {
		return
	}
	s.mu.Lock()
	s.chats = list
	s.mu.Unlock()
	s.state.Seed(list)
	s.out.chats(list, s.state)
}

func (s *shell) open(ctx context.Context, chatID int64) {
	transcript, err := s.api.Messages(ctx, chatID)
	if !s.check(err) {
		return
	}
	if prev := s.state.Active(); prev != 0 && prev != chatID {
		s.leave(prev)
	}
	s.state.Open(chatID, transcript)
	s.check(s.write(chat.Inbound{Type: chat.TypeJoinChat, ChatID: chatID}))
	for _, m := range transcript {
		s.out.message(m)
	}
}

func (s *shell) leave(chatID int64) {
	s.check(s.write(chat.Inbound{Type: chat.TypeLeaveChat, ChatID: chatID}))
}

func (s *shell) send(ctx context.Context, text string) {
	active := s.state.Active()
	if active == 0 {
		s.out.fail(errors.New("no active chat, /open one first"))
		return
	}
	m, err := s.api.Send(ctx, active, text)
	if s.check(err) {
		s.apply(model.EventMessageCreated, nil, m)
	}
}
