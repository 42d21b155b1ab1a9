package chat

import "github.com/ageniuscoder/chatsphere/backend/internal/model"

// Server to client event names besides the model.EventKind values.
const (
	TypeConnected = "connected"
	TypeAck       = "ack"
	TypeError     = "error"
)

// WireEvent is every frame the server writes.
type WireEvent struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	ChatID    int64          `json:"chat_id,omitempty"`
	UserID    int64          `json:"user_id,omitempty"`
	Message   *model.Message `json:"message,omitempty"`
	Chat      *model.Chat    `json:"chat,omitempty"`
	Error     string         `json:"error,omitempty"`
	Code      string         `json:"code,omitempty"`
}

// Inbound is every frame a client may send. Fields not used by Type are ignored.
type Inbound struct {
	Type        string `json:"type"`
	RequestID   string `json:"request_id,omitempty"`
	ChatID      int64  `json:"chat_id,omitempty"`
	MessageID   int64  `json:"message_id,omitempty"`
	Content     string `json:"content,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
}

// Client to server event names besides the model.EventKind values.
const (
	TypeSetup     = "setup"
	TypeJoinChat  = "join_chat"
	TypeLeaveChat = "leave_chat"
)
