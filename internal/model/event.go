package model

// EventKind names a real-time event. The values are the wire event names.
type EventKind string

const (
	EventMessageCreated  EventKind = "new_message"
	EventMessageEdited   EventKind = "message_edited"
	EventMessageDeleted  EventKind = "message_deleted"
	EventReactionChanged EventKind = "message_reaction"
	EventTyping          EventKind = "typing"
	EventStopTyping      EventKind = "stop_typing"
)

// Lifecycle reports whether k announces a durable message change.
func (k EventKind) Lifecycle() bool {
	switch k {
	case EventMessageCreated, EventMessageEdited, EventMessageDeleted, EventReactionChanged:
		return true
	default:
		return false
	}
}
