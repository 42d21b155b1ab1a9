package model

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
)

type Reaction struct {
	UserID    int64     `json:"user"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is the canonical message representation: the API response and the
// fanout payload. Deleted messages are tombstones, never removed.
type Message struct {
	ID        int64
	ChatID    int64
	Sender    Identity
	Content   Content
	CreatedAt time.Time
	EditedAt  *time.Time
	IsDeleted bool
	Reactions []Reaction
}

func (m *Message) Kind() Kind {
	if m.Content == nil {
		return KindText
	}
	return m.Content.Kind()
}

func (m *Message) HasReaction(userID int64, emoji string) bool {
	return lo.ContainsBy(m.Reactions, func(r Reaction) bool {
		return r.UserID == userID && r.Emoji == emoji
	})
}

// Clone returns a copy that shares no mutable state with m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.EditedAt != nil {
		at := *m.EditedAt
		c.EditedAt = &at
	}
	c.Reactions = append([]Reaction(nil), m.Reactions...)
	return &c
}

type messageJSON struct {
	ID          int64      `json:"id"`
	ChatID      int64      `json:"chat"`
	Sender      Identity   `json:"sender"`
	MessageType Kind       `json:"messageType"`
	Content     string     `json:"content"`
	FileURL     string     `json:"fileUrl,omitempty"`
	FileName    string     `json:"fileName,omitempty"`
	FileSize    int64      `json:"fileSize,omitempty"`
	FileMIME    string     `json:"fileMime,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	EditedAt    *time.Time `json:"editedAt,omitempty"`
	IsDeleted   bool       `json:"isDeleted"`
	Reactions   []Reaction `json:"reactions"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	content := m.Content
	if content == nil {
		content = Text{}
	}
	out := messageJSON{
		ID:          m.ID,
		ChatID:      m.ChatID,
		Sender:      m.Sender,
		MessageType: content.Kind(),
		Content:     Body(content),
		CreatedAt:   m.CreatedAt,
		EditedAt:    m.EditedAt,
		IsDeleted:   m.IsDeleted,
		Reactions:   m.Reactions,
	}
	if out.Reactions == nil {
		out.Reactions = []Reaction{}
	}
	if f := FileOf(content); f != nil {
		out.FileURL, out.FileName, out.FileSize, out.FileMIME = f.URL, f.Name, f.Size, f.MIME
	}
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var in messageJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	kind := in.MessageType
	if kind == "" {
		kind = KindText
	}
	var file *File
	if in.FileURL != "" {
		file = &File{URL: in.FileURL, Name: in.FileName, Size: in.FileSize, MIME: in.FileMIME}
	}
	content, err := NewContent(kind, in.Content, file)
	if err != nil {
		return err
	}
	*m = Message{
		ID:        in.ID,
		ChatID:    in.ChatID,
		Sender:    in.Sender,
		Content:   content,
		CreatedAt: in.CreatedAt,
		EditedAt:  in.EditedAt,
		IsDeleted: in.IsDeleted,
		Reactions: in.Reactions,
	}
	return nil
}
