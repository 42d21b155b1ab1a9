package model

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

type Identity struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Chat is the room a message belongs to. Direct chats have exactly two distinct
// participants; group chats may carry a name.
type Chat struct {
	ID            int64      `json:"id"`
	IsGroup       bool       `json:"isGroupChat"`
	Name          string     `json:"chatName,omitempty"`
	Participants  []Identity `json:"users"`
	LatestMessage *Message   `json:"latestMessage,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (c *Chat) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: chat is missing", ErrValidation)
	}
	if len(c.Participants) == 0 {
		return fmt.Errorf("%w: chat %d has no participants", ErrValidation, c.ID)
	}
	ids := c.ParticipantIDs()
	if len(lo.Uniq(ids)) != len(ids) {
		return fmt.Errorf("%w: chat %d lists a participant twice", ErrValidation, c.ID)
	}
	if !c.IsGroup && len(ids) != 2 {
		return fmt.Errorf("%w: direct chat %d needs two participants, has %d", ErrValidation, c.ID, len(ids))
	}
	return nil
}

func (c *Chat) ParticipantIDs() []int64 {
	return lo.Map(c.Participants, func(p Identity, _ int) int64 { return p.ID })
}

func (c *Chat) HasParticipant(userID int64) bool {
	return lo.ContainsBy(c.Participants, func(p Identity) bool { return p.ID == userID })
}
