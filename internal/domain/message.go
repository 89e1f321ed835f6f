package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageID string

// Message is one entry of a room's ledger. Once appended it is mutated
// only through the room's operations: edit replaces Text and sets Edited,
// react bumps a Reactions tally, mark-read grows ReadBy.
type Message struct {
	ID        MessageID      `json:"id"`
	Username  string         `json:"username"`
	Text      string         `json:"text"`
	Image     string         `json:"image,omitempty"`
	Time      time.Time      `json:"time"`
	IsSystem  bool           `json:"isSystem"`
	Edited    bool           `json:"edited,omitempty"`
	Reactions map[string]int `json:"reactions,omitempty"`
	ReadBy    []string       `json:"readBy,omitempty"`
}

func NewMessage(username, text, image string) *Message {
	return &Message{
		ID:       MessageID(uuid.NewString()),
		Username: username,
		Text:     text,
		Image:    image,
		Time:     time.Now(),
	}
}

func NewSystemMessage(text string) *Message {
	return &Message{
		ID:       MessageID(uuid.NewString()),
		Username: SystemUsername,
		Text:     text,
		Time:     time.Now(),
		IsSystem: true,
	}
}

// Snapshot returns a value copy that does not alias the live reaction and
// read-by containers, so later mutations cannot leak into the copy.
func (m *Message) Snapshot() Message {
	c := *m
	if m.Reactions != nil {
		c.Reactions = make(map[string]int, len(m.Reactions))
		for k, v := range m.Reactions {
			c.Reactions[k] = v
		}
	}
	if m.ReadBy != nil {
		c.ReadBy = append([]string(nil), m.ReadBy...)
	}
	return c
}

// PinnedMessage is a snapshot of a ledger message promoted to the room's
// pinned set, plus who pinned it and when. There is no unpin; the entry
// disappears only when the source message is deleted.
type PinnedMessage struct {
	Message
	PinnedBy string    `json:"pinnedBy"`
	PinnedAt time.Time `json:"pinnedAt"`
}

func NewPinnedMessage(m *Message, pinnedBy string) *PinnedMessage {
	return &PinnedMessage{
		Message:  m.Snapshot(),
		PinnedBy: pinnedBy,
		PinnedAt: time.Now(),
	}
}
