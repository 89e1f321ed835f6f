// Package private holds the direct-message store: one-to-one
// conversations outside any room, plus global online presence.
package private

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parlor-chat/parlor/internal/core"
)

var (
	ErrNoUsername       = errors.New("you must set a username first")
	ErrRecipientOffline = errors.New("recipient is not online")
)

// Message is one direct message. Stored under both direction keys so
// either participant retrieves the same history.
type Message struct {
	ID   string    `json:"id"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
	Read bool      `json:"read"`
}

type Store struct {
	mu       sync.RWMutex
	messages map[string][]*Message
	online   map[string]core.SessionID
}

func NewStore() *Store {
	return &Store{
		messages: make(map[string][]*Message),
		online:   make(map[string]core.SessionID),
	}
}

// SetOnline registers the name under the session; a reconnect under the
// same name simply takes over.
func (s *Store) SetOnline(username string, sid core.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[username] = sid
}

// SetOffline clears presence and reports whether the name was online
// under this session. A newer session keeps the name.
func (s *Store) SetOffline(username string, sid core.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.online[username]
	if !ok || cur != sid {
		return false
	}
	delete(s.online, username)
	return true
}

func (s *Store) Online(username string) (core.SessionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sid, ok := s.online[username]
	return sid, ok
}

func (s *Store) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.online))
	for name := range s.online {
		out = append(out, name)
	}
	return out
}

// Append stores a message under both direction keys and returns it.
// Text must already be sanitized by the caller.
func (s *Store) Append(from, to, text string) *Message {
	msg := &Message{
		ID:   uuid.NewString(),
		From: from,
		To:   to,
		Text: text,
		Time: time.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[from+"-"+to] = append(s.messages[from+"-"+to], msg)
	if from != to {
		s.messages[to+"-"+from] = append(s.messages[to+"-"+from], msg)
	}
	return msg
}

// History returns the conversation between two participants, oldest first.
func (s *Store) History(a, b string) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.messages[a+"-"+b]; ok {
		return append([]*Message(nil), h...)
	}
	if h, ok := s.messages[b+"-"+a]; ok {
		return append([]*Message(nil), h...)
	}
	return nil
}
