package core

import (
	"time"

	"github.com/parlor-chat/parlor/internal/domain"
)

// Frame is an encoded event ready for the wire.
type Frame []byte

type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the engine.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// UserView is a read-only membership row for userList events.
type UserView struct {
	Username string    `json:"username"`
	LastSeen time.Time `json:"lastSeen"`
}

// RoomService is the core-facing API of a room. It owns the member set,
// the message ledger, the pinned set and the typing set; every mutation
// and its fan-out happen under the same per-room critical section, so
// concurrent operations on one room observe a consistent total order
// while different rooms never contend.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []UserView
	LedgerLen() int
	RecentContext(n int) []domain.Message

	Join(sid SessionID, ms MemberSession) PublishResult
	Leave(sid SessionID) (PublishResult, bool)

	Post(sid SessionID, text, image string) (*domain.Message, PublishResult, error)
	Edit(sid SessionID, id domain.MessageID, text string) (PublishResult, bool)
	Delete(sid SessionID, id domain.MessageID) (PublishResult, bool)
	React(sid SessionID, id domain.MessageID, symbol string) (int, PublishResult, error)
	Pin(sid SessionID, id domain.MessageID) (*domain.PinnedMessage, PublishResult, error)
	MarkRead(sid SessionID, id domain.MessageID) (PublishResult, error)
	SetTyping(sid SessionID, isTyping bool) PublishResult
	ClearHistory(sid SessionID) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

type RoomManager interface {
	GetOrCreate(name domain.RoomName) RoomService
	List() []RoomInfo
}
