package core

import (
	"encoding/json"

	"github.com/parlor-chat/parlor/internal/domain"
)

// Wire event discriminators. Every server→client frame is a JSON object
// with a "type" field; the rest of the shape depends on the event.
const (
	EvMessage        = "message"
	EvHistoryMessage = "historyMessage"
	EvPinnedMessage  = "pinnedMessage"
	EvMessageEdited  = "messageEdited"
	EvMessageDeleted = "messageDeleted"
	EvReaction       = "reaction"
	EvMessageReadBy  = "messageReadBy"
	EvTyping         = "typing"
	EvUserList       = "userList"
	EvUserStatus     = "userStatus"
	EvPrivateMessage = "privateMessage"
	EvError          = "error"
)

// MessageEvent carries a live ledger message. IsOwn is computed per
// recipient so clients can suppress self-notifications.
type MessageEvent struct {
	Type string `json:"type"`
	domain.Message
	IsOwn bool `json:"isOwnMessage"`
}

func NewMessageEvent(m *domain.Message, isOwn bool) MessageEvent {
	return MessageEvent{Type: EvMessage, Message: m.Snapshot(), IsOwn: isOwn}
}

// HistoryMessageEvent replays an existing ledger entry to a joining
// member. It is a distinct type so receivers do not treat replay as new
// traffic.
type HistoryMessageEvent struct {
	Type string `json:"type"`
	domain.Message
}

func NewHistoryMessageEvent(m *domain.Message) HistoryMessageEvent {
	return HistoryMessageEvent{Type: EvHistoryMessage, Message: m.Snapshot()}
}

type PinnedMessageEvent struct {
	Type string `json:"type"`
	domain.PinnedMessage
}

func NewPinnedMessageEvent(p *domain.PinnedMessage) PinnedMessageEvent {
	return PinnedMessageEvent{Type: EvPinnedMessage, PinnedMessage: *p}
}

type MessageEditedEvent struct {
	Type string           `json:"type"`
	ID   domain.MessageID `json:"id"`
	Text string           `json:"text"`
}

func NewMessageEditedEvent(id domain.MessageID, text string) MessageEditedEvent {
	return MessageEditedEvent{Type: EvMessageEdited, ID: id, Text: text}
}

type MessageDeletedEvent struct {
	Type string           `json:"type"`
	ID   domain.MessageID `json:"id"`
}

func NewMessageDeletedEvent(id domain.MessageID) MessageDeletedEvent {
	return MessageDeletedEvent{Type: EvMessageDeleted, ID: id}
}

type ReactionEvent struct {
	Type      string           `json:"type"`
	MessageID domain.MessageID `json:"messageId"`
	Reaction  string           `json:"reaction"`
	Count     int              `json:"count"`
}

func NewReactionEvent(id domain.MessageID, symbol string, count int) ReactionEvent {
	return ReactionEvent{Type: EvReaction, MessageID: id, Reaction: symbol, Count: count}
}

type MessageReadByEvent struct {
	Type      string           `json:"type"`
	MessageID domain.MessageID `json:"messageId"`
	Username  string           `json:"username"`
}

func NewMessageReadByEvent(id domain.MessageID, username string) MessageReadByEvent {
	return MessageReadByEvent{Type: EvMessageReadBy, MessageID: id, Username: username}
}

type TypingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

func NewTypingEvent(username string, isTyping bool) TypingEvent {
	return TypingEvent{Type: EvTyping, Username: username, IsTyping: isTyping}
}

type UserListEvent struct {
	Type  string     `json:"type"`
	Users []UserView `json:"users"`
}

func NewUserListEvent(users []UserView) UserListEvent {
	return UserListEvent{Type: EvUserList, Users: users}
}

// UserStatusEvent announces global (cross-room) presence changes for the
// private-chat surface.
type UserStatusEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

func NewUserStatusEvent(username string, isOnline bool) UserStatusEvent {
	return UserStatusEvent{Type: EvUserStatus, Username: username, IsOnline: isOnline}
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewErrorEvent(err error) ErrorEvent {
	return ErrorEvent{Type: EvError, Error: err.Error()}
}

// EncodeEvent marshals an event into a wire frame.
func EncodeEvent(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
