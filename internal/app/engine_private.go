package app

import (
	"strings"

	"github.com/parlor-chat/parlor/internal/app/private"
	"github.com/parlor-chat/parlor/internal/core"
)

// SetUsername registers the session for direct messaging and announces
// the presence change to every connected client.
func (e *Engine) SetUsername(sid core.SessionID, username string) error {
	username = strings.TrimSpace(username)
	if err := e.Registry.UpdateUsername(sid, username); err != nil {
		return err
	}
	e.Private.SetOnline(username, sid)
	e.broadcastAll(core.NewUserStatusEvent(username, true))
	return nil
}

// SendPrivate delivers a direct message to an online recipient and
// echoes it back to the sender. Nothing of it touches any room ledger.
func (e *Engine) SendPrivate(sid core.SessionID, to, text string) (*private.Message, error) {
	u, ok := e.Registry.User(sid)
	if !ok {
		return nil, private.ErrNoUsername
	}
	if _, online := e.Private.Online(u.Username); !online {
		return nil, private.ErrNoUsername
	}
	toSID, online := e.Private.Online(to)
	if !online {
		return nil, private.ErrRecipientOffline
	}

	msg := e.Private.Append(u.Username, to, core.SanitizeText(text))
	evt := NewPrivateMessageEvent(msg)
	e.sendToSession(toSID, evt)
	if toSID != sid {
		e.sendToSession(sid, evt)
	}
	return msg, nil
}

// PrivateHistory returns the requester's conversation with another user.
func (e *Engine) PrivateHistory(sid core.SessionID, withUser string) ([]*private.Message, error) {
	u, ok := e.Registry.User(sid)
	if !ok {
		return nil, private.ErrNoUsername
	}
	return e.Private.History(u.Username, withUser), nil
}

// PrivateMessageEvent is assembled here rather than in core because the
// payload type belongs to the private store.
type PrivateMessageEvent struct {
	Type string `json:"type"`
	*private.Message
}

func NewPrivateMessageEvent(m *private.Message) PrivateMessageEvent {
	return PrivateMessageEvent{Type: core.EvPrivateMessage, Message: m}
}
