package app

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/parlor-chat/parlor/internal/core"
	"github.com/parlor-chat/parlor/internal/domain"
)

// Post appends a new message to the requester's room. The rate gate runs
// before any mutation; a rejected post leaves the ledger untouched and
// the gate's timestamp unchanged.
func (e *Engine) Post(sid core.SessionID, text, image string) error {
	if strings.TrimSpace(text) == "" && image == "" {
		return core.ErrEmptyMessage
	}
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return core.ErrNoActiveRoom
	}
	if !e.Limiter.Allow(sid) {
		return core.ErrRateLimited
	}
	room := e.Rooms.GetOrCreate(roomName)
	msg, res, err := room.Post(sid, text, image)
	if err != nil {
		return err
	}
	log.Debug().Str("module", "app.engine").Str("room", string(roomName)).
		Str("id", string(msg.ID)).Msg("message posted")
	e.applyBackpressure(room, res)
	return nil
}

// Edit is a silent no-op when the message is missing or not the
// requester's own; nothing is surfaced and nothing is broadcast.
func (e *Engine) Edit(sid core.SessionID, id domain.MessageID, text string) error {
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return nil
	}
	room := e.Rooms.GetOrCreate(roomName)
	res, applied := room.Edit(sid, id, text)
	if !applied {
		log.Debug().Str("module", "app.engine").Str("id", string(id)).Msg("edit ignored")
		return nil
	}
	e.applyBackpressure(room, res)
	return nil
}

// Delete shares Edit's silent no-op contract. A deleted message also
// loses its pinned entry.
func (e *Engine) Delete(sid core.SessionID, id domain.MessageID) error {
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return nil
	}
	room := e.Rooms.GetOrCreate(roomName)
	res, applied := room.Delete(sid, id)
	if !applied {
		log.Debug().Str("module", "app.engine").Str("id", string(id)).Msg("delete ignored")
		return nil
	}
	e.applyBackpressure(room, res)
	return nil
}

func (e *Engine) React(sid core.SessionID, id domain.MessageID, symbol string) error {
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return core.ErrRoomNotFound
	}
	room := e.Rooms.GetOrCreate(roomName)
	_, res, err := room.React(sid, id, symbol)
	if err != nil {
		return err
	}
	e.applyBackpressure(room, res)
	return nil
}

func (e *Engine) Pin(sid core.SessionID, id domain.MessageID) error {
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return core.ErrRoomNotFound
	}
	room := e.Rooms.GetOrCreate(roomName)
	_, res, err := room.Pin(sid, id)
	if err != nil {
		return err
	}
	e.applyBackpressure(room, res)
	return nil
}

func (e *Engine) MarkRead(sid core.SessionID, id domain.MessageID) error {
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return core.ErrRoomNotFound
	}
	room := e.Rooms.GetOrCreate(roomName)
	res, err := room.MarkRead(sid, id)
	if err != nil {
		return err
	}
	e.applyBackpressure(room, res)
	return nil
}

// SetTyping is best-effort: no room, no error.
func (e *Engine) SetTyping(sid core.SessionID, isTyping bool) {
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room := e.Rooms.GetOrCreate(roomName)
	res := room.SetTyping(sid, isTyping)
	e.applyBackpressure(room, res)
}

func (e *Engine) ClearHistory(sid core.SessionID) {
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room := e.Rooms.GetOrCreate(roomName)
	res := room.ClearHistory(sid)
	e.applyBackpressure(room, res)
}
