package app

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/parlor-chat/parlor/internal/app/assist"
	"github.com/parlor-chat/parlor/internal/app/private"
	"github.com/parlor-chat/parlor/internal/core"
	"github.com/parlor-chat/parlor/internal/domain"
)

// Engine is the room state engine: it resolves the (session, room) pair
// through the registry, gates message creation through the rate limiter,
// applies the mutation on the room and deals with fan-out backpressure.
// Operation errors are returned to the caller (the signal adapter) and
// reach the requester only; they are never broadcast.
type Engine struct {
	Registry *Registry
	Rooms    core.RoomManager
	Limiter  *RateLimiter
	Policy   Policy
	Assist   *assist.Client
	Private  *private.Store

	// HistoryContext is how many recent non-system messages are
	// snapshotted for the assistant collaborator.
	HistoryContext int
}

// Join validates the claimed name and room, leaves the previous room if
// the session had one, and adds the member to the target room. The room
// itself replays history and broadcasts the announcements.
func (e *Engine) Join(sid core.SessionID, username, roomName string) error {
	username = strings.TrimSpace(username)
	roomName = strings.TrimSpace(roomName)
	if username == "" || roomName == "" {
		return core.ErrNameRequired
	}
	if err := e.Registry.UpdateUsername(sid, username); err != nil {
		return err
	}

	if prev, _, ok := e.Registry.RoomOf(sid); ok {
		e.leaveRoom(sid, prev)
	}

	sess, ok := e.Registry.GetSession(sid)
	if !ok {
		return core.ErrNotMember
	}
	room := e.Rooms.GetOrCreate(domain.RoomName(roomName))
	res := room.Join(sid, sess)
	e.Registry.UpdateRoom(sid, domain.RoomName(roomName))
	e.applyBackpressure(room, res)
	return nil
}

// Leave is the explicit room part: the session stays connected and can
// join another room later.
func (e *Engine) Leave(sid core.SessionID) error {
	roomName, _, ok := e.Registry.RoomOf(sid)
	if !ok {
		return core.ErrNoActiveRoom
	}
	e.leaveRoom(sid, roomName)
	return nil
}

// Disconnect runs the implicit leave: room part, rate-limit record
// cleanup, private-chat presence teardown, registry unbind. A mutation
// already committed before the disconnect stays committed.
func (e *Engine) Disconnect(sid core.SessionID) {
	if roomName, _, ok := e.Registry.RoomOf(sid); ok {
		e.leaveRoom(sid, roomName)
	}
	e.Limiter.Forget(sid)
	if u, ok := e.Registry.User(sid); ok && e.Private != nil {
		if e.Private.SetOffline(u.Username, sid) {
			e.broadcastAll(core.NewUserStatusEvent(u.Username, false))
		}
	}
	e.Registry.Unbind(sid)
}

func (e *Engine) leaveRoom(sid core.SessionID, roomName domain.RoomName) {
	room := e.Rooms.GetOrCreate(roomName)
	res, ok := room.Leave(sid)
	e.Registry.RemoveRoom(sid)
	if ok {
		e.applyBackpressure(room, res)
	}
}

// applyBackpressure handles members whose send queue overflowed during a
// fan-out. Kicked sessions are canceled; the transport's shutdown path
// then runs the normal Disconnect.
func (e *Engine) applyBackpressure(room core.RoomService, res core.PublishResult) {
	if e.Policy == nil {
		return
	}
	for _, sid := range res.Dropped {
		switch e.Policy.OnBackPressure(room, sid) {
		case KickMember:
			log.Warn().Str("module", "app.engine").Str("sid", string(sid)).
				Str("room", string(room.Room().Name)).Msg("kicking slow consumer")
			e.Registry.Cancel(sid)
		case MarkSlow, NoAction:
		}
	}
}

// sendToSession delivers a requester-only event outside any room scope.
func (e *Engine) sendToSession(sid core.SessionID, v any) {
	sess, ok := e.Registry.GetSession(sid)
	if !ok {
		return
	}
	frame, err := core.EncodeEvent(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("encode event")
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Warn().Str("module", "app.engine").Str("sid", string(sid)).Msg("requester-only send dropped")
	}
}

func (e *Engine) broadcastAll(v any) {
	frame, err := core.EncodeEvent(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("encode event")
		return
	}
	for _, sess := range e.Registry.AllSessions() {
		_ = sess.Signal().TrySend(frame)
	}
}
