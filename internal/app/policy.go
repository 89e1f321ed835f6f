package app

import "github.com/parlor-chat/parlor/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
)

// Policy decides what happens to a member whose outbound queue
// overflowed during fan-out.
type Policy interface {
	OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction
}

// SimplePolicy disconnects slow consumers so one stalled socket cannot
// hold events for the rest of the room.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction {
	return KickMember
}
