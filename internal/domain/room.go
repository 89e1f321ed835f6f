package domain

type RoomName string

// Room is the identity of a chat channel. Its mutable state (ledger,
// members, pins, typing) lives behind core.RoomService.
type Room struct {
	Name RoomName
}
