package core

import "errors"

// Operation errors are surfaced to the requester only, as error events;
// they are never broadcast and never fatal to the process. Edit and
// delete deliberately have no not-found/ownership errors: those paths
// fail as silent no-ops.
var (
	ErrNameRequired    = errors.New("username and room are required")
	ErrEmptyMessage    = errors.New("message must include text or an image")
	ErrRateLimited     = errors.New("message rate limit exceeded (1 message per second)")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrAlreadyPinned   = errors.New("message is already pinned")
	ErrNotMember       = errors.New("not a member of this room")
	ErrNoActiveRoom    = errors.New("join a room first")
	ErrPromptRequired  = errors.New("prompt is required")
)
