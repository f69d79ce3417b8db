package room

import "errors"

// Refusals returned to the requester as an error event.
var (
	ErrRoomNotFound    = errors.New("room: not found")
	ErrRoomClosed      = errors.New("room: closed")
	ErrRoomLocked      = errors.New("room: locked")
	ErrRoomFull        = errors.New("room: full")
	ErrNotLocked       = errors.New("room: must be locked first")
	ErrGameStarted     = errors.New("room: game already started")
	ErrGameNotStarted  = errors.New("room: game not started")
	ErrNotOrganizer    = errors.New("room: only the organizer may do this")
	ErrNotMember       = errors.New("room: not a member")
	ErrAlreadyJoined   = errors.New("room: already joined")
	ErrAvatarTaken     = errors.New("room: avatar taken")
	ErrInvalidStats    = errors.New("room: invalid character stats")
	ErrInvalidRoster   = errors.New("room: roster cannot start")
	ErrUnknownProfile  = errors.New("room: unknown virtual player profile")
	ErrCannotExpelSelf = errors.New("room: the organizer cannot be expelled")
	ErrEmptyMessage    = errors.New("room: empty chat message")
	ErrNoFreeCode      = errors.New("room: no free access code")
)
