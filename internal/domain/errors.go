package domain

import "errors"

var (
	// ErrConfiguration marks a caller bug: impossible board parameters.
	ErrConfiguration    = errors.New("configuration error")
	// ErrStoreUnavailable wraps any failure reaching the shared store.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomExists     = errors.New("room already exists")
	ErrRoomFull       = errors.New("room is full")
	ErrNameTaken      = errors.New("player name taken")
	ErrInvalidSetting = errors.New("invalid setting")
	ErrInvalidName    = errors.New("invalid player name")
	ErrOutOfBounds    = errors.New("cell out of bounds")

	// ErrIllegalTransition marks a transition that would leave the game
	// state machine or break a session invariant. It means a bug, not bad
	// input.
	ErrIllegalTransition = errors.New("illegal state transition")
)
