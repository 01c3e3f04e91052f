package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidShare       = errors.New("missing required share fields")
	ErrCodeSpaceExhausted = errors.New("unable to generate a unique room code")
	ErrNotConnected       = errors.New("not connected to a room")
)
