package janus

import (
	"errors"
	"fmt"

	"roomcast/media"
)

var (
	// ErrNoState is returned when a message arrives before a state is installed.
	ErrNoState = errors.New("no state installed")

	// ErrSessionTimeout is reported when the gateway expired the session.
	ErrSessionTimeout = errors.New("session timed out")

	// ErrICEFailed is reported when ICE connectivity failed.
	ErrICEFailed = errors.New("ice connection failed")

	// ErrNoPeerConnection is returned when an operation needs a peer connection.
	ErrNoPeerConnection = errors.New("no peer connection")

	// ErrNotJoined is returned for room operations before the room exists.
	ErrNotJoined = errors.New("room not joined")
)

// HandlerError tags a failure with the role of the handler reporting it.
type HandlerError struct {
	Role media.Role
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler: %v", e.Role, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
