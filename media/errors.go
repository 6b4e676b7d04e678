package media

import (
	"errors"
	"fmt"
)

var (
	// ErrDataChannelNotCreated is returned when sending before setup created the data channel.
	ErrDataChannelNotCreated = errors.New("data channel not created")

	// ErrAlreadySetup is reported when Setup is called twice.
	ErrAlreadySetup = errors.New("peer connection already set up")

	// ErrNoCaptureSource is reported when a capture is enabled without a source.
	ErrNoCaptureSource = errors.New("no capture source")

	// ErrWorkerClosed is returned when a worker no longer accepts tasks.
	ErrWorkerClosed = errors.New("worker closed")
)

// Role is the communication role owning a peer connection.
type Role int

// Roles of a peer connection.
const (
	RolePublisher Role = iota
	RoleSubscriber
)

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	}
	return "unknown"
}

// Kind is the media concern an error relates to.
type Kind int

// Media kinds.
const (
	KindSession Kind = iota
	KindAudio
	KindCamera
	KindScreen
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindAudio:
		return "audio"
	case KindCamera:
		return "camera"
	case KindScreen:
		return "screen"
	case KindData:
		return "data"
	}
	return "unknown"
}

// MediaError is a failure of one media kind of a peer connection.
type MediaError struct {
	Role Role
	Kind Kind
	Err  error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Role, e.Kind, e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}
