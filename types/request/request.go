// Package request defines the outbound requests sent to the gateway.
package request

import (
	"github.com/lithammer/shortuuid/v4"
	"github.com/pion/webrtc/v4"
)

// VideoRoomPlugin is the gateway plugin used for rooms.
const VideoRoomPlugin = "janus.plugin.videoroom"

// NewTransaction returns a new transaction id.
func NewTransaction() string {
	return shortuuid.New()
}

// Session is a session-level request such as info, create or keepalive.
type Session struct {
	Janus       string `json:"janus"`
	Transaction string `json:"transaction"`
	SessionID   uint64 `json:"session_id,omitempty"`
}

// Attach attaches a plugin handle to a session.
type Attach struct {
	Session
	Plugin   string `json:"plugin"`
	OpaqueID string `json:"opaque_id,omitempty"`
}

// Handle is a request addressed to a plugin handle.
type Handle struct {
	Session
	HandleID uint64 `json:"handle_id"`
}

// Message carries a plugin body and an optional session description.
type Message struct {
	Handle
	Body any                        `json:"body"`
	JSEP *webrtc.SessionDescription `json:"jsep,omitempty"`
}

// Trickle sends one local candidate, or the end-of-candidates marker.
type Trickle struct {
	Handle
	Candidate any `json:"candidate"`
}

// Completed marks the end of local candidates.
type Completed struct {
	Completed bool `json:"completed"`
}

// NewInfo creates a server info request.
func NewInfo() *Session {
	return &Session{Janus: "info", Transaction: NewTransaction()}
}

// NewCreate creates a session creation request.
func NewCreate() *Session {
	return &Session{Janus: "create", Transaction: NewTransaction()}
}

// NewKeepAlive creates a keep-alive for the session.
func NewKeepAlive(sessionID uint64) *Session {
	return &Session{Janus: "keepalive", Transaction: NewTransaction(), SessionID: sessionID}
}

// NewDestroy creates a session destroy request.
func NewDestroy(sessionID uint64) *Session {
	return &Session{Janus: "destroy", Transaction: NewTransaction(), SessionID: sessionID}
}

// NewAttach creates a request attaching the video-room plugin.
func NewAttach(sessionID uint64, opaqueID string) *Attach {
	return &Attach{
		Session:  Session{Janus: "attach", Transaction: NewTransaction(), SessionID: sessionID},
		Plugin:   VideoRoomPlugin,
		OpaqueID: opaqueID,
	}
}

// NewDetach creates a request detaching a plugin handle.
func NewDetach(sessionID, handleID uint64) *Handle {
	return &Handle{
		Session:  Session{Janus: "detach", Transaction: NewTransaction(), SessionID: sessionID},
		HandleID: handleID,
	}
}

// NewMessage creates a plugin message with the given body.
func NewMessage(sessionID, handleID uint64, body any) *Message {
	return &Message{
		Handle: Handle{
			Session:  Session{Janus: "message", Transaction: NewTransaction(), SessionID: sessionID},
			HandleID: handleID,
		},
		Body: body,
	}
}

// NewTrickle creates a trickle request for a local candidate.
func NewTrickle(sessionID, handleID uint64, candidate webrtc.ICECandidateInit) *Trickle {
	return &Trickle{
		Handle: Handle{
			Session:  Session{Janus: "trickle", Transaction: NewTransaction(), SessionID: sessionID},
			HandleID: handleID,
		},
		Candidate: candidate,
	}
}

// NewTrickleCompleted creates a trickle request ending local candidates.
func NewTrickleCompleted(sessionID, handleID uint64) *Trickle {
	return &Trickle{
		Handle: Handle{
			Session:  Session{Janus: "trickle", Transaction: NewTransaction(), SessionID: sessionID},
			HandleID: handleID,
		},
		Candidate: Completed{Completed: true},
	}
}
