// Package janus implements the gateway session state machine for the
// publisher and subscriber roles.
package janus

import (
	"github.com/pion/webrtc/v4"

	"roomcast/media"
	"roomcast/stream"
)

// Transport sends requests to the gateway. Implementations preserve the
// order of Send calls.
//
//go:generate mockgen -destination=mock_transport.go -package=janus . Transport
type Transport interface {
	Send(msg any) error
}

// PeerConnection is the peer connection driven by the states.
type PeerConnection interface {
	Setup(audio, video media.Direction)
	SetRemoteDescription(description webrtc.SessionDescription)
	AddICECandidate(candidate webrtc.ICECandidateInit)
	SetMicrophoneEnabled(enable bool)
	SetCameraEnabled(enable bool)
	SetCameraDevice(device *stream.Device)
	SetCameraCapability(capability *stream.Capability)
	SetScreenShareEnabled(enable bool)
	SetScreenSource(source *stream.ScreenSource)
	SendData(data []byte) error
	Tracks() []media.TrackInfo
	Close()
}

// PeerConnectionFactory creates peer connections for a role.
type PeerConnectionFactory func(role media.Role, cb media.Callbacks) (PeerConnection, error)

// NewPeerConnectionFactory adapts a media.Factory.
func NewPeerConnectionFactory(f *media.Factory) PeerConnectionFactory {
	return func(role media.Role, cb media.Callbacks) (PeerConnection, error) {
		pc, err := f.NewPeerConnection(role, cb)
		if err != nil {
			return nil, err
		}
		return pc, nil
	}
}

// ActionSource delivers recorded stream actions.
type ActionSource interface {
	AddConsumer(c stream.ActionConsumer)
	RemoveConsumer(c stream.ActionConsumer)
}

// Listener receives the connection state of a handler. Error may fire
// repeatedly without ending the session.
type Listener interface {
	Connected()
	Disconnected()
	Error(err error)
}

// ListenerFuncs adapts functions to a Listener. Nil functions are skipped.
type ListenerFuncs struct {
	OnConnected    func()
	OnDisconnected func()
	OnError        func(err error)
}

// Connected calls OnConnected.
func (l ListenerFuncs) Connected() {
	if l.OnConnected != nil {
		l.OnConnected()
	}
}

// Disconnected calls OnDisconnected.
func (l ListenerFuncs) Disconnected() {
	if l.OnDisconnected != nil {
		l.OnDisconnected()
	}
}

// Error calls OnError.
func (l ListenerFuncs) Error(err error) {
	if l.OnError != nil {
		l.OnError(err)
	}
}
