package janus

import (
	"roomcast/media"
	"roomcast/stream"
	"roomcast/types/message"
)

// State is one step of the gateway protocol.
type State interface {
	Name() string
	// Initialize issues the request of the state.
	Initialize(ctx Context) error
	// HandleMessage returns the next state once the expected reply arrived,
	// or nil to stay. Unrelated messages are ignored.
	HandleMessage(ctx Context, msg message.Message) (State, error)
}

// Context is the view of a handler given to its states.
type Context interface {
	Role() media.Role
	Info() *message.ServerInfo
	SetInfo(info *message.ServerInfo)
	SessionID() uint64
	SetSessionID(id uint64)
	PluginID() uint64
	SetPluginID(id uint64)
	RoomID() uint64
	SetRoomID(id uint64)
	RoomSecret() string
	ParticipantID() uint64
	PrivateID() uint64
	SetParticipant(id, privateID uint64)
	OpaqueID() string
	StreamContext() *stream.Context
	Send(msg any) error
	CreatePeerConnection(cb media.Callbacks) (PeerConnection, error)
	PeerConnection() PeerConnection
}
