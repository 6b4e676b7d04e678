// Package message provides the inbound message variants received from the gateway.
package message

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Kind identifies a message variant.
type Kind int

// Message kinds received from the gateway.
const (
	KindAck Kind = iota
	KindError
	KindSuccess
	KindServerInfo
	KindSessionTimeout
	KindPluginData
	KindPublisherJoined
	KindPublisherLeft
	KindPublisherUnpublished
	KindTalking
	KindWebRTCUp
	KindMedia
	KindHangup
	KindSlowLink
	KindTrickle
	KindDetached
)

var kindNames = map[Kind]string{
	KindAck:                  "ack",
	KindError:                "error",
	KindSuccess:              "success",
	KindServerInfo:           "server_info",
	KindSessionTimeout:       "timeout",
	KindPluginData:           "plugin_data",
	KindPublisherJoined:      "publisher_joined",
	KindPublisherLeft:        "publisher_left",
	KindPublisherUnpublished: "publisher_unpublished",
	KindTalking:              "talking",
	KindWebRTCUp:             "webrtcup",
	KindMedia:                "media",
	KindHangup:               "hangup",
	KindSlowLink:             "slowlink",
	KindTrickle:              "trickle",
	KindDetached:             "detached",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Message is a message received from the gateway. The set of implementations
// is closed: only the variants in this package satisfy it.
type Message interface {
	Kind() Kind
	TransactionID() string
	Session() uint64
	// HandleID returns the plugin handle the message is addressed from, or 0
	// when the message is not plugin-scoped.
	HandleID() uint64
	sealed()
}

// Envelope holds the routing fields shared by every message.
type Envelope struct {
	Transaction string
	SessionID   uint64
	Sender      uint64
}

// TransactionID returns the transaction the message replies to.
func (e Envelope) TransactionID() string { return e.Transaction }

// Session returns the session id.
func (e Envelope) Session() uint64 { return e.SessionID }

// HandleID returns the sender plugin handle.
func (e Envelope) HandleID() uint64 { return e.Sender }

func (e Envelope) sealed() {}

// Ack acknowledges an asynchronous request.
type Ack struct {
	Envelope
}

// Error is a core or plugin error.
type Error struct {
	Envelope
	Code   int
	Reason string
	// Plugin is set when the error was reported by the video-room plugin.
	Plugin bool
}

// Success is the reply to a create or attach request.
type Success struct {
	Envelope
	ID uint64
}

// ServerInfo describes the gateway.
type ServerInfo struct {
	Envelope
	Name           string
	Version        int
	VersionString  string
	SessionTimeout int
	APISecret      bool
	AuthToken      bool
}

// SessionTimeout notifies that the gateway expired the session.
type SessionTimeout struct {
	Envelope
}

// Publisher describes a remote participant publishing into a room.
type Publisher struct {
	ID      uint64            `json:"id"`
	Display string            `json:"display"`
	Talking bool              `json:"talking"`
	Streams []PublisherStream `json:"streams"`
}

// PublisherStream is one media stream of a publisher.
type PublisherStream struct {
	Type        string `json:"type"`
	Mid         string `json:"mid"`
	Codec       string `json:"codec"`
	Description string `json:"description"`
}

// RoomResponse is the video-room body of a plugin reply.
type RoomResponse struct {
	Type        string
	Room        uint64
	ID          uint64
	PrivateID   uint64
	Display     string
	Description string
	Publishers  []Publisher
	Configured  string
	Started     string
	Left        string
}

// PluginData is a video-room reply that is not a notification.
type PluginData struct {
	Envelope
	Plugin string
	Body   RoomResponse
	JSEP   *webrtc.SessionDescription
}

// PublisherJoined notifies that publishers became active in a room.
type PublisherJoined struct {
	Envelope
	Room       uint64
	Publishers []Publisher
}

// PublisherLeft notifies that a publisher left a room.
type PublisherLeft struct {
	Envelope
	Room        uint64
	PublisherID uint64
}

// PublisherUnpublished notifies that a publisher stopped publishing.
type PublisherUnpublished struct {
	Envelope
	Room        uint64
	PublisherID uint64
}

// Talking reports a change in a publisher's voice activity.
type Talking struct {
	Envelope
	Room        uint64
	PublisherID uint64
	Talking     bool
}

// WebRTCUp reports that the gateway's peer connection is up.
type WebRTCUp struct {
	Envelope
}

// Media reports whether the gateway receives a media kind.
type Media struct {
	Envelope
	Type      string
	Receiving bool
}

// Hangup reports that the gateway closed the peer connection.
type Hangup struct {
	Envelope
	Reason string
}

// SlowLink reports packet loss on a handle.
type SlowLink struct {
	Envelope
	Type   string
	Uplink bool
	Lost   int
}

// Trickle carries a remote ICE candidate, or marks the end of candidates.
type Trickle struct {
	Envelope
	Candidate *webrtc.ICECandidateInit
	Completed bool
}

// Detached reports that a plugin handle was detached.
type Detached struct {
	Envelope
}

func (*Ack) Kind() Kind                  { return KindAck }
func (*Error) Kind() Kind                { return KindError }
func (*Success) Kind() Kind              { return KindSuccess }
func (*ServerInfo) Kind() Kind           { return KindServerInfo }
func (*SessionTimeout) Kind() Kind       { return KindSessionTimeout }
func (*PluginData) Kind() Kind           { return KindPluginData }
func (*PublisherJoined) Kind() Kind      { return KindPublisherJoined }
func (*PublisherLeft) Kind() Kind        { return KindPublisherLeft }
func (*PublisherUnpublished) Kind() Kind { return KindPublisherUnpublished }
func (*Talking) Kind() Kind              { return KindTalking }
func (*WebRTCUp) Kind() Kind             { return KindWebRTCUp }
func (*Media) Kind() Kind                { return KindMedia }
func (*Hangup) Kind() Kind               { return KindHangup }
func (*SlowLink) Kind() Kind             { return KindSlowLink }
func (*Trickle) Kind() Kind              { return KindTrickle }
func (*Detached) Kind() Kind             { return KindDetached }

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Reason)
}
