package janus

import (
	"github.com/rs/zerolog/log"

	"roomcast/media"
	"roomcast/stream"
	"roomcast/types/message"
	"roomcast/types/request"
)

// SubscriberHandler receives the media of one remote publisher.
type SubscriberHandler struct {
	*Handler

	publisher message.Publisher
}

// NewSubscriberHandler returns a subscriber of publisher in an existing
// room of the session.
func NewSubscriberHandler(transport Transport, factory PeerConnectionFactory, sc *stream.Context, publisher message.Publisher, sessionID, roomID uint64) *SubscriberHandler {
	s := &SubscriberHandler{
		Handler:   NewHandler(media.RoleSubscriber, transport, factory, sc, Hooks{}),
		publisher: publisher,
	}
	s.mu.Lock()
	s.sessionID = sessionID
	s.roomID = roomID
	s.mu.Unlock()
	return s
}

// Publisher returns the subscribed publisher.
func (s *SubscriberHandler) Publisher() message.Publisher {
	return s.publisher
}

// Start attaches the plugin and joins the room for the publisher.
func (s *SubscriberHandler) Start() error {
	return s.SetState(NewAttachPluginState(NewSubscriberJoinRoomState(s.publisher.ID)))
}

// Stop leaves the room, closes the peer connection and detaches. It is
// safe to call more than once.
func (s *SubscriberHandler) Stop() {
	if !s.markStopped() {
		return
	}
	if s.PluginID() != 0 {
		if _, err := sendPluginMessage(s.Handler, request.NewLeave()); err != nil {
			log.Warn().Str("module", "janus").Err(err).Uint64("publisher", s.publisher.ID).Msg("failed to leave room")
		}
	}
	s.ClosePeerConnection()
	s.detach()
}

// HandleMessage drops plugin-scoped messages addressed to other handles.
// Before the attach reply every plugin-scoped message is foreign.
func (s *SubscriberHandler) HandleMessage(msg message.Message) error {
	if id := msg.HandleID(); id != 0 && id != s.PluginID() {
		return nil
	}
	return s.Handler.HandleMessage(msg)
}
