package janus

import (
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"roomcast/media"
	"roomcast/types/message"
	"roomcast/types/request"
)

// SubscriberJoinRoomState joins the room as subscriber of one publisher
// and waits for the gateway offer.
type SubscriberJoinRoomState struct {
	publisherID uint64
	transaction string
}

func NewSubscriberJoinRoomState(publisherID uint64) *SubscriberJoinRoomState {
	return &SubscriberJoinRoomState{publisherID: publisherID}
}

func (s *SubscriberJoinRoomState) Name() string { return "subscriber-join-room" }

// PublisherID returns the subscribed publisher.
func (s *SubscriberJoinRoomState) PublisherID() uint64 {
	return s.publisherID
}

func (s *SubscriberJoinRoomState) Initialize(ctx Context) error {
	var err error
	s.transaction, err = sendPluginMessage(ctx, request.NewJoinSubscriber(ctx.RoomID(), s.publisherID, ctx.PrivateID()))
	return err
}

func (s *SubscriberJoinRoomState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	data, ok := pluginReply(msg, s.transaction, "attached")
	if !ok || data.JSEP == nil || data.JSEP.Type != webrtc.SDPTypeOffer {
		return nil, nil
	}
	return NewSubscriberJoinedRoomState(s.publisherID, *data.JSEP), nil
}

// SubscriberJoinedRoomState answers the gateway offer and starts the
// subscription. Remote media is delivered to the stream context.
type SubscriberJoinedRoomState struct {
	publisherID uint64
	offer       webrtc.SessionDescription
}

func NewSubscriberJoinedRoomState(publisherID uint64, offer webrtc.SessionDescription) *SubscriberJoinedRoomState {
	return &SubscriberJoinedRoomState{publisherID: publisherID, offer: offer}
}

func (s *SubscriberJoinedRoomState) Name() string { return "subscriber-joined-room" }

func (s *SubscriberJoinedRoomState) Initialize(ctx Context) error {
	sc := ctx.StreamContext()
	pc, err := ctx.CreatePeerConnection(media.Callbacks{
		OnLocalDescription: func(description webrtc.SessionDescription) {
			req := request.NewMessage(ctx.SessionID(), ctx.PluginID(), request.NewStart(ctx.RoomID()))
			req.JSEP = &description
			if err := ctx.Send(req); err != nil {
				log.Error().Str("module", "janus").Err(err).Uint64("publisher", s.publisherID).Msg("failed to start subscription")
			}
		},
		OnICECandidate: func(candidate webrtc.ICECandidateInit) {
			sendCandidate(ctx, candidate)
		},
		OnICEGatheringComplete: func() {
			sendEndOfCandidates(ctx)
		},
		OnRemoteVideoFrame: func(pkt *rtp.Packet) {
			if sc.Video.RemoteFrame != nil {
				sc.Video.RemoteFrame(s.publisherID, pkt)
			}
		},
		OnRemoteVideoPresence: func(present bool) {
			if sc.Video.RemotePresence != nil {
				sc.Video.RemotePresence(s.publisherID, present)
			}
		},
		OnRemoteAudio: func(pkt *rtp.Packet) {
			if sc.Audio.RemoteAudio != nil {
				sc.Audio.RemoteAudio(s.publisherID, pkt)
			}
		},
	})
	if err != nil {
		return err
	}

	pc.SetRemoteDescription(s.offer)
	return nil
}

func (s *SubscriberJoinedRoomState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	switch m := msg.(type) {
	case *message.PluginData:
		if m.Body.Started != "" {
			log.Debug().Str("module", "janus").Uint64("publisher", s.publisherID).Msg("subscription started")
		}
	case *message.WebRTCUp:
		log.Debug().Str("module", "janus").Uint64("publisher", s.publisherID).Msg("gateway peer connection up")
	case *message.Hangup:
		log.Info().Str("module", "janus").Uint64("publisher", s.publisherID).Str("reason", m.Reason).Msg("gateway hung up")
	}
	return nil, nil
}
