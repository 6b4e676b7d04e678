package janus

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"roomcast/media"
	"roomcast/types/message"
	"roomcast/types/request"
)

// PublishToRoomState sets up the sending peer connection and publishes
// every local offer. The first offer is published, later ones reconfigure
// the publication.
type PublishToRoomState struct {
	mu           sync.Mutex
	published    bool
	transactions map[string]struct{}
}

func NewPublishToRoomState() *PublishToRoomState {
	return &PublishToRoomState{transactions: make(map[string]struct{})}
}

func (s *PublishToRoomState) Name() string { return "publish-to-room" }

func (s *PublishToRoomState) Initialize(ctx Context) error {
	pc, err := ctx.CreatePeerConnection(media.Callbacks{
		OnLocalDescription: func(description webrtc.SessionDescription) {
			s.publish(ctx, description)
		},
		OnICECandidate: func(candidate webrtc.ICECandidateInit) {
			sendCandidate(ctx, candidate)
		},
		OnICEGatheringComplete: func() {
			sendEndOfCandidates(ctx)
		},
	})
	if err != nil {
		return err
	}

	sc := ctx.StreamContext()
	pc.SetCameraDevice(sc.Video.CaptureDevice.Get())
	pc.SetCameraCapability(sc.Video.CaptureCapability.Get())
	pc.SetScreenSource(sc.Screen.Source.Get())

	video := media.DirectionNone
	if sc.Video.SendVideo.Get() {
		video = media.DirectionSendOnly
	}
	pc.Setup(media.DirectionSendOnly, video)
	pc.SetMicrophoneEnabled(sc.Audio.SendAudio.Get())
	if sc.Video.SendVideo.Get() {
		pc.SetCameraEnabled(true)
	}
	if sc.Screen.SendScreen.Get() {
		pc.SetScreenShareEnabled(true)
	}
	return nil
}

func (s *PublishToRoomState) publish(ctx Context, description webrtc.SessionDescription) {
	pc := ctx.PeerConnection()
	if pc == nil {
		return
	}

	var descriptions []request.StreamDescription
	for _, track := range pc.Tracks() {
		descriptions = append(descriptions, request.StreamDescription{Mid: track.Mid, Description: track.TrackID})
	}

	s.mu.Lock()
	renegotiate := s.published
	s.published = true
	s.mu.Unlock()

	req := request.NewMessage(ctx.SessionID(), ctx.PluginID(), request.NewPublish(descriptions, renegotiate))
	req.JSEP = &description

	s.mu.Lock()
	s.transactions[req.Transaction] = struct{}{}
	s.mu.Unlock()

	if err := ctx.Send(req); err != nil {
		log.Error().Str("module", "janus").Err(err).Msg("failed to publish offer")
	}
}

func (s *PublishToRoomState) owns(transaction string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.transactions[transaction]
	if ok {
		delete(s.transactions, transaction)
	}
	return ok
}

func (s *PublishToRoomState) HandleMessage(ctx Context, msg message.Message) (State, error) {
	switch m := msg.(type) {
	case *message.PluginData:
		if m.JSEP == nil || m.JSEP.Type != webrtc.SDPTypeAnswer || !s.owns(m.TransactionID()) {
			return nil, nil
		}
		if pc := ctx.PeerConnection(); pc != nil {
			pc.SetRemoteDescription(*m.JSEP)
		}
	case *message.WebRTCUp:
		log.Debug().Str("module", "janus").Uint64("handle", ctx.PluginID()).Msg("gateway peer connection up")
	case *message.Media:
		log.Debug().Str("module", "janus").Str("type", m.Type).Bool("receiving", m.Receiving).Msg("gateway media state")
	case *message.SlowLink:
		log.Warn().Str("module", "janus").Str("type", m.Type).Int("lost", m.Lost).Msg("slow link")
	case *message.Hangup:
		log.Info().Str("module", "janus").Str("reason", m.Reason).Msg("gateway hung up")
	}
	return nil, nil
}
