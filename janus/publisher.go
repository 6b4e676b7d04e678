package janus

import (
	"sync"

	"github.com/rs/zerolog/log"

	"roomcast/media"
	"roomcast/stream"
	"roomcast/types/message"
	"roomcast/types/request"
)

// PublisherHandler creates the room and publishes local media into it.
type PublisherHandler struct {
	*Handler

	config   RoomConfig
	recorder ActionSource

	mu       sync.Mutex
	bindings []func()
}

// NewPublisherHandler returns a publisher for the room described by config.
// recorder may be nil.
func NewPublisherHandler(transport Transport, factory PeerConnectionFactory, sc *stream.Context, recorder ActionSource, config RoomConfig) *PublisherHandler {
	p := &PublisherHandler{config: config, recorder: recorder}
	p.Handler = NewHandler(media.RolePublisher, transport, factory, sc, Hooks{PeerConnectionCreated: p.bind})
	p.SetRoom(config.Room, config.Secret)
	return p
}

// Start attaches the plugin, creates and joins the room and publishes.
func (p *PublisherHandler) Start() error {
	if p.recorder != nil {
		p.recorder.AddConsumer(p)
	}
	return p.SetState(NewAttachPluginState(NewCreateRoomState(p.config, NewJoinRoomState(NewPublishToRoomState()))))
}

// Stop destroys the room, closes the peer connection and detaches. It is
// safe to call more than once.
func (p *PublisherHandler) Stop() {
	if !p.markStopped() {
		return
	}
	if p.recorder != nil {
		p.recorder.RemoveConsumer(p)
	}
	p.unbind()

	if p.PluginID() != 0 && p.RoomID() != 0 {
		if err := p.SetState(NewDestroyRoomState()); err != nil {
			log.Warn().Str("module", "janus").Err(err).Msg("failed to destroy room")
		}
	}
	p.ClosePeerConnection()
	p.detach()
}

// HandleMessage drops plugin-scoped messages addressed to other handles.
func (p *PublisherHandler) HandleMessage(msg message.Message) error {
	if id := msg.HandleID(); id != 0 && id != p.PluginID() {
		return nil
	}
	return p.Handler.HandleMessage(msg)
}

func (p *PublisherHandler) bind(pc PeerConnection) {
	sc := p.StreamContext()

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, remove := range p.bindings {
		remove()
	}
	p.bindings = []func(){
		sc.Audio.SendAudio.AddListener(func(_, enable bool) { pc.SetMicrophoneEnabled(enable) }),
		sc.Video.SendVideo.AddListener(func(_, enable bool) { pc.SetCameraEnabled(enable) }),
		sc.Video.CaptureDevice.AddListener(func(_, device *stream.Device) { pc.SetCameraDevice(device) }),
		sc.Video.CaptureCapability.AddListener(func(_, capability *stream.Capability) { pc.SetCameraCapability(capability) }),
		sc.Screen.SendScreen.AddListener(func(_, enable bool) { pc.SetScreenShareEnabled(enable) }),
		sc.Screen.Source.AddListener(func(_, source *stream.ScreenSource) { pc.SetScreenSource(source) }),
	}
}

func (p *PublisherHandler) unbind() {
	p.mu.Lock()
	bindings := p.bindings
	p.bindings = nil
	p.mu.Unlock()

	for _, remove := range bindings {
		remove()
	}
}

// SendAction encodes action and sends it over the data channel.
func (p *PublisherHandler) SendAction(action stream.Action) error {
	pc := p.PeerConnection()
	if pc == nil {
		return ErrNoPeerConnection
	}
	data, err := stream.Encode(action)
	if err != nil {
		return err
	}
	return pc.SendData(data)
}

// ConsumeAction forwards a recorded action. Failures are logged only.
func (p *PublisherHandler) ConsumeAction(action stream.Action) {
	if err := p.SendAction(action); err != nil {
		log.Warn().Str("module", "janus").Err(err).Uint8("action", uint8(action.Type())).Msg("failed to forward action")
	}
}

// StartRemoteSpeech admits a second publisher into the room.
func (p *PublisherHandler) StartRemoteSpeech() error {
	return p.editPublishers(2)
}

// StopRemoteSpeech limits the room to the local publisher again.
func (p *PublisherHandler) StopRemoteSpeech() error {
	return p.editPublishers(1)
}

func (p *PublisherHandler) editPublishers(n int) error {
	if p.PluginID() == 0 || p.RoomID() == 0 {
		return ErrNotJoined
	}
	_, err := sendPluginMessage(p.Handler, request.NewEditRoom(p.RoomID(), p.RoomSecret(), n))
	return err
}

// Kick removes a participant from the room.
func (p *PublisherHandler) Kick(participantID uint64) error {
	if p.PluginID() == 0 || p.RoomID() == 0 {
		return ErrNotJoined
	}
	_, err := sendPluginMessage(p.Handler, request.NewKick(p.RoomID(), p.RoomSecret(), participantID))
	return err
}

// Moderate mutes or unmutes one stream of a participant.
func (p *PublisherHandler) Moderate(participantID uint64, mid string, mute bool) error {
	if p.PluginID() == 0 || p.RoomID() == 0 {
		return ErrNotJoined
	}
	_, err := sendPluginMessage(p.Handler, request.NewModerate(p.RoomID(), p.RoomSecret(), participantID, mid, mute))
	return err
}
