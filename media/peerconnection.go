package media

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"roomcast/stream"
)

// Track and channel names announced to the gateway.
const (
	StreamID             = "roomcast"
	MicrophoneTrackID    = "microphone"
	CameraTrackID        = "camera"
	ScreenTrackID        = "screen"
	DataChannelLabel     = "events"
	DataChannelProtocol  = "stream-messaging"
	rtcpReadBufferLength = 1500
)

// Direction is the media direction requested for a kind at setup.
type Direction int

// Directions supported at setup. Send-receive is not used.
const (
	DirectionNone Direction = iota
	DirectionSendOnly
	DirectionRecvOnly
)

// Callbacks receives the events of a peer connection. Except for remote
// packets, which arrive on the track reader goroutine, callbacks run on the
// connection worker. Nil callbacks are skipped.
type Callbacks struct {
	OnLocalDescription     func(description webrtc.SessionDescription)
	OnICECandidate         func(candidate webrtc.ICECandidateInit)
	OnICEGatheringComplete func()
	OnConnectionState      func(state webrtc.PeerConnectionState)
	OnICEConnectionState   func(state webrtc.ICEConnectionState)
	OnDataChannelMessage   func(data []byte)
	OnRemoteVideoFrame     func(pkt *rtp.Packet)
	OnRemoteVideoPresence  func(present bool)
	OnRemoteAudio          func(pkt *rtp.Packet)
	OnException            func(err error)
}

// TrackInfo describes a negotiated local track.
type TrackInfo struct {
	Mid     string
	TrackID string
	Kind    webrtc.RTPCodecType
}

type localTrack struct {
	track       *webrtc.TrackLocalStaticSample
	transceiver *webrtc.RTPTransceiver
	enabled     bool
}

// PeerConnection owns one pion peer connection. Mutating operations are
// queued on a dedicated worker and return immediately.
type PeerConnection struct {
	role      Role
	conn      *webrtc.PeerConnection
	worker    *worker
	callbacks Callbacks
	sources   SourceProvider

	// Worker-owned state.
	queue            candidateQueue
	setupDone        bool
	closed           bool
	microphone       *localTrack
	camera           *localTrack
	screen           *localTrack
	cameraSource     CameraSource
	screenSource     ScreenCaptureSource
	cameraRunning    bool
	screenRunning    bool
	cameraDevice     *stream.Device
	cameraCapability *stream.Capability
	screenTarget     *stream.ScreenSource
	remoteChannels   []*webrtc.DataChannel

	mu          sync.RWMutex
	dataChannel *webrtc.DataChannel
	locals      []*localTrack

	closeOnce sync.Once
}

func newPeerConnection(role Role, conn *webrtc.PeerConnection, cb Callbacks, sources SourceProvider) *PeerConnection {
	p := &PeerConnection{
		role:      role,
		conn:      conn,
		worker:    newWorker(),
		callbacks: cb,
		sources:   sources,
	}
	p.register()
	return p
}

func (p *PeerConnection) register() {
	p.conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		p.worker.execute(func() {
			if c == nil {
				if p.callbacks.OnICEGatheringComplete != nil {
					p.callbacks.OnICEGatheringComplete()
				}
				return
			}
			if p.callbacks.OnICECandidate != nil {
				p.callbacks.OnICECandidate(c.ToJSON())
			}
		})
	})

	p.conn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Debug().Str("module", "media").Stringer("role", p.role).Stringer("state", state).Msg("ice connection state changed")
		p.worker.execute(func() {
			if p.callbacks.OnICEConnectionState != nil {
				p.callbacks.OnICEConnectionState(state)
			}
		})
	})

	p.conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug().Str("module", "media").Stringer("role", p.role).Stringer("state", state).Msg("peer connection state changed")
		p.worker.execute(func() {
			if p.callbacks.OnConnectionState != nil {
				p.callbacks.OnConnectionState(state)
			}
		})
	})

	p.conn.OnNegotiationNeeded(func() {
		p.worker.execute(func() {
			if p.closed {
				return
			}
			p.renegotiate()
		})
	})

	p.conn.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.worker.execute(func() {
			if p.closed {
				return
			}
			p.remoteChannels = append(p.remoteChannels, dc)
			dc.OnMessage(func(msg webrtc.DataChannelMessage) {
				if p.callbacks.OnDataChannelMessage != nil {
					p.callbacks.OnDataChannelMessage(msg.Data)
				}
			})
		})
	})

	p.conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		switch track.Kind() {
		case webrtc.RTPCodecTypeVideo:
			p.notifyPresence(true)
			p.readTrack(track, p.callbacks.OnRemoteVideoFrame)
			p.notifyPresence(false)
		case webrtc.RTPCodecTypeAudio:
			p.readTrack(track, p.callbacks.OnRemoteAudio)
		}
	})
}

func (p *PeerConnection) readTrack(track *webrtc.TrackRemote, sink func(*rtp.Packet)) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Str("module", "media").Err(err).Str("track", track.ID()).Msg("remote track ended")
			}
			return
		}
		if sink != nil {
			sink(pkt)
		}
	}
}

func (p *PeerConnection) notifyPresence(present bool) {
	p.worker.execute(func() {
		if p.callbacks.OnRemoteVideoPresence != nil {
			p.callbacks.OnRemoteVideoPresence(present)
		}
	})
}

// Setup adds the data channel and the local media for the given directions
// and creates the offer. It must be called once.
func (p *PeerConnection) Setup(audio, video Direction) {
	p.worker.execute(func() {
		if p.closed {
			return
		}
		if p.setupDone {
			p.fail(KindSession, ErrAlreadySetup)
			return
		}
		p.setupDone = true

		if err := p.addDataChannel(); err != nil {
			p.fail(KindData, err)
		}
		if err := p.addAudio(audio); err != nil {
			p.fail(KindAudio, err)
		}
		if err := p.addVideo(video); err != nil {
			p.fail(KindCamera, err)
		}
		p.createOffer()
	})
}

// SetRemoteDescription applies the remote description. An offer is answered
// with receive-only media.
func (p *PeerConnection) SetRemoteDescription(description webrtc.SessionDescription) {
	p.worker.execute(func() {
		if p.closed {
			return
		}
		if err := p.conn.SetRemoteDescription(description); err != nil {
			p.fail(KindSession, fmt.Errorf("failed to set remote %s: %w", description.Type, err))
			return
		}
		if description.Type == webrtc.SDPTypeOffer {
			p.addReceivers(description)
			p.createAnswer()
		}
		p.drainCandidates()
	})
}

// AddICECandidate applies a remote candidate, or queues it until both
// session descriptions are set.
func (p *PeerConnection) AddICECandidate(candidate webrtc.ICECandidateInit) {
	p.worker.execute(func() {
		if p.closed || p.queue.push(candidate) {
			return
		}
		p.applyCandidate(candidate)
	})
}

// SetMicrophoneEnabled mutes or unmutes the microphone track.
func (p *PeerConnection) SetMicrophoneEnabled(enable bool) {
	p.worker.execute(func() {
		if p.closed || p.microphone == nil {
			return
		}
		if err := p.setEnabled(p.microphone, enable); err != nil {
			p.fail(KindAudio, err)
		}
	})
}

// SetCameraEnabled starts or stops the camera. Enabling a camera that was
// never negotiated adds its track and sends a new offer.
func (p *PeerConnection) SetCameraEnabled(enable bool) {
	p.worker.execute(func() {
		if p.closed || !p.setupDone {
			return
		}
		added := false
		if p.camera == nil {
			if !enable {
				return
			}
			if err := p.addVideo(DirectionSendOnly); err != nil {
				p.fail(KindCamera, err)
				return
			}
			added = true
		}
		if err := p.setEnabled(p.camera, enable); err != nil {
			p.fail(KindCamera, err)
			return
		}
		if enable {
			p.startCamera()
		} else {
			p.stopCamera()
		}
		if added {
			p.renegotiate()
		}
	})
}

// SetCameraDevice selects the capture device of the camera.
func (p *PeerConnection) SetCameraDevice(device *stream.Device) {
	p.worker.execute(func() {
		if p.closed {
			return
		}
		p.cameraDevice = device
		if p.cameraSource == nil || device == nil {
			return
		}
		if err := p.cameraSource.SetDevice(*device); err != nil {
			p.fail(KindCamera, err)
		}
	})
}

// SetCameraCapability selects the capture format closest to capability.
func (p *PeerConnection) SetCameraCapability(capability *stream.Capability) {
	p.worker.execute(func() {
		if p.closed {
			return
		}
		p.cameraCapability = capability
		if p.cameraSource == nil || capability == nil {
			return
		}
		p.applyCapability()
	})
}

// SetScreenShareEnabled starts or stops screen sharing, adding the screen
// track on first use.
func (p *PeerConnection) SetScreenShareEnabled(enable bool) {
	p.worker.execute(func() {
		if p.closed || !p.setupDone {
			return
		}
		added := false
		if p.screen == nil {
			if !enable {
				return
			}
			if err := p.addScreen(); err != nil {
				p.fail(KindScreen, err)
				return
			}
			added = true
		}
		if err := p.setEnabled(p.screen, enable); err != nil {
			p.fail(KindScreen, err)
			return
		}
		if enable {
			p.startScreen()
		} else {
			p.stopScreen()
		}
		if added {
			p.renegotiate()
		}
	})
}

// SetScreenSource selects the screen or window to share.
func (p *PeerConnection) SetScreenSource(source *stream.ScreenSource) {
	p.worker.execute(func() {
		if p.closed {
			return
		}
		p.screenTarget = source
		if p.screenSource == nil || source == nil {
			return
		}
		if err := p.screenSource.SetSource(*source); err != nil {
			p.fail(KindScreen, err)
		}
	})
}

// SendData sends data over the local data channel.
func (p *PeerConnection) SendData(data []byte) error {
	p.mu.RLock()
	dc := p.dataChannel
	p.mu.RUnlock()

	if dc == nil {
		return ErrDataChannelNotCreated
	}
	if err := dc.Send(data); err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}
	return nil
}

// Tracks returns the local tracks that have a negotiated mid.
func (p *PeerConnection) Tracks() []TrackInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracks := make([]TrackInfo, 0, len(p.locals))
	for _, lt := range p.locals {
		mid := lt.transceiver.Mid()
		if mid == "" {
			continue
		}
		tracks = append(tracks, TrackInfo{Mid: mid, TrackID: lt.track.ID(), Kind: lt.track.Kind()})
	}
	return tracks
}

// Close stops capture, closes the data channels and the pion connection, in
// that order. It is safe to call more than once.
func (p *PeerConnection) Close() {
	p.closeOnce.Do(func() {
		p.worker.shutdown(p.dispose)
	})
}

// Done is closed once the connection is disposed.
func (p *PeerConnection) Done() <-chan struct{} {
	return p.worker.done
}

func (p *PeerConnection) dispose() {
	p.closed = true

	if p.cameraSource != nil {
		p.stopCamera()
		if err := p.cameraSource.Close(); err != nil {
			log.Warn().Str("module", "media").Err(err).Msg("failed to close camera source")
		}
		p.cameraSource = nil
	}
	if p.screenSource != nil {
		p.stopScreen()
		if err := p.screenSource.Close(); err != nil {
			log.Warn().Str("module", "media").Err(err).Msg("failed to close screen source")
		}
		p.screenSource = nil
	}

	p.mu.Lock()
	dc := p.dataChannel
	p.dataChannel = nil
	p.mu.Unlock()
	if dc != nil {
		if err := dc.Close(); err != nil {
			log.Warn().Str("module", "media").Err(err).Msg("failed to close data channel")
		}
	}
	for _, remote := range p.remoteChannels {
		_ = remote.Close()
	}
	p.remoteChannels = nil

	if err := p.conn.Close(); err != nil {
		log.Warn().Str("module", "media").Err(err).Stringer("role", p.role).Msg("failed to close peer connection")
	}
}

func (p *PeerConnection) createOffer() {
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		p.fail(KindSession, fmt.Errorf("failed to create offer: %w", err))
		return
	}
	p.setLocalDescription(offer)
}

// renegotiate offers again once the previous exchange completed. Changes
// made while an offer is pending are picked up by negotiation-needed.
func (p *PeerConnection) renegotiate() {
	if p.conn.RemoteDescription() == nil || p.conn.SignalingState() != webrtc.SignalingStateStable {
		return
	}
	p.createOffer()
}

func (p *PeerConnection) createAnswer() {
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		p.fail(KindSession, fmt.Errorf("failed to create answer: %w", err))
		return
	}
	p.setLocalDescription(answer)
}

func (p *PeerConnection) setLocalDescription(description webrtc.SessionDescription) {
	if err := p.conn.SetLocalDescription(description); err != nil {
		p.fail(KindSession, fmt.Errorf("failed to set local %s: %w", description.Type, err))
		return
	}
	if p.callbacks.OnLocalDescription != nil {
		p.callbacks.OnLocalDescription(description)
	}
	p.drainCandidates()
}

func (p *PeerConnection) drainCandidates() {
	if p.conn.LocalDescription() == nil || p.conn.RemoteDescription() == nil {
		return
	}
	for _, c := range p.queue.drain() {
		p.applyCandidate(c)
	}
}

func (p *PeerConnection) applyCandidate(candidate webrtc.ICECandidateInit) {
	if err := p.conn.AddICECandidate(candidate); err != nil {
		log.Warn().Str("module", "media").Err(err).Stringer("role", p.role).Msg("failed to add ice candidate")
	}
}

// addReceivers makes sure every media kind offered by the remote side has a
// receiving transceiver.
func (p *PeerConnection) addReceivers(offer webrtc.SessionDescription) {
	parsed, err := offer.Unmarshal()
	if err != nil {
		return
	}
	for _, md := range parsed.MediaDescriptions {
		var kind webrtc.RTPCodecType
		switch md.MediaName.Media {
		case "audio":
			kind = webrtc.RTPCodecTypeAudio
		case "video":
			kind = webrtc.RTPCodecTypeVideo
		default:
			continue
		}
		if p.hasTransceiver(kind) {
			continue
		}
		if _, err := p.conn.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			p.fail(KindSession, fmt.Errorf("failed to add %s receiver: %w", kind, err))
		}
	}
}

func (p *PeerConnection) hasTransceiver(kind webrtc.RTPCodecType) bool {
	for _, tr := range p.conn.GetTransceivers() {
		if tr.Kind() == kind {
			return true
		}
	}
	return false
}

func (p *PeerConnection) addDataChannel() error {
	protocol := DataChannelProtocol
	dc, err := p.conn.CreateDataChannel(DataChannelLabel, &webrtc.DataChannelInit{Protocol: &protocol})
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.callbacks.OnDataChannelMessage != nil {
			p.callbacks.OnDataChannelMessage(msg.Data)
		}
	})

	p.mu.Lock()
	p.dataChannel = dc
	p.mu.Unlock()
	return nil
}

func (p *PeerConnection) addAudio(direction Direction) error {
	switch direction {
	case DirectionNone:
		return nil
	case DirectionRecvOnly:
		return p.addReceiver(webrtc.RTPCodecTypeAudio)
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, MicrophoneTrackID, StreamID)
	if err != nil {
		return fmt.Errorf("failed to create microphone track: %w", err)
	}
	lt, err := p.addLocalTrack(track)
	if err != nil {
		return err
	}
	p.microphone = lt
	return nil
}

func (p *PeerConnection) addVideo(direction Direction) error {
	switch direction {
	case DirectionNone:
		return nil
	case DirectionRecvOnly:
		return p.addReceiver(webrtc.RTPCodecTypeVideo)
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}, CameraTrackID, StreamID)
	if err != nil {
		return fmt.Errorf("failed to create camera track: %w", err)
	}
	lt, err := p.addLocalTrack(track)
	if err != nil {
		return err
	}
	p.camera = lt

	if p.sources != nil {
		source, err := p.sources.NewCameraSource()
		if err != nil {
			return fmt.Errorf("failed to create camera source: %w", err)
		}
		p.cameraSource = source
		if p.cameraDevice != nil {
			if err := source.SetDevice(*p.cameraDevice); err != nil {
				return fmt.Errorf("failed to set camera device: %w", err)
			}
		}
		p.applyCapability()
	}
	return nil
}

func (p *PeerConnection) addScreen() error {
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}, ScreenTrackID, StreamID)
	if err != nil {
		return fmt.Errorf("failed to create screen track: %w", err)
	}
	lt, err := p.addLocalTrack(track)
	if err != nil {
		return err
	}
	p.screen = lt

	if p.sources != nil {
		source, err := p.sources.NewScreenSource()
		if err != nil {
			return fmt.Errorf("failed to create screen source: %w", err)
		}
		p.screenSource = source
		if p.screenTarget != nil {
			if err := source.SetSource(*p.screenTarget); err != nil {
				return fmt.Errorf("failed to set screen source: %w", err)
			}
		}
	}
	return nil
}

func (p *PeerConnection) addReceiver(kind webrtc.RTPCodecType) error {
	if _, err := p.conn.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("failed to add %s receiver: %w", kind, err)
	}
	return nil
}

func (p *PeerConnection) addLocalTrack(track *webrtc.TrackLocalStaticSample) (*localTrack, error) {
	tr, err := p.conn.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add %s track: %w", track.ID(), err)
	}

	// Read incoming RTCP so the interceptors can process it.
	go func(sender *webrtc.RTPSender) {
		buf := make([]byte, rtcpReadBufferLength)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}(tr.Sender())

	lt := &localTrack{track: track, transceiver: tr, enabled: true}
	p.mu.Lock()
	p.locals = append(p.locals, lt)
	p.mu.Unlock()
	return lt, nil
}

func (p *PeerConnection) setEnabled(lt *localTrack, enable bool) error {
	if lt.enabled == enable {
		return nil
	}
	var track webrtc.TrackLocal
	if enable {
		track = lt.track
	}
	if err := lt.transceiver.Sender().ReplaceTrack(track); err != nil {
		return fmt.Errorf("failed to replace %s track: %w", lt.track.ID(), err)
	}
	lt.enabled = enable
	return nil
}

func (p *PeerConnection) applyCapability() {
	if p.cameraSource == nil || p.cameraCapability == nil {
		return
	}
	capability := *p.cameraCapability
	if nearest, ok := NearestCapability(capability, p.cameraSource.Capabilities()); ok {
		capability = nearest
	}
	if err := p.cameraSource.SetCapability(capability); err != nil {
		p.fail(KindCamera, err)
	}
}

func (p *PeerConnection) startCamera() {
	if p.cameraRunning {
		return
	}
	if p.cameraSource == nil {
		p.fail(KindCamera, ErrNoCaptureSource)
		return
	}
	if err := p.cameraSource.Start(p.camera.track); err != nil {
		p.fail(KindCamera, fmt.Errorf("failed to start camera: %w", err))
		return
	}
	p.cameraRunning = true
}

func (p *PeerConnection) stopCamera() {
	if !p.cameraRunning || p.cameraSource == nil {
		return
	}
	if err := p.cameraSource.Stop(); err != nil {
		p.fail(KindCamera, fmt.Errorf("failed to stop camera: %w", err))
	}
	p.cameraRunning = false
}

func (p *PeerConnection) startScreen() {
	if p.screenRunning {
		return
	}
	if p.screenSource == nil {
		p.fail(KindScreen, ErrNoCaptureSource)
		return
	}
	if err := p.screenSource.Start(p.screen.track); err != nil {
		p.fail(KindScreen, fmt.Errorf("failed to start screen capture: %w", err))
		return
	}
	p.screenRunning = true
}

func (p *PeerConnection) stopScreen() {
	if !p.screenRunning || p.screenSource == nil {
		return
	}
	if err := p.screenSource.Stop(); err != nil {
		p.fail(KindScreen, fmt.Errorf("failed to stop screen capture: %w", err))
	}
	p.screenRunning = false
}

func (p *PeerConnection) fail(kind Kind, err error) {
	mediaErr := &MediaError{Role: p.role, Kind: kind, Err: err}
	log.Error().Str("module", "media").Err(mediaErr).Msg("peer connection error")
	if p.callbacks.OnException != nil {
		p.callbacks.OnException(mediaErr)
	}
}
