package media_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomcast/media"
	"roomcast/stream"
)

type fakeAudioModule struct {
	mu     sync.Mutex
	calls  []string
	closed int
}

func (a *fakeAudioModule) record(call string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
	return nil
}

func (a *fakeAudioModule) SetPlayoutDevice(d stream.Device) error   { return a.record("playout:" + d.ID) }
func (a *fakeAudioModule) SetRecordingDevice(d stream.Device) error { return a.record("recording:" + d.ID) }
func (a *fakeAudioModule) StartPlayout() error                      { return a.record("start-playout") }
func (a *fakeAudioModule) StopPlayout() error                       { return a.record("stop-playout") }
func (a *fakeAudioModule) StartRecording() error                    { return a.record("start-recording") }
func (a *fakeAudioModule) StopRecording() error                     { return a.record("stop-recording") }
func (a *fakeAudioModule) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
	return nil
}

func (a *fakeAudioModule) snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type fakeCamera struct {
	mu         sync.Mutex
	starts     int
	stops      int
	closes     int
	device     string
	capability stream.Capability
}

func (c *fakeCamera) Start(*webrtc.TrackLocalStaticSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	return nil
}

func (c *fakeCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeCamera) Capabilities() []stream.Capability {
	return []stream.Capability{
		{Width: 640, Height: 480, FrameRate: 30},
		{Width: 1280, Height: 720, FrameRate: 30},
	}
}

func (c *fakeCamera) SetDevice(d stream.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = d.ID
	return nil
}

func (c *fakeCamera) SetCapability(capability stream.Capability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capability = capability
	return nil
}

type fakeScreen struct {
	mu     sync.Mutex
	starts int
}

func (c *fakeScreen) Start(*webrtc.TrackLocalStaticSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	return nil
}

func (c *fakeScreen) Stop() error                         { return nil }
func (c *fakeScreen) Close() error                        { return nil }
func (c *fakeScreen) SetSource(stream.ScreenSource) error { return nil }

type fakeSources struct {
	camera *fakeCamera
	screen *fakeScreen
}

func (s *fakeSources) NewCameraSource() (media.CameraSource, error) {
	return s.camera, nil
}

func (s *fakeSources) NewScreenSource() (media.ScreenCaptureSource, error) {
	if s.screen == nil {
		return nil, errors.New("no screen capture")
	}
	return s.screen, nil
}

func testConfig() media.Config {
	return media.Config{ICEServers: []string{}, IncludeLoopback: true}
}

func TestFactoryAppliesDevices(t *testing.T) {
	ctx := stream.NewContext("lecturer")
	ctx.Audio.PlaybackDevice.Set(&stream.Device{ID: "speaker"})
	audio := &fakeAudioModule{}

	factory, err := media.NewFactory(testConfig(), ctx, audio, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"playout:speaker"}, audio.snapshot())

	ctx.Audio.RecordingDevice.Set(&stream.Device{ID: "mic"})
	ctx.Audio.RecordingDevice.Set(nil)
	assert.Eventually(t, func() bool {
		return len(audio.snapshot()) == 4
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"playout:speaker", "stop-recording", "recording:mic", "start-recording"}, audio.snapshot())

	factory.Dispose()
	factory.Dispose()
	assert.Equal(t, 1, audio.closed)

	ctx.Audio.PlaybackDevice.Set(&stream.Device{ID: "headset"})
	assert.Len(t, audio.snapshot(), 4)
}

func TestFactoryRejectsInvalidPortRange(t *testing.T) {
	conf := testConfig()
	conf.MinUDPPort = 6000
	conf.MaxUDPPort = 5000

	_, err := media.NewFactory(conf, stream.NewContext(""), nil, nil)
	assert.ErrorIs(t, err, media.ErrInvalidPortRange)
}

func TestSendDataBeforeSetup(t *testing.T) {
	factory, err := media.NewFactory(testConfig(), stream.NewContext(""), nil, nil)
	require.NoError(t, err)
	defer factory.Dispose()

	pc, err := factory.NewPeerConnection(media.RolePublisher, media.Callbacks{})
	require.NoError(t, err)
	defer pc.Close()

	assert.ErrorIs(t, pc.SendData([]byte("hello")), media.ErrDataChannelNotCreated)
}

func TestCloseIsIdempotent(t *testing.T) {
	camera := &fakeCamera{}
	factory, err := media.NewFactory(testConfig(), stream.NewContext(""), nil, &fakeSources{camera: camera})
	require.NoError(t, err)
	defer factory.Dispose()

	descriptions := make(chan webrtc.SessionDescription, 1)
	pc, err := factory.NewPeerConnection(media.RolePublisher, media.Callbacks{
		OnLocalDescription: func(d webrtc.SessionDescription) { descriptions <- d },
	})
	require.NoError(t, err)

	pc.SetCameraDevice(&stream.Device{ID: "cam0"})
	pc.SetCameraCapability(&stream.Capability{Width: 1280, Height: 700, FrameRate: 25})
	pc.Setup(media.DirectionSendOnly, media.DirectionSendOnly)
	pc.SetCameraEnabled(true)

	select {
	case offer := <-descriptions:
		assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no local offer")
	}

	pc.Close()
	pc.Close()
	<-pc.Done()

	camera.mu.Lock()
	defer camera.mu.Unlock()
	assert.Equal(t, 1, camera.starts)
	assert.Equal(t, 1, camera.stops)
	assert.Equal(t, 1, camera.closes)
	assert.Equal(t, "cam0", camera.device)
	assert.Equal(t, stream.Capability{Width: 1280, Height: 720, FrameRate: 30}, camera.capability)
}

func newRemote(t *testing.T) *webrtc.PeerConnection {
	t.Helper()
	m := &webrtc.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())
	s := webrtc.SettingEngine{}
	s.SetIncludeLoopbackCandidate(true)
	remote, err := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)).NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })
	return remote
}

func answer(t *testing.T, remote *webrtc.PeerConnection, offer webrtc.SessionDescription) webrtc.SessionDescription {
	t.Helper()
	require.NoError(t, remote.SetRemoteDescription(offer))
	desc, err := remote.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(desc))
	return desc
}

func TestCameraEnabledAfterAnswerRenegotiates(t *testing.T) {
	tests := []struct {
		name         string
		enable       func(pc *media.PeerConnection)
		cameraStarts int
		screenStarts int
	}{
		{
			name:         "given audio only session when camera enabled then offer video",
			enable:       func(pc *media.PeerConnection) { pc.SetCameraEnabled(true) },
			cameraStarts: 1,
		},
		{
			name:         "given audio only session when screen share enabled then offer video",
			enable:       func(pc *media.PeerConnection) { pc.SetScreenShareEnabled(true) },
			screenStarts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			camera := &fakeCamera{}
			screen := &fakeScreen{}
			factory, err := media.NewFactory(testConfig(), stream.NewContext(""), nil, &fakeSources{camera: camera, screen: screen})
			require.NoError(t, err)
			defer factory.Dispose()

			offers := make(chan webrtc.SessionDescription, 4)
			pc, err := factory.NewPeerConnection(media.RolePublisher, media.Callbacks{
				OnLocalDescription: func(d webrtc.SessionDescription) { offers <- d },
			})
			require.NoError(t, err)
			defer pc.Close()

			pc.Setup(media.DirectionSendOnly, media.DirectionNone)

			var first webrtc.SessionDescription
			select {
			case first = <-offers:
			case <-time.After(5 * time.Second):
				t.Fatal("no local offer")
			}
			assert.NotContains(t, first.SDP, "m=video")

			remote := newRemote(t)
			pc.SetRemoteDescription(answer(t, remote, first))
			tt.enable(pc)

			select {
			case second := <-offers:
				assert.Equal(t, webrtc.SDPTypeOffer, second.Type)
				assert.Contains(t, second.SDP, "m=video")
			case <-time.After(5 * time.Second):
				t.Fatal("no renegotiation offer")
			}

			camera.mu.Lock()
			assert.Equal(t, tt.cameraStarts, camera.starts)
			camera.mu.Unlock()
			screen.mu.Lock()
			assert.Equal(t, tt.screenStarts, screen.starts)
			screen.mu.Unlock()
		})
	}
}

func TestCameraEnabledDuringPendingOfferWaitsForAnswer(t *testing.T) {
	factory, err := media.NewFactory(testConfig(), stream.NewContext(""), nil, &fakeSources{camera: &fakeCamera{}})
	require.NoError(t, err)
	defer factory.Dispose()

	offers := make(chan webrtc.SessionDescription, 4)
	pc, err := factory.NewPeerConnection(media.RolePublisher, media.Callbacks{
		OnLocalDescription: func(d webrtc.SessionDescription) { offers <- d },
	})
	require.NoError(t, err)
	defer pc.Close()

	pc.Setup(media.DirectionSendOnly, media.DirectionNone)
	pc.SetCameraEnabled(true)

	var first webrtc.SessionDescription
	select {
	case first = <-offers:
	case <-time.After(5 * time.Second):
		t.Fatal("no local offer")
	}
	select {
	case <-offers:
		t.Fatal("offer sent while the first one is pending")
	case <-time.After(200 * time.Millisecond):
	}

	pc.SetRemoteDescription(answer(t, newRemote(t), first))

	select {
	case second := <-offers:
		assert.Contains(t, second.SDP, "m=video")
	case <-time.After(5 * time.Second):
		t.Fatal("no renegotiation offer")
	}
}

func TestSetupTwiceReportsError(t *testing.T) {
	factory, err := media.NewFactory(testConfig(), stream.NewContext(""), nil, nil)
	require.NoError(t, err)
	defer factory.Dispose()

	errs := make(chan error, 4)
	pc, err := factory.NewPeerConnection(media.RolePublisher, media.Callbacks{
		OnException: func(err error) { errs <- err },
	})
	require.NoError(t, err)
	defer pc.Close()

	pc.Setup(media.DirectionSendOnly, media.DirectionNone)
	pc.Setup(media.DirectionSendOnly, media.DirectionNone)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, media.ErrAlreadySetup)
		var mediaErr *media.MediaError
		require.ErrorAs(t, err, &mediaErr)
		assert.Equal(t, media.RolePublisher, mediaErr.Role)
	case <-time.After(5 * time.Second):
		t.Fatal("no exception")
	}
}

func TestPeerConnectionNegotiatesWithRemote(t *testing.T) {
	factory, err := media.NewFactory(testConfig(), stream.NewContext(""), nil, nil)
	require.NoError(t, err)
	defer factory.Dispose()

	m := &webrtc.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())
	s := webrtc.SettingEngine{}
	s.SetIncludeLoopbackCandidate(true)
	remote, err := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)).NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer func() { _ = remote.Close() }()

	received := make(chan []byte, 1)
	remote.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			received <- msg.Data
		})
	})

	offers := make(chan webrtc.SessionDescription, 1)
	candidates := make(chan webrtc.ICECandidateInit, 64)
	connected := make(chan struct{})
	var once sync.Once

	pc, err := factory.NewPeerConnection(media.RolePublisher, media.Callbacks{
		OnLocalDescription: func(d webrtc.SessionDescription) { offers <- d },
		OnICECandidate:     func(c webrtc.ICECandidateInit) { candidates <- c },
		OnConnectionState: func(state webrtc.PeerConnectionState) {
			if state == webrtc.PeerConnectionStateConnected {
				once.Do(func() { close(connected) })
			}
		},
	})
	require.NoError(t, err)
	defer pc.Close()

	pc.Setup(media.DirectionSendOnly, media.DirectionNone)

	var offer webrtc.SessionDescription
	select {
	case offer = <-offers:
	case <-time.After(5 * time.Second):
		t.Fatal("no local offer")
	}
	require.NoError(t, remote.SetRemoteDescription(offer))

	// Remote candidates reach the wrapper before its remote description and
	// must be queued until the answer is applied.
	remote.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			pc.AddICECandidate(c.ToJSON())
		}
	})
	answer, err := remote.CreateAnswer(nil)
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(remote)
	require.NoError(t, remote.SetLocalDescription(answer))
	<-gathered

	pc.SetRemoteDescription(*remote.LocalDescription())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case c := <-candidates:
				_ = remote.AddICECandidate(c)
			case <-stop:
				return
			}
		}
	}()

	select {
	case <-connected:
	case <-time.After(15 * time.Second):
		t.Fatal("peer connection did not connect")
	}

	tracks := pc.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, media.MicrophoneTrackID, tracks[0].TrackID)
	assert.NotEmpty(t, tracks[0].Mid)

	assert.Eventually(t, func() bool {
		return pc.SendData([]byte("action")) == nil
	}, 10*time.Second, 50*time.Millisecond)
	select {
	case data := <-received:
		assert.Equal(t, []byte("action"), data)
	case <-time.After(5 * time.Second):
		t.Fatal("no data channel message")
	}
}

func TestNearestCapability(t *testing.T) {
	available := []stream.Capability{
		{Width: 640, Height: 480, FrameRate: 30},
		{Width: 1280, Height: 720, FrameRate: 15},
		{Width: 1280, Height: 720, FrameRate: 30},
	}

	tests := []struct {
		name      string
		wanted    stream.Capability
		available []stream.Capability
		want      stream.Capability
		ok        bool
	}{
		{
			name:      "given exact match when searched then return it",
			wanted:    stream.Capability{Width: 640, Height: 480, FrameRate: 30},
			available: available,
			want:      stream.Capability{Width: 640, Height: 480, FrameRate: 30},
			ok:        true,
		},
		{
			name:      "given equal resolutions when searched then prefer closer frame rate",
			wanted:    stream.Capability{Width: 1280, Height: 720, FrameRate: 25},
			available: available,
			want:      stream.Capability{Width: 1280, Height: 720, FrameRate: 30},
			ok:        true,
		},
		{
			name:      "given no capabilities when searched then return false",
			wanted:    stream.Capability{Width: 1280, Height: 720, FrameRate: 25},
			available: nil,
			ok:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := media.NearestCapability(tt.wanted, tt.available)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		conf    media.Config
		wantErr bool
	}{
		{name: "given no range when validated then return nil", conf: media.Config{}},
		{name: "given valid range when validated then return nil", conf: media.Config{MinUDPPort: 5000, MaxUDPPort: 5100}},
		{name: "given inverted range when validated then return error", conf: media.Config{MinUDPPort: 5100, MaxUDPPort: 5000}, wantErr: true},
		{name: "given out of range port when validated then return error", conf: media.Config{MinUDPPort: 1, MaxUDPPort: 70000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, media.ErrInvalidPortRange)
				return
			}
			assert.NoError(t, err)
		})
	}
}
