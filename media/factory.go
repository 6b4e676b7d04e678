package media

import (
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"roomcast/stream"
)

// Factory creates peer connections sharing one pion API and one audio module.
type Factory struct {
	api       *webrtc.API
	config    webrtc.Configuration
	audio     AudioModule
	sources   SourceProvider
	worker    *worker
	playout   *stream.Device
	recording *stream.Device
	removers  []func()
	once      sync.Once
}

// NewFactory builds the pion API and applies the initial audio devices of
// ctx. It returns once the devices are configured. A nil audio module
// selects NopAudioModule; a nil source provider disables capture.
func NewFactory(conf Config, ctx *stream.Context, audio AudioModule, sources SourceProvider) (*Factory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	s := webrtc.SettingEngine{}
	if err := conf.SetPortRange(&s); err != nil {
		return nil, err
	}
	s.SetIncludeLoopbackCandidate(conf.IncludeLoopback)

	if audio == nil {
		audio = NopAudioModule{}
	}

	f := &Factory{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(m),
			webrtc.WithInterceptorRegistry(registry),
			webrtc.WithSettingEngine(s),
		),
		config:  conf.configuration(),
		audio:   audio,
		sources: sources,
		worker:  newWorker(),
	}

	err := f.worker.call(func() error {
		if err := f.setPlayoutDevice(ctx.Audio.PlaybackDevice.Get(), false); err != nil {
			return err
		}
		return f.setRecordingDevice(ctx.Audio.RecordingDevice.Get(), false)
	})
	if err != nil {
		f.worker.shutdown(nil)
		return nil, fmt.Errorf("failed to configure audio devices: %w", err)
	}

	f.removers = append(f.removers,
		ctx.Audio.PlaybackDevice.AddListener(func(_, device *stream.Device) {
			f.worker.execute(func() {
				if err := f.setPlayoutDevice(device, true); err != nil {
					log.Error().Str("module", "media").Err(err).Msg("failed to change playout device")
				}
			})
		}),
		ctx.Audio.RecordingDevice.AddListener(func(_, device *stream.Device) {
			f.worker.execute(func() {
				if err := f.setRecordingDevice(device, true); err != nil {
					log.Error().Str("module", "media").Err(err).Msg("failed to change recording device")
				}
			})
		}),
	)

	return f, nil
}

// NewPeerConnection creates a peer connection delivering events to cb.
func (f *Factory) NewPeerConnection(role Role, cb Callbacks) (*PeerConnection, error) {
	conn, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s peer connection: %w", role, err)
	}
	return newPeerConnection(role, conn, cb, f.sources), nil
}

// Dispose detaches the device listeners, closes the audio module and stops
// the factory worker. It is safe to call more than once.
func (f *Factory) Dispose() {
	f.once.Do(func() {
		for _, remove := range f.removers {
			remove()
		}
		f.worker.shutdown(func() {
			if err := f.audio.Close(); err != nil {
				log.Error().Str("module", "media").Err(err).Msg("failed to close audio module")
			}
		})
		<-f.worker.done
	})
}

func (f *Factory) setPlayoutDevice(device *stream.Device, start bool) error {
	if device == nil || sameDevice(f.playout, device) {
		return nil
	}
	if start {
		if err := f.audio.StopPlayout(); err != nil {
			return fmt.Errorf("failed to stop playout: %w", err)
		}
	}
	if err := f.audio.SetPlayoutDevice(*device); err != nil {
		return fmt.Errorf("failed to set playout device %s: %w", device.Name, err)
	}
	if start {
		if err := f.audio.StartPlayout(); err != nil {
			return fmt.Errorf("failed to start playout: %w", err)
		}
	}
	f.playout = device
	return nil
}

func (f *Factory) setRecordingDevice(device *stream.Device, start bool) error {
	if device == nil || sameDevice(f.recording, device) {
		return nil
	}
	if start {
		if err := f.audio.StopRecording(); err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}
	}
	if err := f.audio.SetRecordingDevice(*device); err != nil {
		return fmt.Errorf("failed to set recording device %s: %w", device.Name, err)
	}
	if start {
		if err := f.audio.StartRecording(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
	}
	f.recording = device
	return nil
}

func sameDevice(a, b *stream.Device) bool {
	return a != nil && b != nil && a.ID == b.ID
}
