package media

import (
	"github.com/pion/webrtc/v4"

	"roomcast/stream"
)

// AudioModule plays and records audio on the host devices.
type AudioModule interface {
	SetPlayoutDevice(device stream.Device) error
	SetRecordingDevice(device stream.Device) error
	StartPlayout() error
	StopPlayout() error
	StartRecording() error
	StopRecording() error
	Close() error
}

// VideoSource writes encoded samples of a capture into a local track.
type VideoSource interface {
	Start(track *webrtc.TrackLocalStaticSample) error
	Stop() error
	Close() error
}

// CameraSource captures a camera.
type CameraSource interface {
	VideoSource
	Capabilities() []stream.Capability
	SetDevice(device stream.Device) error
	SetCapability(capability stream.Capability) error
}

// ScreenCaptureSource captures a screen or window.
type ScreenCaptureSource interface {
	VideoSource
	SetSource(source stream.ScreenSource) error
}

// SourceProvider creates capture sources for new peer connections.
type SourceProvider interface {
	NewCameraSource() (CameraSource, error)
	NewScreenSource() (ScreenCaptureSource, error)
}

// NopAudioModule is an AudioModule without devices.
type NopAudioModule struct{}

func (NopAudioModule) SetPlayoutDevice(stream.Device) error   { return nil }
func (NopAudioModule) SetRecordingDevice(stream.Device) error { return nil }
func (NopAudioModule) StartPlayout() error                    { return nil }
func (NopAudioModule) StopPlayout() error                     { return nil }
func (NopAudioModule) StartRecording() error                  { return nil }
func (NopAudioModule) StopRecording() error                   { return nil }
func (NopAudioModule) Close() error                           { return nil }

// NearestCapability returns the available capability closest to wanted,
// comparing resolution first and frame rate second.
func NearestCapability(wanted stream.Capability, available []stream.Capability) (stream.Capability, bool) {
	if len(available) == 0 {
		return stream.Capability{}, false
	}

	best := available[0]
	bestArea, bestRate := distance(wanted, best)
	for _, c := range available[1:] {
		area, rate := distance(wanted, c)
		if area < bestArea || (area == bestArea && rate < bestRate) {
			best, bestArea, bestRate = c, area, rate
		}
	}
	return best, true
}

func distance(a, b stream.Capability) (int, int) {
	return abs(a.Width*a.Height - b.Width*b.Height), abs(a.FrameRate - b.FrameRate)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
