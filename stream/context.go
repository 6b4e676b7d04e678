// Package stream holds the media configuration and recorded actions of a broadcast.
package stream

import (
	"github.com/pion/rtp"

	"roomcast/pkg/property"
)

// Device identifies a capture or playback device.
type Device struct {
	ID   string
	Name string
}

// Capability is one capture format of a camera.
type Capability struct {
	Width     int
	Height    int
	FrameRate int
}

// ScreenSource is a capturable screen or window.
type ScreenSource struct {
	ID     int64
	Title  string
	Window bool
}

// AudioContext holds the audio settings.
type AudioContext struct {
	SendAudio       *property.Property[bool]
	PlaybackDevice  *property.Property[*Device]
	RecordingDevice *property.Property[*Device]
	// RemoteAudio receives audio packets of remote publishers.
	RemoteAudio func(publisherID uint64, pkt *rtp.Packet)
}

// VideoContext holds the camera settings.
type VideoContext struct {
	SendVideo         *property.Property[bool]
	CaptureDevice     *property.Property[*Device]
	CaptureCapability *property.Property[*Capability]
	Bitrate           int
	// RemoteFrame receives video packets of remote publishers.
	RemoteFrame func(publisherID uint64, pkt *rtp.Packet)
	// RemotePresence reports when a remote video track appears or disappears.
	RemotePresence func(publisherID uint64, present bool)
}

// ScreenContext holds the screen sharing settings.
type ScreenContext struct {
	SendScreen *property.Property[bool]
	Source     *property.Property[*ScreenSource]
	FrameRate  int
	Bitrate    int
}

// Context is the media configuration shared by the publisher, the
// subscribers and the peer connection factory.
type Context struct {
	DisplayName string
	Audio       AudioContext
	Video       VideoContext
	Screen      ScreenContext
}

// NewContext creates a Context with audio enabled and camera and screen
// disabled.
func NewContext(displayName string) *Context {
	return &Context{
		DisplayName: displayName,
		Audio: AudioContext{
			SendAudio:       property.New(true),
			PlaybackDevice:  property.New[*Device](nil),
			RecordingDevice: property.New[*Device](nil),
		},
		Video: VideoContext{
			SendVideo:         property.New(false),
			CaptureDevice:     property.New[*Device](nil),
			CaptureCapability: property.New[*Capability](nil),
		},
		Screen: ScreenContext{
			SendScreen: property.New(false),
			Source:     property.New[*ScreenSource](nil),
		},
	}
}
