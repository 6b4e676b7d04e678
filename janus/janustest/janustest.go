// Package janustest provides fakes for testing code built on package janus.
package janustest

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"roomcast/janus"
	"roomcast/media"
	"roomcast/stream"
	"roomcast/types/request"
)

// Requests records the requests passed to a transport. Record has the
// signature of janus.Transport.Send.
type Requests struct {
	mu   sync.Mutex
	msgs []any
}

func (r *Requests) Record(msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *Requests) All() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]any(nil), r.msgs...)
}

func (r *Requests) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.msgs)
}

// Last returns the latest request, or nil.
func (r *Requests) Last() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.msgs) == 0 {
		return nil
	}
	return r.msgs[len(r.msgs)-1]
}

// Of returns the recorded requests of type T in order.
func Of[T any](r *Requests) []T {
	var out []T
	for _, msg := range r.All() {
		if v, ok := msg.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// Bodies returns the plugin bodies of type T in order, with their requests.
func Bodies[T any](r *Requests) ([]T, []*request.Message) {
	var (
		bodies []T
		msgs   []*request.Message
	)
	for _, msg := range Of[*request.Message](r) {
		if body, ok := msg.Body.(T); ok {
			bodies = append(bodies, body)
			msgs = append(msgs, msg)
		}
	}
	return bodies, msgs
}

// Janus returns the session-level requests with the given janus verb.
func Janus(r *Requests, verb string) []any {
	var out []any
	for _, msg := range r.All() {
		if Verb(msg) == verb {
			out = append(out, msg)
		}
	}
	return out
}

// Verb returns the janus verb of a request.
func Verb(msg any) string {
	switch m := msg.(type) {
	case *request.Session:
		return m.Janus
	case *request.Attach:
		return m.Janus
	case *request.Handle:
		return m.Janus
	case *request.Message:
		return m.Janus
	case *request.Trickle:
		return m.Janus
	}
	return ""
}

// Transaction returns the transaction id of a request.
func Transaction(msg any) string {
	switch m := msg.(type) {
	case *request.Session:
		return m.Transaction
	case *request.Attach:
		return m.Transaction
	case *request.Handle:
		return m.Transaction
	case *request.Message:
		return m.Transaction
	case *request.Trickle:
		return m.Transaction
	}
	return ""
}

// PeerConnection is a janus.PeerConnection recording every call.
type PeerConnection struct {
	Role      media.Role
	Callbacks media.Callbacks

	mu            sync.Mutex
	setups        [][2]media.Direction
	remote        []webrtc.SessionDescription
	candidates    []webrtc.ICECandidateInit
	microphone    []bool
	camera        []bool
	screen        []bool
	cameraDevices []*stream.Device
	data          [][]byte
	closes        int
	tracks        []media.TrackInfo
}

var _ janus.PeerConnection = (*PeerConnection)(nil)

func (p *PeerConnection) Setup(audio, video media.Direction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setups = append(p.setups, [2]media.Direction{audio, video})
}

func (p *PeerConnection) SetRemoteDescription(description webrtc.SessionDescription) {
	p.mu.Lock()
	p.remote = append(p.remote, description)
	p.mu.Unlock()
}

func (p *PeerConnection) AddICECandidate(candidate webrtc.ICECandidateInit) {
	p.mu.Lock()
	p.candidates = append(p.candidates, candidate)
	p.mu.Unlock()
}

func (p *PeerConnection) SetMicrophoneEnabled(enable bool) {
	p.mu.Lock()
	p.microphone = append(p.microphone, enable)
	p.mu.Unlock()
}

func (p *PeerConnection) SetCameraEnabled(enable bool) {
	p.mu.Lock()
	p.camera = append(p.camera, enable)
	p.mu.Unlock()
}

func (p *PeerConnection) SetCameraDevice(device *stream.Device) {
	p.mu.Lock()
	p.cameraDevices = append(p.cameraDevices, device)
	p.mu.Unlock()
}

func (p *PeerConnection) SetCameraCapability(*stream.Capability) {}

func (p *PeerConnection) SetScreenShareEnabled(enable bool) {
	p.mu.Lock()
	p.screen = append(p.screen, enable)
	p.mu.Unlock()
}

func (p *PeerConnection) SetScreenSource(*stream.ScreenSource) {}

func (p *PeerConnection) SendData(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.setups) == 0 {
		return media.ErrDataChannelNotCreated
	}
	p.data = append(p.data, data)
	return nil
}

// SetTracks sets the result of Tracks.
func (p *PeerConnection) SetTracks(tracks []media.TrackInfo) {
	p.mu.Lock()
	p.tracks = tracks
	p.mu.Unlock()
}

func (p *PeerConnection) Tracks() []media.TrackInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]media.TrackInfo(nil), p.tracks...)
}

func (p *PeerConnection) Close() {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()
}

func (p *PeerConnection) Setups() [][2]media.Direction {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([][2]media.Direction(nil), p.setups...)
}

func (p *PeerConnection) Remote() []webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]webrtc.SessionDescription(nil), p.remote...)
}

func (p *PeerConnection) Candidates() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]webrtc.ICECandidateInit(nil), p.candidates...)
}

func (p *PeerConnection) Microphone() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]bool(nil), p.microphone...)
}

func (p *PeerConnection) Camera() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]bool(nil), p.camera...)
}

func (p *PeerConnection) Screen() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]bool(nil), p.screen...)
}

func (p *PeerConnection) CameraDevices() []*stream.Device {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*stream.Device(nil), p.cameraDevices...)
}

func (p *PeerConnection) Data() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([][]byte(nil), p.data...)
}

func (p *PeerConnection) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closes
}

// Factory creates PeerConnection fakes.
type Factory struct {
	mu      sync.Mutex
	created []*PeerConnection
}

// New has the signature of janus.PeerConnectionFactory.
func (f *Factory) New(role media.Role, cb media.Callbacks) (janus.PeerConnection, error) {
	pc := &PeerConnection{Role: role, Callbacks: cb}

	f.mu.Lock()
	f.created = append(f.created, pc)
	f.mu.Unlock()
	return pc, nil
}

// Created returns the fakes in creation order.
func (f *Factory) Created() []*PeerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*PeerConnection(nil), f.created...)
}

// Last returns the latest fake, or nil.
func (f *Factory) Last() *PeerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}
