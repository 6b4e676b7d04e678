package janus

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"roomcast/media"
	"roomcast/stream"
	"roomcast/types/message"
	"roomcast/types/request"
)

// Hooks observe identifier and connection changes of a handler.
type Hooks struct {
	// SessionCreated runs after the session id was stored.
	SessionCreated func(id uint64)
	// PeerConnectionCreated runs after a peer connection replaced the
	// previous one.
	PeerConnectionCreated func(pc PeerConnection)
}

// Handler drives one role through the gateway protocol. Transitions are
// applied only by the handler: SetState and HandleMessage are serialized
// and a state returned from HandleMessage becomes the current state.
type Handler struct {
	role      media.Role
	transport Transport
	factory   PeerConnectionFactory
	streamCtx *stream.Context
	hooks     Hooks
	opaqueID  string

	stateMu sync.Mutex
	state   State

	mu            sync.RWMutex
	info          *message.ServerInfo
	sessionID     uint64
	pluginID      uint64
	roomID        uint64
	roomSecret    string
	participantID uint64
	privateID     uint64
	pc            PeerConnection
	listeners     []Listener
	stopped       bool
}

// NewHandler returns an inert handler; it does nothing until SetState.
func NewHandler(role media.Role, transport Transport, factory PeerConnectionFactory, streamCtx *stream.Context, hooks Hooks) *Handler {
	return &Handler{
		role:      role,
		transport: transport,
		factory:   factory,
		streamCtx: streamCtx,
		hooks:     hooks,
		opaqueID:  fmt.Sprintf("roomcast-%s-%s", role, request.NewTransaction()),
	}
}

// SetState installs state and initializes it.
func (h *Handler) SetState(state State) error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	return h.enter(state)
}

// State returns the current state, or nil.
func (h *Handler) State() State {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	return h.state
}

// HandleMessage routes msg to the current state and applies the returned
// transition. Messages arriving after Stop are dropped.
func (h *Handler) HandleMessage(msg message.Message) error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if h.Stopped() {
		return nil
	}
	if h.state == nil {
		return ErrNoState
	}

	if trickle, ok := msg.(*message.Trickle); ok {
		h.addRemoteCandidate(trickle)
	}

	next, err := h.state.HandleMessage(h, msg)
	if err != nil {
		h.notifyError(err)
		return err
	}
	if next == nil {
		return nil
	}
	return h.enter(next)
}

func (h *Handler) enter(state State) error {
	log.Debug().Str("module", "janus").Stringer("role", h.role).Str("state", state.Name()).Msg("entering state")

	h.state = state
	if err := state.Initialize(h); err != nil {
		h.notifyError(err)
		return err
	}
	return nil
}

func (h *Handler) addRemoteCandidate(trickle *message.Trickle) {
	if trickle.Candidate == nil {
		return
	}
	pc := h.PeerConnection()
	if pc == nil {
		log.Debug().Str("module", "janus").Stringer("role", h.role).Msg("dropped remote candidate without peer connection")
		return
	}
	pc.AddICECandidate(*trickle.Candidate)
}

// Role returns the role of the handler.
func (h *Handler) Role() media.Role {
	return h.role
}

// Info returns the server info reported by the gateway, or nil.
func (h *Handler) Info() *message.ServerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.info
}

// SetInfo stores the server info.
func (h *Handler) SetInfo(info *message.ServerInfo) {
	h.mu.Lock()
	h.info = info
	h.mu.Unlock()
}

// SessionID returns the gateway session id, or zero before the session
// was created.
func (h *Handler) SessionID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sessionID
}

// SetSessionID stores the session id and runs the SessionCreated hook.
func (h *Handler) SetSessionID(id uint64) {
	h.mu.Lock()
	h.sessionID = id
	h.mu.Unlock()

	if h.hooks.SessionCreated != nil {
		h.hooks.SessionCreated(id)
	}
}

// PluginID returns the id of the attached plugin handle.
func (h *Handler) PluginID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.pluginID
}

// SetPluginID stores the plugin handle id.
func (h *Handler) SetPluginID(id uint64) {
	h.mu.Lock()
	h.pluginID = id
	h.mu.Unlock()
}

// RoomID returns the room id.
func (h *Handler) RoomID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.roomID
}

// SetRoomID stores the room id assigned by the gateway.
func (h *Handler) SetRoomID(id uint64) {
	h.mu.Lock()
	h.roomID = id
	h.mu.Unlock()
}

// RoomSecret returns the room secret.
func (h *Handler) RoomSecret() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.roomSecret
}

// SetRoom presets the room id and secret before the room is created or
// joined.
func (h *Handler) SetRoom(id uint64, secret string) {
	h.mu.Lock()
	h.roomID = id
	h.roomSecret = secret
	h.mu.Unlock()
}

// ParticipantID returns the participant id assigned on join.
func (h *Handler) ParticipantID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.participantID
}

// PrivateID returns the private id assigned on join. Subscribers pass
// it to tie their feeds to the publisher.
func (h *Handler) PrivateID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.privateID
}

// SetParticipant stores the ids from a joined event.
func (h *Handler) SetParticipant(id, privateID uint64) {
	h.mu.Lock()
	h.participantID = id
	h.privateID = privateID
	h.mu.Unlock()
}

// OpaqueID returns the opaque id sent on attach.
func (h *Handler) OpaqueID() string {
	return h.opaqueID
}

// StreamContext returns the stream context of the handler.
func (h *Handler) StreamContext() *stream.Context {
	return h.streamCtx
}

// Send passes msg to the transport.
func (h *Handler) Send(msg any) error {
	if err := h.transport.Send(msg); err != nil {
		return &HandlerError{Role: h.role, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	return nil
}

// CreatePeerConnection creates a peer connection for the role of the
// handler and closes the previous one, if any. ICE state changes and media
// exceptions are surfaced to the listeners before cb sees them.
func (h *Handler) CreatePeerConnection(cb media.Callbacks) (PeerConnection, error) {
	onICE := cb.OnICEConnectionState
	cb.OnICEConnectionState = func(state webrtc.ICEConnectionState) {
		h.iceStateChanged(state)
		if onICE != nil {
			onICE(state)
		}
	}
	onException := cb.OnException
	cb.OnException = func(err error) {
		h.notifyError(&HandlerError{Role: h.role, Err: err})
		if onException != nil {
			onException(err)
		}
	}

	pc, err := h.factory(h.role, cb)
	if err != nil {
		return nil, &HandlerError{Role: h.role, Err: fmt.Errorf("failed to create peer connection: %w", err)}
	}

	h.mu.Lock()
	previous := h.pc
	h.pc = pc
	h.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	if h.hooks.PeerConnectionCreated != nil {
		h.hooks.PeerConnectionCreated(pc)
	}
	return pc, nil
}

// PeerConnection returns the current peer connection, or nil.
func (h *Handler) PeerConnection() PeerConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.pc
}

// ClosePeerConnection closes and forgets the peer connection.
func (h *Handler) ClosePeerConnection() {
	h.mu.Lock()
	pc := h.pc
	h.pc = nil
	h.mu.Unlock()

	if pc != nil {
		pc.Close()
	}
}

func (h *Handler) iceStateChanged(state webrtc.ICEConnectionState) {
	switch state {
	case webrtc.ICEConnectionStateConnected:
		h.notifyConnected()
	case webrtc.ICEConnectionStateFailed:
		h.notifyError(&HandlerError{Role: h.role, Err: ErrICEFailed})
		h.notifyDisconnected()
	case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateClosed:
		h.notifyDisconnected()
	}
}

// AddListener registers l for connection notifications.
func (h *Handler) AddListener(l Listener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// ReportError surfaces err to the listeners.
func (h *Handler) ReportError(err error) {
	h.notifyError(err)
}

func (h *Handler) snapshot() []Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return append([]Listener(nil), h.listeners...)
}

func (h *Handler) notifyConnected() {
	log.Info().Str("module", "janus").Stringer("role", h.role).Uint64("handle", h.PluginID()).Msg("connected")
	for _, l := range h.snapshot() {
		l.Connected()
	}
}

func (h *Handler) notifyDisconnected() {
	log.Info().Str("module", "janus").Stringer("role", h.role).Uint64("handle", h.PluginID()).Msg("disconnected")
	for _, l := range h.snapshot() {
		l.Disconnected()
	}
}

func (h *Handler) notifyError(err error) {
	log.Error().Str("module", "janus").Stringer("role", h.role).Err(err).Msg("handler error")
	for _, l := range h.snapshot() {
		l.Error(err)
	}
}

// Stopped reports whether the handler was stopped.
func (h *Handler) Stopped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.stopped
}

// markStopped returns false when the handler was already stopped.
func (h *Handler) markStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}
	h.stopped = true
	return true
}

// detach releases the plugin handle, if one was attached.
func (h *Handler) detach() {
	sessionID, pluginID := h.SessionID(), h.PluginID()
	if sessionID == 0 || pluginID == 0 {
		return
	}
	if err := h.Send(request.NewDetach(sessionID, pluginID)); err != nil {
		log.Warn().Str("module", "janus").Err(err).Uint64("handle", pluginID).Msg("failed to detach")
	}
}
