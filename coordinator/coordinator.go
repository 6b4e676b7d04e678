// Package coordinator manages the gateway session, the publisher and one
// subscriber per remote publisher of the room.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"roomcast/database"
	"roomcast/database/memory"
	"roomcast/janus"
	"roomcast/media"
	"roomcast/metric"
	"roomcast/stream"
	"roomcast/types/message"
	"roomcast/types/request"
)

var (
	// ErrNoServerInfo is reported when a session id arrives before the server info.
	ErrNoServerInfo = errors.New("session created without server info")

	// ErrUnknownSubscriber is returned for a publisher without subscriber.
	ErrUnknownSubscriber = errors.New("unknown subscriber")
)

// Dependencies are the collaborators of a Coordinator. Nil database,
// recorder and metrics are replaced with in-memory defaults.
type Dependencies struct {
	Transport janus.Transport
	Factory   janus.PeerConnectionFactory
	Context   *stream.Context
	Recorder  *stream.EventRecorder
	Database  database.Database
	Metrics   *metric.Metrics
	// OnDispose runs last in Stop, after every peer connection was closed.
	OnDispose func()
}

// Status is a snapshot of the session.
type Status struct {
	SessionID     uint64 `json:"session_id"`
	HandleID      uint64 `json:"handle_id"`
	RoomID        uint64 `json:"room_id"`
	ParticipantID uint64 `json:"participant_id"`
	State         string `json:"state"`
	Subscribers   int    `json:"subscribers"`
	KeepAlive     bool   `json:"keep_alive"`
}

// Coordinator owns the session handler, the publisher and the subscribers.
type Coordinator struct {
	config    Config
	transport janus.Transport
	factory   janus.PeerConnectionFactory
	streamCtx *stream.Context
	recorder  *stream.EventRecorder
	database  database.Database
	metrics   *metric.Metrics
	onDispose func()

	handler   *janus.Handler
	publisher *janus.PublisherHandler
	dispatch  map[message.Kind]func(message.Message)

	mu          sync.Mutex
	subscribers map[uint64]*janus.SubscriberHandler
	keepAlive   context.CancelFunc
	stopped     bool
}

// New creates a new instance of Coordinator.
func New(c Config, deps Dependencies) *Coordinator {
	co := &Coordinator{
		config:      c,
		streamCtx:   deps.Context,
		recorder:    deps.Recorder,
		database:    deps.Database,
		metrics:     deps.Metrics,
		onDispose:   deps.OnDispose,
		subscribers: make(map[uint64]*janus.SubscriberHandler),
	}
	if co.streamCtx == nil {
		co.streamCtx = stream.NewContext("")
	}
	if co.recorder == nil {
		co.recorder = stream.NewEventRecorder()
	}
	if co.database == nil {
		co.database = memory.New()
	}
	if co.metrics == nil {
		co.metrics = metric.New(metric.Config{Namespace: metric.DefaultNamespace, UpdateInterval: metric.DefaultUpdateInterval})
	}
	co.transport = &countingTransport{Transport: deps.Transport, metrics: co.metrics}
	co.factory = co.countPeerConnections(deps.Factory)

	co.handler = janus.NewHandler(media.RolePublisher, co.transport, co.factory, co.streamCtx, janus.Hooks{
		SessionCreated: co.sessionCreated,
	})
	co.publisher = janus.NewPublisherHandler(co.transport, co.factory, co.streamCtx, co.recorder, c.room())

	co.dispatch = map[message.Kind]func(message.Message){
		message.KindError:                co.handleError,
		message.KindSessionTimeout:       co.handleSessionTimeout,
		message.KindPublisherJoined:      co.handlePublisherJoined,
		message.KindPublisherLeft:        co.handlePublisherLeft,
		message.KindPublisherUnpublished: co.handlePublisherUnpublished,
		message.KindTalking:              co.handleTalking,
	}
	return co
}

// Start fetches the server info and creates the session. The publisher
// starts once the session exists.
func (c *Coordinator) Start() error {
	return c.handler.SetState(janus.NewInfoState(janus.NewCreateSessionState(nil)))
}

// AddListener registers l for the session and the publisher connection.
func (c *Coordinator) AddListener(l janus.Listener) {
	c.handler.AddListener(l)
	c.publisher.AddListener(l)
}

// Handler returns the session handler.
func (c *Coordinator) Handler() *janus.Handler {
	return c.handler
}

// Publisher returns the publisher handler.
func (c *Coordinator) Publisher() *janus.PublisherHandler {
	return c.publisher
}

// Subscriber returns the subscriber of a remote publisher.
func (c *Coordinator) Subscriber(publisherID uint64) (*janus.SubscriberHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.subscribers[publisherID]
	return s, ok
}

// sessionCreated starts the keep-alive and the publisher. Without server
// info nothing is scheduled.
func (c *Coordinator) sessionCreated(id uint64) {
	info := c.handler.Info()
	if info == nil {
		c.handler.ReportError(fmt.Errorf("session %d: %w", id, ErrNoServerInfo))
		return
	}

	period := c.keepAlivePeriod(info.SessionTimeout)
	c.scheduleKeepAlive(id, period)
	log.Info().Str("module", "coordinator").Uint64("session", id).Dur("keepalive", period).Msg("session created")

	c.publisher.SetSessionID(id)
	if err := c.publisher.Start(); err != nil {
		log.Error().Str("module", "coordinator").Err(err).Msg("failed to start publisher")
	}
}

func (c *Coordinator) keepAlivePeriod(timeout int) time.Duration {
	if timeout <= 0 {
		if c.config.KeepAlivePeriod > 0 {
			return c.config.KeepAlivePeriod
		}
		return DefaultKeepAlivePeriod
	}
	return time.Duration(timeout) * time.Second / 2
}

func (c *Coordinator) scheduleKeepAlive(sessionID uint64, period time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		cancel()
		return
	}
	if c.keepAlive != nil {
		c.keepAlive()
	}
	c.keepAlive = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := c.transport.Send(request.NewKeepAlive(sessionID))
				c.metrics.ObserveKeepAlive(err)
				if err != nil {
					log.Warn().Str("module", "coordinator").Err(err).Uint64("session", sessionID).Msg("failed to send keep-alive")
				}
			}
		}
	}()
}

// KeepAliveActive reports whether keep-alives are scheduled.
func (c *Coordinator) KeepAliveActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.keepAlive != nil
}

// HandleMessage dispatches an inbound message. Acks are dropped;
// notifications are handled here; everything else goes to the publisher,
// the subscribers and the session handler, in that order.
func (c *Coordinator) HandleMessage(msg message.Message) {
	c.metrics.ObserveMessage(msg.Kind().String())
	if msg.Kind() == message.KindAck {
		return
	}

	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}

	if handle, ok := c.dispatch[msg.Kind()]; ok {
		handle(msg)
		return
	}

	forward(c.publisher.HandleMessage, msg)
	for _, s := range c.snapshot() {
		forward(s.HandleMessage, msg)
	}
	forward(c.handler.HandleMessage, msg)

	// The join reply lists the publishers already in the room.
	if data, ok := msg.(*message.PluginData); ok && data.Body.Type == "joined" && data.HandleID() == c.publisher.PluginID() {
		c.subscribe(data.Body.Publishers)
	}
}

func forward(handle func(message.Message) error, msg message.Message) {
	if err := handle(msg); err != nil && !errors.Is(err, janus.ErrNoState) {
		log.Debug().Str("module", "coordinator").Err(err).Stringer("kind", msg.Kind()).Msg("failed to handle message")
	}
}

func (c *Coordinator) snapshot() []*janus.SubscriberHandler {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := make([]*janus.SubscriberHandler, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		subs = append(subs, s)
	}
	return subs
}

func (c *Coordinator) handleError(msg message.Message) {
	e := msg.(*message.Error)
	c.metrics.IncrementGatewayErrors()
	log.Error().Str("module", "coordinator").Int("code", e.Code).Str("reason", e.Reason).Bool("plugin", e.Plugin).Msg("gateway error")
	c.handler.ReportError(e)
}

func (c *Coordinator) handleSessionTimeout(msg message.Message) {
	c.metrics.IncrementSessionTimeouts()
	log.Warn().Str("module", "coordinator").Uint64("session", msg.Session()).Msg("session timed out")
	c.handler.ReportError(janus.ErrSessionTimeout)
}

func (c *Coordinator) handlePublisherJoined(msg message.Message) {
	c.subscribe(msg.(*message.PublisherJoined).Publishers)
}

func (c *Coordinator) handlePublisherLeft(msg message.Message) {
	c.unsubscribe(msg.(*message.PublisherLeft).PublisherID)
}

func (c *Coordinator) handlePublisherUnpublished(msg message.Message) {
	c.unsubscribe(msg.(*message.PublisherUnpublished).PublisherID)
}

func (c *Coordinator) handleTalking(msg message.Message) {
	t := msg.(*message.Talking)
	if _, err := c.database.UpdatePublisherTalking(t.PublisherID, t.Talking); err != nil {
		log.Debug().Str("module", "coordinator").Err(err).Uint64("publisher", t.PublisherID).Msg("failed to update talking")
	}
}

// subscribe starts one subscriber per new remote publisher.
func (c *Coordinator) subscribe(publishers []message.Publisher) {
	roomID := c.publisher.RoomID()
	self := c.publisher.ParticipantID()

	var started []*janus.SubscriberHandler
	c.mu.Lock()
	for _, p := range publishers {
		if p.ID == self {
			continue
		}
		if _, ok := c.subscribers[p.ID]; ok {
			continue
		}
		s := janus.NewSubscriberHandler(c.transport, c.factory, c.streamCtx, p, c.handler.SessionID(), roomID)
		s.AddListener(c.speechListener(p))
		c.subscribers[p.ID] = s
		started = append(started, s)
	}
	count := len(c.subscribers)
	c.mu.Unlock()

	c.metrics.SetSubscribers(count)
	for _, s := range started {
		p := s.Publisher()
		if _, err := c.database.CreatePublisherInfo(roomID, p); err != nil {
			log.Warn().Str("module", "coordinator").Err(err).Uint64("publisher", p.ID).Msg("failed to register publisher")
		}
		log.Info().Str("module", "coordinator").Uint64("publisher", p.ID).Str("display", p.Display).Msg("subscribing")
		if err := s.Start(); err != nil {
			log.Error().Str("module", "coordinator").Err(err).Uint64("publisher", p.ID).Msg("failed to start subscriber")
		}
	}
}

func (c *Coordinator) unsubscribe(publisherID uint64) {
	c.mu.Lock()
	s, ok := c.subscribers[publisherID]
	delete(c.subscribers, publisherID)
	count := len(c.subscribers)
	c.mu.Unlock()
	if !ok {
		return
	}

	log.Info().Str("module", "coordinator").Uint64("publisher", publisherID).Msg("unsubscribing")
	s.Stop()
	if err := c.database.DeletePublisherInfoByID(publisherID); err != nil {
		log.Debug().Str("module", "coordinator").Err(err).Uint64("publisher", publisherID).Msg("failed to remove publisher")
	}
	c.metrics.SetSubscribers(count)
}

// speechListener announces the remote speech of p to the audience.
func (c *Coordinator) speechListener(p message.Publisher) janus.Listener {
	return janus.ListenerFuncs{
		OnConnected: func() {
			c.recorder.Record(stream.SpeechPublished{PublisherID: p.ID, DisplayName: p.Display, Time: time.Now()})
		},
		OnDisconnected: func() {
			c.recorder.Record(stream.SpeechEnded{PublisherID: p.ID, Time: time.Now()})
		},
		OnError: func(err error) {
			log.Warn().Str("module", "coordinator").Err(err).Uint64("publisher", p.ID).Msg("subscriber error")
		},
	}
}

// StartRemoteSpeech admits a remote speaker into the room.
func (c *Coordinator) StartRemoteSpeech() error {
	return c.publisher.StartRemoteSpeech()
}

// StopRemoteSpeech closes the room to remote speakers. A non-zero
// publisherID is kicked and its subscriber stopped.
func (c *Coordinator) StopRemoteSpeech(publisherID uint64) error {
	if err := c.publisher.StopRemoteSpeech(); err != nil {
		return err
	}
	if publisherID == 0 {
		return nil
	}
	if _, ok := c.Subscriber(publisherID); !ok {
		return fmt.Errorf("%d: %w", publisherID, ErrUnknownSubscriber)
	}
	if err := c.publisher.Kick(publisherID); err != nil {
		return err
	}
	c.unsubscribe(publisherID)
	return nil
}

// Status returns a snapshot of the session.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	subscribers := len(c.subscribers)
	keepAlive := c.keepAlive != nil
	c.mu.Unlock()

	state := ""
	if s := c.publisher.State(); s != nil {
		state = s.Name()
	}
	return Status{
		SessionID:     c.handler.SessionID(),
		HandleID:      c.publisher.PluginID(),
		RoomID:        c.publisher.RoomID(),
		ParticipantID: c.publisher.ParticipantID(),
		State:         state,
		Subscribers:   subscribers,
		KeepAlive:     keepAlive,
	}
}

// Participants returns the remote publishers of the room.
func (c *Coordinator) Participants() ([]*database.PublisherInfo, error) {
	return c.database.FindAllPublisherInfo()
}

// Stop stops every subscriber and the publisher, destroys the session and
// cancels the keep-alive. It is safe to call more than once.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	subs := make([]*janus.SubscriberHandler, 0, len(c.subscribers))
	for id, s := range c.subscribers {
		subs = append(subs, s)
		delete(c.subscribers, id)
	}
	cancel := c.keepAlive
	c.keepAlive = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Stop()
		id := s.Publisher().ID
		if err := c.database.DeletePublisherInfoByID(id); err != nil {
			log.Debug().Str("module", "coordinator").Err(err).Uint64("publisher", id).Msg("failed to remove publisher")
		}
	}
	c.metrics.SetSubscribers(0)
	c.publisher.Stop()

	if cancel != nil {
		cancel()
	}
	if id := c.handler.SessionID(); id != 0 {
		if err := c.transport.Send(request.NewDestroy(id)); err != nil {
			log.Warn().Str("module", "coordinator").Err(err).Uint64("session", id).Msg("failed to destroy session")
		}
	}
	if c.onDispose != nil {
		c.onDispose()
	}
	log.Info().Str("module", "coordinator").Msg("stopped")
}

type countingTransport struct {
	janus.Transport
	metrics *metric.Metrics
}

func (t *countingTransport) Send(msg any) error {
	if err := t.Transport.Send(msg); err != nil {
		return err
	}
	t.metrics.IncrementSent()
	return nil
}

func (c *Coordinator) countPeerConnections(f janus.PeerConnectionFactory) janus.PeerConnectionFactory {
	return func(role media.Role, cb media.Callbacks) (janus.PeerConnection, error) {
		pc, err := f(role, cb)
		if err != nil {
			return nil, err
		}
		c.metrics.IncrementWebRTCConnections()
		return &countedPeerConnection{PeerConnection: pc, closed: c.metrics.DecrementWebRTCConnections}, nil
	}
}

type countedPeerConnection struct {
	janus.PeerConnection
	once   sync.Once
	closed func()
}

func (p *countedPeerConnection) Close() {
	p.PeerConnection.Close()
	p.once.Do(p.closed)
}
