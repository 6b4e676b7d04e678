// Package signal connects to the gateway over WebSocket.
package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"roomcast/pkg/socket"
	"roomcast/types/message"
)

// ErrClosed is returned when sending on a stopped Signal.
var ErrClosed = errors.New("signal closed")

// Receiver handles the decoded gateway messages.
type Receiver interface {
	HandleMessage(msg message.Message)
}

// ReceiverFunc adapts a function to a Receiver.
type ReceiverFunc func(msg message.Message)

// HandleMessage calls f(msg).
func (f ReceiverFunc) HandleMessage(msg message.Message) {
	f(msg)
}

// Dialer opens the connection to the gateway.
type Dialer func(ctx context.Context, config Config) (socket.Socket, error)

// Signal is the message transport to the gateway. Requests sent before
// Start are queued and flushed once the connection is open.
type Signal struct {
	conf Config
	dial Dialer

	mu      sync.Mutex
	conn    socket.Socket
	pending []any
	closed  bool
	err     error

	done chan struct{}
	once sync.Once
}

// New creates a new instance of Signal dialing with gorilla/websocket.
func New(config Config) *Signal {
	return NewWithDialer(config, func(ctx context.Context, c Config) (socket.Socket, error) {
		return socket.Dial(ctx, c.URL, c.Subprotocol, c.HandshakeTimeout)
	})
}

// NewWithDialer creates a new instance of Signal using dial to connect.
func NewWithDialer(config Config, dial Dialer) *Signal {
	return &Signal{
		conf: config,
		dial: dial,
		done: make(chan struct{}),
	}
}

// Send writes msg as JSON, or queues it while the connection is not open.
func (s *Signal) Send(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.conn == nil {
		s.pending = append(s.pending, msg)
		return nil
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Start connects to the gateway, flushes the queued requests and starts
// delivering messages to r. It returns once the read loop runs.
func (s *Signal) Start(ctx context.Context, r Receiver) error {
	conn, err := s.dial(ctx, s.conf)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.conf.URL, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	for _, msg := range s.pending {
		if err := conn.WriteJSON(msg); err != nil {
			s.mu.Unlock()
			_ = conn.Close()
			return fmt.Errorf("failed to flush queued message: %w", err)
		}
	}
	s.pending = nil
	s.conn = conn
	s.mu.Unlock()

	log.Info().Str("module", "signal").Str("url", s.conf.URL).Msg("connected to gateway")

	go s.readLoop(conn, r)
	return nil
}

func (s *Signal) readLoop(conn socket.Socket, r Receiver) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}

		msg, err := message.Decode(data)
		if err != nil {
			log.Warn().Str("module", "signal").Err(err).Msg("failed to decode gateway message")
			continue
		}
		log.Debug().Str("module", "signal").Stringer("kind", msg.Kind()).Msg("received")
		r.HandleMessage(msg)
	}
}

func (s *Signal) finish(err error) {
	s.mu.Lock()
	lost := !s.closed && !socket.IsClosed(err)
	s.closed = true
	if lost {
		s.err = err
	}
	s.mu.Unlock()

	if lost {
		log.Error().Str("module", "signal").Err(err).Msg("connection lost")
	}
	s.once.Do(func() { close(s.done) })
}

// Stop closes the connection. Further sends return ErrClosed.
func (s *Signal) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.pending = nil
	s.mu.Unlock()

	if conn == nil {
		s.once.Do(func() { close(s.done) })
		return
	}
	if err := conn.Close(); err != nil {
		log.Warn().Str("module", "signal").Err(err).Msg("failed to close connection")
	}
}

// Done is closed once the read loop ended or Stop ran before Start.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the read loop, nil after Stop.
func (s *Signal) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
