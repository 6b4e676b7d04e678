// Package signal connects to the gateway over WebSocket.
package signal

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultURL is the default gateway address.
	DefaultURL = "ws://localhost:8188"

	// DefaultSubprotocol is the WebSocket subprotocol spoken by the gateway.
	DefaultSubprotocol = "janus-protocol"

	// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
	DefaultHandshakeTimeout = 10 * time.Second
)

// Below is the Error message for the signal configuration.
var (
	ErrInvalidURL              = errors.New("invalid gateway url")
	ErrInvalidSubprotocol      = errors.New("invalid subprotocol")
	ErrInvalidHandshakeTimeout = errors.New("invalid handshake timeout")
)

// Config is the configuration for creating a Signal instance.
type Config struct {
	URL              string
	Subprotocol      string
	HandshakeTimeout time.Duration
}

// IsSame checks if the given config is the same as the current one.
func (c Config) IsSame(config Config) bool {
	return c.URL == config.URL && c.Subprotocol == config.Subprotocol && c.HandshakeTimeout == config.HandshakeTimeout
}

// Validate validates the gateway url, the subprotocol and the timeout.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("unable to parse %q: %w", c.URL, ErrInvalidURL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, given %q: %w", u.Scheme, ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q: %w", c.URL, ErrInvalidURL)
	}

	if c.Subprotocol == "" {
		return ErrInvalidSubprotocol
	}

	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("must be positive, given %s: %w", c.HandshakeTimeout, ErrInvalidHandshakeTimeout)
	}

	return nil
}
