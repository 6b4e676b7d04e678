// Package api exposes the control endpoints of a running session.
package api

import (
	"errors"
	"fmt"
)

const (
	// DefaultPort is the default port number for the control server.
	DefaultPort = 7070
)

// ErrInvalidPort is returned for a port outside 0-65535.
var ErrInvalidPort = errors.New("invalid port")

// Config is the configuration for creating a Server instance. Port 0
// disables the server.
type Config struct {
	Port  int
	Debug bool
}

// Enabled reports whether the server should listen.
func (c Config) Enabled() bool {
	return c.Port != 0
}

// Validate validates the port number.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("must be between 0 and 65535, given %d: %w", c.Port, ErrInvalidPort)
	}
	return nil
}
