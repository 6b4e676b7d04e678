// Package media wraps pion peer connections for the gateway handlers.
package media

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Default values for the media configuration.
const (
	DefaultSTUNServer = "stun:stun.l.google.com:19302"
	DefaultMinUDPPort = 0
	DefaultMaxUDPPort = 0
)

// ErrInvalidPortRange is returned when the UDP port range is invalid.
var ErrInvalidPortRange = errors.New("invalid port range")

// Config defines the configuration for peer connections.
type Config struct {
	ICEServers []string // STUN/TURN urls
	MinUDPPort int      // Minimum UDP port for WebRTC, 0 for any
	MaxUDPPort int      // Maximum UDP port for WebRTC, 0 for any
	// IncludeLoopback gathers loopback candidates, for gateways on the same host.
	IncludeLoopback bool
}

// Validate validates the port range.
func (c Config) Validate() error {
	if c.MinUDPPort < 0 || c.MinUDPPort > 65535 {
		return fmt.Errorf("min port %d: %w", c.MinUDPPort, ErrInvalidPortRange)
	}
	if c.MaxUDPPort < 0 || c.MaxUDPPort > 65535 {
		return fmt.Errorf("max port %d: %w", c.MaxUDPPort, ErrInvalidPortRange)
	}
	if c.MinUDPPort > c.MaxUDPPort {
		return fmt.Errorf("min port (%d) > max port (%d): %w", c.MinUDPPort, c.MaxUDPPort, ErrInvalidPortRange)
	}
	return nil
}

// SetPortRange sets the ephemeral UDP port range for WebRTC.
func (c Config) SetPortRange(s *webrtc.SettingEngine) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.MinUDPPort == 0 && c.MaxUDPPort == 0 {
		return nil
	}
	if err := s.SetEphemeralUDPPortRange(uint16(c.MinUDPPort), uint16(c.MaxUDPPort)); err != nil {
		return fmt.Errorf("failed to set ephemeral UDP port range: %w", err)
	}
	return nil
}

func (c Config) configuration() webrtc.Configuration {
	servers := c.ICEServers
	if servers == nil {
		servers = []string{DefaultSTUNServer}
	}
	conf := webrtc.Configuration{}
	if len(servers) > 0 {
		conf.ICEServers = []webrtc.ICEServer{{URLs: servers}}
	}
	return conf
}
