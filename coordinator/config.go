package coordinator

import (
	"errors"
	"fmt"
	"time"

	"roomcast/janus"
)

// Default values for the coordinator. If the values are not set, these values are used.
const (
	DefaultKeepAlivePeriod = 25 * time.Second
	DefaultPublishers      = 1
	DefaultBitrate         = 512000
)

var (
	// ErrInvalidKeepAlivePeriod is returned when the fallback keep-alive period is not positive.
	ErrInvalidKeepAlivePeriod = errors.New("invalid keep-alive period")

	// ErrInvalidPublishers is returned when the publisher limit is negative.
	ErrInvalidPublishers = errors.New("invalid publisher limit")

	// ErrInvalidBitrate is returned when the bitrate is negative.
	ErrInvalidBitrate = errors.New("invalid bitrate")
)

// Config contains the configuration for the coordinator.
type Config struct {
	RoomID      uint64
	Secret      string
	Description string
	Publishers  int
	Bitrate     int
	Record      bool

	// KeepAlivePeriod is used when the gateway reports no session timeout.
	KeepAlivePeriod time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.KeepAlivePeriod <= 0 {
		return fmt.Errorf("%s: %w", c.KeepAlivePeriod, ErrInvalidKeepAlivePeriod)
	}
	if c.Publishers < 0 {
		return fmt.Errorf("%d: %w", c.Publishers, ErrInvalidPublishers)
	}
	if c.Bitrate < 0 {
		return fmt.Errorf("%d: %w", c.Bitrate, ErrInvalidBitrate)
	}
	return nil
}

func (c Config) room() janus.RoomConfig {
	return janus.RoomConfig{
		Room:        c.RoomID,
		Secret:      c.Secret,
		Description: c.Description,
		Publishers:  c.Publishers,
		Bitrate:     c.Bitrate,
		Record:      c.Record,
	}
}
