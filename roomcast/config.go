// Package roomcast publishes local media into a video room and plays the
// other publishers of the room.
package roomcast

import (
	"fmt"

	"roomcast/api"
	"roomcast/coordinator"
	"roomcast/media"
	"roomcast/metric"
	"roomcast/signal"
)

// Config contains the configuration for Roomcast.
type Config struct {
	Display     string
	Debug       bool
	Signal      signal.Config
	Media       media.Config
	Coordinator coordinator.Config
	Metrics     metric.Config
	API         api.Config
}

// Validate validates every component configuration.
func (c Config) Validate() error {
	if err := c.Signal.Validate(); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if err := c.Media.Validate(); err != nil {
		return fmt.Errorf("media: %w", err)
	}
	if err := c.Coordinator.Validate(); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
