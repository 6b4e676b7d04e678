package metric

import (
	"errors"
	"fmt"
	"time"
)

// Default values for metrics configuration.
const (
	DefaultNamespace      = "roomcast"
	DefaultUpdateInterval = 5 * time.Second
)

// ErrInvalidInterval is returned when the system metrics interval is not positive.
var ErrInvalidInterval = errors.New("invalid update interval")

// Config defines the configuration for the metrics.
type Config struct {
	Namespace      string        // Prefix of every metric name
	UpdateInterval time.Duration // Interval of system metrics collection
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("%s: %w", c.UpdateInterval, ErrInvalidInterval)
	}
	return nil
}
