package heartbeat

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid heartbeat config")

// Config controls the tick loop and the batch bound.
type Config struct {
	// TickInterval is the delay between the end of one tick and the start of the next.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// BatchSize bounds how many monitors run concurrently.
	BatchSize int `mapstructure:"batch_size"`
}

// DefaultConfig returns the defaults used when no configuration is given.
func DefaultConfig() Config {
	return Config{
		TickInterval: 1 * time.Second,
		BatchSize:    10,
	}
}

// Validate rejects a non-positive tick interval or batch size.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive, got %s", ErrInvalidConfig, c.TickInterval)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be at least 1, got %d", ErrInvalidConfig, c.BatchSize)
	}
	return nil
}
