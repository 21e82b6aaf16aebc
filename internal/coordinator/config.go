package coordinator

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("coordinator: invalid config")

type Config struct {
	MaxVelocity         float64
	ReachedThreshold    float64
	TakeoffHeight       float64
	TakeoffLandVelocity float64

	// ConnectionTimeout clears radio_connection for agents whose last pose is
	// older than this. Zero disables the watchdog.
	ConnectionTimeout time.Duration

	TickPeriod time.Duration
	Workers    int
	QueueSize  int
}

func DefaultConfig() Config {
	return Config{
		MaxVelocity:         0.5,
		ReachedThreshold:    0.1,
		TakeoffHeight:       1.0,
		TakeoffLandVelocity: 0.5,
		ConnectionTimeout:   2 * time.Second,
		TickPeriod:          100 * time.Millisecond,
		Workers:             4,
		QueueSize:           256,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxVelocity <= 0:
		return fmt.Errorf("%w: max_velocity must be > 0", ErrInvalidConfig)
	case c.ReachedThreshold <= 0:
		return fmt.Errorf("%w: reached_threshold must be > 0", ErrInvalidConfig)
	case c.TakeoffHeight <= 0:
		return fmt.Errorf("%w: takeoff_height must be > 0", ErrInvalidConfig)
	case c.TakeoffLandVelocity <= 0:
		return fmt.Errorf("%w: takeoff_land_velocity must be > 0", ErrInvalidConfig)
	case c.ConnectionTimeout < 0:
		return fmt.Errorf("%w: connection_timeout must be >= 0", ErrInvalidConfig)
	case c.TickPeriod <= 0:
		return fmt.Errorf("%w: tick_period must be > 0", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: worker_count must be > 0", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be > 0", ErrInvalidConfig)
	}
	return nil
}
