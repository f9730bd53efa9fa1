package serialwait

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollPeriod bounds cancellation latency when no option overrides it
const DefaultPollPeriod = 100 * time.Millisecond

// Observer receives every iteration of a wait loop. It runs on the waiting
// goroutine and must not block.
type Observer func(Iteration)

// Config holds the configuration for a Waiter or Stream
type Config struct {
	PollPeriod time.Duration // whole milliseconds; 0 disables polling
	Timeout    time.Duration // default timeout, only used when HasTimeout is set
	HasTimeout bool
	Clock      Clock
	Logger     zerolog.Logger
	Observer   Observer
	Wakeup     bool // self-pipe so Interrupt and context cancellation wake a blocked poll
}

// Option is a functional option for configuring a Waiter or Stream
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		PollPeriod: DefaultPollPeriod,
		Clock:      MonotonicClock{},
		Logger:     zerolog.Nop(),
	}
}

// Poll returns the configured poll period in scheduler form
func (c Config) Poll() PollPeriod {
	p, err := PollDuration(c.PollPeriod)
	if err != nil {
		return NoPoll()
	}
	return p
}

func newConfig(opts []Option) (Config, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return Config{}, err
		}
	}
	return config, nil
}

// WithPollPeriod sets how often a waiter wakes up to check for interruption.
// Zero disables polling; the value must be a whole number of milliseconds.
func WithPollPeriod(period time.Duration) Option {
	return func(c *Config) error {
		if _, err := PollDuration(period); err != nil {
			return err
		}
		c.PollPeriod = period
		return nil
	}
}

// WithTimeout sets the default timeout used by Stream operations that take
// none explicitly. Zero means "return immediately if nothing is ready".
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 {
			return ErrInvalidConfig
		}
		c.Timeout = timeout
		c.HasTimeout = true
		return nil
	}
}

// WithoutTimeout removes the default timeout so operations wait until data
// arrives or they are interrupted
func WithoutTimeout() Option {
	return func(c *Config) error {
		c.Timeout = 0
		c.HasTimeout = false
		return nil
	}
}

// WithClock replaces the monotonic clock
func WithClock(clock Clock) Option {
	return func(c *Config) error {
		if clock == nil {
			return ErrInvalidConfig
		}
		c.Clock = clock
		return nil
	}
}

// WithLogger sets the logger used for per-iteration debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithObserver registers a callback invoked after every wait iteration
func WithObserver(observer Observer) Option {
	return func(c *Config) error {
		c.Observer = observer
		return nil
	}
}

// WithWakeup gives the waiter a self-pipe. Interrupt and context
// cancellation then wake a blocked poll immediately, and a wait with
// neither deadline nor poll period may block indefinitely.
func WithWakeup() Option {
	return func(c *Config) error {
		c.Wakeup = true
		return nil
	}
}
