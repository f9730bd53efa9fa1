package serialwait

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.PollPeriod != 100*time.Millisecond {
		t.Errorf("Expected PollPeriod 100ms, got %v", config.PollPeriod)
	}

	if config.HasTimeout {
		t.Errorf("Expected no default timeout, got %v", config.Timeout)
	}

	if _, ok := config.Clock.(MonotonicClock); !ok {
		t.Errorf("Expected MonotonicClock, got %T", config.Clock)
	}

	if config.Wakeup {
		t.Error("Expected wakeup pipe disabled by default")
	}

	if ms, ok := config.Poll().Millis(); !ok || ms != 100 {
		t.Errorf("Expected Poll() 100ms, got %dms (set=%v)", ms, ok)
	}
}

func TestWithPollPeriod(t *testing.T) {
	tests := []struct {
		name    string
		period  time.Duration
		wantErr bool
	}{
		{"0ms (polling disabled)", 0, false},
		{"1ms (valid)", time.Millisecond, false},
		{"250ms (valid)", 250 * time.Millisecond, false},
		{"10s (valid)", 10 * time.Second, false},
		{"150us (not whole milliseconds)", 150 * time.Microsecond, true},
		{"1500us (not whole milliseconds)", 1500 * time.Microsecond, true},
		{"-100ms (negative)", -100 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			opt := WithPollPeriod(tt.period)
			err := opt(&config)
			if (err != nil) != tt.wantErr {
				t.Errorf("WithPollPeriod(%v) error = %v, wantErr %v", tt.period, err, tt.wantErr)
			}
			if err == nil && config.PollPeriod != tt.period {
				t.Errorf("PollPeriod = %v, want %v", config.PollPeriod, tt.period)
			}
			if err != nil && err != ErrInvalidPollPeriod {
				t.Errorf("Expected ErrInvalidPollPeriod, got %v", err)
			}
		})
	}
}

func TestWithTimeout(t *testing.T) {
	config := DefaultConfig()

	if err := WithTimeout(0)(&config); err != nil {
		t.Fatalf("WithTimeout(0) failed: %v", err)
	}
	if !config.HasTimeout || config.Timeout != 0 {
		t.Errorf("Expected zero timeout set, got %v (set=%v)", config.Timeout, config.HasTimeout)
	}

	if err := WithTimeout(2 * time.Second)(&config); err != nil {
		t.Fatalf("WithTimeout(2s) failed: %v", err)
	}
	if config.Timeout != 2*time.Second {
		t.Errorf("Expected Timeout 2s, got %v", config.Timeout)
	}

	if err := WithoutTimeout()(&config); err != nil {
		t.Fatalf("WithoutTimeout failed: %v", err)
	}
	if config.HasTimeout {
		t.Error("Expected timeout cleared")
	}

	if err := WithTimeout(-time.Second)(&config); err != ErrInvalidConfig {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestWithClock(t *testing.T) {
	config := DefaultConfig()

	if err := WithClock(nil)(&config); err != ErrInvalidConfig {
		t.Errorf("Expected ErrInvalidConfig for nil clock, got %v", err)
	}

	fixed := ClockFunc(func() Instant { return 42 })
	if err := WithClock(fixed)(&config); err != nil {
		t.Fatalf("WithClock failed: %v", err)
	}
	if config.Clock.Now() != 42 {
		t.Errorf("Expected injected clock, got %d", config.Clock.Now())
	}
}

func TestNewConfigStopsAtFirstError(t *testing.T) {
	applied := false
	_, err := newConfig([]Option{
		WithPollPeriod(-time.Millisecond),
		func(c *Config) error {
			applied = true
			return nil
		},
	})
	if err != ErrInvalidPollPeriod {
		t.Errorf("Expected ErrInvalidPollPeriod, got %v", err)
	}
	if applied {
		t.Error("Options after a failing option must not run")
	}
}
