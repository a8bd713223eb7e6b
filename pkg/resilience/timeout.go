package resilience

import (
	"context"
	"time"
)

// TimeoutConfig bounds background work. A sweep walks a whole batch of
// transactions and their acquirer calls, so it gets far more than a request.
type TimeoutConfig struct {
	Sweep time.Duration
}

// DefaultTimeoutConfig gives a sweep 5 minutes
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{Sweep: 5 * time.Minute}
}

// TestTimeoutConfig shortens the timeouts for tests
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{Sweep: 30 * time.Second}
}

// SweepContext derives the context of one post-processing sweep.
// A shorter deadline on parent wins.
func (tc *TimeoutConfig) SweepContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Sweep)
}
