package resilience

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt, capped at MaxDelay,
// and spreads it by ±Jitter so concurrent retries do not line up
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64 // fraction of the delay, 0.1 means ±10%
}

// DefaultExponentialBackoff is used for acquirer API calls: ~100ms, 200ms, 400ms ... capped at 30s
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// ReferenceConflictBackoff is used when a generated reference loses the race on the
// unique index. The retry recomputes the suffix so a short wait is enough.
//   - Attempt 0: ~20ms
//   - Attempt 1: ~40ms
//   - Attempt 2: ~80ms
//   - Attempt 3+: ~200ms (capped)
func ReferenceConflictBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  20 * time.Millisecond,
		MaxDelay:   200 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// NextDelay returns the delay before the given retry (0-indexed)
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return eb.BaseDelay
	}

	delay := math.Min(
		float64(eb.BaseDelay)*math.Pow(eb.Multiplier, float64(attempt)),
		float64(eb.MaxDelay),
	)

	spread := delay * eb.Jitter
	delay += (rand.Float64()*2 - 1) * spread

	if delay < 0 {
		return eb.BaseDelay
	}
	return time.Duration(delay)
}

// FixedBackoff waits the same delay before every retry
type FixedBackoff struct {
	Delay time.Duration
}

// NextDelay returns Delay regardless of the attempt
func (fb *FixedBackoff) NextDelay(int) time.Duration {
	return fb.Delay
}
