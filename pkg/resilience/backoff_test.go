package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func assertWithin(t *testing.T, got, want time.Duration, jitter float64) {
	t.Helper()
	spread := time.Duration(float64(want) * jitter)
	assert.GreaterOrEqual(t, got, want-spread)
	assert.LessOrEqual(t, got, want+spread)
}

func TestExponentialBackoff_Sequence(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{5, 3200 * time.Millisecond},
		{20, 30 * time.Second},
	}

	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			assertWithin(t, backoff.NextDelay(tt.attempt), tt.want, backoff.Jitter)
		}
	}
}

func TestExponentialBackoff_NegativeAttempt(t *testing.T) {
	backoff := DefaultExponentialBackoff()
	assert.Equal(t, backoff.BaseDelay, backoff.NextDelay(-1))
}

func TestExponentialBackoff_NoJitterIsDeterministic(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 3.0,
	}

	assert.Equal(t, 10*time.Millisecond, backoff.NextDelay(0))
	assert.Equal(t, 30*time.Millisecond, backoff.NextDelay(1))
	assert.Equal(t, 90*time.Millisecond, backoff.NextDelay(2))
	assert.Equal(t, time.Second, backoff.NextDelay(10))
}

func TestReferenceConflictBackoff(t *testing.T) {
	backoff := ReferenceConflictBackoff()

	assertWithin(t, backoff.NextDelay(0), 20*time.Millisecond, backoff.Jitter)
	assertWithin(t, backoff.NextDelay(1), 40*time.Millisecond, backoff.Jitter)
	assertWithin(t, backoff.NextDelay(2), 80*time.Millisecond, backoff.Jitter)
	assertWithin(t, backoff.NextDelay(6), 200*time.Millisecond, backoff.Jitter)
}

func TestExponentialBackoff_JitterSpreadsDelays(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	seen := make(map[time.Duration]struct{})
	for i := 0; i < 50; i++ {
		seen[backoff.NextDelay(3)] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestFixedBackoff(t *testing.T) {
	backoff := &FixedBackoff{Delay: 250 * time.Millisecond}

	for _, attempt := range []int{-1, 0, 1, 7} {
		assert.Equal(t, 250*time.Millisecond, backoff.NextDelay(attempt))
	}
}

func BenchmarkExponentialBackoff(b *testing.B) {
	backoff := DefaultExponentialBackoff()
	for i := 0; i < b.N; i++ {
		_ = backoff.NextDelay(i % 10)
	}
}
