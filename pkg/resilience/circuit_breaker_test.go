package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.now
	return cb, clock
}

var errUnavailable = errors.New("service unavailable")

func failing() error { return errUnavailable }
func succeeding() error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 3, Timeout: time.Second})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Call(failing), errUnavailable)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Call(succeeding), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 3, Timeout: time.Second})

	_ = cb.Call(failing)
	_ = cb.Call(failing)
	assert.NoError(t, cb.Call(succeeding))
	_ = cb.Call(failing)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Failures())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second})
	_ = cb.Call(failing)
	assert.Equal(t, StateOpen, cb.State())

	clock.advance(2 * time.Second)
	assert.NoError(t, cb.Call(succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second})
	_ = cb.Call(failing)

	clock.advance(2 * time.Second)
	_ = cb.Call(failing)

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Call(succeeding), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, MaxRequestsHalfOpen: 1})
	_ = cb.Call(failing)
	clock.advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Call(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Call(succeeding), ErrTooManyRequests)
	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	declined := errors.New("declined")
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		Timeout:     time.Second,
		IsFailure:   func(err error) bool { return !errors.Is(err, declined) },
	})

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return declined }), declined)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		Timeout:     time.Second,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Call(failing)
	cb.Reset()

	assert.Equal(t, []string{"closed->open"}, transitions)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}
