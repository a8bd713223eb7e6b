package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the position of a CircuitBreaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

var stateNames = map[CircuitState]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreakerConfig configures a CircuitBreaker
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit
	MaxFailures uint32
	// Timeout is how long the circuit stays open before letting a probe through
	Timeout time.Duration
	// MaxRequestsHalfOpen caps the concurrent probes
	MaxRequestsHalfOpen uint32
	// IsFailure decides which errors count against the acquirer (all when nil).
	// A refused payment is a valid answer, not an unhealthy acquirer.
	IsFailure func(error) bool
	// OnStateChange runs with the breaker locked and must not call back into it
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after 5 failures and probes again after 30s
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 1,
	}
}

// CircuitBreaker stops calling an acquirer that keeps failing
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures uint32
	probes   uint32
	openedAt time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxRequestsHalfOpen == 0 {
		cfg.MaxRequestsHalfOpen = 1
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Call runs fn unless the circuit rejects it, then records the outcome
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err != nil && (cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err)))
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) <= cb.cfg.Timeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.MaxRequestsHalfOpen {
			return ErrTooManyRequests
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case !failed && cb.state == StateHalfOpen:
		cb.transition(StateClosed)
	case !failed:
		cb.failures = 0
	case cb.state == StateHalfOpen:
		cb.transition(StateOpen)
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
			cb.transition(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.probes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	} else {
		cb.failures = 0
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failures counted while closed
func (cb *CircuitBreaker) Failures() uint32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit without notifying OnStateChange
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
}
