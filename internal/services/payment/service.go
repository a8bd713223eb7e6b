package payment

import (
	"context"
	"time"

	adapterports "github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/pkg/resilience"
	"github.com/kevin07696/payment-transactions/pkg/timeutil"
)

// SecretProvider returns the server secret used for access tokens and callback hashes
type SecretProvider interface {
	ServerSecret(ctx context.Context) ([]byte, error)
}

// Config holds the timing rules of the transaction lifecycle
type Config struct {
	// ClientHandlingWindow is left to the client to trigger post-processing before the sweep does
	ClientHandlingWindow time.Duration
	// RetryLimit is how long after the last state change the sweep keeps retrying
	RetryLimit time.Duration
	// PollWindow bounds the transactions reported by status polling
	PollWindow time.Duration
	// SweepBatchSize caps the transactions finalized per sweep (0 = unlimited)
	SweepBatchSize int
	// ReferenceAttempts is the number of reference computations tried on conflicts
	ReferenceAttempts int
}

// DefaultConfig returns the standard lifecycle timings
func DefaultConfig() Config {
	return Config{
		ClientHandlingWindow: 10 * time.Minute,
		RetryLimit:           4 * 24 * time.Hour,
		PollWindow:           24 * time.Hour,
		SweepBatchSize:       500,
		ReferenceAttempts:    3,
	}
}

// Service owns the payment transaction lifecycle
type Service struct {
	store     ports.Store
	acquirers adapterports.AcquirerRegistry
	secrets   SecretProvider
	locker    ports.ReferenceLocker
	callbacks *CallbackRegistry
	logger    ports.Logger
	cfg       Config
	backoff   resilience.BackoffStrategy
	now       func() time.Time
	trigger   func()
}

// NewService creates a new payment service
func NewService(
	store ports.Store,
	acquirers adapterports.AcquirerRegistry,
	secrets SecretProvider,
	locker ports.ReferenceLocker,
	callbacks *CallbackRegistry,
	logger ports.Logger,
	cfg Config,
) *Service {
	if cfg.ReferenceAttempts < 1 {
		cfg.ReferenceAttempts = 1
	}
	return &Service{
		store:     store,
		acquirers: acquirers,
		secrets:   secrets,
		locker:    locker,
		callbacks: callbacks,
		logger:    logger,
		cfg:       cfg,
		backoff:   resilience.ReferenceConflictBackoff(),
		now:       timeutil.Now,
		trigger:   func() {},
	}
}

// SetPostProcessingTrigger wires the signal asking for an early post-processing sweep
func (s *Service) SetPostProcessingTrigger(trigger func()) {
	if trigger != nil {
		s.trigger = trigger
	}
}

// ops binds the lifecycle operations to a database session
func (s *Service) ops(store ports.Store) *txOps {
	return &txOps{s: s, store: store}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
