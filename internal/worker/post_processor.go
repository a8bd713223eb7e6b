package worker

import (
	"context"
	"time"

	"github.com/kevin07696/payment-transactions/internal/services/payment"
	"github.com/kevin07696/payment-transactions/pkg/resilience"
	"go.uber.org/zap"
)

// Sweeper finalizes the confirmed transactions left to the server
type Sweeper interface {
	CronFinalizePostProcessing(ctx context.Context) (*payment.SweepResult, error)
}

// PostProcessor runs the post-processing sweep on a ticker and on demand
type PostProcessor struct {
	sweeper  Sweeper
	interval time.Duration
	trigger  chan struct{}
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
}

// NewPostProcessor creates a worker sweeping every interval
func NewPostProcessor(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *PostProcessor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PostProcessor{
		sweeper:  sweeper,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		timeouts: resilience.DefaultTimeoutConfig(),
		logger:   logger,
	}
}

// WithTimeouts replaces the default timeouts; each sweep is bounded by Sweep
func (w *PostProcessor) WithTimeouts(timeouts *resilience.TimeoutConfig) *PostProcessor {
	w.timeouts = timeouts
	return w
}

// Trigger asks for an early sweep. Requests made while one is queued are merged.
func (w *PostProcessor) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start blocks until ctx is canceled
func (w *PostProcessor) Start(ctx context.Context) {
	w.logger.Info("post-processing worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("post-processing worker stopping")
			return
		case <-ticker.C:
			w.sweep(ctx, "schedule")
		case <-w.trigger:
			w.sweep(ctx, "trigger")
		}
	}
}

func (w *PostProcessor) sweep(ctx context.Context, reason string) {
	sweepCtx, cancel := w.timeouts.SweepContext(ctx)
	defer cancel()

	result, err := w.sweeper.CronFinalizePostProcessing(sweepCtx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("post-processing sweep failed", zap.String("reason", reason), zap.Error(err))
		}
		return
	}
	if result.Candidates > 0 {
		w.logger.Debug("post-processing sweep finished",
			zap.String("reason", reason),
			zap.Int("candidates", result.Candidates),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed))
	}
}
