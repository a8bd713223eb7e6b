package shutdown

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker tracks in-flight work so that shutdown waits for it to complete
type InFlightTracker struct {
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closing bool
	logger  *zap.Logger
	name    string
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		logger: logger,
		name:   name,
	}
}

// Add increments the in-flight counter.
// Returns false once shutdown has started; the caller must not start the work.
func (ift *InFlightTracker) Add() bool {
	ift.mu.RLock()
	defer ift.mu.RUnlock()
	if ift.closing {
		return false
	}
	ift.wg.Add(1)
	return true
}

// Done decrements the in-flight counter
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// IsShuttingDown returns true if shutdown has been initiated
func (ift *InFlightTracker) IsShuttingDown() bool {
	ift.mu.RLock()
	defer ift.mu.RUnlock()
	return ift.closing
}

// Middleware rejects requests with 503 once shutdown has started
// and keeps accepted requests counted until they return.
func (ift *InFlightTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ift.Add() {
			w.Header().Set("Connection", "close")
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		defer ift.Done()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops accepting work and waits for in-flight work or ctx
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	ift.mu.Lock()
	ift.closing = true
	ift.mu.Unlock()

	ift.logger.Info("Waiting for in-flight work to complete",
		zap.String("tracker", ift.name),
	)

	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ift.logger.Info("All in-flight work completed",
			zap.String("tracker", ift.name),
		)
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Shutdown timeout - some work may be incomplete",
			zap.String("tracker", ift.name),
		)
		return ctx.Err()
	}
}

// BackgroundWorker runs a long-lived function until shutdown cancels its context
type BackgroundWorker struct {
	name   string
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewBackgroundWorker creates a new background worker
func NewBackgroundWorker(name string, logger *zap.Logger) *BackgroundWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &BackgroundWorker{
		name:   name,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start runs work in a goroutine. work must return once ctx is done.
// Start must be called at most once.
func (bw *BackgroundWorker) Start(work func(ctx context.Context)) {
	go func() {
		defer close(bw.done)

		bw.logger.Info("Background worker started",
			zap.String("worker", bw.name),
		)

		work(bw.ctx)

		bw.logger.Info("Background worker stopped",
			zap.String("worker", bw.name),
		)
	}()
}

// Shutdown cancels the worker and waits for it to return or for ctx
func (bw *BackgroundWorker) Shutdown(ctx context.Context) error {
	bw.once.Do(func() {
		bw.logger.Info("Stopping background worker",
			zap.String("worker", bw.name),
		)
		bw.cancel()
	})

	select {
	case <-bw.done:
		return nil
	case <-ctx.Done():
		bw.logger.Warn("Background worker shutdown timeout",
			zap.String("worker", bw.name),
		)
		return ctx.Err()
	}
}
