package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/internal/util"
	"github.com/kevin07696/payment-transactions/pkg/observability"
)

// CallbackOutcome tells the executor whether a callback has completed.
// The zero value means done, so a callback only has to speak up to be retried.
type CallbackOutcome int

const (
	CallbackDone CallbackOutcome = iota
	CallbackRetry
)

// CallbackFunc is a hook run on a business document once a transaction outcome is known
type CallbackFunc func(ctx context.Context, store ports.Store, recordID int64, tx *domain.Transaction) (CallbackOutcome, error)

// RecordLookup reports whether a record of a model still exists
type RecordLookup func(ctx context.Context, store ports.Store, recordID int64) (bool, error)

type callbackModel struct {
	lookup  RecordLookup
	methods map[string]CallbackFunc
}

// CallbackRegistry maps (model, method) pairs to callbacks
type CallbackRegistry struct {
	mu     sync.RWMutex
	models map[string]*callbackModel
}

// NewCallbackRegistry creates an empty registry
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{models: make(map[string]*callbackModel)}
}

// RegisterModel declares a model and how to check its records exist
func (r *CallbackRegistry) RegisterModel(model string, lookup RecordLookup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[model]
	if !ok {
		m = &callbackModel{methods: make(map[string]CallbackFunc)}
		r.models[model] = m
	}
	m.lookup = lookup
}

// Register adds a callback method to a registered model
func (r *CallbackRegistry) Register(model, method string, fn CallbackFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[model]
	if !ok {
		return fmt.Errorf("callback model %q is not registered", model)
	}
	m.methods[method] = fn
	return nil
}

func (r *CallbackRegistry) resolve(model, method string) (RecordLookup, CallbackFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[model]
	if !ok {
		return nil, nil, false
	}
	fn, ok := m.methods[method]
	return m.lookup, fn, ok
}

// ExecuteCallbacks runs the callback of each transaction at most once.
// Failures of a single callback are logged and leave it pending for a later call.
func (s *Service) ExecuteCallbacks(ctx context.Context, txs ...*domain.Transaction) error {
	return s.ops(s.store).ExecuteCallbacks(ctx, txs...)
}

// ExecuteCallbacks runs pending callbacks against the bound session
func (o *txOps) ExecuteCallbacks(ctx context.Context, txs ...*domain.Transaction) error {
	var secret []byte
	for _, tx := range txs {
		if tx.Callback.IsDone || !tx.Callback.IsComplete() {
			continue
		}

		if secret == nil {
			var err error
			if secret, err = o.s.secrets.ServerSecret(ctx); err != nil {
				return err
			}
		}

		cb := tx.Callback
		if !util.CheckCallbackHash(secret, cb.Hash, cb.Model, cb.RecordID, cb.Method) {
			o.s.logger.Warn("invalid callback signature for transaction",
				ports.Reference(tx.Reference),
				ports.String("model", cb.Model),
				ports.String("method", cb.Method))
			observability.RecordCallback("invalid_hash")
			continue
		}

		lookup, fn, ok := o.s.callbacks.resolve(cb.Model, cb.Method)
		if !ok {
			o.s.logger.Warn("no callback registered for transaction",
				ports.Reference(tx.Reference),
				ports.String("model", cb.Model),
				ports.String("method", cb.Method))
			observability.RecordCallback("missing_record")
			continue
		}

		if lookup != nil {
			exists, err := lookup(ctx, o.store, cb.RecordID)
			if err != nil {
				return fmt.Errorf("resolve callback record of %s: %w", tx.Reference, err)
			}
			if !exists {
				o.s.logger.Warn("invalid callback record for transaction",
					ports.Reference(tx.Reference),
					ports.String("model", cb.Model),
					ports.Int64("record_id", cb.RecordID))
				observability.RecordCallback("missing_record")
				continue
			}
		}

		outcome, err := fn(ctx, o.store, cb.RecordID, tx)
		if err != nil {
			o.s.logger.Error("callback failed",
				ports.Reference(tx.Reference),
				ports.String("model", cb.Model),
				ports.String("method", cb.Method),
				ports.Err(err))
			observability.RecordCallback("failed")
			continue
		}
		if outcome == CallbackRetry {
			observability.RecordCallback("retry")
			continue
		}

		tx.Callback.IsDone = true
		if err := o.store.Transactions().Update(ctx, tx); err != nil {
			return fmt.Errorf("mark callback done for %s: %w", tx.Reference, err)
		}
		observability.RecordCallback("done")
	}
	return nil
}
