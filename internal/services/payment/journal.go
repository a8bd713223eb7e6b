package payment

import (
	"context"

	adapterports "github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/shopspring/decimal"
)

var _ adapterports.TransactionOps = (*journalOps)(nil)

// journalOps lets a strategy talk to its provider outside any database transaction.
// Reads go to the store directly. Writes are queued and applied in order by commit,
// inside one database transaction, once the provider has answered.
type journalOps struct {
	reads     *txOps
	writes    []func(ctx context.Context, ops *txOps) error
	triggered bool
}

func (s *Service) journal() *journalOps {
	return &journalOps{reads: s.ops(s.store)}
}

func (j *journalOps) queue(fn func(ctx context.Context, ops *txOps) error) error {
	j.writes = append(j.writes, fn)
	return nil
}

func (j *journalOps) SetPending(_ context.Context, message string, txs ...*domain.Transaction) error {
	return j.queue(func(ctx context.Context, ops *txOps) error { return ops.SetPending(ctx, message, txs...) })
}

func (j *journalOps) SetAuthorized(_ context.Context, message string, txs ...*domain.Transaction) error {
	return j.queue(func(ctx context.Context, ops *txOps) error { return ops.SetAuthorized(ctx, message, txs...) })
}

func (j *journalOps) SetDone(_ context.Context, message string, txs ...*domain.Transaction) error {
	return j.queue(func(ctx context.Context, ops *txOps) error { return ops.SetDone(ctx, message, txs...) })
}

func (j *journalOps) SetCanceled(_ context.Context, message string, txs ...*domain.Transaction) error {
	return j.queue(func(ctx context.Context, ops *txOps) error { return ops.SetCanceled(ctx, message, txs...) })
}

func (j *journalOps) SetError(_ context.Context, message string, txs ...*domain.Transaction) error {
	return j.queue(func(ctx context.Context, ops *txOps) error { return ops.SetError(ctx, message, txs...) })
}

func (j *journalOps) SaveToken(_ context.Context, tx *domain.Transaction, token *domain.Token) error {
	return j.queue(func(ctx context.Context, ops *txOps) error { return ops.SaveToken(ctx, tx, token) })
}

func (j *journalOps) UpdateAcquirerReference(_ context.Context, tx *domain.Transaction, acquirerReference string) error {
	return j.queue(func(ctx context.Context, ops *txOps) error {
		return ops.UpdateAcquirerReference(ctx, tx, acquirerReference)
	})
}

func (j *journalOps) ExecuteCallbacks(_ context.Context, txs ...*domain.Transaction) error {
	return j.queue(func(ctx context.Context, ops *txOps) error { return ops.ExecuteCallbacks(ctx, txs...) })
}

// TriggerPostProcessing is signalled after the queued writes commit
func (j *journalOps) TriggerPostProcessing() {
	j.triggered = true
}

func (j *journalOps) FindByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return j.reads.FindByReference(ctx, reference)
}

func (j *journalOps) FindByAcquirerReference(ctx context.Context, provider, acquirerReference string) (*domain.Transaction, error) {
	return j.reads.FindByAcquirerReference(ctx, provider, acquirerReference)
}

func (j *journalOps) GetToken(ctx context.Context, id int64) (*domain.Token, error) {
	return j.reads.GetToken(ctx, id)
}

func (j *journalOps) GetCurrency(ctx context.Context, code string) (*domain.Currency, error) {
	return j.reads.GetCurrency(ctx, code)
}

// CreateRefundTransaction is not deferred: the strategy needs the record it asks for
func (j *journalOps) CreateRefundTransaction(ctx context.Context, source *domain.Transaction, amount *decimal.Decimal) (*domain.Transaction, error) {
	return j.reads.CreateRefundTransaction(ctx, source, amount)
}

// commit applies the queued writes, then runs the callbacks of txs, in one database transaction
func (s *Service) commit(ctx context.Context, j *journalOps, txs ...*domain.Transaction) error {
	err := s.store.WithTx(ctx, func(store ports.Store) error {
		ops := s.ops(store)
		for _, write := range j.writes {
			if err := write(ctx, ops); err != nil {
				return err
			}
		}
		if len(txs) == 0 {
			return nil
		}
		return ops.ExecuteCallbacks(ctx, txs...)
	})
	if err != nil {
		return err
	}
	if j.triggered {
		s.trigger()
	}
	return nil
}
