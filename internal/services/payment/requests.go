package payment

import (
	"context"
	"fmt"

	adapterports "github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// request bundles what a dispatcher needs to call a strategy
type request struct {
	ops      *txOps
	strategy adapterports.AcquirerStrategy
	acq      *domain.Acquirer
	tx       *domain.Transaction
}

// withLockedTransaction loads txID under its reference lock.
// Provider calls are made outside any database transaction: strategies write through
// a journal that commit applies once the provider has answered.
func (s *Service) withLockedTransaction(ctx context.Context, txID int64, fn func(r *request) error) error {
	tx, err := s.store.Transactions().GetByID(ctx, txID)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, tx.Reference)
	if err != nil {
		return fmt.Errorf("lock %s: %w", tx.Reference, err)
	}
	defer unlock()

	ops := s.ops(s.store)
	if tx, err = s.store.Transactions().GetByID(ctx, txID); err != nil {
		return err
	}
	acq, err := ops.acquirer(ctx, tx.AcquirerID)
	if err != nil {
		return err
	}
	strategy, err := s.acquirers.Get(tx.Provider)
	if err != nil {
		return err
	}
	return fn(&request{ops: ops, strategy: strategy, acq: acq, tx: tx})
}

// SendPaymentRequest logs the "sent" message of the transaction and asks its provider
// to charge it
func (s *Service) SendPaymentRequest(ctx context.Context, txID int64) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := s.withLockedTransaction(ctx, txID, func(r *request) error {
		if err := r.ops.LogSentMessage(ctx, r.tx); err != nil {
			return err
		}
		journal := s.journal()
		if err := r.strategy.SendPaymentRequest(ctx, journal, r.acq, r.tx); err != nil {
			return err
		}
		out = r.tx
		return s.commit(ctx, journal, r.tx)
	})
	return out, err
}

// SendRefundRequest refunds amount of a confirmed transaction, the full amount when nil.
//
// With createRefundRecord, txID is the transaction to refund and a refund transaction is
// created for it first. Without it, txID is an existing draft refund transaction which is
// sent as is.
func (s *Service) SendRefundRequest(ctx context.Context, txID int64, amount *decimal.Decimal, createRefundRecord bool) (*domain.Transaction, error) {
	var refund *domain.Transaction
	err := s.withLockedTransaction(ctx, txID, func(r *request) error {
		source := r.tx
		excluded := int64(0)
		if !createRefundRecord {
			if !r.tx.IsRefund() || r.tx.SourceTransactionID == nil || r.tx.State != domain.TransactionStateDraft {
				return domain.ErrTxnInvalidState.
					WithDetail("reference", r.tx.Reference).
					WithDetail("state", string(r.tx.State))
			}
			var err error
			if source, err = s.store.Transactions().GetByID(ctx, *r.tx.SourceTransactionID); err != nil {
				return err
			}
			requested := r.tx.Amount.Neg()
			amount = &requested
			excluded = r.tx.ID
		}

		requested, err := s.checkRefund(ctx, r.acq, source, amount, excluded)
		if err != nil {
			return err
		}

		if !createRefundRecord {
			refund = r.tx
			return s.sendRefund(ctx, r, refund, source, false)
		}

		err = s.store.WithTx(ctx, func(store ports.Store) error {
			created, err := s.ops(store).CreateRefundTransaction(ctx, source, &requested)
			refund = created
			return err
		})
		if err != nil {
			return err
		}
		return s.sendRefund(ctx, r, refund, source, true)
	})
	return refund, err
}

// sendRefund asks the provider to pay refund back. A refund created for this request is
// marked failed when the provider could not be reached.
func (s *Service) sendRefund(ctx context.Context, r *request, refund, source *domain.Transaction, created bool) error {
	journal := s.journal()
	err := r.ops.LogSentMessage(ctx, refund)
	if err == nil {
		err = r.strategy.SendRefundRequest(ctx, journal, r.acq, refund, source)
	}
	if err != nil {
		if created {
			s.failRefund(ctx, refund, err)
		}
		return err
	}
	return s.commit(ctx, journal)
}

// failRefund puts the amount of a refund the provider never accepted back on the source
func (s *Service) failRefund(ctx context.Context, refund *domain.Transaction, cause error) {
	s.logger.Warn("refund request failed, releasing its amount",
		ports.Reference(refund.Reference),
		ports.Err(cause))
	err := s.store.WithTx(ctx, func(store ports.Store) error {
		return s.ops(store).SetError(ctx, "The refund request could not be sent to the acquirer.", refund)
	})
	if err != nil {
		s.logger.Error("failed to mark refund as failed",
			ports.Reference(refund.Reference),
			ports.Err(err))
	}
}

// checkRefund validates a refund of source and returns the amount to refund.
// Refunds that were canceled or failed give their amount back.
func (s *Service) checkRefund(ctx context.Context, acq *domain.Acquirer, source *domain.Transaction, amount *decimal.Decimal, excludedRefundID int64) (decimal.Decimal, error) {
	if !source.CanBeRefunded() {
		return decimal.Zero, domain.ErrTxnInvalidState.
			WithDetail("reference", source.Reference).
			WithDetail("state", string(source.State)).
			WithDetail("operation", string(source.Operation))
	}
	if !acq.SupportsRefund() {
		return decimal.Zero, domain.ErrValidationFailed.
			WithDetail("reason", "acquirer does not support refunds").
			WithDetail("provider", acq.Provider)
	}

	requested := source.Amount
	if amount != nil {
		requested = *amount
	}
	if !requested.IsPositive() {
		return decimal.Zero, domain.ErrValidationAmountInvalid.WithDetail("amount", requested.String())
	}
	if acq.SupportRefund == domain.RefundSupportFullOnly && !requested.Equal(source.Amount) {
		return decimal.Zero, domain.ErrValidationFailed.
			WithDetail("reason", "acquirer only supports full refunds").
			WithDetail("amount", requested.String())
	}

	if err := s.ops(s.store).checkRefundable(ctx, source, requested, excludedRefundID); err != nil {
		return decimal.Zero, err
	}
	return requested, nil
}

// SendCaptureRequest captures an authorized transaction
func (s *Service) SendCaptureRequest(ctx context.Context, txID int64) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := s.withLockedTransaction(ctx, txID, func(r *request) error {
		if !r.tx.CanBeCaptured() {
			return domain.ErrTxnInvalidState.
				WithDetail("reference", r.tx.Reference).
				WithDetail("state", string(r.tx.State))
		}
		journal := s.journal()
		if err := r.strategy.SendCaptureRequest(ctx, journal, r.acq, r.tx); err != nil {
			return err
		}
		out = r.tx
		return s.commit(ctx, journal, r.tx)
	})
	return out, err
}

// SendVoidRequest voids an authorized transaction
func (s *Service) SendVoidRequest(ctx context.Context, txID int64) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := s.withLockedTransaction(ctx, txID, func(r *request) error {
		if !r.tx.CanBeVoided() {
			return domain.ErrTxnInvalidState.
				WithDetail("reference", r.tx.Reference).
				WithDetail("state", string(r.tx.State))
		}
		journal := s.journal()
		if err := r.strategy.SendVoidRequest(ctx, journal, r.acq, r.tx); err != nil {
			return err
		}
		out = r.tx
		return s.commit(ctx, journal, r.tx)
	})
	return out, err
}
