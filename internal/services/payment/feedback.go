package payment

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
)

// HandleFeedbackData is the single entry point for provider feedback, whether it comes
// from a customer return or a webhook. It resolves the transaction, applies the
// provider outcome and runs the pending callbacks.
//
// Deliveries for the same reference are serialized by the reference locker; the outcome
// and the callbacks commit together.
func (s *Service) HandleFeedbackData(ctx context.Context, provider string, data domain.FeedbackData) (*domain.Transaction, error) {
	return s.handleFeedback(ctx, provider, data, 0)
}

// handleFeedback refuses data resolving to another transaction than expectedID, when set
func (s *Service) handleFeedback(ctx context.Context, provider string, data domain.FeedbackData, expectedID int64) (*domain.Transaction, error) {
	strategy, err := s.acquirers.Get(provider)
	if err != nil {
		return nil, err
	}

	var resolved *domain.Transaction
	err = s.store.WithTx(ctx, func(store ports.Store) error {
		tx, err := strategy.GetTxFromFeedbackData(ctx, s.ops(store), data)
		if err != nil {
			return err
		}
		if tx == nil {
			return domain.ErrTxnNotFound.WithDetail("provider", provider)
		}
		resolved = tx
		return nil
	})
	if err != nil {
		s.logger.Warn("could not resolve transaction from feedback",
			ports.Provider(provider),
			ports.Err(err))
		return nil, err
	}
	if resolved.Provider != provider || (expectedID != 0 && resolved.ID != expectedID) {
		return nil, domain.ErrValidationFailed.
			WithDetail("reference", resolved.Reference).
			WithDetail("provider", provider)
	}

	unlock, err := s.locker.Lock(ctx, resolved.Reference)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", resolved.Reference, err)
	}
	defer unlock()

	var result *domain.Transaction
	err = s.store.WithTx(ctx, func(store ports.Store) error {
		ops := s.ops(store)
		tx, err := store.Transactions().GetByIDForUpdate(ctx, resolved.ID)
		if err != nil {
			return err
		}
		acq, err := ops.acquirer(ctx, tx.AcquirerID)
		if err != nil {
			return err
		}
		if err := strategy.ProcessFeedbackData(ctx, ops, acq, tx, data); err != nil {
			return err
		}
		if err := ops.ExecuteCallbacks(ctx, tx); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		s.logger.Error("failed to process feedback",
			ports.Provider(provider),
			ports.Reference(resolved.Reference),
			ports.Err(err))
		return nil, err
	}

	s.logger.Info("processed feedback",
		ports.Provider(provider),
		ports.Reference(result.Reference),
		ports.String("state", string(result.State)))
	return result, nil
}
