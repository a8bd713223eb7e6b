package payment

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/pkg/observability"
)

// allowedSources lists the states each target state may be entered from
var allowedSources = map[domain.TransactionState][]domain.TransactionState{
	domain.TransactionStatePending: {
		domain.TransactionStateDraft,
	},
	domain.TransactionStateAuthorized: {
		domain.TransactionStateDraft,
		domain.TransactionStatePending,
	},
	domain.TransactionStateDone: {
		domain.TransactionStateDraft,
		domain.TransactionStatePending,
		domain.TransactionStateAuthorized,
		domain.TransactionStateError,
		domain.TransactionStateCancel,
	},
	domain.TransactionStateCancel: {
		domain.TransactionStateDraft,
		domain.TransactionStatePending,
		domain.TransactionStateAuthorized,
	},
	domain.TransactionStateError: {
		domain.TransactionStateDraft,
		domain.TransactionStatePending,
		domain.TransactionStateAuthorized,
	},
}

// CanTransition reports whether a transaction in from may move to to
func CanTransition(from, to domain.TransactionState) bool {
	for _, s := range allowedSources[to] {
		if s == from {
			return true
		}
	}
	return false
}

// transitionGroups is the classification of a set of transactions against a target state
type transitionGroups struct {
	toProcess        []*domain.Transaction
	alreadyProcessed []*domain.Transaction
	wrongState       []*domain.Transaction
}

func classifyTransition(txs []*domain.Transaction, target domain.TransactionState) transitionGroups {
	var g transitionGroups
	for _, tx := range txs {
		switch {
		case CanTransition(tx.State, target):
			g.toProcess = append(g.toProcess, tx)
		case tx.State == target:
			g.alreadyProcessed = append(g.alreadyProcessed, tx)
		default:
			g.wrongState = append(g.wrongState, tx)
		}
	}
	return g
}

// updateState moves every eligible transaction to target and returns the ones that changed.
// Redundant and illegal transitions are logged and skipped.
func (o *txOps) updateState(ctx context.Context, target domain.TransactionState, message string, txs []*domain.Transaction) ([]*domain.Transaction, error) {
	g := classifyTransition(txs, target)

	for _, tx := range g.alreadyProcessed {
		o.s.logger.Info("tried to write on transaction already in target state",
			ports.Reference(tx.Reference),
			ports.String("state", string(target)))
		observability.RecordStateTransition(tx.Provider, string(target), "already_processed")
	}
	for _, tx := range g.wrongState {
		o.s.logger.Warn("tried to write on transaction with illegal previous state",
			ports.Reference(tx.Reference),
			ports.String("current_state", string(tx.State)),
			ports.String("target_state", string(target)))
		observability.RecordStateTransition(tx.Provider, string(target), "wrong_state")
	}

	if target == domain.TransactionStateAuthorized {
		for _, tx := range g.toProcess {
			acq, err := o.acquirer(ctx, tx.AcquirerID)
			if err != nil {
				return nil, err
			}
			if !acq.SupportAuthorization {
				return nil, domain.ErrTxnAuthorizationUnsupported.
					WithDetail("reference", tx.Reference).
					WithDetail("provider", acq.Provider)
			}
		}
	}

	now := o.s.now()
	for _, tx := range g.toProcess {
		tx.State = target
		tx.StateMessage = message
		tx.LastStateChange = now
		if err := o.store.Transactions().Update(ctx, tx); err != nil {
			return nil, fmt.Errorf("update state of %s: %w", tx.Reference, err)
		}
		observability.RecordStateTransition(tx.Provider, string(target), "applied")
	}

	return g.toProcess, nil
}

// SetPending moves draft transactions to pending
func (o *txOps) SetPending(ctx context.Context, message string, txs ...*domain.Transaction) error {
	processed, err := o.updateState(ctx, domain.TransactionStatePending, message, txs)
	if err != nil {
		return err
	}
	return o.logReceivedMessage(ctx, processed...)
}

// SetAuthorized moves draft and pending transactions to authorized
func (o *txOps) SetAuthorized(ctx context.Context, message string, txs ...*domain.Transaction) error {
	processed, err := o.updateState(ctx, domain.TransactionStateAuthorized, message, txs)
	if err != nil {
		return err
	}
	return o.logReceivedMessage(ctx, processed...)
}

// SetDone confirms transactions. Confirmed transactions are left to post-processing.
func (o *txOps) SetDone(ctx context.Context, message string, txs ...*domain.Transaction) error {
	processed, err := o.updateState(ctx, domain.TransactionStateDone, message, txs)
	if err != nil {
		return err
	}
	return o.logReceivedMessage(ctx, processed...)
}

// SetCanceled cancels transactions and any payment already created for them
func (o *txOps) SetCanceled(ctx context.Context, message string, txs ...*domain.Transaction) error {
	processed, err := o.updateState(ctx, domain.TransactionStateCancel, message, txs)
	if err != nil {
		return err
	}
	for _, tx := range processed {
		if err := o.cancelPayment(ctx, tx); err != nil {
			return err
		}
	}
	return o.logReceivedMessage(ctx, processed...)
}

// SetError marks transactions as failed
func (o *txOps) SetError(ctx context.Context, message string, txs ...*domain.Transaction) error {
	processed, err := o.updateState(ctx, domain.TransactionStateError, message, txs)
	if err != nil {
		return err
	}
	return o.logReceivedMessage(ctx, processed...)
}

func (o *txOps) cancelPayment(ctx context.Context, tx *domain.Transaction) error {
	if tx.PaymentID == nil {
		return nil
	}
	payment, err := o.store.Accounting().GetPayment(ctx, *tx.PaymentID)
	if err != nil {
		return fmt.Errorf("load payment of %s: %w", tx.Reference, err)
	}
	if payment.State == domain.PaymentStateCanceled {
		return nil
	}
	payment.State = domain.PaymentStateCanceled
	if err := o.store.Accounting().UpdatePayment(ctx, payment); err != nil {
		return fmt.Errorf("cancel payment of %s: %w", tx.Reference, err)
	}
	return nil
}
