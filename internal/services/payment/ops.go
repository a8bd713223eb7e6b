package payment

import (
	"context"
	"errors"
	"fmt"

	adapterports "github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/pkg/observability"
	"github.com/shopspring/decimal"
)

var _ adapterports.TransactionOps = (*txOps)(nil)

// txOps implements the lifecycle operations against one database session
type txOps struct {
	s     *Service
	store ports.Store
}

func (o *txOps) acquirer(ctx context.Context, id int64) (*domain.Acquirer, error) {
	acq, err := o.store.Acquirers().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load acquirer %d: %w", id, err)
	}
	return acq, nil
}

// FindByReference returns the transaction with reference
func (o *txOps) FindByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return o.store.Transactions().GetByReference(ctx, reference)
}

// FindByAcquirerReference returns the transaction known to provider under acquirerReference
func (o *txOps) FindByAcquirerReference(ctx context.Context, provider, acquirerReference string) (*domain.Transaction, error) {
	return o.store.Transactions().GetByAcquirerReference(ctx, provider, acquirerReference)
}

// GetToken returns a stored payment method
func (o *txOps) GetToken(ctx context.Context, id int64) (*domain.Token, error) {
	return o.store.Tokens().GetByID(ctx, id)
}

// GetCurrency returns a currency by ISO code
func (o *txOps) GetCurrency(ctx context.Context, code string) (*domain.Currency, error) {
	return o.store.Accounting().GetCurrency(ctx, code)
}

// UpdateAcquirerReference stores the provider's reference for tx
func (o *txOps) UpdateAcquirerReference(ctx context.Context, tx *domain.Transaction, acquirerReference string) error {
	if tx.AcquirerReference == acquirerReference {
		return nil
	}
	tx.AcquirerReference = acquirerReference
	return o.store.Transactions().Update(ctx, tx)
}

// SaveToken stores token for the partner of tx and links it
func (o *txOps) SaveToken(ctx context.Context, tx *domain.Transaction, token *domain.Token) error {
	if token.AcquirerID == 0 {
		token.AcquirerID = tx.AcquirerID
	}
	if token.PartnerID == 0 {
		token.PartnerID = tx.PartnerID
	}
	token.Active = true
	if err := o.store.Tokens().Create(ctx, token); err != nil {
		return fmt.Errorf("create token for %s: %w", tx.Reference, err)
	}

	tx.TokenID = &token.ID
	tx.Tokenize = false
	if err := o.store.Transactions().Update(ctx, tx); err != nil {
		return err
	}

	o.s.logger.Info("created token from transaction feedback",
		ports.Reference(tx.Reference),
		ports.Int64("token_id", token.ID),
		ports.Int64("partner_id", token.PartnerID))
	return nil
}

// TriggerPostProcessing asks the worker for an early sweep
func (o *txOps) TriggerPostProcessing() {
	o.s.trigger()
}

// CreateRefundTransaction creates a draft refund of source.
// The refund carries a negative amount and the source's token and partner.
func (o *txOps) CreateRefundTransaction(ctx context.Context, source *domain.Transaction, amount *decimal.Decimal) (*domain.Transaction, error) {
	refundAmount := source.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if !refundAmount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid.WithDetail("amount", refundAmount.String())
	}
	if err := o.checkRefundable(ctx, source, refundAmount, 0); err != nil {
		return nil, err
	}

	sourceID := source.ID
	return o.createWithReference(ctx, source.Provider, ReferenceParams{Prefix: "R-" + source.Reference}, func(reference string) *domain.Transaction {
		return &domain.Transaction{
			Reference:           reference,
			Amount:              refundAmount.Neg(),
			CurrencyCode:        source.CurrencyCode,
			AcquirerID:          source.AcquirerID,
			Provider:            source.Provider,
			TokenID:             cloneID(source.TokenID),
			Operation:           domain.OperationRefund,
			State:               domain.TransactionStateDraft,
			SourceTransactionID: &sourceID,
			PartnerID:           source.PartnerID,
			Partner:             source.Partner,
		}
	})
}

// checkRefundable fails when amount exceeds what is left of source once its other
// refunds are deducted. Canceled and failed refunds give their amount back.
func (o *txOps) checkRefundable(ctx context.Context, source *domain.Transaction, amount decimal.Decimal, excludedRefundID int64) error {
	refunds, err := o.store.Transactions().ListRefunds(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("list refunds of %s: %w", source.Reference, err)
	}
	available := source.Amount
	for _, refund := range refunds {
		if refund.ID == excludedRefundID ||
			refund.State == domain.TransactionStateCancel ||
			refund.State == domain.TransactionStateError {
			continue
		}
		available = available.Sub(refund.Amount.Abs())
	}
	if amount.GreaterThan(available) {
		return domain.ErrTxnRefundAmountExceeded.
			WithDetail("requested", amount.String()).
			WithDetail("available", available.String())
	}
	return nil
}

// createWithReference computes a reference, builds the transaction and inserts it,
// recomputing the reference when a concurrent insert claimed it first.
func (o *txOps) createWithReference(ctx context.Context, provider string, params ReferenceParams, build func(reference string) *domain.Transaction) (*domain.Transaction, error) {
	for attempt := 0; ; attempt++ {
		reference, err := o.s.computeReference(ctx, o.store, provider, params)
		if err != nil {
			return nil, err
		}

		tx := build(reference)
		if tx.LastStateChange.IsZero() {
			tx.LastStateChange = o.s.now()
		}
		err = o.store.Transactions().Create(ctx, tx)
		if err == nil {
			observability.RecordTransactionCreated(tx.Provider, string(tx.Operation))
			return tx, nil
		}
		if !errors.Is(err, domain.ErrTxnReferenceConflict) || attempt+1 >= o.s.cfg.ReferenceAttempts {
			return nil, err
		}

		observability.RecordReferenceConflict()
		o.s.logger.Warn("transaction reference already taken, recomputing",
			ports.Reference(reference),
			ports.Int("attempt", attempt+1))
		if err := o.s.sleep(ctx, o.s.backoff.NextDelay(attempt)); err != nil {
			return nil, err
		}
	}
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
