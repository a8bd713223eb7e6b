// Package transfer implements the wire transfer acquirer. The customer pays
// out of band, so every confirmation only moves the transaction to pending
// until the payment is reconciled by hand.
package transfer

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"go.uber.org/zap"
)

// Provider is the acquirer provider code handled by this package
const Provider = "transfer"

// Strategy implements ports.AcquirerStrategy for wire transfers
type Strategy struct {
	logger *zap.Logger
}

var (
	_ ports.AcquirerStrategy          = (*Strategy)(nil)
	_ ports.SentMessageFormatter      = (*Strategy)(nil)
	_ ports.ReceivedMessageSuppressor = (*Strategy)(nil)
)

// NewStrategy creates the wire transfer strategy
func NewStrategy(logger *zap.Logger) *Strategy {
	return &Strategy{logger: logger}
}

func (s *Strategy) Provider() string {
	return Provider
}

// SentMessage tells the documents which acquirer the customer picked
func (s *Strategy) SentMessage(acq *domain.Acquirer, _ *domain.Transaction) string {
	return fmt.Sprintf("The customer has selected %s to make the payment.", acq.Name)
}

// SuppressReceivedMessage is always true: nothing is received until reconciliation
func (s *Strategy) SuppressReceivedMessage() bool {
	return true
}

func (s *Strategy) SendPaymentRequest(context.Context, ports.TransactionOps, *domain.Acquirer, *domain.Transaction) error {
	return nil
}

func (s *Strategy) SendRefundRequest(_ context.Context, _ ports.TransactionOps, _ *domain.Acquirer, refund, _ *domain.Transaction) error {
	return domain.ErrValidationFailed.WithDetail("operation", "refund").WithDetail("reference", refund.Reference)
}

func (s *Strategy) SendCaptureRequest(_ context.Context, _ ports.TransactionOps, _ *domain.Acquirer, tx *domain.Transaction) error {
	return domain.ErrValidationFailed.WithDetail("operation", "capture").WithDetail("reference", tx.Reference)
}

func (s *Strategy) SendVoidRequest(_ context.Context, _ ports.TransactionOps, _ *domain.Acquirer, tx *domain.Transaction) error {
	return domain.ErrValidationFailed.WithDetail("operation", "void").WithDetail("reference", tx.Reference)
}

// GetTxFromFeedbackData finds the wire transfer transaction named by "reference"
func (s *Strategy) GetTxFromFeedbackData(ctx context.Context, ops ports.TransactionOps, data domain.FeedbackData) (*domain.Transaction, error) {
	reference := data.String("reference")
	if reference == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "reference")
	}
	tx, err := ops.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.Provider != Provider {
		return nil, domain.ErrTxnNotFound.WithDetail("reference", reference)
	}
	return tx, nil
}

// ProcessFeedbackData marks the transaction pending whatever the feedback says
func (s *Strategy) ProcessFeedbackData(ctx context.Context, ops ports.TransactionOps, _ *domain.Acquirer, tx *domain.Transaction, _ domain.FeedbackData) error {
	s.logger.Info("validated transfer payment", zap.String("reference", tx.Reference))
	return ops.SetPending(ctx, "", tx)
}
