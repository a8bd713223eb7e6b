// Package demo implements a simulated acquirer for sandboxes and tests. The
// feedback names the state to simulate, and tokens remember it for later
// token payments.
package demo

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/util"
	"go.uber.org/zap"
)

// Provider is the acquirer provider code handled by this package
const Provider = "demo"

// Simulated states accepted in feedback
const (
	SimulatedPending = "pending"
	SimulatedDone    = "done"
	SimulatedCancel  = "cancel"
	SimulatedError   = "error"
)

// Strategy implements ports.AcquirerStrategy without any network call
type Strategy struct {
	logger *zap.Logger
}

var _ ports.AcquirerStrategy = (*Strategy)(nil)

// NewStrategy creates the demo strategy
func NewStrategy(logger *zap.Logger) *Strategy {
	return &Strategy{logger: logger}
}

func (s *Strategy) Provider() string {
	return Provider
}

// SendPaymentRequest replays the state stored on the token
func (s *Strategy) SendPaymentRequest(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	if tx.Operation != domain.OperationOnlineToken {
		return nil
	}
	if tx.TokenID == nil {
		return domain.ErrValidationMissingField.WithDetail("field", "token")
	}
	token, err := ops.GetToken(ctx, *tx.TokenID)
	if err != nil {
		return err
	}
	return s.ProcessFeedbackData(ctx, ops, acq, tx, domain.FeedbackData{
		"reference":       tx.Reference,
		"simulated_state": token.AcquirerRef,
		"payment_details": token.Name,
	})
}

// SendRefundRequest confirms the refund immediately
func (s *Strategy) SendRefundRequest(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, refund, _ *domain.Transaction) error {
	return s.ProcessFeedbackData(ctx, ops, acq, refund, domain.FeedbackData{
		"reference":       refund.Reference,
		"simulated_state": SimulatedDone,
	})
}

// SendCaptureRequest confirms the capture immediately
func (s *Strategy) SendCaptureRequest(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	return s.ProcessFeedbackData(ctx, ops, acq, tx, domain.FeedbackData{
		"reference":       tx.Reference,
		"simulated_state": SimulatedDone,
		"manual_capture":  true,
	})
}

// SendVoidRequest cancels the authorization immediately
func (s *Strategy) SendVoidRequest(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	return s.ProcessFeedbackData(ctx, ops, acq, tx, domain.FeedbackData{
		"reference":       tx.Reference,
		"simulated_state": SimulatedCancel,
	})
}

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

func (s *Strategy) ProcessFeedbackData(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction, data domain.FeedbackData) error {
	if err := ops.UpdateAcquirerReference(ctx, tx, "demo-"+tx.Reference); err != nil {
		return err
	}

	state := data.String("simulated_state")
	if tx.Tokenize && state != SimulatedError {
		if err := s.tokenize(ctx, ops, acq, tx, state, data.String("payment_details")); err != nil {
			return err
		}
	}

	switch state {
	case SimulatedPending:
		return ops.SetPending(ctx, "", tx)
	case SimulatedDone:
		if acq.CaptureManually && !tx.IsRefund() && data.String("manual_capture") != "true" {
			return ops.SetAuthorized(ctx, "", tx)
		}
		if err := ops.SetDone(ctx, "", tx); err != nil {
			return err
		}
		if tx.IsRefund() {
			ops.TriggerPostProcessing()
		}
		return nil
	case SimulatedCancel:
		return ops.SetCanceled(ctx, "", tx)
	default:
		return ops.SetError(ctx, fmt.Sprintf("You selected the following demo payment status: %s", state), tx)
	}
}

// tokenize stores the simulated state as the token reference so token payments replay it
func (s *Strategy) tokenize(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction, state, details string) error {
	token := &domain.Token{
		Name:        util.BuildTokenName(details),
		AcquirerRef: state,
		AcquirerID:  acq.ID,
		PartnerID:   tx.PartnerID,
		Verified:    true,
		Active:      true,
	}
	if err := ops.SaveToken(ctx, tx, token); err != nil {
		return err
	}
	s.logger.Info("created demo token",
		zap.String("token", token.Name),
		zap.String("reference", tx.Reference),
		zap.String("simulated_state", state))
	return nil
}
