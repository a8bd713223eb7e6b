package payment

import (
	"context"
	"errors"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
)

const (
	InvoiceModel                = "invoice"
	InvoiceConfirmPaymentMethod = "confirm_payment"
)

// RegisterInvoiceCallbacks registers the invoice hooks
func RegisterInvoiceCallbacks(r *CallbackRegistry) error {
	r.RegisterModel(InvoiceModel, func(ctx context.Context, store ports.Store, id int64) (bool, error) {
		_, err := store.Accounting().GetInvoice(ctx, id)
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			return false, nil
		}
		return err == nil, err
	})
	return r.Register(InvoiceModel, InvoiceConfirmPaymentMethod, confirmInvoicePayment)
}

// confirmInvoicePayment posts the invoice once its transaction is confirmed.
// It asks to be retried while the transaction is not done yet.
func confirmInvoicePayment(ctx context.Context, store ports.Store, invoiceID int64, tx *domain.Transaction) (CallbackOutcome, error) {
	if tx.State != domain.TransactionStateDone && tx.State != domain.TransactionStateAuthorized {
		return CallbackRetry, nil
	}
	invoice, err := store.Accounting().GetInvoice(ctx, invoiceID)
	if err != nil {
		return CallbackRetry, err
	}
	if invoice.State == domain.InvoiceStateDraft {
		invoice.State = domain.InvoiceStatePosted
		if err := store.Accounting().UpdateInvoice(ctx, invoice); err != nil {
			return CallbackRetry, err
		}
	}
	return CallbackDone, nil
}
