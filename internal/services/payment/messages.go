package payment

import (
	"context"
	"fmt"

	adapterports "github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
)

// formatAmount renders amount with the currency precision, e.g. "100.00 EUR"
func (o *txOps) formatAmount(ctx context.Context, tx *domain.Transaction, negate bool) string {
	amount := tx.Amount
	if negate {
		amount = amount.Neg()
	}
	decimals := int32(2)
	if cur, err := o.store.Accounting().GetCurrency(ctx, tx.CurrencyCode); err == nil {
		decimals = cur.Decimals
	}
	return fmt.Sprintf("%s %s", amount.StringFixed(decimals), tx.CurrencyCode)
}

func (o *txOps) strategy(provider string) adapterports.AcquirerStrategy {
	strategy, err := o.s.acquirers.Get(provider)
	if err != nil {
		return nil
	}
	return strategy
}

func (o *txOps) sentMessage(ctx context.Context, acq *domain.Acquirer, tx *domain.Transaction) string {
	if f, ok := o.strategy(tx.Provider).(adapterports.SentMessageFormatter); ok {
		return f.SentMessage(acq, tx)
	}

	switch {
	case tx.IsRefund():
		return fmt.Sprintf("A refund request of %s has been sent. The payment will be created soon. Refund transaction reference: %s (%s).",
			o.formatAmount(ctx, tx, true), tx.Reference, acq.Name)
	case tx.TokenID != nil:
		tokenName := "#" + fmt.Sprint(*tx.TokenID)
		if token, err := o.store.Tokens().GetByID(ctx, *tx.TokenID); err == nil {
			tokenName = token.Name
		}
		return fmt.Sprintf("A transaction with reference %s has been initiated using the payment method %s (%s).",
			tx.Reference, tokenName, acq.Name)
	default:
		return fmt.Sprintf("A transaction with reference %s has been initiated (%s).", tx.Reference, acq.Name)
	}
}

func (o *txOps) receivedMessage(ctx context.Context, acq *domain.Acquirer, tx *domain.Transaction) string {
	amount := o.formatAmount(ctx, tx, false)
	var msg string
	switch tx.State {
	case domain.TransactionStatePending:
		msg = fmt.Sprintf("The transaction with reference %s for %s is pending (%s).", tx.Reference, amount, acq.Name)
	case domain.TransactionStateAuthorized:
		msg = fmt.Sprintf("The transaction with reference %s for %s has been authorized (%s).", tx.Reference, amount, acq.Name)
	case domain.TransactionStateDone:
		msg = fmt.Sprintf("The transaction with reference %s for %s has been confirmed (%s).", tx.Reference, amount, acq.Name)
		if tx.PaymentID != nil {
			if payment, err := o.store.Accounting().GetPayment(ctx, *tx.PaymentID); err == nil {
				msg += fmt.Sprintf(" The related payment is posted: %s.", payment.Ref)
			}
		}
	default:
		msg = fmt.Sprintf("The transaction with reference %s for %s encountered an error (%s).", tx.Reference, amount, acq.Name)
		if tx.StateMessage != "" {
			msg += fmt.Sprintf(" Error: %s", tx.StateMessage)
		}
	}
	return msg
}

// LogSentMessage posts the "sent" message of tx on its linked documents
func (o *txOps) LogSentMessage(ctx context.Context, tx *domain.Transaction) error {
	acq, err := o.acquirer(ctx, tx.AcquirerID)
	if err != nil {
		return err
	}
	msg := o.sentMessage(ctx, acq, tx)
	o.s.logger.Info("payment request sent",
		ports.Reference(tx.Reference),
		ports.Provider(tx.Provider),
		ports.String("message", msg))
	return o.logOnLinkedDocuments(ctx, tx, msg)
}

func (o *txOps) logReceivedMessage(ctx context.Context, txs ...*domain.Transaction) error {
	for _, tx := range txs {
		if s, ok := o.strategy(tx.Provider).(adapterports.ReceivedMessageSuppressor); ok && s.SuppressReceivedMessage() {
			continue
		}
		acq, err := o.acquirer(ctx, tx.AcquirerID)
		if err != nil {
			return err
		}
		msg := o.receivedMessage(ctx, acq, tx)
		o.s.logger.Info("payment feedback received",
			ports.Reference(tx.Reference),
			ports.String("state", string(tx.State)),
			ports.String("message", msg))
		if err := o.logOnLinkedDocuments(ctx, tx, msg); err != nil {
			return err
		}
	}
	return nil
}

// logOnLinkedDocuments posts msg on the invoices paid by tx and, for refunds,
// on the payment and invoices of the source transaction.
func (o *txOps) logOnLinkedDocuments(ctx context.Context, tx *domain.Transaction, msg string) error {
	post := func(docType domain.DocumentType, docID int64) error {
		return o.store.Messages().Create(ctx, &domain.DocumentMessage{
			Body:          msg,
			DocumentType:  docType,
			DocumentID:    docID,
			TransactionID: tx.ID,
		})
	}

	if tx.SourceTransactionID != nil {
		source, err := o.store.Transactions().GetByID(ctx, *tx.SourceTransactionID)
		if err != nil {
			return fmt.Errorf("load source of %s: %w", tx.Reference, err)
		}
		if source.PaymentID != nil {
			if err := post(domain.DocumentTypePayment, *source.PaymentID); err != nil {
				return err
			}
			for _, invoiceID := range source.InvoiceIDs {
				if err := post(domain.DocumentTypeInvoice, invoiceID); err != nil {
					return err
				}
			}
		}
	}

	for _, invoiceID := range tx.InvoiceIDs {
		if err := post(domain.DocumentTypeInvoice, invoiceID); err != nil {
			return err
		}
	}
	return nil
}
