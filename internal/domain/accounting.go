package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType is the direction of an accounting payment
type PaymentType string

const (
	PaymentTypeInbound  PaymentType = "inbound"
	PaymentTypeOutbound PaymentType = "outbound"
)

// PaymentState is the posting state of an accounting payment
type PaymentState string

const (
	PaymentStateDraft    PaymentState = "draft"
	PaymentStatePosted   PaymentState = "posted"
	PaymentStateCanceled PaymentState = "cancel"
)

// Payment is the accounting record created once a transaction is confirmed
type Payment struct {
	CreatedAt       time.Time       `json:"created_at"`
	Amount          decimal.Decimal `json:"amount"`
	TokenID         *int64          `json:"token_id"`
	SourcePaymentID *int64          `json:"source_payment_id"`
	CurrencyCode    string          `json:"currency"`
	Ref             string          `json:"ref"`
	PaymentType     PaymentType     `json:"payment_type"`
	State           PaymentState    `json:"state"`
	ID              int64           `json:"id"`
	PartnerID       int64           `json:"partner_id"`
	JournalID       int64           `json:"journal_id"`
	TransactionID   int64           `json:"transaction_id"`
}

// InvoiceState is the posting state of an invoice
type InvoiceState string

const (
	InvoiceStateDraft    InvoiceState = "draft"
	InvoiceStatePosted   InvoiceState = "posted"
	InvoiceStateCanceled InvoiceState = "cancel"
)

// Invoice is a billing document a transaction can pay
type Invoice struct {
	AmountTotal    decimal.Decimal `json:"amount_total"`
	AmountResidual decimal.Decimal `json:"amount_residual"`
	Name           string          `json:"name"`
	CurrencyCode   string          `json:"currency"`
	State          InvoiceState    `json:"state"`
	ID             int64           `json:"id"`
	PartnerID      int64           `json:"partner_id"`
}

// IsPaid returns true when nothing remains to be paid on a posted invoice
func (i *Invoice) IsPaid() bool {
	return i.State == InvoiceStatePosted && !i.AmountResidual.IsPositive()
}

// DocumentType names the kind of record a message is posted on
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "invoice"
	DocumentTypePayment DocumentType = "payment"
)

// DocumentMessage is an entry in a business document's history
type DocumentMessage struct {
	CreatedAt     time.Time    `json:"created_at"`
	Body          string       `json:"body"`
	DocumentType  DocumentType `json:"document_type"`
	ID            int64        `json:"id"`
	DocumentID    int64        `json:"document_id"`
	TransactionID int64        `json:"transaction_id"`
}
