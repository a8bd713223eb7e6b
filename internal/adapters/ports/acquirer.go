package ports

import (
	"context"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionOps is the set of lifecycle operations an acquirer strategy may call
// while handling a request or feedback. Implementations are bound to the caller's
// database session, so writes made through it share the caller's commit boundary.
type TransactionOps interface {
	SetPending(ctx context.Context, message string, txs ...*domain.Transaction) error
	SetAuthorized(ctx context.Context, message string, txs ...*domain.Transaction) error
	SetDone(ctx context.Context, message string, txs ...*domain.Transaction) error
	SetCanceled(ctx context.Context, message string, txs ...*domain.Transaction) error
	SetError(ctx context.Context, message string, txs ...*domain.Transaction) error

	// FindByReference returns the transaction or domain.ErrTxnNotFound
	FindByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	FindByAcquirerReference(ctx context.Context, provider, acquirerReference string) (*domain.Transaction, error)

	// CreateRefundTransaction creates a draft refund of source for amount, or the full amount when nil
	CreateRefundTransaction(ctx context.Context, source *domain.Transaction, amount *decimal.Decimal) (*domain.Transaction, error)

	// SaveToken stores token, links it to tx and clears tx.Tokenize
	SaveToken(ctx context.Context, tx *domain.Transaction, token *domain.Token) error
	GetToken(ctx context.Context, id int64) (*domain.Token, error)

	UpdateAcquirerReference(ctx context.Context, tx *domain.Transaction, acquirerReference string) error
	GetCurrency(ctx context.Context, code string) (*domain.Currency, error)

	ExecuteCallbacks(ctx context.Context, txs ...*domain.Transaction) error

	// TriggerPostProcessing asks the post-processing worker for an early sweep
	TriggerPostProcessing()
}

// AcquirerStrategy is implemented once per provider
type AcquirerStrategy interface {
	Provider() string

	// SendPaymentRequest is called after the "sent" message has been logged
	SendPaymentRequest(ctx context.Context, ops TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error

	// SendRefundRequest is called with the refund transaction already created
	SendRefundRequest(ctx context.Context, ops TransactionOps, acq *domain.Acquirer, refund, source *domain.Transaction) error

	SendCaptureRequest(ctx context.Context, ops TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error
	SendVoidRequest(ctx context.Context, ops TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error

	// GetTxFromFeedbackData never returns a nil transaction without an error
	GetTxFromFeedbackData(ctx context.Context, ops TransactionOps, data domain.FeedbackData) (*domain.Transaction, error)

	ProcessFeedbackData(ctx context.Context, ops TransactionOps, acq *domain.Acquirer, tx *domain.Transaction, data domain.FeedbackData) error
}

// ProcessingValuesProvider adds provider specific values to the processing values
type ProcessingValuesProvider interface {
	SpecificProcessingValues(ctx context.Context, acq *domain.Acquirer, tx *domain.Transaction, currency *domain.Currency, values *domain.ProcessingValues) error
}

// ReturnVerifier is implemented by providers that confirm a customer return with the
// acquirer. The returned data replaces what the client posted and is what gets processed.
// It is called outside any database transaction.
type ReturnVerifier interface {
	VerifyReturnData(ctx context.Context, acq *domain.Acquirer, tx *domain.Transaction, data domain.FeedbackData) (domain.FeedbackData, error)
}

// SentMessageFormatter overrides the "sent" message of a provider
type SentMessageFormatter interface {
	SentMessage(acq *domain.Acquirer, tx *domain.Transaction) string
}

// ReceivedMessageSuppressor is implemented by providers whose outcome is not reported on documents
type ReceivedMessageSuppressor interface {
	SuppressReceivedMessage() bool
}

// AcquirerRegistry resolves strategies by provider name
type AcquirerRegistry interface {
	Get(provider string) (AcquirerStrategy, error)
}
