package ports

import (
	"context"
	"time"

	"github.com/kevin07696/payment-transactions/internal/domain"
)

// TransactionRepository defines the interface for transaction persistence
type TransactionRepository interface {
	// Create inserts a new transaction and sets its ID and CreatedAt.
	// Returns domain.ErrTxnReferenceConflict when the reference is already taken.
	Create(ctx context.Context, tx *domain.Transaction) error

	// Update persists every mutable field of the transaction.
	// Returns a transient conflict when the acquirer reference belongs to another transaction.
	Update(ctx context.Context, tx *domain.Transaction) error

	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)

	// GetByIDForUpdate reads the transaction and holds its row lock until the
	// surrounding database transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Transaction, error)

	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)

	// GetByAcquirerReference looks up a transaction by the provider's own reference
	GetByAcquirerReference(ctx context.Context, provider, acquirerReference string) (*domain.Transaction, error)

	ListByIDs(ctx context.Context, ids []int64) ([]*domain.Transaction, error)

	// ReferenceExists reports whether a transaction already uses reference
	ReferenceExists(ctx context.Context, reference string) (bool, error)

	// ListReferencesWithPrefix returns every reference starting with prefix, matched literally
	ListReferencesWithPrefix(ctx context.Context, prefix string) ([]string, error)

	// ListRefunds returns the refund transactions created from sourceID
	ListRefunds(ctx context.Context, sourceID int64) ([]*domain.Transaction, error)

	// ListPostProcessingCandidates returns done transactions that still need post-processing
	ListPostProcessingCandidates(ctx context.Context, filter PostProcessingFilter) ([]*domain.Transaction, error)
}

// PostProcessingFilter selects transactions for the post-processing sweep.
// A transaction qualifies when its last state change is before ClientHandledBefore
// (or it is a refund) and not before GiveUpBefore.
type PostProcessingFilter struct {
	ClientHandledBefore time.Time
	GiveUpBefore        time.Time
	Limit               int
}

// AcquirerRepository defines the interface for acquirer lookups
type AcquirerRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Acquirer, error)
	ListByProvider(ctx context.Context, provider string) ([]*domain.Acquirer, error)
}

// TokenRepository defines the interface for stored payment method persistence
type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	GetByID(ctx context.Context, id int64) (*domain.Token, error)
}

// PartnerRepository defines the interface for partner lookups
type PartnerRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Partner, error)
}

// AccountingRepository defines the interface for payments, invoices and currencies
type AccountingRepository interface {
	GetCurrency(ctx context.Context, code string) (*domain.Currency, error)

	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, ids []int64) ([]*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *domain.Invoice) error

	// CreatePayment returns a transient conflict when the transaction already has a payment
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	GetPayment(ctx context.Context, id int64) (*domain.Payment, error)
	UpdatePayment(ctx context.Context, payment *domain.Payment) error
}

// MessageRepository stores the history messages posted on business documents
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.DocumentMessage) error
	ListByDocument(ctx context.Context, docType domain.DocumentType, docID int64) ([]*domain.DocumentMessage, error)
}

// Store groups the repositories sharing one database session
type Store interface {
	Transactions() TransactionRepository
	Acquirers() AcquirerRepository
	Tokens() TokenRepository
	Partners() PartnerRepository
	Accounting() AccountingRepository
	Messages() MessageRepository

	// WithTx runs fn against a Store bound to a single database transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// ReferenceLocker serializes work on a single transaction reference
type ReferenceLocker interface {
	// Lock blocks until the lock for key is held or ctx is done
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
