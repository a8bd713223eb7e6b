// Package fakeops provides an in-memory TransactionOps for acquirer strategy tests.
package fakeops

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/shopspring/decimal"
)

// Ops records the lifecycle calls made by a strategy.
// State setters apply the target state without transition rules.
type Ops struct {
	Transactions map[string]*domain.Transaction
	Tokens       map[int64]*domain.Token
	Currencies   map[string]*domain.Currency
	Triggered    int
	Callbacks    int
	nextID       int64
}

var _ ports.TransactionOps = (*Ops)(nil)

// New returns an empty Ops knowing EUR, JPY and KWD
func New() *Ops {
	return &Ops{
		Transactions: make(map[string]*domain.Transaction),
		Tokens:       make(map[int64]*domain.Token),
		Currencies: map[string]*domain.Currency{
			"EUR": {Code: "EUR", Decimals: 2},
			"JPY": {Code: "JPY", Decimals: 0},
			"KWD": {Code: "KWD", Decimals: 2},
		},
		nextID: 100,
	}
}

// Add stores tx with a fresh ID, defaulting to the draft state
func (o *Ops) Add(tx *domain.Transaction) *domain.Transaction {
	o.nextID++
	tx.ID = o.nextID
	if tx.State == "" {
		tx.State = domain.TransactionStateDraft
	}
	o.Transactions[tx.Reference] = tx
	return tx
}

// AddToken stores token with a fresh ID
func (o *Ops) AddToken(token *domain.Token) *domain.Token {
	o.nextID++
	token.ID = o.nextID
	o.Tokens[token.ID] = token
	return token
}

func set(state domain.TransactionState, message string, txs []*domain.Transaction) error {
	for _, tx := range txs {
		tx.State = state
		tx.StateMessage = message
	}
	return nil
}

func (o *Ops) SetPending(_ context.Context, msg string, txs ...*domain.Transaction) error {
	return set(domain.TransactionStatePending, msg, txs)
}

func (o *Ops) SetAuthorized(_ context.Context, msg string, txs ...*domain.Transaction) error {
	return set(domain.TransactionStateAuthorized, msg, txs)
}

func (o *Ops) SetDone(_ context.Context, msg string, txs ...*domain.Transaction) error {
	return set(domain.TransactionStateDone, msg, txs)
}

func (o *Ops) SetCanceled(_ context.Context, msg string, txs ...*domain.Transaction) error {
	return set(domain.TransactionStateCancel, msg, txs)
}

func (o *Ops) SetError(_ context.Context, msg string, txs ...*domain.Transaction) error {
	return set(domain.TransactionStateError, msg, txs)
}

func (o *Ops) FindByReference(_ context.Context, reference string) (*domain.Transaction, error) {
	if tx, ok := o.Transactions[reference]; ok {
		return tx, nil
	}
	return nil, domain.ErrTxnNotFound
}

func (o *Ops) FindByAcquirerReference(_ context.Context, provider, acquirerReference string) (*domain.Transaction, error) {
	for _, tx := range o.Transactions {
		if tx.Provider == provider && tx.AcquirerReference == acquirerReference {
			return tx, nil
		}
	}
	return nil, domain.ErrTxnNotFound
}

func (o *Ops) CreateRefundTransaction(_ context.Context, source *domain.Transaction, amount *decimal.Decimal) (*domain.Transaction, error) {
	refundAmount := source.Amount
	if amount != nil {
		refundAmount = *amount
	}
	sourceID := source.ID
	return o.Add(&domain.Transaction{
		Reference:           fmt.Sprintf("R-%s", source.Reference),
		Amount:              refundAmount.Neg(),
		CurrencyCode:        source.CurrencyCode,
		AcquirerID:          source.AcquirerID,
		PartnerID:           source.PartnerID,
		Provider:            source.Provider,
		Operation:           domain.OperationRefund,
		SourceTransactionID: &sourceID,
	}), nil
}

func (o *Ops) SaveToken(_ context.Context, tx *domain.Transaction, token *domain.Token) error {
	o.AddToken(token)
	tx.TokenID = &token.ID
	tx.Tokenize = false
	return nil
}

func (o *Ops) GetToken(_ context.Context, id int64) (*domain.Token, error) {
	if token, ok := o.Tokens[id]; ok {
		return token, nil
	}
	return nil, domain.ErrTokenNotFound
}

func (o *Ops) UpdateAcquirerReference(_ context.Context, tx *domain.Transaction, acquirerReference string) error {
	tx.AcquirerReference = acquirerReference
	return nil
}

func (o *Ops) GetCurrency(_ context.Context, code string) (*domain.Currency, error) {
	if c, ok := o.Currencies[code]; ok {
		return c, nil
	}
	return nil, domain.ErrCurrencyNotFound
}

func (o *Ops) ExecuteCallbacks(context.Context, ...*domain.Transaction) error {
	o.Callbacks++
	return nil
}

func (o *Ops) TriggerPostProcessing() {
	o.Triggered++
}
