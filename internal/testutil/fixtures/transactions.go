// Package fixtures builds acquirers, transactions and invoices for tests.
package fixtures

import (
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/shopspring/decimal"
)

// EUR is the default test currency
var EUR = &domain.Currency{Code: "EUR", Symbol: "€", Decimals: 2}

// JPY has no minor unit
var JPY = &domain.Currency{Code: "JPY", Symbol: "¥", Decimals: 0}

// AcquirerOption customizes a test acquirer
type AcquirerOption func(*domain.Acquirer)

// NewAcquirer returns an enabled acquirer for provider with partial refunds
func NewAcquirer(provider string, opts ...AcquirerOption) *domain.Acquirer {
	acq := &domain.Acquirer{
		Name:               "Test " + provider,
		Provider:           provider,
		State:              domain.AcquirerStateTest,
		SupportRefund:      domain.RefundSupportPartial,
		CompanyCountry:     "BE",
		ValidationAmount:   decimal.NewFromInt(1),
		ValidationCurrency: "EUR",
		PendingMessage:     "Your payment is pending.",
		DoneMessage:        "Your payment has been processed.",
		CancelMessage:      "Your payment has been cancelled.",
		JournalID:          1,
		Settings:           map[string]string{},
	}
	for _, opt := range opts {
		opt(acq)
	}
	return acq
}

// WithAuthorization enables authorization and manual capture
func WithAuthorization() AcquirerOption {
	return func(a *domain.Acquirer) {
		a.SupportAuthorization = true
		a.CaptureManually = true
	}
}

// WithTokenization enables token creation
func WithTokenization() AcquirerOption {
	return func(a *domain.Acquirer) {
		a.SupportTokenization = true
		a.AllowTokenization = true
	}
}

// WithRefund sets the refund support level
func WithRefund(support domain.RefundSupport) AcquirerOption {
	return func(a *domain.Acquirer) {
		a.SupportRefund = support
	}
}

// WithSetting sets a provider specific setting
func WithSetting(key, value string) AcquirerOption {
	return func(a *domain.Acquirer) {
		a.Settings[key] = value
	}
}

// NewPartner returns a Belgian partner
func NewPartner(name string) *domain.Partner {
	return &domain.Partner{
		Name:     name,
		Email:    "billing@example.com",
		Street:   "Rue de la Loi 16",
		Zip:      "1000",
		City:     "Brussels",
		Country:  "BE",
		Language: "fr_BE",
	}
}

// NewTransaction returns a draft redirect transaction of 100.00 EUR
func NewTransaction(acq *domain.Acquirer, partner *domain.Partner, reference string) *domain.Transaction {
	return &domain.Transaction{
		Reference:    reference,
		Amount:       decimal.RequireFromString("100.00"),
		CurrencyCode: "EUR",
		AcquirerID:   acq.ID,
		Provider:     acq.Provider,
		Operation:    domain.OperationOnlineRedirect,
		State:        domain.TransactionStateDraft,
		PartnerID:    partner.ID,
		Partner:      partner.Snapshot(),
		LandingRoute: "/my/invoices",
	}
}
