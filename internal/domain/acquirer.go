package domain

import (
	"github.com/shopspring/decimal"
)

// AcquirerState is the publication state of an acquirer
type AcquirerState string

const (
	AcquirerStateEnabled  AcquirerState = "enabled"
	AcquirerStateTest     AcquirerState = "test"
	AcquirerStateDisabled AcquirerState = "disabled"
)

// RefundSupport declares which refunds an acquirer accepts
type RefundSupport string

const (
	RefundSupportNone     RefundSupport = "none"
	RefundSupportFullOnly RefundSupport = "full_only"
	RefundSupportPartial  RefundSupport = "partial"
)

// AcquirerFees holds the fee schedule used when FeesActive is set.
// Variable rates are percentages.
type AcquirerFees struct {
	DomesticFixed         decimal.Decimal `json:"fees_dom_fixed"`
	DomesticVariable      decimal.Decimal `json:"fees_dom_var"`
	InternationalFixed    decimal.Decimal `json:"fees_int_fixed"`
	InternationalVariable decimal.Decimal `json:"fees_int_var"`
}

// Acquirer is a configured payment provider integration
type Acquirer struct {
	Fees                 AcquirerFees      `json:"fees"`
	ValidationAmount     decimal.Decimal   `json:"validation_amount"`
	Settings             map[string]string `json:"settings"`
	Name                 string            `json:"name"`
	Provider             string            `json:"provider"`
	CompanyCountry       string            `json:"company_country"`
	ValidationCurrency   string            `json:"validation_currency"`
	PendingMessage       string            `json:"pending_msg"`
	DoneMessage          string            `json:"done_msg"`
	CancelMessage        string            `json:"cancel_msg"`
	State                AcquirerState     `json:"state"`
	SupportRefund        RefundSupport     `json:"support_refund"`
	ID                   int64             `json:"id"`
	JournalID            int64             `json:"journal_id"`
	CaptureManually      bool              `json:"capture_manually"`
	SupportAuthorization bool              `json:"support_authorization"`
	SupportTokenization  bool              `json:"support_tokenization"`
	AllowTokenization    bool              `json:"allow_tokenization"`
	FeesActive           bool              `json:"fees_active"`
}

// Setting returns a provider-specific setting, or "" when unset
func (a *Acquirer) Setting(key string) string {
	if a.Settings == nil {
		return ""
	}
	return a.Settings[key]
}

// CanTokenize reports whether tokens may be created through this acquirer
func (a *Acquirer) CanTokenize() bool {
	return a.SupportTokenization && a.AllowTokenization
}

// SupportsRefund reports whether any refund can go through this acquirer
func (a *Acquirer) SupportsRefund() bool {
	return a.SupportRefund == RefundSupportFullOnly || a.SupportRefund == RefundSupportPartial
}

// ComputeFees returns the fees charged for amount, using domestic rates when the
// partner country matches the company country.
func (a *Acquirer) ComputeFees(amount decimal.Decimal, partnerCountry string) decimal.Decimal {
	if !a.FeesActive {
		return decimal.Zero
	}
	fixed, variable := a.Fees.InternationalFixed, a.Fees.InternationalVariable
	if partnerCountry != "" && partnerCountry == a.CompanyCountry {
		fixed, variable = a.Fees.DomesticFixed, a.Fees.DomesticVariable
	}
	hundred := decimal.NewFromInt(100)
	rate := variable.Div(hundred)
	denominator := decimal.NewFromInt(1).Sub(rate)
	if !denominator.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(rate).Add(fixed).Div(denominator)
}

// DisplayMessage returns the message shown to the customer for a given state
func (a *Acquirer) DisplayMessage(state TransactionState) string {
	switch state {
	case TransactionStatePending:
		return a.PendingMessage
	case TransactionStateDone:
		return a.DoneMessage
	case TransactionStateCancel:
		return a.CancelMessage
	}
	return ""
}

// Currency is an ISO currency with its accounting precision
type Currency struct {
	Code     string `json:"code"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// Round rounds amount to the currency precision
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.Decimals)
}

// Token is a stored, reusable reference to a customer's payment method
type Token struct {
	Name        string `json:"name"`
	AcquirerRef string `json:"acquirer_ref"`
	ShopperRef  string `json:"shopper_reference"`
	ID          int64  `json:"id"`
	AcquirerID  int64  `json:"acquirer_id"`
	PartnerID   int64  `json:"partner_id"`
	Verified    bool   `json:"verified"`
	Active      bool   `json:"active"`
}
