package adyen

import (
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/shopspring/decimal"
)

// Decimals returns the number of decimals Adyen expects for currency
func Decimals(currency *domain.Currency) int32 {
	if d, ok := currencyDecimals[currency.Code]; ok {
		return d
	}
	return currency.Decimals
}

// ToMinorUnits converts amount to the integer amount sent to Adyen
func ToMinorUnits(amount decimal.Decimal, currency *domain.Currency) int64 {
	d := Decimals(currency)
	return amount.Round(d).Shift(d).IntPart()
}

// FromMinorUnits converts an Adyen integer amount back to a decimal amount
func FromMinorUnits(value int64, currency *domain.Currency) decimal.Decimal {
	return decimal.New(value, -Decimals(currency))
}
