package fixtures

import "github.com/shopspring/decimal"

// DecimalPtr parses s and returns a pointer to it, for optional amounts such
// as a partial refund. It panics on malformed input.
func DecimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
