package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// mapError converts driver errors into domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return domain.WrapError(domain.ErrorCodeTransientConflict, "concurrent update conflict, retry later", err)
		}
	}
	return domain.WrapError(domain.ErrorCodeDatabaseError, "database error", err)
}

// mapRowError maps pgx.ErrNoRows to notFound
func mapRowError(err, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return mapError(err)
}

// Unique indexes the repositories translate into domain errors
const (
	uniqTransactionReference         = "uniq_payment_transactions_reference"
	uniqTransactionAcquirerReference = "uniq_payment_transactions_acquirer_reference"
	uniqPaymentTransaction           = "uniq_payments_transaction"
)

// uniqueViolation returns the name of the violated unique index, or "" for any other error
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// nullInt64 converts an optional id to pgtype.Int8
func nullInt64(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

// int64Ptr converts pgtype.Int8 back to an optional id
func int64Ptr(n pgtype.Int8) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// decimalToNumeric converts decimal.Decimal to pgtype.Numeric
func decimalToNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return n, fmt.Errorf("convert decimal %s: %w", d, err)
	}
	return n, nil
}

// pgNumericToDecimal converts pgtype.Numeric to decimal.Decimal
func pgNumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	var dec decimal.Decimal
	if !n.Valid {
		return decimal.Zero, nil
	}
	str, err := n.MarshalJSON()
	if err != nil {
		return dec, fmt.Errorf("marshal numeric: %w", err)
	}
	// Remove quotes from JSON string
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return decimal.NewFromString(string(str))
}

type numericField struct {
	src pgtype.Numeric
	dst *decimal.Decimal
}

// assignNumerics converts scanned NUMERIC columns into their decimal fields
func assignNumerics(fields ...numericField) error {
	for _, f := range fields {
		d, err := pgNumericToDecimal(f.src)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}

// nullTime leaves zero times NULL so the column default applies
func nullTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
