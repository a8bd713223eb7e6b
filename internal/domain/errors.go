package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Access Errors (AUTH_*)
	ErrorCodeAuthAccessDenied ErrorCode = "AUTH_ACCESS_DENIED"

	// Transaction Errors (TXN_*)
	ErrorCodeTxnNotFound                 ErrorCode = "TXN_NOT_FOUND"
	ErrorCodeTxnInvalidState             ErrorCode = "TXN_INVALID_STATE"
	ErrorCodeTxnAuthorizationUnsupported ErrorCode = "TXN_AUTHORIZATION_UNSUPPORTED"
	ErrorCodeTxnReferenceConflict        ErrorCode = "TXN_REFERENCE_CONFLICT"
	ErrorCodeTxnRefundAmountExceeded     ErrorCode = "TXN_REFUND_AMOUNT_EXCEEDED"

	// Acquirer Errors (ACQUIRER_*)
	ErrorCodeAcquirerNotFound ErrorCode = "ACQUIRER_NOT_FOUND"
	ErrorCodeAcquirerError    ErrorCode = "ACQUIRER_ERROR"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed             ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationInvalidAccessToken ErrorCode = "VALIDATION_INVALID_ACCESS_TOKEN"
	ErrorCodeValidationInvalidFlow        ErrorCode = "VALIDATION_INVALID_FLOW"
	ErrorCodeValidationMissingField       ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationAmountInvalid      ErrorCode = "VALIDATION_AMOUNT_INVALID"

	// Internal Errors (INTERNAL_*)
	ErrorCodeTransientConflict ErrorCode = "INTERNAL_TRANSIENT_CONFLICT"
	ErrorCodeDatabaseError     ErrorCode = "INTERNAL_DATABASE_ERROR"
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so sentinel values work with errors.Is
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithDetail returns a copy of the error with a detail field added.
// Sentinels are shared, so they are never mutated in place.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Err: e.Err, Details: details, Code: e.Code, Message: e.Message}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// NewDomainErrorf creates a new domain error with a formatted message
func NewDomainErrorf(code ErrorCode, format string, args ...interface{}) *DomainError {
	return NewDomainError(code, fmt.Sprintf(format, args...))
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeTxnNotFound ||
		code == ErrorCodeAcquirerNotFound
}

// IsAccessError checks if an error is an access failure
func IsAccessError(err error) bool {
	return GetErrorCode(err) == ErrorCodeAuthAccessDenied
}

// IsValidationError checks if an error is a user-correctable validation failure
func IsValidationError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeValidationFailed,
		ErrorCodeValidationInvalidAccessToken,
		ErrorCodeValidationInvalidFlow,
		ErrorCodeValidationMissingField,
		ErrorCodeValidationAmountInvalid,
		ErrorCodeTxnInvalidState,
		ErrorCodeTxnAuthorizationUnsupported,
		ErrorCodeTxnRefundAmountExceeded:
		return true
	}
	return false
}

// IsTransientError checks if an error is a write conflict that is worth retrying later
func IsTransientError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeTransientConflict ||
		code == ErrorCodeTxnReferenceConflict
}

// Structured error instances
var (
	ErrAccessDenied = NewDomainError(ErrorCodeAuthAccessDenied, "access denied")

	ErrTxnNotFound                 = NewDomainError(ErrorCodeTxnNotFound, "transaction not found")
	ErrTxnInvalidState             = NewDomainError(ErrorCodeTxnInvalidState, "transaction is in invalid state for this operation")
	ErrTxnAuthorizationUnsupported = NewDomainError(ErrorCodeTxnAuthorizationUnsupported, "transaction authorization is not supported by the acquirer")
	ErrTxnReferenceConflict        = NewDomainError(ErrorCodeTxnReferenceConflict, "transaction reference already exists")
	ErrTxnRefundAmountExceeded     = NewDomainError(ErrorCodeTxnRefundAmountExceeded, "refund amount exceeds the amount available for refund")

	ErrAcquirerNotFound = NewDomainError(ErrorCodeAcquirerNotFound, "acquirer not found")
	ErrAcquirerError    = NewDomainError(ErrorCodeAcquirerError, "acquirer request failed")

	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrInvalidAccessToken      = NewDomainError(ErrorCodeValidationInvalidAccessToken, "the access token is invalid")
	ErrInvalidFlow             = NewDomainError(ErrorCodeValidationInvalidFlow, "the payment should either be direct, with redirection, or made by a token")
	ErrValidationMissingField  = NewDomainError(ErrorCodeValidationMissingField, "required field missing")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")

	ErrTransientConflict = NewDomainError(ErrorCodeTransientConflict, "concurrent update conflict, retry later")
	ErrDatabaseError     = NewDomainError(ErrorCodeDatabaseError, "database error")
	ErrInternalError     = NewDomainError(ErrorCodeInternalError, "internal server error")
)

// Common non-coded errors
var (
	ErrPartnerNotFound  = errors.New("partner not found")
	ErrTokenNotFound    = errors.New("payment token not found")
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrCurrencyNotFound = errors.New("currency not found")
	ErrRecordNotFound   = errors.New("record not found")
)
