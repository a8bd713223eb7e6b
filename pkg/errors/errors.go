package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of error for handling
type ErrorCategory string

const (
	CategoryDeclined       ErrorCategory = "declined"
	CategoryAuthentication ErrorCategory = "authentication"
	CategorySystemError    ErrorCategory = "system_error"
	CategoryNetworkError   ErrorCategory = "network_error"
	CategoryInvalidRequest ErrorCategory = "invalid_request"
)

// PaymentError is an acquirer API failure with enough context to decide on a retry
type PaymentError struct {
	Code           string
	Message        string
	GatewayMessage string
	IsRetriable    bool
	Category       ErrorCategory
	StatusCode     int
}

func (e *PaymentError) Error() string {
	if e.GatewayMessage != "" {
		return fmt.Sprintf("%s: %s (gateway: %s)", e.Code, e.Message, e.GatewayMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, category ErrorCategory, retriable bool) *PaymentError {
	return &PaymentError{
		Code:        code,
		Message:     message,
		Category:    category,
		IsRetriable: retriable,
	}
}

// FromHTTPStatus classifies a non-2xx acquirer response
func FromHTTPStatus(status int, gatewayMessage string) *PaymentError {
	var pe *PaymentError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe = NewPaymentError("AUTHENTICATION_FAILED", "acquirer rejected the credentials", CategoryAuthentication, false)
	case status == http.StatusUnprocessableEntity:
		pe = NewPaymentError("REQUEST_DECLINED", "acquirer declined the request", CategoryDeclined, false)
	case status == http.StatusTooManyRequests:
		pe = NewPaymentError("RATE_LIMITED", "acquirer rate limit reached", CategorySystemError, true)
	case status >= 500:
		pe = NewPaymentError("ACQUIRER_UNAVAILABLE", "acquirer server error", CategorySystemError, true)
	default:
		pe = NewPaymentError("INVALID_REQUEST", "acquirer rejected the request", CategoryInvalidRequest, false)
	}
	pe.StatusCode = status
	pe.GatewayMessage = gatewayMessage
	return pe
}

// NewNetworkError wraps a transport failure
func NewNetworkError(err error) *PaymentError {
	pe := NewPaymentError("NETWORK_ERROR", "could not reach the acquirer", CategoryNetworkError, true)
	pe.GatewayMessage = err.Error()
	return pe
}

// IsRetriable reports whether err carries a retriable PaymentError
func IsRetriable(err error) bool {
	var pe *PaymentError
	return stderrors.As(err, &pe) && pe.IsRetriable
}
