package httputil

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies read by the handlers
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code,omitempty"`
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	switch {
	case domain.IsAccessError(err), errors.Is(err, domain.ErrInvalidAccessToken):
		return http.StatusForbidden
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsNotFoundError(err),
		errors.Is(err, domain.ErrPartnerNotFound),
		errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrInvoiceNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrCurrencyNotFound),
		errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case domain.IsTransientError(err):
		return http.StatusConflict
	case domain.GetErrorCode(err) == domain.ErrorCodeAcquirerError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// JSON writes v with status
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Error writes err with the status StatusFor picks. Internal failures hide their message.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = string(domainErr.Code)
		resp.Error = domainErr.Message
		resp.Details = domainErr.Details
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		resp = ErrorResponse{Code: string(domain.ErrorCodeInternalError), Error: domain.ErrInternalError.Message}
	}
	JSON(w, logger, status, resp)
}

// Message writes a plain error message with status
func Message(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	JSON(w, logger, status, ErrorResponse{Error: message})
}

// DecodeJSON decodes the request body into v
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return domain.WrapError(domain.ErrorCodeValidationFailed, "malformed request body", err)
	}
	return nil
}

// HasSecret reports whether r carries secret in X-Cron-Secret, X-Admin-Secret or a bearer token.
// An empty secret never matches.
func HasSecret(r *http.Request, header, secret string) bool {
	if secret == "" {
		return false
	}
	candidate := r.Header.Get(header)
	if candidate == "" {
		candidate = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}
