package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/handlers/httputil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// adminSecretHeader carries the back-office shared secret
const adminSecretHeader = "X-Admin-Secret"

// TransactionService is the subset of the payment service used by the back office
type TransactionService interface {
	SendCaptureRequest(ctx context.Context, txID int64) (*domain.Transaction, error)
	SendVoidRequest(ctx context.Context, txID int64) (*domain.Transaction, error)
	SendRefundRequest(ctx context.Context, txID int64, amount *decimal.Decimal, createRefundRecord bool) (*domain.Transaction, error)
}

// TransactionHandler serves the back-office transaction actions
type TransactionHandler struct {
	service TransactionService
	logger  *zap.Logger
	secret  string
}

// NewTransactionHandler creates a new admin transaction handler
func NewTransactionHandler(service TransactionService, logger *zap.Logger, secret string) *TransactionHandler {
	return &TransactionHandler{service: service, logger: logger, secret: secret}
}

// Register mounts the admin endpoints on mux
func (h *TransactionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/transactions/{id}/capture", h.authorized(h.Capture))
	mux.HandleFunc("POST /admin/transactions/{id}/void", h.authorized(h.Void))
	mux.HandleFunc("POST /admin/transactions/{id}/refund", h.authorized(h.Refund))
}

func (h *TransactionHandler) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !httputil.HasSecret(r, adminSecretHeader, h.secret) {
			h.logger.Warn("Unauthorized admin request",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			httputil.Message(w, h.logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// Capture handles POST /admin/transactions/{id}/capture
func (h *TransactionHandler) Capture(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "capture", h.service.SendCaptureRequest)
}

// Void handles POST /admin/transactions/{id}/void
func (h *TransactionHandler) Void(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "void", h.service.SendVoidRequest)
}

// RefundRequest is the optional refund payload.
// Without an amount the remaining refundable amount is refunded.
// CreateRefundRecord defaults to true; false sends the existing draft refund {id}.
type RefundRequest struct {
	Amount             *decimal.Decimal `json:"amount"`
	CreateRefundRecord *bool            `json:"create_refund_record"`
}

// Refund handles POST /admin/transactions/{id}/refund
func (h *TransactionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.Error(w, h.logger, err)
			return
		}
	}
	createRecord := req.CreateRefundRecord == nil || *req.CreateRefundRecord

	h.run(w, r, "refund", func(ctx context.Context, id int64) (*domain.Transaction, error) {
		return h.service.SendRefundRequest(ctx, id, req.Amount, createRecord)
	})
}

func (h *TransactionHandler) run(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, int64) (*domain.Transaction, error)) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.Error(w, h.logger, domain.ErrValidationFailed.WithDetail("id", r.PathValue("id")))
		return
	}

	tx, err := fn(r.Context(), id)
	if err != nil {
		h.logger.Warn("Admin transaction action failed",
			zap.String("action", action),
			zap.Int64("transaction_id", id),
			zap.Error(err),
		)
		httputil.Error(w, h.logger, err)
		return
	}

	h.logger.Info("Admin transaction action completed",
		zap.String("action", action),
		zap.Int64("transaction_id", id),
		zap.String("reference", tx.Reference),
		zap.String("state", string(tx.State)),
	)
	httputil.JSON(w, h.logger, http.StatusOK, tx)
}
