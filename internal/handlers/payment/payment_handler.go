package payment

import (
	"context"
	"net/http"
	"strings"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/handlers/httputil"
	paymentService "github.com/kevin07696/payment-transactions/internal/services/payment"
	"go.uber.org/zap"
)

// Service is the subset of the payment service used by the public endpoints
type Service interface {
	CreateTransaction(ctx context.Context, req paymentService.TransactionRequest, accessToken string) (*domain.Transaction, error)
	GetProcessingValues(ctx context.Context, reference string) (*domain.ProcessingValues, error)
	PollStatus(ctx context.Context, txIDs []int64) (*paymentService.PollResult, error)
	HandleReturnData(ctx context.Context, provider string, data domain.FeedbackData) (*domain.Transaction, error)
}

// Handler serves the customer-facing payment endpoints
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new payment handler
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the endpoints on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /payment/transaction", h.CreateTransaction)
	mux.HandleFunc("GET /payment/transaction/{reference}/processing-values", h.GetProcessingValues)
	mux.HandleFunc("POST /payment/status/poll", h.PollStatus)
	mux.HandleFunc("POST /payment/{provider}/return", h.HandleReturn)
}

// CreateTransactionRequest is the public create payload
type CreateTransactionRequest struct {
	paymentService.TransactionRequest
	AccessToken string `json:"access_token"`
}

// CreateTransactionResponse carries the created transaction and what the client needs to proceed
type CreateTransactionResponse struct {
	Transaction      *domain.Transaction      `json:"transaction"`
	ProcessingValues *domain.ProcessingValues `json:"processing_values,omitempty"`
}

// CreateTransaction handles POST /payment/transaction
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.Error(w, h.logger, err)
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), req.TransactionRequest, req.AccessToken)
	if err != nil {
		h.logger.Warn("Transaction creation rejected",
			zap.Int64("partner_id", req.PartnerID),
			zap.Error(err),
		)
		httputil.Error(w, h.logger, err)
		return
	}

	resp := CreateTransactionResponse{Transaction: tx}
	if tx.State == domain.TransactionStateDraft {
		values, err := h.service.GetProcessingValues(r.Context(), tx.Reference)
		if err != nil {
			httputil.Error(w, h.logger, err)
			return
		}
		resp.ProcessingValues = values
	}

	h.logger.Info("Transaction created",
		zap.String("reference", tx.Reference),
		zap.String("provider", tx.Provider),
		zap.String("state", string(tx.State)),
	)
	httputil.JSON(w, h.logger, http.StatusCreated, resp)
}

// GetProcessingValues handles GET /payment/transaction/{reference}/processing-values
func (h *Handler) GetProcessingValues(w http.ResponseWriter, r *http.Request) {
	values, err := h.service.GetProcessingValues(r.Context(), r.PathValue("reference"))
	if err != nil {
		httputil.Error(w, h.logger, err)
		return
	}
	httputil.JSON(w, h.logger, http.StatusOK, values)
}

// PollStatusRequest lists the transactions the client monitors
type PollStatusRequest struct {
	TransactionIDs []int64 `json:"transaction_ids"`
}

// PollStatus handles POST /payment/status/poll
func (h *Handler) PollStatus(w http.ResponseWriter, r *http.Request) {
	var req PollStatusRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.Error(w, h.logger, err)
		return
	}

	result, err := h.service.PollStatus(r.Context(), req.TransactionIDs)
	if err != nil {
		httputil.Error(w, h.logger, err)
		return
	}
	httputil.JSON(w, h.logger, http.StatusOK, result)
}

// HandleReturn handles POST /payment/{provider}/return, the customer coming back from the acquirer.
// The payload is JSON or a form post and must carry the reference and return token.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	data, err := h.readFeedback(w, r)
	if err != nil {
		httputil.Error(w, h.logger, err)
		return
	}

	tx, err := h.service.HandleReturnData(r.Context(), provider, data)
	if err != nil {
		h.logger.Warn("Return feedback rejected",
			zap.String("provider", provider),
			zap.Error(err),
		)
		httputil.Error(w, h.logger, err)
		return
	}
	httputil.JSON(w, h.logger, http.StatusOK, tx.PostProcessingValues())
}

func (h *Handler) readFeedback(w http.ResponseWriter, r *http.Request) (domain.FeedbackData, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		data := domain.FeedbackData{}
		if err := httputil.DecodeJSON(w, r, &data); err != nil {
			return nil, err
		}
		return data, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "malformed form", err)
	}
	data := make(domain.FeedbackData, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			data[key] = values[0]
		}
	}
	return data, nil
}
