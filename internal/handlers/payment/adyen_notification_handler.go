package payment

import (
	"context"
	"io"
	"net/http"

	"github.com/kevin07696/payment-transactions/internal/adapters/adyen"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/pkg/observability"
	"go.uber.org/zap"
)

const (
	maxNotificationBytes = 1 << 20
	acceptedBody         = "[accepted]"
)

// FeedbackHandler applies provider feedback to its transaction
type FeedbackHandler interface {
	HandleFeedbackData(ctx context.Context, provider string, data domain.FeedbackData) (*domain.Transaction, error)
}

// NotificationVerifier checks the HMAC signature of a notification item
type NotificationVerifier interface {
	Verify(ctx context.Context, item domain.FeedbackData) (bool, error)
}

// AdyenNotificationHandler receives Adyen standard webhooks
type AdyenNotificationHandler struct {
	feedback FeedbackHandler
	verifier NotificationVerifier
	logger   *zap.Logger
}

// NewAdyenNotificationHandler creates a new webhook handler
func NewAdyenNotificationHandler(feedback FeedbackHandler, verifier NotificationVerifier, logger *zap.Logger) *AdyenNotificationHandler {
	return &AdyenNotificationHandler{feedback: feedback, verifier: verifier, logger: logger}
}

// Register mounts the webhook endpoint on mux
func (h *AdyenNotificationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /payment/adyen/notification", h.HandleNotification)
}

// HandleNotification handles POST /payment/adyen/notification.
// Adyen retries any delivery not answered with [accepted], so every outcome is acknowledged
// and item failures are only logged.
func (h *AdyenNotificationHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	defer h.accept(w)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		h.logger.Error("Failed to read Adyen notification", zap.Error(err))
		observability.RecordWebhookNotification(adyen.Provider, "unreadable")
		return
	}

	items, err := adyen.ParseNotification(body)
	if err != nil {
		h.logger.Error("Failed to parse Adyen notification", zap.Error(err))
		observability.RecordWebhookNotification(adyen.Provider, "malformed")
		return
	}

	for _, item := range items {
		observability.RecordWebhookNotification(adyen.Provider, h.handleItem(r.Context(), item))
	}
}

func (h *AdyenNotificationHandler) handleItem(ctx context.Context, item domain.FeedbackData) string {
	logger := h.logger.With(
		zap.String("merchant_reference", item.String("merchantReference")),
		zap.String("event_code", item.String("eventCode")),
		zap.String("psp_reference", item.String("pspReference")),
	)

	valid, err := h.verifier.Verify(ctx, item)
	if err != nil {
		logger.Error("Could not verify Adyen notification signature", zap.Error(err))
		return "error"
	}
	if !valid {
		logger.Warn("Received Adyen notification with invalid signature")
		return "invalid_signature"
	}

	data, ok := adyen.Reshape(item)
	if !ok {
		logger.Debug("Ignoring Adyen notification without transaction change")
		return "ignored"
	}

	tx, err := h.feedback.HandleFeedbackData(ctx, adyen.Provider, data)
	if err != nil {
		logger.Error("Failed to handle Adyen notification", zap.Error(err))
		return "error"
	}

	logger.Info("Processed Adyen notification",
		zap.String("reference", tx.Reference),
		zap.String("state", string(tx.State)),
	)
	return "processed"
}

func (h *AdyenNotificationHandler) accept(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, acceptedBody); err != nil {
		h.logger.Error("Failed to acknowledge Adyen notification", zap.Error(err))
	}
}
