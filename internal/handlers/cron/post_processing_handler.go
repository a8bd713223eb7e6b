package cron

import (
	"context"
	"net/http"
	"time"

	"github.com/kevin07696/payment-transactions/internal/handlers/httputil"
	"github.com/kevin07696/payment-transactions/internal/services/payment"
	"go.uber.org/zap"
)

// cronSecretHeader carries the shared secret of the scheduler
const cronSecretHeader = "X-Cron-Secret"

// Sweeper finalizes the confirmed transactions left to the server
type Sweeper interface {
	CronFinalizePostProcessing(ctx context.Context) (*payment.SweepResult, error)
}

// PostProcessingHandler exposes the post-processing sweep to an external scheduler
type PostProcessingHandler struct {
	sweeper    Sweeper
	logger     *zap.Logger
	cronSecret string
}

// NewPostProcessingHandler creates a new post-processing cron handler
func NewPostProcessingHandler(sweeper Sweeper, logger *zap.Logger, cronSecret string) *PostProcessingHandler {
	return &PostProcessingHandler{
		sweeper:    sweeper,
		logger:     logger,
		cronSecret: cronSecret,
	}
}

// Register mounts the cron endpoints on mux
func (h *PostProcessingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /cron/finalize-post-processing", h.FinalizePostProcessing)
}

// FinalizePostProcessingResponse reports one sweep
type FinalizePostProcessingResponse struct {
	payment.SweepResult
	Success     bool   `json:"success"`
	ProcessedAt string `json:"processed_at"`
}

// FinalizePostProcessing handles POST /cron/finalize-post-processing
func (h *PostProcessingHandler) FinalizePostProcessing(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Post-processing cron job triggered",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if !httputil.HasSecret(r, cronSecretHeader, h.cronSecret) {
		h.logger.Warn("Unauthorized cron request", zap.String("remote_addr", r.RemoteAddr))
		httputil.Message(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.sweeper.CronFinalizePostProcessing(r.Context())
	if err != nil {
		httputil.Error(w, h.logger, err)
		return
	}

	resp := FinalizePostProcessingResponse{
		SweepResult: *result,
		Success:     result.Failed == 0,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !resp.Success {
		// 206 indicates partial success
		status = http.StatusPartialContent
	}
	httputil.JSON(w, h.logger, status, resp)
}
