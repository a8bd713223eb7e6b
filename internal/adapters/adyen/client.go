package adyen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	pkgerrors "github.com/kevin07696/payment-transactions/pkg/errors"
	pkghttp "github.com/kevin07696/payment-transactions/pkg/http"
	"github.com/kevin07696/payment-transactions/pkg/observability"
	"github.com/kevin07696/payment-transactions/pkg/resilience"
	"go.uber.org/zap"
)

// ClientConfig contains configuration for the Adyen Checkout API client
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultClientConfig returns the test environment configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:    "https://checkout-test.adyen.com/v70",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// Credentials identify the merchant on a single request
type Credentials struct {
	BaseURL         string
	APIKey          string
	MerchantAccount string
}

// Client calls the Adyen Checkout API
type Client struct {
	cfg            ClientConfig
	httpClient     ports.HTTPClient
	circuitBreaker *resilience.CircuitBreaker
	backoff        resilience.BackoffStrategy
	logger         *zap.Logger
}

// NewClient creates a new Adyen client using the pooled acquirer transport
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	return NewClientWithHTTP(cfg, pkghttp.NewHTTPClient(pkghttp.AcquirerClientConfig(), cfg.Timeout), logger)
}

// NewClientWithHTTP creates a new Adyen client on top of httpClient
func NewClientWithHTTP(cfg ClientConfig, httpClient ports.HTTPClient, logger *zap.Logger) *Client {
	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.IsFailure = pkgerrors.IsRetriable
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		logger.Warn("adyen circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	return &Client{
		cfg:            cfg,
		httpClient:     httpClient,
		circuitBreaker: resilience.NewCircuitBreaker(breakerCfg),
		backoff:        resilience.DefaultExponentialBackoff(),
		logger:         logger,
	}
}

// Post sends payload to endpoint and returns the decoded response.
// metricEndpoint is the endpoint template used as metric label.
// The same idempotency key is sent on every retry of the call.
func (c *Client) Post(ctx context.Context, creds Credentials, endpoint, metricEndpoint string, payload map[string]interface{}) (domain.FeedbackData, error) {
	if creds.APIKey == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", SettingAPIKey)
	}
	payload["merchantAccount"] = creds.MerchantAccount
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode adyen request: %w", err)
	}

	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = c.cfg.BaseURL
	}
	url := strings.TrimRight(baseURL, "/") + endpoint
	idempotencyKey := uuid.NewString()

	var response domain.FeedbackData
	err = c.circuitBreaker.Call(func() error {
		var lastErr error
		for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
			if attempt > 0 {
				delay := c.backoff.NextDelay(attempt - 1)
				c.logger.Info("Retrying Adyen request with exponential backoff",
					zap.String("endpoint", metricEndpoint),
					zap.Int("attempt", attempt),
					zap.Duration("backoff_delay", delay),
				)
				select {
				case <-ctx.Done():
					return fmt.Errorf("retry cancelled: %w", ctx.Err())
				case <-time.After(delay):
				}
			}

			resp, err := c.do(ctx, url, creds.APIKey, idempotencyKey, metricEndpoint, body)
			if err == nil {
				response = resp
				return nil
			}
			lastErr = err
			if !pkgerrors.IsRetriable(err) {
				return err
			}
			c.logger.Warn("Retryable Adyen error occurred",
				zap.String("endpoint", metricEndpoint),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return fmt.Errorf("failed after %d retries: %w", c.cfg.MaxRetries, lastErr)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			c.logger.Warn("Circuit breaker is open, rejecting Adyen request",
				zap.String("circuit_state", c.circuitBreaker.State().String()),
			)
		}
		return nil, domain.WrapError(domain.ErrorCodeAcquirerError, "could not establish the connection to the adyen API", err)
	}
	return response, nil
}

func (c *Client) do(ctx context.Context, url, apiKey, idempotencyKey, metricEndpoint string, body []byte) (domain.FeedbackData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordAcquirerRequest(Provider, metricEndpoint, "network_error", time.Since(start).Seconds())
		return nil, pkgerrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordAcquirerRequest(Provider, metricEndpoint, "network_error", time.Since(start).Seconds())
		return nil, pkgerrors.NewNetworkError(err)
	}
	observability.RecordAcquirerRequest(Provider, metricEndpoint, fmt.Sprint(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Adyen request failed",
			zap.String("endpoint", metricEndpoint),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(raw)),
		)
		return nil, pkgerrors.FromHTTPStatus(resp.StatusCode, gatewayMessage(raw))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data domain.FeedbackData
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	c.logger.Debug("Received Adyen response",
		zap.String("endpoint", metricEndpoint),
		zap.Duration("elapsed", time.Since(start)),
	)
	return data, nil
}

func gatewayMessage(raw []byte) string {
	var body struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		return ""
	}
	if body.ErrorCode != "" {
		return body.ErrorCode + " " + body.Message
	}
	return body.Message
}
