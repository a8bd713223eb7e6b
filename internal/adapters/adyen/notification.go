package adyen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"go.uber.org/zap"
)

type notificationRequest struct {
	Live              string `json:"live"`
	NotificationItems []struct {
		Item domain.FeedbackData `json:"NotificationRequestItem"`
	} `json:"notificationItems"`
}

// ParseNotification extracts the notification items of a webhook body.
// Numbers are kept as json.Number so amounts are signed exactly as received.
func ParseNotification(body []byte) ([]domain.FeedbackData, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var req notificationRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode adyen notification: %w", err)
	}
	items := make([]domain.FeedbackData, 0, len(req.NotificationItems))
	for _, n := range req.NotificationItems {
		if n.Item != nil {
			items = append(items, n.Item)
		}
	}
	return items, nil
}

// Reshape turns a notification item into feedback data carrying a resultCode.
// It returns false for events that do not change a transaction.
func Reshape(item domain.FeedbackData) (domain.FeedbackData, bool) {
	success := item.String("success") == "true"

	var resultCode string
	switch item.String("eventCode") {
	case EventAuthorisation:
		if !success {
			return nil, false
		}
		resultCode = resultAuthorised
	case EventCancellation:
		if !success {
			return nil, false
		}
		resultCode = resultCancelled
	case EventRefund, EventCapture:
		resultCode = resultError
		if success {
			resultCode = resultAuthorised
		}
	default:
		return nil, false
	}

	data := make(domain.FeedbackData, len(item)+1)
	for k, v := range item {
		data[k] = v
	}
	data["resultCode"] = resultCode
	return data, true
}

// AcquirerLister lists the acquirers configured for a provider
type AcquirerLister interface {
	ListByProvider(ctx context.Context, provider string) ([]*domain.Acquirer, error)
}

// SecretResolver resolves secret:// references in acquirer settings
type SecretResolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

// Verifier authenticates webhook items against the HMAC keys of the Adyen acquirers.
// Items are checked before any transaction is looked up or created.
type Verifier struct {
	acquirers AcquirerLister
	secrets   SecretResolver
	logger    *zap.Logger
}

// NewVerifier creates a new notification verifier
func NewVerifier(acquirers AcquirerLister, secrets SecretResolver, logger *zap.Logger) *Verifier {
	return &Verifier{acquirers: acquirers, secrets: secrets, logger: logger}
}

// Verify reports whether item is signed by the acquirer owning its merchant account
func (v *Verifier) Verify(ctx context.Context, item domain.FeedbackData) (bool, error) {
	acquirers, err := v.acquirers.ListByProvider(ctx, Provider)
	if err != nil {
		return false, fmt.Errorf("list adyen acquirers: %w", err)
	}

	merchantAccount := item.String("merchantAccountCode")
	for _, acq := range acquirers {
		if acq.State == domain.AcquirerStateDisabled {
			continue
		}
		if account := acq.Setting(SettingMerchantAccount); account != "" && account != merchantAccount {
			continue
		}
		key, err := v.secrets.Resolve(ctx, acq.Setting(SettingHMACKey))
		if err != nil {
			v.logger.Warn("could not resolve adyen hmac key",
				zap.Int64("acquirer_id", acq.ID),
				zap.Error(err))
			continue
		}
		if VerifySignature(key, item) {
			return true, nil
		}
	}

	v.logger.Warn("received notification with invalid signature",
		zap.String("merchant_reference", item.String("merchantReference")),
		zap.String("psp_reference", item.String("pspReference")),
		zap.String("event_code", item.String("eventCode")))
	return false, nil
}
