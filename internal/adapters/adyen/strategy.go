package adyen

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/util"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Keyring resolves acquirer secrets and hands out the server secret
type Keyring interface {
	SecretResolver
	ServerSecret(ctx context.Context) ([]byte, error)
}

// Strategy implements ports.AcquirerStrategy for Adyen
type Strategy struct {
	client *Client
	keys   Keyring
	logger *zap.Logger
}

var (
	_ ports.AcquirerStrategy         = (*Strategy)(nil)
	_ ports.ProcessingValuesProvider = (*Strategy)(nil)
	_ ports.ReturnVerifier           = (*Strategy)(nil)
)

// NewStrategy creates the Adyen acquirer strategy
func NewStrategy(client *Client, keys Keyring, logger *zap.Logger) *Strategy {
	return &Strategy{client: client, keys: keys, logger: logger}
}

// Provider returns the provider code
func (s *Strategy) Provider() string {
	return Provider
}

func (s *Strategy) credentials(ctx context.Context, acq *domain.Acquirer) (Credentials, error) {
	apiKey, err := s.keys.Resolve(ctx, acq.Setting(SettingAPIKey))
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		BaseURL:         acq.Setting(SettingCheckoutURL),
		APIKey:          apiKey,
		MerchantAccount: acq.Setting(SettingMerchantAccount),
	}, nil
}

func amountPayload(amount decimal.Decimal, currency *domain.Currency) map[string]interface{} {
	return map[string]interface{}{
		"value":    ToMinorUnits(amount, currency),
		"currency": currency.Code,
	}
}

// SpecificProcessingValues adds the converted amount and the access token the
// client sends back when it submits the payment details.
func (s *Strategy) SpecificProcessingValues(ctx context.Context, acq *domain.Acquirer, tx *domain.Transaction, currency *domain.Currency, values *domain.ProcessingValues) error {
	secret, err := s.keys.ServerSecret(ctx)
	if err != nil {
		return err
	}
	converted := strconv.FormatInt(ToMinorUnits(tx.Amount, currency), 10)
	if values.Specific == nil {
		values.Specific = make(map[string]string)
	}
	values.Specific["converted_amount"] = converted
	values.Specific["access_token"] = util.GenerateAccessToken(secret, tx.Reference, converted, strconv.FormatInt(tx.PartnerID, 10))
	return nil
}

// SendPaymentRequest charges the token of a token flow transaction. Other flows are
// driven by the customer and have nothing to send.
func (s *Strategy) SendPaymentRequest(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	if tx.Operation != domain.OperationOnlineToken {
		return nil
	}
	if tx.TokenID == nil {
		return domain.ErrValidationMissingField.WithDetail("field", "token")
	}
	token, err := ops.GetToken(ctx, *tx.TokenID)
	if err != nil {
		return err
	}
	currency, err := ops.GetCurrency(ctx, tx.CurrencyCode)
	if err != nil {
		return err
	}
	creds, err := s.credentials(ctx, acq)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(ctx, creds, "/payments", "/payments", map[string]interface{}{
		"amount":    amountPayload(tx.Amount, currency),
		"reference": tx.Reference,
		"paymentMethod": map[string]interface{}{
			"recurringDetailReference": token.AcquirerRef,
		},
		"shopperReference":         token.ShopperRef,
		"recurringProcessingModel": "Subscription",
		"shopperInteraction":       "ContAuth",
	})
	if err != nil {
		return err
	}
	s.logger.Info("payment request response",
		zap.String("reference", tx.Reference),
		zap.String("result_code", resp.String("resultCode")))

	resp["merchantReference"] = tx.Reference
	return s.ProcessFeedbackData(ctx, ops, acq, tx, resp)
}

// SendRefundRequest asks Adyen to refund source. The outcome arrives by webhook.
func (s *Strategy) SendRefundRequest(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, refund, source *domain.Transaction) error {
	currency, err := ops.GetCurrency(ctx, refund.CurrencyCode)
	if err != nil {
		return err
	}
	creds, err := s.credentials(ctx, acq)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(ctx, creds,
		fmt.Sprintf("/payments/%s/refunds", source.AcquirerReference), "/payments/{psp}/refunds",
		map[string]interface{}{
			"amount":    amountPayload(refund.Amount.Neg(), currency),
			"reference": refund.Reference,
		})
	if err != nil {
		return err
	}
	s.logger.Info("refund request response",
		zap.String("reference", refund.Reference),
		zap.String("status", resp.String("status")))

	if resp.String("status") == "received" {
		return ops.UpdateAcquirerReference(ctx, refund, resp.String("pspReference"))
	}
	return nil
}

// SendCaptureRequest captures an authorized payment. The outcome arrives by webhook.
func (s *Strategy) SendCaptureRequest(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	currency, err := ops.GetCurrency(ctx, tx.CurrencyCode)
	if err != nil {
		return err
	}
	creds, err := s.credentials(ctx, acq)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(ctx, creds,
		fmt.Sprintf("/payments/%s/captures", tx.AcquirerReference), "/payments/{psp}/captures",
		map[string]interface{}{
			"amount":    amountPayload(tx.Amount, currency),
			"reference": tx.Reference,
		})
	if err != nil {
		return err
	}
	s.logger.Info("capture request response",
		zap.String("reference", tx.Reference),
		zap.String("status", resp.String("status")))
	return nil
}

// SendVoidRequest cancels an authorized payment. The outcome arrives by webhook.
func (s *Strategy) SendVoidRequest(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	creds, err := s.credentials(ctx, acq)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(ctx, creds,
		fmt.Sprintf("/payments/%s/cancels", tx.AcquirerReference), "/payments/{psp}/cancels",
		map[string]interface{}{
			"reference": tx.Reference,
		})
	if err != nil {
		return err
	}
	s.logger.Info("void request response",
		zap.String("reference", tx.Reference),
		zap.String("status", resp.String("status")))
	return nil
}

// VerifyReturnData submits the redirect details of a returning customer to Adyen and
// returns Adyen's answer. Nothing the client posted besides the details is kept.
func (s *Strategy) VerifyReturnData(ctx context.Context, acq *domain.Acquirer, tx *domain.Transaction, data domain.FeedbackData) (domain.FeedbackData, error) {
	details := data.Map("details")
	if len(details) == 0 && data.String("redirectResult") != "" {
		details = domain.FeedbackData{"redirectResult": data.String("redirectResult")}
	}
	if len(details) == 0 {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "details")
	}
	creds, err := s.credentials(ctx, acq)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{"details": map[string]interface{}(details)}
	if paymentData := data.String("paymentData"); paymentData != "" {
		payload["paymentData"] = paymentData
	}
	resp, err := s.client.Post(ctx, creds, "/payments/details", "/payments/details", payload)
	if err != nil {
		return nil, err
	}
	if resp.String("merchantReference") != tx.Reference {
		s.logger.Warn("payment details answer is for another transaction",
			zap.String("reference", tx.Reference),
			zap.String("merchant_reference", resp.String("merchantReference")))
		return nil, domain.ErrValidationFailed.
			WithDetail("reference", tx.Reference).
			WithDetail("merchant_reference", resp.String("merchantReference"))
	}

	verified := domain.FeedbackData{
		"merchantReference": tx.Reference,
		"pspReference":      resp.String("pspReference"),
		"resultCode":        resp.String("resultCode"),
	}
	if reason := resp.String("refusalReason"); reason != "" {
		verified["refusalReason"] = reason
	}
	if additional := resp.Map("additionalData"); len(additional) > 0 {
		verified["additionalData"] = additional
	}
	return verified, nil
}

// GetTxFromFeedbackData finds the transaction of a return or notification. A refund
// notification for a payment refunded from the Adyen side creates the refund
// transaction from the original PSP reference.
func (s *Strategy) GetTxFromFeedbackData(ctx context.Context, ops ports.TransactionOps, data domain.FeedbackData) (*domain.Transaction, error) {
	reference := data.String("merchantReference")
	if reference == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "merchantReference")
	}

	tx, err := ops.FindByReference(ctx, reference)
	if err != nil && !domain.IsNotFoundError(err) {
		return nil, err
	}
	if tx != nil && tx.Provider != Provider {
		tx = nil
	}

	if data.String("eventCode") == EventRefund && (tx == nil || !tx.IsRefund()) {
		return s.refundFromNotification(ctx, ops, data)
	}
	if tx == nil {
		return nil, domain.ErrTxnNotFound.WithDetail("reference", reference)
	}
	return tx, nil
}

// refundFromNotification returns the refund already recorded for the PSP reference of
// a redelivered notification, or creates it
func (s *Strategy) refundFromNotification(ctx context.Context, ops ports.TransactionOps, data domain.FeedbackData) (*domain.Transaction, error) {
	pspReference := data.String("pspReference")
	if pspReference == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "pspReference")
	}
	existing, err := ops.FindByAcquirerReference(ctx, Provider, pspReference)
	switch {
	case err == nil && existing.IsRefund():
		return existing, nil
	case err == nil:
		return nil, domain.ErrValidationFailed.WithDetail("psp_reference", pspReference)
	case !domain.IsNotFoundError(err):
		return nil, err
	}
	return s.createRefundFromNotification(ctx, ops, data)
}

func (s *Strategy) createRefundFromNotification(ctx context.Context, ops ports.TransactionOps, data domain.FeedbackData) (*domain.Transaction, error) {
	sourceReference := data.String("originalReference")
	source, err := ops.FindByAcquirerReference(ctx, Provider, sourceReference)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, domain.ErrTxnNotFound.WithDetail("original_reference", sourceReference)
		}
		return nil, err
	}
	currency, err := ops.GetCurrency(ctx, source.CurrencyCode)
	if err != nil {
		return nil, err
	}
	value, err := strconv.ParseInt(data.Map("amount").String("value"), 10, 64)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("field", "amount.value")
	}
	amount := FromMinorUnits(value, currency)

	refund, err := ops.CreateRefundTransaction(ctx, source, &amount)
	if err != nil {
		return nil, err
	}
	if err := ops.UpdateAcquirerReference(ctx, refund, data.String("pspReference")); err != nil {
		return nil, err
	}
	s.logger.Info("created refund transaction from adyen notification",
		zap.String("reference", refund.Reference),
		zap.String("source_reference", source.Reference))
	return refund, nil
}

// ProcessFeedbackData applies an Adyen result code to tx
func (s *Strategy) ProcessFeedbackData(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction, data domain.FeedbackData) error {
	event := data.String("eventCode")

	pspReference := data.String("pspReference")
	// capture and cancellation notifications carry their own PSP reference
	if (event == EventCapture || event == EventCancellation) && data.String("originalReference") != "" {
		pspReference = data.String("originalReference")
	}
	if pspReference != "" && pspReference != tx.AcquirerReference {
		if err := ops.UpdateAcquirerReference(ctx, tx, pspReference); err != nil {
			return err
		}
	}

	resultCode := data.String("resultCode")
	if resultCode == "" {
		return domain.ErrValidationMissingField.WithDetail("field", "resultCode")
	}
	reason := data.String("refusalReason")
	if reason == "" {
		reason = data.String("reason")
	}
	if reason == "" {
		reason = resultCode
	}

	switch resultCodes[resultCode] {
	case resultPending:
		return ops.SetPending(ctx, "", tx)

	case resultDone:
		additional := data.Map("additionalData")
		if tx.Tokenize && additional.Has("recurring.recurringDetailReference") {
			if err := s.tokenize(ctx, ops, acq, tx, additional); err != nil {
				return err
			}
		}
		if acq.CaptureManually && event != EventCapture && !tx.IsRefund() {
			return ops.SetAuthorized(ctx, "", tx)
		}
		if err := ops.SetDone(ctx, "", tx); err != nil {
			return err
		}
		if tx.IsRefund() {
			ops.TriggerPostProcessing()
		}
		return nil

	case resultCancel:
		return ops.SetCanceled(ctx, "", tx)

	case resultFailed:
		s.logger.Warn("transaction underwent an error",
			zap.String("reference", tx.Reference),
			zap.String("reason", reason))
		return ops.SetError(ctx, fmt.Sprintf("An error occurred during the processing of your payment (code %s). Please try again.", reason), tx)

	case resultRefused:
		s.logger.Warn("transaction was refused",
			zap.String("reference", tx.Reference),
			zap.String("reason", reason))
		return ops.SetError(ctx, fmt.Sprintf("Your payment was refused (code %s). Please try again.", reason), tx)

	default:
		s.logger.Warn("received data with invalid payment state",
			zap.String("reference", tx.Reference),
			zap.String("result_code", resultCode))
		return ops.SetError(ctx, fmt.Sprintf("Adyen: Received data with invalid payment state: %s", resultCode), tx)
	}
}

func (s *Strategy) tokenize(ctx context.Context, ops ports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction, additional domain.FeedbackData) error {
	token := &domain.Token{
		Name:        util.BuildTokenName(additional.String("cardSummary")),
		AcquirerRef: additional.String("recurring.recurringDetailReference"),
		ShopperRef:  additional.String("recurring.shopperReference"),
		AcquirerID:  acq.ID,
		PartnerID:   tx.PartnerID,
		Verified:    true,
		Active:      true,
	}
	if err := ops.SaveToken(ctx, tx, token); err != nil {
		return err
	}
	s.logger.Info("created token from feedback data",
		zap.String("token", token.Name),
		zap.String("reference", tx.Reference))
	return nil
}
