package payment

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator"
	adapterports "github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/internal/util"
	"github.com/shopspring/decimal"
)

// Flow is how the customer pays
type Flow string

const (
	FlowRedirect Flow = "redirect"
	FlowDirect   Flow = "direct"
	FlowToken    Flow = "token"
)

var flowOperations = map[Flow]domain.Operation{
	FlowRedirect: domain.OperationOnlineRedirect,
	FlowDirect:   domain.OperationOnlineDirect,
	FlowToken:    domain.OperationOnlineToken,
}

// TransactionRequest describes a transaction to create
type TransactionRequest struct {
	Amount               decimal.Decimal `json:"amount"`
	TokenID              *int64          `json:"token_id"`
	InvoiceIDs           []int64         `json:"invoice_ids" validate:"dive,gt=0"`
	CurrencyCode         string          `json:"currency" validate:"omitempty,len=3"`
	Flow                 Flow            `json:"flow" validate:"required"`
	ReferencePrefix      string          `json:"reference_prefix" validate:"max=64"`
	LandingRoute         string          `json:"landing_route" validate:"max=2048"`
	AcquirerID           int64           `json:"acquirer_id" validate:"omitempty,gt=0"`
	PartnerID            int64           `json:"partner_id" validate:"required,gt=0"`
	TokenizationRequired bool            `json:"tokenization_required"`
	TokenizationRequest  bool            `json:"tokenization_requested"`
	IsValidation         bool            `json:"is_validation"`
}

var validate = validator.New()

// CreateTransaction creates a transaction on behalf of an unauthenticated customer.
// The access token must have been generated for the partner, amount and currency of req.
// Callbacks cannot be requested through this path.
func (s *Service) CreateTransaction(ctx context.Context, req TransactionRequest, accessToken string) (*domain.Transaction, error) {
	secret, err := s.secrets.ServerSecret(ctx)
	if err != nil {
		return nil, err
	}
	if !util.CheckAccessToken(secret, accessToken, strconv.FormatInt(req.PartnerID, 10), req.Amount.String(), req.CurrencyCode) {
		s.logger.Warn("rejected transaction request with invalid access token",
			ports.Int64("partner_id", req.PartnerID))
		return nil, domain.ErrInvalidAccessToken
	}
	return s.create(ctx, req, nil)
}

// CreateTransactionTrusted creates a transaction for internal callers, optionally with a
// callback run once the outcome is known. No access token is required.
func (s *Service) CreateTransactionTrusted(ctx context.Context, req TransactionRequest, callback *domain.CallbackDescriptor) (*domain.Transaction, error) {
	return s.create(ctx, req, callback)
}

func (s *Service) create(ctx context.Context, req TransactionRequest, callback *domain.CallbackDescriptor) (*domain.Transaction, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("fields", err.Error())
	}
	operation, ok := flowOperations[req.Flow]
	if !ok {
		return nil, domain.ErrInvalidFlow.WithDetail("flow", string(req.Flow))
	}

	partner, err := s.store.Partners().GetByID(ctx, req.PartnerID)
	if err != nil {
		return nil, err
	}

	acquirerID := req.AcquirerID
	if req.Flow == FlowToken {
		if req.TokenID == nil {
			return nil, domain.ErrValidationMissingField.WithDetail("field", "token_id")
		}
		token, err := s.store.Tokens().GetByID(ctx, *req.TokenID)
		if err != nil {
			return nil, err
		}
		owner, err := s.store.Partners().GetByID(ctx, token.PartnerID)
		if err != nil {
			return nil, err
		}
		if !token.Active || owner.CommercialEntity() != partner.CommercialEntity() {
			s.logger.Warn("rejected payment with a token of another partner",
				ports.Int64("partner_id", partner.ID),
				ports.Int64("token_id", token.ID))
			return nil, domain.ErrAccessDenied.WithDetail("token_id", token.ID)
		}
		acquirerID = token.AcquirerID
	}
	if acquirerID == 0 {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "acquirer_id")
	}

	acq, err := s.store.Acquirers().GetByID(ctx, acquirerID)
	if err != nil {
		return nil, err
	}
	if acq.State == domain.AcquirerStateDisabled {
		return nil, domain.ErrAcquirerNotFound.WithDetail("acquirer_id", acq.ID)
	}
	if _, err := s.acquirers.Get(acq.Provider); err != nil {
		return nil, err
	}

	amount, currencyCode := req.Amount, req.CurrencyCode
	if req.IsValidation {
		operation = domain.OperationValidation
		amount = acq.ValidationAmount
		if acq.ValidationCurrency != "" {
			currencyCode = acq.ValidationCurrency
		}
	}
	if currencyCode == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "currency")
	}
	currency, err := s.store.Accounting().GetCurrency(ctx, currencyCode)
	if err != nil {
		if errors.Is(err, domain.ErrCurrencyNotFound) {
			return nil, domain.ErrValidationFailed.WithDetail("currency", currencyCode)
		}
		return nil, err
	}
	amount = currency.Round(amount)
	if amount.IsNegative() {
		return nil, domain.ErrValidationAmountInvalid.WithDetail("amount", amount.String())
	}

	var descriptor domain.CallbackDescriptor
	if callback != nil && callback.IsComplete() {
		secret, err := s.secrets.ServerSecret(ctx)
		if err != nil {
			return nil, err
		}
		descriptor = domain.CallbackDescriptor{
			Model:    callback.Model,
			RecordID: callback.RecordID,
			Method:   callback.Method,
			Hash:     util.GenerateCallbackHash(secret, callback.Model, callback.RecordID, callback.Method),
		}
	}

	tokenize := (req.TokenizationRequest || req.TokenizationRequired || req.IsValidation) && acq.CanTokenize()
	fees := currency.Round(acq.ComputeFees(amount, partner.Country))

	tx, err := s.ops(s.store).createWithReference(ctx, acq.Provider,
		ReferenceParams{Prefix: req.ReferencePrefix, InvoiceIDs: req.InvoiceIDs},
		func(reference string) *domain.Transaction {
			return &domain.Transaction{
				Reference:    reference,
				Amount:       amount,
				Fees:         fees,
				CurrencyCode: currency.Code,
				AcquirerID:   acq.ID,
				Provider:     acq.Provider,
				PartnerID:    partner.ID,
				Partner:      partner.Snapshot(),
				TokenID:      cloneID(req.TokenID),
				Operation:    operation,
				State:        domain.TransactionStateDraft,
				Tokenize:     tokenize,
				LandingRoute: req.LandingRoute,
				InvoiceIDs:   append([]int64(nil), req.InvoiceIDs...),
				Callback:     descriptor,
			}
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("created transaction",
		ports.Reference(tx.Reference),
		ports.Provider(tx.Provider),
		ports.String("operation", string(tx.Operation)),
		ports.Amount(tx.Amount))

	if req.Flow == FlowToken {
		return s.SendPaymentRequest(ctx, tx.ID)
	}
	if err := s.ops(s.store).LogSentMessage(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// GetProcessingValues returns the values the client needs to continue the payment of reference
func (s *Service) GetProcessingValues(ctx context.Context, reference string) (*domain.ProcessingValues, error) {
	tx, err := s.store.Transactions().GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	values := &domain.ProcessingValues{
		AcquirerID:   tx.AcquirerID,
		Provider:     tx.Provider,
		Reference:    tx.Reference,
		Amount:       tx.Amount,
		CurrencyCode: tx.CurrencyCode,
		PartnerID:    tx.PartnerID,
	}
	secret, err := s.secrets.ServerSecret(ctx)
	if err != nil {
		return nil, err
	}
	values.ReturnToken = returnToken(secret, tx)

	strategy, err := s.acquirers.Get(tx.Provider)
	if err != nil {
		return nil, err
	}
	if p, ok := strategy.(adapterports.ProcessingValuesProvider); ok {
		acq, err := s.store.Acquirers().GetByID(ctx, tx.AcquirerID)
		if err != nil {
			return nil, err
		}
		currency, err := s.store.Accounting().GetCurrency(ctx, tx.CurrencyCode)
		if err != nil {
			return nil, err
		}
		if err := p.SpecificProcessingValues(ctx, acq, tx, currency, values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// GetPostProcessingValues returns the status payload of reference
func (s *Service) GetPostProcessingValues(ctx context.Context, reference string) (*domain.PostProcessingValues, error) {
	tx, err := s.store.Transactions().GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	values := tx.PostProcessingValues()
	return &values, nil
}
