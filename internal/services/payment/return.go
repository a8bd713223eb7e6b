package payment

import (
	"context"

	adapterports "github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/internal/util"
)

// Fields the client adds to the provider payload when the customer comes back
const (
	ReturnFieldReference = "reference"
	ReturnFieldToken     = "return_token"
)

func returnToken(secret []byte, tx *domain.Transaction) string {
	return util.GenerateAccessToken(secret, "return", tx.Reference, tx.Provider)
}

// HandleReturnData processes the payload posted when the customer comes back from the
// acquirer. The post must carry the reference and the return token handed out with the
// processing values. Providers able to confirm the outcome server side are asked for it,
// and only their answer is processed.
func (s *Service) HandleReturnData(ctx context.Context, provider string, data domain.FeedbackData) (*domain.Transaction, error) {
	reference := data.String(ReturnFieldReference)
	if reference == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", ReturnFieldReference)
	}
	token := data.String(ReturnFieldToken)
	if token == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", ReturnFieldToken)
	}

	tx, err := s.store.Transactions().GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	secret, err := s.secrets.ServerSecret(ctx)
	if err != nil {
		return nil, err
	}
	if tx.Provider != provider || !util.CheckAccessToken(secret, token, "return", tx.Reference, tx.Provider) {
		s.logger.Warn("rejected return with an invalid token",
			ports.Provider(provider),
			ports.Reference(reference))
		return nil, domain.ErrInvalidAccessToken.WithDetail("reference", reference)
	}

	strategy, err := s.acquirers.Get(provider)
	if err != nil {
		return nil, err
	}
	payload := make(domain.FeedbackData, len(data))
	for k, v := range data {
		payload[k] = v
	}
	delete(payload, ReturnFieldToken)

	if verifier, ok := strategy.(adapterports.ReturnVerifier); ok {
		acq, err := s.store.Acquirers().GetByID(ctx, tx.AcquirerID)
		if err != nil {
			return nil, err
		}
		if payload, err = verifier.VerifyReturnData(ctx, acq, tx, payload); err != nil {
			s.logger.Warn("acquirer did not confirm the return",
				ports.Provider(provider),
				ports.Reference(reference),
				ports.Err(err))
			return nil, err
		}
	}

	return s.handleFeedback(ctx, provider, payload, tx.ID)
}
