package payment

import (
	"context"
	"strconv"
	"testing"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/testutil/fixtures"
	"github.com/kevin07696/payment-transactions/internal/util"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) redirectRequest(amount string) TransactionRequest {
	return TransactionRequest{
		Amount:       decimal.RequireFromString(amount),
		CurrencyCode: "EUR",
		Flow:         FlowRedirect,
		AcquirerID:   e.acq.ID,
		PartnerID:    e.partner.ID,
		LandingRoute: "/my/orders",
	}
}

func accessToken(req TransactionRequest) string {
	return util.GenerateAccessToken(testSecret, strconv.FormatInt(req.PartnerID, 10), req.Amount.String(), req.CurrencyCode)
}

func TestCreateTransaction_ValidAccessToken(t *testing.T) {
	env := newTestEnv(t)
	req := env.redirectRequest("42.5")
	req.ReferencePrefix = "SO042"

	tx, err := env.svc.CreateTransaction(context.Background(), req, accessToken(req))
	require.NoError(t, err)

	assert.Equal(t, "SO042", tx.Reference)
	assert.Equal(t, domain.TransactionStateDraft, tx.State)
	assert.Equal(t, domain.OperationOnlineRedirect, tx.Operation)
	assert.Equal(t, "42.50", tx.Amount.StringFixed(2))
	assert.Equal(t, "Azure Interior", tx.Partner.Name)
	assert.Equal(t, "/my/orders", tx.LandingRoute)
	assert.False(t, tx.Callback.IsComplete())
}

func TestCreateTransaction_InvalidAccessToken(t *testing.T) {
	env := newTestEnv(t)
	req := env.redirectRequest("42.50")
	token := accessToken(req)
	req.Amount = decimal.RequireFromString("1.00")

	_, err := env.svc.CreateTransaction(context.Background(), req, token)
	assert.ErrorIs(t, err, domain.ErrInvalidAccessToken)
	assert.Empty(t, env.store.AllTransactions())
}

func TestCreateTransaction_UnknownFlow(t *testing.T) {
	env := newTestEnv(t)
	req := env.redirectRequest("10.00")
	req.Flow = "magic"

	_, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidFlow)
}

func TestCreateTransaction_MissingPartner(t *testing.T) {
	env := newTestEnv(t)
	req := env.redirectRequest("10.00")
	req.PartnerID = 0

	_, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestCreateTransaction_NegativeAmount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateTransactionTrusted(context.Background(), env.redirectRequest("-5.00"), nil)
	assert.ErrorIs(t, err, domain.ErrValidationAmountInvalid)
}

func TestCreateTransaction_RoundsToCurrencyAndComputesFees(t *testing.T) {
	env := newTestEnv(t)
	acq := fixtures.NewAcquirer(testProvider)
	acq.FeesActive = true
	acq.Fees = domain.AcquirerFees{
		DomesticFixed:         decimal.RequireFromString("0.25"),
		DomesticVariable:      decimal.RequireFromString("1.4"),
		InternationalFixed:    decimal.RequireFromString("0.25"),
		InternationalVariable: decimal.RequireFromString("2.9"),
	}
	acq = env.store.AddAcquirer(acq)

	req := env.redirectRequest("100.004")
	req.AcquirerID = acq.ID
	tx, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	require.NoError(t, err)

	// (100 * 0.014 + 0.25) / 0.986
	assert.Equal(t, "100.00", tx.Amount.StringFixed(2))
	assert.Equal(t, "1.67", tx.Fees.StringFixed(2))
}

func TestCreateTransaction_Validation(t *testing.T) {
	env := newTestEnv(t, fixtures.WithTokenization())
	req := env.redirectRequest("500.00")
	req.IsValidation = true

	tx, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.OperationValidation, tx.Operation)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "EUR", tx.CurrencyCode)
	assert.True(t, tx.Tokenize)
}

func TestCreateTransaction_TokenizeRequiresAcquirerSupport(t *testing.T) {
	env := newTestEnv(t)
	req := env.redirectRequest("10.00")
	req.TokenizationRequest = true

	tx, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, tx.Tokenize)
}

func TestCreateTransaction_TokenFlowSendsPaymentRequest(t *testing.T) {
	env := newTestEnv(t, fixtures.WithTokenization())
	token := env.store.AddToken(&domain.Token{
		Name:        "•••• 1111",
		AcquirerRef: "8415",
		AcquirerID:  env.acq.ID,
		PartnerID:   env.partner.ID,
		Active:      true,
	})
	env.strategy.On("SendPaymentRequest", "S00042").Return(nil)

	req := env.redirectRequest("25.00")
	req.Flow = FlowToken
	req.AcquirerID = 0
	req.TokenID = &token.ID
	req.ReferencePrefix = "S00042"

	tx, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.OperationOnlineToken, tx.Operation)
	assert.Equal(t, env.acq.ID, tx.AcquirerID)
	env.strategy.AssertExpectations(t)
}

func TestCreateTransaction_TokenOfAnotherCommercialEntity(t *testing.T) {
	env := newTestEnv(t, fixtures.WithTokenization())
	stranger := env.store.AddPartner(fixtures.NewPartner("Deco Addict"))
	token := env.store.AddToken(&domain.Token{
		Name:       "•••• 1111",
		AcquirerID: env.acq.ID,
		PartnerID:  stranger.ID,
		Active:     true,
	})

	req := env.redirectRequest("25.00")
	req.Flow = FlowToken
	req.TokenID = &token.ID

	_, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.True(t, domain.IsAccessError(err))
}

func TestCreateTransaction_TokenOfSameCompany(t *testing.T) {
	env := newTestEnv(t, fixtures.WithTokenization())
	employee := fixtures.NewPartner("Azure Interior, Brandon Freeman")
	employee.CommercialPartnerID = env.partner.ID
	employee = env.store.AddPartner(employee)
	token := env.store.AddToken(&domain.Token{
		Name:       "•••• 1111",
		AcquirerID: env.acq.ID,
		PartnerID:  env.partner.ID,
		Active:     true,
	})
	env.strategy.On("SendPaymentRequest", "S00042").Return(nil)

	req := env.redirectRequest("25.00")
	req.Flow = FlowToken
	req.PartnerID = employee.ID
	req.TokenID = &token.ID
	req.ReferencePrefix = "S00042"

	_, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	assert.NoError(t, err)
}

func TestCreateTransactionTrusted_SignsCallback(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.store.AddInvoice(&domain.Invoice{Name: "INV/2024/0001", CurrencyCode: "EUR", State: domain.InvoiceStateDraft})

	req := env.redirectRequest("100.00")
	req.InvoiceIDs = []int64{invoice.ID}
	tx, err := env.svc.CreateTransactionTrusted(context.Background(), req, &domain.CallbackDescriptor{
		Model:    InvoiceModel,
		RecordID: invoice.ID,
		Method:   InvoiceConfirmPaymentMethod,
		Hash:     "ignored",
		IsDone:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "INV/2024/0001", tx.Reference)
	assert.Equal(t, generateCallbackHash(InvoiceModel, invoice.ID, InvoiceConfirmPaymentMethod), tx.Callback.Hash)
	assert.False(t, tx.Callback.IsDone)

	messages, err := env.store.Messages().ListByDocument(context.Background(), domain.DocumentTypeInvoice, invoice.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "A transaction with reference INV/2024/0001 has been initiated (Test scripted).", messages[0].Body)
}

func TestCreateTransaction_DisabledAcquirer(t *testing.T) {
	env := newTestEnv(t)
	acq := fixtures.NewAcquirer(testProvider)
	acq.State = domain.AcquirerStateDisabled
	acq = env.store.AddAcquirer(acq)

	req := env.redirectRequest("10.00")
	req.AcquirerID = acq.ID
	_, err := env.svc.CreateTransactionTrusted(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrAcquirerNotFound)
}

func TestGetProcessingValues(t *testing.T) {
	env := newTestEnv(t)
	tx := env.addTransaction(t, "S00001", domain.TransactionStateDraft)

	values, err := env.svc.GetProcessingValues(context.Background(), "S00001")
	require.NoError(t, err)
	assert.Equal(t, tx.AcquirerID, values.AcquirerID)
	assert.Equal(t, testProvider, values.Provider)
	assert.Equal(t, "S00001", values.Reference)
	assert.Equal(t, env.partner.ID, values.PartnerID)
	assert.Equal(t, returnToken(testSecret, tx), values.ReturnToken)

	_, err = env.svc.GetProcessingValues(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTxnNotFound)
}

func TestGetPostProcessingValues(t *testing.T) {
	env := newTestEnv(t)
	env.addTransaction(t, "S00001", domain.TransactionStateDone)

	values, err := env.svc.GetPostProcessingValues(context.Background(), "S00001")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStateDone, values.State)
	assert.Equal(t, "/my/invoices", values.LandingRoute)
	assert.False(t, values.IsPostProcessed)
}
