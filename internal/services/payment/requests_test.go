package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/testutil/fixtures"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSendRefundRequest_CreatesLinkedRefund(t *testing.T) {
	env := newTestEnv(t)
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	before := env.reload(t, source.ID)
	env.strategy.On("SendRefundRequest", "R-S00001", "S00001").Return(nil)

	refund, err := env.svc.SendRefundRequest(context.Background(), source.ID, fixtures.DecimalPtr("30.00"), true)
	require.NoError(t, err)

	assert.Equal(t, domain.OperationRefund, refund.Operation)
	assert.Equal(t, "R-S00001", refund.Reference)
	require.NotNil(t, refund.SourceTransactionID)
	assert.Equal(t, source.ID, *refund.SourceTransactionID)
	assert.True(t, refund.Amount.Equal(decimal.RequireFromString("-30.00")))
	assert.Equal(t, domain.TransactionStateDraft, refund.State)
	assert.Equal(t, before, env.reload(t, source.ID))
	env.strategy.AssertExpectations(t)
}

func TestSendRefundRequest_SecondRefundGetsSequencedReference(t *testing.T) {
	env := newTestEnv(t)
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	env.strategy.On("SendRefundRequest", mock.Anything, "S00001").Return(nil)

	ctx := context.Background()
	first, err := env.svc.SendRefundRequest(ctx, source.ID, fixtures.DecimalPtr("10.00"), true)
	require.NoError(t, err)
	second, err := env.svc.SendRefundRequest(ctx, source.ID, fixtures.DecimalPtr("10.00"), true)
	require.NoError(t, err)

	assert.Equal(t, "R-S00001", first.Reference)
	assert.Equal(t, "R-S00001-1", second.Reference)
}

func TestSendRefundRequest_ExceedsAvailableAmount(t *testing.T) {
	env := newTestEnv(t)
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	env.strategy.On("SendRefundRequest", mock.Anything, "S00001").Return(nil)

	ctx := context.Background()
	_, err := env.svc.SendRefundRequest(ctx, source.ID, fixtures.DecimalPtr("80.00"), true)
	require.NoError(t, err)

	_, err = env.svc.SendRefundRequest(ctx, source.ID, fixtures.DecimalPtr("30.00"), true)
	assert.ErrorIs(t, err, domain.ErrTxnRefundAmountExceeded)
	assert.Len(t, env.store.AllTransactions(), 2)
}

func TestSendRefundRequest_FailedRefundsReleaseAmount(t *testing.T) {
	env := newTestEnv(t)
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	env.strategy.On("SendRefundRequest", mock.Anything, "S00001").Return(nil)

	ctx := context.Background()
	refund, err := env.svc.SendRefundRequest(ctx, source.ID, nil, true)
	require.NoError(t, err)
	assert.True(t, refund.Amount.Equal(decimal.RequireFromString("-100.00")))
	require.NoError(t, env.svc.ops(env.store).SetError(ctx, "declined", refund))

	_, err = env.svc.SendRefundRequest(ctx, source.ID, nil, true)
	assert.NoError(t, err)
}

func TestSendRefundRequest_FullOnlyRejectsPartialAmount(t *testing.T) {
	env := newTestEnv(t, fixtures.WithRefund(domain.RefundSupportFullOnly))
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)

	_, err := env.svc.SendRefundRequest(context.Background(), source.ID, fixtures.DecimalPtr("30.00"), true)
	assert.True(t, domain.IsValidationError(err))
	env.strategy.AssertNotCalled(t, "SendRefundRequest", mock.Anything, mock.Anything)
}

func TestSendRefundRequest_AcquirerWithoutRefunds(t *testing.T) {
	env := newTestEnv(t, fixtures.WithRefund(domain.RefundSupportNone))
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)

	_, err := env.svc.SendRefundRequest(context.Background(), source.ID, nil, true)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestSendRefundRequest_RequiresConfirmedPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending := env.addTransaction(t, "S00001", domain.TransactionStatePending)
	_, err := env.svc.SendRefundRequest(ctx, pending.ID, nil, true)
	assert.ErrorIs(t, err, domain.ErrTxnInvalidState)

	validation := fixtures.NewTransaction(env.acq, env.partner, "V00001")
	validation.Operation = domain.OperationValidation
	validation.State = domain.TransactionStateDone
	require.NoError(t, env.store.Transactions().Create(ctx, validation))
	_, err = env.svc.SendRefundRequest(ctx, validation.ID, nil, true)
	assert.ErrorIs(t, err, domain.ErrTxnInvalidState)
}

func TestSendRefundRequest_ExistingDraftRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)

	refund, err := env.svc.ops(env.store).CreateRefundTransaction(ctx, source, fixtures.DecimalPtr("40.00"))
	require.NoError(t, err)
	env.strategy.On("SendRefundRequest", refund.Reference, "S00001").Return(nil)

	sent, err := env.svc.SendRefundRequest(ctx, refund.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, refund.ID, sent.ID)
	assert.Len(t, env.store.AllTransactions(), 2)
	env.strategy.AssertExpectations(t)
}

func TestSendRefundRequest_PostsSentMessageOnSourcePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	payment, err := env.svc.CreatePayment(ctx, source)
	require.NoError(t, err)
	env.strategy.On("SendRefundRequest", "R-S00001", "S00001").Return(nil)

	_, err = env.svc.SendRefundRequest(ctx, source.ID, fixtures.DecimalPtr("30.00"), true)
	require.NoError(t, err)

	messages, err := env.store.Messages().ListByDocument(ctx, domain.DocumentTypePayment, payment.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t,
		"A refund request of 30.00 EUR has been sent. The payment will be created soon. Refund transaction reference: R-S00001 (Test scripted).",
		messages[0].Body)
}

func TestSendCaptureRequest_RequiresAuthorized(t *testing.T) {
	env := newTestEnv(t, fixtures.WithAuthorization())
	tx := env.addTransaction(t, "S00001", domain.TransactionStatePending)

	_, err := env.svc.SendCaptureRequest(context.Background(), tx.ID)
	assert.ErrorIs(t, err, domain.ErrTxnInvalidState)
	env.strategy.AssertNotCalled(t, "SendCaptureRequest", mock.Anything)
}

func TestSendCaptureRequest_Authorized(t *testing.T) {
	env := newTestEnv(t, fixtures.WithAuthorization())
	tx := env.addTransaction(t, "S00001", domain.TransactionStateAuthorized)
	env.strategy.On("SendCaptureRequest", "S00001").Return(nil)

	captured, err := env.svc.SendCaptureRequest(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStateDone, captured.State)
	assert.Equal(t, domain.TransactionStateDone, env.reload(t, tx.ID).State)
}

func TestSendVoidRequest_RequiresAuthorized(t *testing.T) {
	env := newTestEnv(t, fixtures.WithAuthorization())
	tx := env.addTransaction(t, "S00001", domain.TransactionStateDone)

	_, err := env.svc.SendVoidRequest(context.Background(), tx.ID)
	assert.ErrorIs(t, err, domain.ErrTxnInvalidState)
}

func TestSendVoidRequest_ProviderError(t *testing.T) {
	env := newTestEnv(t, fixtures.WithAuthorization())
	tx := env.addTransaction(t, "S00001", domain.TransactionStateAuthorized)
	env.strategy.On("SendVoidRequest", "S00001").Return(errors.New("provider unavailable"))

	_, err := env.svc.SendVoidRequest(context.Background(), tx.ID)
	assert.Error(t, err)
	assert.Equal(t, domain.TransactionStateAuthorized, env.reload(t, tx.ID).State)
}

func TestSendPaymentRequest_LogsSentMessageFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	invoice := env.store.AddInvoice(&domain.Invoice{Name: "INV/2024/0001", CurrencyCode: "EUR", State: domain.InvoiceStatePosted})
	tx := fixtures.NewTransaction(env.acq, env.partner, "S00001")
	tx.InvoiceIDs = []int64{invoice.ID}
	require.NoError(t, env.store.Transactions().Create(ctx, tx))
	env.strategy.On("SendPaymentRequest", "S00001").Return(nil)

	_, err := env.svc.SendPaymentRequest(ctx, tx.ID)
	require.NoError(t, err)

	messages, err := env.store.Messages().ListByDocument(ctx, domain.DocumentTypeInvoice, invoice.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "A transaction with reference S00001 has been initiated (Test scripted).", messages[0].Body)
}

func TestSendRefundRequest_ProviderFailureReleasesRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	env.strategy.On("SendRefundRequest", "R-S00001", "S00001").Return(errors.New("connection reset")).Once()
	env.strategy.On("SendRefundRequest", mock.Anything, "S00001").Return(nil)

	_, err := env.svc.SendRefundRequest(ctx, source.ID, nil, true)
	require.Error(t, err)

	failed, err := env.store.Transactions().GetByReference(ctx, "R-S00001")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStateError, failed.State)
	assert.True(t, env.logger.has("warn", "refund request failed, releasing its amount"))

	retried, err := env.svc.SendRefundRequest(ctx, source.ID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "R-S00001-1", retried.Reference)
	assert.True(t, retried.Amount.Equal(decimal.RequireFromString("-100.00")))
}

func TestSendRefundRequest_ExistingDraftStaysOnProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	refund, err := env.svc.ops(env.store).CreateRefundTransaction(ctx, source, fixtures.DecimalPtr("40.00"))
	require.NoError(t, err)
	env.strategy.On("SendRefundRequest", refund.Reference, "S00001").Return(errors.New("connection reset"))

	_, err = env.svc.SendRefundRequest(ctx, refund.ID, nil, false)
	require.Error(t, err)
	assert.Equal(t, domain.TransactionStateDraft, env.reload(t, refund.ID).State)
}

func TestSendCaptureRequest_FailedCommitKeepsAuthorization(t *testing.T) {
	env := newTestEnv(t, fixtures.WithAuthorization())
	ctx := context.Background()
	calls := registerOrderCallback(t, env, CallbackDone, nil)
	tx := fixtures.NewTransaction(env.acq, env.partner, "S00001")
	tx.State = domain.TransactionStateAuthorized
	withCallback(tx, orderModel, 7, "payment_confirmed")
	require.NoError(t, env.store.Transactions().Create(ctx, tx))
	env.strategy.On("SendCaptureRequest", "S00001").Return(nil)
	env.store.OnTransactionUpdate = func(tx *domain.Transaction) error {
		if tx.Callback.IsDone {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := env.svc.SendCaptureRequest(ctx, tx.ID)
	require.Error(t, err)

	assert.Equal(t, 1, *calls)
	stored := env.reload(t, tx.ID)
	assert.Equal(t, domain.TransactionStateAuthorized, stored.State)
	assert.False(t, stored.Callback.IsDone)
}

func TestSendCaptureRequest_CommitsStateAndCallbackTogether(t *testing.T) {
	env := newTestEnv(t, fixtures.WithAuthorization())
	ctx := context.Background()
	calls := registerOrderCallback(t, env, CallbackDone, nil)
	tx := fixtures.NewTransaction(env.acq, env.partner, "S00001")
	tx.State = domain.TransactionStateAuthorized
	withCallback(tx, orderModel, 7, "payment_confirmed")
	require.NoError(t, env.store.Transactions().Create(ctx, tx))
	env.strategy.On("SendCaptureRequest", "S00001").Return(nil)

	_, err := env.svc.SendCaptureRequest(ctx, tx.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
	stored := env.reload(t, tx.ID)
	assert.Equal(t, domain.TransactionStateDone, stored.State)
	assert.True(t, stored.Callback.IsDone)
}
