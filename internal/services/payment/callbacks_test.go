package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/internal/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderModel = "sale.order"

// registerOrderCallback registers a callback counting its invocations.
// Records above 1000 do not exist.
func registerOrderCallback(t *testing.T, env *testEnv, outcome CallbackOutcome, err error) *int {
	t.Helper()
	calls := 0
	env.callbacks.RegisterModel(orderModel, func(ctx context.Context, store ports.Store, id int64) (bool, error) {
		return id <= 1000, nil
	})
	require.NoError(t, env.callbacks.Register(orderModel, "payment_confirmed", func(ctx context.Context, store ports.Store, id int64, tx *domain.Transaction) (CallbackOutcome, error) {
		calls++
		return outcome, err
	}))
	return &calls
}

func (e *testEnv) addTransactionWithCallback(t *testing.T, reference string, recordID int64) *domain.Transaction {
	t.Helper()
	tx := fixtures.NewTransaction(e.acq, e.partner, reference)
	withCallback(tx, orderModel, recordID, "payment_confirmed")
	require.NoError(t, e.store.Transactions().Create(context.Background(), tx))
	return tx
}

func TestHandleFeedbackData_CallbackRunsOnce(t *testing.T) {
	env := newTestEnv(t)
	calls := registerOrderCallback(t, env, CallbackDone, nil)
	tx := env.addTransactionWithCallback(t, "S00001", 7)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		result, err := env.svc.HandleFeedbackData(ctx, testProvider, feedback("S00001", domain.TransactionStateDone))
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStateDone, result.State)
	}

	assert.Equal(t, 1, *calls)
	assert.True(t, env.reload(t, tx.ID).Callback.IsDone)
}

func TestExecuteCallbacks_TamperedDescriptorIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	calls := registerOrderCallback(t, env, CallbackDone, nil)
	tx := env.addTransactionWithCallback(t, "S00001", 7)
	tx.Callback.RecordID = 8

	require.NoError(t, env.svc.ExecuteCallbacks(context.Background(), tx))

	assert.Equal(t, 0, *calls)
	assert.False(t, env.reload(t, tx.ID).Callback.IsDone)
	assert.True(t, env.logger.has("warn", "invalid callback signature for transaction"))
}

func TestExecuteCallbacks_MissingRecordIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	calls := registerOrderCallback(t, env, CallbackDone, nil)
	tx := env.addTransactionWithCallback(t, "S00001", 4242)

	require.NoError(t, env.svc.ExecuteCallbacks(context.Background(), tx))

	assert.Equal(t, 0, *calls)
	assert.False(t, env.reload(t, tx.ID).Callback.IsDone)
	assert.True(t, env.logger.has("warn", "invalid callback record for transaction"))
}

func TestExecuteCallbacks_IncompleteDescriptorIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	calls := registerOrderCallback(t, env, CallbackDone, nil)
	tx := env.addTransactionWithCallback(t, "S00001", 7)
	tx.Callback.Method = ""

	require.NoError(t, env.svc.ExecuteCallbacks(context.Background(), tx))
	assert.Equal(t, 0, *calls)
}

func TestExecuteCallbacks_RetryOutcomeLeavesCallbackPending(t *testing.T) {
	env := newTestEnv(t)
	calls := registerOrderCallback(t, env, CallbackRetry, nil)
	tx := env.addTransactionWithCallback(t, "S00001", 7)

	ctx := context.Background()
	require.NoError(t, env.svc.ExecuteCallbacks(ctx, tx))
	require.NoError(t, env.svc.ExecuteCallbacks(ctx, tx))

	assert.Equal(t, 2, *calls)
	assert.False(t, env.reload(t, tx.ID).Callback.IsDone)
}

func TestExecuteCallbacks_FailureIsIsolated(t *testing.T) {
	env := newTestEnv(t)
	registerOrderCallback(t, env, CallbackDone, errors.New("order locked"))
	failing := env.addTransactionWithCallback(t, "S00001", 7)

	invoice := env.store.AddInvoice(&domain.Invoice{Name: "INV/2024/0001", CurrencyCode: "EUR", State: domain.InvoiceStateDraft})
	other := fixtures.NewTransaction(env.acq, env.partner, "S00002")
	other.State = domain.TransactionStateDone
	withCallback(other, InvoiceModel, invoice.ID, InvoiceConfirmPaymentMethod)
	require.NoError(t, env.store.Transactions().Create(context.Background(), other))

	require.NoError(t, env.svc.ExecuteCallbacks(context.Background(), failing, other))

	assert.False(t, env.reload(t, failing.ID).Callback.IsDone)
	assert.True(t, env.reload(t, other.ID).Callback.IsDone)
	assert.True(t, env.logger.has("error", "callback failed"))
}

func TestInvoiceCallback_PostsInvoiceOnceConfirmed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	invoice := env.store.AddInvoice(&domain.Invoice{Name: "INV/2024/0001", CurrencyCode: "EUR", State: domain.InvoiceStateDraft})

	tx := fixtures.NewTransaction(env.acq, env.partner, "S00001")
	withCallback(tx, InvoiceModel, invoice.ID, InvoiceConfirmPaymentMethod)
	require.NoError(t, env.store.Transactions().Create(ctx, tx))

	_, err := env.svc.HandleFeedbackData(ctx, testProvider, feedback("S00001", domain.TransactionStatePending))
	require.NoError(t, err)
	stored, err := env.store.Accounting().GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStateDraft, stored.State)
	assert.False(t, env.reload(t, tx.ID).Callback.IsDone)

	_, err = env.svc.HandleFeedbackData(ctx, testProvider, feedback("S00001", domain.TransactionStateDone))
	require.NoError(t, err)
	stored, err = env.store.Accounting().GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatePosted, stored.State)
	assert.True(t, env.reload(t, tx.ID).Callback.IsDone)
}

func TestCallbackRegistry_RegisterUnknownModel(t *testing.T) {
	r := NewCallbackRegistry()
	err := r.Register("unknown", "method", func(context.Context, ports.Store, int64, *domain.Transaction) (CallbackOutcome, error) {
		return CallbackDone, nil
	})
	assert.Error(t, err)
}

func TestHandleFeedbackData_UnknownReference(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.HandleFeedbackData(context.Background(), testProvider, feedback("missing", domain.TransactionStateDone))
	assert.True(t, domain.IsValidationError(err))
}

func TestHandleFeedbackData_UnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.HandleFeedbackData(context.Background(), "stripe", feedback("S00001", domain.TransactionStateDone))
	assert.ErrorIs(t, err, domain.ErrAcquirerNotFound)
}
