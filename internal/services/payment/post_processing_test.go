package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kevin07696/payment-transactions/internal/adapters/acquirer"
	"github.com/kevin07696/payment-transactions/internal/adapters/locking"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/internal/testutil/fixtures"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizePostProcessing_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tx := env.addTransaction(t, "S00001", domain.TransactionStateDone)

	require.NoError(t, env.svc.FinalizePostProcessing(ctx, tx))
	first := env.reload(t, tx.ID)
	assert.True(t, first.IsPostProcessed)
	require.NotNil(t, first.PaymentID)

	require.NoError(t, env.svc.FinalizePostProcessing(ctx, tx))
	second := env.reload(t, tx.ID)

	payments := env.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, *first.PaymentID, *second.PaymentID)
	assert.True(t, second.IsPostProcessed)
}

func TestFinalizePostProcessing_PostsAndReconcilesInvoices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.store.AddInvoice(&domain.Invoice{
		Name: "INV/2024/0001", CurrencyCode: "EUR", State: domain.InvoiceStateDraft,
		AmountTotal: decimal.NewFromInt(60), AmountResidual: decimal.NewFromInt(60),
	})
	b := env.store.AddInvoice(&domain.Invoice{
		Name: "INV/2024/0002", CurrencyCode: "EUR", State: domain.InvoiceStatePosted,
		AmountTotal: decimal.NewFromInt(70), AmountResidual: decimal.NewFromInt(70),
	})
	tx := fixtures.NewTransaction(env.acq, env.partner, "S00001")
	tx.State = domain.TransactionStateDone
	tx.InvoiceIDs = []int64{a.ID, b.ID}
	require.NoError(t, env.store.Transactions().Create(ctx, tx))

	require.NoError(t, env.svc.FinalizePostProcessing(ctx, tx))

	invA, err := env.store.Accounting().GetInvoice(ctx, a.ID)
	require.NoError(t, err)
	invB, err := env.store.Accounting().GetInvoice(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatePosted, invA.State)
	assert.True(t, invA.IsPaid())
	assert.True(t, invB.AmountResidual.Equal(decimal.NewFromInt(30)))

	payment := env.store.Payments()[0]
	messages, err := env.store.Messages().ListByDocument(ctx, domain.DocumentTypeInvoice, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[len(messages)-1].Body, "The related payment is posted: "+payment.Ref+".")
}

func TestFinalizePostProcessing_ValidationCreatesNoPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tx := fixtures.NewTransaction(env.acq, env.partner, "V00001")
	tx.Operation = domain.OperationValidation
	tx.State = domain.TransactionStateDone
	require.NoError(t, env.store.Transactions().Create(ctx, tx))

	require.NoError(t, env.svc.FinalizePostProcessing(ctx, tx))

	assert.Empty(t, env.store.Payments())
	assert.True(t, env.reload(t, tx.ID).IsPostProcessed)
}

func TestFinalizePostProcessing_SkipsUnconfirmed(t *testing.T) {
	env := newTestEnv(t)
	tx := env.addTransaction(t, "S00001", domain.TransactionStatePending)

	require.NoError(t, env.svc.FinalizePostProcessing(context.Background(), tx))

	assert.Empty(t, env.store.Payments())
	assert.False(t, env.reload(t, tx.ID).IsPostProcessed)
}

func TestCreatePayment_Directions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	source.AcquirerReference = "PSP-1"

	inbound, err := env.svc.CreatePayment(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentTypeInbound, inbound.PaymentType)
	assert.True(t, inbound.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.PaymentStatePosted, inbound.State)
	assert.Equal(t, "S00001 - Azure Interior - PSP-1", inbound.Ref)
	assert.Equal(t, env.acq.JournalID, inbound.JournalID)

	refund, err := env.svc.ops(env.store).CreateRefundTransaction(ctx, env.reload(t, source.ID), fixtures.DecimalPtr("25.00"))
	require.NoError(t, err)

	outbound, err := env.svc.CreatePayment(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentTypeOutbound, outbound.PaymentType)
	assert.True(t, outbound.Amount.Equal(decimal.NewFromInt(25)))
	require.NotNil(t, outbound.SourcePaymentID)
	assert.Equal(t, inbound.ID, *outbound.SourcePaymentID)
	require.NotNil(t, env.reload(t, refund.ID).PaymentID)
}

func (e *testEnv) addDoneTransactionAt(t *testing.T, reference string, age time.Duration, operation domain.Operation) *domain.Transaction {
	t.Helper()
	tx := fixtures.NewTransaction(e.acq, e.partner, reference)
	tx.State = domain.TransactionStateDone
	tx.Operation = operation
	tx.LastStateChange = e.now.Add(-age)
	if operation == domain.OperationRefund {
		tx.Amount = tx.Amount.Neg()
	}
	require.NoError(t, e.store.Transactions().Create(context.Background(), tx))
	return tx
}

func TestCronFinalizePostProcessing_Selection(t *testing.T) {
	env := newTestEnv(t)
	recent := env.addDoneTransactionAt(t, "recent", 5*time.Minute, domain.OperationOnlineRedirect)
	due := env.addDoneTransactionAt(t, "due", 15*time.Minute, domain.OperationOnlineRedirect)
	refund := env.addDoneTransactionAt(t, "refund", time.Minute, domain.OperationRefund)
	abandoned := env.addDoneTransactionAt(t, "abandoned", 5*24*time.Hour, domain.OperationOnlineRedirect)

	result, err := env.svc.CronFinalizePostProcessing(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 2, result.Processed)
	assert.False(t, env.reload(t, recent.ID).IsPostProcessed)
	assert.True(t, env.reload(t, due.ID).IsPostProcessed)
	assert.True(t, env.reload(t, refund.ID).IsPostProcessed)
	assert.False(t, env.reload(t, abandoned.ID).IsPostProcessed)
}

func TestCronFinalizePostProcessing_IsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	broken := env.addDoneTransactionAt(t, "broken", time.Hour, domain.OperationOnlineRedirect)
	conflicted := env.addDoneTransactionAt(t, "conflicted", time.Hour, domain.OperationOnlineRedirect)
	healthy := env.addDoneTransactionAt(t, "healthy", time.Hour, domain.OperationOnlineRedirect)

	env.store.OnTransactionUpdate = func(tx *domain.Transaction) error {
		if !tx.IsPostProcessed {
			return nil
		}
		switch tx.Reference {
		case "broken":
			return errors.New("disk full")
		case "conflicted":
			return domain.ErrTransientConflict
		}
		return nil
	}

	result, err := env.svc.CronFinalizePostProcessing(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Retried)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].Reference)

	assert.Nil(t, env.reload(t, broken.ID).PaymentID)
	assert.Nil(t, env.reload(t, conflicted.ID).PaymentID)
	assert.True(t, env.reload(t, healthy.ID).IsPostProcessed)
	assert.Len(t, env.store.Payments(), 1)
	assert.True(t, env.logger.has("error", "encountered an error while post-processing transaction"))
}

func TestPollStatus_FinalizesDoneTransactions(t *testing.T) {
	env := newTestEnv(t)
	done := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	pending := env.addTransaction(t, "S00002", domain.TransactionStatePending)

	result, err := env.svc.PollStatus(context.Background(), []int64{done.ID, pending.ID})
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Transactions, 2)
	assert.True(t, result.Transactions[0].IsPostProcessed)
	assert.Equal(t, "Your payment has been processed.", result.Transactions[0].DisplayMessage)
	assert.Equal(t, "Your payment is pending.", result.Transactions[1].DisplayMessage)
	assert.True(t, env.reload(t, done.ID).IsPostProcessed)
}

func TestPollStatus_IgnoresStaleTransactions(t *testing.T) {
	env := newTestEnv(t)
	stale := env.addDoneTransactionAt(t, "stale", 25*time.Hour, domain.OperationOnlineRedirect)

	result, err := env.svc.PollStatus(context.Background(), []int64{stale.ID})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, PollErrorNoTransaction, result.Error)
}

func TestPollStatus_RetryOnTransientConflict(t *testing.T) {
	env := newTestEnv(t)
	tx := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	env.store.OnTransactionUpdate = func(*domain.Transaction) error { return domain.ErrTransientConflict }

	result, err := env.svc.PollStatus(context.Background(), []int64{tx.ID})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, PollErrorRetry, result.Error)
	assert.Empty(t, env.store.Payments())
}

func TestPollStatus_GenericErrorOnFailure(t *testing.T) {
	env := newTestEnv(t)
	tx := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	env.store.OnTransactionUpdate = func(*domain.Transaction) error { return errors.New("boom") }

	result, err := env.svc.PollStatus(context.Background(), []int64{tx.ID})
	require.NoError(t, err)
	assert.Equal(t, PollErrorProcessing, result.Error)
}

// recordingLocker records the keys it hands out
type recordingLocker struct {
	ports.ReferenceLocker
	mu     sync.Mutex
	locked []string
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := l.ReferenceLocker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.mu.Unlock()
	return unlock, nil
}

func TestFinalizePostProcessing_LocksReferencesInOrder(t *testing.T) {
	env := newTestEnv(t)
	locker := &recordingLocker{ReferenceLocker: locking.NewLocalLocker()}
	env.svc = NewService(env.store, acquirer.NewRegistry(env.strategy), staticSecrets{}, locker, env.callbacks, env.logger, DefaultConfig())
	a := env.addTransaction(t, "S00001", domain.TransactionStateDone)
	b := env.addTransaction(t, "S00002", domain.TransactionStateDone)

	require.NoError(t, env.svc.FinalizePostProcessing(context.Background(), b, a, b))

	assert.Equal(t, []string{"S00001", "S00002"}, locker.locked)
	assert.Len(t, env.store.Payments(), 2)

	// released locks can be taken again
	require.NoError(t, env.svc.FinalizePostProcessing(context.Background(), a))
}

func TestFinalizePostProcessing_ConcurrentCallersCreateOnePayment(t *testing.T) {
	env := newTestEnv(t)
	tx := env.addTransaction(t, "S00001", domain.TransactionStateDone)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		stale := env.reload(t, tx.ID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- env.svc.FinalizePostProcessing(context.Background(), stale)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	require.Len(t, env.store.Payments(), 1)
	assert.True(t, env.reload(t, tx.ID).IsPostProcessed)
}

func TestFinalizePostProcessing_SkipsAlreadyPostProcessed(t *testing.T) {
	env := newTestEnv(t)
	tx := fixtures.NewTransaction(env.acq, env.partner, "S00001")
	tx.State = domain.TransactionStateDone
	tx.IsPostProcessed = true
	require.NoError(t, env.store.Transactions().Create(context.Background(), tx))

	require.NoError(t, env.svc.FinalizePostProcessing(context.Background(), tx))
	assert.Empty(t, env.store.Payments())
}
