package payment

import (
	"context"
	"testing"

	"github.com/kevin07696/payment-transactions/internal/adapters/acquirer"
	"github.com/kevin07696/payment-transactions/internal/adapters/adyen"
	"github.com/kevin07696/payment-transactions/internal/adapters/locking"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/testutil/fixtures"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type plainKeys struct{}

func (plainKeys) ServerSecret(context.Context) ([]byte, error) { return testSecret, nil }

func (plainKeys) Resolve(_ context.Context, value string) (string, error) { return value, nil }

// newAdyenEnv wires the Adyen strategy to the memory store. Notifications never call the API.
func newAdyenEnv(t *testing.T) (*testEnv, *domain.Transaction) {
	t.Helper()
	env := newTestEnv(t)
	env.acq = env.store.AddAcquirer(fixtures.NewAcquirer(adyen.Provider))
	strategy := adyen.NewStrategy(nil, plainKeys{}, zap.NewNop())
	env.svc = NewService(env.store, acquirer.NewRegistry(strategy), staticSecrets{}, locking.NewLocalLocker(), env.callbacks, env.logger, DefaultConfig())

	source := fixtures.NewTransaction(env.acq, env.partner, "S00001")
	source.State = domain.TransactionStateDone
	source.AcquirerReference = "PSP0001"
	require.NoError(t, env.store.Transactions().Create(context.Background(), source))
	return env, source
}

func refundNotification(t *testing.T, value string) domain.FeedbackData {
	t.Helper()
	data, ok := adyen.Reshape(domain.FeedbackData{
		"eventCode":         adyen.EventRefund,
		"success":           "true",
		"merchantReference": "S00001",
		"originalReference": "PSP0001",
		"pspReference":      "PSP-REFUND",
		"amount":            map[string]interface{}{"value": value, "currency": "EUR"},
	})
	require.True(t, ok)
	return data
}

func TestHandleFeedbackData_RedeliveredRefundNotification(t *testing.T) {
	env, source := newAdyenEnv(t)
	ctx := context.Background()

	first, err := env.svc.HandleFeedbackData(ctx, adyen.Provider, refundNotification(t, "3000"))
	require.NoError(t, err)
	second, err := env.svc.HandleFeedbackData(ctx, adyen.Provider, refundNotification(t, "3000"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.TransactionStateDone, second.State)

	refunds, err := env.store.Transactions().ListRefunds(ctx, source.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.True(t, decimal.RequireFromString("-30.00").Equal(refunds[0].Amount))
	assert.Equal(t, "PSP-REFUND", refunds[0].AcquirerReference)
}

func TestHandleFeedbackData_RefundNotificationAboveAvailableAmount(t *testing.T) {
	env, source := newAdyenEnv(t)
	ctx := context.Background()

	_, err := env.svc.HandleFeedbackData(ctx, adyen.Provider, refundNotification(t, "15000"))
	assert.ErrorIs(t, err, domain.ErrTxnRefundAmountExceeded)

	refunds, err := env.store.Transactions().ListRefunds(ctx, source.ID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}
