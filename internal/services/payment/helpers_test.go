package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kevin07696/payment-transactions/internal/adapters/acquirer"
	"github.com/kevin07696/payment-transactions/internal/adapters/locking"
	adapterports "github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/internal/testutil/fixtures"
	"github.com/kevin07696/payment-transactions/internal/testutil/memstore"
	"github.com/kevin07696/payment-transactions/internal/util"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type staticSecrets struct{}

func (staticSecrets) ServerSecret(context.Context) ([]byte, error) { return testSecret, nil }

type logEntry struct {
	level string
	msg   string
}

// recordingLogger keeps every log line for assertions
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Info(msg string, _ ...ports.Field)  { l.add("info", msg) }
func (l *recordingLogger) Error(msg string, _ ...ports.Field) { l.add("error", msg) }
func (l *recordingLogger) Warn(msg string, _ ...ports.Field)  { l.add("warn", msg) }
func (l *recordingLogger) Debug(msg string, _ ...ports.Field) { l.add("debug", msg) }

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

const testProvider = "scripted"

// scriptedStrategy applies the state named in the feedback and records provider requests
type scriptedStrategy struct {
	mock.Mock
}

func (s *scriptedStrategy) Provider() string { return testProvider }

func (s *scriptedStrategy) SendPaymentRequest(ctx context.Context, ops adapterports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	return s.Called(tx.Reference).Error(0)
}

func (s *scriptedStrategy) SendRefundRequest(ctx context.Context, ops adapterports.TransactionOps, acq *domain.Acquirer, refund, source *domain.Transaction) error {
	return s.Called(refund.Reference, source.Reference).Error(0)
}

func (s *scriptedStrategy) SendCaptureRequest(ctx context.Context, ops adapterports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	if err := s.Called(tx.Reference).Error(0); err != nil {
		return err
	}
	return ops.SetDone(ctx, "", tx)
}

func (s *scriptedStrategy) SendVoidRequest(ctx context.Context, ops adapterports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction) error {
	if err := s.Called(tx.Reference).Error(0); err != nil {
		return err
	}
	return ops.SetCanceled(ctx, "", tx)
}

func (s *scriptedStrategy) GetTxFromFeedbackData(ctx context.Context, ops adapterports.TransactionOps, data domain.FeedbackData) (*domain.Transaction, error) {
	reference := data.String("reference")
	tx, err := ops.FindByReference(ctx, reference)
	if errors.Is(err, domain.ErrTxnNotFound) {
		return nil, domain.ErrValidationFailed.WithDetail("reference", reference)
	}
	return tx, err
}

func (s *scriptedStrategy) ProcessFeedbackData(ctx context.Context, ops adapterports.TransactionOps, acq *domain.Acquirer, tx *domain.Transaction, data domain.FeedbackData) error {
	message := data.String("message")
	switch domain.TransactionState(data.String("state")) {
	case domain.TransactionStatePending:
		return ops.SetPending(ctx, message, tx)
	case domain.TransactionStateAuthorized:
		return ops.SetAuthorized(ctx, message, tx)
	case domain.TransactionStateDone:
		return ops.SetDone(ctx, message, tx)
	case domain.TransactionStateCancel:
		return ops.SetCanceled(ctx, message, tx)
	default:
		return ops.SetError(ctx, message, tx)
	}
}

type testEnv struct {
	store     *memstore.Store
	svc       *Service
	acq       *domain.Acquirer
	partner   *domain.Partner
	logger    *recordingLogger
	strategy  *scriptedStrategy
	callbacks *CallbackRegistry
	now       time.Time
}

func newTestEnv(t *testing.T, opts ...fixtures.AcquirerOption) *testEnv {
	t.Helper()

	store := memstore.New()
	store.AddCurrency(fixtures.EUR)
	store.AddCurrency(fixtures.JPY)
	acq := store.AddAcquirer(fixtures.NewAcquirer(testProvider, opts...))
	partner := store.AddPartner(fixtures.NewPartner("Azure Interior"))

	strategy := &scriptedStrategy{}
	callbacks := NewCallbackRegistry()
	require.NoError(t, RegisterInvoiceCallbacks(callbacks))

	logger := &recordingLogger{}
	svc := NewService(store, acquirer.NewRegistry(strategy), staticSecrets{}, locking.NewLocalLocker(), callbacks, logger, DefaultConfig())

	now := time.Date(2024, 1, 31, 15, 45, 2, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &testEnv{
		store:     store,
		svc:       svc,
		acq:       acq,
		partner:   partner,
		logger:    logger,
		strategy:  strategy,
		callbacks: callbacks,
		now:       now,
	}
}

// addTransaction stores a transaction of the test acquirer in state
func (e *testEnv) addTransaction(t *testing.T, reference string, state domain.TransactionState) *domain.Transaction {
	t.Helper()
	tx := fixtures.NewTransaction(e.acq, e.partner, reference)
	tx.State = state
	tx.LastStateChange = e.now
	require.NoError(t, e.store.Transactions().Create(context.Background(), tx))
	return tx
}

func (e *testEnv) reload(t *testing.T, id int64) *domain.Transaction {
	t.Helper()
	tx, err := e.store.Transactions().GetByID(context.Background(), id)
	require.NoError(t, err)
	return tx
}

// withCallback gives tx a validly signed callback descriptor
func withCallback(tx *domain.Transaction, model string, recordID int64, method string) {
	tx.Callback = domain.CallbackDescriptor{
		Model:    model,
		RecordID: recordID,
		Method:   method,
		Hash:     generateCallbackHash(model, recordID, method),
	}
}

func feedback(reference string, state domain.TransactionState) domain.FeedbackData {
	return domain.FeedbackData{"reference": reference, "state": string(state)}
}

func generateCallbackHash(model string, recordID int64, method string) string {
	return util.GenerateCallbackHash(testSecret, model, recordID, method)
}
