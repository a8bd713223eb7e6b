package payment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/pkg/observability"
)

// Poll errors reported to the status polling client
const (
	PollErrorNoTransaction = "no_tx_found"
	PollErrorRetry         = "tx_process_retry"
	PollErrorProcessing    = "tx_process_error"
)

// FinalizePostProcessing finalizes confirmed transactions in a single database transaction.
// Invoices linked to each transaction are posted, a payment is created once, and the
// transaction is flagged as post-processed. The references are locked for the duration
// and the rows are re-read FOR UPDATE, so concurrent callers finalize each transaction once.
func (s *Service) FinalizePostProcessing(ctx context.Context, txs ...*domain.Transaction) error {
	unlock, err := s.lockReferences(ctx, txs)
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.WithTx(ctx, func(store ports.Store) error {
		return s.ops(store).finalizePostProcessing(ctx, txs...)
	})
}

// lockReferences takes the reference locks of txs in a stable order
func (s *Service) lockReferences(ctx context.Context, txs []*domain.Transaction) (func(), error) {
	refs := make([]string, 0, len(txs))
	for _, tx := range txs {
		refs = append(refs, tx.Reference)
	}
	sort.Strings(refs)

	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for i, ref := range refs {
		if i > 0 && refs[i-1] == ref {
			continue
		}
		unlock, err := s.locker.Lock(ctx, ref)
		if err != nil {
			release()
			return nil, fmt.Errorf("lock %s: %w", ref, err)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

func (o *txOps) finalizePostProcessing(ctx context.Context, txs ...*domain.Transaction) error {
	ordered := append([]*domain.Transaction(nil), txs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, stale := range ordered {
		tx, err := o.store.Transactions().GetByIDForUpdate(ctx, stale.ID)
		if err != nil {
			return err
		}
		if tx.State != domain.TransactionStateDone {
			o.s.logger.Debug("skipped post-processing of unconfirmed transaction",
				ports.Reference(tx.Reference),
				ports.String("state", string(tx.State)))
			continue
		}
		if tx.IsPostProcessed {
			*stale = *tx
			continue
		}

		if err := o.postDraftInvoices(ctx, tx); err != nil {
			return err
		}
		if tx.Operation != domain.OperationValidation && tx.PaymentID == nil {
			if _, err := o.createPayment(ctx, tx); err != nil {
				return err
			}
		}
		if err := o.logReceivedMessage(ctx, tx); err != nil {
			return err
		}

		tx.IsPostProcessed = true
		if err := o.store.Transactions().Update(ctx, tx); err != nil {
			return fmt.Errorf("flag %s as post-processed: %w", tx.Reference, err)
		}
		*stale = *tx
	}
	return nil
}

func (o *txOps) postDraftInvoices(ctx context.Context, tx *domain.Transaction) error {
	if !tx.HasLinkedInvoices() {
		return nil
	}
	invoices, err := o.store.Accounting().ListInvoices(ctx, tx.InvoiceIDs)
	if err != nil {
		return fmt.Errorf("load invoices of %s: %w", tx.Reference, err)
	}
	for _, inv := range invoices {
		if inv.State != domain.InvoiceStateDraft {
			continue
		}
		inv.State = domain.InvoiceStatePosted
		if err := o.store.Accounting().UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("post invoice %s: %w", inv.Name, err)
		}
	}
	return nil
}

// CreatePayment creates and posts the accounting payment of tx and links it back
func (s *Service) CreatePayment(ctx context.Context, tx *domain.Transaction) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.store.WithTx(ctx, func(store ports.Store) error {
		var err error
		payment, err = s.ops(store).createPayment(ctx, tx)
		return err
	})
	return payment, err
}

func (o *txOps) createPayment(ctx context.Context, tx *domain.Transaction) (*domain.Payment, error) {
	acq, err := o.acquirer(ctx, tx.AcquirerID)
	if err != nil {
		return nil, err
	}

	paymentType := domain.PaymentTypeInbound
	if tx.Amount.IsNegative() {
		paymentType = domain.PaymentTypeOutbound
	}

	payment := &domain.Payment{
		Amount:        tx.Amount.Abs(),
		PaymentType:   paymentType,
		CurrencyCode:  tx.CurrencyCode,
		PartnerID:     tx.PartnerID,
		JournalID:     acq.JournalID,
		TokenID:       cloneID(tx.TokenID),
		Ref:           fmt.Sprintf("%s - %s - %s", tx.Reference, tx.Partner.Name, tx.AcquirerReference),
		State:         domain.PaymentStatePosted,
		TransactionID: tx.ID,
	}
	if tx.SourceTransactionID != nil {
		source, err := o.store.Transactions().GetByID(ctx, *tx.SourceTransactionID)
		if err != nil {
			return nil, fmt.Errorf("load source of %s: %w", tx.Reference, err)
		}
		payment.SourcePaymentID = cloneID(source.PaymentID)
	}

	if err := o.store.Accounting().CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment of %s: %w", tx.Reference, err)
	}
	tx.PaymentID = &payment.ID
	if err := o.store.Transactions().Update(ctx, tx); err != nil {
		return nil, err
	}

	if paymentType == domain.PaymentTypeInbound {
		if err := o.reconcileInvoices(ctx, tx, payment); err != nil {
			return nil, err
		}
	}

	o.s.logger.Info("created payment for transaction",
		ports.Reference(tx.Reference),
		ports.Int64("payment_id", payment.ID),
		ports.String("payment_type", string(paymentType)),
		ports.Amount(payment.Amount))
	return payment, nil
}

// reconcileInvoices settles the posted invoices of tx with payment, in the order they were linked
func (o *txOps) reconcileInvoices(ctx context.Context, tx *domain.Transaction, payment *domain.Payment) error {
	if !tx.HasLinkedInvoices() {
		return nil
	}
	invoices, err := o.store.Accounting().ListInvoices(ctx, tx.InvoiceIDs)
	if err != nil {
		return fmt.Errorf("load invoices of %s: %w", tx.Reference, err)
	}

	remaining := payment.Amount
	for _, inv := range invoices {
		if !remaining.IsPositive() {
			break
		}
		if inv.State != domain.InvoiceStatePosted || inv.CurrencyCode != payment.CurrencyCode || !inv.AmountResidual.IsPositive() {
			continue
		}
		settled := inv.AmountResidual
		if remaining.LessThan(settled) {
			settled = remaining
		}
		inv.AmountResidual = inv.AmountResidual.Sub(settled)
		remaining = remaining.Sub(settled)
		if err := o.store.Accounting().UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("reconcile invoice %s: %w", inv.Name, err)
		}
	}
	return nil
}

// SweepError describes a transaction the sweep could not finalize
type SweepError struct {
	Reference string `json:"reference"`
	Error     string `json:"error"`
}

// SweepResult summarizes a post-processing sweep
type SweepResult struct {
	Errors     []SweepError `json:"errors,omitempty"`
	Candidates int          `json:"candidates"`
	Processed  int          `json:"processed"`
	Retried    int          `json:"retried"`
	Failed     int          `json:"failed"`
}

// CronFinalizePostProcessing finalizes the confirmed transactions the client did not handle.
// Refunds are always eligible; transactions older than the retry limit are abandoned.
// Each transaction commits on its own so one failure does not block the others.
func (s *Service) CronFinalizePostProcessing(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	candidates, err := s.store.Transactions().ListPostProcessingCandidates(ctx, ports.PostProcessingFilter{
		ClientHandledBefore: now.Add(-s.cfg.ClientHandlingWindow),
		GiveUpBefore:        now.Add(-s.cfg.RetryLimit),
		Limit:               s.cfg.SweepBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list post-processing candidates: %w", err)
	}

	result := &SweepResult{Candidates: len(candidates)}
	for _, tx := range candidates {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		start := time.Now()
		err := s.FinalizePostProcessing(ctx, tx)
		elapsed := time.Since(start).Seconds()

		switch {
		case err == nil:
			result.Processed++
			observability.RecordPostProcessing("processed", elapsed)
		case domain.IsTransientError(err):
			result.Retried++
			observability.RecordPostProcessing("retry", elapsed)
			s.logger.Warn("post-processing conflict, will retry on next sweep",
				ports.Reference(tx.Reference),
				ports.Err(err))
		default:
			result.Failed++
			result.Errors = append(result.Errors, SweepError{Reference: tx.Reference, Error: err.Error()})
			observability.RecordPostProcessing("failed", elapsed)
			s.logger.Error("encountered an error while post-processing transaction",
				ports.Reference(tx.Reference),
				ports.Err(err))
		}
	}

	s.logger.Info("post-processing sweep completed",
		ports.Int("candidates", result.Candidates),
		ports.Int("processed", result.Processed),
		ports.Int("retried", result.Retried),
		ports.Int("failed", result.Failed))
	return result, nil
}

// StatusEntry is the polling view of one transaction
type StatusEntry struct {
	domain.PostProcessingValues
	DisplayMessage string `json:"display_message"`
}

// PollResult is returned to the status polling client
type PollResult struct {
	Error        string        `json:"error,omitempty"`
	Transactions []StatusEntry `json:"display_values_list,omitempty"`
	Success      bool          `json:"success"`
}

// PollStatus reports the monitored transactions changed within the poll window and
// finalizes the confirmed ones. Conflicts ask the client to poll again.
func (s *Service) PollStatus(ctx context.Context, txIDs []int64) (*PollResult, error) {
	txs, err := s.store.Transactions().ListByIDs(ctx, txIDs)
	if err != nil {
		return nil, err
	}
	limit := s.now().Add(-s.cfg.PollWindow)
	monitored := txs[:0]
	for _, tx := range txs {
		if !tx.LastStateChange.Before(limit) {
			monitored = append(monitored, tx)
		}
	}
	if len(monitored) == 0 {
		return &PollResult{Error: PollErrorNoTransaction}, nil
	}

	var toFinalize []*domain.Transaction
	for _, tx := range monitored {
		if tx.State == domain.TransactionStateDone && !tx.IsPostProcessed {
			toFinalize = append(toFinalize, tx)
		}
	}
	if len(toFinalize) > 0 {
		if err := s.FinalizePostProcessing(ctx, toFinalize...); err != nil {
			if domain.IsTransientError(err) {
				s.logger.Info("post-processing conflict during poll, asking client to retry", ports.Err(err))
				return &PollResult{Error: PollErrorRetry}, nil
			}
			s.logger.Error("encountered an error while post-processing transactions", ports.Err(err))
			return &PollResult{Error: PollErrorProcessing}, nil
		}
	}

	result := &PollResult{Success: true}
	for _, tx := range monitored {
		acq, err := s.store.Acquirers().GetByID(ctx, tx.AcquirerID)
		if err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, StatusEntry{
			PostProcessingValues: tx.PostProcessingValues(),
			DisplayMessage:       acq.DisplayMessage(tx.State),
		})
	}
	return result, nil
}
