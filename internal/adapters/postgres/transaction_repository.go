package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
)

const transactionColumns = `id, reference, acquirer_reference, provider, acquirer_id, partner_id,
	amount, fees, currency, operation, state, state_message, last_state_change,
	is_post_processed, tokenize, token_id, source_transaction_id, payment_id, landing_route,
	partner_snapshot, callback_model, callback_record_id, callback_method, callback_hash,
	callback_is_done, created_at`

// transactionRepository implements ports.TransactionRepository
type transactionRepository struct {
	db DBTX
}

// Create inserts tx inside a savepoint so a reference conflict leaves the caller's transaction usable
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	amount, err := decimalToNumeric(tx.Amount)
	if err != nil {
		return err
	}
	fees, err := decimalToNumeric(tx.Fees)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(tx.Partner)
	if err != nil {
		return fmt.Errorf("marshal partner snapshot: %w", err)
	}
	if tx.State == "" {
		tx.State = domain.TransactionStateDraft
	}

	sp, err := r.db.Begin(ctx)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = sp.Rollback(ctx) }()

	err = sp.QueryRow(ctx, `
		INSERT INTO payment_transactions (
			reference, acquirer_reference, provider, acquirer_id, partner_id, amount, fees,
			currency, operation, state, state_message, last_state_change, is_post_processed,
			tokenize, token_id, source_transaction_id, payment_id, landing_route, partner_snapshot,
			callback_model, callback_record_id, callback_method, callback_hash, callback_is_done
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()), $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		RETURNING id, created_at, last_state_change`,
		tx.Reference, tx.AcquirerReference, tx.Provider, tx.AcquirerID, tx.PartnerID, amount, fees,
		tx.CurrencyCode, string(tx.Operation), string(tx.State), tx.StateMessage, nullTime(tx.LastStateChange), tx.IsPostProcessed,
		tx.Tokenize, nullInt64(tx.TokenID), nullInt64(tx.SourceTransactionID), nullInt64(tx.PaymentID), tx.LandingRoute, snapshot,
		tx.Callback.Model, tx.Callback.RecordID, tx.Callback.Method, tx.Callback.Hash, tx.Callback.IsDone,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.LastStateChange)
	if err != nil {
		switch uniqueViolation(err) {
		case uniqTransactionReference:
			return domain.ErrTxnReferenceConflict.WithDetail("reference", tx.Reference)
		case uniqTransactionAcquirerReference:
			return acquirerReferenceConflict(tx)
		}
		return mapError(fmt.Errorf("create transaction: %w", err))
	}

	for _, invoiceID := range tx.InvoiceIDs {
		if _, err := sp.Exec(ctx,
			`INSERT INTO payment_transaction_invoices (transaction_id, invoice_id) VALUES ($1, $2)`,
			tx.ID, invoiceID); err != nil {
			return mapError(fmt.Errorf("link invoice %d: %w", invoiceID, err))
		}
	}

	if err := sp.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// Update persists every mutable field. The reference never changes.
func (r *transactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	amount, err := decimalToNumeric(tx.Amount)
	if err != nil {
		return err
	}
	fees, err := decimalToNumeric(tx.Fees)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE payment_transactions SET
			acquirer_reference = $3, amount = $4, fees = $5, state = $6, state_message = $7,
			last_state_change = $8, is_post_processed = $9, tokenize = $10, token_id = $11,
			payment_id = $12, landing_route = $13, callback_model = $14, callback_record_id = $15,
			callback_method = $16, callback_hash = $17, callback_is_done = $18
		WHERE id = $1 AND reference = $2`,
		tx.ID, tx.Reference, tx.AcquirerReference, amount, fees, string(tx.State), tx.StateMessage,
		tx.LastStateChange, tx.IsPostProcessed, tx.Tokenize, nullInt64(tx.TokenID),
		nullInt64(tx.PaymentID), tx.LandingRoute, tx.Callback.Model, tx.Callback.RecordID,
		tx.Callback.Method, tx.Callback.Hash, tx.Callback.IsDone,
	)
	if err != nil {
		if uniqueViolation(err) == uniqTransactionAcquirerReference {
			return acquirerReferenceConflict(tx)
		}
		return mapError(fmt.Errorf("update transaction: %w", err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE id = $1)`, tx.ID).Scan(&exists); err != nil {
			return mapError(err)
		}
		if exists {
			return fmt.Errorf("reference of transaction %d is immutable", tx.ID)
		}
		return domain.ErrTxnNotFound.WithDetail("id", tx.ID)
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE id = $1`, id)
}

// GetByIDForUpdate locks the row until the surrounding database transaction ends
func (r *transactionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *transactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE reference = $1`, reference)
}

func (r *transactionRepository) GetByAcquirerReference(ctx context.Context, provider, acquirerReference string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM payment_transactions
		WHERE provider = $1 AND acquirer_reference = $2 ORDER BY id LIMIT 1`, provider, acquirerReference)
}

func (r *transactionRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE id = ANY($1) ORDER BY id`, ids)
}

func (r *transactionRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE reference = $1)`, reference).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (r *transactionRepository) ListReferencesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT reference FROM payment_transactions WHERE starts_with(reference, $1)`, prefix)
	if err != nil {
		return nil, mapError(err)
	}
	refs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err)
	}
	return refs, nil
}

func (r *transactionRepository) ListRefunds(ctx context.Context, sourceID int64) ([]*domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM payment_transactions
		WHERE source_transaction_id = $1 AND operation = $2 ORDER BY id`, sourceID, string(domain.OperationRefund))
}

func (r *transactionRepository) ListPostProcessingCandidates(ctx context.Context, f ports.PostProcessingFilter) ([]*domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM payment_transactions
		WHERE state = $1 AND NOT is_post_processed
			AND last_state_change >= $2
			AND (last_state_change <= $3 OR operation = $4)
		ORDER BY id
		LIMIT NULLIF($5, 0)`,
		string(domain.TransactionStateDone), f.GiveUpBefore, f.ClientHandledBefore,
		string(domain.OperationRefund), f.Limit)
}

func (r *transactionRepository) getOne(ctx context.Context, sql string, args ...any) (*domain.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapRowError(err, domain.ErrTxnNotFound)
	}
	if err := r.loadInvoiceIDs(ctx, []*domain.Transaction{tx}); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *transactionRepository) list(ctx context.Context, sql string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError(err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	if err := r.loadInvoiceIDs(ctx, txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *transactionRepository) loadInvoiceIDs(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Transaction, len(txs))
	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		byID[tx.ID] = tx
		ids = append(ids, tx.ID)
	}

	rows, err := r.db.Query(ctx, `SELECT transaction_id, invoice_id FROM payment_transaction_invoices
		WHERE transaction_id = ANY($1) ORDER BY transaction_id, invoice_id`, ids)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var txID, invoiceID int64
		if err := rows.Scan(&txID, &invoiceID); err != nil {
			return mapError(err)
		}
		byID[txID].InvoiceIDs = append(byID[txID].InvoiceIDs, invoiceID)
	}
	return mapError(rows.Err())
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                           domain.Transaction
		amount, fees                 pgtype.Numeric
		tokenID, sourceID, paymentID pgtype.Int8
		operation, state             string
		snapshot                     []byte
	)
	err := row.Scan(
		&tx.ID, &tx.Reference, &tx.AcquirerReference, &tx.Provider, &tx.AcquirerID, &tx.PartnerID,
		&amount, &fees, &tx.CurrencyCode, &operation, &state, &tx.StateMessage, &tx.LastStateChange,
		&tx.IsPostProcessed, &tx.Tokenize, &tokenID, &sourceID, &paymentID, &tx.LandingRoute,
		&snapshot, &tx.Callback.Model, &tx.Callback.RecordID, &tx.Callback.Method, &tx.Callback.Hash,
		&tx.Callback.IsDone, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := assignNumerics(numericField{amount, &tx.Amount}, numericField{fees, &tx.Fees}); err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &tx.Partner); err != nil {
			return nil, fmt.Errorf("unmarshal partner snapshot: %w", err)
		}
	}
	tx.Operation = domain.Operation(operation)
	tx.State = domain.TransactionState(state)
	tx.TokenID = int64Ptr(tokenID)
	tx.SourceTransactionID = int64Ptr(sourceID)
	tx.PaymentID = int64Ptr(paymentID)
	return &tx, nil
}

// acquirerReferenceConflict reports a provider reference already held by another
// transaction, typically a concurrent delivery of the same notification
func acquirerReferenceConflict(tx *domain.Transaction) error {
	return domain.ErrTransientConflict.
		WithDetail("provider", tx.Provider).
		WithDetail("acquirer_reference", tx.AcquirerReference)
}
