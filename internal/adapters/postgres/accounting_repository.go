package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/payment-transactions/internal/domain"
)

// accountingRepository implements ports.AccountingRepository
type accountingRepository struct {
	db DBTX
}

func (r *accountingRepository) GetCurrency(ctx context.Context, code string) (*domain.Currency, error) {
	var c domain.Currency
	err := r.db.QueryRow(ctx, `SELECT code, symbol, decimals FROM currencies WHERE code = $1`, code).
		Scan(&c.Code, &c.Symbol, &c.Decimals)
	if err != nil {
		return nil, mapRowError(err, domain.ErrCurrencyNotFound)
	}
	return &c, nil
}

const invoiceColumns = `id, name, partner_id, currency, amount_total, amount_residual, state`

func (r *accountingRepository) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, mapRowError(err, domain.ErrInvoiceNotFound)
	}
	return inv, nil
}

// ListInvoices returns the existing invoices among ids, in the order of ids
func (r *accountingRepository) ListInvoices(ctx context.Context, ids []int64) ([]*domain.Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	byID := make(map[int64]*domain.Invoice, len(ids))
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, mapError(err)
		}
		byID[inv.ID] = inv
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	out := make([]*domain.Invoice, 0, len(byID))
	for _, id := range ids {
		if inv, ok := byID[id]; ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *accountingRepository) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	total, err := decimalToNumeric(inv.AmountTotal)
	if err != nil {
		return err
	}
	residual, err := decimalToNumeric(inv.AmountResidual)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices SET name = $2, amount_total = $3, amount_residual = $4, state = $5
		WHERE id = $1`,
		inv.ID, inv.Name, total, residual, string(inv.State))
	if err != nil {
		return mapError(fmt.Errorf("update invoice: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv             domain.Invoice
		total, residual pgtype.Numeric
		state           string
	)
	if err := row.Scan(&inv.ID, &inv.Name, &inv.PartnerID, &inv.CurrencyCode, &total, &residual, &state); err != nil {
		return nil, err
	}
	if err := assignNumerics(numericField{total, &inv.AmountTotal}, numericField{residual, &inv.AmountResidual}); err != nil {
		return nil, err
	}
	inv.State = domain.InvoiceState(state)
	return &inv, nil
}

func (r *accountingRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	amount, err := decimalToNumeric(p.Amount)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO payments (transaction_id, amount, currency, ref, payment_type, state, partner_id,
			journal_id, token_id, source_payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		p.TransactionID, amount, p.CurrencyCode, p.Ref, string(p.PaymentType), string(p.State), p.PartnerID,
		p.JournalID, nullInt64(p.TokenID), nullInt64(p.SourcePaymentID),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if uniqueViolation(err) == uniqPaymentTransaction {
			return domain.ErrTransientConflict.WithDetail("transaction_id", p.TransactionID)
		}
		return mapError(fmt.Errorf("create payment: %w", err))
	}
	return nil
}

func (r *accountingRepository) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	var (
		p               domain.Payment
		amount          pgtype.Numeric
		tokenID, source pgtype.Int8
		paymentType, st string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, transaction_id, amount, currency, ref, payment_type, state, partner_id,
			journal_id, token_id, source_payment_id, created_at
		FROM payments WHERE id = $1`, id,
	).Scan(&p.ID, &p.TransactionID, &amount, &p.CurrencyCode, &p.Ref, &paymentType, &st, &p.PartnerID,
		&p.JournalID, &tokenID, &source, &p.CreatedAt)
	if err != nil {
		return nil, mapRowError(err, domain.ErrPaymentNotFound)
	}
	if err := assignNumerics(numericField{amount, &p.Amount}); err != nil {
		return nil, err
	}
	p.PaymentType = domain.PaymentType(paymentType)
	p.State = domain.PaymentState(st)
	p.TokenID = int64Ptr(tokenID)
	p.SourcePaymentID = int64Ptr(source)
	return &p, nil
}

func (r *accountingRepository) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	amount, err := decimalToNumeric(p.Amount)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE payments SET amount = $2, ref = $3, state = $4, token_id = $5, source_payment_id = $6
		WHERE id = $1`,
		p.ID, amount, p.Ref, string(p.State), nullInt64(p.TokenID), nullInt64(p.SourcePaymentID))
	if err != nil {
		return mapError(fmt.Errorf("update payment: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// messageRepository implements ports.MessageRepository
type messageRepository struct {
	db DBTX
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.DocumentMessage) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_messages (document_type, document_id, transaction_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		string(msg.DocumentType), msg.DocumentID, msg.TransactionID, msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return mapError(fmt.Errorf("create document message: %w", err))
	}
	return nil
}

func (r *messageRepository) ListByDocument(ctx context.Context, docType domain.DocumentType, docID int64) ([]*domain.DocumentMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_type, document_id, transaction_id, body, created_at
		FROM document_messages WHERE document_type = $1 AND document_id = $2 ORDER BY id`,
		string(docType), docID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*domain.DocumentMessage
	for rows.Next() {
		var (
			m       domain.DocumentMessage
			docKind string
		)
		if err := rows.Scan(&m.ID, &docKind, &m.DocumentID, &m.TransactionID, &m.Body, &m.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		m.DocumentType = domain.DocumentType(docKind)
		out = append(out, &m)
	}
	return out, mapError(rows.Err())
}
