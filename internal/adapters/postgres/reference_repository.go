package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/payment-transactions/internal/domain"
)

const acquirerColumns = `id, name, provider, state, company_country, capture_manually,
	support_authorization, support_tokenization, allow_tokenization, support_refund,
	fees_active, fees_dom_fixed, fees_dom_var, fees_int_fixed, fees_int_var,
	validation_amount, validation_currency, pending_msg, done_msg, cancel_msg, journal_id, settings`

// acquirerRepository implements ports.AcquirerRepository
type acquirerRepository struct {
	db DBTX
}

func (r *acquirerRepository) GetByID(ctx context.Context, id int64) (*domain.Acquirer, error) {
	acq, err := scanAcquirer(r.db.QueryRow(ctx, `SELECT `+acquirerColumns+` FROM payment_acquirers WHERE id = $1`, id))
	if err != nil {
		return nil, mapRowError(err, domain.ErrAcquirerNotFound.WithDetail("id", id))
	}
	return acq, nil
}

func (r *acquirerRepository) ListByProvider(ctx context.Context, provider string) ([]*domain.Acquirer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+acquirerColumns+` FROM payment_acquirers WHERE provider = $1 ORDER BY id`, provider)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*domain.Acquirer
	for rows.Next() {
		acq, err := scanAcquirer(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, acq)
	}
	return out, mapError(rows.Err())
}

func scanAcquirer(row pgx.Row) (*domain.Acquirer, error) {
	var (
		acq                                    domain.Acquirer
		state, supportRefund                   string
		domFixed, domVar, intFixed, intVar, va pgtype.Numeric
		settings                               []byte
	)
	err := row.Scan(
		&acq.ID, &acq.Name, &acq.Provider, &state, &acq.CompanyCountry, &acq.CaptureManually,
		&acq.SupportAuthorization, &acq.SupportTokenization, &acq.AllowTokenization, &supportRefund,
		&acq.FeesActive, &domFixed, &domVar, &intFixed, &intVar,
		&va, &acq.ValidationCurrency, &acq.PendingMessage, &acq.DoneMessage, &acq.CancelMessage,
		&acq.JournalID, &settings,
	)
	if err != nil {
		return nil, err
	}
	if err := assignNumerics(
		numericField{domFixed, &acq.Fees.DomesticFixed},
		numericField{domVar, &acq.Fees.DomesticVariable},
		numericField{intFixed, &acq.Fees.InternationalFixed},
		numericField{intVar, &acq.Fees.InternationalVariable},
		numericField{va, &acq.ValidationAmount},
	); err != nil {
		return nil, err
	}
	acq.Settings = map[string]string{}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &acq.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings of acquirer %d: %w", acq.ID, err)
		}
	}
	acq.State = domain.AcquirerState(state)
	acq.SupportRefund = domain.RefundSupport(supportRefund)
	return &acq, nil
}

// tokenRepository implements ports.TokenRepository
type tokenRepository struct {
	db DBTX
}

func (r *tokenRepository) Create(ctx context.Context, t *domain.Token) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO payment_tokens (name, acquirer_ref, shopper_reference, acquirer_id, partner_id, verified, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		t.Name, t.AcquirerRef, t.ShopperRef, t.AcquirerID, t.PartnerID, t.Verified, t.Active,
	).Scan(&t.ID)
	if err != nil {
		return mapError(fmt.Errorf("create token: %w", err))
	}
	return nil
}

func (r *tokenRepository) GetByID(ctx context.Context, id int64) (*domain.Token, error) {
	var t domain.Token
	err := r.db.QueryRow(ctx, `
		SELECT id, name, acquirer_ref, shopper_reference, acquirer_id, partner_id, verified, active
		FROM payment_tokens WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.AcquirerRef, &t.ShopperRef, &t.AcquirerID, &t.PartnerID, &t.Verified, &t.Active)
	if err != nil {
		return nil, mapRowError(err, domain.ErrTokenNotFound)
	}
	return &t, nil
}

// partnerRepository implements ports.PartnerRepository
type partnerRepository struct {
	db DBTX
}

func (r *partnerRepository) GetByID(ctx context.Context, id int64) (*domain.Partner, error) {
	var (
		p          domain.Partner
		commercial pgtype.Int8
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, street, zip, city, phone, lang, country, commercial_partner_id
		FROM partners WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.Street, &p.Zip, &p.City, &p.Phone, &p.Language, &p.Country, &commercial)
	if err != nil {
		return nil, mapRowError(err, domain.ErrPartnerNotFound)
	}
	p.CommercialPartnerID = commercial.Int64
	return &p, nil
}
