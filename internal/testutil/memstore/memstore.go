// Package memstore provides an in-memory ports.Store for unit tests.
// It enforces the unique indexes of the schema and rolls back WithTx on error.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
)

type data struct {
	transactions map[int64]*domain.Transaction
	acquirers    map[int64]*domain.Acquirer
	tokens       map[int64]*domain.Token
	partners     map[int64]*domain.Partner
	currencies   map[string]*domain.Currency
	invoices     map[int64]*domain.Invoice
	payments     map[int64]*domain.Payment
	messages     []*domain.DocumentMessage
	nextID       int64
}

func (d *data) clone() *data {
	c := &data{
		transactions: make(map[int64]*domain.Transaction, len(d.transactions)),
		acquirers:    make(map[int64]*domain.Acquirer, len(d.acquirers)),
		tokens:       make(map[int64]*domain.Token, len(d.tokens)),
		partners:     make(map[int64]*domain.Partner, len(d.partners)),
		currencies:   make(map[string]*domain.Currency, len(d.currencies)),
		invoices:     make(map[int64]*domain.Invoice, len(d.invoices)),
		payments:     make(map[int64]*domain.Payment, len(d.payments)),
		messages:     make([]*domain.DocumentMessage, len(d.messages)),
		nextID:       d.nextID,
	}
	for k, v := range d.transactions {
		c.transactions[k] = v.Clone()
	}
	for k, v := range d.acquirers {
		a := *v
		c.acquirers[k] = &a
	}
	for k, v := range d.tokens {
		t := *v
		c.tokens[k] = &t
	}
	for k, v := range d.partners {
		p := *v
		c.partners[k] = &p
	}
	for k, v := range d.currencies {
		cur := *v
		c.currencies[k] = &cur
	}
	for k, v := range d.invoices {
		inv := *v
		c.invoices[k] = &inv
	}
	for k, v := range d.payments {
		p := *v
		c.payments[k] = &p
	}
	copy(c.messages, d.messages)
	return c
}

// Store is an in-memory ports.Store
type Store struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	db   **data
	now  func() time.Time
	inTx bool

	// OnTransactionUpdate, when set, runs before every transaction update and can fail it
	OnTransactionUpdate func(tx *domain.Transaction) error
}

// New creates an empty store
func New() *Store {
	d := &data{
		transactions: make(map[int64]*domain.Transaction),
		acquirers:    make(map[int64]*domain.Acquirer),
		tokens:       make(map[int64]*domain.Token),
		partners:     make(map[int64]*domain.Partner),
		currencies:   make(map[string]*domain.Currency),
		invoices:     make(map[int64]*domain.Invoice),
		payments:     make(map[int64]*domain.Payment),
	}
	return &Store{
		mu:   &sync.Mutex{},
		txMu: &sync.Mutex{},
		db:   &d,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Transactions() ports.TransactionRepository { return transactionRepo{s} }
func (s *Store) Acquirers() ports.AcquirerRepository       { return acquirerRepo{s} }
func (s *Store) Tokens() ports.TokenRepository             { return tokenRepo{s} }
func (s *Store) Partners() ports.PartnerRepository         { return partnerRepo{s} }
func (s *Store) Accounting() ports.AccountingRepository    { return accountingRepo{s} }
func (s *Store) Messages() ports.MessageRepository         { return messageRepo{s} }

// WithTx serializes transactions and restores the previous state when fn fails or panics
func (s *Store) WithTx(ctx context.Context, fn func(ports.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := (*s.db).clone()
	s.mu.Unlock()

	txStore := *s
	txStore.inTx = true

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
	}()

	if err := fn(&txStore); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) restore(snapshot *data) {
	s.mu.Lock()
	*s.db = snapshot
	s.mu.Unlock()
}

func (s *Store) with(fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(*s.db)
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

// Seeding helpers

// AddAcquirer stores a copy of acq, assigning an ID when zero
func (s *Store) AddAcquirer(acq *domain.Acquirer) *domain.Acquirer {
	_ = s.with(func(d *data) error {
		if acq.ID == 0 {
			acq.ID = d.id()
		}
		c := *acq
		d.acquirers[acq.ID] = &c
		return nil
	})
	return acq
}

// AddPartner stores a copy of p, assigning an ID when zero
func (s *Store) AddPartner(p *domain.Partner) *domain.Partner {
	_ = s.with(func(d *data) error {
		if p.ID == 0 {
			p.ID = d.id()
		}
		c := *p
		d.partners[p.ID] = &c
		return nil
	})
	return p
}

// AddCurrency stores a copy of c
func (s *Store) AddCurrency(c *domain.Currency) {
	_ = s.with(func(d *data) error {
		cur := *c
		d.currencies[c.Code] = &cur
		return nil
	})
}

// AddInvoice stores a copy of inv, assigning an ID when zero
func (s *Store) AddInvoice(inv *domain.Invoice) *domain.Invoice {
	_ = s.with(func(d *data) error {
		if inv.ID == 0 {
			inv.ID = d.id()
		}
		c := *inv
		d.invoices[inv.ID] = &c
		return nil
	})
	return inv
}

// AddToken stores a copy of t, assigning an ID when zero
func (s *Store) AddToken(t *domain.Token) *domain.Token {
	_ = s.with(func(d *data) error {
		if t.ID == 0 {
			t.ID = d.id()
		}
		c := *t
		d.tokens[t.ID] = &c
		return nil
	})
	return t
}

// Payments returns every stored payment ordered by ID
func (s *Store) Payments() []*domain.Payment {
	var out []*domain.Payment
	_ = s.with(func(d *data) error {
		for _, p := range d.payments {
			c := *p
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllTransactions returns every stored transaction ordered by ID
func (s *Store) AllTransactions() []*domain.Transaction {
	var out []*domain.Transaction
	_ = s.with(func(d *data) error {
		for _, t := range d.transactions {
			out = append(out, t.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllMessages returns every posted document message in insertion order
func (s *Store) AllMessages() []*domain.DocumentMessage {
	var out []*domain.DocumentMessage
	_ = s.with(func(d *data) error {
		for _, m := range d.messages {
			c := *m
			out = append(out, &c)
		}
		return nil
	})
	return out
}

type transactionRepo struct{ s *Store }

// acquirerReferenceTaken mirrors the unique (provider, acquirer_reference) index
func (d *data) acquirerReferenceTaken(tx *domain.Transaction) bool {
	if tx.AcquirerReference == "" {
		return false
	}
	for _, existing := range d.transactions {
		if existing.ID != tx.ID && existing.Provider == tx.Provider && existing.AcquirerReference == tx.AcquirerReference {
			return true
		}
	}
	return false
}

func acquirerReferenceConflict(tx *domain.Transaction) error {
	return domain.ErrTransientConflict.
		WithDetail("provider", tx.Provider).
		WithDetail("acquirer_reference", tx.AcquirerReference)
}

func (r transactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	return r.s.with(func(d *data) error {
		for _, existing := range d.transactions {
			if existing.Reference == tx.Reference {
				return domain.ErrTxnReferenceConflict.WithDetail("reference", tx.Reference)
			}
		}
		if d.acquirerReferenceTaken(tx) {
			return acquirerReferenceConflict(tx)
		}
		tx.ID = d.id()
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = r.s.now()
		}
		if tx.LastStateChange.IsZero() {
			tx.LastStateChange = tx.CreatedAt
		}
		d.transactions[tx.ID] = tx.Clone()
		return nil
	})
}

func (r transactionRepo) Update(ctx context.Context, tx *domain.Transaction) error {
	if r.s.OnTransactionUpdate != nil {
		if err := r.s.OnTransactionUpdate(tx); err != nil {
			return err
		}
	}
	return r.s.with(func(d *data) error {
		existing, ok := d.transactions[tx.ID]
		if !ok {
			return domain.ErrTxnNotFound
		}
		if existing.Reference != tx.Reference {
			return fmt.Errorf("reference of transaction %d is immutable", tx.ID)
		}
		if d.acquirerReferenceTaken(tx) {
			return acquirerReferenceConflict(tx)
		}
		d.transactions[tx.ID] = tx.Clone()
		return nil
	})
}

func (r transactionRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.s.with(func(d *data) error {
		tx, ok := d.transactions[id]
		if !ok {
			return domain.ErrTxnNotFound
		}
		out = tx.Clone()
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no row lock: WithTx already runs one transaction at a time
func (r transactionRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r transactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return r.find(func(tx *domain.Transaction) bool { return tx.Reference == reference })
}

func (r transactionRepo) GetByAcquirerReference(ctx context.Context, provider, acquirerReference string) (*domain.Transaction, error) {
	return r.find(func(tx *domain.Transaction) bool {
		return tx.Provider == provider && tx.AcquirerReference == acquirerReference
	})
}

func (r transactionRepo) find(match func(*domain.Transaction) bool) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.s.with(func(d *data) error {
		for _, tx := range d.transactions {
			if match(tx) && (out == nil || tx.ID < out.ID) {
				out = tx
			}
		}
		if out == nil {
			return domain.ErrTxnNotFound
		}
		out = out.Clone()
		return nil
	})
	return out, err
}

func (r transactionRepo) filter(match func(*domain.Transaction) bool) []*domain.Transaction {
	var out []*domain.Transaction
	_ = r.s.with(func(d *data) error {
		for _, tx := range d.transactions {
			if match(tx) {
				out = append(out, tx.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r transactionRepo) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Transaction, error) {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return r.filter(func(tx *domain.Transaction) bool { return wanted[tx.ID] }), nil
}

func (r transactionRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	_, err := r.GetByReference(ctx, reference)
	if errors.Is(err, domain.ErrTxnNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r transactionRepo) ListReferencesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var refs []string
	for _, tx := range r.filter(func(tx *domain.Transaction) bool { return strings.HasPrefix(tx.Reference, prefix) }) {
		refs = append(refs, tx.Reference)
	}
	return refs, nil
}

func (r transactionRepo) ListRefunds(ctx context.Context, sourceID int64) ([]*domain.Transaction, error) {
	return r.filter(func(tx *domain.Transaction) bool {
		return tx.IsRefund() && tx.SourceTransactionID != nil && *tx.SourceTransactionID == sourceID
	}), nil
}

func (r transactionRepo) ListPostProcessingCandidates(ctx context.Context, f ports.PostProcessingFilter) ([]*domain.Transaction, error) {
	out := r.filter(func(tx *domain.Transaction) bool {
		if tx.State != domain.TransactionStateDone || tx.IsPostProcessed {
			return false
		}
		if tx.LastStateChange.Before(f.GiveUpBefore) {
			return false
		}
		return !tx.LastStateChange.After(f.ClientHandledBefore) || tx.IsRefund()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type acquirerRepo struct{ s *Store }

func (r acquirerRepo) GetByID(ctx context.Context, id int64) (*domain.Acquirer, error) {
	var out *domain.Acquirer
	err := r.s.with(func(d *data) error {
		a, ok := d.acquirers[id]
		if !ok {
			return domain.ErrAcquirerNotFound
		}
		c := *a
		out = &c
		return nil
	})
	return out, err
}

func (r acquirerRepo) ListByProvider(ctx context.Context, provider string) ([]*domain.Acquirer, error) {
	var out []*domain.Acquirer
	_ = r.s.with(func(d *data) error {
		for _, a := range d.acquirers {
			if a.Provider == provider {
				c := *a
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(ctx context.Context, t *domain.Token) error {
	return r.s.with(func(d *data) error {
		t.ID = d.id()
		c := *t
		d.tokens[t.ID] = &c
		return nil
	})
}

func (r tokenRepo) GetByID(ctx context.Context, id int64) (*domain.Token, error) {
	var out *domain.Token
	err := r.s.with(func(d *data) error {
		t, ok := d.tokens[id]
		if !ok {
			return domain.ErrTokenNotFound
		}
		c := *t
		out = &c
		return nil
	})
	return out, err
}

type partnerRepo struct{ s *Store }

func (r partnerRepo) GetByID(ctx context.Context, id int64) (*domain.Partner, error) {
	var out *domain.Partner
	err := r.s.with(func(d *data) error {
		p, ok := d.partners[id]
		if !ok {
			return domain.ErrPartnerNotFound
		}
		c := *p
		out = &c
		return nil
	})
	return out, err
}

type accountingRepo struct{ s *Store }

func (r accountingRepo) GetCurrency(ctx context.Context, code string) (*domain.Currency, error) {
	var out *domain.Currency
	err := r.s.with(func(d *data) error {
		c, ok := d.currencies[code]
		if !ok {
			return domain.ErrCurrencyNotFound
		}
		cur := *c
		out = &cur
		return nil
	})
	return out, err
}

func (r accountingRepo) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := r.s.with(func(d *data) error {
		inv, ok := d.invoices[id]
		if !ok {
			return domain.ErrInvoiceNotFound
		}
		c := *inv
		out = &c
		return nil
	})
	return out, err
}

func (r accountingRepo) ListInvoices(ctx context.Context, ids []int64) ([]*domain.Invoice, error) {
	var out []*domain.Invoice
	_ = r.s.with(func(d *data) error {
		for _, id := range ids {
			if inv, ok := d.invoices[id]; ok {
				c := *inv
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, nil
}

func (r accountingRepo) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	return r.s.with(func(d *data) error {
		if _, ok := d.invoices[inv.ID]; !ok {
			return domain.ErrInvoiceNotFound
		}
		c := *inv
		d.invoices[inv.ID] = &c
		return nil
	})
}

func (r accountingRepo) CreatePayment(ctx context.Context, p *domain.Payment) error {
	return r.s.with(func(d *data) error {
		for _, existing := range d.payments {
			if existing.TransactionID == p.TransactionID {
				return domain.ErrTransientConflict.WithDetail("transaction_id", p.TransactionID)
			}
		}
		p.ID = d.id()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = r.s.now()
		}
		c := *p
		d.payments[p.ID] = &c
		return nil
	})
}

func (r accountingRepo) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.s.with(func(d *data) error {
		p, ok := d.payments[id]
		if !ok {
			return domain.ErrPaymentNotFound
		}
		c := *p
		out = &c
		return nil
	})
	return out, err
}

func (r accountingRepo) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	return r.s.with(func(d *data) error {
		if _, ok := d.payments[p.ID]; !ok {
			return domain.ErrPaymentNotFound
		}
		c := *p
		d.payments[p.ID] = &c
		return nil
	})
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, msg *domain.DocumentMessage) error {
	return r.s.with(func(d *data) error {
		msg.ID = d.id()
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = r.s.now()
		}
		c := *msg
		d.messages = append(d.messages, &c)
		return nil
	})
}

func (r messageRepo) ListByDocument(ctx context.Context, docType domain.DocumentType, docID int64) ([]*domain.DocumentMessage, error) {
	var out []*domain.DocumentMessage
	_ = r.s.with(func(d *data) error {
		for _, m := range d.messages {
			if m.DocumentType == docType && m.DocumentID == docID {
				c := *m
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, nil
}
