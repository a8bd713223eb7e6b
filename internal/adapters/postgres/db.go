package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"go.uber.org/zap"
)

// DBTX is satisfied by both the pool and an open transaction.
// Begin on a transaction opens a savepoint.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ DBTX = (*pgxpool.Pool)(nil)
	_ DBTX = (pgx.Tx)(nil)
)

// Store implements ports.Store on PostgreSQL
type Store struct {
	db     DBTX
	inTx   bool
	logger *zap.Logger
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a store running each statement on its own pooled connection
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{db: pool, logger: logger}
}

func (s *Store) Transactions() ports.TransactionRepository { return &transactionRepository{db: s.db} }
func (s *Store) Acquirers() ports.AcquirerRepository       { return &acquirerRepository{db: s.db} }
func (s *Store) Tokens() ports.TokenRepository             { return &tokenRepository{db: s.db} }
func (s *Store) Partners() ports.PartnerRepository         { return &partnerRepository{db: s.db} }
func (s *Store) Accounting() ports.AccountingRepository    { return &accountingRepository{db: s.db} }
func (s *Store) Messages() ports.MessageRepository         { return &messageRepository{db: s.db} }

// WithTx executes fn within a database transaction.
// Called on a store that is already transactional, it opens a savepoint instead.
func (s *Store) WithTx(ctx context.Context, fn func(ports.Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}

	// Ensure rollback on panic
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&Store{db: tx, inTx: true, logger: s.logger}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error("Failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err),
			)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
