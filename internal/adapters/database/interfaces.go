package database

import (
	"github.com/kevin07696/payment-transactions/internal/adapters/postgres"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/pkg/observability"
)

// StoreProvider hands out the repository store backed by the pool
type StoreProvider interface {
	Store() ports.Store
}

var (
	_ StoreProvider        = (*PostgreSQLAdapter)(nil)
	_ observability.Pinger = (*PostgreSQLAdapter)(nil)
	_ ports.Store          = (*postgres.Store)(nil)
)
