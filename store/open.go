// Package store opens the ledger clients a configuration names.
//
// Each DSN picks its own backend (see config.Backend), so the two ledgers
// may live on different engines, as they do when one is a local SQLite
// file standing in for a remote PostgreSQL ledger.
package store

import (
	"context"
	"fmt"

	"github.com/warp/settlement-bridge/config"
	"github.com/warp/settlement-bridge/settlement"
	memory "github.com/warp/settlement-bridge/settlement/store"
	"github.com/warp/settlement-bridge/store/postgres"
	"github.com/warp/settlement-bridge/store/sqlite"
)

// CustomerStore is a customer ledger client the server can seed, ping and
// close.
type CustomerStore interface {
	settlement.CustomerLedger
	SavePayer(ctx context.Context, p settlement.Payer) error
	Ping(ctx context.Context) error
	Close() error
}

// ObligationsStore is an obligations ledger client the server can seed,
// ping and close.
type ObligationsStore interface {
	settlement.ObligationsLedger
	SaveObligation(ctx context.Context, o settlement.Obligation, installments []settlement.Installment) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects both ledgers. On error nothing is left open.
func Open(ctx context.Context, cfg *config.Config) (CustomerStore, ObligationsStore, error) {
	customer, err := OpenCustomer(ctx, cfg.CustomerDSN, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("customer ledger: %w", err)
	}
	obligations, err := OpenObligations(ctx, cfg.ObligationsDSN, cfg)
	if err != nil {
		customer.Close()
		return nil, nil, fmt.Errorf("obligations ledger: %w", err)
	}
	return customer, obligations, nil
}

// OpenCustomer opens a customer ledger client for dsn.
func OpenCustomer(ctx context.Context, dsn string, cfg *config.Config) (CustomerStore, error) {
	switch config.Backend(dsn) {
	case config.BackendMemory:
		return memory.NewCustomer(), nil
	case config.BackendPostgres:
		return postgres.NewCustomer(ctx, dsn,
			postgres.WithPoolSize(cfg.PoolSize),
			postgres.WithQueryTimeout(cfg.QueryTimeout))
	default:
		return sqlite.NewCustomer(dsn,
			sqlite.WithPoolSize(cfg.PoolSize),
			sqlite.WithQueryTimeout(cfg.QueryTimeout))
	}
}

// OpenObligations opens an obligations ledger client for dsn.
func OpenObligations(ctx context.Context, dsn string, cfg *config.Config) (ObligationsStore, error) {
	switch config.Backend(dsn) {
	case config.BackendMemory:
		return memory.NewObligations(), nil
	case config.BackendPostgres:
		return postgres.NewObligations(ctx, dsn,
			postgres.WithPoolSize(cfg.PoolSize),
			postgres.WithQueryTimeout(cfg.QueryTimeout))
	default:
		return sqlite.NewObligations(dsn,
			sqlite.WithPoolSize(cfg.PoolSize),
			sqlite.WithQueryTimeout(cfg.QueryTimeout))
	}
}
