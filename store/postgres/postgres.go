/*
Package postgres provides PostgreSQL-backed ledger clients.

PURPOSE:
  Implements settlement.CustomerLedger and settlement.ObligationsLedger
  with pgx connection pools, one pool per ledger. Each pool is bounded
  (default 5 connections) and every statement runs under a per-query
  timeout so a hung ledger cannot stall a workflow forever.

SCHEMA:
  Same tables and constraints as store/sqlite, with amounts in NUMERIC(14,2)
  columns. Migrate creates them if absent.

AMOUNTS:
  Amounts cross the wire as text (::numeric on the way in, ::text on the
  way out) and are parsed with decimal.NewFromString.

ERRORS:
  Unique violations (SQLSTATE 23505) map onto settlement.ErrOrderConflict
  and settlement.ErrDuplicateReversal.

SEE ALSO:
  - store/sqlite: same contracts on SQLite
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	DefaultPoolSize     = 5
	DefaultQueryTimeout = 5 * time.Second
)

// Option configures a store.
type Option func(*options)

type options struct {
	poolSize     int32
	queryTimeout time.Duration
}

// WithPoolSize bounds the pool's connections.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = int32(n)
		}
	}
}

// WithQueryTimeout bounds every statement issued by the store.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.queryTimeout = d
		}
	}
}

type base struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func connect(ctx context.Context, dsn, schema string, opts []Option) (base, error) {
	o := options{poolSize: DefaultPoolSize, queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return base{}, fmt.Errorf("unable to parse database config: %w", err)
	}
	config.MaxConns = o.poolSize

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return base{}, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, o.queryTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return base{}, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return base{}, fmt.Errorf("failed to migrate database: %w", err)
	}

	return base{pool: pool, timeout: o.queryTimeout}, nil
}

// Close releases every pooled connection.
func (b *base) Close() error {
	b.pool.Close()
	return nil
}

// Ping checks the database is reachable.
func (b *base) Ping(ctx context.Context) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return b.pool.Ping(ctx)
}

func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
