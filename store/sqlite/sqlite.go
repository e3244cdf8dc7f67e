/*
Package sqlite provides SQLite-backed ledger clients.

PURPOSE:
  Implements settlement.CustomerLedger and settlement.ObligationsLedger on
  two separate SQLite databases, one per ledger. In production the ledgers
  are remote PostgreSQL databases (see store/postgres); the SQL is the same
  up to dialect.

INTERFACES IMPLEMENTED:
  settlement.CustomerLedger:    Customer
  settlement.ObligationsLedger: Obligations

KEY TABLES:
  customer ledger:    payers, payments, payment_details, reversals
  obligations ledger: obligations, installments, orders, order_lines,
                      order_reversals

CONSTRAINTS:
  - order_lines.obligation_id is UNIQUE: an obligation belongs to at most
    one order, even under concurrent generation.
  - reversals.reversal_id is the PRIMARY KEY: caller-supplied reversal ids
    are unique.
  - orders.paid flips only through a conditional UPDATE.

AMOUNTS:
  Stored as TEXT through decimal.Decimal's Valuer/Scanner so no amount ever
  passes through float64.

USAGE:
  customer, err := sqlite.NewCustomer("./data/customer.db", sqlite.WithPoolSize(5))
  if err != nil {
      log.Fatal(err)
  }
  defer customer.Close()

MIGRATION:
  Schema is auto-migrated on open.

SEE ALSO:
  - settlement/store.go: Interface definitions
  - settlement/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Default pool bounds, matching the ledger connection limits.
const (
	DefaultPoolSize     = 5
	DefaultQueryTimeout = 5 * time.Second
)

// Option configures a store.
type Option func(*options)

type options struct {
	poolSize     int
	queryTimeout time.Duration
}

// WithPoolSize bounds the number of open connections.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
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

// base holds what both ledger stores share.
type base struct {
	db      *sql.DB
	timeout time.Duration
}

func open(dbPath, schema string, opts []Option) (base, error) {
	o := options{poolSize: DefaultPoolSize, queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return base{}, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a new, empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(o.poolSize)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return base{}, fmt.Errorf("failed to migrate database: %w", err)
	}

	return base{db: db, timeout: o.queryTimeout}, nil
}

// Close closes the database connection.
func (b *base) Close() error {
	return b.db.Close()
}

// Ping checks the database is reachable.
func (b *base) Ping(ctx context.Context) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return b.db.PingContext(ctx)
}

func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
