package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/warp/settlement-bridge/settlement"
)

const obligationsSchema = `
	CREATE TABLE IF NOT EXISTS obligations (
		id BIGINT PRIMARY KEY,
		unit_code TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_obligations_unit ON obligations(unit_code);

	CREATE TABLE IF NOT EXISTS installments (
		obligation_id BIGINT NOT NULL REFERENCES obligations(id),
		number INT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date VARCHAR(8) NOT NULL DEFAULT '',
		amount NUMERIC(14,2) NOT NULL,
		fee NUMERIC(14,2) NOT NULL DEFAULT 0,
		PRIMARY KEY (obligation_id, number)
	);

	CREATE TABLE IF NOT EXISTS orders (
		code TEXT PRIMARY KEY,
		payer_name TEXT NOT NULL DEFAULT '',
		payer_code VARCHAR(14) NOT NULL DEFAULT '',
		unit_code TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS order_lines (
		order_code TEXT NOT NULL REFERENCES orders(code),
		obligation_id BIGINT NOT NULL UNIQUE REFERENCES obligations(id)
	);

	CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_code);

	CREATE TABLE IF NOT EXISTS order_reversals (
		id BIGSERIAL PRIMARY KEY,
		reversal_date VARCHAR(8) NOT NULL,
		order_code TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

// Obligations is the obligations ledger (B) on PostgreSQL.
type Obligations struct {
	base
}

// NewObligations connects to the obligations ledger and migrates its schema.
func NewObligations(ctx context.Context, dsn string, opts ...Option) (*Obligations, error) {
	b, err := connect(ctx, dsn, obligationsSchema, opts)
	if err != nil {
		return nil, err
	}
	return &Obligations{base: b}, nil
}

// SaveObligation upserts an obligation and replaces its schedule. Used by
// the seeder.
func (s *Obligations) SaveObligation(ctx context.Context, o settlement.Obligation, installments []settlement.Installment) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO obligations (id, unit_code, amount) VALUES ($1, $2, $3::numeric)
			ON CONFLICT (id) DO UPDATE SET unit_code = EXCLUDED.unit_code, amount = EXCLUDED.amount
		`, o.ID, o.UnitCode, o.Amount.String())
		if err != nil {
			return fmt.Errorf("failed to save obligation: %w", err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM installments WHERE obligation_id = $1", o.ID); err != nil {
			return err
		}
		for _, inst := range installments {
			_, err := tx.Exec(ctx, `
				INSERT INTO installments (obligation_id, number, description, due_date, amount, fee)
				VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
			`, o.ID, inst.Number, inst.Description, inst.DueDate, inst.Amount.String(), inst.Fee.String())
			if err != nil {
				return fmt.Errorf("failed to save installment %d: %w", inst.Number, err)
			}
		}
		return nil
	})
}

func (s *Obligations) ListUnbilledObligations(ctx context.Context, unitCode string) ([]settlement.Obligation, error) {
	return s.queryObligations(ctx, `
		SELECT o.id, o.unit_code, o.amount::text
		FROM obligations o
		WHERE o.unit_code = $1
		  AND NOT EXISTS (SELECT 1 FROM order_lines l WHERE l.obligation_id = o.id)
		ORDER BY o.id
	`, unitCode)
}

func (s *Obligations) ListOrderObligations(ctx context.Context, code string) ([]settlement.Obligation, error) {
	return s.queryObligations(ctx, `
		SELECT o.id, o.unit_code, o.amount::text
		FROM obligations o
		JOIN order_lines l ON l.obligation_id = o.id
		WHERE l.order_code = $1
		ORDER BY o.id
	`, code)
}

func (s *Obligations) queryObligations(ctx context.Context, query string, args ...any) ([]settlement.Obligation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlement.Obligation
	for rows.Next() {
		var o settlement.Obligation
		var amount string
		if err := rows.Scan(&o.ID, &o.UnitCode, &amount); err != nil {
			return nil, err
		}
		if o.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Obligations) ListInstallments(ctx context.Context, obligationID int64) ([]settlement.Installment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT number, description, due_date, amount::text, fee::text
		FROM installments WHERE obligation_id = $1
		ORDER BY number
	`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlement.Installment
	for rows.Next() {
		var inst settlement.Installment
		var amount, fee string
		if err := rows.Scan(&inst.Number, &inst.Description, &inst.DueDate, &amount, &fee); err != nil {
			return nil, err
		}
		if inst.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if inst.Fee, err = parseAmount(fee); err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

func (s *Obligations) CountOrders(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&count)
	return count, err
}

// CreateOrder inserts the order and its lines in one transaction.
func (s *Obligations) CreateOrder(ctx context.Context, o settlement.Order, obligationIDs []int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (code, payer_name, payer_code, unit_code, amount, paid)
			VALUES ($1, $2, $3, $4, $5::numeric, $6)
		`, o.Code, o.PayerName, o.PayerCode, o.UnitCode, o.Amount.String(), o.Paid)
		if err != nil {
			return err
		}
		if len(obligationIDs) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, id := range obligationIDs {
			batch.Queue("INSERT INTO order_lines (order_code, obligation_id) VALUES ($1, $2)", o.Code, id)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isUniqueViolation(err) {
			return settlement.ErrOrderConflict
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *Obligations) GetOrder(ctx context.Context, code string) (*settlement.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var o settlement.Order
	var amount string
	err := s.pool.QueryRow(ctx, `
		SELECT code, payer_name, payer_code, unit_code, amount::text, paid
		FROM orders WHERE code = $1
	`, code).Scan(&o.Code, &o.PayerName, &o.PayerCode, &o.UnitCode, &amount, &o.Paid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if o.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &o, nil
}

// SetOrderPaid flips the paid flag if it currently holds !paid.
func (s *Obligations) SetOrderPaid(ctx context.Context, code string, paid bool) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		"UPDATE orders SET paid = $1 WHERE code = $2 AND paid = $3", paid, code, !paid)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if paid {
			return settlement.ErrAlreadyPaid
		}
		return settlement.ErrOrderNotPaid
	}
	return nil
}

func (s *Obligations) CreateReversal(ctx context.Context, r settlement.OrderReversal) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO order_reversals (reversal_date, order_code, amount)
		VALUES ($1, $2, $3::numeric)
		RETURNING id
	`, r.ReversalDate, r.OrderCode, r.Amount.String()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order reversal: %w", err)
	}
	return id, nil
}

// GetReversal retrieves an order reversal by id.
func (s *Obligations) GetReversal(ctx context.Context, id int64) (*settlement.OrderReversal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var r settlement.OrderReversal
	var amount string
	err := s.pool.QueryRow(ctx,
		"SELECT id, reversal_date, order_code, amount::text FROM order_reversals WHERE id = $1", id,
	).Scan(&r.ID, &r.ReversalDate, &r.OrderCode, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Obligations) DeleteReversal(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, "DELETE FROM order_reversals WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete order reversal: %w", err)
	}
	return nil
}

// Reset empties every obligations ledger table. For tests and the seeder.
func (s *Obligations) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE order_lines, order_reversals, orders, installments, obligations RESTART IDENTITY")
	return err
}

var _ settlement.ObligationsLedger = (*Obligations)(nil)
