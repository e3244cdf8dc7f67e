package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/settlement-bridge/settlement"
)

const obligationsSchema = `
	-- Obligations are created by the obligations ledger's owner
	CREATE TABLE IF NOT EXISTS obligations (
		id INTEGER PRIMARY KEY,
		unit_code TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_obligations_unit
		ON obligations(unit_code);

	CREATE TABLE IF NOT EXISTS installments (
		obligation_id INTEGER NOT NULL REFERENCES obligations(id),
		number INTEGER NOT NULL,
		description TEXT,
		due_date TEXT,
		amount TEXT NOT NULL,
		fee TEXT NOT NULL,
		PRIMARY KEY (obligation_id, number)
	);

	CREATE TABLE IF NOT EXISTS orders (
		code TEXT PRIMARY KEY,
		payer_name TEXT,
		payer_code TEXT,
		unit_code TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: an obligation is billed by at most one order
	CREATE TABLE IF NOT EXISTS order_lines (
		order_code TEXT NOT NULL REFERENCES orders(code),
		obligation_id INTEGER NOT NULL UNIQUE REFERENCES obligations(id)
	);

	CREATE INDEX IF NOT EXISTS idx_order_lines_order
		ON order_lines(order_code);

	CREATE TABLE IF NOT EXISTS order_reversals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reversal_date TEXT NOT NULL,
		order_code TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
`

// Obligations is the obligations ledger (B) on SQLite.
type Obligations struct {
	base
}

// NewObligations opens the obligations ledger at dbPath.
// Use ":memory:" for an in-memory database.
func NewObligations(dbPath string, opts ...Option) (*Obligations, error) {
	b, err := open(dbPath, obligationsSchema, opts)
	if err != nil {
		return nil, err
	}
	return &Obligations{base: b}, nil
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

// SaveObligation upserts an obligation and replaces its installment
// schedule. Used by the seeder.
func (s *Obligations) SaveObligation(ctx context.Context, o settlement.Obligation, installments []settlement.Installment) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO obligations (id, unit_code, amount) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET unit_code = excluded.unit_code, amount = excluded.amount
	`, o.ID, o.UnitCode, o.Amount)
	if err != nil {
		return fmt.Errorf("failed to save obligation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM installments WHERE obligation_id = ?", o.ID); err != nil {
		return err
	}
	for _, inst := range installments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO installments (obligation_id, number, description, due_date, amount, fee)
			VALUES (?, ?, ?, ?, ?, ?)
		`, o.ID, inst.Number, nullString(inst.Description), nullString(inst.DueDate), inst.Amount, inst.Fee)
		if err != nil {
			return fmt.Errorf("failed to save installment %d: %w", inst.Number, err)
		}
	}
	return tx.Commit()
}

// ListUnbilledObligations returns the unit's obligations not referenced by
// any order line.
func (s *Obligations) ListUnbilledObligations(ctx context.Context, unitCode string) ([]settlement.Obligation, error) {
	return s.queryObligations(ctx, `
		SELECT o.id, o.unit_code, o.amount
		FROM obligations o
		WHERE o.unit_code = ?
		  AND NOT EXISTS (SELECT 1 FROM order_lines l WHERE l.obligation_id = o.id)
		ORDER BY o.id
	`, unitCode)
}

// ListOrderObligations returns the obligations billed by an order.
func (s *Obligations) ListOrderObligations(ctx context.Context, code string) ([]settlement.Obligation, error) {
	return s.queryObligations(ctx, `
		SELECT o.id, o.unit_code, o.amount
		FROM obligations o
		JOIN order_lines l ON l.obligation_id = o.id
		WHERE l.order_code = ?
		ORDER BY o.id
	`, code)
}

func (s *Obligations) queryObligations(ctx context.Context, query string, args ...any) ([]settlement.Obligation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlement.Obligation
	for rows.Next() {
		var o settlement.Obligation
		if err := rows.Scan(&o.ID, &o.UnitCode, &o.Amount); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// ListInstallments returns an obligation's schedule by installment number.
func (s *Obligations) ListInstallments(ctx context.Context, obligationID int64) ([]settlement.Installment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT number, description, due_date, amount, fee
		FROM installments WHERE obligation_id = ?
		ORDER BY number
	`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlement.Installment
	for rows.Next() {
		var inst settlement.Installment
		var description, dueDate sql.NullString
		if err := rows.Scan(&inst.Number, &description, &dueDate, &inst.Amount, &inst.Fee); err != nil {
			return nil, err
		}
		inst.Description = description.String
		inst.DueDate = dueDate.String
		result = append(result, inst)
	}
	return result, rows.Err()
}

// =============================================================================
// ORDERS
// =============================================================================

// CountOrders returns the number of orders ever created.
func (s *Obligations) CountOrders(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&count)
	return count, err
}

// CreateOrder inserts an order and its order lines atomically.
func (s *Obligations) CreateOrder(ctx context.Context, o settlement.Order, obligationIDs []int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (code, payer_name, payer_code, unit_code, amount, paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.Code, nullString(o.PayerName), nullString(o.PayerCode), o.UnitCode, o.Amount, o.Paid, now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return settlement.ErrOrderConflict
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, id := range obligationIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO order_lines (order_code, obligation_id) VALUES (?, ?)", o.Code, id)
		if err != nil {
			if isUniqueConstraintError(err) {
				return settlement.ErrOrderConflict
			}
			return fmt.Errorf("failed to insert order line for obligation %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetOrder retrieves an order by code.
func (s *Obligations) GetOrder(ctx context.Context, code string) (*settlement.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var o settlement.Order
	var payerName, payerCode sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT code, payer_name, payer_code, unit_code, amount, paid
		FROM orders WHERE code = ?
	`, code).Scan(&o.Code, &payerName, &payerCode, &o.UnitCode, &o.Amount, &o.Paid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.PayerName = payerName.String
	o.PayerCode = payerCode.String
	return &o, nil
}

// SetOrderPaid flips the paid flag if it currently holds !paid.
func (s *Obligations) SetOrderPaid(ctx context.Context, code string, paid bool) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET paid = ? WHERE code = ? AND paid = ?", paid, code, !paid)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if paid {
			return settlement.ErrAlreadyPaid
		}
		return settlement.ErrOrderNotPaid
	}
	return nil
}

// =============================================================================
// REVERSALS
// =============================================================================

// CreateReversal inserts the obligations half of a reversal pair and
// returns its generated id.
func (s *Obligations) CreateReversal(ctx context.Context, r settlement.OrderReversal) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO order_reversals (reversal_date, order_code, amount, created_at)
		VALUES (?, ?, ?, ?)
	`, r.ReversalDate, r.OrderCode, r.Amount, now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert order reversal: %w", err)
	}
	return res.LastInsertId()
}

// GetReversal retrieves an order reversal by id.
func (s *Obligations) GetReversal(ctx context.Context, id int64) (*settlement.OrderReversal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var r settlement.OrderReversal
	err := s.db.QueryRowContext(ctx,
		"SELECT id, reversal_date, order_code, amount FROM order_reversals WHERE id = ?", id,
	).Scan(&r.ID, &r.ReversalDate, &r.OrderCode, &r.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReversal removes an order reversal.
func (s *Obligations) DeleteReversal(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, "DELETE FROM order_reversals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete order reversal: %w", err)
	}
	return nil
}

// Reset clears all data (for testing and reseeding).
func (s *Obligations) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM order_lines;
		DELETE FROM order_reversals;
		DELETE FROM orders;
		DELETE FROM installments;
		DELETE FROM obligations;
	`)
	return err
}

var _ settlement.ObligationsLedger = (*Obligations)(nil)
