package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/settlement-bridge/settlement"
)

const customerSchema = `
	CREATE TABLE IF NOT EXISTS payers (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	-- Payments (deleted only by a reversal)
	CREATE TABLE IF NOT EXISTS payments (
		transaction_id INTEGER PRIMARY KEY AUTOINCREMENT,
		payment_date TEXT NOT NULL,
		payer_code TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		invoice_name TEXT,
		tax_id TEXT,
		payment_location TEXT,
		order_code TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_order
		ON payments(order_code);

	CREATE TABLE IF NOT EXISTS payment_details (
		transaction_id INTEGER NOT NULL,
		installment_number INTEGER NOT NULL,
		installment_amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_details_tx
		ON payment_details(transaction_id, installment_number);

	-- Reversal ids are supplied by the caller and must be unique
	CREATE TABLE IF NOT EXISTS reversals (
		reversal_id INTEGER PRIMARY KEY,
		reversal_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		obligations_reversal_id INTEGER NOT NULL,
		payer_code TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
`

// Customer is the customer ledger (A) on SQLite.
type Customer struct {
	base
}

// NewCustomer opens the customer ledger at dbPath.
// Use ":memory:" for an in-memory database.
func NewCustomer(dbPath string, opts ...Option) (*Customer, error) {
	b, err := open(dbPath, customerSchema, opts)
	if err != nil {
		return nil, err
	}
	return &Customer{base: b}, nil
}

// =============================================================================
// PAYERS
// =============================================================================

// SavePayer inserts or renames a payer. Payers belong to the customer
// ledger's owner; this is used by the seeder.
func (s *Customer) SavePayer(ctx context.Context, p settlement.Payer) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payers (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name
	`, p.Code, p.Name)
	if err != nil {
		return fmt.Errorf("failed to save payer: %w", err)
	}
	return nil
}

// GetPayer retrieves a payer by code.
func (s *Customer) GetPayer(ctx context.Context, code string) (*settlement.Payer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var p settlement.Payer
	err := s.db.QueryRowContext(ctx,
		"SELECT code, name FROM payers WHERE code = ?", code,
	).Scan(&p.Code, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// CreatePayment inserts a payment and returns its transaction id.
func (s *Customer) CreatePayment(ctx context.Context, p settlement.Payment) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payments
		(payment_date, payer_code, total_amount, invoice_name, tax_id,
		 payment_location, order_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.PaymentDate,
		p.PayerCode,
		p.TotalAmount,
		nullString(p.InvoiceName),
		nullString(p.TaxID),
		nullString(p.PaymentLocation),
		p.OrderCode,
		now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert payment: %w", err)
	}
	return res.LastInsertId()
}

// GetPayment retrieves a payment by transaction id.
func (s *Customer) GetPayment(ctx context.Context, transactionID int64) (*settlement.Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var p settlement.Payment
	var invoiceName, taxID, location sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, payment_date, payer_code, total_amount,
		       invoice_name, tax_id, payment_location, order_code
		FROM payments WHERE transaction_id = ?
	`, transactionID).Scan(
		&p.TransactionID, &p.PaymentDate, &p.PayerCode, &p.TotalAmount,
		&invoiceName, &taxID, &location, &p.OrderCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.InvoiceName = invoiceName.String
	p.TaxID = taxID.String
	p.PaymentLocation = location.String
	return &p, nil
}

// DeletePayment removes a payment.
func (s *Customer) DeletePayment(ctx context.Context, transactionID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, "DELETE FROM payments WHERE transaction_id = ?", transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

// =============================================================================
// PAYMENT DETAILS
// =============================================================================

// CreatePaymentDetails inserts all detail rows in one transaction.
func (s *Customer) CreatePaymentDetails(ctx context.Context, transactionID int64, details []settlement.PaymentDetail) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO payment_details (transaction_id, installment_number, installment_amount)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range details {
		if _, err := stmt.ExecContext(ctx, transactionID, d.InstallmentNumber, d.InstallmentAmount); err != nil {
			return fmt.Errorf("failed to insert payment detail %d: %w", d.InstallmentNumber, err)
		}
	}
	return tx.Commit()
}

// ListPaymentDetails returns a payment's details by installment number.
func (s *Customer) ListPaymentDetails(ctx context.Context, transactionID int64) ([]settlement.PaymentDetail, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, installment_number, installment_amount
		FROM payment_details WHERE transaction_id = ?
		ORDER BY installment_number
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []settlement.PaymentDetail
	for rows.Next() {
		var d settlement.PaymentDetail
		if err := rows.Scan(&d.TransactionID, &d.InstallmentNumber, &d.InstallmentAmount); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// DeletePaymentDetails removes every detail row of a payment.
func (s *Customer) DeletePaymentDetails(ctx context.Context, transactionID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, "DELETE FROM payment_details WHERE transaction_id = ?", transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete payment details: %w", err)
	}
	return nil
}

// =============================================================================
// REVERSALS
// =============================================================================

// ReversalExists reports whether a reversal id is taken.
func (s *Customer) ReversalExists(ctx context.Context, reversalID int64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reversals WHERE reversal_id = ?", reversalID,
	).Scan(&count)
	return count > 0, err
}

// CreateReversal inserts the customer half of a reversal pair.
func (s *Customer) CreateReversal(ctx context.Context, r settlement.CustomerReversal) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reversals
		(reversal_id, reversal_date, amount, obligations_reversal_id, payer_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.ReversalDate, r.Amount, r.ObligationsReversalID, r.PayerCode, now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return settlement.ErrDuplicateReversal
		}
		return fmt.Errorf("failed to insert reversal: %w", err)
	}
	return nil
}

// DeleteReversal removes a reversal.
func (s *Customer) DeleteReversal(ctx context.Context, reversalID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, "DELETE FROM reversals WHERE reversal_id = ?", reversalID)
	if err != nil {
		return fmt.Errorf("failed to delete reversal: %w", err)
	}
	return nil
}

// Reset clears all data (for testing and reseeding).
func (s *Customer) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM payment_details;
		DELETE FROM payments;
		DELETE FROM reversals;
		DELETE FROM payers;
	`)
	return err
}

var _ settlement.CustomerLedger = (*Customer)(nil)
