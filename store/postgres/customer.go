package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/warp/settlement-bridge/settlement"
)

const customerSchema = `
	CREATE TABLE IF NOT EXISTS payers (
		code VARCHAR(14) PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payments (
		transaction_id BIGSERIAL PRIMARY KEY,
		payment_date VARCHAR(8) NOT NULL,
		payer_code VARCHAR(14) NOT NULL,
		total_amount NUMERIC(14,2) NOT NULL,
		invoice_name VARCHAR(40) NOT NULL DEFAULT '',
		tax_id VARCHAR(8) NOT NULL DEFAULT '',
		payment_location VARCHAR(10) NOT NULL DEFAULT '',
		order_code TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS payment_details (
		transaction_id BIGINT NOT NULL,
		installment_number INT NOT NULL,
		installment_amount NUMERIC(14,2) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_details_tx
		ON payment_details(transaction_id, installment_number);

	CREATE TABLE IF NOT EXISTS reversals (
		reversal_id BIGINT PRIMARY KEY,
		reversal_date VARCHAR(8) NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		obligations_reversal_id BIGINT NOT NULL,
		payer_code VARCHAR(14) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

// Customer is the customer ledger (A) on PostgreSQL.
type Customer struct {
	base
}

// NewCustomer connects to the customer ledger and migrates its schema.
func NewCustomer(ctx context.Context, dsn string, opts ...Option) (*Customer, error) {
	b, err := connect(ctx, dsn, customerSchema, opts)
	if err != nil {
		return nil, err
	}
	return &Customer{base: b}, nil
}

// SavePayer inserts or renames a payer. Used by the seeder.
func (s *Customer) SavePayer(ctx context.Context, p settlement.Payer) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO payers (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
	`, p.Code, p.Name)
	if err != nil {
		return fmt.Errorf("failed to save payer: %w", err)
	}
	return nil
}

func (s *Customer) GetPayer(ctx context.Context, code string) (*settlement.Payer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var p settlement.Payer
	err := s.pool.QueryRow(ctx, "SELECT code, name FROM payers WHERE code = $1", code).Scan(&p.Code, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Customer) CreatePayment(ctx context.Context, p settlement.Payment) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO payments
		(payment_date, payer_code, total_amount, invoice_name, tax_id, payment_location, order_code)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
		RETURNING transaction_id
	`,
		p.PaymentDate, p.PayerCode, p.TotalAmount.String(),
		p.InvoiceName, p.TaxID, p.PaymentLocation, p.OrderCode,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert payment: %w", err)
	}
	return id, nil
}

func (s *Customer) GetPayment(ctx context.Context, transactionID int64) (*settlement.Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var p settlement.Payment
	var amount string
	err := s.pool.QueryRow(ctx, `
		SELECT transaction_id, payment_date, payer_code, total_amount::text,
		       invoice_name, tax_id, payment_location, order_code
		FROM payments WHERE transaction_id = $1
	`, transactionID).Scan(
		&p.TransactionID, &p.PaymentDate, &p.PayerCode, &amount,
		&p.InvoiceName, &p.TaxID, &p.PaymentLocation, &p.OrderCode,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.TotalAmount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Customer) DeletePayment(ctx context.Context, transactionID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, "DELETE FROM payments WHERE transaction_id = $1", transactionID); err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

// CreatePaymentDetails sends every detail row in one batch inside one
// transaction.
func (s *Customer) CreatePaymentDetails(ctx context.Context, transactionID int64, details []settlement.PaymentDetail) error {
	if len(details) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, d := range details {
			batch.Queue(`
				INSERT INTO payment_details (transaction_id, installment_number, installment_amount)
				VALUES ($1, $2, $3::numeric)
			`, transactionID, d.InstallmentNumber, d.InstallmentAmount.String())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert payment details: %w", err)
		}
		return nil
	})
}

func (s *Customer) ListPaymentDetails(ctx context.Context, transactionID int64) ([]settlement.PaymentDetail, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT transaction_id, installment_number, installment_amount::text
		FROM payment_details WHERE transaction_id = $1
		ORDER BY installment_number
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []settlement.PaymentDetail
	for rows.Next() {
		var d settlement.PaymentDetail
		var amount string
		if err := rows.Scan(&d.TransactionID, &d.InstallmentNumber, &amount); err != nil {
			return nil, err
		}
		if d.InstallmentAmount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (s *Customer) DeletePaymentDetails(ctx context.Context, transactionID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, "DELETE FROM payment_details WHERE transaction_id = $1", transactionID); err != nil {
		return fmt.Errorf("failed to delete payment details: %w", err)
	}
	return nil
}

func (s *Customer) ReversalExists(ctx context.Context, reversalID int64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM reversals WHERE reversal_id = $1)", reversalID,
	).Scan(&exists)
	return exists, err
}

func (s *Customer) CreateReversal(ctx context.Context, r settlement.CustomerReversal) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO reversals (reversal_id, reversal_date, amount, obligations_reversal_id, payer_code)
		VALUES ($1, $2, $3::numeric, $4, $5)
	`, r.ID, r.ReversalDate, r.Amount.String(), r.ObligationsReversalID, r.PayerCode)
	if err != nil {
		if isUniqueViolation(err) {
			return settlement.ErrDuplicateReversal
		}
		return fmt.Errorf("failed to insert reversal: %w", err)
	}
	return nil
}

func (s *Customer) DeleteReversal(ctx context.Context, reversalID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, "DELETE FROM reversals WHERE reversal_id = $1", reversalID); err != nil {
		return fmt.Errorf("failed to delete reversal: %w", err)
	}
	return nil
}

// Reset empties every customer ledger table. For tests and the seeder.
func (s *Customer) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE payment_details, payments, reversals, payers RESTART IDENTITY")
	return err
}

var _ settlement.CustomerLedger = (*Customer)(nil)
