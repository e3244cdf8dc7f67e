/*
store.go - Ledger client interfaces

PURPOSE:
  Defines what the workflows need from each ledger. Each client offers
  point queries and writes against one store and knows nothing about the
  other store.

KEY INTERFACES:
  CustomerLedger:    payers, payments, payment details, customer reversals
  ObligationsLedger: obligations, installments, orders, order reversals

CONVENTIONS:
  - Getters return (nil, nil) when the row does not exist.
  - List methods return rows in a deterministic order (ascending id or
    installment number).
  - Multi-row writes (order-lines, payment details) are a single confirmed
    write: all rows land or none do.
  - SetOrderPaid is conditional on the current flag, which makes the flip
    exactly-once under concurrent callers.

IMPLEMENTATIONS:
  - settlement/store/memory.go: In-memory for tests and development
  - store/sqlite:               SQLite
  - store/postgres:             PostgreSQL (pgx)
*/
package settlement

import "context"

// CustomerLedger is the client for ledger A.
type CustomerLedger interface {
	GetPayer(ctx context.Context, code string) (*Payer, error)

	ReversalExists(ctx context.Context, reversalID int64) (bool, error)

	GetPayment(ctx context.Context, transactionID int64) (*Payment, error)
	ListPaymentDetails(ctx context.Context, transactionID int64) ([]PaymentDetail, error)

	// CreatePayment inserts the payment and returns its generated
	// transaction id.
	CreatePayment(ctx context.Context, p Payment) (int64, error)

	// CreatePaymentDetails inserts all detail rows for a payment atomically.
	CreatePaymentDetails(ctx context.Context, transactionID int64, details []PaymentDetail) error

	DeletePaymentDetails(ctx context.Context, transactionID int64) error
	DeletePayment(ctx context.Context, transactionID int64) error

	// CreateReversal fails with ErrDuplicateReversal if the id exists.
	CreateReversal(ctx context.Context, r CustomerReversal) error

	// DeleteReversal is used only to compensate a failed reversal.
	DeleteReversal(ctx context.Context, reversalID int64) error
}

// ObligationsLedger is the client for ledger B.
type ObligationsLedger interface {
	// ListUnbilledObligations returns the unit's obligations not yet
	// referenced by any order-line.
	ListUnbilledObligations(ctx context.Context, unitCode string) ([]Obligation, error)

	CountOrders(ctx context.Context) (int, error)

	// CreateOrder inserts the order and one order-line per obligation in a
	// single local transaction. Returns ErrOrderConflict if the code is
	// taken or an obligation is already covered.
	CreateOrder(ctx context.Context, o Order, obligationIDs []int64) error

	GetOrder(ctx context.Context, code string) (*Order, error)
	ListOrderObligations(ctx context.Context, code string) ([]Obligation, error)
	ListInstallments(ctx context.Context, obligationID int64) ([]Installment, error)

	// SetOrderPaid flips the paid flag only if it currently holds !paid.
	// A no-op flip returns ErrAlreadyPaid (paid=true) or ErrOrderNotPaid
	// (paid=false).
	SetOrderPaid(ctx context.Context, code string, paid bool) error

	// CreateReversal inserts the reversal and returns its generated id.
	CreateReversal(ctx context.Context, r OrderReversal) (int64, error)

	// DeleteReversal is used only to compensate a failed reversal.
	DeleteReversal(ctx context.Context, id int64) error
}
