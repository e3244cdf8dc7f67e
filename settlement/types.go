/*
Package settlement keeps a customer ledger and an obligations ledger
consistent across payment orders, payments and reversals.

PURPOSE:
  The two ledgers are owned by different systems and share no transaction
  boundary. This package is the orchestration layer between them: it turns a
  payer's outstanding obligations into a payable order, records payment
  against that order, and undoes a payment with paired reversal records.

KEY CONCEPTS IN THIS FILE (types.go):
  - Payer:         identity known to the customer ledger (read-only here)
  - Obligation:    a chargeable service in the obligations ledger
  - Installment:   optional schedule an obligation is split into
  - Order:         payable aggregate of a unit's unbilled obligations
  - Payment:       settlement record in the customer ledger
  - Reversal rows: one per ledger, correlated by ids

LIFECYCLE:
  Obligation (external) -> Order (via order-lines) -> Payment (Settle)
  -> Reversal (Reverse) -> Order unpaid again, Payment deleted.

  Orders and obligations are never deleted. Payments are deleted only by a
  reversal.

SEE ALSO:
  - store.go:      ledger client interfaces
  - saga.go:       step runner with compensation
  - service.go:    workflow entry points
*/
package settlement

import (
	"github.com/shopspring/decimal"
)

// Field limits applied to payment records. Longer values are truncated,
// never rejected.
const (
	MaxInvoiceNameLen     = 40
	MaxTaxIDLen           = 8
	MaxPaymentLocationLen = 10
	MaxPayerCodeLen       = 14
)

// =============================================================================
// CUSTOMER LEDGER (A)
// =============================================================================

// Payer is an identity registered in the customer ledger.
type Payer struct {
	Code string // externally issued, at most 14 chars
	Name string
}

// Payment is the settlement record written into the customer ledger.
type Payment struct {
	TransactionID   int64 // assigned by the customer ledger
	PaymentDate     string
	PayerCode       string
	TotalAmount     decimal.Decimal
	InvoiceName     string
	TaxID           string
	PaymentLocation string
	OrderCode       string
}

// PaymentDetail records one installment paid by a Payment.
type PaymentDetail struct {
	TransactionID     int64
	InstallmentNumber int
	InstallmentAmount decimal.Decimal
}

// CustomerReversal is the customer-ledger half of a reversal pair.
// ID is supplied by the caller and must be globally unique.
type CustomerReversal struct {
	ID                    int64
	ReversalDate          string
	Amount                decimal.Decimal
	ObligationsReversalID int64
	PayerCode             string
}

// =============================================================================
// OBLIGATIONS LEDGER (B)
// =============================================================================

// Obligation is a chargeable service owed by a unit.
type Obligation struct {
	ID       int64
	UnitCode string
	Amount   decimal.Decimal // outstanding amount
}

// Installment is one entry of an obligation's payment schedule.
type Installment struct {
	Number      int
	Description string
	DueDate     string
	Amount      decimal.Decimal
	Fee         decimal.Decimal
}

// Order is a payment order covering one or more obligations.
//
// INVARIANTS:
//   - Amount equals the sum of its obligations' outstanding amounts when the
//     order was generated, and never changes afterwards.
//   - Paid flips false->true only through Settle and true->false only
//     through Reverse.
type Order struct {
	Code      string
	PayerName string
	PayerCode string
	UnitCode  string
	Amount    decimal.Decimal
	Paid      bool
}

// OrderReversal is the obligations-ledger half of a reversal pair.
// ID is generated by the obligations ledger.
type OrderReversal struct {
	ID           int64
	ReversalDate string
	OrderCode    string
	Amount       decimal.Decimal
}

// =============================================================================
// WORKFLOW RESULTS
// =============================================================================

// LineItem is one obligation of an order as presented to a payer.
// Exactly one of Amount or Installments is meaningful: an obligation with a
// schedule reports only its installments.
type LineItem struct {
	ObligationID int64
	UnitCode     string
	Amount       *decimal.Decimal
	Installments []Installment
}

// OrderDetail is the billable view of an unpaid order.
type OrderDetail struct {
	Payer Payer
	Order Order
	Items []LineItem
}

// ReversalReceipt correlates both halves of a completed reversal.
type ReversalReceipt struct {
	ReversalID            int64
	PaymentID             int64
	ObligationsReversalID int64
	OrderCode             string
	Amount                decimal.Decimal
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
