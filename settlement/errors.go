/*
errors.go - Error taxonomy for the settlement workflows

PURPOSE:
  All workflow outcomes other than success are expressed as errors from
  this file. The HTTP layer maps them onto its result-code table; nothing
  in this package knows about status codes.

ERROR CATEGORIES:
  1. Business rejections - state was found but violates a precondition
     (unknown payer, already paid, amount mismatch, duplicate reversal id)
  2. Ledger unavailable  - a point query against a ledger failed
  3. Step failures       - a saga step failed after earlier writes committed

USAGE:
  receipt, err := svc.Reverse(ctx, req)
  var stepErr *settlement.StepError
  if errors.As(err, &stepErr) {
      log.Warn("reversal failed", "step", stepErr.Step)
  }

SEE ALSO:
  - saga.go: produces StepError
  - api/response.go: maps errors onto result codes
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoBillableObligations means the unit has nothing left to bill.
	// It is a legitimate empty state, not a failure.
	ErrNoBillableObligations = errors.New("no billable obligations")

	ErrPayerNotFound   = errors.New("unknown payer")
	ErrOrderNotFound   = errors.New("unknown payment order")
	ErrPaymentNotFound = errors.New("unknown payment id")

	// ErrNoOrderObligations is returned when an order exists but no
	// obligation is linked to it.
	ErrNoOrderObligations = errors.New("no obligations found for payment order")

	ErrAlreadyPaid    = errors.New("payment order already paid")
	ErrOrderNotPaid   = errors.New("payment order is not paid")
	ErrAmountMismatch = errors.New("total amount differs from payable amount")

	// ErrDuplicateReversal is returned before any write when the caller's
	// reversal id already exists in the customer ledger.
	ErrDuplicateReversal = errors.New("reversal id must be unique")

	// ErrCountUnavailable is returned when the order count used for
	// numbering cannot be read.
	ErrCountUnavailable = errors.New("order count unavailable")

	// ErrOrderConflict is returned when an order code is already taken or an
	// obligation is already covered by another order.
	ErrOrderConflict = errors.New("payment order conflict")

	// ErrLedgerUnavailable is the root of every UnavailableError.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnavailableError reports a failed point query. Entity names what was
// being read, e.g. "obligations", "payer", "order".
type UnavailableError struct {
	Entity string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ledger unavailable reading %s: %v", e.Entity, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrLedgerUnavailable, e.Err}
}

func unavailable(entity string, err error) error {
	return &UnavailableError{Entity: entity, Err: err}
}

// StepError reports a saga step that failed after the workflow began
// writing. Description is operator-facing and names the failed step.
// Compensated is true when every completed step was undone.
type StepError struct {
	Workflow        string
	Step            string
	Description     string
	Err             error
	Compensated     bool
	CompensationErr error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: step %q failed: %v", e.Workflow, e.Step, e.Err)
	if e.CompensationErr != nil {
		msg += fmt.Sprintf(" (compensation failed: %v)", e.CompensationErr)
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ValidationError reports a request field that is missing, unparseable or
// out of format. It is raised before any ledger is queried.
type ValidationError struct {
	Field  string
	Reason string
	Format bool // true for length/shape violations, false for missing or unparseable
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsBusinessRejection returns true if the error is a precondition failure
// detected before or instead of a write.
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrPayerNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrNoOrderObligations) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrOrderNotPaid) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrDuplicateReversal) ||
		errors.Is(err, ErrCountUnavailable) ||
		errors.Is(err, ErrOrderConflict)
}

// IsUnavailable returns true if a ledger query failed.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable)
}
