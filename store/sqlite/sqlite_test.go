package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-bridge/settlement"
	"github.com/warp/settlement-bridge/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedgers(t *testing.T) (*sqlite.Customer, *sqlite.Obligations) {
	customer, err := sqlite.NewCustomer(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { customer.Close() })

	obligations, err := sqlite.NewObligations(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { obligations.Close() })

	return customer, obligations
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// CUSTOMER LEDGER
// =============================================================================

func TestCustomer_PayerRoundTrip(t *testing.T) {
	customer, _ := newTestLedgers(t)
	ctx := context.Background()

	p, err := customer.GetPayer(ctx, "C001")
	require.NoError(t, err)
	assert.Nil(t, p, "absent payer is (nil, nil)")

	require.NoError(t, customer.SavePayer(ctx, settlement.Payer{Code: "C001", Name: "ACME"}))
	require.NoError(t, customer.SavePayer(ctx, settlement.Payer{Code: "C001", Name: "ACME Corp"}))

	p, err = customer.GetPayer(ctx, "C001")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ACME Corp", p.Name)
}

func TestCustomer_PaymentIDsAreGenerated(t *testing.T) {
	customer, _ := newTestLedgers(t)
	ctx := context.Background()

	payment := settlement.Payment{
		PaymentDate: "20240115",
		PayerCode:   "C001",
		TotalAmount: dec("150.10"),
		OrderCode:   "001",
	}
	first, err := customer.CreatePayment(ctx, payment)
	require.NoError(t, err)
	second, err := customer.CreatePayment(ctx, payment)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	stored, err := customer.GetPayment(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.TotalAmount.Equal(dec("150.1")), "got %s", stored.TotalAmount)
	assert.Equal(t, "", stored.InvoiceName)

	require.NoError(t, customer.DeletePayment(ctx, first))
	stored, err = customer.GetPayment(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestCustomer_PaymentDetailsOrderedByNumber(t *testing.T) {
	customer, _ := newTestLedgers(t)
	ctx := context.Background()

	err := customer.CreatePaymentDetails(ctx, 9, []settlement.PaymentDetail{
		{InstallmentNumber: 3, InstallmentAmount: dec("10")},
		{InstallmentNumber: 1, InstallmentAmount: dec("20.25")},
	})
	require.NoError(t, err)

	details, err := customer.ListPaymentDetails(ctx, 9)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, 1, details[0].InstallmentNumber)
	assert.Equal(t, int64(9), details[0].TransactionID)
	assert.True(t, details[0].InstallmentAmount.Equal(dec("20.25")))

	require.NoError(t, customer.DeletePaymentDetails(ctx, 9))
	details, err = customer.ListPaymentDetails(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, details)
}

func TestCustomer_DuplicateReversalRejected(t *testing.T) {
	customer, _ := newTestLedgers(t)
	ctx := context.Background()
	r := settlement.CustomerReversal{ID: 77, ReversalDate: "20240116", Amount: dec("200"), ObligationsReversalID: 1, PayerCode: "C001"}

	require.NoError(t, customer.CreateReversal(ctx, r))
	exists, err := customer.ReversalExists(ctx, 77)
	require.NoError(t, err)
	assert.True(t, exists)

	err = customer.CreateReversal(ctx, r)
	assert.ErrorIs(t, err, settlement.ErrDuplicateReversal)

	require.NoError(t, customer.DeleteReversal(ctx, 77))
	exists, err = customer.ReversalExists(ctx, 77)
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// OBLIGATIONS LEDGER
// =============================================================================

func TestObligations_OrderLinesBillOnce(t *testing.T) {
	// GIVEN: Two obligations on D1
	// WHEN: An order covers obligation 1 and another order tries to
	// THEN: The second order is rejected and nothing of it is written

	_, obligations := newTestLedgers(t)
	ctx := context.Background()
	require.NoError(t, obligations.SaveObligation(ctx, settlement.Obligation{ID: 1, UnitCode: "D1", Amount: dec("100")}, nil))
	require.NoError(t, obligations.SaveObligation(ctx, settlement.Obligation{ID: 2, UnitCode: "D1", Amount: dec("50")}, nil))

	require.NoError(t, obligations.CreateOrder(ctx, settlement.Order{Code: "001", UnitCode: "D1", Amount: dec("100")}, []int64{1}))

	unbilled, err := obligations.ListUnbilledObligations(ctx, "D1")
	require.NoError(t, err)
	require.Len(t, unbilled, 1)
	assert.Equal(t, int64(2), unbilled[0].ID)

	err = obligations.CreateOrder(ctx, settlement.Order{Code: "002", UnitCode: "D1", Amount: dec("150")}, []int64{2, 1})
	assert.ErrorIs(t, err, settlement.ErrOrderConflict)

	order, err := obligations.GetOrder(ctx, "002")
	require.NoError(t, err)
	assert.Nil(t, order, "rolled back")
	count, err := obligations.CountOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = obligations.CreateOrder(ctx, settlement.Order{Code: "001", UnitCode: "D1"}, nil)
	assert.ErrorIs(t, err, settlement.ErrOrderConflict, "duplicate code")
}

func TestObligations_InstallmentsAndOrderObligations(t *testing.T) {
	_, obligations := newTestLedgers(t)
	ctx := context.Background()
	require.NoError(t, obligations.SaveObligation(ctx,
		settlement.Obligation{ID: 5, UnitCode: "D1", Amount: dec("300")},
		[]settlement.Installment{
			{Number: 2, Description: "second", DueDate: "20240301", Amount: dec("150"), Fee: dec("2.50")},
			{Number: 1, Description: "first", DueDate: "20240201", Amount: dec("150"), Fee: dec("0")},
		}))
	require.NoError(t, obligations.SaveObligation(ctx, settlement.Obligation{ID: 3, UnitCode: "D1", Amount: dec("10")}, nil))
	require.NoError(t, obligations.CreateOrder(ctx, settlement.Order{Code: "001", UnitCode: "D1", Amount: dec("310")}, []int64{5, 3}))

	obs, err := obligations.ListOrderObligations(ctx, "001")
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, int64(3), obs[0].ID)
	assert.Equal(t, int64(5), obs[1].ID)

	insts, err := obligations.ListInstallments(ctx, 5)
	require.NoError(t, err)
	require.Len(t, insts, 2)
	assert.Equal(t, 1, insts[0].Number)
	assert.Equal(t, "first", insts[0].Description)
	assert.True(t, insts[1].Fee.Equal(dec("2.5")))
}

func TestObligations_SetOrderPaidIsConditional(t *testing.T) {
	_, obligations := newTestLedgers(t)
	ctx := context.Background()
	require.NoError(t, obligations.CreateOrder(ctx, settlement.Order{Code: "001", UnitCode: "D1", Amount: dec("1")}, nil))

	assert.ErrorIs(t, obligations.SetOrderPaid(ctx, "001", false), settlement.ErrOrderNotPaid)
	require.NoError(t, obligations.SetOrderPaid(ctx, "001", true))
	assert.ErrorIs(t, obligations.SetOrderPaid(ctx, "001", true), settlement.ErrAlreadyPaid)

	order, err := obligations.GetOrder(ctx, "001")
	require.NoError(t, err)
	assert.True(t, order.Paid)

	assert.ErrorIs(t, obligations.SetOrderPaid(ctx, "404", true), settlement.ErrAlreadyPaid)
}

func TestObligations_ReversalIDsAreGenerated(t *testing.T) {
	_, obligations := newTestLedgers(t)
	ctx := context.Background()

	id, err := obligations.CreateReversal(ctx, settlement.OrderReversal{ReversalDate: "20240116", OrderCode: "001", Amount: dec("200")})
	require.NoError(t, err)
	assert.Positive(t, id)

	r, err := obligations.GetReversal(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "001", r.OrderCode)

	require.NoError(t, obligations.DeleteReversal(ctx, id))
	r, err = obligations.GetReversal(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, r)
}

// =============================================================================
// WORKFLOWS OVER SQLITE
// =============================================================================

func TestSQLite_SettleAndReverse(t *testing.T) {
	// GIVEN: Payer C001 and a 200.00 obligation on D1, both in SQLite
	// WHEN: Generating, settling and reversing with reversal id 77
	// THEN: The order ends unpaid and both reversal rows exist

	customer, obligations := newTestLedgers(t)
	ctx := context.Background()
	require.NoError(t, customer.SavePayer(ctx, settlement.Payer{Code: "C001", Name: "ACME"}))
	require.NoError(t, obligations.SaveObligation(ctx, settlement.Obligation{ID: 1, UnitCode: "D1", Amount: dec("200.00")}, nil))

	svc := settlement.NewService(customer, obligations,
		settlement.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	order, err := svc.GenerateOrder(ctx, settlement.GenerateOrderRequest{PayerName: "ACME", PayerCode: "C001", UnitCode: "D1"})
	require.NoError(t, err)
	assert.Equal(t, "001", order.Code)

	payment, err := svc.Settle(ctx, settlement.SettleRequest{
		PayerCode:   "C001",
		OrderCode:   "001",
		TotalAmount: dec("200"),
		PaymentDate: "20240115",
		Installments: []settlement.InstallmentPayment{
			{Number: 1, Amount: dec("200")},
		},
	})
	require.NoError(t, err)

	receipt, err := svc.Reverse(ctx, settlement.ReverseRequest{
		PayerCode:    "C001",
		PaymentID:    payment.TransactionID,
		ReversalID:   77,
		ReversalDate: "20240116",
	})
	require.NoError(t, err)

	paid, err := svc.OrderState(ctx, "001")
	require.NoError(t, err)
	assert.False(t, paid)

	exists, err := customer.ReversalExists(ctx, 77)
	require.NoError(t, err)
	assert.True(t, exists)

	r, err := obligations.GetReversal(ctx, receipt.ObligationsReversalID)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.Amount.Equal(dec("200")))

	_, err = svc.Reverse(ctx, settlement.ReverseRequest{PayerCode: "C001", PaymentID: payment.TransactionID, ReversalID: 77, ReversalDate: "20240116"})
	assert.ErrorIs(t, err, settlement.ErrDuplicateReversal)
}
