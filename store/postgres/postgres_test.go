package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-bridge/settlement"
	"github.com/warp/settlement-bridge/store/postgres"
)

// newTestLedgers connects both ledgers to TEST_DATABASE_URL and empties
// their tables. The tests are skipped when no database is configured.
func newTestLedgers(t *testing.T) (*postgres.Customer, *postgres.Obligations) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	customer, err := postgres.NewCustomer(ctx, dsn, postgres.WithPoolSize(2))
	if err != nil {
		t.Skipf("PostgreSQL unavailable: %v", err)
	}
	t.Cleanup(func() { customer.Close() })

	obligations, err := postgres.NewObligations(ctx, dsn, postgres.WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(func() { obligations.Close() })

	require.NoError(t, customer.Reset(ctx))
	require.NoError(t, obligations.Reset(ctx))
	return customer, obligations
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostgres_SettleAndReverse(t *testing.T) {
	// GIVEN: Payer C001 and a 200.00 obligation on D1
	// WHEN: Generating, settling and reversing
	// THEN: Amounts round-trip exactly and both reversal rows exist

	customer, obligations := newTestLedgers(t)
	ctx := context.Background()
	require.NoError(t, customer.SavePayer(ctx, settlement.Payer{Code: "C001", Name: "ACME"}))
	require.NoError(t, obligations.SaveObligation(ctx,
		settlement.Obligation{ID: 1, UnitCode: "D1", Amount: dec("200.00")},
		[]settlement.Installment{{Number: 1, Amount: dec("200.00"), Fee: dec("0")}}))

	svc := settlement.NewService(customer, obligations,
		settlement.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	order, err := svc.GenerateOrder(ctx, settlement.GenerateOrderRequest{PayerName: "ACME", PayerCode: "C001", UnitCode: "D1"})
	require.NoError(t, err)
	assert.Equal(t, "001", order.Code)
	assert.True(t, order.Amount.Equal(dec("200")))

	detail, err := svc.OrderDetail(ctx, "C001", "001")
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	require.Len(t, detail.Items[0].Installments, 1)

	_, err = svc.Settle(ctx, settlement.SettleRequest{PayerCode: "C001", OrderCode: "001", TotalAmount: dec("200.01"), PaymentDate: "20240115"})
	assert.ErrorIs(t, err, settlement.ErrAmountMismatch)

	payment, err := svc.Settle(ctx, settlement.SettleRequest{
		PayerCode:    "C001",
		OrderCode:    "001",
		TotalAmount:  dec("200"),
		PaymentDate:  "20240115",
		Installments: []settlement.InstallmentPayment{{Number: 1, Amount: dec("200")}},
	})
	require.NoError(t, err)

	receipt, err := svc.Reverse(ctx, settlement.ReverseRequest{PayerCode: "C001", PaymentID: payment.TransactionID, ReversalID: 77, ReversalDate: "20240116"})
	require.NoError(t, err)

	r, err := obligations.GetReversal(ctx, receipt.ObligationsReversalID)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.Amount.Equal(dec("200")))

	err = customer.CreateReversal(ctx, settlement.CustomerReversal{ID: 77, ReversalDate: "20240116", Amount: dec("1"), PayerCode: "C001"})
	assert.ErrorIs(t, err, settlement.ErrDuplicateReversal)
}

func TestPostgres_OrderLinesBillOnce(t *testing.T) {
	_, obligations := newTestLedgers(t)
	ctx := context.Background()
	require.NoError(t, obligations.SaveObligation(ctx, settlement.Obligation{ID: 1, UnitCode: "D1", Amount: dec("10")}, nil))

	require.NoError(t, obligations.CreateOrder(ctx, settlement.Order{Code: "001", UnitCode: "D1", Amount: dec("10")}, []int64{1}))
	err := obligations.CreateOrder(ctx, settlement.Order{Code: "002", UnitCode: "D1", Amount: dec("10")}, []int64{1})
	assert.ErrorIs(t, err, settlement.ErrOrderConflict)

	order, err := obligations.GetOrder(ctx, "002")
	require.NoError(t, err)
	assert.Nil(t, order)

	require.NoError(t, obligations.SetOrderPaid(ctx, "001", true))
	assert.ErrorIs(t, obligations.SetOrderPaid(ctx, "001", true), settlement.ErrAlreadyPaid)
}
