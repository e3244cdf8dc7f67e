package seed_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-bridge/seed"
	"github.com/warp/settlement-bridge/settlement"
	"github.com/warp/settlement-bridge/settlement/store"
	"github.com/warp/settlement-bridge/store/sqlite"
)

func TestLoad_DemoIsIdempotent(t *testing.T) {
	// GIVEN: Empty in-memory ledgers
	// WHEN: The demo scenario is loaded twice
	// THEN: Unit D1 bills exactly one 200.00 obligation for payer C001

	ctx := context.Background()
	customer := store.NewCustomer()
	obligations := store.NewObligations()

	require.NoError(t, seed.Load(ctx, "demo", customer, obligations))
	require.NoError(t, seed.Load(ctx, "demo", customer, obligations))

	payer, err := customer.GetPayer(ctx, "C001")
	require.NoError(t, err)
	require.NotNil(t, payer)
	assert.Equal(t, "ACME", payer.Name)

	unbilled, err := obligations.ListUnbilledObligations(ctx, "D1")
	require.NoError(t, err)
	require.Len(t, unbilled, 1)
	assert.True(t, unbilled[0].Amount.Equal(decimal.RequireFromString("200")))
}

func TestLoad_UnknownScenario(t *testing.T) {
	err := seed.Load(context.Background(), "nope", store.NewCustomer(), store.NewObligations())
	assert.ErrorContains(t, err, `unknown scenario "nope"`)
}

func TestLoadAll_SQLite(t *testing.T) {
	// GIVEN: SQLite ledgers
	// WHEN: Every scenario is loaded
	// THEN: The installment schedule comes back in number order and sums
	// to its obligation's amount

	ctx := context.Background()
	customer, err := sqlite.NewCustomer(":memory:")
	require.NoError(t, err)
	defer customer.Close()
	obligations, err := sqlite.NewObligations(":memory:")
	require.NoError(t, err)
	defer obligations.Close()

	require.NoError(t, seed.LoadAll(ctx, customer, obligations))
	require.NoError(t, seed.LoadAll(ctx, customer, obligations))

	insts, err := obligations.ListInstallments(ctx, 11)
	require.NoError(t, err)
	require.Len(t, insts, 3)

	total := decimal.Zero
	for i, inst := range insts {
		assert.Equal(t, i+1, inst.Number)
		total = total.Add(inst.Amount)
	}
	assert.True(t, total.Equal(decimal.RequireFromString("300")), "got %s", total)

	svc := settlement.NewService(customer, obligations)
	order, err := svc.GenerateOrder(ctx, settlement.GenerateOrderRequest{PayerCode: "C003", UnitCode: "H101"})
	require.NoError(t, err)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("155.25")), "got %s", order.Amount)
}

func TestScenarios_SortedByName(t *testing.T) {
	names := []string{}
	for _, s := range seed.Scenarios() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"demo", "installments", "multi-unit"}, names)
}
