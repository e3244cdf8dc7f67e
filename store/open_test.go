package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/settlement-bridge/config"
	memory "github.com/warp/settlement-bridge/settlement/store"
	"github.com/warp/settlement-bridge/store"
	"github.com/warp/settlement-bridge/store/sqlite"
)

func testConfig(customerDSN, obligationsDSN string) *config.Config {
	return &config.Config{
		CustomerDSN:    customerDSN,
		ObligationsDSN: obligationsDSN,
		PoolSize:       2,
		QueryTimeout:   time.Second,
	}
}

func TestOpen_SelectsBackendPerDSN(t *testing.T) {
	// GIVEN: An in-memory customer ledger and a SQLite obligations ledger
	// WHEN: Opening both
	// THEN: Each DSN gets its own backend and both answer pings

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "obligations.db")

	customer, obligations, err := store.Open(ctx, testConfig(":memory:", dbPath))
	require.NoError(t, err)
	defer customer.Close()
	defer obligations.Close()

	assert.IsType(t, &memory.Customer{}, customer)
	assert.IsType(t, &sqlite.Obligations{}, obligations)
	assert.NoError(t, customer.Ping(ctx))
	assert.NoError(t, obligations.Ping(ctx))
}

func TestOpen_BadPostgresDSN(t *testing.T) {
	_, _, err := store.Open(context.Background(), testConfig(":memory:", "postgres://%zz"))
	assert.ErrorContains(t, err, "obligations ledger")
}
