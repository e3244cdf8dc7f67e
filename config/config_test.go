package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv(nil, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "customer.db", cfg.CustomerDSN)
	assert.Equal(t, "obligations.db", cfg.ObligationsDSN)
	assert.Equal(t, 5, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.NotEmpty(t, cfg.APIUser, "development credential")
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	env := envMap(map[string]string{
		"SERVER_ADDR":          ":9000",
		"LEDGER_POOL_SIZE":     "3",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
	})

	cfg, err := LoadWithEnv([]string{"-addr", ":7000", "-customer-db", ":memory:"}, env)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, ":memory:", cfg.CustomerDSN)
	assert.Equal(t, 3, cfg.PoolSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_ProductionRequiresCredentials(t *testing.T) {
	// GIVEN: Production without API_USER / API_PASSWORD
	// THEN: Both are reported missing in one error

	_, err := LoadWithEnv([]string{"-env", "production"}, envMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_USER")
	assert.Contains(t, err.Error(), "API_PASSWORD")

	cfg, err := LoadWithEnv([]string{"-env", "production"}, envMap(map[string]string{
		"API_USER":     "gateway",
		"API_PASSWORD": "s3cret",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_ProductionRejectsMemoryLedgers(t *testing.T) {
	_, err := LoadWithEnv([]string{"-env", "production", "-obligations-db", ":memory:"}, envMap(map[string]string{
		"API_USER":     "gateway",
		"API_PASSWORD": "s3cret",
	}))
	assert.ErrorContains(t, err, "in-memory")
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := LoadWithEnv(nil, envMap(map[string]string{"LEDGER_POOL_SIZE": "many"}))
	assert.Error(t, err)

	_, err = LoadWithEnv([]string{"-pool-size", "0"}, envMap(nil))
	assert.ErrorContains(t, err, "LEDGER_POOL_SIZE")

	_, err = LoadWithEnv([]string{"-env", "staging"}, envMap(nil))
	assert.ErrorContains(t, err, "unknown environment")
}

func TestBackend(t *testing.T) {
	assert.Equal(t, BackendPostgres, Backend("postgres://u:p@localhost/db"))
	assert.Equal(t, BackendPostgres, Backend("postgresql://localhost/db"))
	assert.Equal(t, BackendMemory, Backend(":memory:"))
	assert.Equal(t, BackendSQLite, Backend("./data/customer.db"))
}
