/*
Package config loads server configuration from flags and environment.

PRECEDENCE:
  flag > environment variable > default

SETTINGS:
  -addr             SERVER_ADDR             listen address (":8080")
  -customer-db      CUSTOMER_LEDGER_DSN     customer ledger DSN ("customer.db")
  -obligations-db   OBLIGATIONS_LEDGER_DSN  obligations ledger DSN ("obligations.db")
  -pool-size        LEDGER_POOL_SIZE        connections per ledger (5)
  -query-timeout    LEDGER_QUERY_TIMEOUT    per-statement timeout ("5s")
  -static           STATIC_DIR              static file root ("./web/dist")
  -env              ENVIRONMENT             development | production
  -allowed-origins  CORS_ALLOWED_ORIGINS    comma separated ("*")
                    API_USER, API_PASSWORD  customer-group credential

DSN BACKENDS:
  postgres://... or postgresql://...  PostgreSQL (pgx)
  :memory:                            in-memory ledger
  anything else                       SQLite file path
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Backend kinds selected by a DSN.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Development credential, rejected in production.
const (
	devUser     = "bridge"
	devPassword = "bridge"
)

// Config holds the application configuration.
type Config struct {
	Addr           string
	CustomerDSN    string
	ObligationsDSN string
	PoolSize       int
	QueryTimeout   time.Duration
	StaticDir      string
	Environment    string
	APIUser        string
	APIPassword    string
	AllowedOrigins []string
}

// Load parses args (without the program name) with environment fallbacks
// from os.Getenv, then validates.
func Load(args []string) (*Config, error) {
	return LoadWithEnv(args, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	poolSize, err := strconv.Atoi(env("LEDGER_POOL_SIZE", "5"))
	if err != nil {
		return nil, fmt.Errorf("LEDGER_POOL_SIZE: %w", err)
	}
	timeout, err := time.ParseDuration(env("LEDGER_QUERY_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("LEDGER_QUERY_TIMEOUT: %w", err)
	}

	cfg := &Config{}
	var origins string

	fs := flag.NewFlagSet("settlement-bridge", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", env("SERVER_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.CustomerDSN, "customer-db", env("CUSTOMER_LEDGER_DSN", "customer.db"), "customer ledger DSN")
	fs.StringVar(&cfg.ObligationsDSN, "obligations-db", env("OBLIGATIONS_LEDGER_DSN", "obligations.db"), "obligations ledger DSN")
	fs.IntVar(&cfg.PoolSize, "pool-size", poolSize, "connections per ledger")
	fs.DurationVar(&cfg.QueryTimeout, "query-timeout", timeout, "per-statement ledger timeout")
	fs.StringVar(&cfg.StaticDir, "static", env("STATIC_DIR", "./web/dist"), "static file directory")
	fs.StringVar(&cfg.Environment, "env", env("ENVIRONMENT", EnvDevelopment), "development or production")
	fs.StringVar(&origins, "allowed-origins", env("CORS_ALLOWED_ORIGINS", "*"), "comma separated CORS origins")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.APIUser = getenv("API_USER")
	cfg.APIPassword = getenv("API_PASSWORD")
	if cfg.Environment != EnvProduction {
		if cfg.APIUser == "" {
			cfg.APIUser = devUser
		}
		if cfg.APIPassword == "" {
			cfg.APIPassword = devPassword
		}
	}

	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable, reporting every
// problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Addr == "" {
		problems = append(problems, "listen address is empty")
	}
	if c.CustomerDSN == "" {
		problems = append(problems, "CUSTOMER_LEDGER_DSN is empty")
	}
	if c.ObligationsDSN == "" {
		problems = append(problems, "OBLIGATIONS_LEDGER_DSN is empty")
	}
	if c.PoolSize < 1 {
		problems = append(problems, "LEDGER_POOL_SIZE must be at least 1")
	}
	if c.QueryTimeout <= 0 {
		problems = append(problems, "LEDGER_QUERY_TIMEOUT must be positive")
	}

	switch c.Environment {
	case EnvDevelopment:
	case EnvProduction:
		var missing []string
		if c.APIUser == "" {
			missing = append(missing, "API_USER")
		}
		if c.APIPassword == "" {
			missing = append(missing, "API_PASSWORD")
		}
		if len(missing) > 0 {
			problems = append(problems, "missing required environment variables for production: "+strings.Join(missing, ", "))
		}
		if Backend(c.CustomerDSN) == BackendMemory || Backend(c.ObligationsDSN) == BackendMemory {
			problems = append(problems, "in-memory ledgers are not allowed in production")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown environment %q", c.Environment))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Backend returns the storage backend a DSN selects.
func Backend(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return BackendPostgres
	case dsn == ":memory:":
		return BackendMemory
	default:
		return BackendSQLite
	}
}
