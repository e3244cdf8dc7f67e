// Command seeder loads demo payers and obligations into both ledgers.
//
// Its own flags come first; anything after "--" is parsed as server
// configuration, with the same environment fallbacks:
//
//	seeder -scenario=all -reset -- -customer-db=./data/customer.db
//
//	-scenario  scenario name, or "all" (default "demo")
//	-reset     clear both ledgers first
//	-list      print the scenarios and exit
//
// Loading is idempotent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/warp/settlement-bridge/config"
	"github.com/warp/settlement-bridge/seed"
	"github.com/warp/settlement-bridge/store"
)

type resetter interface {
	Reset(ctx context.Context) error
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(os.Args[1:], logger); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("seeder", flag.ContinueOnError)
	scenario := fs.String("scenario", "demo", `scenario to load, or "all"`)
	reset := fs.Bool("reset", false, "clear both ledgers before loading")
	list := fs.Bool("list", false, "list scenarios and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list {
		for _, s := range seed.Scenarios() {
			fmt.Printf("%-14s %s\n", s.Name, s.Description)
		}
		return nil
	}

	cfg, err := config.Load(fs.Args())
	if err != nil {
		return err
	}
	if config.Backend(cfg.CustomerDSN) == config.BackendMemory || config.Backend(cfg.ObligationsDSN) == config.BackendMemory {
		return errors.New("seeding an in-memory ledger has no effect; the server seeds its own")
	}

	ctx := context.Background()
	customer, obligations, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer customer.Close()
	defer obligations.Close()

	if *reset {
		for name, s := range map[string]any{"customer": customer, "obligations": obligations} {
			r, ok := s.(resetter)
			if !ok {
				return fmt.Errorf("%s ledger cannot be reset", name)
			}
			if err := r.Reset(ctx); err != nil {
				return fmt.Errorf("failed to reset %s ledger: %w", name, err)
			}
		}
		logger.Info("ledgers reset")
	}

	if *scenario == "all" {
		err = seed.LoadAll(ctx, customer, obligations)
	} else {
		err = seed.Load(ctx, *scenario, customer, obligations)
	}
	if err != nil {
		return err
	}

	logger.Info("ledgers seeded",
		"scenario", *scenario,
		"customer", cfg.CustomerDSN,
		"obligations", cfg.ObligationsDSN,
	)
	return nil
}
