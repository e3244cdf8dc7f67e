/*
seed.go - Demo data for development and demonstrations

PURPOSE:
  Populates both ledgers with payers and obligations that exercise each
  workflow. In production both ledgers are owned by other systems; this
  package exists for local runs, the in-memory server mode and cmd/seeder.

AVAILABLE SCENARIOS:
  demo:          payer ACME (C001), unit D1 with one 200.00 obligation
  installments:  payer Blue Tower (C002), unit D7 with a flat obligation
                 and one split into three installments with fees
  multi-unit:    payers C003 and C004 sharing a building, several units

HOW SCENARIOS WORK:
  Every write is an upsert keyed by payer code or obligation id, so loading
  a scenario twice leaves the ledgers unchanged. Obligations already
  billed by an order stay billed.

USAGE:
  err := seed.Load(ctx, "demo", customer, obligations)

SEE ALSO:
  - cmd/seeder/main.go: command-line loader
  - cmd/server/main.go: loads "demo" into in-memory ledgers
*/
package seed

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-bridge/settlement"
)

// PayerWriter is the seeding side of a customer ledger.
type PayerWriter interface {
	SavePayer(ctx context.Context, p settlement.Payer) error
}

// ObligationWriter is the seeding side of an obligations ledger.
type ObligationWriter interface {
	SaveObligation(ctx context.Context, o settlement.Obligation, installments []settlement.Installment) error
}

// Scenario is a named set of demo data.
type Scenario struct {
	Name        string
	Description string
	Payers      []settlement.Payer
	Obligations []ObligationSeed
}

// ObligationSeed is an obligation with its optional schedule.
type ObligationSeed struct {
	Obligation   settlement.Obligation
	Installments []settlement.Installment
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = map[string]Scenario{
	"demo": {
		Name:        "demo",
		Description: "One payer, one unit, one 200.00 obligation",
		Payers:      []settlement.Payer{{Code: "C001", Name: "ACME"}},
		Obligations: []ObligationSeed{
			{Obligation: settlement.Obligation{ID: 1, UnitCode: "D1", Amount: dec("200.00")}},
		},
	},
	"installments": {
		Name:        "installments",
		Description: "A flat obligation and one split into installments with fees",
		Payers:      []settlement.Payer{{Code: "C002", Name: "Blue Tower Residents"}},
		Obligations: []ObligationSeed{
			{Obligation: settlement.Obligation{ID: 10, UnitCode: "D7", Amount: dec("85.50")}},
			{
				Obligation:   settlement.Obligation{ID: 11, UnitCode: "D7", Amount: dec("300.00")},
				Installments: []settlement.Installment{
					{Number: 1, Description: "Maintenance Q1", DueDate: "20240131", Amount: dec("100.00"), Fee: dec("0")},
					{Number: 2, Description: "Maintenance Q2", DueDate: "20240430", Amount: dec("100.00"), Fee: dec("1.50")},
					{Number: 3, Description: "Maintenance Q3", DueDate: "20240731", Amount: dec("100.00"), Fee: dec("1.50")},
				},
			},
		},
	},
	"multi-unit": {
		Name:        "multi-unit",
		Description: "Two payers in one building with several units",
		Payers: []settlement.Payer{
			{Code: "C003", Name: "Harbor View 101"},
			{Code: "C004", Name: "Harbor View 102"},
		},
		Obligations: []ObligationSeed{
			{Obligation: settlement.Obligation{ID: 20, UnitCode: "H101", Amount: dec("120.00")}},
			{Obligation: settlement.Obligation{ID: 21, UnitCode: "H101", Amount: dec("35.25")}},
			{Obligation: settlement.Obligation{ID: 22, UnitCode: "H102", Amount: dec("120.00")}},
		},
	},
}

// Scenarios returns every scenario sorted by name.
func Scenarios() []Scenario {
	result := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Load writes a scenario into both ledgers.
func Load(ctx context.Context, name string, customer PayerWriter, obligations ObligationWriter) error {
	s, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("unknown scenario %q", name)
	}

	for _, p := range s.Payers {
		if err := customer.SavePayer(ctx, p); err != nil {
			return fmt.Errorf("failed to seed payer %s: %w", p.Code, err)
		}
	}
	for _, o := range s.Obligations {
		if err := obligations.SaveObligation(ctx, o.Obligation, o.Installments); err != nil {
			return fmt.Errorf("failed to seed obligation %d: %w", o.Obligation.ID, err)
		}
	}
	return nil
}

// LoadAll writes every scenario.
func LoadAll(ctx context.Context, customer PayerWriter, obligations ObligationWriter) error {
	for _, s := range Scenarios() {
		if err := Load(ctx, s.Name, customer, obligations); err != nil {
			return err
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
