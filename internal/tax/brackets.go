// Package tax holds the static tax model: progressive bracket tables by
// jurisdiction, registered-account contribution rules, and the mandatory
// minimum-withdrawal schedule for retirement-type registered accounts.
//
// All tables are immutable package-level values constructed once; nothing in
// this package mutates at runtime.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bracket is one step of a progressive schedule: income between the previous
// bracket's bound and UpTo is taxed at Rate.
type Bracket struct {
	UpTo decimal.Decimal
	Rate decimal.Decimal
}

// Entity is one taxing entity (federal or provincial) with its own schedule.
// Brackets are sorted ascending by UpTo; the last bracket's UpTo acts as an
// effectively unbounded cap.
type Entity struct {
	Name     string
	Brackets []Bracket
}

// AnnualTax computes the entity's tax on annual taxable income using
// standard marginal-bracket accumulation.
func (e Entity) AnnualTax(income decimal.Decimal) decimal.Decimal {
	if income.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	tax := decimal.Zero
	lower := decimal.Zero
	for _, b := range e.Brackets {
		if income.LessThanOrEqual(lower) {
			break
		}
		inBracket := decimal.Min(income, b.UpTo).Sub(lower)
		if inBracket.GreaterThan(decimal.Zero) {
			tax = tax.Add(inBracket.Mul(b.Rate))
		}
		lower = b.UpTo
	}
	return tax
}

// Calculator combines every taxing entity of a jurisdiction.
type Calculator struct {
	Jurisdiction string
	Entities     []Entity
}

// AnnualTax is the combined annual tax across entities.
func (c Calculator) AnnualTax(income decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.Entities {
		total = total.Add(e.AnnualTax(income))
	}
	return total
}

// MonthlyTax taxes a monthly income against the monthly-scaled schedule
// (bounds divided by 12). Annualizing and dividing gives the same result for
// level income; the engine works month by month so the scaled form is used
// throughout.
func (c Calculator) MonthlyTax(monthlyIncome decimal.Decimal) decimal.Decimal {
	twelve := decimal.NewFromInt(12)
	return c.AnnualTax(monthlyIncome.Mul(twelve)).Div(twelve)
}

// MonthlyEntities returns the entities with bracket bounds divided by 12,
// for formulations that constrain income at monthly granularity.
func (c Calculator) MonthlyEntities() []Entity {
	twelve := decimal.NewFromInt(12)
	out := make([]Entity, 0, len(c.Entities))
	for _, e := range c.Entities {
		scaled := Entity{Name: e.Name}
		for _, b := range e.Brackets {
			scaled.Brackets = append(scaled.Brackets, Bracket{UpTo: b.UpTo.Div(twelve), Rate: b.Rate})
		}
		out = append(out, scaled)
	}
	return out
}

func bracket(upTo int64, rate float64) Bracket {
	return Bracket{UpTo: decimal.NewFromInt(upTo), Rate: decimal.NewFromFloat(rate)}
}

// 2024 federal schedule plus two provincial schedules. The top bound is a
// large finite cap rather than infinity so bracket widths stay finite for
// the optimizer's per-bracket decomposition.
var calculatorsByJurisdiction = map[string]Calculator{
	"AB": {
		Jurisdiction: "AB",
		Entities: []Entity{
			canadaFederal,
			{
				Name: "alberta",
				Brackets: []Bracket{
					bracket(148269, 0.10),
					bracket(177922, 0.12),
					bracket(237230, 0.13),
					bracket(355845, 0.14),
					bracket(topIncomeCap, 0.15),
				},
			},
		},
	},
	"ON": {
		Jurisdiction: "ON",
		Entities: []Entity{
			canadaFederal,
			{
				Name: "ontario",
				Brackets: []Bracket{
					bracket(51446, 0.0505),
					bracket(102894, 0.0915),
					bracket(150000, 0.1116),
					bracket(220000, 0.1216),
					bracket(topIncomeCap, 0.1316),
				},
			},
		},
	},
}

const topIncomeCap = 100000000

var canadaFederal = Entity{
	Name: "federal",
	Brackets: []Bracket{
		bracket(55867, 0.15),
		bracket(111733, 0.205),
		bracket(173205, 0.26),
		bracket(246752, 0.29),
		bracket(topIncomeCap, 0.33),
	},
}

// ForJurisdiction returns the immutable calculator for a jurisdiction code.
func ForJurisdiction(code string) (Calculator, error) {
	c, ok := calculatorsByJurisdiction[code]
	if !ok {
		return Calculator{}, fmt.Errorf("unknown tax jurisdiction %q", code)
	}
	return c, nil
}

// NewCalculator builds a custom calculator, used by tests that need synthetic
// schedules.
func NewCalculator(jurisdiction string, entities ...Entity) Calculator {
	return Calculator{Jurisdiction: jurisdiction, Entities: entities}
}
