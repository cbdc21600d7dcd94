package domain

import (
	"github.com/shopspring/decimal"
)

// GoalKind discriminates the closed set of financial-goal variants.
type GoalKind int

const (
	// GoalNestEgg requires the balance of the allowed accounts to reach the
	// target amount by the due month.
	GoalNestEgg GoalKind = iota
	// GoalBigPurchase requires a one-time withdrawal of the target amount to
	// be available by the due month.
	GoalBigPurchase
)

func (k GoalKind) String() string {
	switch k {
	case GoalNestEgg:
		return "nest_egg"
	case GoalBigPurchase:
		return "big_purchase"
	default:
		return "unknown"
	}
}

// Goal is a financial goal: save up a nest egg, or fund a one-time purchase,
// by a due month.
type Goal struct {
	GoalID   string
	Name     string
	Kind     GoalKind
	Amount   decimal.Decimal
	DueMonth int
}

// AllowedInvestmentIDs returns the ids of the investments that may satisfy
// this goal, in ascending id order. Purchase goals draw from liquid
// non-registered and tax-free accounts only (a registered-retirement
// withdrawal for a purchase would trigger full taxation); nest-egg goals
// count every non-guaranteed investment balance.
func (g Goal) AllowedInvestmentIDs(p *Portfolio) []string {
	var ids []string
	for _, inv := range p.Investments() {
		switch g.Kind {
		case GoalBigPurchase:
			if inv.Account == NonRegistered || inv.Account == TaxFreeRegistered {
				ids = append(ids, inv.InvestmentID)
			}
		default:
			ids = append(ids, inv.InvestmentID)
		}
	}
	return ids
}
