package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UserFinances is the snapshot the planning engine consumes: profile,
// portfolio, goals, and the derived monthly allowance. It is the sole input
// boundary of the engine; the surrounding persistence/API layer constructs it.
type UserFinances struct {
	Profile   FinancialProfile
	Portfolio *Portfolio
	Goals     []Goal
	// MonthlyAllowance is the disposable amount available each working month,
	// derived from post-tax income and the savings fraction.
	MonthlyAllowance decimal.Decimal
}

// DeepCopy returns a snapshot that shares no mutable state with the receiver.
func (uf *UserFinances) DeepCopy() *UserFinances {
	c := *uf
	c.Portfolio = uf.Portfolio.DeepCopy()
	c.Goals = append([]Goal(nil), uf.Goals...)
	return &c
}

// TotalMinimumPayments sums the required payments of every instrument for
// the given month.
func (uf *UserFinances) TotalMinimumPayments(month int) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range uf.Portfolio.Instruments() {
		total = total.Add(inst.MinimumPayment(month))
	}
	return total
}

// Validate rejects snapshots that cannot produce a plan. It is called once
// before any simulation or solve; a failed validation means the request is
// rejected before any work is done.
func (uf *UserFinances) Validate() error {
	if uf.Portfolio == nil || uf.Portfolio.Len() == 0 {
		return fmt.Errorf("portfolio must contain at least one instrument")
	}
	if uf.Profile.DeathMonth <= 0 {
		return fmt.Errorf("death month must be positive, got %d", uf.Profile.DeathMonth)
	}
	if uf.Profile.RetirementMonth < 0 || uf.Profile.RetirementMonth > uf.Profile.DeathMonth {
		return fmt.Errorf("retirement month %d must lie within [0, %d]",
			uf.Profile.RetirementMonth, uf.Profile.DeathMonth)
	}
	if uf.Profile.RiskTolerance < 0 || uf.Profile.RiskTolerance > 100 {
		return fmt.Errorf("risk tolerance must be between 0 and 100, got %d", uf.Profile.RiskTolerance)
	}
	if uf.MonthlyAllowance.LessThan(decimal.Zero) {
		return fmt.Errorf("monthly allowance cannot be negative, got %s", uf.MonthlyAllowance)
	}
	for _, inst := range uf.Portfolio.Instruments() {
		if inst.Kind().IsLoan() && inst.Balance().GreaterThan(decimal.Zero) {
			return fmt.Errorf("loan %s has positive balance %s", inst.ID(), inst.Balance())
		}
		if !inst.Kind().IsLoan() && inst.Balance().LessThan(decimal.Zero) {
			return fmt.Errorf("investment %s has negative balance %s", inst.ID(), inst.Balance())
		}
	}
	for _, g := range uf.Goals {
		if g.Amount.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("goal %s amount must be positive, got %s", g.GoalID, g.Amount)
		}
	}
	if minSum := uf.TotalMinimumPayments(0); minSum.GreaterThan(uf.MonthlyAllowance) {
		return fmt.Errorf("aggregate minimum payments %s exceed monthly allowance %s",
			minSum.StringFixed(2), uf.MonthlyAllowance.StringFixed(2))
	}
	return nil
}
