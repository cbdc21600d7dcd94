package domain

import (
	"github.com/shopspring/decimal"
)

// MonthlySolution is one month of a plan: the portfolio as it stood before
// the month's actions, and the actions themselves. Produced once per month
// and immutable thereafter.
type MonthlySolution struct {
	Month int
	// Portfolio is the snapshot before interest accrual and payments.
	Portfolio *Portfolio
	// Allocations are payments keyed by instrument id.
	Allocations map[string]decimal.Decimal
	// Withdrawals are investment withdrawals keyed by instrument id.
	Withdrawals map[string]decimal.Decimal
	// TaxPaid is income tax accrued for the month.
	TaxPaid decimal.Decimal
	// GrossIncome and TaxableIncome for the month.
	GrossIncome   decimal.Decimal
	TaxableIncome decimal.Decimal
}

// TotalAllocated sums the month's payments.
func (ms MonthlySolution) TotalAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range ms.Allocations {
		total = total.Add(amt)
	}
	return total
}

// TotalWithdrawn sums the month's withdrawals.
func (ms MonthlySolution) TotalWithdrawn() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range ms.Withdrawals {
		total = total.Add(amt)
	}
	return total
}

// FinancialPlan is an ordered sequence of monthly solutions (one per calendar
// month of the horizon) plus the final portfolio after the last month. All
// aggregate queries are pure derivations over the sequence.
type FinancialPlan struct {
	StrategyName string
	Months       []MonthlySolution
	// FinalPortfolio is the state after the last month's forwarding.
	FinalPortfolio *Portfolio
}

// portfolioAt returns the snapshot in effect at the start of the given
// month, clamping past the end to the final portfolio.
func (fp *FinancialPlan) portfolioAt(month int) *Portfolio {
	for _, ms := range fp.Months {
		if ms.Month == month {
			return ms.Portfolio
		}
	}
	return fp.FinalPortfolio
}

// NetWorthAt returns total net worth at the start of the given month.
func (fp *FinancialPlan) NetWorthAt(month int) decimal.Decimal {
	return fp.portfolioAt(month).NetWorth()
}

// FinalNetWorth returns net worth after the final simulated month.
func (fp *FinancialPlan) FinalNetWorth() decimal.Decimal {
	return fp.FinalPortfolio.NetWorth()
}

// DebtFreeMonth returns the first month whose starting portfolio carries no
// loans, or -1 when debt persists through the whole horizon.
func (fp *FinancialPlan) DebtFreeMonth() int {
	for _, ms := range fp.Months {
		if !ms.Portfolio.HasLoans() {
			return ms.Month
		}
	}
	if fp.FinalPortfolio != nil && !fp.FinalPortfolio.HasLoans() {
		if n := len(fp.Months); n > 0 {
			return fp.Months[n-1].Month + 1
		}
	}
	return -1
}

// FirstPositiveNetWorthMonth returns the first month whose starting net
// worth is positive, or -1 if never.
func (fp *FinancialPlan) FirstPositiveNetWorthMonth() int {
	for _, ms := range fp.Months {
		if ms.Portfolio.NetWorth().GreaterThan(decimal.Zero) {
			return ms.Month
		}
	}
	return -1
}

// TotalLoanInterestPaid sums interest accrued on loans over the horizon.
// Interest for a month is balance times rate evaluated on the start-of-month
// snapshot, matching the simulator's accrual step.
func (fp *FinancialPlan) TotalLoanInterestPaid() decimal.Decimal {
	total := decimal.Zero
	for _, ms := range fp.Months {
		for _, inst := range ms.Portfolio.Instruments() {
			if inst.Kind().IsLoan() {
				total = total.Add(inst.Balance().Neg().Mul(inst.MonthlyRate(ms.Month)))
			}
		}
	}
	return total
}

// TotalInvestmentInterestEarned sums returns accrued on investment-side
// instruments over the horizon.
func (fp *FinancialPlan) TotalInvestmentInterestEarned() decimal.Decimal {
	total := decimal.Zero
	for _, ms := range fp.Months {
		for _, inst := range ms.Portfolio.Instruments() {
			if !inst.Kind().IsLoan() {
				total = total.Add(inst.Balance().Mul(inst.MonthlyRate(ms.Month)))
			}
		}
	}
	return total
}

// TotalTaxesPaid sums income tax over the horizon.
func (fp *FinancialPlan) TotalTaxesPaid() decimal.Decimal {
	total := decimal.Zero
	for _, ms := range fp.Months {
		total = total.Add(ms.TaxPaid)
	}
	return total
}

// PlanSummary condenses a plan's headline numbers for display.
type PlanSummary struct {
	StrategyName            string          `json:"strategyName"`
	Horizon                 int             `json:"horizonMonths"`
	FinalNetWorth           decimal.Decimal `json:"finalNetWorth"`
	DebtFreeMonth           int             `json:"debtFreeMonth"`
	FirstPositiveNetWorth   int             `json:"firstPositiveNetWorthMonth"`
	TotalLoanInterestPaid   decimal.Decimal `json:"totalLoanInterestPaid"`
	TotalInvestmentInterest decimal.Decimal `json:"totalInvestmentInterestEarned"`
	TotalTaxesPaid          decimal.Decimal `json:"totalTaxesPaid"`
}

// Summary computes the headline numbers for the plan.
func (fp *FinancialPlan) Summary() PlanSummary {
	return PlanSummary{
		StrategyName:            fp.StrategyName,
		Horizon:                 len(fp.Months),
		FinalNetWorth:           fp.FinalNetWorth(),
		DebtFreeMonth:           fp.DebtFreeMonth(),
		FirstPositiveNetWorth:   fp.FirstPositiveNetWorthMonth(),
		TotalLoanInterestPaid:   fp.TotalLoanInterestPaid(),
		TotalInvestmentInterest: fp.TotalInvestmentInterestEarned(),
		TotalTaxesPaid:          fp.TotalTaxesPaid(),
	}
}

// Solution is the result of one planning request: a plan per strategy that
// succeeded, plus the request echoed back for traceability.
type Solution struct {
	Request *UserFinances
	Plans   map[string]*FinancialPlan
}
