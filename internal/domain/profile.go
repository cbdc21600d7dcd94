package domain

import (
	"github.com/shopspring/decimal"
)

// FinancialProfile holds the user's income and retirement parameters.
// All month fields are indices from the start of the plan horizon.
type FinancialProfile struct {
	// MonthlyGrossIncome is pre-tax employment income per month while working.
	MonthlyGrossIncome decimal.Decimal
	// CurrentAge in whole years at month 0.
	CurrentAge int
	// RetirementMonth is the first month of retirement (no further
	// employment income or allowance from that month on).
	RetirementMonth int
	// DeathMonth is the exclusive end of the plan horizon.
	DeathMonth int
	// RiskTolerance in [0, 100]; 0 = only the least volatile instrument is
	// acceptable, 100 = the most volatile.
	RiskTolerance int
	// Jurisdiction selects the progressive tax bracket tables.
	Jurisdiction string
	// SavingsFraction of post-tax income that forms the monthly allowance.
	SavingsFraction decimal.Decimal
	// StartingRetirementRoom is unused registered-retirement contribution
	// room at month 0.
	StartingRetirementRoom decimal.Decimal
	// StartingTaxFreeRoom is unused tax-free contribution room at month 0.
	StartingTaxFreeRoom decimal.Decimal
	// MinRetirementSpending is the minimum total monthly withdrawal required
	// in retirement.
	MinRetirementSpending decimal.Decimal
}

// AgeAtMonth returns the user's age in whole years at the given month.
func (fp FinancialProfile) AgeAtMonth(month int) int {
	return fp.CurrentAge + month/12
}

// IsRetiredAt reports whether the given month is at or past retirement.
func (fp FinancialProfile) IsRetiredAt(month int) bool {
	return month >= fp.RetirementMonth
}

// RiskToleranceFraction is the tolerance rescaled to [0, 1].
func (fp FinancialProfile) RiskToleranceFraction() decimal.Decimal {
	return decimal.NewFromInt(int64(fp.RiskTolerance)).Div(decimal.NewFromInt(100))
}
