package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotPlan() *FinancialPlan {
	indebted := NewPortfolio(
		&RevolvingLoan{Loan: Loan{
			LoanID:         "card",
			Rate:           NewFixedAnnualRate(dec("0.12")),
			CurrentBalance: dec("-600"),
		}},
		&Investment{
			InvestmentID:   "cash",
			Rate:           FixedRate{},
			CurrentBalance: dec("100"),
			Asset:          AssetCash,
		},
	)
	debtFree := NewPortfolio(&Investment{
		InvestmentID:   "cash",
		Rate:           FixedRate{},
		CurrentBalance: dec("700"),
		Asset:          AssetCash,
	})
	return &FinancialPlan{
		StrategyName: "avalanche",
		Months: []MonthlySolution{
			{Month: 0, Portfolio: indebted, TaxPaid: dec("150")},
			{Month: 1, Portfolio: debtFree, TaxPaid: dec("150")},
		},
		FinalPortfolio: debtFree,
	}
}

func TestDebtFreeMonthFindsFirstLoanFreeSnapshot(t *testing.T) {
	assert.Equal(t, 1, snapshotPlan().DebtFreeMonth())
}

func TestDebtFreeMonthNeverIsMinusOne(t *testing.T) {
	stuck := NewPortfolio(&RevolvingLoan{Loan: Loan{
		LoanID:         "card",
		Rate:           NewFixedAnnualRate(dec("0.12")),
		CurrentBalance: dec("-600"),
	}})
	plan := &FinancialPlan{
		Months:         []MonthlySolution{{Month: 0, Portfolio: stuck}},
		FinalPortfolio: stuck,
	}
	assert.Equal(t, -1, plan.DebtFreeMonth())
}

func TestFirstPositiveNetWorthMonth(t *testing.T) {
	plan := snapshotPlan()
	// Month 0 net worth is -500, month 1 is +700.
	assert.Equal(t, 1, plan.FirstPositiveNetWorthMonth())
}

func TestSummaryHeadlineNumbers(t *testing.T) {
	s := snapshotPlan().Summary()

	require.Equal(t, "avalanche", s.StrategyName)
	assert.Equal(t, 2, s.Horizon)
	assert.True(t, s.FinalNetWorth.Equal(dec("700")))
	assert.Equal(t, 1, s.DebtFreeMonth)
	assert.True(t, s.TotalTaxesPaid.Equal(dec("300")))
	// One month of 1% on a 600 balance.
	assert.True(t, s.TotalLoanInterestPaid.Equal(dec("6")), "got %s", s.TotalLoanInterestPaid)
}
