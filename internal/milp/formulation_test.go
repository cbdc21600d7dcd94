package milp

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malfrine/two-cents-sub000/internal/config"
	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/periods"
	"github.com/malfrine/two-cents-sub000/internal/tax"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// flatTax is a single-bracket synthetic schedule so test numbers stay round.
func flatTax() tax.Calculator {
	return tax.NewCalculator("TEST", tax.Entity{
		Name: "flat",
		Brackets: []tax.Bracket{
			{UpTo: dec("1200000"), Rate: dec("0.10")},
		},
	})
}

// cashOnlyFinances: one zero-rate cash account, no loans, 4 working months.
func cashOnlyFinances() *domain.UserFinances {
	return &domain.UserFinances{
		Profile: domain.FinancialProfile{
			MonthlyGrossIncome: dec("1000"),
			CurrentAge:         30,
			RetirementMonth:    4,
			DeathMonth:         4,
			RiskTolerance:      50,
			Jurisdiction:       "AB",
		},
		Portfolio: domain.NewPortfolio(&domain.Investment{
			InvestmentID: "cash",
			Rate:         domain.FixedRate{Rate: decimal.Zero},
			Account:      domain.NonRegistered,
			Asset:        domain.AssetCash,
		}),
		MonthlyAllowance: dec("100"),
	}
}

func TestFormulationVariableLayout(t *testing.T) {
	fin := &domain.UserFinances{
		Profile: domain.FinancialProfile{
			MonthlyGrossIncome: dec("5000"),
			CurrentAge:         40,
			RetirementMonth:    12,
			DeathMonth:         24,
			RiskTolerance:      50,
			Jurisdiction:       "AB",
		},
		Portfolio: domain.NewPortfolio(
			&domain.RevolvingLoan{Loan: domain.Loan{
				LoanID:         "card",
				Rate:           domain.NewFixedAnnualRate(dec("0.18")),
				CurrentBalance: dec("-3000"),
			}},
			&domain.Investment{
				InvestmentID:   "etf",
				Rate:           domain.NewFixedAnnualRate(dec("0.06")),
				CurrentBalance: dec("10000"),
				Account:        domain.TaxFreeRegistered,
				Asset:          domain.AssetETF,
			},
		),
		MonthlyAllowance: dec("800"),
	}
	mgr, err := periods.NewFixed(0, 12, 24, 6, 12)
	require.NoError(t, err)

	form, err := NewFormulation(fin, mgr, config.DefaultParameters(), flatTax(), tax.DefaultRoomRules())
	require.NoError(t, err)

	T := mgr.NumPeriods()
	// Per instrument: T+1 balances, T allocations; loans add T binaries and
	// T shortfall slacks, investments add T withdrawals.
	assert.Len(t, form.balance, 2*(T+1))
	assert.Len(t, form.alloc, 2*T)
	assert.Len(t, form.withdrawal, T)
	assert.Len(t, form.unpaid, T)
	assert.Greater(t, form.Model.NumConstraints(), 0)
}

func TestFormulationLoanBoundsAreNonPositive(t *testing.T) {
	fin := cashOnlyFinances()
	fin.Portfolio.Add(&domain.RevolvingLoan{Loan: domain.Loan{
		LoanID:         "card",
		Rate:           domain.NewFixedAnnualRate(dec("0.12")),
		CurrentBalance: dec("-500"),
	}})
	mgr, err := periods.NewFixed(0, 4, 4, 2, 2)
	require.NoError(t, err)

	form, err := NewFormulation(fin, mgr, config.DefaultParameters(), flatTax(), tax.DefaultRoomRules())
	require.NoError(t, err)

	// The loan floor is the starting balance compounded with no payments:
	// strictly below -500.
	floor := form.loanFloor(mustGet(t, fin.Portfolio, "card"))
	assert.Less(t, floor, -500.0)
	assert.Greater(t, floor, -520.0, "four months at 1%% stays close")
}

func mustGet(t *testing.T, p *domain.Portfolio, id string) domain.Instrument {
	t.Helper()
	inst, ok := p.Get(id)
	require.True(t, ok)
	return inst
}

// fakeSolver hands back a fixed solution keyed by variable name.
type fakeSolver struct {
	values map[string]float64
}

func (f *fakeSolver) solve() *Result {
	return &Result{Status: StatusOptimal, values: f.values}
}

func TestExtractPlanReplaysAndReconciles(t *testing.T) {
	fin := cashOnlyFinances()
	mgr, err := periods.NewFixed(0, 4, 4, 2, 2)
	require.NoError(t, err)

	form, err := NewFormulation(fin, mgr, config.DefaultParameters(), flatTax(), tax.DefaultRoomRules())
	require.NoError(t, err)

	// Hand-built optimum: the whole allowance goes to cash every month.
	// Zero rate, 2-month periods: balances step 0 -> 200 -> 400.
	res := (&fakeSolver{values: map[string]float64{
		"alloc_cash_0": 100,
		"alloc_cash_1": 100,
		"bal_cash_0":   0,
		"bal_cash_1":   200,
		"bal_cash_2":   400,
	}}).solve()

	plan, err := form.ExtractPlan(res, "milp-investment", 1.0, nil)
	require.NoError(t, err)

	require.Len(t, plan.Months, 4)
	assert.Equal(t, "milp-investment", plan.StrategyName)
	for _, ms := range plan.Months {
		assert.True(t, ms.Allocations["cash"].Equal(dec("100")), "month %d", ms.Month)
	}
	assert.True(t, plan.FinalNetWorth().Equal(dec("400")), "got %s", plan.FinalNetWorth())
}

func TestExtractPlanFailsOnDivergentBalances(t *testing.T) {
	fin := cashOnlyFinances()
	mgr, err := periods.NewFixed(0, 4, 4, 2, 2)
	require.NoError(t, err)

	form, err := NewFormulation(fin, mgr, config.DefaultParameters(), flatTax(), tax.DefaultRoomRules())
	require.NoError(t, err)

	// Model claims a second-period balance the replay cannot produce.
	res := (&fakeSolver{values: map[string]float64{
		"alloc_cash_0": 100,
		"alloc_cash_1": 100,
		"bal_cash_1":   950,
		"bal_cash_2":   1150,
	}}).solve()

	_, err = form.ExtractPlan(res, "milp-investment", 1.0, nil)
	require.Error(t, err)

	var rerr *ReconcileError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "cash", rerr.InstrumentID)
	assert.Equal(t, 2, rerr.Month)
}

func TestExtractPlanFailsOnDivergentFinalBalance(t *testing.T) {
	fin := cashOnlyFinances()
	mgr, err := periods.NewFixed(0, 4, 4, 2, 2)
	require.NoError(t, err)

	form, err := NewFormulation(fin, mgr, config.DefaultParameters(), flatTax(), tax.DefaultRoomRules())
	require.NoError(t, err)

	// Every start-of-period balance agrees with the replay; only the
	// end-of-horizon variable overstates it, inside the last period.
	res := (&fakeSolver{values: map[string]float64{
		"alloc_cash_0": 100,
		"alloc_cash_1": 100,
		"bal_cash_0":   0,
		"bal_cash_1":   200,
		"bal_cash_2":   600,
	}}).solve()

	_, err = form.ExtractPlan(res, "milp-investment", 1.0, nil)
	require.Error(t, err)

	var rerr *ReconcileError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "cash", rerr.InstrumentID)
	assert.Equal(t, 4, rerr.Month)
}

func TestCompoundingClosedForm(t *testing.T) {
	growth, flow := compounding(0, 6)
	assert.Equal(t, 1.0, growth)
	assert.Equal(t, 6.0, flow)

	growth, flow = compounding(0.01, 3)
	assert.InDelta(t, 1.030301, growth, 1e-9)
	// 1 + 1.01 + 1.01^2
	assert.InDelta(t, 3.0301, flow, 1e-9)
}
