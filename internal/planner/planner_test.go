package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malfrine/two-cents-sub000/internal/config"
	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/milp"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// failingSolver rejects every model, so optimization strategies always fail
// and the dispatcher has to fall back on whatever else succeeded.
type failingSolver struct{}

func (failingSolver) Solve(_ context.Context, _ *milp.Model, _ milp.Limits) (*milp.Result, error) {
	return nil, &milp.SolveError{Op: "solve", Status: milp.StatusInfeasible}
}

func validFinances() *domain.UserFinances {
	return &domain.UserFinances{
		Profile: domain.FinancialProfile{
			MonthlyGrossIncome: dec("6000"),
			CurrentAge:         35,
			RetirementMonth:    24,
			DeathMonth:         36,
			RiskTolerance:      50,
			Jurisdiction:       "AB",
		},
		Portfolio: domain.NewPortfolio(
			&domain.RevolvingLoan{Loan: domain.Loan{
				LoanID:         "card",
				Rate:           domain.NewFixedAnnualRate(dec("0.18")),
				CurrentBalance: dec("-2000"),
			}},
			&domain.Investment{
				InvestmentID: "cash",
				Rate:         domain.FixedRate{Rate: decimal.Zero},
				Account:      domain.NonRegistered,
				Asset:        domain.AssetCash,
			},
		),
		MonthlyAllowance: dec("900"),
	}
}

func TestRunExplicitOmitsFailedStrategies(t *testing.T) {
	p := New(config.DefaultParameters(), failingSolver{}, nil)

	sol, err := p.RunExplicit(context.Background(), validFinances(),
		[]string{"snowball", "avalanche", "milp-investment"})
	require.NoError(t, err)

	assert.Contains(t, sol.Plans, "snowball")
	assert.Contains(t, sol.Plans, "avalanche")
	assert.NotContains(t, sol.Plans, "milp-investment", "solver failure drops the plan, not the request")
}

func TestRunExplicitUnknownStrategyIsFatal(t *testing.T) {
	p := New(config.DefaultParameters(), failingSolver{}, nil)

	_, err := p.RunExplicit(context.Background(), validFinances(), []string{"snowball", "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestAllStrategiesFailedIsFatal(t *testing.T) {
	fin := validFinances()
	// Minimums above the allowance fail every strategy's precondition.
	fin.MonthlyAllowance = dec("1")
	fin.Portfolio.Add(&domain.Mortgage{
		Loan: domain.Loan{
			LoanID:         "house",
			Rate:           domain.NewFixedAnnualRate(dec("0.05")),
			CurrentBalance: dec("-400000"),
		},
		EndMonth:     300,
		FixedPayment: dec("2200"),
	})

	p := New(config.DefaultParameters(), failingSolver{}, nil)

	_, err := p.RunExplicit(context.Background(), fin, []string{"snowball", "avalanche-ball"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllStrategiesFailed))

	_, err = p.RunAuto(context.Background(), fin)
	assert.True(t, errors.Is(err, ErrAllStrategiesFailed))
}

// cannedSolver hands the same result to every model.
type cannedSolver struct {
	result *milp.Result
}

func (s cannedSolver) Solve(_ context.Context, _ *milp.Model, _ milp.Limits) (*milp.Result, error) {
	return s.result, nil
}

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

func TestRunAutoIsOptimizationCascadeOnly(t *testing.T) {
	// Four single-month periods; steady contributions step the zero-rate
	// balance 0 -> 400.
	res := milp.NewResult(milp.StatusOptimal, 400, map[string]float64{
		"alloc_cash_0": 100,
		"alloc_cash_1": 100,
		"alloc_cash_2": 100,
		"alloc_cash_3": 100,
		"bal_cash_1":   100,
		"bal_cash_2":   200,
		"bal_cash_3":   300,
		"bal_cash_4":   400,
	})
	p := New(config.DefaultParameters(), cannedSolver{result: res}, nil)

	sol, err := p.RunAuto(context.Background(), cashOnlyFinances())
	require.NoError(t, err)

	// No loans and no unmet goals: the cascade stops after the
	// investment-focused variant, and no heuristic ever joins.
	assert.Contains(t, sol.Plans, "milp-investment")
	assert.Len(t, sol.Plans, 1)
}

func TestRunAutoFailsWhenCascadeFails(t *testing.T) {
	// The heuristics would succeed on this portfolio, so a surviving plan
	// would mean automatic mode substituted them for the failed cascade.
	p := New(config.DefaultParameters(), failingSolver{}, nil)

	_, err := p.RunAuto(context.Background(), validFinances())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllStrategiesFailed))
}

func TestRunIsolatesStrategyState(t *testing.T) {
	fin := validFinances()
	p := New(config.DefaultParameters(), failingSolver{}, nil)

	_, err := p.RunExplicit(context.Background(), fin, []string{"avalanche"})
	require.NoError(t, err)

	card, ok := fin.Portfolio.Get("card")
	require.True(t, ok)
	assert.True(t, card.Balance().Equal(dec("-2000")), "input snapshot mutated by a strategy run")
}

func TestStrategyNamesMatchRegistry(t *testing.T) {
	p := New(config.DefaultParameters(), failingSolver{}, nil)
	for _, name := range StrategyNames() {
		strat, err := p.strategyFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, strat.Name())
	}
}
