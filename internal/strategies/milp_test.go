package strategies

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malfrine/two-cents-sub000/internal/config"
	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/milp"
)

// scriptedSolver returns a canned result for every model.
type scriptedSolver struct {
	result *milp.Result
	err    error
}

func (s scriptedSolver) Solve(_ context.Context, _ *milp.Model, _ milp.Limits) (*milp.Result, error) {
	return s.result, s.err
}

func optimizerFinances() *domain.UserFinances {
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

func TestOptimizerReplaysSolvedPlan(t *testing.T) {
	// Four single-month periods (three action-plan months plus the rest):
	// steady contributions step the zero-rate balance 0 -> 400.
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

	opt := NewOptimizer(FocusInvestment, config.DefaultParameters(), scriptedSolver{result: res}, nil)
	plan, err := opt.Run(context.Background(), optimizerFinances())
	require.NoError(t, err)

	assert.Equal(t, "milp-investment", plan.StrategyName)
	require.Len(t, plan.Months, 4)
	assert.True(t, plan.FinalNetWorth().Equal(dec("400")), "got %s", plan.FinalNetWorth())
}

func TestOptimizerFailsWhenSolverRejects(t *testing.T) {
	opt := NewOptimizer(FocusLoan, config.DefaultParameters(),
		scriptedSolver{err: &milp.SolveError{Op: "solve", Status: milp.StatusInfeasible}}, nil)

	_, err := opt.Run(context.Background(), optimizerFinances())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "milp-loan")
}

func TestOptimizerRejectsNonAcceptedStatus(t *testing.T) {
	// CBC writes infeasible/unbounded into the solution file and Solve
	// returns them with a nil error. That must never become a plan.
	for _, status := range []milp.Status{milp.StatusInfeasible, milp.StatusUnbounded, milp.StatusError} {
		res := milp.NewResult(status, 0, map[string]float64{})
		opt := NewOptimizer(FocusInvestment, config.DefaultParameters(), scriptedSolver{result: res}, nil)

		plan, err := opt.Run(context.Background(), optimizerFinances())
		require.Error(t, err, "status %s", status)
		assert.Nil(t, plan, "status %s", status)

		var solveErr *milp.SolveError
		require.ErrorAs(t, err, &solveErr)
		assert.Equal(t, status, solveErr.Status)
	}
}

func TestOptimizerRejectsInvalidInput(t *testing.T) {
	fin := optimizerFinances()
	fin.Profile.RiskTolerance = 250

	opt := NewOptimizer(FocusGoal, config.DefaultParameters(), scriptedSolver{}, nil)
	_, err := opt.Run(context.Background(), fin)
	assert.Error(t, err)
}

func TestFocusNamesAndWeights(t *testing.T) {
	assert.Equal(t, "milp-investment", FocusInvestment.String())
	assert.Equal(t, "milp-goal", FocusGoal.String())
	assert.Equal(t, "milp-loan", FocusLoan.String())

	base := config.DefaultParameters()
	goal := FocusGoal.apply(base)
	assert.Equal(t, base.PenaltySavingsGoal*focusWeight, goal.PenaltySavingsGoal)
	assert.Equal(t, base.PenaltyLoanDueDateViolation, goal.PenaltyLoanDueDateViolation)

	loan := FocusLoan.apply(base)
	assert.Equal(t, base.PenaltyMinPaymentShortfall*focusWeight, loan.PenaltyMinPaymentShortfall)
	assert.Zero(t, loan.RegisteredUsageIncentive)
}
