package strategies

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/malfrine/two-cents-sub000/internal/config"
	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/milp"
	"github.com/malfrine/two-cents-sub000/internal/periods"
	"github.com/malfrine/two-cents-sub000/internal/tax"
)

// Focus selects an optimization strategy variant: the same formulation with
// reweighted objectives emphasizing investment growth, goal satisfaction, or
// debt retirement.
type Focus int

const (
	FocusInvestment Focus = iota
	FocusGoal
	FocusLoan
)

func (f Focus) String() string {
	switch f {
	case FocusInvestment:
		return "milp-investment"
	case FocusGoal:
		return "milp-goal"
	case FocusLoan:
		return "milp-loan"
	default:
		return "unknown"
	}
}

// focusWeight multiplies the emphasized penalty group.
const focusWeight = 10

// apply reweights a parameter set for the focus. The base weights are the
// investment-focused preset.
func (f Focus) apply(params config.Parameters) config.Parameters {
	switch f {
	case FocusGoal:
		params.PenaltySavingsGoal *= focusWeight
		params.PenaltyPurchaseGoal *= focusWeight
	case FocusLoan:
		params.PenaltyLoanDueDateViolation *= focusWeight
		params.PenaltyMinPaymentShortfall *= focusWeight
		params.RegisteredUsageIncentive = 0
	}
	return params
}

// Optimizer is the MILP-backed planning strategy: it aggregates the horizon
// into decision periods, builds the multi-period model, hands it to the
// solver in one blocking call, and replays the solution through the
// simulator at month resolution.
type Optimizer struct {
	focus  Focus
	params config.Parameters
	solver milp.Solver
	logger *zap.Logger
}

// NewOptimizer creates an optimization strategy with the given focus. A nil
// solver gets the CBC default from the parameters.
func NewOptimizer(focus Focus, params config.Parameters, solver milp.Solver, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if solver == nil {
		solver = milp.NewCBCSolver(params.SolverBinary, logger)
	}
	return &Optimizer{focus: focus, params: params, solver: solver, logger: logger}
}

// Name returns the strategy's registry name.
func (o *Optimizer) Name() string { return o.focus.String() }

// Run builds and solves the plan model. Any solver rejection (infeasible,
// unbounded, out of time without an incumbent) or reconciliation failure
// fails the strategy; the dispatcher decides what to run instead.
func (o *Optimizer) Run(ctx context.Context, fin *domain.UserFinances) (*domain.FinancialPlan, error) {
	if err := fin.Validate(); err != nil {
		return nil, fmt.Errorf("%s strategy rejected input: %w", o.Name(), err)
	}
	calc, err := tax.ForJurisdiction(fin.Profile.Jurisdiction)
	if err != nil {
		return nil, err
	}

	params := o.focus.apply(o.params)
	mgr, err := o.buildPeriods(fin, params)
	if err != nil {
		return nil, fmt.Errorf("%s period decomposition failed: %w", o.Name(), err)
	}

	form, err := milp.NewFormulation(fin, mgr, params, calc, tax.DefaultRoomRules())
	if err != nil {
		return nil, fmt.Errorf("%s model build failed: %w", o.Name(), err)
	}
	o.logger.Info("built plan model",
		zap.String("strategy", o.Name()),
		zap.Int("periods", mgr.NumPeriods()),
		zap.Int("variables", form.Model.NumVars()),
		zap.Int("constraints", form.Model.NumConstraints()))

	res, err := o.solver.Solve(ctx, form.Model, milp.Limits{
		WallClock:    params.SolverTimeLimit,
		MaxNodes:     params.SolverMaxNodes,
		GapTolerance: params.SolverGapTolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("%s solve failed: %w", o.Name(), err)
	}
	// CBC reports infeasible/unbounded in the solution file, not as a solve
	// error. Anything without a usable incumbent means no plan.
	if !res.Status.Accepted() {
		return nil, fmt.Errorf("%s solve failed: %w", o.Name(),
			&milp.SolveError{Op: "solve", Status: res.Status})
	}

	return form.ExtractPlan(res, o.Name(), params.ReconcileTolerance, o.logger)
}

// buildPeriods derives the event months that must bound or isolate decision
// periods: purchase-goal due dates (single-month, a withdrawal resolves
// there), nest-egg due dates, loan final months, guaranteed-investment
// maturities, and the near-term action-plan months kept at full resolution.
func (o *Optimizer) buildPeriods(fin *domain.UserFinances, params config.Parameters) (*periods.Manager, error) {
	var events []periods.Event
	for _, goal := range fin.Goals {
		events = append(events, periods.Event{
			Month:      goal.DueMonth,
			Withdrawal: goal.Kind == domain.GoalBigPurchase,
		})
	}
	for _, loan := range fin.Portfolio.Loans() {
		if final, ok := loan.FinalMonth(); ok {
			events = append(events, periods.Event{Month: final})
		}
	}
	for _, g := range fin.Portfolio.GuaranteedInvestments() {
		events = append(events, periods.Event{Month: g.MaturityMonth})
	}
	for m := 0; m < params.ActionPlanCutoffMonths && m < fin.Profile.DeathMonth; m++ {
		events = append(events, periods.Event{Month: m, Withdrawal: true})
	}

	return periods.NewEventAware(
		0,
		fin.Profile.RetirementMonth,
		fin.Profile.DeathMonth,
		params.MaxWorkingMonthsPerPeriod,
		params.MaxRetirementMonthsPerPeriod,
		events,
		o.logger,
	)
}
