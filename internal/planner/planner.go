// Package planner dispatches planning strategies and assembles their plans
// into a solution. Strategies are independent: each receives its own deep
// copy of the finances, and one strategy's failure never aborts the others.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/malfrine/two-cents-sub000/internal/config"
	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/milp"
	"github.com/malfrine/two-cents-sub000/internal/strategies"
)

// ErrAllStrategiesFailed is returned when no requested strategy produced a
// plan.
var ErrAllStrategiesFailed = errors.New("all planning strategies failed")

// Strategy is one planning algorithm. Run must not retain or mutate the
// finances it is given beyond the call.
type Strategy interface {
	Name() string
	Run(ctx context.Context, fin *domain.UserFinances) (*domain.FinancialPlan, error)
}

// Planner builds strategies on demand and runs planning requests.
type Planner struct {
	params config.Parameters
	solver milp.Solver
	logger *zap.Logger
}

// New creates a planner. A nil solver means each optimization strategy
// builds its own CBC solver from the parameters; tests inject a fake.
func New(params config.Parameters, solver milp.Solver, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{params: params, solver: solver, logger: logger}
}

// StrategyNames lists every registered strategy name in dispatch order.
func StrategyNames() []string {
	return []string{
		"snowball",
		"avalanche",
		"avalanche-ball",
		"milp-investment",
		"milp-goal",
		"milp-loan",
	}
}

func (p *Planner) strategyFor(name string) (Strategy, error) {
	switch name {
	case "snowball":
		return strategies.NewGreedy(strategies.Snowball, p.logger), nil
	case "avalanche":
		return strategies.NewGreedy(strategies.Avalanche, p.logger), nil
	case "avalanche-ball":
		return strategies.NewGreedy(strategies.AvalancheBall, p.logger), nil
	case "milp-investment":
		return strategies.NewOptimizer(strategies.FocusInvestment, p.params, p.solver, p.logger), nil
	case "milp-goal":
		return strategies.NewOptimizer(strategies.FocusGoal, p.params, p.solver, p.logger), nil
	case "milp-loan":
		return strategies.NewOptimizer(strategies.FocusLoan, p.params, p.solver, p.logger), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// RunExplicit runs exactly the named strategies. Failed strategies are
// logged and omitted from the solution; only when every one fails does the
// request fail, with ErrAllStrategiesFailed wrapping the last cause.
func (p *Planner) RunExplicit(ctx context.Context, fin *domain.UserFinances, names []string) (*domain.Solution, error) {
	sol := &domain.Solution{Request: fin, Plans: make(map[string]*domain.FinancialPlan)}
	var lastErr error
	for _, name := range names {
		strat, err := p.strategyFor(name)
		if err != nil {
			return nil, err
		}
		plan, err := p.runOne(ctx, strat, fin)
		if err != nil {
			lastErr = err
			continue
		}
		sol.Plans[name] = plan
	}
	if len(sol.Plans) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrAllStrategiesFailed, lastErr)
		}
		return nil, ErrAllStrategiesFailed
	}
	return sol, nil
}

// RunAuto runs the optimization cascade: the investment-focused variant
// first, the goal-focused variant when the investment plan failed or left a
// goal unmet, and the loan-focused variant whenever debt exists. Heuristics
// are opt-in through RunExplicit, so a cascade where every solve fails
// surfaces the failure instead of silently substituting a greedy plan.
func (p *Planner) RunAuto(ctx context.Context, fin *domain.UserFinances) (*domain.Solution, error) {
	sol := &domain.Solution{Request: fin, Plans: make(map[string]*domain.FinancialPlan)}
	var lastErr error

	record := func(name string) *domain.FinancialPlan {
		strat, _ := p.strategyFor(name)
		plan, err := p.runOne(ctx, strat, fin)
		if err != nil {
			lastErr = err
			return nil
		}
		sol.Plans[name] = plan
		return plan
	}

	invPlan := record("milp-investment")
	if invPlan == nil || p.anyGoalUnmet(invPlan, fin) {
		record("milp-goal")
	}
	if fin.Portfolio.HasLoans() {
		record("milp-loan")
	}

	if len(sol.Plans) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrAllStrategiesFailed, lastErr)
		}
		return nil, ErrAllStrategiesFailed
	}
	return sol, nil
}

// runOne isolates a strategy on its own copy of the finances and logs the
// outcome either way.
func (p *Planner) runOne(ctx context.Context, strat Strategy, fin *domain.UserFinances) (*domain.FinancialPlan, error) {
	plan, err := strat.Run(ctx, fin.DeepCopy())
	if err != nil {
		p.logger.Warn("strategy failed",
			zap.String("strategy", strat.Name()),
			zap.Error(err))
		return nil, err
	}
	p.logger.Info("strategy completed",
		zap.String("strategy", strat.Name()),
		zap.String("finalNetWorth", plan.FinalNetWorth().StringFixed(2)))
	return plan, nil
}

// anyGoalUnmet checks a plan's outcome against each goal: purchase goals
// compare withdrawals from allowed accounts across the due month, nest-egg
// goals compare allowed balances at the due month against the cumulative
// target.
func (p *Planner) anyGoalUnmet(plan *domain.FinancialPlan, fin *domain.UserFinances) bool {
	cumulative := decimal.Zero
	for _, goal := range fin.Goals {
		allowed := make(map[string]bool)
		for _, id := range goal.AllowedInvestmentIDs(fin.Portfolio) {
			allowed[id] = true
		}
		switch goal.Kind {
		case domain.GoalBigPurchase:
			withdrawn := decimal.Zero
			for _, ms := range plan.Months {
				if ms.Month != goal.DueMonth {
					continue
				}
				for id, amt := range ms.Withdrawals {
					if allowed[id] {
						withdrawn = withdrawn.Add(amt)
					}
				}
			}
			if withdrawn.LessThan(goal.Amount) {
				return true
			}
		case domain.GoalNestEgg:
			cumulative = cumulative.Add(goal.Amount)
			total := decimal.Zero
			for _, ms := range plan.Months {
				if ms.Month != goal.DueMonth {
					continue
				}
				for id := range allowed {
					if inst, ok := ms.Portfolio.Get(id); ok {
						total = total.Add(inst.Balance())
					}
				}
			}
			if total.LessThan(cumulative) {
				return true
			}
		}
	}
	return false
}
