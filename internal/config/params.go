package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Parameters is the flat tuning surface of the planning engine: horizon
// granularities, solver limits, and every penalty weight used by the
// optimization objective. Nothing in the formulation hard-codes these
// inline; they all flow from here.
type Parameters struct {
	// MaxWorkingMonthsPerPeriod bounds decision-period width before
	// retirement.
	MaxWorkingMonthsPerPeriod int `yaml:"max_working_months_per_period"`
	// MaxRetirementMonthsPerPeriod bounds decision-period width after
	// retirement.
	MaxRetirementMonthsPerPeriod int `yaml:"max_retirement_months_per_period"`
	// ActionPlanCutoffMonths forces single-month granularity for the first
	// few months so the near-term action plan is exact.
	ActionPlanCutoffMonths int `yaml:"action_plan_cutoff_months"`

	// SolverBinary is the MILP solver executable (CBC-compatible CLI).
	SolverBinary string `yaml:"solver_binary"`
	// SolverTimeLimit is the wall-clock cutoff for one solve. This is the
	// engine's only cancellation mechanism.
	SolverTimeLimit time.Duration `yaml:"solver_time_limit"`
	// SolverMaxNodes bounds the branch-and-bound tree.
	SolverMaxNodes int `yaml:"solver_max_nodes"`
	// SolverGapTolerance is the accepted relative optimality gap.
	SolverGapTolerance float64 `yaml:"solver_gap_tolerance"`

	// ReconcileTolerance is the max absolute divergence allowed between the
	// optimizer's balance variables and the simulator replay at period
	// boundaries. Exceeding it fails the strategy.
	ReconcileTolerance float64 `yaml:"reconcile_tolerance"`

	// Penalty weights. They must dominate mild net-worth gains so the
	// optimizer strongly prefers feasible-looking behaviour, but stay finite
	// so a solution always exists.
	PenaltyRiskViolation           float64 `yaml:"penalty_risk_violation"`
	PenaltyInstrumentRiskViolation float64 `yaml:"penalty_instrument_risk_violation"`
	PenaltyLoanDueDateViolation    float64 `yaml:"penalty_loan_due_date_violation"`
	PenaltyRetirementSpending      float64 `yaml:"penalty_retirement_spending"`
	PenaltySavingsGoal             float64 `yaml:"penalty_savings_goal"`
	PenaltyPurchaseGoal            float64 `yaml:"penalty_purchase_goal"`
	PenaltyMinPaymentShortfall     float64 `yaml:"penalty_min_payment_shortfall"`
	// RegisteredUsageIncentive is a small positive weight nudging
	// allocations toward registered accounts when otherwise indifferent.
	RegisteredUsageIncentive float64 `yaml:"registered_usage_incentive"`
	// TaxWeight scales total taxes paid in the objective.
	TaxWeight float64 `yaml:"tax_weight"`
}

// DefaultParameters returns the documented defaults.
func DefaultParameters() Parameters {
	return Parameters{
		MaxWorkingMonthsPerPeriod:    12,
		MaxRetirementMonthsPerPeriod: 24,
		ActionPlanCutoffMonths:       3,

		SolverBinary:       "cbc",
		SolverTimeLimit:    30 * time.Second,
		SolverMaxNodes:     50000,
		SolverGapTolerance: 0.01,

		ReconcileTolerance: 1.0,

		PenaltyRiskViolation:           500,
		PenaltyInstrumentRiskViolation: 200,
		PenaltyLoanDueDateViolation:    1000,
		PenaltyRetirementSpending:      300,
		PenaltySavingsGoal:             400,
		PenaltyPurchaseGoal:            400,
		PenaltyMinPaymentShortfall:     800,
		RegisteredUsageIncentive:       0.01,
		TaxWeight:                      1,
	}
}

// Validate rejects parameter sets the engine cannot run with.
func (p Parameters) Validate() error {
	if p.MaxWorkingMonthsPerPeriod < 1 || p.MaxRetirementMonthsPerPeriod < 1 {
		return fmt.Errorf("period widths must be at least 1")
	}
	if p.SolverTimeLimit <= 0 {
		return fmt.Errorf("solver time limit must be positive")
	}
	if p.SolverGapTolerance < 0 || p.SolverGapTolerance >= 1 {
		return fmt.Errorf("solver gap tolerance must be in [0, 1)")
	}
	if p.ReconcileTolerance <= 0 {
		return fmt.Errorf("reconcile tolerance must be positive")
	}
	return nil
}

// LoadParameters reads a YAML parameters file over the defaults; absent
// fields keep their default values.
func LoadParameters(filename string) (Parameters, error) {
	params := DefaultParameters()
	data, err := os.ReadFile(filename)
	if err != nil {
		return params, fmt.Errorf("failed to read parameters file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("failed to parse parameters YAML: %w", err)
	}
	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("parameters validation failed: %w", err)
	}
	return params, nil
}
