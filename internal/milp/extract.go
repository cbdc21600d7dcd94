package milp

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/simulate"
)

// ReconcileError reports divergence between the optimizer's balance
// variables and the simulator replay at a period boundary. The optimizer's
// closed-form compounding is an approximation of the month-by-month
// simulation; past the tolerance the plan cannot be trusted.
type ReconcileError struct {
	InstrumentID string
	Month        int
	Modeled      decimal.Decimal
	Simulated    decimal.Decimal
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconciliation failed for %s at month %d: model %s vs simulation %s",
		e.InstrumentID, e.Month, e.Modeled.StringFixed(2), e.Simulated.StringFixed(2))
}

// ExtractPlan converts a solved formulation into a month-resolution
// financial plan: each period's monthly allocation and withdrawal values are
// applied uniformly to every month of the period and replayed through the
// portfolio simulator, which is the system of record for balances. Period
// boundaries are reconciled against the model's balance variables within
// tolerance.
func (f *Formulation) ExtractPlan(res *Result, strategyName string, tolerance float64, logger *zap.Logger) (*domain.FinancialPlan, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	plan := &domain.FinancialPlan{StrategyName: strategyName}
	portfolio := f.finances.Portfolio.DeepCopy()
	sinkID, hasSink := portfolio.CashSinkID()

	for _, p := range f.Periods.Periods() {
		if err := f.reconcile(res, portfolio, p.Index, p.Start(), tolerance); err != nil {
			return nil, err
		}
		taxMonthly := decimal.NewFromFloat(f.PeriodTax(res, p.Index))
		taxableMonthly := decimal.NewFromFloat(f.PeriodTaxableIncome(res, p.Index))
		gross := decimal.Zero
		if !f.finances.Profile.IsRetiredAt(p.Start()) {
			gross = f.finances.Profile.MonthlyGrossIncome
		}

		for _, month := range p.Months {
			payments := make(map[string]decimal.Decimal)
			withdrawals := make(map[string]decimal.Decimal)
			for _, inst := range portfolio.Instruments() {
				id := inst.ID()
				if v, ok := f.alloc[ikey{id, p.Index}]; ok {
					if amt := res.Value(v); amt > 1e-9 {
						payments[id] = decimal.NewFromFloat(amt)
					}
				}
				if v, ok := f.withdrawal[ikey{id, p.Index}]; ok {
					if amt := res.Value(v); amt > 1e-9 {
						withdrawals[id] = decimal.NewFromFloat(amt)
					}
				}
			}
			// Unallocated allowance lands in the cash sink rather than
			// vanishing.
			if hasSink {
				if leftover := res.Value(f.unalloc[p.Index]); leftover > 1e-9 {
					payments[sinkID] = payments[sinkID].Add(decimal.NewFromFloat(leftover))
				}
			}

			plan.Months = append(plan.Months, domain.MonthlySolution{
				Month:         month,
				Portfolio:     portfolio,
				Allocations:   payments,
				Withdrawals:   withdrawals,
				TaxPaid:       taxMonthly,
				GrossIncome:   gross,
				TaxableIncome: taxableMonthly,
			})
			portfolio = simulate.Forward(portfolio, payments, month, withdrawals, logger)
		}
	}

	// The end-of-horizon balance variables cover the last period's months,
	// which no start-of-period check sees.
	if err := f.reconcile(res, portfolio, f.Periods.NumPeriods(), f.Periods.Final(), tolerance); err != nil {
		return nil, err
	}

	plan.FinalPortfolio = portfolio
	return plan, nil
}

// reconcile compares each instrument's simulated balance against the model's
// start-of-period balance variable. Instruments the simulator has removed
// (paid-off loans) reconcile against zero.
func (f *Formulation) reconcile(res *Result, portfolio *domain.Portfolio, periodIndex, month int, tolerance float64) error {
	for _, inst := range f.finances.Portfolio.Instruments() {
		id := inst.ID()
		modeled := res.Value(f.balance[ikey{id, periodIndex}])
		simulated := 0.0
		if current, ok := portfolio.Get(id); ok {
			simulated, _ = current.Balance().Float64()
		}
		if math.Abs(modeled-simulated) > tolerance {
			return &ReconcileError{
				InstrumentID: id,
				Month:        month,
				Modeled:      decimal.NewFromFloat(modeled),
				Simulated:    decimal.NewFromFloat(simulated),
			}
		}
	}
	return nil
}
