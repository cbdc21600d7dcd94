// Package strategies implements the fast, non-optimal planning heuristics:
// Snowball, Avalanche, and Avalanche-Ball. Each runs the portfolio
// simulator month by month, paying every required minimum first and then
// directing leftover allowance at the "worst" debt (or, debt-free, the
// best-rated investment).
package strategies

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/simulate"
	"github.com/malfrine/two-cents-sub000/internal/tax"
)

// Kind selects the debt-ranking rule of a greedy strategy.
type Kind int

const (
	// Snowball pays the loan with the smallest absolute balance first.
	Snowball Kind = iota
	// Avalanche pays the loan with the highest rate first.
	Avalanche
	// AvalancheBall pays the loan accruing the most interest dollars this
	// month (balance times rate) first.
	AvalancheBall
)

func (k Kind) String() string {
	switch k {
	case Snowball:
		return "snowball"
	case Avalanche:
		return "avalanche"
	case AvalancheBall:
		return "avalanche-ball"
	default:
		return "unknown"
	}
}

// Greedy is one greedy heuristic strategy.
type Greedy struct {
	kind   Kind
	logger *zap.Logger
}

// NewGreedy creates a greedy strategy of the given kind.
func NewGreedy(kind Kind, logger *zap.Logger) *Greedy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Greedy{kind: kind, logger: logger}
}

// Name returns the strategy's registry name.
func (g *Greedy) Name() string { return g.kind.String() }

// Run simulates the full horizon month by month. It fails fast, before any
// month is simulated, when the aggregate minimum payments exceed the monthly
// allowance.
func (g *Greedy) Run(ctx context.Context, fin *domain.UserFinances) (*domain.FinancialPlan, error) {
	if err := fin.Validate(); err != nil {
		return nil, fmt.Errorf("%s strategy rejected input: %w", g.Name(), err)
	}

	calc, err := tax.ForJurisdiction(fin.Profile.Jurisdiction)
	if err != nil {
		return nil, err
	}

	plan := &domain.FinancialPlan{StrategyName: g.Name()}
	portfolio := fin.Portfolio.DeepCopy()

	for month := 0; month < fin.Profile.DeathMonth; month++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		allowance := fin.MonthlyAllowance
		gross := fin.Profile.MonthlyGrossIncome
		if fin.Profile.IsRetiredAt(month) {
			allowance = decimal.Zero
			gross = decimal.Zero
		}

		payments := g.allocate(portfolio, month, allowance)

		taxPaid := calc.MonthlyTax(gross)
		plan.Months = append(plan.Months, domain.MonthlySolution{
			Month:         month,
			Portfolio:     portfolio,
			Allocations:   payments,
			Withdrawals:   map[string]decimal.Decimal{},
			TaxPaid:       taxPaid,
			GrossIncome:   gross,
			TaxableIncome: gross,
		})

		portfolio = simulate.Forward(portfolio, payments, month, nil, g.logger)
	}

	plan.FinalPortfolio = portfolio
	return plan, nil
}

// allocate distributes one month's allowance: minimums first, then leftover
// at the ranked target. Iteration is in ascending instrument id order, so
// ties go to the first-seen instrument deterministically.
func (g *Greedy) allocate(p *domain.Portfolio, month int, allowance decimal.Decimal) map[string]decimal.Decimal {
	payments := make(map[string]decimal.Decimal)
	remaining := allowance

	for _, inst := range p.Instruments() {
		min := inst.MinimumPayment(month)
		if min.IsZero() {
			continue
		}
		// Post-retirement the allowance is zero; minimums are skipped rather
		// than paid from phantom income.
		amt := decimal.Min(min, remaining)
		if amt.GreaterThan(decimal.Zero) {
			payments[inst.ID()] = amt
			remaining = remaining.Sub(amt)
		}
	}

	for remaining.GreaterThan(decimal.Zero) {
		if target := g.worstLoan(p, month, payments); target != nil {
			owed := target.Balance().Neg().Sub(paymentsSoFar(payments, target.ID()))
			amt := decimal.Min(remaining, owed)
			if amt.LessThanOrEqual(decimal.Zero) {
				break
			}
			payments[target.ID()] = paymentsSoFar(payments, target.ID()).Add(amt)
			remaining = remaining.Sub(amt)
			continue
		}
		if target := bestInvestment(p, month); target != nil {
			payments[target.ID()] = paymentsSoFar(payments, target.ID()).Add(remaining)
			remaining = decimal.Zero
			continue
		}
		// Nothing left to pay; leftover allowance stays unallocated.
		break
	}

	return payments
}

// worstLoan ranks the open loans by the strategy's comparator and returns
// the worst, or nil when no loan has payable balance left this month.
func (g *Greedy) worstLoan(p *domain.Portfolio, month int, payments map[string]decimal.Decimal) domain.Instrument {
	var worst domain.Instrument
	var worstScore decimal.Decimal
	for _, loan := range p.Loans() {
		owed := loan.Balance().Neg().Sub(paymentsSoFar(payments, loan.ID()))
		if owed.LessThanOrEqual(decimal.Zero) {
			continue
		}
		score := g.score(loan, month)
		if worst == nil || g.beats(score, worstScore) {
			worst = loan
			worstScore = score
		}
	}
	return worst
}

func (g *Greedy) score(loan domain.Instrument, month int) decimal.Decimal {
	switch g.kind {
	case Snowball:
		return loan.Balance().Abs()
	case Avalanche:
		return loan.MonthlyRate(month)
	default:
		return loan.Balance().Abs().Mul(loan.MonthlyRate(month))
	}
}

// beats reports whether a strictly better score displaces the incumbent.
// Strict comparison keeps the first-seen instrument on ties.
func (g *Greedy) beats(score, incumbent decimal.Decimal) bool {
	if g.kind == Snowball {
		return score.LessThan(incumbent)
	}
	return score.GreaterThan(incumbent)
}

// bestInvestment returns the highest-rated non-guaranteed investment, or nil.
func bestInvestment(p *domain.Portfolio, month int) domain.Instrument {
	var best *domain.Investment
	for _, inv := range p.Investments() {
		if best == nil || inv.MonthlyRate(month).GreaterThan(best.MonthlyRate(month)) {
			best = inv
		}
	}
	if best == nil {
		return nil
	}
	return best
}

func paymentsSoFar(payments map[string]decimal.Decimal, id string) decimal.Decimal {
	if amt, ok := payments[id]; ok {
		return amt
	}
	return decimal.Zero
}
