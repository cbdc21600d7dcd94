package milp

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/malfrine/two-cents-sub000/internal/config"
	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/periods"
	"github.com/malfrine/two-cents-sub000/internal/tax"
)

// ikey indexes a variable by instrument and decision period.
type ikey struct {
	id string
	t  int
}

// bkey indexes a variable by period, taxing entity, and bracket.
type bkey struct {
	t       int
	entity  int
	bracket int
}

// Formulation holds the built model plus every variable handle needed to
// extract a solution. Balance variables are indexed t = 0..T where T is the
// number of periods; bal[i,t] is the balance at the start of period t and
// bal[i,T] is the end-of-horizon balance.
type Formulation struct {
	Model   *Model
	Periods *periods.Manager

	finances *domain.UserFinances
	params   config.Parameters
	taxCalc  tax.Calculator
	rooms    tax.RoomRules

	alloc      map[ikey]Var
	balance    map[ikey]Var
	withdrawal map[ikey]Var
	unpaid     map[ikey]Var
	unalloc    map[int]Var

	riskSlack     map[int]Var
	instRiskSlack map[ikey]Var
	dueSlack      map[ikey]Var
	retSpendSlack map[int]Var
	goalSlack     map[string]Var
	minPaySlack   map[ikey]Var

	bracketPos     map[bkey]Var
	bracketNeg     map[bkey]Var
	bracketRoom    map[bkey]Var
	bracketExceeds map[bkey]Var
	bracketTax     map[bkey]Var
	retirementRoom map[int]Var
	taxFreeRoom    map[int]Var

	// bigM bounds the monthly income decomposition and indicator linking.
	bigM float64
}

// NewFormulation builds the complete multi-period model for a snapshot over
// the given decision periods. Weights come pre-adjusted for the strategy
// focus.
func NewFormulation(fin *domain.UserFinances, mgr *periods.Manager, params config.Parameters, taxCalc tax.Calculator, rooms tax.RoomRules) (*Formulation, error) {
	f := &Formulation{
		Model:    NewModel("two-cents plan"),
		Periods:  mgr,
		finances: fin,
		params:   params,
		taxCalc:  taxCalc,
		rooms:    rooms,

		alloc:      make(map[ikey]Var),
		balance:    make(map[ikey]Var),
		withdrawal: make(map[ikey]Var),
		unpaid:     make(map[ikey]Var),
		unalloc:    make(map[int]Var),

		riskSlack:     make(map[int]Var),
		instRiskSlack: make(map[ikey]Var),
		dueSlack:      make(map[ikey]Var),
		retSpendSlack: make(map[int]Var),
		goalSlack:     make(map[string]Var),
		minPaySlack:   make(map[ikey]Var),

		bracketPos:     make(map[bkey]Var),
		bracketNeg:     make(map[bkey]Var),
		bracketRoom:    make(map[bkey]Var),
		bracketExceeds: make(map[bkey]Var),
		bracketTax:     make(map[bkey]Var),
		retirementRoom: make(map[int]Var),
		taxFreeRoom:    make(map[int]Var),
	}
	f.bigM = f.incomeBound()

	f.buildVariables()
	f.buildBalanceRecursion()
	f.buildAllocationRows()
	f.buildMinimumPayments()
	f.buildUnpaidLinking()
	f.buildDueDates()
	f.buildRiskLimits()
	f.buildTaxAccounting()
	f.buildRetirementSpending()
	f.buildGoals()
	f.buildContributionRooms()
	f.buildMandatoryWithdrawals()
	f.buildObjective()

	return f, nil
}

// toF converts domain decimals to model coefficients.
func toF(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// monthlyRateAt evaluates an instrument's rate at a period's first month;
// rates are held constant within a period.
func (f *Formulation) monthlyRateAt(inst domain.Instrument, p periods.Period) float64 {
	return toF(inst.MonthlyRate(p.Start()))
}

// compounding returns (1+r)^n and the geometric net-flow factor
// sum_{k=0..n-1} (1+r)^k. At zero rate the pair degrades to (1, n), which
// keeps the closed form free of a division by zero.
func compounding(r float64, n int) (growth, flow float64) {
	if r == 0 {
		return 1, float64(n)
	}
	growth = math.Pow(1+r, float64(n))
	flow = (growth - 1) / r
	return growth, flow
}

// loanFloor is the most negative balance a loan can reach: its starting
// balance compounded with no payments over the whole horizon. Used both as
// the variable lower bound and as the big-M in indicator linking.
func (f *Formulation) loanFloor(loan domain.Instrument) float64 {
	bal := toF(loan.Balance())
	for _, p := range f.Periods.Periods() {
		growth, _ := compounding(f.monthlyRateAt(loan, p), p.NumMonths())
		bal *= growth
	}
	return bal
}

// incomeBound over-estimates any single month's taxable income.
func (f *Formulation) incomeBound() float64 {
	bound := toF(f.finances.Profile.MonthlyGrossIncome)
	total := 0.0
	for _, inst := range f.finances.Portfolio.Instruments() {
		if !inst.Kind().IsLoan() {
			total += toF(inst.Balance())
		}
	}
	months := float64(f.Periods.Final() - f.Periods.Start())
	// Crude but safe: all starting assets plus every month's allowance,
	// doubled for growth headroom.
	bound += 2 * (total + months*toF(f.finances.MonthlyAllowance))
	if bound < 1 {
		bound = 1
	}
	return bound
}

// monthlyAllowance is the disposable amount for a period's months: zero at
// or after retirement (no accumulation-phase income remains).
func (f *Formulation) monthlyAllowance(p periods.Period) float64 {
	if p.Phase == periods.PhaseRetirement {
		return 0
	}
	return toF(f.finances.MonthlyAllowance)
}

func (f *Formulation) buildVariables() {
	T := f.Periods.NumPeriods()
	for _, inst := range f.finances.Portfolio.Instruments() {
		id := inst.ID()
		isLoan := inst.Kind().IsLoan()
		floor := 0.0
		if isLoan {
			floor = f.loanFloor(inst)
		}
		for t := 0; t <= T; t++ {
			if isLoan {
				f.balance[ikey{id, t}] = f.Model.NewVar(fmt.Sprintf("bal_%s_%d", id, t), floor, 0)
			} else {
				f.balance[ikey{id, t}] = f.Model.NewVar(fmt.Sprintf("bal_%s_%d", id, t), 0, Inf)
			}
		}
		for t := 0; t < T; t++ {
			hi := Inf
			if inst.Kind() == domain.KindGuaranteedInvestment {
				hi = 0 // locked-in: no contributions, ever
			}
			f.alloc[ikey{id, t}] = f.Model.NewVar(fmt.Sprintf("alloc_%s_%d", id, t), 0, hi)
			if _, ok := inst.(*domain.Investment); ok {
				f.withdrawal[ikey{id, t}] = f.Model.NewVar(fmt.Sprintf("wd_%s_%d", id, t), 0, Inf)
			}
			if isLoan {
				f.unpaid[ikey{id, t}] = f.Model.NewBinary(fmt.Sprintf("unpaid_%s_%d", id, t))
				f.minPaySlack[ikey{id, t}] = f.Model.NewVar(fmt.Sprintf("minpay_slack_%s_%d", id, t), 0, Inf)
			}
		}
	}
	for t := 0; t < T; t++ {
		f.unalloc[t] = f.Model.NewVar(fmt.Sprintf("unalloc_%d", t), 0, Inf)
		f.riskSlack[t] = f.Model.NewVar(fmt.Sprintf("risk_slack_%d", t), 0, Inf)
	}
}

// buildBalanceRecursion encodes bal[i,t+1] = bal[i,t]*(1+r)^n +
// flowFactor*(alloc − withdrawal), anchored at the starting snapshot.
func (f *Formulation) buildBalanceRecursion() {
	for _, inst := range f.finances.Portfolio.Instruments() {
		id := inst.ID()
		start := NewExpr().Add(1, f.balance[ikey{id, 0}])
		f.Model.AddConstraint(fmt.Sprintf("bal0_%s", id), start, EQ, toF(inst.Balance()))

		for _, p := range f.Periods.Periods() {
			growth, flow := compounding(f.monthlyRateAt(inst, p), p.NumMonths())
			e := NewExpr().
				Add(1, f.balance[ikey{id, p.Index + 1}]).
				Add(-growth, f.balance[ikey{id, p.Index}]).
				Add(-flow, f.alloc[ikey{id, p.Index}])
			if wd, ok := f.withdrawal[ikey{id, p.Index}]; ok {
				e.Add(flow, wd)
			}
			f.Model.AddConstraint(fmt.Sprintf("balrec_%s_%d", id, p.Index), e, EQ, 0)
		}
	}
}

// buildAllocationRows pins each period's total monthly allocation plus the
// explicit unallocated slack to the allowance exactly.
func (f *Formulation) buildAllocationRows() {
	for _, p := range f.Periods.Periods() {
		e := NewExpr().Add(1, f.unalloc[p.Index])
		for _, inst := range f.finances.Portfolio.Instruments() {
			e.Add(1, f.alloc[ikey{inst.ID(), p.Index}])
		}
		f.Model.AddConstraint(fmt.Sprintf("allowance_%d", p.Index), e, EQ, f.monthlyAllowance(p))
	}
}

// buildMinimumPayments enforces required payments with a soft-relaxation
// path: the loan-unpaid indicator exempts loans already driven to zero, and
// a penalized slack absorbs genuine shortfalls (post-retirement periods have
// no allowance to pay from).
func (f *Formulation) buildMinimumPayments() {
	for _, inst := range f.finances.Portfolio.Instruments() {
		id := inst.ID()
		switch v := inst.(type) {
		case *domain.RevolvingLoan:
			// Minimum tracks the balance: alloc >= rate * -bal, which decays
			// to zero as the balance does. Linear in the balance variable.
			for _, p := range f.Periods.Periods() {
				r := f.monthlyRateAt(inst, p)
				e := NewExpr().
					Add(1, f.alloc[ikey{id, p.Index}]).
					Add(1, f.minPaySlack[ikey{id, p.Index}]).
					Add(r, f.balance[ikey{id, p.Index}])
				f.Model.AddConstraint(fmt.Sprintf("minpay_%s_%d", id, p.Index), e, GE, 0)
			}
		case *domain.InstalmentLoan, *domain.Mortgage:
			min := toF(inst.MinimumPayment(f.Periods.Start()))
			for _, p := range f.Periods.Periods() {
				if final, ok := inst.FinalMonth(); ok && p.Start() >= final {
					continue
				}
				// alloc + slack >= min while the loan carries balance,
				// vacuous once the unpaid indicator drops to zero.
				e := NewExpr().
					Add(1, f.alloc[ikey{id, p.Index}]).
					Add(1, f.minPaySlack[ikey{id, p.Index}]).
					Add(-min, f.unpaid[ikey{id, p.Index}])
				f.Model.AddConstraint(fmt.Sprintf("minpay_%s_%d", id, p.Index), e, GE, 0)
			}
		case *domain.Investment:
			if v.PreAuthorizedContribution.IsZero() {
				continue
			}
			pac := toF(v.PreAuthorizedContribution)
			for _, p := range f.Periods.Periods() {
				if p.Phase == periods.PhaseRetirement {
					continue
				}
				e := NewExpr().Add(1, f.alloc[ikey{id, p.Index}])
				f.Model.AddConstraint(fmt.Sprintf("pac_%s_%d", id, p.Index), e, GE, pac)
			}
		}
	}
}

// buildUnpaidLinking forces the unpaid indicator to 1 whenever a loan still
// carries balance: bal >= floor*unpaid, so unpaid=0 squeezes the balance to
// zero against its non-positive upper bound.
func (f *Formulation) buildUnpaidLinking() {
	for _, loan := range f.finances.Portfolio.Loans() {
		id := loan.ID()
		floor := f.loanFloor(loan)
		for _, p := range f.Periods.Periods() {
			e := NewExpr().
				Add(1, f.balance[ikey{id, p.Index}]).
				Add(-floor, f.unpaid[ikey{id, p.Index}])
			f.Model.AddConstraint(fmt.Sprintf("unpaid_link_%s_%d", id, p.Index), e, GE, 0)
		}
	}
}

// buildDueDates absorbs any balance remaining at or past a loan's final
// period into a penalized violation variable. Soft, so the solver still
// returns a plan for loans that genuinely cannot be retired on time.
func (f *Formulation) buildDueDates() {
	for _, loan := range f.finances.Portfolio.Loans() {
		final, ok := loan.FinalMonth()
		if !ok {
			continue
		}
		id := loan.ID()
		duePeriod := f.Periods.ClosestPeriodFor(final)
		for _, p := range f.Periods.Periods() {
			if p.Index < duePeriod.Index {
				continue
			}
			slack := f.Model.NewVar(fmt.Sprintf("due_slack_%s_%d", id, p.Index), 0, Inf)
			f.dueSlack[ikey{id, p.Index}] = slack
			e := NewExpr().
				Add(1, f.balance[ikey{id, p.Index + 1}]).
				Add(1, slack)
			f.Model.AddConstraint(fmt.Sprintf("due_%s_%d", id, p.Index), e, GE, 0)
		}
	}
}

// riskBudget interpolates linearly between the portfolio's least and most
// volatile eligible investments by the user's risk tolerance.
func (f *Formulation) riskBudget() float64 {
	var vols []float64
	for _, inv := range f.finances.Portfolio.Investments() {
		vols = append(vols, toF(domain.VolatilityOf(inv)))
	}
	if len(vols) == 0 {
		return 0
	}
	lo, hi := vols[0], vols[0]
	for _, v := range vols[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	frac := toF(f.finances.Profile.RiskToleranceFraction())
	return lo + (hi-lo)*frac
}

// buildRiskLimits caps the volatility-weighted allocation mix at the risk
// budget, in aggregate and per instrument, with penalized slacks.
func (f *Formulation) buildRiskLimits() {
	budget := f.riskBudget()
	invs := f.finances.Portfolio.Investments()
	if len(invs) == 0 {
		return
	}
	for _, p := range f.Periods.Periods() {
		agg := NewExpr().Add(-1, f.riskSlack[p.Index])
		for _, inv := range invs {
			vol := toF(domain.VolatilityOf(inv))
			agg.Add(vol-budget, f.alloc[ikey{inv.ID(), p.Index}])
			if vol > budget {
				slack := f.Model.NewVar(fmt.Sprintf("inst_risk_slack_%s_%d", inv.ID(), p.Index), 0, Inf)
				f.instRiskSlack[ikey{inv.ID(), p.Index}] = slack
				e := NewExpr().
					Add(vol-budget, f.alloc[ikey{inv.ID(), p.Index}]).
					Add(-1, slack)
				f.Model.AddConstraint(fmt.Sprintf("inst_risk_%s_%d", inv.ID(), p.Index), e, LE, 0)
			}
		}
		f.Model.AddConstraint(fmt.Sprintf("risk_%d", p.Index), agg, LE, 0)
	}
}

// taxableIncomeExpr is the monthly taxable income of a period: employment
// income while working plus withdrawals from retirement-registered accounts
// (tax-free and non-registered withdrawals are not income).
func (f *Formulation) taxableIncomeExpr(p periods.Period) *Expr {
	e := NewExpr()
	if p.Phase == periods.PhaseWorking {
		e.AddConst(toF(f.finances.Profile.MonthlyGrossIncome))
	}
	for _, inv := range f.finances.Portfolio.Investments() {
		if inv.Account == domain.RetirementRegistered {
			e.Add(1, f.withdrawal[ikey{inv.ID(), p.Index}])
		}
	}
	return e
}

// buildTaxAccounting reproduces marginal-bracket taxation with linear rows.
// Per (period, entity, bracket): income minus the bracket's upper bound
// splits into positive/negative overflow gated by a binary; remaining room
// in the bracket is bounded by the width and by the negative overflow; tax
// accrued is (width − room) × marginal rate. The per-bracket decomposition
// is itself the piecewise-linear representation, so no further machinery is
// needed.
func (f *Formulation) buildTaxAccounting() {
	entities := f.taxCalc.MonthlyEntities()
	for _, p := range f.Periods.Periods() {
		income := f.taxableIncomeExpr(p)
		for ei, entity := range entities {
			lower := 0.0
			for bi, bracket := range entity.Brackets {
				upper := toF(bracket.UpTo)
				width := upper - lower
				k := bkey{p.Index, ei, bi}

				pos := f.Model.NewVar(fmt.Sprintf("tax_pos_%d_%d_%d", p.Index, ei, bi), 0, Inf)
				neg := f.Model.NewVar(fmt.Sprintf("tax_neg_%d_%d_%d", p.Index, ei, bi), 0, Inf)
				room := f.Model.NewVar(fmt.Sprintf("tax_room_%d_%d_%d", p.Index, ei, bi), 0, width)
				exceeds := f.Model.NewBinary(fmt.Sprintf("tax_exceeds_%d_%d_%d", p.Index, ei, bi))
				accrued := f.Model.NewVar(fmt.Sprintf("tax_acc_%d_%d_%d", p.Index, ei, bi), 0, Inf)
				f.bracketPos[k] = pos
				f.bracketNeg[k] = neg
				f.bracketRoom[k] = room
				f.bracketExceeds[k] = exceeds
				f.bracketTax[k] = accrued

				// income − upper = pos − neg
				split := NewExpr().AddExpr(1, income).Add(-1, pos).Add(1, neg)
				f.Model.AddConstraint(fmt.Sprintf("tax_split_%d_%d_%d", p.Index, ei, bi), split, EQ, upper)

				gatePos := NewExpr().Add(1, pos).Add(-f.bigM, exceeds)
				f.Model.AddConstraint(fmt.Sprintf("tax_gate_pos_%d_%d_%d", p.Index, ei, bi), gatePos, LE, 0)
				gateNeg := NewExpr().Add(1, neg).Add(f.bigM, exceeds)
				f.Model.AddConstraint(fmt.Sprintf("tax_gate_neg_%d_%d_%d", p.Index, ei, bi), gateNeg, LE, f.bigM)

				// room <= neg keeps room at zero once income clears the
				// bracket; the width bound caps it below the lower bound.
				roomCap := NewExpr().Add(1, room).Add(-1, neg)
				f.Model.AddConstraint(fmt.Sprintf("tax_room_%d_%d_%d", p.Index, ei, bi), roomCap, LE, 0)

				// accrued = rate * (width − room)
				rate := toF(bracket.Rate)
				acc := NewExpr().Add(1, accrued).Add(rate, room)
				f.Model.AddConstraint(fmt.Sprintf("tax_def_%d_%d_%d", p.Index, ei, bi), acc, EQ, rate*width)

				lower = upper
			}
		}
	}
}

// buildRetirementSpending requires total monthly withdrawals across liquid
// accounts in retirement periods to meet the minimum spending target.
func (f *Formulation) buildRetirementSpending() {
	target := toF(f.finances.Profile.MinRetirementSpending)
	if target <= 0 {
		return
	}
	for _, p := range f.Periods.Periods() {
		if p.Phase != periods.PhaseRetirement {
			continue
		}
		slack := f.Model.NewVar(fmt.Sprintf("ret_spend_slack_%d", p.Index), 0, Inf)
		f.retSpendSlack[p.Index] = slack
		e := NewExpr().Add(1, slack)
		for _, inv := range f.finances.Portfolio.Investments() {
			e.Add(1, f.withdrawal[ikey{inv.ID(), p.Index}])
		}
		f.Model.AddConstraint(fmt.Sprintf("ret_spend_%d", p.Index), e, GE, target)
	}
}

// buildGoals penalizes purchase-goal withdrawal shortfalls and savings-goal
// balance shortfalls at each goal's due period. Later nest-egg targets are
// cumulative: they include the sum of earlier targets, since the goals
// compete for the same savings pool.
func (f *Formulation) buildGoals() {
	cumulative := decimal.Zero
	for _, goal := range f.finances.Goals {
		p := f.Periods.ClosestPeriodFor(goal.DueMonth)
		allowed := goal.AllowedInvestmentIDs(f.finances.Portfolio)
		slack := f.Model.NewVar(fmt.Sprintf("goal_slack_%s", goal.GoalID), 0, Inf)
		f.goalSlack[goal.GoalID] = slack

		switch goal.Kind {
		case domain.GoalBigPurchase:
			e := NewExpr().Add(1, slack)
			for _, id := range allowed {
				e.Add(float64(p.NumMonths()), f.withdrawal[ikey{id, p.Index}])
			}
			f.Model.AddConstraint(fmt.Sprintf("goal_purchase_%s", goal.GoalID), e, GE, toF(goal.Amount))
		case domain.GoalNestEgg:
			cumulative = cumulative.Add(goal.Amount)
			e := NewExpr().Add(1, slack)
			for _, id := range allowed {
				e.Add(1, f.balance[ikey{id, p.Index + 1}])
			}
			f.Model.AddConstraint(fmt.Sprintf("goal_nest_egg_%s", goal.GoalID), e, GE, toF(cumulative))
		}
	}
}

// buildContributionRooms tracks the two annually-accumulating registered
// caps: room decrements by the year's contributions and increments by the
// jurisdiction-defined annual addition, and can never go negative.
func (f *Formulation) buildContributionRooms() {
	years := f.Periods.Years()
	if len(years) == 0 {
		return
	}

	retRoom0 := toF(f.finances.Profile.StartingRetirementRoom)
	tfRoom0 := toF(f.finances.Profile.StartingTaxFreeRoom)

	for yi, year := range years {
		f.retirementRoom[year] = f.Model.NewVar(fmt.Sprintf("ret_room_%d", year), 0, Inf)
		f.taxFreeRoom[year] = f.Model.NewVar(fmt.Sprintf("tf_room_%d", year), 0, Inf)

		retContrib := f.yearContributions(year, domain.RetirementRegistered)
		tfContrib := f.yearContributions(year, domain.TaxFreeRegistered)

		if yi == 0 {
			// room[first] = starting − contributions
			e := NewExpr().Add(1, f.retirementRoom[year]).AddExpr(1, retContrib)
			f.Model.AddConstraint(fmt.Sprintf("ret_room_def_%d", year), e, EQ, retRoom0)
			e2 := NewExpr().Add(1, f.taxFreeRoom[year]).AddExpr(1, tfContrib)
			f.Model.AddConstraint(fmt.Sprintf("tf_room_def_%d", year), e2, EQ, tfRoom0)
			continue
		}
		prev := years[yi-1]
		retAdd := toF(f.rooms.RetirementAdditionFor(f.annualEarnedIncome(prev)))
		tfAdd := toF(f.rooms.AnnualTaxFreeAddition)

		e := NewExpr().
			Add(1, f.retirementRoom[year]).
			Add(-1, f.retirementRoom[prev]).
			AddExpr(1, retContrib)
		f.Model.AddConstraint(fmt.Sprintf("ret_room_def_%d", year), e, EQ, retAdd)

		e2 := NewExpr().
			Add(1, f.taxFreeRoom[year]).
			Add(-1, f.taxFreeRoom[prev]).
			AddExpr(1, tfContrib)
		f.Model.AddConstraint(fmt.Sprintf("tf_room_def_%d", year), e2, EQ, tfAdd)
	}
}

// yearContributions sums alloc variables weighted by how many of each
// period's months fall in the year, for accounts of the given class.
func (f *Formulation) yearContributions(year int, class domain.AccountClass) *Expr {
	e := NewExpr()
	for _, p := range f.Periods.Periods() {
		months := f.Periods.MonthsInYear(p.Index)[year]
		if months == 0 {
			continue
		}
		for _, inst := range f.finances.Portfolio.Instruments() {
			if inst.Kind().IsLoan() {
				continue
			}
			if domain.AccountClassOf(inst) == class {
				e.Add(float64(months), f.alloc[ikey{inst.ID(), p.Index}])
			}
		}
	}
	return e
}

// annualEarnedIncome for a plan year, prorated across a retirement that
// lands mid-year.
func (f *Formulation) annualEarnedIncome(year int) decimal.Decimal {
	working := 0
	for m := year * 12; m < (year+1)*12; m++ {
		if m >= f.Periods.Start() && m < f.Periods.Final() && !f.finances.Profile.IsRetiredAt(m) {
			working++
		}
	}
	return f.finances.Profile.MonthlyGrossIncome.Mul(decimal.NewFromInt(int64(working)))
}

// buildMandatoryWithdrawals applies the age-tabled minimum-withdrawal rule
// to retirement-registered accounts: monthly withdrawals must cover the
// prescribed fraction of the balance once the holder passes the threshold.
func (f *Formulation) buildMandatoryWithdrawals() {
	for _, p := range f.Periods.Periods() {
		age := f.finances.Profile.AgeAtMonth(p.Start())
		frac := tax.MinWithdrawalFraction(age)
		if frac.IsZero() {
			continue
		}
		monthlyFrac := toF(frac) / 12
		for _, inv := range f.finances.Portfolio.Investments() {
			if inv.Account != domain.RetirementRegistered {
				continue
			}
			e := NewExpr().
				Add(1, f.withdrawal[ikey{inv.ID(), p.Index}]).
				Add(-monthlyFrac, f.balance[ikey{inv.ID(), p.Index}])
			f.Model.AddConstraint(fmt.Sprintf("min_wd_%s_%d", inv.ID(), p.Index), e, GE, 0)
		}
	}
}

// buildObjective maximizes final net worth (or cumulative loan interest
// avoided when the portfolio holds no investments), nudged toward
// registered-account usage, minus the weighted violation penalties and
// total taxes.
func (f *Formulation) buildObjective() {
	T := f.Periods.NumPeriods()
	obj := NewExpr()

	if f.finances.Portfolio.HasInvestments() {
		for _, inst := range f.finances.Portfolio.Instruments() {
			obj.Add(1, f.balance[ikey{inst.ID(), T}])
		}
	} else {
		// No investments: maximize cumulative interest "earned" (loan
		// interest is negative, so this minimizes interest paid).
		for _, loan := range f.finances.Portfolio.Loans() {
			for _, p := range f.Periods.Periods() {
				growth, _ := compounding(f.monthlyRateAt(loan, p), p.NumMonths())
				obj.Add(growth-1, f.balance[ikey{loan.ID(), p.Index}])
			}
		}
	}

	for _, inst := range f.finances.Portfolio.Instruments() {
		if domain.AccountClassOf(inst) != domain.NonRegistered {
			for t := 0; t < T; t++ {
				obj.Add(f.params.RegisteredUsageIncentive, f.alloc[ikey{inst.ID(), t}])
			}
		}
	}

	for _, v := range f.riskSlack {
		obj.Add(-f.params.PenaltyRiskViolation, v)
	}
	for _, v := range f.instRiskSlack {
		obj.Add(-f.params.PenaltyInstrumentRiskViolation, v)
	}
	for _, v := range f.dueSlack {
		obj.Add(-f.params.PenaltyLoanDueDateViolation, v)
	}
	for _, v := range f.retSpendSlack {
		obj.Add(-f.params.PenaltyRetirementSpending, v)
	}
	for _, v := range f.minPaySlack {
		obj.Add(-f.params.PenaltyMinPaymentShortfall, v)
	}
	for id, v := range f.goalSlack {
		weight := f.params.PenaltySavingsGoal
		for _, g := range f.finances.Goals {
			if g.GoalID == id && g.Kind == domain.GoalBigPurchase {
				weight = f.params.PenaltyPurchaseGoal
			}
		}
		obj.Add(-weight, v)
	}

	for _, p := range f.Periods.Periods() {
		months := float64(p.NumMonths())
		for k, v := range f.bracketTax {
			if k.t == p.Index {
				obj.Add(-f.params.TaxWeight*months, v)
			}
		}
	}

	f.Model.SetObjective(obj, Maximize)
}

// PeriodTax returns the solved monthly tax accrued in a period.
func (f *Formulation) PeriodTax(r *Result, t int) float64 {
	total := 0.0
	for k, v := range f.bracketTax {
		if k.t == t {
			total += r.Value(v)
		}
	}
	return total
}

// PeriodTaxableIncome returns the solved monthly taxable income of a period.
func (f *Formulation) PeriodTaxableIncome(r *Result, t int) float64 {
	p := f.Periods.Periods()[t]
	income := 0.0
	if p.Phase == periods.PhaseWorking {
		income = toF(f.finances.Profile.MonthlyGrossIncome)
	}
	for _, inv := range f.finances.Portfolio.Investments() {
		if inv.Account == domain.RetirementRegistered {
			income += r.Value(f.withdrawal[ikey{inv.ID(), t}])
		}
	}
	return income
}
