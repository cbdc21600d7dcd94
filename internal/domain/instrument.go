package domain

import (
	"github.com/shopspring/decimal"
)

// InstrumentKind discriminates the closed set of instrument variants.
type InstrumentKind int

const (
	KindRevolvingLoan InstrumentKind = iota
	KindInstalmentLoan
	KindMortgage
	KindInvestment
	KindGuaranteedInvestment
)

func (k InstrumentKind) String() string {
	switch k {
	case KindRevolvingLoan:
		return "revolving_loan"
	case KindInstalmentLoan:
		return "instalment_loan"
	case KindMortgage:
		return "mortgage"
	case KindInvestment:
		return "investment"
	case KindGuaranteedInvestment:
		return "guaranteed_investment"
	default:
		return "unknown"
	}
}

// IsLoan reports whether the kind is a debt instrument.
func (k InstrumentKind) IsLoan() bool {
	switch k {
	case KindRevolvingLoan, KindInstalmentLoan, KindMortgage:
		return true
	default:
		return false
	}
}

// AccountClass is the registered-account classification of an investment,
// used for contribution-room tracking and tax treatment of withdrawals.
type AccountClass int

const (
	NonRegistered AccountClass = iota
	RetirementRegistered
	TaxFreeRegistered
)

func (a AccountClass) String() string {
	switch a {
	case NonRegistered:
		return "non_registered"
	case RetirementRegistered:
		return "retirement_registered"
	case TaxFreeRegistered:
		return "tax_free_registered"
	default:
		return "unknown"
	}
}

// AssetClass is the coarse market classification of an investment, used to
// assign a default volatility.
type AssetClass int

const (
	AssetCash AssetClass = iota
	AssetMutualFund
	AssetETF
	AssetStock
	AssetTermDeposit
)

func (a AssetClass) String() string {
	switch a {
	case AssetCash:
		return "cash"
	case AssetMutualFund:
		return "mutual_fund"
	case AssetETF:
		return "etf"
	case AssetStock:
		return "stock"
	case AssetTermDeposit:
		return "term_deposit"
	default:
		return "unknown"
	}
}

// DefaultVolatility returns the monthly return volatility assumed for an
// asset class when the input does not specify one.
func (a AssetClass) DefaultVolatility() decimal.Decimal {
	switch a {
	case AssetCash, AssetTermDeposit:
		return decimal.Zero
	case AssetMutualFund:
		return decimal.NewFromFloat(0.029)
	case AssetETF:
		return decimal.NewFromFloat(0.035)
	case AssetStock:
		return decimal.NewFromFloat(0.05)
	default:
		return decimal.NewFromFloat(0.035)
	}
}

// revolvingMinPaymentFloor: a revolving minimum payment below this amount is
// treated as zero, matching card-issuer behaviour for near-zero balances.
var revolvingMinPaymentFloor = decimal.NewFromInt(10)

// Instrument is the sealed interface over the loan and investment variant
// families. Balances follow the sign convention: loans non-positive,
// investments non-negative. Instruments are mutated only by the portfolio
// simulator (interest accrual, payment receipt) on a private copy.
type Instrument interface {
	ID() string
	Name() string
	Kind() InstrumentKind
	Balance() decimal.Decimal
	MonthlyRate(month int) decimal.Decimal
	// FinalMonth returns the instrument's final month and true, or false when
	// the instrument is open-ended.
	FinalMonth() (int, bool)
	// MinimumPayment is the required payment for the given month.
	MinimumPayment(month int) decimal.Decimal
	// AccrueInterest adds one month of interest to the balance.
	AccrueInterest(month int)
	// ReceivePayment applies a payment and returns the amount actually
	// applied (a loan clips over-payments at the balance due).
	ReceivePayment(amount decimal.Decimal) decimal.Decimal
	// Clone returns an independent deep copy.
	Clone() Instrument

	sealed()
}

// Loan is the common state of the three loan variants.
type Loan struct {
	LoanID      string
	DisplayName string
	Rate        RatePolicy
	// CurrentBalance is non-positive: the amount owed, negated.
	CurrentBalance decimal.Decimal
}

func (l *Loan) ID() string               { return l.LoanID }
func (l *Loan) Name() string             { return l.DisplayName }
func (l *Loan) Balance() decimal.Decimal { return l.CurrentBalance }

func (l *Loan) MonthlyRate(month int) decimal.Decimal {
	return l.Rate.MonthlyRate(month)
}

func (l *Loan) AccrueInterest(month int) {
	// A negative balance grows more negative.
	l.CurrentBalance = l.CurrentBalance.Add(l.CurrentBalance.Mul(l.MonthlyRate(month)))
}

func (l *Loan) ReceivePayment(amount decimal.Decimal) decimal.Decimal {
	owed := l.CurrentBalance.Neg()
	applied := decimal.Min(amount, owed)
	l.CurrentBalance = l.CurrentBalance.Add(applied)
	return applied
}

// IsPaidOff reports whether the remaining balance is within tolerance of zero.
func (l *Loan) IsPaidOff() bool {
	return l.CurrentBalance.Neg().LessThan(BalanceTolerance)
}

// BalanceTolerance is the threshold below which a loan balance is considered
// fully repaid.
var BalanceTolerance = decimal.NewFromFloat(0.005)

// RevolvingLoan is open-ended credit (line of credit, credit card): no fixed
// end date, minimum payment proportional to the balance.
type RevolvingLoan struct {
	Loan
}

func (r *RevolvingLoan) Kind() InstrumentKind    { return KindRevolvingLoan }
func (r *RevolvingLoan) FinalMonth() (int, bool) { return 0, false }

func (r *RevolvingLoan) MinimumPayment(month int) decimal.Decimal {
	min := r.CurrentBalance.Neg().Mul(r.MonthlyRate(month))
	if min.LessThan(revolvingMinPaymentFloor) {
		return decimal.Zero
	}
	return min
}

func (r *RevolvingLoan) Clone() Instrument {
	c := *r
	return &c
}

func (r *RevolvingLoan) sealed() {}

// InstalmentLoan is fixed-term amortizing debt with a fixed end date. The
// minimum payment is the level annuity payment over the remaining term.
type InstalmentLoan struct {
	Loan
	EndMonth int
}

func (i *InstalmentLoan) Kind() InstrumentKind    { return KindInstalmentLoan }
func (i *InstalmentLoan) FinalMonth() (int, bool) { return i.EndMonth, true }

func (i *InstalmentLoan) MinimumPayment(month int) decimal.Decimal {
	return amortizedPayment(i.CurrentBalance.Neg(), i.MonthlyRate(month), i.EndMonth-month)
}

func (i *InstalmentLoan) Clone() Instrument {
	c := *i
	return &c
}

func (i *InstalmentLoan) sealed() {}

// Mortgage is amortizing debt with a contractually fixed payment and a
// term-structured rate (current term rate, then a posted default rate).
type Mortgage struct {
	Loan
	EndMonth     int
	FixedPayment decimal.Decimal
}

func (m *Mortgage) Kind() InstrumentKind    { return KindMortgage }
func (m *Mortgage) FinalMonth() (int, bool) { return m.EndMonth, true }

func (m *Mortgage) MinimumPayment(_ int) decimal.Decimal {
	owed := m.CurrentBalance.Neg()
	return decimal.Min(m.FixedPayment, owed)
}

func (m *Mortgage) Clone() Instrument {
	c := *m
	return &c
}

func (m *Mortgage) sealed() {}

// amortizedPayment computes the level monthly payment that retires principal
// over n months at monthly rate r: P = r*B / (1 - (1+r)^-n). Degenerates to
// straight-line repayment at zero rate.
func amortizedPayment(principal, rate decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return principal
	}
	if principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if rate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(months)))
	}
	one := decimal.NewFromInt(1)
	growth := one.Add(rate).Pow(decimal.NewFromInt(int64(months)))
	// P = B * r * (1+r)^n / ((1+r)^n - 1)
	return principal.Mul(rate).Mul(growth).Div(growth.Sub(one))
}

// Investment is a non-guaranteed market investment (cash, mutual fund, ETF,
// stock). Balance is non-negative; it may receive contributions and fund
// withdrawals. PreAuthorizedContribution is a committed monthly contribution
// treated as a minimum payment by the strategies.
type Investment struct {
	InvestmentID              string
	DisplayName               string
	Rate                      RatePolicy
	CurrentBalance            decimal.Decimal
	Account                   AccountClass
	Asset                     AssetClass
	Volatility                decimal.Decimal
	PreAuthorizedContribution decimal.Decimal
}

func (v *Investment) ID() string               { return v.InvestmentID }
func (v *Investment) Name() string             { return v.DisplayName }
func (v *Investment) Kind() InstrumentKind     { return KindInvestment }
func (v *Investment) Balance() decimal.Decimal { return v.CurrentBalance }
func (v *Investment) FinalMonth() (int, bool)  { return 0, false }

func (v *Investment) MonthlyRate(month int) decimal.Decimal {
	return v.Rate.MonthlyRate(month)
}

func (v *Investment) MinimumPayment(_ int) decimal.Decimal {
	return v.PreAuthorizedContribution
}

func (v *Investment) AccrueInterest(month int) {
	v.CurrentBalance = v.CurrentBalance.Add(v.CurrentBalance.Mul(v.MonthlyRate(month)))
}

func (v *Investment) ReceivePayment(amount decimal.Decimal) decimal.Decimal {
	v.CurrentBalance = v.CurrentBalance.Add(amount)
	return amount
}

// Withdraw removes up to amount from the balance and returns the amount
// actually withdrawn (clipped at the available balance).
func (v *Investment) Withdraw(amount decimal.Decimal) decimal.Decimal {
	taken := decimal.Min(amount, v.CurrentBalance)
	if taken.LessThan(decimal.Zero) {
		taken = decimal.Zero
	}
	v.CurrentBalance = v.CurrentBalance.Sub(taken)
	return taken
}

func (v *Investment) Clone() Instrument {
	c := *v
	return &c
}

func (v *Investment) sealed() {}

// GuaranteedInvestment is a GIC/term-deposit: principal accrues at a fixed
// rate from a start month to maturity, accepts no contributions, and cannot
// be drawn before maturity.
type GuaranteedInvestment struct {
	InvestmentID   string
	DisplayName    string
	Rate           RatePolicy
	CurrentBalance decimal.Decimal
	Account        AccountClass
	StartMonth     int
	MaturityMonth  int
}

func (g *GuaranteedInvestment) ID() string               { return g.InvestmentID }
func (g *GuaranteedInvestment) Name() string             { return g.DisplayName }
func (g *GuaranteedInvestment) Kind() InstrumentKind     { return KindGuaranteedInvestment }
func (g *GuaranteedInvestment) Balance() decimal.Decimal { return g.CurrentBalance }
func (g *GuaranteedInvestment) FinalMonth() (int, bool)  { return g.MaturityMonth, true }

func (g *GuaranteedInvestment) MonthlyRate(month int) decimal.Decimal {
	if month < g.StartMonth || month >= g.MaturityMonth {
		return decimal.Zero
	}
	return g.Rate.MonthlyRate(month)
}

func (g *GuaranteedInvestment) MinimumPayment(_ int) decimal.Decimal {
	return decimal.Zero
}

func (g *GuaranteedInvestment) AccrueInterest(month int) {
	g.CurrentBalance = g.CurrentBalance.Add(g.CurrentBalance.Mul(g.MonthlyRate(month)))
}

func (g *GuaranteedInvestment) ReceivePayment(amount decimal.Decimal) decimal.Decimal {
	// Locked-in principal: contributions are not accepted.
	return decimal.Zero
}

func (g *GuaranteedInvestment) Clone() Instrument {
	c := *g
	return &c
}

func (g *GuaranteedInvestment) sealed() {}

// AccountClassOf returns the registered classification of an investment-side
// instrument, or NonRegistered for loans.
func AccountClassOf(inst Instrument) AccountClass {
	switch v := inst.(type) {
	case *Investment:
		return v.Account
	case *GuaranteedInvestment:
		return v.Account
	default:
		return NonRegistered
	}
}

// VolatilityOf returns the monthly volatility used by the risk constraints.
// Guaranteed investments and loans carry zero volatility.
func VolatilityOf(inst Instrument) decimal.Decimal {
	if v, ok := inst.(*Investment); ok {
		if v.Volatility.IsZero() {
			return v.Asset.DefaultVolatility()
		}
		return v.Volatility
	}
	return decimal.Zero
}
