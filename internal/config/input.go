package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/tax"
)

// FinancesFile is the YAML shape of a user-finances snapshot.
type FinancesFile struct {
	Profile     ProfileInput      `yaml:"profile"`
	Loans       []LoanInput       `yaml:"loans"`
	Investments []InvestmentInput `yaml:"investments"`
	Goals       []GoalInput       `yaml:"goals"`
}

// ProfileInput is the YAML shape of the financial profile.
type ProfileInput struct {
	MonthlyGrossIncome     decimal.Decimal `yaml:"monthly_gross_income"`
	CurrentAge             int             `yaml:"current_age"`
	RetirementAge          int             `yaml:"retirement_age"`
	DeathAge               int             `yaml:"death_age"`
	RiskTolerance          int             `yaml:"risk_tolerance"`
	Jurisdiction           string          `yaml:"jurisdiction"`
	SavingsFraction        decimal.Decimal `yaml:"savings_fraction"`
	StartingRetirementRoom decimal.Decimal `yaml:"starting_retirement_room"`
	StartingTaxFreeRoom    decimal.Decimal `yaml:"starting_tax_free_room"`
	MinRetirementSpending  decimal.Decimal `yaml:"min_retirement_spending"`
}

// LoanInput is the YAML shape of one loan.
type LoanInput struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Kind: revolving | instalment | mortgage
	Kind string `yaml:"kind"`
	// Balance is the amount owed, entered positive.
	Balance    decimal.Decimal `yaml:"balance"`
	AnnualRate decimal.Decimal `yaml:"annual_rate"`
	// EndMonth applies to instalment loans and mortgages.
	EndMonth int `yaml:"end_month"`
	// Mortgage-only fields.
	FixedPayment      decimal.Decimal `yaml:"fixed_payment"`
	DefaultAnnualRate decimal.Decimal `yaml:"default_annual_rate"`
	TermEndMonth      int             `yaml:"term_end_month"`
	// Prime-linked variable rate (optional, overrides annual_rate).
	PrimeSpread   *decimal.Decimal `yaml:"prime_spread"`
	PrimeForecast []PrimeInput     `yaml:"prime_forecast"`
}

// PrimeInput is one step of a prime-rate forecast.
type PrimeInput struct {
	FromMonth int             `yaml:"from_month"`
	Annual    decimal.Decimal `yaml:"annual"`
}

// InvestmentInput is the YAML shape of one investment.
type InvestmentInput struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Kind: investment | guaranteed
	Kind       string          `yaml:"kind"`
	Balance    decimal.Decimal `yaml:"balance"`
	AnnualRate decimal.Decimal `yaml:"annual_rate"`
	// Account: non_registered | retirement_registered | tax_free_registered
	Account string `yaml:"account"`
	// Asset: cash | mutual_fund | etf | stock | term_deposit
	Asset                     string          `yaml:"asset"`
	Volatility                decimal.Decimal `yaml:"volatility"`
	PreAuthorizedContribution decimal.Decimal `yaml:"pre_authorized_contribution"`
	// Guaranteed-only fields.
	StartMonth    int `yaml:"start_month"`
	MaturityMonth int `yaml:"maturity_month"`
}

// GoalInput is the YAML shape of one goal.
type GoalInput struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Kind: nest_egg | big_purchase
	Kind     string          `yaml:"kind"`
	Amount   decimal.Decimal `yaml:"amount"`
	DueMonth int             `yaml:"due_month"`
}

// InputParser loads and validates user-finances snapshots.
type InputParser struct{}

// NewInputParser creates a new input parser.
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads a user-finances snapshot from a YAML file.
func (ip *InputParser) LoadFromFile(filename string) (*domain.UserFinances, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	var file FinancesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return ip.Build(file)
}

// Build converts a parsed file into a validated UserFinances snapshot,
// deriving the monthly allowance from post-tax income.
func (ip *InputParser) Build(file FinancesFile) (*domain.UserFinances, error) {
	profile, err := ip.buildProfile(file.Profile)
	if err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}

	portfolio := domain.NewPortfolio()
	for i, li := range file.Loans {
		loan, err := ip.buildLoan(li)
		if err != nil {
			return nil, fmt.Errorf("loan %d (%s) validation failed: %w", i, li.Name, err)
		}
		portfolio.Add(loan)
	}
	for i, vi := range file.Investments {
		inv, err := ip.buildInvestment(vi)
		if err != nil {
			return nil, fmt.Errorf("investment %d (%s) validation failed: %w", i, vi.Name, err)
		}
		portfolio.Add(inv)
	}
	portfolio.EnsureCashSink()

	var goals []domain.Goal
	for i, gi := range file.Goals {
		goal, err := ip.buildGoal(gi)
		if err != nil {
			return nil, fmt.Errorf("goal %d (%s) validation failed: %w", i, gi.Name, err)
		}
		goals = append(goals, goal)
	}

	calc, err := tax.ForJurisdiction(profile.Jurisdiction)
	if err != nil {
		return nil, err
	}
	postTax := profile.MonthlyGrossIncome.Sub(calc.MonthlyTax(profile.MonthlyGrossIncome))
	allowance := postTax.Mul(profile.SavingsFraction)

	fin := &domain.UserFinances{
		Profile:          profile,
		Portfolio:        portfolio,
		Goals:            goals,
		MonthlyAllowance: allowance,
	}
	if err := fin.Validate(); err != nil {
		return nil, fmt.Errorf("finances validation failed: %w", err)
	}
	return fin, nil
}

func (ip *InputParser) buildProfile(in ProfileInput) (domain.FinancialProfile, error) {
	var p domain.FinancialProfile
	if in.MonthlyGrossIncome.LessThanOrEqual(decimal.Zero) {
		return p, fmt.Errorf("monthly gross income must be positive")
	}
	if in.CurrentAge <= 0 || in.CurrentAge >= 120 {
		return p, fmt.Errorf("current age must be between 1 and 119, got %d", in.CurrentAge)
	}
	if in.RetirementAge < in.CurrentAge {
		return p, fmt.Errorf("retirement age %d cannot precede current age %d", in.RetirementAge, in.CurrentAge)
	}
	if in.DeathAge <= in.RetirementAge {
		return p, fmt.Errorf("death age %d must be after retirement age %d", in.DeathAge, in.RetirementAge)
	}
	if in.SavingsFraction.LessThanOrEqual(decimal.Zero) || in.SavingsFraction.GreaterThan(decimal.NewFromInt(1)) {
		return p, fmt.Errorf("savings fraction must be in (0, 1]")
	}
	if in.Jurisdiction == "" {
		return p, fmt.Errorf("jurisdiction is required")
	}
	return domain.FinancialProfile{
		MonthlyGrossIncome:     in.MonthlyGrossIncome,
		CurrentAge:             in.CurrentAge,
		RetirementMonth:        (in.RetirementAge - in.CurrentAge) * 12,
		DeathMonth:             (in.DeathAge - in.CurrentAge) * 12,
		RiskTolerance:          in.RiskTolerance,
		Jurisdiction:           in.Jurisdiction,
		SavingsFraction:        in.SavingsFraction,
		StartingRetirementRoom: in.StartingRetirementRoom,
		StartingTaxFreeRoom:    in.StartingTaxFreeRoom,
		MinRetirementSpending:  in.MinRetirementSpending,
	}, nil
}

func (ip *InputParser) buildLoan(in LoanInput) (domain.Instrument, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if in.Balance.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("balance must be entered as the positive amount owed")
	}
	var rate domain.RatePolicy = domain.NewFixedAnnualRate(in.AnnualRate)
	if in.PrimeSpread != nil {
		forecast := make([]domain.PrimePoint, 0, len(in.PrimeForecast))
		for _, pt := range in.PrimeForecast {
			forecast = append(forecast, domain.PrimePoint{FromMonth: pt.FromMonth, Annual: pt.Annual})
		}
		rate = domain.PrimeLinkedRate{Forecast: forecast, Spread: *in.PrimeSpread}
	}
	base := domain.Loan{
		LoanID:         in.ID,
		DisplayName:    in.Name,
		Rate:           rate,
		CurrentBalance: in.Balance.Neg(),
	}
	switch in.Kind {
	case "revolving":
		return &domain.RevolvingLoan{Loan: base}, nil
	case "instalment":
		if in.EndMonth <= 0 {
			return nil, fmt.Errorf("instalment loan requires a positive end_month")
		}
		return &domain.InstalmentLoan{Loan: base, EndMonth: in.EndMonth}, nil
	case "mortgage":
		if in.EndMonth <= 0 {
			return nil, fmt.Errorf("mortgage requires a positive end_month")
		}
		if in.FixedPayment.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("mortgage requires a positive fixed_payment")
		}
		base.Rate = domain.TermRate{
			CurrentAnnual: in.AnnualRate,
			DefaultAnnual: in.DefaultAnnualRate,
			TermEndMonth:  in.TermEndMonth,
		}
		return &domain.Mortgage{Loan: base, EndMonth: in.EndMonth, FixedPayment: in.FixedPayment}, nil
	default:
		return nil, fmt.Errorf("unknown loan kind %q (want revolving, instalment, or mortgage)", in.Kind)
	}
}

func (ip *InputParser) buildInvestment(in InvestmentInput) (domain.Instrument, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if in.Balance.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("balance cannot be negative")
	}
	account, err := parseAccountClass(in.Account)
	if err != nil {
		return nil, err
	}
	switch in.Kind {
	case "investment", "":
		asset, err := parseAssetClass(in.Asset)
		if err != nil {
			return nil, err
		}
		return &domain.Investment{
			InvestmentID:              in.ID,
			DisplayName:               in.Name,
			Rate:                      domain.NewFixedAnnualRate(in.AnnualRate),
			CurrentBalance:            in.Balance,
			Account:                   account,
			Asset:                     asset,
			Volatility:                in.Volatility,
			PreAuthorizedContribution: in.PreAuthorizedContribution,
		}, nil
	case "guaranteed":
		if in.MaturityMonth <= in.StartMonth {
			return nil, fmt.Errorf("guaranteed investment maturity_month must be after start_month")
		}
		return &domain.GuaranteedInvestment{
			InvestmentID:   in.ID,
			DisplayName:    in.Name,
			Rate:           domain.NewFixedAnnualRate(in.AnnualRate),
			CurrentBalance: in.Balance,
			Account:        account,
			StartMonth:     in.StartMonth,
			MaturityMonth:  in.MaturityMonth,
		}, nil
	default:
		return nil, fmt.Errorf("unknown investment kind %q (want investment or guaranteed)", in.Kind)
	}
}

func (ip *InputParser) buildGoal(in GoalInput) (domain.Goal, error) {
	var g domain.Goal
	if in.ID == "" {
		return g, fmt.Errorf("id is required")
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return g, fmt.Errorf("amount must be positive")
	}
	var kind domain.GoalKind
	switch in.Kind {
	case "nest_egg":
		kind = domain.GoalNestEgg
	case "big_purchase":
		kind = domain.GoalBigPurchase
	default:
		return g, fmt.Errorf("unknown goal kind %q (want nest_egg or big_purchase)", in.Kind)
	}
	return domain.Goal{
		GoalID:   in.ID,
		Name:     in.Name,
		Kind:     kind,
		Amount:   in.Amount,
		DueMonth: in.DueMonth,
	}, nil
}

func parseAccountClass(s string) (domain.AccountClass, error) {
	switch s {
	case "non_registered", "":
		return domain.NonRegistered, nil
	case "retirement_registered":
		return domain.RetirementRegistered, nil
	case "tax_free_registered":
		return domain.TaxFreeRegistered, nil
	default:
		return 0, fmt.Errorf("unknown account class %q", s)
	}
}

func parseAssetClass(s string) (domain.AssetClass, error) {
	switch s {
	case "cash", "":
		return domain.AssetCash, nil
	case "mutual_fund":
		return domain.AssetMutualFund, nil
	case "etf":
		return domain.AssetETF, nil
	case "stock":
		return domain.AssetStock, nil
	case "term_deposit":
		return domain.AssetTermDeposit, nil
	default:
		return 0, fmt.Errorf("unknown asset class %q", s)
	}
}
