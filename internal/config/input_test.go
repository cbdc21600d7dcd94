package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/malfrine/two-cents-sub000/internal/domain"
)

const sampleFinancesYAML = `
profile:
  monthly_gross_income: 12000
  current_age: 32
  retirement_age: 62
  death_age: 87
  risk_tolerance: 60
  jurisdiction: AB
  savings_fraction: 0.5
  starting_retirement_room: 40000
  starting_tax_free_room: 25000
  min_retirement_spending: 3500
loans:
  - id: card
    name: Credit Card
    kind: revolving
    balance: 4200
    annual_rate: 0.1999
  - id: car
    name: Car Loan
    kind: instalment
    balance: 18000
    annual_rate: 0.059
    end_month: 48
  - id: house
    name: Mortgage
    kind: mortgage
    balance: 320000
    annual_rate: 0.044
    default_annual_rate: 0.059
    term_end_month: 36
    end_month: 300
    fixed_payment: 1760
investments:
  - id: tfsa
    name: TFSA Index Fund
    kind: investment
    balance: 12000
    annual_rate: 0.062
    account: tax_free_registered
    asset: etf
  - id: rrsp
    name: RRSP
    kind: investment
    balance: 30000
    annual_rate: 0.055
    account: retirement_registered
    asset: mutual_fund
    pre_authorized_contribution: 200
  - id: gic
    name: GIC
    kind: guaranteed
    balance: 10000
    annual_rate: 0.048
    maturity_month: 24
goals:
  - id: sabbatical
    name: Sabbatical
    kind: big_purchase
    amount: 20000
    due_month: 60
  - id: retirement-fund
    name: Retirement Fund
    kind: nest_egg
    amount: 750000
    due_month: 360
`

func parseSample(t *testing.T) *domain.UserFinances {
	t.Helper()
	var file FinancesFile
	require.NoError(t, yaml.Unmarshal([]byte(sampleFinancesYAML), &file))
	fin, err := NewInputParser().Build(file)
	require.NoError(t, err)
	return fin
}

func TestBuildConvertsAgesToMonthIndices(t *testing.T) {
	fin := parseSample(t)

	assert.Equal(t, 360, fin.Profile.RetirementMonth)
	assert.Equal(t, 660, fin.Profile.DeathMonth)
	assert.Equal(t, "AB", fin.Profile.Jurisdiction)
}

func TestBuildNegatesLoanBalances(t *testing.T) {
	fin := parseSample(t)

	card, ok := fin.Portfolio.Get("card")
	require.True(t, ok)
	assert.True(t, card.Balance().Equal(decimal.NewFromInt(-4200)))
	assert.Equal(t, domain.KindRevolvingLoan, card.Kind())

	house, ok := fin.Portfolio.Get("house")
	require.True(t, ok)
	assert.Equal(t, domain.KindMortgage, house.Kind())
	// Term rate: 0.044/12 inside the term, 0.059/12 after.
	assert.True(t, house.MonthlyRate(0).Equal(decimal.NewFromFloat(0.044).Div(decimal.NewFromInt(12))))
	assert.True(t, house.MonthlyRate(36).Equal(decimal.NewFromFloat(0.059).Div(decimal.NewFromInt(12))))
}

func TestBuildDerivesAllowanceFromPostTaxIncome(t *testing.T) {
	fin := parseSample(t)

	// Allowance = (gross - tax(gross)) * savings fraction: strictly less
	// than the naive gross * fraction.
	naive := decimal.NewFromInt(12000).Mul(decimal.NewFromFloat(0.5))
	assert.True(t, fin.MonthlyAllowance.GreaterThan(decimal.Zero))
	assert.True(t, fin.MonthlyAllowance.LessThan(naive))
}

func TestBuildSynthesizesCashSink(t *testing.T) {
	fin := parseSample(t)

	sinkID, ok := fin.Portfolio.CashSinkID()
	require.True(t, ok)
	sink, _ := fin.Portfolio.Get(sinkID)
	assert.True(t, sink.Balance().IsZero())
}

func TestBuildRejectsBadInputs(t *testing.T) {
	base := func() FinancesFile {
		var file FinancesFile
		require.NoError(t, yaml.Unmarshal([]byte(sampleFinancesYAML), &file))
		return file
	}

	file := base()
	file.Profile.Jurisdiction = "ZZ"
	_, err := NewInputParser().Build(file)
	assert.Error(t, err, "unknown jurisdiction")

	file = base()
	file.Profile.DeathAge = file.Profile.RetirementAge
	_, err = NewInputParser().Build(file)
	assert.Error(t, err, "death at retirement")

	file = base()
	file.Loans[1].EndMonth = 0
	_, err = NewInputParser().Build(file)
	assert.Error(t, err, "instalment without end month")

	file = base()
	file.Investments[0].Account = "pension"
	_, err = NewInputParser().Build(file)
	assert.Error(t, err, "unknown account class")

	file = base()
	file.Goals[0].Kind = "vacation"
	_, err = NewInputParser().Build(file)
	assert.Error(t, err, "unknown goal kind")
}

func TestDefaultParametersValidate(t *testing.T) {
	require.NoError(t, DefaultParameters().Validate())

	p := DefaultParameters()
	p.SolverGapTolerance = 1.5
	assert.Error(t, p.Validate())

	p = DefaultParameters()
	p.ReconcileTolerance = 0
	assert.Error(t, p.Validate())
}
