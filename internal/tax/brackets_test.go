package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Two-bracket synthetic schedule: up to 50 at 10%, then up to 100 at 20%.
func twoBracketCalculator() Calculator {
	return NewCalculator("TEST", Entity{
		Name: "test",
		Brackets: []Bracket{
			{UpTo: dec("50"), Rate: dec("0.10")},
			{UpTo: dec("100"), Rate: dec("0.20")},
		},
	})
}

func TestAnnualTaxMarginalAccumulation(t *testing.T) {
	calc := twoBracketCalculator()

	cases := []struct {
		income string
		want   string
	}{
		{"0", "0"},
		{"49", "4.9"}, // entirely in the first bracket
		{"51", "5.2"}, // 50*0.10 + 1*0.20
		{"100", "15"}, // both brackets full
		{"-10", "0"},  // losses are not refunded
	}
	for _, tc := range cases {
		got := calc.AnnualTax(dec(tc.income))
		assert.True(t, got.Equal(dec(tc.want)), "income %s: got %s want %s", tc.income, got, tc.want)
	}
}

func TestMonthlyTaxMatchesAnnualForLevelIncome(t *testing.T) {
	calc, err := ForJurisdiction("AB")
	require.NoError(t, err)

	monthly := dec("7500")
	annual := calc.AnnualTax(monthly.Mul(dec("12")))

	got := calc.MonthlyTax(monthly).Mul(dec("12"))
	assert.True(t, got.Sub(annual).Abs().LessThan(dec("0.01")),
		"12 monthly slices %s vs annual %s", got, annual)
}

func TestMonthlyEntitiesScaleBounds(t *testing.T) {
	calc := twoBracketCalculator()

	entities := calc.MonthlyEntities()
	require.Len(t, entities, 1)
	require.Len(t, entities[0].Brackets, 2)

	want := dec("50").Div(dec("12"))
	assert.True(t, entities[0].Brackets[0].UpTo.Equal(want))
	assert.True(t, entities[0].Brackets[0].Rate.Equal(dec("0.10")), "rates are unchanged")
}

func TestForJurisdictionUnknownCode(t *testing.T) {
	_, err := ForJurisdiction("XX")
	assert.Error(t, err)
}

func TestJurisdictionsCombineFederalAndProvincial(t *testing.T) {
	ab, err := ForJurisdiction("AB")
	require.NoError(t, err)
	on, err := ForJurisdiction("ON")
	require.NoError(t, err)

	income := dec("90000")
	// Same federal schedule, different provincial schedules.
	assert.False(t, ab.AnnualTax(income).Equal(on.AnnualTax(income)))
	assert.True(t, ab.AnnualTax(income).GreaterThan(decimal.Zero))
}

func TestRetirementAdditionCapsAtIncomeFraction(t *testing.T) {
	rules := DefaultRoomRules()

	// 18% of 100k = 18000, below the flat cap.
	assert.True(t, rules.RetirementAdditionFor(dec("100000")).Equal(dec("18000")))
	// 18% of 400k exceeds the cap.
	assert.True(t, rules.RetirementAdditionFor(dec("400000")).Equal(dec("31560")))
}

func TestMinWithdrawalFractionSchedule(t *testing.T) {
	assert.True(t, MinWithdrawalFraction(71).IsZero(), "below threshold")
	assert.True(t, MinWithdrawalFraction(72).Equal(dec("0.054")))
	assert.True(t, MinWithdrawalFraction(120).Equal(dec("0.20")), "past table end uses final entry")

	// Fractions are non-decreasing with age.
	prev := decimal.Zero
	for age := 72; age <= 95; age++ {
		f := MinWithdrawalFraction(age)
		assert.True(t, f.GreaterThanOrEqual(prev), "age %d", age)
		prev = f
	}
}
