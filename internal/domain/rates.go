package domain

import (
	"github.com/shopspring/decimal"
)

// RatePolicy computes the monthly interest (or return) rate of an instrument
// for a given month index. Month indices count from the start of the plan
// horizon (month 0 = first simulated month).
type RatePolicy interface {
	// MonthlyRate returns the rate applied to the balance during the given month.
	MonthlyRate(month int) decimal.Decimal
}

// FixedRate is a constant monthly rate for the whole horizon.
type FixedRate struct {
	Rate decimal.Decimal
}

// NewFixedAnnualRate builds a FixedRate from an annual percentage rate,
// dividing by 12 (nominal monthly compounding).
func NewFixedAnnualRate(apr decimal.Decimal) FixedRate {
	return FixedRate{Rate: apr.Div(decimal.NewFromInt(12))}
}

func (f FixedRate) MonthlyRate(_ int) decimal.Decimal {
	return f.Rate
}

// PrimeLinkedRate is a variable rate expressed as a spread over a prime-rate
// forecast. The forecast is a sparse, ascending schedule of (from-month,
// annual prime) points; the latest point at or before the queried month wins.
type PrimeLinkedRate struct {
	// Forecast holds the annual prime rate effective from each month.
	// Must be sorted ascending by FromMonth.
	Forecast []PrimePoint
	// Spread is the annual spread added on top of prime (may be negative).
	Spread decimal.Decimal
}

// PrimePoint is one step of a prime-rate forecast.
type PrimePoint struct {
	FromMonth int
	Annual    decimal.Decimal
}

func (p PrimeLinkedRate) MonthlyRate(month int) decimal.Decimal {
	annual := p.Spread
	for _, pt := range p.Forecast {
		if pt.FromMonth > month {
			break
		}
		annual = pt.Annual.Add(p.Spread)
	}
	return annual.Div(decimal.NewFromInt(12))
}

// TermRate models a mortgage-style rate: a contracted rate until the end of
// the current term, then a default (posted) rate for the remainder of the
// amortization.
type TermRate struct {
	CurrentAnnual decimal.Decimal
	DefaultAnnual decimal.Decimal
	// TermEndMonth is the first month the default rate applies.
	TermEndMonth int
}

func (t TermRate) MonthlyRate(month int) decimal.Decimal {
	if month < t.TermEndMonth {
		return t.CurrentAnnual.Div(decimal.NewFromInt(12))
	}
	return t.DefaultAnnual.Div(decimal.NewFromInt(12))
}
