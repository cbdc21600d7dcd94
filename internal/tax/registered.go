package tax

import (
	"github.com/shopspring/decimal"
)

// RoomRules describes how registered-account contribution room accumulates
// each year. Two parallel tracks: retirement-type (RRSP-like) and tax-free
// (TFSA-like).
type RoomRules struct {
	// AnnualRetirementAddition is new retirement-type room granted each year.
	AnnualRetirementAddition decimal.Decimal
	// RetirementRoomIncomeFraction caps the retirement addition at this
	// fraction of annual earned income.
	RetirementRoomIncomeFraction decimal.Decimal
	// AnnualTaxFreeAddition is new tax-free room granted each year.
	AnnualTaxFreeAddition decimal.Decimal
}

// DefaultRoomRules are the 2024 limits.
func DefaultRoomRules() RoomRules {
	return RoomRules{
		AnnualRetirementAddition:     decimal.NewFromInt(31560),
		RetirementRoomIncomeFraction: decimal.NewFromFloat(0.18),
		AnnualTaxFreeAddition:        decimal.NewFromInt(7000),
	}
}

// RetirementAdditionFor returns the retirement-type room granted for a year
// with the given annual earned income.
func (r RoomRules) RetirementAdditionFor(annualIncome decimal.Decimal) decimal.Decimal {
	byIncome := annualIncome.Mul(r.RetirementRoomIncomeFraction)
	return decimal.Min(r.AnnualRetirementAddition, byIncome)
}

// MinWithdrawalAge is the age from which retirement-type registered accounts
// carry a mandatory minimum annual withdrawal.
const MinWithdrawalAge = 72

// minWithdrawalFractions maps age to the mandatory minimum annual withdrawal
// as a fraction of the account balance. Values follow the prescribed RRIF
// factors; ages past the table's end use the final entry.
var minWithdrawalFractions = map[int]decimal.Decimal{
	72: decimal.NewFromFloat(0.0540),
	73: decimal.NewFromFloat(0.0553),
	74: decimal.NewFromFloat(0.0567),
	75: decimal.NewFromFloat(0.0582),
	76: decimal.NewFromFloat(0.0598),
	77: decimal.NewFromFloat(0.0617),
	78: decimal.NewFromFloat(0.0636),
	79: decimal.NewFromFloat(0.0658),
	80: decimal.NewFromFloat(0.0682),
	81: decimal.NewFromFloat(0.0708),
	82: decimal.NewFromFloat(0.0738),
	83: decimal.NewFromFloat(0.0771),
	84: decimal.NewFromFloat(0.0808),
	85: decimal.NewFromFloat(0.0851),
	86: decimal.NewFromFloat(0.0899),
	87: decimal.NewFromFloat(0.0955),
	88: decimal.NewFromFloat(0.1021),
	89: decimal.NewFromFloat(0.1099),
	90: decimal.NewFromFloat(0.1192),
	91: decimal.NewFromFloat(0.1306),
	92: decimal.NewFromFloat(0.1449),
	93: decimal.NewFromFloat(0.1634),
	94: decimal.NewFromFloat(0.1879),
	95: decimal.NewFromFloat(0.2000),
}

const maxTabulatedWithdrawalAge = 95

// MinWithdrawalFraction returns the mandatory minimum annual withdrawal
// fraction for a retirement-type account held by someone of the given age.
// Zero below MinWithdrawalAge.
func MinWithdrawalFraction(age int) decimal.Decimal {
	if age < MinWithdrawalAge {
		return decimal.Zero
	}
	if age > maxTabulatedWithdrawalAge {
		age = maxTabulatedWithdrawalAge
	}
	return minWithdrawalFractions[age]
}
