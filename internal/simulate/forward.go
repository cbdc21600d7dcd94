// Package simulate holds the deterministic portfolio simulator: the
// month-by-month forwarding function that replays payments and withdrawals
// against a portfolio snapshot. It is the ground truth for what any plan
// physically does; optimizer output is always replayed through it before
// being surfaced.
package simulate

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/malfrine/two-cents-sub000/internal/domain"
)

// Forward advances a portfolio by one month: accrue interest on every
// instrument, apply payments and withdrawals, then drop loans whose balance
// has reached zero. The input portfolio is never mutated; the result is a
// fresh deep copy.
//
// Every balance and minimum-payment evaluation uses the month passed here,
// never month+1 or month-1.
func Forward(p *domain.Portfolio, payments map[string]decimal.Decimal, month int, withdrawals map[string]decimal.Decimal, logger *zap.Logger) *domain.Portfolio {
	if logger == nil {
		logger = zap.NewNop()
	}
	next := p.DeepCopy()

	// 1. Interest accrual. Loans grow more negative, investments grow.
	for _, inst := range next.Instruments() {
		inst.AccrueInterest(month)
	}

	// 2. Payments and withdrawals, in id order.
	for _, id := range next.SortedIDs() {
		inst, _ := next.Get(id)
		if amt, ok := payments[id]; ok && !amt.IsZero() {
			required := inst.MinimumPayment(month)
			if amt.LessThan(required) {
				// Realistic degraded behaviour being modeled, not an error.
				logger.Warn("payment below required minimum",
					zap.String("instrument", id),
					zap.Int("month", month),
					zap.String("payment", amt.StringFixed(2)),
					zap.String("minimum", required.StringFixed(2)))
			}
			inst.ReceivePayment(amt)
		}
		if amt, ok := withdrawals[id]; ok && !amt.IsZero() {
			if inv, ok := inst.(*domain.Investment); ok {
				inv.Withdraw(amt)
			} else {
				logger.Warn("withdrawal requested from non-withdrawable instrument",
					zap.String("instrument", id), zap.Int("month", month))
			}
		}
	}

	// 3. Paid-off loans leave the portfolio.
	for _, id := range next.SortedIDs() {
		inst, _ := next.Get(id)
		if !inst.Kind().IsLoan() {
			continue
		}
		if l, ok := loanState(inst); ok && l.IsPaidOff() {
			next.Remove(id)
		}
	}

	return next
}

func loanState(inst domain.Instrument) (*domain.Loan, bool) {
	switch v := inst.(type) {
	case *domain.RevolvingLoan:
		return &v.Loan, true
	case *domain.InstalmentLoan:
		return &v.Loan, true
	case *domain.Mortgage:
		return &v.Loan, true
	default:
		return nil, false
	}
}
