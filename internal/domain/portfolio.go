package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio is the keyed instrument collection a plan operates on. Keys are
// stable instrument ids, never display names (names are not guaranteed
// unique). The simulator owns mutation: callers hand a portfolio to Forward
// and receive a fresh copy back, and must not keep aliases to the input.
type Portfolio struct {
	instruments map[string]Instrument
}

// NewPortfolio builds a portfolio from the given instruments. Duplicate ids
// overwrite (last wins).
func NewPortfolio(instruments ...Instrument) *Portfolio {
	p := &Portfolio{instruments: make(map[string]Instrument, len(instruments))}
	for _, inst := range instruments {
		p.instruments[inst.ID()] = inst
	}
	return p
}

// Get returns the instrument with the given id.
func (p *Portfolio) Get(id string) (Instrument, bool) {
	inst, ok := p.instruments[id]
	return inst, ok
}

// Remove deletes the instrument with the given id, if present.
func (p *Portfolio) Remove(id string) {
	delete(p.instruments, id)
}

// Add inserts or replaces an instrument.
func (p *Portfolio) Add(inst Instrument) {
	p.instruments[inst.ID()] = inst
}

// Len returns the number of instruments.
func (p *Portfolio) Len() int { return len(p.instruments) }

// SortedIDs returns all instrument ids in ascending order. Every iteration
// over the portfolio goes through this list so that strategy tie-breaks and
// model row ordering are deterministic.
func (p *Portfolio) SortedIDs() []string {
	ids := make([]string, 0, len(p.instruments))
	for id := range p.instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Instruments returns the instruments in ascending id order.
func (p *Portfolio) Instruments() []Instrument {
	out := make([]Instrument, 0, len(p.instruments))
	for _, id := range p.SortedIDs() {
		out = append(out, p.instruments[id])
	}
	return out
}

// Loans returns the loan instruments in ascending id order.
func (p *Portfolio) Loans() []Instrument {
	var out []Instrument
	for _, inst := range p.Instruments() {
		if inst.Kind().IsLoan() {
			out = append(out, inst)
		}
	}
	return out
}

// Investments returns the non-guaranteed investments in ascending id order.
func (p *Portfolio) Investments() []*Investment {
	var out []*Investment
	for _, inst := range p.Instruments() {
		if v, ok := inst.(*Investment); ok {
			out = append(out, v)
		}
	}
	return out
}

// GuaranteedInvestments returns the guaranteed investments in ascending id order.
func (p *Portfolio) GuaranteedInvestments() []*GuaranteedInvestment {
	var out []*GuaranteedInvestment
	for _, inst := range p.Instruments() {
		if g, ok := inst.(*GuaranteedInvestment); ok {
			out = append(out, g)
		}
	}
	return out
}

// DeepCopy returns a portfolio whose instruments share no state with the
// receiver.
func (p *Portfolio) DeepCopy() *Portfolio {
	c := &Portfolio{instruments: make(map[string]Instrument, len(p.instruments))}
	for id, inst := range p.instruments {
		c.instruments[id] = inst.Clone()
	}
	return c
}

// NetWorth is the sum of all balances (loans contribute negatively).
func (p *Portfolio) NetWorth() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range p.instruments {
		total = total.Add(inst.Balance())
	}
	return total
}

// HasLoans reports whether any debt instrument remains.
func (p *Portfolio) HasLoans() bool {
	for _, inst := range p.instruments {
		if inst.Kind().IsLoan() {
			return true
		}
	}
	return false
}

// HasInvestments reports whether any investment-side instrument exists.
func (p *Portfolio) HasInvestments() bool {
	for _, inst := range p.instruments {
		if !inst.Kind().IsLoan() {
			return true
		}
	}
	return false
}

// CashSinkID returns the id of the non-registered cash investment that
// absorbs allowance leftover and withdrawal proceeds.
func (p *Portfolio) CashSinkID() (string, bool) {
	for _, id := range p.SortedIDs() {
		if v, ok := p.instruments[id].(*Investment); ok {
			if v.Account == NonRegistered && v.Asset == AssetCash {
				return id, true
			}
		}
	}
	return "", false
}

// EnsureCashSink synthesizes a zero-balance non-registered cash account when
// none exists, so every portfolio has a catch-all sink. Returns the sink id.
func (p *Portfolio) EnsureCashSink() string {
	if id, ok := p.CashSinkID(); ok {
		return id
	}
	sink := &Investment{
		InvestmentID:   "cash-" + uuid.NewString(),
		DisplayName:    "Cash",
		Rate:           FixedRate{Rate: decimal.Zero},
		CurrentBalance: decimal.Zero,
		Account:        NonRegistered,
		Asset:          AssetCash,
	}
	p.Add(sink)
	return sink.InvestmentID
}
