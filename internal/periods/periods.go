// Package periods partitions the plan horizon into decision periods: groups
// of consecutive months treated as one optimization unit. Aggregation keeps
// the model tractable over a multi-decade horizon while critical event
// months (loan maturities, goal due dates, retirement, death) keep
// single-month granularity where it matters.
package periods

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Phase tags a period as pre- or post-retirement.
type Phase int

const (
	PhaseWorking Phase = iota
	PhaseRetirement
)

func (p Phase) String() string {
	if p == PhaseRetirement {
		return "retirement"
	}
	return "working"
}

// Period is one decision period: an index, the ordered calendar months it
// spans, and its phase.
type Period struct {
	Index  int
	Months []int
	Phase  Phase
}

// Start returns the first month of the period.
func (p Period) Start() int { return p.Months[0] }

// End returns the exclusive end month of the period.
func (p Period) End() int { return p.Months[len(p.Months)-1] + 1 }

// NumMonths returns the period length in months.
func (p Period) NumMonths() int { return len(p.Months) }

// Event is a major event month. Withdrawal-triggering events (purchase-goal
// due dates, maturities feeding a withdrawal) must be resolved at
// single-month granularity, so their month is never aggregated.
type Event struct {
	Month      int
	Withdrawal bool
}

// Manager holds the period partition and its lookups. The partition covers
// [start, final) with no gaps or overlaps; every month maps to exactly one
// period.
type Manager struct {
	periods []Period
	byMonth map[int]int
	start   int
	final   int
	logger  *zap.Logger
}

// NewFixed partitions [start, final) into fixed-width chunks: up to
// maxWorking months per period before retirement, up to maxRetirement after.
// The last chunk of each phase may be shorter.
func NewFixed(start, retirement, final, maxWorking, maxRetirement int) (*Manager, error) {
	if err := checkHorizon(start, retirement, final); err != nil {
		return nil, err
	}
	if maxWorking < 1 || maxRetirement < 1 {
		return nil, fmt.Errorf("period widths must be at least 1, got %d and %d", maxWorking, maxRetirement)
	}
	var periods []Period
	periods = appendChunks(periods, start, retirement, maxWorking, PhaseWorking)
	periods = appendChunks(periods, retirement, final, maxRetirement, PhaseRetirement)
	return newManager(periods, start, final, zap.NewNop())
}

// NewEventAware partitions [start, final) so that every event month bounds a
// period and every withdrawal-event month sits alone in a single-month
// period. Months between consecutive events are chunked into at most
// maxWorking months before retirement and maxRetirement after. Duplicate
// event months collapse; withdrawal wins when any source flags the month as
// withdrawal-triggering. Events before start are dropped.
func NewEventAware(start, retirement, final, maxWorking, maxRetirement int, events []Event, logger *zap.Logger) (*Manager, error) {
	if err := checkHorizon(start, retirement, final); err != nil {
		return nil, err
	}
	if maxWorking < 1 || maxRetirement < 1 {
		return nil, fmt.Errorf("period widths must be at least 1, got %d and %d", maxWorking, maxRetirement)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	withdrawalAt := make(map[int]bool)
	for _, ev := range events {
		if ev.Month < start {
			continue
		}
		withdrawalAt[ev.Month] = withdrawalAt[ev.Month] || ev.Withdrawal
	}
	// Retirement and death are always boundaries.
	if retirement > start && retirement < final {
		if _, ok := withdrawalAt[retirement]; !ok {
			withdrawalAt[retirement] = false
		}
	}

	boundaries := make([]int, 0, len(withdrawalAt)+2)
	for m := range withdrawalAt {
		if m > start && m < final {
			boundaries = append(boundaries, m)
		}
	}
	boundaries = append(boundaries, start, final)
	sort.Ints(boundaries)
	boundaries = dedupeInts(boundaries)

	var periods []Period
	for i := 0; i+1 < len(boundaries); i++ {
		segStart, segEnd := boundaries[i], boundaries[i+1]
		phase := PhaseWorking
		width := maxWorking
		if segStart >= retirement {
			phase = PhaseRetirement
			width = maxRetirement
		}
		if withdrawalAt[segStart] {
			periods = append(periods, Period{Months: []int{segStart}, Phase: phase})
			segStart++
		}
		periods = appendChunks(periods, segStart, segEnd, width, phase)
	}
	return newManager(periods, start, final, logger)
}

func appendChunks(periods []Period, from, to, width int, phase Phase) []Period {
	for m := from; m < to; m += width {
		end := m + width
		if end > to {
			end = to
		}
		months := make([]int, 0, end-m)
		for k := m; k < end; k++ {
			months = append(months, k)
		}
		periods = append(periods, Period{Months: months, Phase: phase})
	}
	return periods
}

func newManager(periods []Period, start, final int, logger *zap.Logger) (*Manager, error) {
	byMonth := make(map[int]int)
	next := start
	for i := range periods {
		periods[i].Index = i
		for _, m := range periods[i].Months {
			if m != next {
				return nil, fmt.Errorf("period partition has a gap or overlap at month %d (expected %d)", m, next)
			}
			byMonth[m] = i
			next++
		}
	}
	if next != final {
		return nil, fmt.Errorf("period partition ends at month %d, want %d", next, final)
	}
	return &Manager{periods: periods, byMonth: byMonth, start: start, final: final, logger: logger}, nil
}

func checkHorizon(start, retirement, final int) error {
	if final <= start {
		return fmt.Errorf("final month %d must be after start month %d", final, start)
	}
	if retirement < start || retirement > final {
		return fmt.Errorf("retirement month %d must lie within [%d, %d]", retirement, start, final)
	}
	return nil
}

func dedupeInts(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// Periods returns the ordered partition.
func (m *Manager) Periods() []Period { return m.periods }

// NumPeriods returns the number of decision periods.
func (m *Manager) NumPeriods() int { return len(m.periods) }

// Start returns the first modeled month.
func (m *Manager) Start() int { return m.start }

// Final returns the exclusive end of the horizon.
func (m *Manager) Final() int { return m.final }

// PeriodFor returns the period containing the given month.
func (m *Manager) PeriodFor(month int) (Period, error) {
	idx, ok := m.byMonth[month]
	if !ok {
		return Period{}, fmt.Errorf("month %d outside modeled horizon [%d, %d)", month, m.start, m.final)
	}
	return m.periods[idx], nil
}

// ClosestPeriodFor clamps out-of-horizon months to the first or last period.
// The clamp is a deliberate approximation for goals due outside the modeled
// horizon; it is logged so the degradation is visible.
func (m *Manager) ClosestPeriodFor(month int) Period {
	if month < m.start {
		m.logger.Warn("month before horizon clamped to first period",
			zap.Int("month", month), zap.Int("start", m.start))
		return m.periods[0]
	}
	if month >= m.final {
		m.logger.Warn("month past horizon clamped to last period",
			zap.Int("month", month), zap.Int("final", m.final))
		return m.periods[len(m.periods)-1]
	}
	p, _ := m.PeriodFor(month)
	return p
}

// MonthsInYear returns, for the given period, how many of its months fall in
// each plan year (year = month/12). Used by annual contribution-room rows.
func (m *Manager) MonthsInYear(periodIndex int) map[int]int {
	counts := make(map[int]int)
	for _, month := range m.periods[periodIndex].Months {
		counts[month/12]++
	}
	return counts
}

// Years returns the ascending list of plan years the horizon touches.
func (m *Manager) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for y := m.start / 12; y <= (m.final-1)/12; y++ {
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	return years
}
