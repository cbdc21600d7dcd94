package periods

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// requireCoverage asserts the partition covers [start, final) with each
// month in exactly one period, in order.
func requireCoverage(t *testing.T, m *Manager, start, final int) {
	t.Helper()
	next := start
	for _, p := range m.Periods() {
		for _, month := range p.Months {
			require.Equal(t, next, month, "period %d", p.Index)
			next++
		}
	}
	require.Equal(t, final, next)
}

func TestNewFixedPartitionCoversHorizon(t *testing.T) {
	m, err := NewFixed(0, 24, 60, 12, 24)
	require.NoError(t, err)

	requireCoverage(t, m, 0, 60)

	// 24 working months in chunks of 12, 36 retirement months in 24+12.
	require.Equal(t, 4, m.NumPeriods())
	assert.Equal(t, PhaseWorking, m.Periods()[0].Phase)
	assert.Equal(t, PhaseRetirement, m.Periods()[2].Phase)
	assert.Equal(t, 24, m.Periods()[2].NumMonths())
}

func TestEventAwareIsolatesWithdrawalMonths(t *testing.T) {
	events := []Event{
		{Month: 18, Withdrawal: true},
		{Month: 18, Withdrawal: false}, // duplicate: withdrawal wins
		{Month: 30},
		{Month: -3}, // before start: dropped
	}
	m, err := NewEventAware(0, 36, 48, 12, 24, events, zap.NewNop())
	require.NoError(t, err)

	requireCoverage(t, m, 0, 48)

	p, err := m.PeriodFor(18)
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumMonths(), "withdrawal month sits alone")
	assert.Equal(t, 18, p.Start())

	// Non-withdrawal events bound periods without isolation.
	p, err = m.PeriodFor(30)
	require.NoError(t, err)
	assert.Equal(t, 30, p.Start())

	// Retirement is always a boundary.
	p, err = m.PeriodFor(36)
	require.NoError(t, err)
	assert.Equal(t, 36, p.Start())
	assert.Equal(t, PhaseRetirement, p.Phase)
}

func TestEventAwareRespectsPhaseWidths(t *testing.T) {
	m, err := NewEventAware(0, 12, 60, 6, 24, nil, zap.NewNop())
	require.NoError(t, err)

	requireCoverage(t, m, 0, 60)
	for _, p := range m.Periods() {
		switch p.Phase {
		case PhaseWorking:
			assert.LessOrEqual(t, p.NumMonths(), 6)
		case PhaseRetirement:
			assert.LessOrEqual(t, p.NumMonths(), 24)
		}
	}
}

func TestPeriodForOutsideHorizon(t *testing.T) {
	m, err := NewFixed(0, 12, 24, 12, 12)
	require.NoError(t, err)

	_, err = m.PeriodFor(24)
	assert.Error(t, err)
	_, err = m.PeriodFor(-1)
	assert.Error(t, err)
}

func TestClosestPeriodForClampsToHorizon(t *testing.T) {
	m, err := NewFixed(0, 12, 24, 12, 12)
	require.NoError(t, err)

	assert.Equal(t, 0, m.ClosestPeriodFor(-5).Index)
	assert.Equal(t, m.NumPeriods()-1, m.ClosestPeriodFor(99).Index)
	assert.Equal(t, 12, m.ClosestPeriodFor(13).Start())
}

func TestMonthsInYearSplitsStraddlingPeriods(t *testing.T) {
	// One 24-month retirement period straddles plan years 1 and 2.
	m, err := NewFixed(0, 12, 36, 12, 24)
	require.NoError(t, err)

	counts := m.MonthsInYear(1)
	assert.Equal(t, 12, counts[1])
	assert.Equal(t, 12, counts[2])

	assert.Equal(t, []int{0, 1, 2}, m.Years())
}

func TestInvalidHorizonsRejected(t *testing.T) {
	_, err := NewFixed(0, 12, 0, 12, 12)
	assert.Error(t, err, "final before start")

	_, err = NewFixed(0, 40, 36, 12, 12)
	assert.Error(t, err, "retirement past final")

	_, err = NewFixed(0, 12, 24, 0, 12)
	assert.Error(t, err, "zero width")
}
