package milp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSolution(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solution")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCBCSolutionOptimal(t *testing.T) {
	path := writeSolution(t, `Optimal - objective value 1234.56
      0 alloc_cash_0           100                       0
      1 bal_cash_1             200                       0
`)

	res, err := parseCBCSolution(path)
	require.NoError(t, err)

	assert.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 1234.56, res.Objective, 1e-9)

	m := NewModel("t")
	v := m.NewVar("alloc_cash_0", 0, Inf)
	assert.Equal(t, 100.0, res.Value(v))
	assert.Equal(t, 0.0, res.Value(m.NewVar("missing", 0, Inf)), "omitted variables read as zero")
}

func TestParseCBCSolutionStoppedKeepsIncumbent(t *testing.T) {
	path := writeSolution(t, `Stopped on time - objective value 99.5
      0 x           1                       0
`)

	res, err := parseCBCSolution(path)
	require.NoError(t, err)
	assert.Equal(t, StatusFeasible, res.Status)
	assert.True(t, res.Status.Accepted())
}

func TestParseCBCSolutionInfeasible(t *testing.T) {
	path := writeSolution(t, "Infeasible - objective value 0\n")

	res, err := parseCBCSolution(path)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, res.Status)
	assert.False(t, res.Status.Accepted())
}

func TestParseCBCSolutionSkipsBoundMarkers(t *testing.T) {
	path := writeSolution(t, `Optimal - objective value 7
      0 x           3                       0
**    1 y           9                       0
`)

	res, err := parseCBCSolution(path)
	require.NoError(t, err)

	m := NewModel("t")
	x := m.NewVar("x", 0, Inf)
	y := m.NewVar("y", 0, Inf)
	assert.Equal(t, 3.0, res.Value(x))
	assert.Equal(t, 9.0, res.Value(y), "marker lines still carry values")
}

func TestStatusAccepted(t *testing.T) {
	assert.True(t, StatusOptimal.Accepted())
	assert.True(t, StatusFeasible.Accepted())
	assert.False(t, StatusInfeasible.Accepted())
	assert.False(t, StatusUnbounded.Accepted())
	assert.False(t, StatusError.Accepted())
}
