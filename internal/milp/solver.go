package milp

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Status is the solver's disposition of a model.
type Status int

const (
	// StatusOptimal: solved to within the gap tolerance.
	StatusOptimal Status = iota
	// StatusFeasible: stopped at a limit but holding an integer-feasible
	// solution. Accepted.
	StatusFeasible
	// StatusInfeasible: no solution exists.
	StatusInfeasible
	// StatusUnbounded: the model is unbounded.
	StatusUnbounded
	// StatusError: the solver failed or produced nothing usable.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "error"
	}
}

// Accepted reports whether the status yields a usable solution: optimal, or
// aborted-at-a-limit but feasible. Everything else means no plan.
func (s Status) Accepted() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Limits bound one solve call.
type Limits struct {
	// WallClock is the hard time cutoff; the solve's only cancellation
	// mechanism.
	WallClock time.Duration
	// MaxNodes bounds the branch-and-bound tree (0 = solver default).
	MaxNodes int
	// GapTolerance is the accepted relative optimality gap.
	GapTolerance float64
}

// Result is a solved model: a status, the objective value, and a value per
// variable name.
type Result struct {
	Status    Status
	Objective float64
	values    map[string]float64
}

// Value returns the solved value of a variable (0 for variables the solver
// omitted, which CBC does for structural zeros).
func (r *Result) Value(v Var) float64 {
	return r.values[v.name]
}

// NewResult builds a result from explicit variable values, keyed by variable
// name. Fake solvers use it to hand back deterministic solutions.
func NewResult(status Status, objective float64, values map[string]float64) *Result {
	return &Result{Status: status, Objective: objective, values: values}
}

// SolveError wraps a solver failure with the operation and status context.
type SolveError struct {
	Op     string
	Status Status
	Cause  error
}

func (e *SolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("milp %s: status %s: %v", e.Op, e.Status, e.Cause)
	}
	return fmt.Sprintf("milp %s: status %s", e.Op, e.Status)
}

func (e *SolveError) Unwrap() error { return e.Cause }

// Solver is the injected MILP-solving capability: build-model →
// solve-with-limits → extract-variable-values. The formulation never talks
// to a solver binary directly, so unit tests can substitute a deterministic
// fake.
type Solver interface {
	Solve(ctx context.Context, m *Model, limits Limits) (*Result, error)
}

// CBCSolver runs the COIN-OR CBC command-line solver as an external process:
// the model is written as a CPLEX LP file, CBC solves it under the given
// limits, and the solution file is parsed back.
type CBCSolver struct {
	// BinaryPath is the cbc executable (default "cbc").
	BinaryPath string
	// WorkDir hosts the temporary model/solution files (default os.TempDir).
	WorkDir string
	// KeepFiles leaves the temp files behind for debugging.
	KeepFiles bool
	Logger    *zap.Logger
}

// NewCBCSolver creates a CBC-backed solver.
func NewCBCSolver(binaryPath string, logger *zap.Logger) *CBCSolver {
	if binaryPath == "" {
		binaryPath = "cbc"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CBCSolver{BinaryPath: binaryPath, Logger: logger}
}

// Solve writes the model, runs CBC under the wall-clock limit, and parses
// the solution. A limit-hit with an incumbent comes back StatusFeasible.
func (s *CBCSolver) Solve(ctx context.Context, m *Model, limits Limits) (*Result, error) {
	dir, err := os.MkdirTemp(s.WorkDir, "twocents-milp-")
	if err != nil {
		return nil, &SolveError{Op: "solve", Status: StatusError, Cause: err}
	}
	if !s.KeepFiles {
		defer os.RemoveAll(dir)
	}

	modelPath := filepath.Join(dir, "model.lp")
	solutionPath := filepath.Join(dir, "solution.txt")

	f, err := os.Create(modelPath)
	if err != nil {
		return nil, &SolveError{Op: "solve", Status: StatusError, Cause: err}
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		return nil, &SolveError{Op: "solve", Status: StatusError, Cause: err}
	}
	if err := f.Close(); err != nil {
		return nil, &SolveError{Op: "solve", Status: StatusError, Cause: err}
	}

	args := []string{
		modelPath,
		"seconds", strconv.FormatFloat(limits.WallClock.Seconds(), 'f', 0, 64),
		"ratioGap", strconv.FormatFloat(limits.GapTolerance, 'f', -1, 64),
	}
	if limits.MaxNodes > 0 {
		args = append(args, "maxNodes", strconv.Itoa(limits.MaxNodes))
	}
	args = append(args, "solve", "solution", solutionPath)

	// The context carries the same wall clock so a wedged process dies too.
	runCtx, cancel := context.WithTimeout(ctx, limits.WallClock+5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.BinaryPath, args...)
	out, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, &SolveError{Op: "solve", Status: StatusError, Cause: fmt.Errorf("solver exceeded wall clock %s", limits.WallClock)}
	}
	if err != nil {
		if _, statErr := os.Stat(solutionPath); statErr != nil {
			return nil, &SolveError{Op: "solve", Status: StatusError,
				Cause: fmt.Errorf("cbc failed: %w: %s", err, tail(string(out), 400))}
		}
		// CBC can exit non-zero after writing a usable incumbent.
		s.Logger.Warn("cbc exited non-zero but wrote a solution", zap.Error(err))
	}

	result, err := parseCBCSolution(solutionPath)
	if err != nil {
		return nil, &SolveError{Op: "solve", Status: StatusError, Cause: err}
	}
	s.Logger.Debug("cbc solve finished",
		zap.String("status", result.Status.String()),
		zap.Float64("objective", result.Objective),
		zap.Int("vars", m.NumVars()),
		zap.Int("constraints", m.NumConstraints()))
	return result, nil
}

// parseCBCSolution reads a CBC solution file. The first line carries the
// status and objective ("Optimal - objective value 42", "Stopped on time -
// objective value 42", "Infeasible - ..."); remaining lines are
// " index name value reducedCost".
func parseCBCSolution(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read solution file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty solution file")
	}
	header := scanner.Text()
	result := &Result{values: make(map[string]float64)}

	switch {
	case strings.HasPrefix(header, "Optimal"):
		result.Status = StatusOptimal
	case strings.HasPrefix(header, "Stopped") && strings.Contains(header, "objective"):
		result.Status = StatusFeasible
	case strings.Contains(header, "Infeasible") || strings.Contains(header, "infeasible"):
		result.Status = StatusInfeasible
		return result, nil
	case strings.Contains(header, "Unbounded") || strings.Contains(header, "unbounded"):
		result.Status = StatusUnbounded
		return result, nil
	default:
		result.Status = StatusError
		return result, nil
	}

	if i := strings.LastIndex(header, "value"); i >= 0 {
		objStr := strings.TrimSpace(header[i+len("value"):])
		if obj, err := strconv.ParseFloat(objStr, 64); err == nil {
			result.Objective = obj
		}
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// "** marks a superbasic row in some CBC builds; skip the marker.
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 {
			continue
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		result.values[fields[1]] = value
	}
	return result, scanner.Err()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
