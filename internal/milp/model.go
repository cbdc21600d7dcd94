// Package milp builds and solves the multi-period mixed-integer linear
// program that jointly decides loan paydown, investment allocation,
// tax-aware withdrawals, and goal funding over the decision periods.
//
// The package splits into a small generic modeling layer (variables, linear
// expressions, constraints, CPLEX-LP serialization), a Solver capability
// (injected, so tests run against a deterministic fake), the financial
// formulation itself, and the extraction step that replays a solve through
// the portfolio simulator.
package milp

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// VarType distinguishes continuous from binary decision variables.
type VarType int

const (
	Continuous VarType = iota
	Binary
)

// Var is a handle to one decision variable of a Model.
type Var struct {
	idx  int
	name string
}

// Name returns the variable's LP name.
func (v Var) Name() string { return v.name }

// Sense is the optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Op is a constraint relation.
type Op int

const (
	LE Op = iota
	GE
	EQ
)

func (o Op) String() string {
	switch o {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// Expr is a linear expression: sum of coefficient*variable plus a constant.
type Expr struct {
	coefs    map[int]float64
	constant float64
}

// NewExpr returns an empty linear expression.
func NewExpr() *Expr {
	return &Expr{coefs: make(map[int]float64)}
}

// Add accumulates coef*v into the expression and returns the receiver.
func (e *Expr) Add(coef float64, v Var) *Expr {
	e.coefs[v.idx] += coef
	return e
}

// AddConst accumulates a constant term.
func (e *Expr) AddConst(c float64) *Expr {
	e.constant += c
	return e
}

// AddExpr accumulates scale*other into the receiver.
func (e *Expr) AddExpr(scale float64, other *Expr) *Expr {
	for idx, c := range other.coefs {
		e.coefs[idx] += scale * c
	}
	e.constant += scale * other.constant
	return e
}

// Constant returns the constant term.
func (e *Expr) Constant() float64 { return e.constant }

type variable struct {
	name string
	typ  VarType
	lo   float64
	hi   float64
}

type constraint struct {
	name string
	expr *Expr
	op   Op
	rhs  float64
}

// Model is a mixed-integer linear program under construction.
type Model struct {
	Name      string
	vars      []variable
	cons      []constraint
	objective *Expr
	sense     Sense
	nameSeen  map[string]int
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, objective: NewExpr(), nameSeen: make(map[string]int)}
}

// Inf is the bound value treated as unbounded.
var Inf = math.Inf(1)

// NewVar adds a continuous variable with the given bounds. Names must be
// LP-safe; duplicates are suffixed to stay unique.
func (m *Model) NewVar(name string, lo, hi float64) Var {
	return m.addVar(name, Continuous, lo, hi)
}

// NewBinary adds a binary variable.
func (m *Model) NewBinary(name string) Var {
	return m.addVar(name, Binary, 0, 1)
}

func (m *Model) addVar(name string, typ VarType, lo, hi float64) Var {
	name = sanitizeName(name)
	if n, ok := m.nameSeen[name]; ok {
		m.nameSeen[name] = n + 1
		name = fmt.Sprintf("%s_%d", name, n+1)
	} else {
		m.nameSeen[name] = 0
	}
	m.vars = append(m.vars, variable{name: name, typ: typ, lo: lo, hi: hi})
	return Var{idx: len(m.vars) - 1, name: name}
}

// AddConstraint adds expr op rhs. The expression's constant term is folded
// into the right-hand side.
func (m *Model) AddConstraint(name string, expr *Expr, op Op, rhs float64) {
	m.cons = append(m.cons, constraint{name: sanitizeName(name), expr: expr, op: op, rhs: rhs - expr.constant})
}

// SetObjective sets the objective expression and direction.
func (m *Model) SetObjective(expr *Expr, sense Sense) {
	m.objective = expr
	m.sense = sense
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.cons) }

// VarNames returns all variable names in declaration order.
func (m *Model) VarNames() []string {
	names := make([]string, len(m.vars))
	for i, v := range m.vars {
		names[i] = v.name
	}
	return names
}

// WriteLP serializes the model in CPLEX LP format.
func (m *Model) WriteLP(w io.Writer) error {
	var b strings.Builder
	b.WriteString("\\ " + m.Name + "\n")
	if m.sense == Maximize {
		b.WriteString("Maximize\n")
	} else {
		b.WriteString("Minimize\n")
	}
	b.WriteString(" obj:")
	writeTerms(&b, m, m.objective)
	b.WriteString("\nSubject To\n")
	for _, c := range m.cons {
		b.WriteString(" " + c.name + ":")
		writeTerms(&b, m, c.expr)
		fmt.Fprintf(&b, " %s %s\n", c.op, formatNum(c.rhs))
	}
	b.WriteString("Bounds\n")
	for _, v := range m.vars {
		if v.typ == Binary {
			continue
		}
		switch {
		case math.IsInf(v.lo, -1) && math.IsInf(v.hi, 1):
			fmt.Fprintf(&b, " %s free\n", v.name)
		case math.IsInf(v.hi, 1):
			fmt.Fprintf(&b, " %s >= %s\n", v.name, formatNum(v.lo))
		case math.IsInf(v.lo, -1):
			fmt.Fprintf(&b, " -inf <= %s <= %s\n", v.name, formatNum(v.hi))
		default:
			fmt.Fprintf(&b, " %s <= %s <= %s\n", formatNum(v.lo), v.name, formatNum(v.hi))
		}
	}
	var binaries []string
	for _, v := range m.vars {
		if v.typ == Binary {
			binaries = append(binaries, v.name)
		}
	}
	if len(binaries) > 0 {
		b.WriteString("Binaries\n")
		for _, name := range binaries {
			b.WriteString(" " + name + "\n")
		}
	}
	b.WriteString("End\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// writeTerms emits an expression's terms in variable declaration order so
// model files are byte-stable across runs.
func writeTerms(b *strings.Builder, m *Model, e *Expr) {
	idxs := make([]int, 0, len(e.coefs))
	for idx, c := range e.coefs {
		if c != 0 {
			idxs = append(idxs, idx)
		}
	}
	sort.Ints(idxs)
	if len(idxs) == 0 {
		// LP rows cannot be empty; emit a zero term on the first variable.
		fmt.Fprintf(b, " 0 %s", m.vars[0].name)
		return
	}
	for _, idx := range idxs {
		c := e.coefs[idx]
		if c >= 0 {
			fmt.Fprintf(b, " + %s %s", formatNum(c), m.vars[idx].name)
		} else {
			fmt.Fprintf(b, " - %s %s", formatNum(-c), m.vars[idx].name)
		}
	}
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'g', 12, 64)
}

// sanitizeName replaces characters the LP format reserves.
func sanitizeName(name string) string {
	r := strings.NewReplacer(" ", "_", "+", "p", "-", "_", "*", "_", "^", "_", ":", "_", "[", "_", "]", "", ",", "_")
	return r.Replace(name)
}
