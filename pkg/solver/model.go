// Package solver implements a small constraint-programming model with reified
// linear constraints and a bounded-time branch-and-bound search over it.
//
// The modelling API follows the shape of CP-SAT: integer and boolean
// variables, linear constraints that can be made conditional with
// OnlyEnforceIf, boolean clauses, an optional linear objective to minimize,
// solution hints and decision strategies.
package solver

import (
	"errors"
	"fmt"
	"math"
)

// ErrModelInvalid is returned when a model cannot be solved as built
var ErrModelInvalid = errors.New("model invalid")

// Unbounded is used for a missing side of a linear constraint
const Unbounded int64 = math.MaxInt64 / 4

// VarID indexes a variable in a Model
type VarID int

// Literal is a boolean variable or its negation
type Literal struct {
	Var VarID
	Neg bool
}

// Not returns the negated literal
func (l Literal) Not() Literal {
	return Literal{Var: l.Var, Neg: !l.Neg}
}

// Term is one coefficient-variable product of a linear expression
type Term struct {
	Var  VarID
	Coef int64
}

// LinearExpr is Σ coef·var + offset
type LinearExpr struct {
	Terms  []Term
	Offset int64
}

// NewExpr returns an empty linear expression
func NewExpr() *LinearExpr {
	return &LinearExpr{}
}

// Add appends coef·v
func (e *LinearExpr) Add(v VarID, coef int64) *LinearExpr {
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	return e
}

// AddLiteral appends coef·l, rewriting a negated literal as coef·(1-x)
func (e *LinearExpr) AddLiteral(l Literal, coef int64) *LinearExpr {
	if l.Neg {
		e.Offset += coef
		return e.Add(l.Var, -coef)
	}
	return e.Add(l.Var, coef)
}

// AddConst adds a constant to the expression
func (e *LinearExpr) AddConst(c int64) *LinearExpr {
	e.Offset += c
	return e
}

// ValueSelection controls which side of a decision is explored first
type ValueSelection int

const (
	SelectMinValue ValueSelection = iota
	SelectMaxValue
)

// DecisionStrategy lists variables to branch on, in order
type DecisionStrategy struct {
	Vars      []VarID
	Selection ValueSelection
}

type variable struct {
	name    string
	lo, hi  int64
	boolean bool
}

// Constraint is a linear constraint lo <= expr <= hi, optionally enforced
// only when all of its enforcement literals are true
type Constraint struct {
	terms   []Term
	lo, hi  int64
	enforce []Literal
}

// OnlyEnforceIf makes the constraint conditional on all lits being true
func (c *Constraint) OnlyEnforceIf(lits ...Literal) *Constraint {
	c.enforce = append(c.enforce, lits...)
	return c
}

// Model holds variables, constraints and the objective of one problem
type Model struct {
	vars        []variable
	linears     []*Constraint
	clauses     [][]Literal
	exactlyOnes [][]Literal
	objective   *LinearExpr
	hints       map[VarID]int64
	strategies  []DecisionStrategy
}

// NewModel creates an empty model
func NewModel() *Model {
	return &Model{hints: make(map[VarID]int64)}
}

// NewIntVar creates an integer variable with domain [lo, hi]
func (m *Model) NewIntVar(lo, hi int64, name string) VarID {
	m.vars = append(m.vars, variable{name: name, lo: lo, hi: hi})
	return VarID(len(m.vars) - 1)
}

// NewBoolVar creates a 0/1 variable and returns its positive literal
func (m *Model) NewBoolVar(name string) Literal {
	m.vars = append(m.vars, variable{name: name, lo: 0, hi: 1, boolean: true})
	return Literal{Var: VarID(len(m.vars) - 1)}
}

// NumVars returns the number of variables in the model
func (m *Model) NumVars() int {
	return len(m.vars)
}

// NumConstraints returns the number of constraints in the model
func (m *Model) NumConstraints() int {
	return len(m.linears) + len(m.clauses) + len(m.exactlyOnes)
}

// Name returns the name given to v
func (m *Model) Name(v VarID) string {
	if int(v) < 0 || int(v) >= len(m.vars) {
		return fmt.Sprintf("var#%d", v)
	}
	return m.vars[v].name
}

// AddLinear adds lo <= expr <= hi. Use Unbounded / -Unbounded for a free side.
func (m *Model) AddLinear(expr *LinearExpr, lo, hi int64) *Constraint {
	c := &Constraint{
		terms: mergeTerms(expr.Terms),
		lo:    shift(lo, -expr.Offset),
		hi:    shift(hi, -expr.Offset),
	}
	m.linears = append(m.linears, c)
	return c
}

// AddEquality adds expr == value
func (m *Model) AddEquality(expr *LinearExpr, value int64) *Constraint {
	return m.AddLinear(expr, value, value)
}

// AddLessOrEqual adds expr <= value
func (m *Model) AddLessOrEqual(expr *LinearExpr, value int64) *Constraint {
	return m.AddLinear(expr, -Unbounded, value)
}

// AddGreaterOrEqual adds expr >= value
func (m *Model) AddGreaterOrEqual(expr *LinearExpr, value int64) *Constraint {
	return m.AddLinear(expr, value, Unbounded)
}

// AddBoolOr requires at least one literal to be true
func (m *Model) AddBoolOr(lits ...Literal) {
	m.clauses = append(m.clauses, append([]Literal(nil), lits...))
}

// AddImplication adds a => b
func (m *Model) AddImplication(a, b Literal) {
	m.AddBoolOr(a.Not(), b)
}

// AddExactlyOne requires exactly one literal to be true
func (m *Model) AddExactlyOne(lits ...Literal) {
	m.exactlyOnes = append(m.exactlyOnes, append([]Literal(nil), lits...))
}

// Minimize sets the objective
func (m *Model) Minimize(expr *LinearExpr) {
	e := &LinearExpr{Terms: mergeTerms(expr.Terms), Offset: expr.Offset}
	m.objective = e
}

// AddHint suggests a value for v; the search tries it first
func (m *Model) AddHint(v VarID, value int64) {
	m.hints[v] = value
}

// AddDecisionStrategy appends a branching strategy. Variables not covered by
// any strategy are branched on last, in creation order, smallest value first.
func (m *Model) AddDecisionStrategy(vars []VarID, sel ValueSelection) {
	m.strategies = append(m.strategies, DecisionStrategy{
		Vars:      append([]VarID(nil), vars...),
		Selection: sel,
	})
}

// Validate checks the model for structural errors
func (m *Model) Validate() error {
	for i, v := range m.vars {
		if v.lo > v.hi {
			return fmt.Errorf("%w: variable %s has empty domain [%d, %d]", ErrModelInvalid, v.name, v.lo, v.hi)
		}
		if v.lo <= -Unbounded || v.hi >= Unbounded {
			return fmt.Errorf("%w: variable %d (%s) must have a finite domain", ErrModelInvalid, i, v.name)
		}
	}
	for _, c := range m.linears {
		for _, t := range c.terms {
			if !m.valid(t.Var) {
				return fmt.Errorf("%w: linear constraint references unknown variable %d", ErrModelInvalid, t.Var)
			}
		}
		if err := m.validLiterals(c.enforce); err != nil {
			return err
		}
	}
	for _, cl := range m.clauses {
		if len(cl) == 0 {
			return fmt.Errorf("%w: empty clause", ErrModelInvalid)
		}
		if err := m.validLiterals(cl); err != nil {
			return err
		}
	}
	for _, eo := range m.exactlyOnes {
		if len(eo) == 0 {
			return fmt.Errorf("%w: empty exactly-one constraint", ErrModelInvalid)
		}
		if err := m.validLiterals(eo); err != nil {
			return err
		}
	}
	if m.objective != nil {
		for _, t := range m.objective.Terms {
			if !m.valid(t.Var) {
				return fmt.Errorf("%w: objective references unknown variable %d", ErrModelInvalid, t.Var)
			}
		}
	}
	for _, s := range m.strategies {
		for _, v := range s.Vars {
			if !m.valid(v) {
				return fmt.Errorf("%w: decision strategy references unknown variable %d", ErrModelInvalid, v)
			}
		}
	}
	return nil
}

func (m *Model) valid(v VarID) bool {
	return int(v) >= 0 && int(v) < len(m.vars)
}

func (m *Model) validLiterals(lits []Literal) error {
	for _, l := range lits {
		if !m.valid(l.Var) {
			return fmt.Errorf("%w: literal references unknown variable %d", ErrModelInvalid, l.Var)
		}
		if !m.vars[l.Var].boolean {
			return fmt.Errorf("%w: literal on non-boolean variable %s", ErrModelInvalid, m.vars[l.Var].name)
		}
	}
	return nil
}

// mergeTerms folds repeated variables and drops zero coefficients
func mergeTerms(terms []Term) []Term {
	index := make(map[VarID]int, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if i, ok := index[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		index[t.Var] = len(out)
		out = append(out, t)
	}
	merged := out[:0]
	for _, t := range out {
		if t.Coef != 0 {
			merged = append(merged, t)
		}
	}
	return merged
}

// shift moves a bound by delta, keeping unbounded sides unbounded
func shift(bound, delta int64) int64 {
	if bound >= Unbounded {
		return Unbounded
	}
	if bound <= -Unbounded {
		return -Unbounded
	}
	return bound + delta
}
