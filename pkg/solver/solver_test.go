package solver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveLinearMinimum(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 10, "x")
	y := m.NewIntVar(0, 10, "y")
	m.AddGreaterOrEqual(NewExpr().Add(x, 1).Add(y, 1), 5)
	m.AddGreaterOrEqual(NewExpr().Add(y, 1), 2)
	m.Minimize(NewExpr().Add(x, 2).Add(y, 3))

	resp, err := NewSolver(time.Second).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, resp.Status)
	assert.Equal(t, int64(12), resp.Objective) // x=3, y=2
	assert.Equal(t, int64(3), resp.Value(x))
	assert.Equal(t, int64(2), resp.Value(y))
	assert.Equal(t, resp.Objective, resp.BestBound)
}

func TestSolveReifiedConstraint(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 20, "x")
	b := m.NewBoolVar("b")
	m.AddGreaterOrEqual(NewExpr().Add(x, 1), 7).OnlyEnforceIf(b)
	m.Minimize(NewExpr().Add(x, 1).AddLiteral(b, -10))

	resp, err := NewSolver(time.Second).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, resp.Status)
	assert.True(t, resp.BoolValue(b))
	assert.False(t, resp.BoolValue(b.Not()))
	assert.Equal(t, int64(7), resp.Value(x))
	assert.Equal(t, int64(-3), resp.Objective)
}

func TestSolveNegatedEnforcement(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 10, "x")
	b := m.NewBoolVar("b")
	// b false forces x >= 4, b true forces x >= 6
	m.AddGreaterOrEqual(NewExpr().Add(x, 1), 4).OnlyEnforceIf(b.Not())
	m.AddGreaterOrEqual(NewExpr().Add(x, 1), 6).OnlyEnforceIf(b)
	m.Minimize(NewExpr().Add(x, 1).AddLiteral(b.Not(), 3))

	resp, err := NewSolver(time.Second).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, resp.Status)
	// b=false: 4+3=7, b=true: 6
	assert.Equal(t, int64(6), resp.Objective)
	assert.True(t, resp.BoolValue(b))
}

func TestSolveExactlyOne(t *testing.T) {
	m := NewModel()
	costs := []int64{5, 2, 9}
	lits := make([]Literal, len(costs))
	obj := NewExpr()
	for i, c := range costs {
		lits[i] = m.NewBoolVar("pick")
		obj.AddLiteral(lits[i], c)
	}
	m.AddExactlyOne(lits...)
	m.Minimize(obj)

	resp, err := NewSolver(time.Second).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, resp.Status)
	assert.Equal(t, int64(2), resp.Objective)
	assert.False(t, resp.BoolValue(lits[0]))
	assert.True(t, resp.BoolValue(lits[1]))
	assert.False(t, resp.BoolValue(lits[2]))
}

func TestSolveDisjunctiveMakespan(t *testing.T) {
	m := NewModel()
	durations := []int64{3, 2}
	var starts, ends []VarID
	for _, d := range durations {
		s := m.NewIntVar(0, 5, "start")
		e := m.NewIntVar(0, 5, "end")
		m.AddEquality(NewExpr().Add(e, 1).Add(s, -1), d)
		starts = append(starts, s)
		ends = append(ends, e)
	}
	before := m.NewBoolVar("first_before_second")
	m.AddLessOrEqual(NewExpr().Add(ends[0], 1).Add(starts[1], -1), 0).OnlyEnforceIf(before)
	m.AddLessOrEqual(NewExpr().Add(ends[1], 1).Add(starts[0], -1), 0).OnlyEnforceIf(before.Not())
	makespan := m.NewIntVar(0, 5, "makespan")
	for _, e := range ends {
		m.AddGreaterOrEqual(NewExpr().Add(makespan, 1).Add(e, -1), 0)
	}
	// prefer the short task first
	m.Minimize(NewExpr().Add(makespan, 10).Add(ends[0], 1).Add(ends[1], 1))

	resp, err := NewSolver(time.Second).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, resp.Status)
	assert.Equal(t, int64(5), resp.Value(makespan))
	assert.False(t, resp.BoolValue(before))
	assert.Equal(t, int64(0), resp.Value(starts[1]))
	assert.Equal(t, int64(2), resp.Value(starts[0]))
}

func TestSolveInfeasible(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 3, "x")
	m.AddGreaterOrEqual(NewExpr().Add(x, 1), 5)

	resp, err := NewSolver(time.Second).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, resp.Status)
	assert.False(t, resp.Status.HasSolution())
}

func TestSolveClauseForcesLiteral(t *testing.T) {
	m := NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddBoolOr(a, b)
	m.AddImplication(a, b.Not())
	m.Minimize(NewExpr().AddLiteral(b, 4).AddLiteral(a, 1))

	resp, err := NewSolver(time.Second).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, resp.Status)
	assert.True(t, resp.BoolValue(a))
	assert.False(t, resp.BoolValue(b))
}

func TestSolveSatisfactionStopsAtFirstSolution(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(2, 9, "x")
	m.AddHint(x, 6)

	resp, err := NewSolver(time.Second).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, resp.Status)
	assert.Equal(t, int64(6), resp.Value(x))
	assert.Equal(t, 1, resp.Stats.Solutions)
}

func TestSolveCancelledContext(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 100, "x")
	m.Minimize(NewExpr().Add(x, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sv := NewSolver(0)
	sv.CheckEvery = 1
	resp, err := sv.Solve(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, resp.Status)
}

func TestValidateRejectsBrokenModels(t *testing.T) {
	tests := []struct {
		name  string
		build func(m *Model)
	}{
		{"empty domain", func(m *Model) { m.NewIntVar(5, 1, "x") }},
		{"empty exactly one", func(m *Model) { m.AddExactlyOne() }},
		{"literal on int var", func(m *Model) {
			x := m.NewIntVar(0, 4, "x")
			m.AddBoolOr(Literal{Var: x})
		}},
		{"unknown variable", func(m *Model) {
			m.AddEquality(NewExpr().Add(VarID(42), 1), 0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel()
			tt.build(m)
			resp, err := NewSolver(time.Second).Solve(context.Background(), m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrModelInvalid))
			assert.Equal(t, StatusModelInvalid, resp.Status)
		})
	}
}

func TestMergeTermsFoldsDuplicates(t *testing.T) {
	terms := mergeTerms([]Term{{Var: 0, Coef: 2}, {Var: 1, Coef: 3}, {Var: 0, Coef: -2}, {Var: 1, Coef: 1}})
	assert.Equal(t, []Term{{Var: 1, Coef: 4}}, terms)
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int64(2), floorDiv(7, 3))
	assert.Equal(t, int64(-3), floorDiv(-7, 3))
	assert.Equal(t, int64(-2), floorDiv(-6, 3))
	assert.Equal(t, int64(0), floorDiv(0, 5))
}
