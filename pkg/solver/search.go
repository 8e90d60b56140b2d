package solver

import (
	"context"
	"fmt"
	"time"
)

// Status is the outcome of a solve
type Status string

const (
	StatusOptimal      Status = "OPTIMAL"
	StatusFeasible     Status = "FEASIBLE"
	StatusInfeasible   Status = "INFEASIBLE"
	StatusUnknown      Status = "UNKNOWN"
	StatusModelInvalid Status = "MODEL_INVALID"
)

// HasSolution reports whether the status carries a usable assignment
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Stats describes the work done by a solve
type Stats struct {
	Nodes     int64
	Failures  int64
	Solutions int
	WallTime  time.Duration
}

// Response holds the best assignment found and how it was obtained
type Response struct {
	Status    Status
	Objective int64
	BestBound int64
	Stats     Stats
	values    []int64
}

// Value returns the value of v in the best solution
func (r *Response) Value(v VarID) int64 {
	if r.values == nil || int(v) < 0 || int(v) >= len(r.values) {
		return 0
	}
	return r.values[v]
}

// BoolValue returns the truth value of l in the best solution
func (r *Response) BoolValue(l Literal) bool {
	return (r.Value(l.Var) == 1) != l.Neg
}

// Solver searches a model for an optimal assignment within a time limit.
// A Solver holds no state between calls and may be shared.
type Solver struct {
	TimeLimit time.Duration
	// CheckEvery is the number of nodes between deadline checks
	CheckEvery int64
}

// NewSolver creates a solver bounded by timeLimit (0 means only ctx bounds it)
func NewSolver(timeLimit time.Duration) *Solver {
	return &Solver{TimeLimit: timeLimit, CheckEvery: 256}
}

// Solve runs branch-and-bound until the search space is exhausted, the time
// limit passes or ctx is done. A deadline returns the best solution so far.
func (sv *Solver) Solve(ctx context.Context, m *Model) (*Response, error) {
	start := time.Now()
	if err := m.Validate(); err != nil {
		return &Response{Status: StatusModelInvalid}, err
	}

	if sv.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sv.TimeLimit)
		defer cancel()
	}

	sr := newSearch(ctx, m, sv.CheckEvery)
	sr.run()

	resp := &Response{
		Stats: Stats{
			Nodes:     sr.nodes,
			Failures:  sr.failures,
			Solutions: sr.solutions,
			WallTime:  time.Since(start),
		},
		BestBound: sr.rootBound,
	}
	switch {
	case sr.best != nil && !sr.stopped:
		resp.Status = StatusOptimal
	case sr.best != nil:
		resp.Status = StatusFeasible
	case !sr.stopped:
		resp.Status = StatusInfeasible
	default:
		resp.Status = StatusUnknown
	}
	if sr.best != nil {
		resp.values = sr.best
		resp.Objective = sr.bestObjective
		if resp.Status == StatusOptimal {
			resp.BestBound = sr.bestObjective
		}
	}
	return resp, nil
}

type branch struct {
	lo, hi int64
}

type search struct {
	ctx        context.Context
	model      *Model
	st         *state
	checkEvery int64

	objVar    VarID
	hasObj    bool
	objOffset int64
	objUpper  int64
	rootBound int64

	order    []VarID
	selectOf map[VarID]ValueSelection

	best          []int64
	bestObjective int64
	solutions     int
	nodes         int64
	failures      int64
	stopped       bool
	proved        bool
}

func newSearch(ctx context.Context, m *Model, checkEvery int64) *search {
	if checkEvery <= 0 {
		checkEvery = 256
	}
	sr := &search{
		ctx:        ctx,
		model:      m,
		checkEvery: checkEvery,
		selectOf:   make(map[VarID]ValueSelection),
		objUpper:   Unbounded,
	}

	vars := append([]variable(nil), m.vars...)
	if m.objective != nil {
		lo, hi := expressionRange(m.vars, m.objective.Terms)
		vars = append(vars, variable{name: "objective", lo: lo, hi: hi})
		sr.objVar = VarID(len(vars) - 1)
		sr.hasObj = true
		sr.objOffset = m.objective.Offset
	}
	sr.st = newState(&Model{vars: vars})

	for _, c := range m.linears {
		sr.st.addPropagator(&linearProp{terms: c.terms, lo: c.lo, hi: c.hi, enforce: c.enforce})
	}
	for _, cl := range m.clauses {
		sr.st.addPropagator(&clauseProp{lits: cl})
	}
	for _, eo := range m.exactlyOnes {
		sr.st.addPropagator(&exactlyOneProp{lits: eo})
	}
	if sr.hasObj {
		terms := append([]Term(nil), m.objective.Terms...)
		terms = append(terms, Term{Var: sr.objVar, Coef: -1})
		sr.st.addPropagator(&linearProp{terms: terms, lo: 0, hi: 0})
	}

	seen := make(map[VarID]bool)
	for _, strat := range m.strategies {
		for _, v := range strat.Vars {
			if seen[v] {
				continue
			}
			seen[v] = true
			sr.order = append(sr.order, v)
			sr.selectOf[v] = strat.Selection
		}
	}
	for i := range m.vars {
		v := VarID(i)
		if !seen[v] {
			sr.order = append(sr.order, v)
			sr.selectOf[v] = SelectMinValue
		}
	}
	return sr
}

func (sr *search) run() {
	sr.st.enqueueAll()
	if !sr.st.propagate() {
		return
	}
	if sr.hasObj {
		sr.rootBound = sr.st.lo[sr.objVar] + sr.objOffset
	}
	sr.dfs()
}

func (sr *search) dfs() {
	if sr.stopped || sr.proved {
		return
	}
	sr.nodes++
	if sr.nodes%sr.checkEvery == 0 && sr.ctx.Err() != nil {
		sr.st.clearQueue()
		sr.stopped = true
		return
	}

	if sr.hasObj && !sr.st.setHi(sr.objVar, sr.objUpper) {
		sr.st.clearQueue()
		sr.failures++
		return
	}
	if !sr.st.propagate() {
		sr.failures++
		return
	}

	v, ok := sr.pick()
	if !ok {
		sr.record()
		return
	}

	for _, b := range sr.branches(v) {
		mark := len(sr.st.trail)
		if sr.st.setLo(v, b.lo) && sr.st.setHi(v, b.hi) {
			sr.dfs()
		} else {
			sr.st.clearQueue()
			sr.failures++
		}
		sr.st.undo(mark)
		if sr.stopped || sr.proved {
			return
		}
	}
}

// pick returns the next unfixed variable in decision order
func (sr *search) pick() (VarID, bool) {
	for _, v := range sr.order {
		if !sr.st.fixed(v) {
			return v, true
		}
	}
	return 0, false
}

// branches splits the domain of v into disjoint sub-domains, most promising first
func (sr *search) branches(v VarID) []branch {
	lo, hi := sr.st.lo[v], sr.st.hi[v]

	if sr.st.boolean[v] && !sr.relevant(v) {
		return []branch{{lo, lo}}
	}

	if h, ok := sr.model.hints[v]; ok && h >= lo && h <= hi {
		out := []branch{{h, h}}
		if h > lo {
			out = append(out, branch{lo, h - 1})
		}
		if h < hi {
			out = append(out, branch{h + 1, hi})
		}
		return out
	}

	if sr.selectOf[v] == SelectMaxValue {
		return []branch{{hi, hi}, {lo, hi - 1}}
	}
	return []branch{{lo, lo}, {lo + 1, hi}}
}

// relevant reports whether any constraint still depends on the value of v
func (sr *search) relevant(v VarID) bool {
	for _, p := range sr.st.watch[v] {
		if sr.st.props[p].cares(sr.st, v) {
			return true
		}
	}
	return false
}

func (sr *search) record() {
	sr.solutions++
	var obj int64
	if sr.hasObj {
		obj = sr.st.lo[sr.objVar] + sr.objOffset
	}
	if sr.best != nil && obj >= sr.bestObjective {
		return
	}
	sr.best = append(sr.best[:0], sr.st.lo[:len(sr.model.vars)]...)
	sr.bestObjective = obj
	if !sr.hasObj {
		sr.proved = true
		return
	}
	sr.objUpper = obj - sr.objOffset - 1
	if sr.objUpper < sr.rootBound-sr.objOffset {
		sr.proved = true
	}
}

// expressionRange returns the extreme values of Σ terms over the declared domains
func expressionRange(vars []variable, terms []Term) (lo, hi int64) {
	for _, t := range terms {
		v := vars[t.Var]
		if t.Coef > 0 {
			lo += t.Coef * v.lo
			hi += t.Coef * v.hi
		} else {
			lo += t.Coef * v.hi
			hi += t.Coef * v.lo
		}
	}
	return lo, hi
}

func (r *Response) String() string {
	return fmt.Sprintf("status=%s objective=%d bound=%d nodes=%d failures=%d solutions=%d wall=%s",
		r.Status, r.Objective, r.BestBound, r.Stats.Nodes, r.Stats.Failures, r.Stats.Solutions, r.Stats.WallTime)
}
