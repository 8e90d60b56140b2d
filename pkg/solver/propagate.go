package solver

// litState is the current truth value of a literal
type litState int8

const (
	litUnknown litState = iota
	litTrue
	litFalse
)

type trailEntry struct {
	v      VarID
	lo, hi int64
}

// propagator narrows variable bounds; it returns false on conflict
type propagator interface {
	propagate(s *state) bool
	vars() []VarID
	// cares reports whether the value of v can still matter to the constraint
	cares(s *state, v VarID) bool
}

// state holds the current domains and the propagation queue of one search
type state struct {
	lo, hi  []int64
	trail   []trailEntry
	props   []propagator
	watch   [][]int
	queue   []int
	queued  []bool
	boolean []bool
}

func newState(m *Model) *state {
	s := &state{
		lo:      make([]int64, len(m.vars)),
		hi:      make([]int64, len(m.vars)),
		watch:   make([][]int, len(m.vars)),
		boolean: make([]bool, len(m.vars)),
	}
	for i, v := range m.vars {
		s.lo[i], s.hi[i] = v.lo, v.hi
		s.boolean[i] = v.boolean
	}
	return s
}

func (s *state) addPropagator(p propagator) int {
	idx := len(s.props)
	s.props = append(s.props, p)
	s.queued = append(s.queued, false)
	seen := make(map[VarID]bool)
	for _, v := range p.vars() {
		if seen[v] {
			continue
		}
		seen[v] = true
		s.watch[v] = append(s.watch[v], idx)
	}
	return idx
}

func (s *state) fixed(v VarID) bool {
	return s.lo[v] == s.hi[v]
}

func (s *state) lit(l Literal) litState {
	if !s.fixed(l.Var) {
		return litUnknown
	}
	if (s.lo[l.Var] == 1) != l.Neg {
		return litTrue
	}
	return litFalse
}

func (s *state) setLit(l Literal, value bool) bool {
	if value != l.Neg {
		return s.setLo(l.Var, 1)
	}
	return s.setHi(l.Var, 0)
}

func (s *state) setLo(v VarID, value int64) bool {
	if value <= s.lo[v] {
		return true
	}
	if value > s.hi[v] {
		return false
	}
	s.trail = append(s.trail, trailEntry{v: v, lo: s.lo[v], hi: s.hi[v]})
	s.lo[v] = value
	s.touch(v)
	return true
}

func (s *state) setHi(v VarID, value int64) bool {
	if value >= s.hi[v] {
		return true
	}
	if value < s.lo[v] {
		return false
	}
	s.trail = append(s.trail, trailEntry{v: v, lo: s.lo[v], hi: s.hi[v]})
	s.hi[v] = value
	s.touch(v)
	return true
}

func (s *state) touch(v VarID) {
	for _, p := range s.watch[v] {
		s.enqueue(p)
	}
}

func (s *state) enqueue(p int) {
	if !s.queued[p] {
		s.queued[p] = true
		s.queue = append(s.queue, p)
	}
}

func (s *state) enqueueAll() {
	for i := range s.props {
		s.enqueue(i)
	}
}

// propagate runs queued propagators to a fixpoint
func (s *state) propagate() bool {
	for len(s.queue) > 0 {
		p := s.queue[0]
		s.queue = s.queue[1:]
		s.queued[p] = false
		if !s.props[p].propagate(s) {
			s.clearQueue()
			return false
		}
	}
	return true
}

func (s *state) clearQueue() {
	for _, p := range s.queue {
		s.queued[p] = false
	}
	s.queue = s.queue[:0]
}

func (s *state) undo(mark int) {
	for i := len(s.trail) - 1; i >= mark; i-- {
		e := s.trail[i]
		s.lo[e.v], s.hi[e.v] = e.lo, e.hi
	}
	s.trail = s.trail[:mark]
}

// linearProp enforces lo <= Σ terms <= hi when all enforce literals hold
type linearProp struct {
	terms   []Term
	lo, hi  int64
	enforce []Literal
}

func (c *linearProp) vars() []VarID {
	vs := make([]VarID, 0, len(c.terms)+len(c.enforce))
	for _, t := range c.terms {
		vs = append(vs, t.Var)
	}
	for _, l := range c.enforce {
		vs = append(vs, l.Var)
	}
	return vs
}

func (c *linearProp) activity(s *state) (minAct, maxAct int64) {
	for _, t := range c.terms {
		if t.Coef > 0 {
			minAct += t.Coef * s.lo[t.Var]
			maxAct += t.Coef * s.hi[t.Var]
		} else {
			minAct += t.Coef * s.hi[t.Var]
			maxAct += t.Coef * s.lo[t.Var]
		}
	}
	return minAct, maxAct
}

func (c *linearProp) propagate(s *state) bool {
	unknown := -1
	for i, l := range c.enforce {
		switch s.lit(l) {
		case litFalse:
			return true
		case litUnknown:
			if unknown >= 0 {
				// two or more undecided literals: nothing to infer
				return true
			}
			unknown = i
		}
	}

	minAct, maxAct := c.activity(s)
	violated := minAct > c.hi || maxAct < c.lo
	if unknown >= 0 {
		if violated {
			return s.setLit(c.enforce[unknown], false)
		}
		return true
	}
	if violated {
		return false
	}

	for _, t := range c.terms {
		v := t.Var
		if t.Coef > 0 {
			if c.hi < Unbounded {
				if !s.setHi(v, s.lo[v]+floorDiv(c.hi-minAct, t.Coef)) {
					return false
				}
			}
			if c.lo > -Unbounded {
				if !s.setLo(v, s.hi[v]-floorDiv(maxAct-c.lo, t.Coef)) {
					return false
				}
			}
		} else {
			a := -t.Coef
			if c.hi < Unbounded {
				if !s.setLo(v, s.hi[v]-floorDiv(c.hi-minAct, a)) {
					return false
				}
			}
			if c.lo > -Unbounded {
				if !s.setHi(v, s.lo[v]+floorDiv(maxAct-c.lo, a)) {
					return false
				}
			}
		}
	}
	return true
}

func (c *linearProp) cares(s *state, v VarID) bool {
	for _, t := range c.terms {
		if t.Var == v {
			return true
		}
	}
	for _, l := range c.enforce {
		if l.Var != v && s.lit(l) == litFalse {
			return false
		}
	}
	return true
}

// clauseProp requires at least one literal to be true
type clauseProp struct {
	lits []Literal
}

func (c *clauseProp) vars() []VarID {
	return literalVars(c.lits)
}

func (c *clauseProp) propagate(s *state) bool {
	unknown := -1
	open := 0
	for i, l := range c.lits {
		switch s.lit(l) {
		case litTrue:
			return true
		case litUnknown:
			unknown = i
			open++
		}
	}
	switch open {
	case 0:
		return false
	case 1:
		return s.setLit(c.lits[unknown], true)
	}
	return true
}

func (c *clauseProp) cares(s *state, v VarID) bool {
	for _, l := range c.lits {
		if l.Var != v && s.lit(l) == litTrue {
			return false
		}
	}
	return true
}

// exactlyOneProp requires exactly one literal to be true
type exactlyOneProp struct {
	lits []Literal
}

func (c *exactlyOneProp) vars() []VarID {
	return literalVars(c.lits)
}

func (c *exactlyOneProp) propagate(s *state) bool {
	trueCount := 0
	unknown := -1
	open := 0
	for i, l := range c.lits {
		switch s.lit(l) {
		case litTrue:
			trueCount++
		case litUnknown:
			unknown = i
			open++
		}
	}
	if trueCount > 1 {
		return false
	}
	if trueCount == 1 {
		for _, l := range c.lits {
			if s.lit(l) == litUnknown && !s.setLit(l, false) {
				return false
			}
		}
		return true
	}
	switch open {
	case 0:
		return false
	case 1:
		return s.setLit(c.lits[unknown], true)
	}
	return true
}

func (c *exactlyOneProp) cares(s *state, v VarID) bool {
	return true
}

func literalVars(lits []Literal) []VarID {
	vs := make([]VarID, len(lits))
	for i, l := range lits {
		vs[i] = l.Var
	}
	return vs
}

// floorDiv divides rounding toward negative infinity; b > 0
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && (a < 0) {
		q--
	}
	return q
}
