package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/solver"
)

// ExactScheduler builds a disjunctive constraint model of the problem and
// solves it with a bounded-time branch-and-bound search.
type ExactScheduler struct {
	config *SchedulerConfig
}

// NewExactScheduler creates an exact scheduler
func NewExactScheduler(config *SchedulerConfig) *ExactScheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	return &ExactScheduler{config: config}
}

// Name implements Strategy
func (e *ExactScheduler) Name() models.Strategy {
	return models.StrategyExact
}

// exactModel keeps the handles needed to read a solution back
type exactModel struct {
	model    *solver.Model
	start    []solver.VarID
	end      []solver.VarID
	assign   [][]solver.Literal // [job][machine]
	pairs    []jobPair
	makespan solver.VarID
}

// jobPair holds the sequencing literals of jobs j < l on machine i
type jobPair struct {
	j, l, i int
	both    solver.Literal
	order   solver.Literal // j runs before l
}

// Schedule implements Strategy. Recoverable failures wrap ErrSolverUnavailable,
// ErrSolverTimeout or ErrSolverInfeasible; a decoded solution that breaks the
// model wraps ErrInconsistentSolution.
func (e *ExactScheduler) Schedule(ctx context.Context, p *Problem) (res *models.ScheduleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: solver panic: %v", ErrSolverUnavailable, r)
		}
	}()

	em := buildExactModel(p, e.config)
	addGreedyHint(em, p)

	resp, err := solver.NewSolver(e.config.TimeBudget).Solve(ctx, em.model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolverUnavailable, err)
	}

	var status models.SolverStatus
	switch resp.Status {
	case solver.StatusOptimal:
		status = models.StatusOptimal
	case solver.StatusFeasible:
		status = models.StatusFeasible
	case solver.StatusInfeasible:
		return nil, ErrSolverInfeasible
	case solver.StatusUnknown:
		return nil, fmt.Errorf("%w (%s)", ErrSolverTimeout, e.config.TimeBudget)
	default:
		return nil, fmt.Errorf("%w: solver status %s", ErrSolverUnavailable, resp.Status)
	}

	entries, err := decodeSolution(em, p, resp)
	if err != nil {
		return nil, err
	}

	res = Finalize(entries, p.Machines, models.StrategyExact, status)
	res.Objective = resp.Objective
	res.SolverNodes = resp.Stats.Nodes
	return res, nil
}

func buildExactModel(p *Problem, cfg *SchedulerConfig) *exactModel {
	m := solver.NewModel()
	n, k := len(p.Jobs), len(p.Machines)
	horizon := int64(p.Durations.Horizon(p.Jobs))

	em := &exactModel{
		model:  m,
		start:  make([]solver.VarID, n),
		end:    make([]solver.VarID, n),
		assign: make([][]solver.Literal, n),
	}

	for j, job := range p.Jobs {
		em.start[j] = m.NewIntVar(0, horizon, "start_"+job.ID)
		em.end[j] = m.NewIntVar(0, horizon, "end_"+job.ID)
		em.assign[j] = make([]solver.Literal, k)

		for i, mc := range p.Machines {
			a := m.NewBoolVar("assign_" + job.ID + "_" + mc.ID)
			em.assign[j][i] = a
			d, _ := p.Durations.Get(job.ID, mc.ID)
			m.AddEquality(span(em, j), int64(d)).OnlyEnforceIf(a)
		}
		m.AddExactlyOne(em.assign[j]...)

		// implied by the assignment; tightens the bounds before any machine is chosen
		m.AddLinear(span(em, j), int64(p.Durations.Min(job.ID)), int64(p.Durations.Max(job.ID)))
	}

	for j := 0; j < n; j++ {
		for l := j + 1; l < n; l++ {
			for i := 0; i < k; i++ {
				aj, al := em.assign[j][i], em.assign[l][i]
				both := m.NewBoolVar(fmt.Sprintf("both_%d_%d_%d", j, l, i))
				m.AddImplication(both, aj)
				m.AddImplication(both, al)
				m.AddBoolOr(aj.Not(), al.Not(), both)

				order := m.NewBoolVar(fmt.Sprintf("order_%d_%d_%d", j, l, i))
				m.AddLessOrEqual(solver.NewExpr().Add(em.end[j], 1).Add(em.start[l], -1), 0).
					OnlyEnforceIf(both, order)
				m.AddLessOrEqual(solver.NewExpr().Add(em.end[l], 1).Add(em.start[j], -1), 0).
					OnlyEnforceIf(both, order.Not())

				em.pairs = append(em.pairs, jobPair{j: j, l: l, i: i, both: both, order: order})
			}
		}
	}

	em.makespan = m.NewIntVar(0, horizon, "makespan")
	capacity := solver.NewExpr().Add(em.makespan, int64(k))
	for j := range p.Jobs {
		m.AddGreaterOrEqual(solver.NewExpr().Add(em.makespan, 1).Add(em.end[j], -1), 0)
		capacity.Add(em.end[j], -1).Add(em.start[j], 1)
	}
	m.AddGreaterOrEqual(capacity, 0)

	objective := solver.NewExpr().Add(em.makespan, cfg.MakespanWeight)
	for j, job := range p.Jobs {
		objective.Add(em.end[j], cfg.PriorityWeight(job.Priority))
	}
	m.Minimize(objective)

	// machines first, then sequencing, then left-justified start times
	var assignVars, orderVars, startVars []solver.VarID
	for j := range p.Jobs {
		for _, a := range em.assign[j] {
			assignVars = append(assignVars, a.Var)
		}
		startVars = append(startVars, em.start[j])
	}
	for _, pr := range em.pairs {
		orderVars = append(orderVars, pr.order.Var)
	}
	m.AddDecisionStrategy(assignVars, solver.SelectMaxValue)
	m.AddDecisionStrategy(orderVars, solver.SelectMaxValue)
	m.AddDecisionStrategy(startVars, solver.SelectMinValue)
	m.AddDecisionStrategy([]solver.VarID{em.makespan}, solver.SelectMinValue)

	return em
}

// span is end_j - start_j
func span(em *exactModel, j int) *solver.LinearExpr {
	return solver.NewExpr().Add(em.end[j], 1).Add(em.start[j], -1)
}

// addGreedyHint seeds the search with the greedy schedule so the first dive
// yields a feasible incumbent
func addGreedyHint(em *exactModel, p *Problem) {
	entries := greedyEntries(p)
	machineIndex := make(map[string]int, len(p.Machines))
	for i, mc := range p.Machines {
		machineIndex[mc.ID] = i
	}

	placed := make([]int, len(p.Jobs))
	makespan := 0
	for j, e := range entries {
		placed[j] = machineIndex[e.MachineID]
		em.model.AddHint(em.start[j], int64(e.StartMin))
		em.model.AddHint(em.end[j], int64(e.EndMin))
		for i, a := range em.assign[j] {
			em.model.AddHint(a.Var, boolValue(i == placed[j]))
		}
		if e.EndMin > makespan {
			makespan = e.EndMin
		}
	}
	for _, pr := range em.pairs {
		shared := placed[pr.j] == pr.i && placed[pr.l] == pr.i
		em.model.AddHint(pr.both.Var, boolValue(shared))
		if shared {
			em.model.AddHint(pr.order.Var, boolValue(entries[pr.j].StartMin < entries[pr.l].StartMin))
		}
	}
	em.model.AddHint(em.makespan, int64(makespan))
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// decodeSolution reads the chosen machine and times of every job back out of
// the solver response and numbers entries by start time
func decodeSolution(em *exactModel, p *Problem, resp *solver.Response) ([]models.ScheduleEntry, error) {
	entries := make([]models.ScheduleEntry, len(p.Jobs))
	for j, job := range p.Jobs {
		chosen := -1
		for i, a := range em.assign[j] {
			if !resp.BoolValue(a) {
				continue
			}
			if chosen >= 0 {
				return nil, fmt.Errorf("%w: job %s assigned to more than one machine", ErrInconsistentSolution, job.ID)
			}
			chosen = i
		}
		if chosen < 0 {
			return nil, fmt.Errorf("%w: job %s assigned to no machine", ErrInconsistentSolution, job.ID)
		}

		mc := p.Machines[chosen]
		start, end := int(resp.Value(em.start[j])), int(resp.Value(em.end[j]))
		if d, _ := p.Durations.Get(job.ID, mc.ID); end-start != d {
			return nil, fmt.Errorf("%w: job %s on %s spans %d minutes, expected %d",
				ErrInconsistentSolution, job.ID, mc.ID, end-start, d)
		}
		entries[j] = models.ScheduleEntry{
			JobID:     job.ID,
			MachineID: mc.ID,
			StartMin:  start,
			EndMin:    end,
		}
	}

	order := make([]int, len(entries))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entries[order[a]].StartMin < entries[order[b]].StartMin
	})
	for seq, j := range order {
		entries[j].Sequence = seq + 1
	}
	return entries, nil
}
