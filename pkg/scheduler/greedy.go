package scheduler

import (
	"context"

	"github.com/mesplatform/schedopt/pkg/models"
)

// GreedyScheduler is deterministic list scheduling: each job, in the order
// given, goes to the machine that frees up first.
type GreedyScheduler struct{}

// NewGreedyScheduler creates a greedy scheduler
func NewGreedyScheduler() *GreedyScheduler {
	return &GreedyScheduler{}
}

// Name implements Strategy
func (g *GreedyScheduler) Name() models.Strategy {
	return models.StrategyHeuristic
}

// Schedule implements Strategy. It never fails on a valid problem.
func (g *GreedyScheduler) Schedule(ctx context.Context, p *Problem) (*models.ScheduleResult, error) {
	if len(p.Jobs) == 0 {
		return nil, inputErrorf("no job_ids provided")
	}
	if len(p.Machines) == 0 {
		return nil, inputErrorf("no machines available")
	}
	return Finalize(greedyEntries(p), p.Machines, models.StrategyHeuristic, models.StatusHeuristic), nil
}

// greedyEntries assigns jobs in order. The machine choice looks only at the
// current load, not at how fast the machine would process this job.
func greedyEntries(p *Problem) []models.ScheduleEntry {
	load := make([]int, len(p.Machines))
	entries := make([]models.ScheduleEntry, 0, len(p.Jobs))

	for seq, job := range p.Jobs {
		best := 0
		for i := 1; i < len(p.Machines); i++ {
			if load[i] < load[best] {
				best = i
			}
		}
		m := p.Machines[best]
		d, _ := p.Durations.Get(job.ID, m.ID)

		start := load[best]
		load[best] = start + d
		entries = append(entries, models.ScheduleEntry{
			JobID:     job.ID,
			MachineID: m.ID,
			StartMin:  start,
			EndMin:    start + d,
			Sequence:  seq + 1,
		})
	}
	return entries
}
