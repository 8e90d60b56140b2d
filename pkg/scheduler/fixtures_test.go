package scheduler

import (
	"testing"
	"time"

	"github.com/mesplatform/schedopt/pkg/models"
)

func job(id string, qty int) models.Job {
	return models.Job{
		ID:       id,
		ItemCode: "ITEM-" + id,
		Quantity: qty,
		DueDate:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Priority: models.PriorityLow,
	}
}

func machine(id string, capacity float64) models.Machine {
	return models.Machine{ID: id, Name: "machine " + id, CapacityPerPeriod: capacity, Available: true}
}

func mustProblem(t *testing.T, jobs []models.Job, machines []models.Machine) *Problem {
	t.Helper()
	p, err := NewProblem(jobs, machines)
	if err != nil {
		t.Fatalf("NewProblem failed: %v", err)
	}
	return p
}

// objective evaluates the optimizer objective of a result
func objective(res *models.ScheduleResult, p *Problem, cfg *SchedulerConfig) int64 {
	priorities := make(map[string]models.Priority, len(p.Jobs))
	for _, j := range p.Jobs {
		priorities[j.ID] = j.Priority
	}
	total := cfg.MakespanWeight * int64(res.MakespanMin)
	for _, e := range res.Entries {
		total += cfg.PriorityWeight(priorities[e.JobID]) * int64(e.EndMin)
	}
	return total
}

func entryFor(t *testing.T, res *models.ScheduleResult, jobID string) models.ScheduleEntry {
	t.Helper()
	for _, e := range res.Entries {
		if e.JobID == jobID {
			return e
		}
	}
	t.Fatalf("No entry for job %s", jobID)
	return models.ScheduleEntry{}
}
