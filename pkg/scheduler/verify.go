package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/mesplatform/schedopt/pkg/models"
)

// Verify checks a result against every structural invariant of a schedule:
// each job placed exactly once on an available machine, durations that match
// the duration table, no overlap on any machine, and makespan and
// utilization that agree with the entries. Violations wrap ErrInconsistentSolution.
func Verify(res *models.ScheduleResult, p *Problem) error {
	if res == nil {
		return fmt.Errorf("%w: nil result", ErrInconsistentSolution)
	}
	if len(res.Entries) != len(p.Jobs) {
		return fmt.Errorf("%w: %d entries for %d jobs", ErrInconsistentSolution, len(res.Entries), len(p.Jobs))
	}

	jobs := make(map[string]bool, len(p.Jobs))
	for _, j := range p.Jobs {
		jobs[j.ID] = true
	}
	machines := make(map[string]bool, len(p.Machines))
	for _, m := range p.Machines {
		machines[m.ID] = true
	}

	placed := make(map[string]bool, len(res.Entries))
	byMachine := make(map[string][]models.ScheduleEntry)
	makespan, busy := 0, 0
	for _, e := range res.Entries {
		if !jobs[e.JobID] {
			return fmt.Errorf("%w: unknown job %s", ErrInconsistentSolution, e.JobID)
		}
		if placed[e.JobID] {
			return fmt.Errorf("%w: job %s scheduled twice", ErrInconsistentSolution, e.JobID)
		}
		placed[e.JobID] = true
		if !machines[e.MachineID] {
			return fmt.Errorf("%w: job %s on unavailable machine %s", ErrInconsistentSolution, e.JobID, e.MachineID)
		}
		if e.StartMin < 0 {
			return fmt.Errorf("%w: job %s starts at %d", ErrInconsistentSolution, e.JobID, e.StartMin)
		}
		if e.EndMin <= e.StartMin {
			return fmt.Errorf("%w: job %s ends at %d, not after its start %d",
				ErrInconsistentSolution, e.JobID, e.EndMin, e.StartMin)
		}
		d, _ := p.Durations.Get(e.JobID, e.MachineID)
		if e.Duration() != d {
			return fmt.Errorf("%w: job %s on %s lasts %d minutes, expected %d",
				ErrInconsistentSolution, e.JobID, e.MachineID, e.Duration(), d)
		}
		byMachine[e.MachineID] = append(byMachine[e.MachineID], e)
		if e.EndMin > makespan {
			makespan = e.EndMin
		}
		busy += e.Duration()
	}

	for id, entries := range byMachine {
		sort.Slice(entries, func(a, b int) bool { return entries[a].StartMin < entries[b].StartMin })
		for i := 1; i < len(entries); i++ {
			if entries[i].StartMin < entries[i-1].EndMin {
				return fmt.Errorf("%w: jobs %s and %s overlap on %s",
					ErrInconsistentSolution, entries[i-1].JobID, entries[i].JobID, id)
			}
		}
	}

	if res.MakespanMin != makespan {
		return fmt.Errorf("%w: makespan %d, entries end at %d", ErrInconsistentSolution, res.MakespanMin, makespan)
	}
	want := 0.0
	if makespan > 0 {
		want = float64(busy) / float64(makespan*len(p.Machines))
	}
	if math.Abs(res.Utilization-want) > 1e-9 {
		return fmt.Errorf("%w: utilization %f, expected %f", ErrInconsistentSolution, res.Utilization, want)
	}
	return nil
}
