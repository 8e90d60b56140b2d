package scheduler

import (
	"sort"

	"github.com/mesplatform/schedopt/pkg/models"
)

// Finalize turns raw entries into a result. Both strategies go through it so
// that makespan and utilization are computed one way.
func Finalize(entries []models.ScheduleEntry, machines []models.Machine, strategy models.Strategy, status models.SolverStatus) *models.ScheduleResult {
	sorted := make([]models.ScheduleEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})

	busy := make(map[string]int, len(machines))
	count := make(map[string]int, len(machines))
	makespan, totalBusy := 0, 0
	for _, e := range sorted {
		if e.EndMin > makespan {
			makespan = e.EndMin
		}
		busy[e.MachineID] += e.Duration()
		count[e.MachineID]++
		totalBusy += e.Duration()
	}

	utilization := 0.0
	if makespan > 0 && len(machines) > 0 {
		utilization = float64(totalBusy) / float64(makespan*len(machines))
	}

	loads := make([]models.MachineLoad, 0, len(machines))
	for _, m := range machines {
		loads = append(loads, models.MachineLoad{
			MachineID: m.ID,
			BusyMin:   busy[m.ID],
			Jobs:      count[m.ID],
		})
	}

	return &models.ScheduleResult{
		Entries:      sorted,
		MakespanMin:  makespan,
		Utilization:  utilization,
		Strategy:     strategy,
		Status:       status,
		MachineLoads: loads,
	}
}
