package scheduler

import (
	"sort"

	"github.com/mesplatform/schedopt/pkg/models"
)

// GetPriorityWeight returns the default objective weight for a priority level
func GetPriorityWeight(priority models.Priority) int64 {
	switch models.ParsePriority(string(priority)) {
	case models.PriorityHigh:
		return 3
	case models.PriorityMid:
		return 2
	default:
		return 1
	}
}

// SortJobs returns a copy of jobs ordered by due date, then priority (HIGH
// first), keeping input order among equals. The optimizer consumes jobs in the
// order it is given; callers that resolve jobs from a store apply this first.
func SortJobs(jobs []models.Job) []models.Job {
	sorted := make([]models.Job, len(jobs))
	copy(sorted, jobs)

	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(sorted[j].DueDate) {
			return sorted[i].DueDate.Before(sorted[j].DueDate)
		}
		return sorted[i].Priority.Rank() < sorted[j].Priority.Rank()
	})
	return sorted
}
