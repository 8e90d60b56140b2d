package scheduler

import (
	"github.com/mesplatform/schedopt/pkg/models"
)

// Problem is the validated snapshot one scheduling call works on
type Problem struct {
	Jobs      []models.Job     // in the order they will be consumed
	Machines  []models.Machine // available machines only, input order
	Durations Durations
}

// NewProblem validates the inputs and computes the duration table
func NewProblem(jobs []models.Job, machines []models.Machine) (*Problem, error) {
	if len(jobs) == 0 {
		return nil, inputErrorf("no job_ids provided")
	}
	available := models.AvailableMachines(machines)
	if len(available) == 0 {
		return nil, inputErrorf("no machines available")
	}

	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if j.ID == "" {
			return nil, inputErrorf("job with empty id")
		}
		if seen[j.ID] {
			return nil, inputErrorf("duplicate job id %s", j.ID)
		}
		seen[j.ID] = true
		if j.Quantity <= 0 {
			return nil, inputErrorf("job %s has non-positive quantity %d", j.ID, j.Quantity)
		}
	}

	machineSeen := make(map[string]bool, len(available))
	for _, m := range available {
		if machineSeen[m.ID] {
			return nil, inputErrorf("duplicate machine id %s", m.ID)
		}
		machineSeen[m.ID] = true
	}

	jobsCopy := make([]models.Job, len(jobs))
	copy(jobsCopy, jobs)
	return &Problem{
		Jobs:      jobsCopy,
		Machines:  available,
		Durations: ComputeDurations(jobsCopy, available),
	}, nil
}
