package scheduler

import (
	"math"

	"github.com/mesplatform/schedopt/pkg/models"
)

// MinutesPerPeriod converts a units/hour capacity into units/minute
const MinutesPerPeriod = 60

// JobDuration returns the processing minutes of quantity units on a machine
// rated at capacityPerPeriod units/hour. The per-minute rate is clamped to at
// least 1 unit/min, so slow, idle-rated or zero-capacity machines are treated
// as 1 unit/min rather than stretching durations without bound. Any positive
// quantity takes at least one minute.
func JobDuration(quantity int, capacityPerPeriod float64) int {
	if quantity <= 0 {
		return 0
	}
	rate := capacityPerPeriod / MinutesPerPeriod
	if !(rate > 1) { // also catches NaN
		rate = 1
	}
	q := float64(quantity) / rate
	// relative tolerance keeps exact quotients from rounding up on float noise
	minutes := int(math.Ceil(q * (1 - 1e-12)))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// Durations is the duration table for one problem: job ID -> machine ID -> minutes
type Durations map[string]map[string]int

// ComputeDurations builds the table for every (job, machine) pair
func ComputeDurations(jobs []models.Job, machines []models.Machine) Durations {
	d := make(Durations, len(jobs))
	for _, job := range jobs {
		row := make(map[string]int, len(machines))
		for _, m := range machines {
			row[m.ID] = JobDuration(job.Quantity, m.CapacityPerPeriod)
		}
		d[job.ID] = row
	}
	return d
}

// Get returns the duration of jobID on machineID
func (d Durations) Get(jobID, machineID string) (int, bool) {
	row, ok := d[jobID]
	if !ok {
		return 0, false
	}
	v, ok := row[machineID]
	return v, ok
}

// Max returns the longest duration of jobID over all machines
func (d Durations) Max(jobID string) int {
	best := 0
	for _, v := range d[jobID] {
		if v > best {
			best = v
		}
	}
	return best
}

// Min returns the shortest duration of jobID over all machines
func (d Durations) Min(jobID string) int {
	best := -1
	for _, v := range d[jobID] {
		if best < 0 || v < best {
			best = v
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// Horizon returns Σ over jobs of the longest duration, an upper bound on any
// sensible makespan
func (d Durations) Horizon(jobs []models.Job) int {
	h := 0
	for _, j := range jobs {
		h += d.Max(j.ID)
	}
	return h
}
