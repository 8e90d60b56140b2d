package models

import (
	"math"
	"time"
)

// Strategy identifies which scheduling path produced a result
type Strategy string

const (
	StrategyExact     Strategy = "EXACT"
	StrategyHeuristic Strategy = "HEURISTIC"
)

// SolverStatus communicates the quality of a result, never a failure
type SolverStatus string

const (
	StatusOptimal   SolverStatus = "OPTIMAL"
	StatusFeasible  SolverStatus = "FEASIBLE"
	StatusHeuristic SolverStatus = "HEURISTIC"
)

// ScheduleEntry places one job on one machine
type ScheduleEntry struct {
	JobID     string `json:"job_id"`
	MachineID string `json:"machine_id"`
	StartMin  int    `json:"start_min"`
	EndMin    int    `json:"end_min"`
	Sequence  int    `json:"seq"`
}

// Duration returns the processing time of the entry in minutes
func (e ScheduleEntry) Duration() int {
	return e.EndMin - e.StartMin
}

// MachineLoad summarizes the work placed on one machine
type MachineLoad struct {
	MachineID string `json:"machine_id"`
	BusyMin   int    `json:"busy_min"`
	Jobs      int    `json:"jobs"`
}

// ScheduleResult is the outcome of one scheduling call
type ScheduleResult struct {
	Entries     []ScheduleEntry
	MakespanMin int
	Utilization float64
	Strategy    Strategy
	Status      SolverStatus

	// Diagnostics, not part of the response contract
	RunID          string
	Objective      int64
	SolveTime      time.Duration
	FallbackReason string
	SolverNodes    int64
	MachineLoads   []MachineLoad
}

// ResponseEntry is one row of the response schedule
type ResponseEntry struct {
	JobID       string `json:"job_id" yaml:"job_id"`
	MachineID   string `json:"machine_id" yaml:"machine_id"`
	StartMin    int    `json:"start_min" yaml:"start_min"`
	EndMin      int    `json:"end_min" yaml:"end_min"`
	DurationMin int    `json:"duration_min" yaml:"duration_min"`
	Seq         int    `json:"seq" yaml:"seq"`
}

// Response is the external output contract of the optimizer
type Response struct {
	Solver      Strategy        `json:"solver" yaml:"solver"`
	Status      SolverStatus    `json:"status" yaml:"status"`
	Schedule    []ResponseEntry `json:"schedule" yaml:"schedule"`
	Makespan    int             `json:"makespan" yaml:"makespan"`
	Utilization float64         `json:"utilization" yaml:"utilization"`
}

// NewResponse shapes a result into the response contract
func NewResponse(r *ScheduleResult) Response {
	resp := Response{
		Solver:      r.Strategy,
		Status:      r.Status,
		Schedule:    make([]ResponseEntry, 0, len(r.Entries)),
		Makespan:    r.MakespanMin,
		Utilization: math.Round(r.Utilization*100) / 100,
	}
	for _, e := range r.Entries {
		resp.Schedule = append(resp.Schedule, ResponseEntry{
			JobID:       e.JobID,
			MachineID:   e.MachineID,
			StartMin:    e.StartMin,
			EndMin:      e.EndMin,
			DurationMin: e.Duration(),
			Seq:         e.Sequence,
		})
	}
	return resp
}
