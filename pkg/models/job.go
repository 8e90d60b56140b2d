package models

import (
	"strings"
	"time"
)

// Priority represents the business priority of a production job
type Priority string

const (
	PriorityHigh Priority = "HIGH"
	PriorityMid  Priority = "MID"
	PriorityLow  Priority = "LOW"
)

// ParsePriority normalizes a priority string. Unknown values rank as LOW.
func ParsePriority(s string) Priority {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH":
		return PriorityHigh
	case "MID", "MEDIUM":
		return PriorityMid
	default:
		return PriorityLow
	}
}

// Rank returns the ordering rank used when pre-sorting jobs (HIGH first)
func (p Priority) Rank() int {
	switch ParsePriority(string(p)) {
	case PriorityHigh:
		return 1
	case PriorityMid:
		return 2
	default:
		return 3
	}
}

// Job is a pending production plan resolved by the plan repository.
// It is never mutated by the scheduler.
type Job struct {
	ID       string    `json:"id" yaml:"id"`
	ItemCode string    `json:"item_code" yaml:"item_code"`
	Quantity int       `json:"quantity" yaml:"quantity"`
	DueDate  time.Time `json:"due_date" yaml:"-"`
	Priority Priority  `json:"priority" yaml:"priority"`
}

// JobIDs returns the IDs of jobs in order
func JobIDs(jobs []Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}
