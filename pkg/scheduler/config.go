package scheduler

import (
	"fmt"
	"time"

	"github.com/mesplatform/schedopt/pkg/models"
)

// SchedulerConfig holds optimizer configuration
type SchedulerConfig struct {
	TimeBudget      time.Duration             // Wall-clock cap on one exact solve
	MakespanWeight  int64                     // Objective weight of the makespan term
	PriorityWeights map[models.Priority]int64 // Objective weight of each job's end time
	ExactEnabled    bool                      // Try the exact solver before the greedy scheduler
	MaxExactJobs    int                       // Larger problems go straight to the greedy scheduler; 0 means no limit
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		TimeBudget:     5 * time.Second,
		MakespanWeight: 10,
		PriorityWeights: map[models.Priority]int64{
			models.PriorityHigh: GetPriorityWeight(models.PriorityHigh),
			models.PriorityMid:  GetPriorityWeight(models.PriorityMid),
			models.PriorityLow:  GetPriorityWeight(models.PriorityLow),
		},
		ExactEnabled: true,
		MaxExactJobs: 40,
	}
}

// PriorityWeight returns the configured weight for p, falling back to the default
func (c *SchedulerConfig) PriorityWeight(p models.Priority) int64 {
	p = models.ParsePriority(string(p))
	if w, ok := c.PriorityWeights[p]; ok {
		return w
	}
	return GetPriorityWeight(p)
}

// Validate checks the configuration for values the optimizer cannot use
func (c *SchedulerConfig) Validate() error {
	if c.TimeBudget <= 0 {
		return fmt.Errorf("time budget must be positive, got %v", c.TimeBudget)
	}
	if c.MakespanWeight < 0 {
		return fmt.Errorf("makespan weight must not be negative, got %d", c.MakespanWeight)
	}
	for p, w := range c.PriorityWeights {
		if w < 0 {
			return fmt.Errorf("priority weight for %s must not be negative, got %d", p, w)
		}
	}
	if c.MaxExactJobs < 0 {
		return fmt.Errorf("max exact jobs must not be negative, got %d", c.MaxExactJobs)
	}
	return nil
}
