package cmd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mesplatform/schedopt/pkg/models"
)

const dueDateLayout = "2006-01-02"

// PlanFile is the YAML input accepted by optimize and import
type PlanFile struct {
	Jobs     []PlanJob     `yaml:"jobs"`
	Machines []PlanMachine `yaml:"machines"`
}

type PlanJob struct {
	ID       string `yaml:"id"`
	ItemCode string `yaml:"item_code"`
	Quantity int    `yaml:"quantity"`
	DueDate  string `yaml:"due_date"`
	Priority string `yaml:"priority"`
}

type PlanMachine struct {
	ID                string  `yaml:"id"`
	Name              string  `yaml:"name"`
	CapacityPerPeriod float64 `yaml:"capacity_per_period"`
	Available         *bool   `yaml:"available"` // defaults to true
}

// LoadPlan reads and converts a plan file
func LoadPlan(path string) ([]models.Job, []models.Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan converts YAML plan data into optimizer inputs, keeping file order
func ParsePlan(data []byte) ([]models.Job, []models.Machine, error) {
	var pf PlanFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	jobs := make([]models.Job, 0, len(pf.Jobs))
	for _, j := range pf.Jobs {
		var due time.Time
		if j.DueDate != "" {
			d, err := time.Parse(dueDateLayout, j.DueDate)
			if err != nil {
				return nil, nil, fmt.Errorf("job %s: invalid due_date %q (want YYYY-MM-DD)", j.ID, j.DueDate)
			}
			due = d
		}
		jobs = append(jobs, models.Job{
			ID:       j.ID,
			ItemCode: j.ItemCode,
			Quantity: j.Quantity,
			DueDate:  due,
			Priority: models.ParsePriority(j.Priority),
		})
	}

	machines := make([]models.Machine, 0, len(pf.Machines))
	for _, m := range pf.Machines {
		available := true
		if m.Available != nil {
			available = *m.Available
		}
		machines = append(machines, models.Machine{
			ID:                m.ID,
			Name:              m.Name,
			CapacityPerPeriod: m.CapacityPerPeriod,
			Available:         available,
		})
	}
	return jobs, machines, nil
}
