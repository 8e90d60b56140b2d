package models

// Machine is a piece of equipment that can process any job at its own rate
type Machine struct {
	ID                string  `json:"id" yaml:"id"`
	Name              string  `json:"name" yaml:"name"`
	CapacityPerPeriod float64 `json:"capacity_per_period" yaml:"capacity_per_period"` // units/hour
	Available         bool    `json:"available" yaml:"available"`
}

// AvailableMachines returns the machines with Available set, keeping input order
func AvailableMachines(machines []Machine) []Machine {
	available := make([]Machine, 0, len(machines))
	for _, m := range machines {
		if m.Available {
			available = append(available, m)
		}
	}
	return available
}
