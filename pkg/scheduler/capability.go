package scheduler

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Capability describes whether this process can run the exact solver. It is
// probed once at start-up and handed to the optimizer.
type Capability struct {
	Available   bool
	LogicalCPUs int
	FreeMemory  uint64 // bytes, 0 when unknown
	Reason      string // why the exact solver is unavailable
}

// Rough per-element footprint of a model inside the solver
const (
	bytesPerVariable   = 64
	bytesPerConstraint = 160
)

// ProbeCapability inspects the host and reports whether the exact solver can
// run with at least minFreeMemory bytes available
func ProbeCapability(minFreeMemory uint64) Capability {
	c := Capability{Available: true}

	cpus, err := cpu.Counts(true)
	if err != nil || cpus < 1 {
		c.Available = false
		c.Reason = fmt.Sprintf("cannot determine CPU count: %v", err)
		return c
	}
	c.LogicalCPUs = cpus

	vmem, err := mem.VirtualMemory()
	if err != nil {
		// memory is informational only; the exact path still runs
		return c
	}
	c.FreeMemory = vmem.Available
	if minFreeMemory > 0 && vmem.Available < minFreeMemory {
		c.Available = false
		c.Reason = fmt.Sprintf("only %d MB free, need %d MB", vmem.Available>>20, minFreeMemory>>20)
	}
	return c
}

// StaticCapability returns a fixed capability, for tests and for disabling the
// exact path from configuration
func StaticCapability(available bool, reason string) Capability {
	return Capability{Available: available, Reason: reason}
}

// ModelSize estimates the variable and constraint counts of the exact model
func ModelSize(jobs, machines int) (variables, constraints int) {
	pairs := jobs * (jobs - 1) / 2 * machines
	variables = jobs*(2+machines) + 2*pairs + 1
	constraints = jobs*(machines+2) + 5*pairs + jobs + 1
	return variables, constraints
}

// Fits reports whether the exact model for the given problem size fits in a
// quarter of the free memory. Unknown free memory always fits.
func (c Capability) Fits(jobs, machines int) (bool, string) {
	if c.FreeMemory == 0 {
		return true, ""
	}
	vars, cons := ModelSize(jobs, machines)
	need := uint64(vars)*bytesPerVariable + uint64(cons)*bytesPerConstraint
	if need > c.FreeMemory/4 {
		return false, fmt.Sprintf("model with %d variables and %d constraints needs ~%d KB, %d KB free",
			vars, cons, need>>10, c.FreeMemory>>10)
	}
	return true, ""
}
