package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesplatform/schedopt/pkg/scheduler"
)

var (
	probeJobs     int
	probeMachines int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report whether the exact solver can run on this host",
	Long: `Probes CPU and free memory the way serve does at startup and, with
--jobs/--machines, estimates whether a problem of that size fits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		capability := scheduler.ProbeCapability(appConfig.MinFreeMemory())
		return renderCapability(cmd.OutOrStdout(), capability, probeJobs, probeMachines, outputFormat)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeJobs, "jobs", 0, "job count to size the exact model for")
	probeCmd.Flags().IntVar(&probeMachines, "machines", 0, "machine count to size the exact model for")
}

type probeReport struct {
	Available   bool   `json:"available" yaml:"available"`
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	LogicalCPUs int    `json:"logical_cpus" yaml:"logical_cpus"`
	FreeMemory  uint64 `json:"free_memory_bytes" yaml:"free_memory_bytes"`
	OS          string `json:"os" yaml:"os"`
	Arch        string `json:"arch" yaml:"arch"`

	Variables   int    `json:"model_variables,omitempty" yaml:"model_variables,omitempty"`
	Constraints int    `json:"model_constraints,omitempty" yaml:"model_constraints,omitempty"`
	Fits        *bool  `json:"fits,omitempty" yaml:"fits,omitempty"`
	FitReason   string `json:"fit_reason,omitempty" yaml:"fit_reason,omitempty"`
}

func renderCapability(w io.Writer, c scheduler.Capability, jobs, machines int, format string) error {
	report := probeReport{
		Available:   c.Available,
		Reason:      c.Reason,
		LogicalCPUs: c.LogicalCPUs,
		FreeMemory:  c.FreeMemory,
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
	}
	if jobs > 0 && machines > 0 {
		report.Variables, report.Constraints = scheduler.ModelSize(jobs, machines)
		fits, reason := c.Fits(jobs, machines)
		report.Fits = &fits
		report.FitReason = reason
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		return yaml.NewEncoder(w).Encode(report)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append("Exact solver", fmt.Sprintf("%v", report.Available))
	if report.Reason != "" {
		table.Append("Reason", report.Reason)
	}
	table.Append("Logical CPUs", fmt.Sprintf("%d", report.LogicalCPUs))
	table.Append("Free memory", formatBytes(report.FreeMemory))
	table.Append("Platform", report.OS+"/"+report.Arch)
	if report.Fits != nil {
		table.Append("Model size", fmt.Sprintf("%d vars, %d constraints", report.Variables, report.Constraints))
		table.Append("Fits", fmt.Sprintf("%v", *report.Fits))
		if report.FitReason != "" {
			table.Append("Fit reason", report.FitReason)
		}
	}
	table.Render()
	return nil
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "unknown"
	}
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
