package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/metrics"
	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/scheduler"
)

var (
	optimizeInput        string
	optimizeJobIDs       []string
	optimizePrintMetrics bool
	optimizeNoExact      bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compute a schedule",
	Long: `Schedules plans from a YAML plan file (--input) or from the configured
plan store (--job-ids, or every pending plan when omitted).

Examples:
  schedopt optimize --input plan.yaml
  schedopt optimize --job-ids P-001,P-002 -o json`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVarP(&optimizeInput, "input", "i", "", "plan file (YAML)")
	optimizeCmd.Flags().StringSliceVar(&optimizeJobIDs, "job-ids", nil, "plan IDs to schedule from the store")
	optimizeCmd.Flags().BoolVar(&optimizePrintMetrics, "print-metrics", false, "print Prometheus metrics after the run")
	optimizeCmd.Flags().BoolVar(&optimizeNoExact, "heuristic-only", false, "skip the exact solver")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(appConfig)
	defer logger.Close()

	jobs, machines, err := loadInputs(ctx, logger)
	if err != nil {
		return err
	}

	tracer, err := newTracer(appConfig)
	if err != nil {
		return err
	}
	defer tracer.Shutdown(context.Background())

	schedCfg := appConfig.SchedulerConfig()
	if optimizeNoExact {
		schedCfg.ExactEnabled = false
	}

	m := metrics.New()
	optimizer := scheduler.NewOptimizer(schedCfg, scheduler.ProbeCapability(appConfig.MinFreeMemory()),
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(m),
		scheduler.WithTracer(tracer),
	)

	res, err := optimizer.Optimize(ctx, scheduler.SortJobs(jobs), machines)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := renderResult(out, res, outputFormat); err != nil {
		return err
	}
	if optimizePrintMetrics {
		fmt.Fprintln(out)
		return m.WriteText(out)
	}
	return nil
}

func loadInputs(ctx context.Context, logger *logging.Logger) ([]models.Job, []models.Machine, error) {
	if optimizeInput != "" {
		return LoadPlan(optimizeInput)
	}

	s, err := openStore(ctx, appConfig, logger)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	ids := optimizeJobIDs
	if len(ids) == 0 {
		if ids, err = s.PendingJobIDs(ctx); err != nil {
			return nil, nil, err
		}
	}
	jobs, err := s.GetJobs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	machines, err := s.ListMachines(ctx)
	if err != nil {
		return nil, nil, err
	}
	return jobs, machines, nil
}

func renderResult(w io.Writer, res *models.ScheduleResult, format string) error {
	return renderResponse(w, models.NewResponse(res), res.FallbackReason, res.RunID, format)
}

// renderResponse prints a schedule in the response contract shape. The
// fallback reason and run ID only appear in the table summary.
func renderResponse(w io.Writer, resp models.Response, fallbackReason, runID, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(resp)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Seq", "Job", "Machine", "Start", "End", "Duration")
	for _, e := range resp.Schedule {
		table.Append(
			fmt.Sprintf("%d", e.Seq),
			e.JobID,
			e.MachineID,
			fmt.Sprintf("%d", e.StartMin),
			fmt.Sprintf("%d", e.EndMin),
			fmt.Sprintf("%d", e.DurationMin),
		)
	}
	table.Render()

	fmt.Fprintf(w, "\nSolver: %s (%s)\n", resp.Solver, resp.Status)
	fmt.Fprintf(w, "Makespan: %d min\n", resp.Makespan)
	fmt.Fprintf(w, "Utilization: %.2f\n", resp.Utilization)
	if fallbackReason != "" {
		fmt.Fprintf(w, "Fallback reason: %s\n", fallbackReason)
	}
	if runID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", runID)
	}
	return nil
}
