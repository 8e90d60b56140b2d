package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/store"
)

var importInput string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load plans and equipment from a plan file into the store",
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "plan file (YAML)")
	importCmd.MarkFlagRequired("input")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger(appConfig)
	defer logger.Close()

	jobs, machines, err := LoadPlan(importInput)
	if err != nil {
		return err
	}

	s, err := openStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := importPlan(ctx, s, jobs, machines); err != nil {
		return err
	}

	logger.Info("Plan imported", logging.Fields{"jobs": len(jobs), "machines": len(machines), "store": appConfig.Store.Type})
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d plans and %d machines into %s store\n", len(jobs), len(machines), appConfig.Store.Type)
	return nil
}

func importPlan(ctx context.Context, s store.PlanStore, jobs []models.Job, machines []models.Machine) error {
	for _, j := range jobs {
		if err := s.UpsertJob(ctx, j); err != nil {
			return err
		}
	}
	for _, m := range machines {
		if err := s.UpsertMachine(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
