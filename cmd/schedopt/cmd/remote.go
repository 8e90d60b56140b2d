package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesplatform/schedopt/pkg/client"
	"github.com/mesplatform/schedopt/pkg/models"
)

var (
	serverURL    string
	remoteJobIDs []string
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Call a running schedopt server",
}

var remoteOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Schedule plans stored on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		resp, runID, err := c.Optimize(cmd.Context(), remoteJobIDs)
		if err != nil {
			return err
		}
		return renderResponse(cmd.OutOrStdout(), *resp, "", runID, outputFormat)
	},
}

var remoteEquipmentCmd = &cobra.Command{
	Use:   "equipment",
	Short: "List the server's equipment",
	RunE: func(cmd *cobra.Command, args []string) error {
		machines, err := client.New(serverURL).ListEquipment(cmd.Context())
		if err != nil {
			return err
		}
		return renderMachines(cmd.OutOrStdout(), machines, outputFormat)
	},
}

var remoteSetStatusCmd = &cobra.Command{
	Use:   "set-status <equip_code> <RUN|IDLE|DOWN>",
	Short: "Change a machine's status on the server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := strings.ToUpper(args[1])
		if err := client.New(serverURL).SetEquipmentStatus(cmd.Context(), args[0], status); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "schedopt server URL")
	remoteCmd.AddCommand(remoteOptimizeCmd, remoteEquipmentCmd, remoteSetStatusCmd)

	remoteOptimizeCmd.Flags().StringSliceVar(&remoteJobIDs, "job-ids", nil, "plan IDs to schedule")
	remoteOptimizeCmd.MarkFlagRequired("job-ids")
}

func renderMachines(w io.Writer, machines []models.Machine, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(machines)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(machines)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Equipment", "Name", "Capacity/h", "Available")
	for _, m := range machines {
		table.Append(m.ID, m.Name, fmt.Sprintf("%.1f", m.CapacityPerPeriod), fmt.Sprintf("%t", m.Available))
	}
	table.Render()
	return nil
}
