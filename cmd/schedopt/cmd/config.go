package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesplatform/schedopt/pkg/logging"
	tlsutil "github.com/mesplatform/schedopt/pkg/tls"
)

var (
	certFile  string
	keyFile   string
	certCN    string
	certHosts []string
	certValid time.Duration
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := appConfig.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configLogrotateCmd = &cobra.Command{
	Use:   "logrotate [component]",
	Short: "Print a logrotate snippet for file logging",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		component := appConfig.Logging.FileComponent
		if len(args) == 1 {
			component = args[0]
		}
		if component == "" {
			component = "schedopt"
		}
		fmt.Fprint(cmd.OutOrStdout(), logging.GenerateLogrotateConfig(component))
		return nil
	},
}

var configGenCertCmd = &cobra.Command{
	Use:   "gen-cert",
	Short: "Write a self-signed certificate for the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tlsutil.GenerateSelfSignedCert(certFile, keyFile, certCN, certValid, certHosts...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", certFile, keyFile)
		fmt.Fprintf(cmd.OutOrStdout(), "set server.tls_cert=%s and server.tls_key=%s to enable TLS\n", certFile, keyFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configLogrotateCmd)
	configCmd.AddCommand(configGenCertCmd)

	configGenCertCmd.Flags().StringVar(&certFile, "cert", "server.crt", "certificate output path")
	configGenCertCmd.Flags().StringVar(&keyFile, "key", "server.key", "private key output path")
	configGenCertCmd.Flags().StringVar(&certCN, "cn", "schedopt", "certificate common name")
	configGenCertCmd.Flags().StringSliceVar(&certHosts, "host", nil, "extra DNS names or IPs (repeatable)")
	configGenCertCmd.Flags().DurationVar(&certValid, "valid-for", 365*24*time.Hour, "certificate lifetime")
}
