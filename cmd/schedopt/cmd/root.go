package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesplatform/schedopt/pkg/config"
	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/retry"
	"github.com/mesplatform/schedopt/pkg/store"
	"github.com/mesplatform/schedopt/pkg/tracing"
)

// Version is stamped at build time with -ldflags
var Version = "dev"

var (
	cfgFile      string
	outputFormat string
	logLevel     string

	appConfig *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "schedopt",
	Short: "Production scheduling optimizer",
	Long: `schedopt assigns pending production plans to equipment and sequences them,
minimizing a weighted makespan and completion-time objective. An exact
constraint solver is tried first within a time budget; a deterministic
least-loaded heuristic is the fallback.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.schedopt/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")

	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads the config file (if any), SCHEDOPT_* environment variables and defaults
func initConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	} else if path := config.DefaultPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	appConfig = cfg
	return nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.FileComponent != "" {
		logger, err := logging.NewFileLogger(cfg.Logging.FileComponent, level, cfg.Logging.JSON)
		if err == nil {
			return logger
		}
		fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", err)
	}
	logger := logging.NewLogger(level, cfg.Logging.JSON)
	logger.SetOutput(os.Stderr)
	return logger
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (store.PlanStore, error) {
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.Store.ConnectRetries

	return store.NewStore(ctx, store.Config{
		Type:            cfg.Store.Type,
		DSN:             cfg.Store.DSN,
		Path:            cfg.Store.Path,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		Retry:           rc,
	}, logger.WithField("component", "store"))
}

func newTracer(cfg *config.Config) (*tracing.Provider, error) {
	return tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Enabled:        cfg.Tracing.Enabled,
	})
}
