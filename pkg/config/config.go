// Package config loads schedopt settings from a YAML file, the environment
// and defaults, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/scheduler"
)

// EnvPrefix is prepended to every environment override, e.g. SCHEDOPT_SERVER_PORT
const EnvPrefix = "SCHEDOPT"

var validate = validator.New()

// Config is the complete runtime configuration
type Config struct {
	Scheduler SchedulerSection `yaml:"scheduler" mapstructure:"scheduler"`
	Store     StoreSection     `yaml:"store" mapstructure:"store"`
	Server    ServerSection    `yaml:"server" mapstructure:"server"`
	Logging   LoggingSection   `yaml:"logging" mapstructure:"logging"`
	Tracing   TracingSection   `yaml:"tracing" mapstructure:"tracing"`
}

type SchedulerSection struct {
	TimeBudget      time.Duration    `yaml:"time_budget" mapstructure:"time_budget"`
	MakespanWeight  int64            `yaml:"makespan_weight" mapstructure:"makespan_weight"`
	PriorityWeights map[string]int64 `yaml:"priority_weights" mapstructure:"priority_weights"`
	ExactEnabled    bool             `yaml:"exact_enabled" mapstructure:"exact_enabled"`
	MaxExactJobs    int              `yaml:"max_exact_jobs" mapstructure:"max_exact_jobs" validate:"min=0"`
	MinFreeMemoryMB uint64           `yaml:"min_free_memory_mb" mapstructure:"min_free_memory_mb"`
}

type StoreSection struct {
	Type            string        `yaml:"type" mapstructure:"type" validate:"oneof=memory sqlite postgres"`
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnectRetries  int           `yaml:"connect_retries" mapstructure:"connect_retries" validate:"min=0,max=20"`
}

type ServerSection struct {
	Port           int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps" validate:"min=0"`
	RateLimitBurst int           `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst" validate:"min=0"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace" mapstructure:"shutdown_grace"`
	TLSCert        string        `yaml:"tls_cert" mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey         string        `yaml:"tls_key" mapstructure:"tls_key" validate:"required_with=TLSCert"`
	TLSClientCA    string        `yaml:"tls_client_ca" mapstructure:"tls_client_ca"` // enables mutual TLS
}

type LoggingSection struct {
	Level         string `yaml:"level" mapstructure:"level"`
	JSON          bool   `yaml:"json" mapstructure:"json"`
	FileComponent string `yaml:"file_component" mapstructure:"file_component"`
}

type TracingSection struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name" validate:"required"`
	Environment string  `yaml:"environment" mapstructure:"environment"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio" validate:"min=0,max=1"`
}

// Default returns the built-in configuration
func Default() *Config {
	sc := scheduler.DefaultSchedulerConfig()
	weights := make(map[string]int64, len(sc.PriorityWeights))
	for p, w := range sc.PriorityWeights {
		weights[string(p)] = w
	}

	return &Config{
		Scheduler: SchedulerSection{
			TimeBudget:      sc.TimeBudget,
			MakespanWeight:  sc.MakespanWeight,
			PriorityWeights: weights,
			ExactEnabled:    sc.ExactEnabled,
			MaxExactJobs:    sc.MaxExactJobs,
			MinFreeMemoryMB: 64,
		},
		Store: StoreSection{
			Type:            "memory",
			Path:            "schedopt.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectRetries:  3,
		},
		Server: ServerSection{
			Port:           8080,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			ShutdownGrace:  30 * time.Second,
		},
		Logging: LoggingSection{
			Level: "info",
		},
		Tracing: TracingSection{
			Endpoint:    "localhost:4318",
			ServiceName: "schedopt",
			Environment: "development",
			SampleRatio: 1,
		},
	}
}

// SetDefaults registers every default on v so that environment overrides
// are picked up by Unmarshal even when no config file sets the key.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("scheduler.time_budget", d.Scheduler.TimeBudget)
	v.SetDefault("scheduler.makespan_weight", d.Scheduler.MakespanWeight)
	v.SetDefault("scheduler.priority_weights", d.Scheduler.PriorityWeights)
	v.SetDefault("scheduler.exact_enabled", d.Scheduler.ExactEnabled)
	v.SetDefault("scheduler.max_exact_jobs", d.Scheduler.MaxExactJobs)
	v.SetDefault("scheduler.min_free_memory_mb", d.Scheduler.MinFreeMemoryMB)

	v.SetDefault("store.type", d.Store.Type)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
	v.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
	v.SetDefault("store.conn_max_lifetime", d.Store.ConnMaxLifetime)
	v.SetDefault("store.connect_retries", d.Store.ConnectRetries)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.rate_limit_rps", d.Server.RateLimitRPS)
	v.SetDefault("server.rate_limit_burst", d.Server.RateLimitBurst)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_grace", d.Server.ShutdownGrace)
	v.SetDefault("server.tls_cert", d.Server.TLSCert)
	v.SetDefault("server.tls_key", d.Server.TLSKey)
	v.SetDefault("server.tls_client_ca", d.Server.TLSClientCA)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("logging.file_component", d.Logging.FileComponent)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.environment", d.Tracing.Environment)
	v.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)
}

// BindEnv enables SCHEDOPT_* environment overrides on v
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// DefaultPath returns $HOME/.schedopt/config.yaml, or "" when there is no home directory
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".schedopt", "config.yaml")
}

// Load decodes the configuration held by v. A nil v loads defaults and the environment only.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
		BindEnv(v)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads path (if non-empty) on top of defaults and environment
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return Load(v)
}

// Validate rejects settings the services cannot start with
func (c *Config) Validate() error {
	if err := c.SchedulerConfig().Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	switch c.Store.Type {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store: sqlite requires a path")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store: postgres requires a dsn")
		}
	}
	return nil
}

// SchedulerConfig converts the scheduler section for the optimizer.
// Priority names are normalized, so "high" and "HIGH" are the same key.
func (c *Config) SchedulerConfig() *scheduler.SchedulerConfig {
	sc := scheduler.DefaultSchedulerConfig()
	sc.TimeBudget = c.Scheduler.TimeBudget
	sc.MakespanWeight = c.Scheduler.MakespanWeight
	sc.ExactEnabled = c.Scheduler.ExactEnabled
	sc.MaxExactJobs = c.Scheduler.MaxExactJobs
	for name, w := range c.Scheduler.PriorityWeights {
		sc.PriorityWeights[models.ParsePriority(name)] = w
	}
	return sc
}

// MinFreeMemory returns the exact-solver memory floor in bytes
func (c *Config) MinFreeMemory() uint64 {
	return c.Scheduler.MinFreeMemoryMB << 20
}

// YAML renders the configuration as it would appear in a config file
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
