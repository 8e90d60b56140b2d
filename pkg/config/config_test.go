package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mesplatform/schedopt/pkg/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.TimeBudget != 5*time.Second {
		t.Errorf("Expected time budget 5s, got %v", cfg.Scheduler.TimeBudget)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Expected memory store, got %s", cfg.Store.Type)
	}

	sc := cfg.SchedulerConfig()
	if sc.MakespanWeight != 10 || !sc.ExactEnabled || sc.MaxExactJobs != 40 {
		t.Errorf("Unexpected scheduler config %+v", sc)
	}
	if sc.PriorityWeight(models.PriorityHigh) != 3 || sc.PriorityWeight(models.PriorityLow) != 1 {
		t.Errorf("Unexpected priority weights %v", sc.PriorityWeights)
	}
	if cfg.MinFreeMemory() != 64<<20 {
		t.Errorf("Expected 64 MiB memory floor, got %d", cfg.MinFreeMemory())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scheduler:
  time_budget: 2s
  makespan_weight: 4
  priority_weights:
    HIGH: 9
  max_exact_jobs: 12
store:
  type: sqlite
  path: /tmp/plans.db
server:
  port: 9090
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	sc := cfg.SchedulerConfig()
	if sc.TimeBudget != 2*time.Second {
		t.Errorf("Expected 2s, got %v", sc.TimeBudget)
	}
	if sc.MakespanWeight != 4 || sc.MaxExactJobs != 12 {
		t.Errorf("Unexpected scheduler config %+v", sc)
	}
	if sc.PriorityWeight(models.PriorityHigh) != 9 {
		t.Errorf("Expected HIGH weight 9, got %d", sc.PriorityWeight(models.PriorityHigh))
	}
	if sc.PriorityWeight(models.PriorityMid) != 2 {
		t.Errorf("Expected default MID weight 2, got %d", sc.PriorityWeight(models.PriorityMid))
	}
	if cfg.Store.Type != "sqlite" || cfg.Store.Path != "/tmp/plans.db" {
		t.Errorf("Unexpected store section %+v", cfg.Store)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	// untouched sections keep their defaults
	if cfg.Server.RateLimitBurst != 10 {
		t.Errorf("Expected default burst 10, got %d", cfg.Server.RateLimitBurst)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SCHEDOPT_SERVER_PORT", "7070")
	t.Setenv("SCHEDOPT_SCHEDULER_EXACT_ENABLED", "false")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected port 7070 from env, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.ExactEnabled {
		t.Error("Expected exact solver disabled from env")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero time budget", func(c *Config) { c.Scheduler.TimeBudget = 0 }, false},
		{"negative weight", func(c *Config) { c.Scheduler.PriorityWeights["LOW"] = -1 }, false},
		{"unknown store", func(c *Config) { c.Store.Type = "redis" }, false},
		{"postgres without dsn", func(c *Config) { c.Store.Type = "postgres" }, false},
		{"postgres with dsn", func(c *Config) {
			c.Store.Type = "postgres"
			c.Store.DSN = "postgres://localhost/mes"
		}, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, false},
		{"sample ratio above one", func(c *Config) { c.Tracing.SampleRatio = 1.5 }, false},
		{"tls cert without key", func(c *Config) { c.Server.TLSCert = "server.crt" }, false},
		{"tls pair", func(c *Config) {
			c.Server.TLSCert = "server.crt"
			c.Server.TLSKey = "server.key"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestYAML(t *testing.T) {
	data, err := Default().YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Expected YAML output")
	}
}
