package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/retry"
)

// Machine statuses as recorded by the shop floor
const (
	MachineStatusRun  = "RUN"
	MachineStatusIdle = "IDLE"
	MachineStatusDown = "DOWN"
)

// Plan statuses
const (
	PlanStatusPending    = "pending"
	PlanStatusInProgress = "in_progress"
	PlanStatusCompleted  = "completed"
)

var (
	ErrUnsupportedDatabase = errors.New("unsupported database type")
	ErrMachineNotFound     = errors.New("machine not found")
)

// PlanStore resolves optimizer inputs from the plan repository
type PlanStore interface {
	// GetJobs returns the plans with the given IDs ordered by due date then
	// priority rank. Unknown IDs are ignored.
	GetJobs(ctx context.Context, ids []string) ([]models.Job, error)
	// PendingJobIDs returns the IDs of every pending plan
	PendingJobIDs(ctx context.Context) ([]string, error)
	// ListMachines returns every machine, Available unless its status is DOWN,
	// fastest first
	ListMachines(ctx context.Context) ([]models.Machine, error)

	UpsertJob(ctx context.Context, job models.Job) error
	UpsertMachine(ctx context.Context, machine models.Machine) error
	SetMachineStatus(ctx context.Context, id, status string) error

	Close() error
	HealthCheck(ctx context.Context) error
}

// Config holds database configuration
type Config struct {
	Type string // "memory", "sqlite" or "postgres"
	DSN  string // PostgreSQL connection string
	Path string // SQLite file

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Retry retry.Config
}

// NewStore opens the store described by cfg, retrying transient connection failures
func NewStore(ctx context.Context, cfg Config, logger *logging.Logger) (PlanStore, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg, logger)
	case "postgres", "postgresql":
		return NewPostgreSQLStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabase, cfg.Type)
	}
}

func machineStatus(m models.Machine) string {
	if m.Available {
		return MachineStatusIdle
	}
	return MachineStatusDown
}

func validStatus(status string) bool {
	switch status {
	case MachineStatusRun, MachineStatusIdle, MachineStatusDown:
		return true
	}
	return false
}
