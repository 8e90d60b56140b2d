package store

import (
	"context"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mesplatform/schedopt/pkg/logging"
)

// PostgreSQLStore is a PostgreSQL-backed PlanStore
type PostgreSQLStore struct {
	sqlStore
}

// NewPostgreSQLStore connects to cfg.DSN and creates the plan tables if missing
func NewPostgreSQLStore(ctx context.Context, cfg Config, logger *logging.Logger) (*PostgreSQLStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := openDB(ctx, "postgres", cfg.DSN, cfg.Retry, logger)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(25)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &PostgreSQLStore{sqlStore{db: db, logger: logger}}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgreSQLStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS production_plans (
		plan_id TEXT PRIMARY KEY,
		item_code TEXT NOT NULL DEFAULT '',
		plan_qty INTEGER NOT NULL,
		due_date DATE NOT NULL,
		priority TEXT NOT NULL DEFAULT 'MID',
		status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS equipments (
		equip_code TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		capacity_per_hour DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL DEFAULT 'IDLE'
	);

	CREATE INDEX IF NOT EXISTS idx_plans_due ON production_plans(due_date, priority);
	CREATE INDEX IF NOT EXISTS idx_plans_status ON production_plans(status);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
