package store

import (
	"context"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mesplatform/schedopt/pkg/logging"
)

// SQLiteStore is a SQLite-backed PlanStore
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path
func NewSQLiteStore(ctx context.Context, cfg Config, logger *logging.Logger) (*SQLiteStore, error) {
	path := cfg.Path
	if path == "" {
		path = cfg.DSN
	}
	if path == "" {
		return nil, fmt.Errorf("SQLite path is required")
	}

	// WAL with a busy timeout; writes are serialized on one connection
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_txlock=immediate", path)
	db, err := openDB(ctx, "sqlite3", dsn, cfg.Retry, logger)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{sqlStore{db: db, logger: logger}}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS production_plans (
		plan_id TEXT PRIMARY KEY,
		item_code TEXT NOT NULL DEFAULT '',
		plan_qty INTEGER NOT NULL,
		due_date DATETIME NOT NULL,
		priority TEXT NOT NULL DEFAULT 'MID',
		status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS equipments (
		equip_code TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		capacity_per_hour REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'IDLE'
	);

	CREATE INDEX IF NOT EXISTS idx_plans_due ON production_plans(due_date, priority);
	CREATE INDEX IF NOT EXISTS idx_plans_status ON production_plans(status);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
