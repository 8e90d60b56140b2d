package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/retry"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with ? placeholders; sqlx rebinds them per driver.
type sqlStore struct {
	db     *sqlx.DB
	logger *logging.Logger
}

type planRow struct {
	ID       string    `db:"plan_id"`
	ItemCode string    `db:"item_code"`
	Quantity int       `db:"plan_qty"`
	DueDate  time.Time `db:"due_date"`
	Priority string    `db:"priority"`
}

type equipmentRow struct {
	ID       string  `db:"equip_code"`
	Name     string  `db:"name"`
	Capacity float64 `db:"capacity_per_hour"`
	Status   string  `db:"status"`
}

const selectJobs = `
	SELECT plan_id, item_code, plan_qty, due_date, priority
	FROM production_plans
	WHERE plan_id IN (?)
	ORDER BY due_date,
		CASE priority WHEN 'HIGH' THEN 1 WHEN 'MID' THEN 2 ELSE 3 END`

const selectMachines = `
	SELECT equip_code, name, capacity_per_hour, status
	FROM equipments
	ORDER BY capacity_per_hour DESC, equip_code`

const upsertJob = `
	INSERT INTO production_plans (plan_id, item_code, plan_qty, due_date, priority, status)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (plan_id) DO UPDATE SET
		item_code = excluded.item_code,
		plan_qty = excluded.plan_qty,
		due_date = excluded.due_date,
		priority = excluded.priority,
		status = excluded.status`

const upsertMachine = `
	INSERT INTO equipments (equip_code, name, capacity_per_hour, status)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (equip_code) DO UPDATE SET
		name = excluded.name,
		capacity_per_hour = excluded.capacity_per_hour,
		status = excluded.status`

// openDB opens driver/dsn and pings it with backoff
func openDB(ctx context.Context, driver, dsn string, cfg retry.Config, logger *logging.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	attempt := 0
	err = retry.Do(ctx, cfg, func() error {
		attempt++
		pingErr := db.PingContext(ctx)
		if pingErr != nil {
			logger.Warn("Database ping failed", logging.Fields{
				"driver":  driver,
				"attempt": attempt,
				"error":   pingErr.Error(),
			})
		}
		return pingErr
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (s *sqlStore) GetJobs(ctx context.Context, ids []string) ([]models.Job, error) {
	if len(ids) == 0 {
		return []models.Job{}, nil
	}

	query, args, err := sqlx.In(selectJobs, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build plan query: %w", err)
	}

	var rows []planRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}

	jobs := make([]models.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, models.Job{
			ID:       r.ID,
			ItemCode: r.ItemCode,
			Quantity: r.Quantity,
			DueDate:  r.DueDate,
			Priority: models.ParsePriority(r.Priority),
		})
	}
	return jobs, nil
}

func (s *sqlStore) PendingJobIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(
		`SELECT plan_id FROM production_plans WHERE status = ? ORDER BY plan_id`), PlanStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending plans: %w", err)
	}
	return ids, nil
}

func (s *sqlStore) ListMachines(ctx context.Context) ([]models.Machine, error) {
	var rows []equipmentRow
	if err := s.db.SelectContext(ctx, &rows, selectMachines); err != nil {
		return nil, fmt.Errorf("failed to query equipment: %w", err)
	}

	machines := make([]models.Machine, 0, len(rows))
	for _, r := range rows {
		machines = append(machines, models.Machine{
			ID:                r.ID,
			Name:              r.Name,
			CapacityPerPeriod: r.Capacity,
			Available:         r.Status != MachineStatusDown,
		})
	}
	return machines, nil
}

func (s *sqlStore) UpsertJob(ctx context.Context, job models.Job) error {
	due := time.Date(job.DueDate.Year(), job.DueDate.Month(), job.DueDate.Day(), 0, 0, 0, 0, time.UTC)
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertJob),
		job.ID, job.ItemCode, job.Quantity, due,
		string(models.ParsePriority(string(job.Priority))), PlanStatusPending)
	if err != nil {
		return fmt.Errorf("failed to upsert plan %s: %w", job.ID, err)
	}
	return nil
}

func (s *sqlStore) UpsertMachine(ctx context.Context, machine models.Machine) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertMachine),
		machine.ID, machine.Name, machine.CapacityPerPeriod, machineStatus(machine))
	if err != nil {
		return fmt.Errorf("failed to upsert equipment %s: %w", machine.ID, err)
	}
	return nil
}

func (s *sqlStore) SetMachineStatus(ctx context.Context, id, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("invalid machine status %q", status)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE equipments SET status = ? WHERE equip_code = ?`), status, id)
	if err != nil {
		return fmt.Errorf("failed to update equipment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMachineNotFound
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
