package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	scheduler "github.com/TudorHulban/production-scheduler"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrPlanNotFound is returned when a plan id has no record.
var ErrPlanNotFound = errors.New("plan not found")

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS plans (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot    TEXT NOT NULL,
    status      TEXT NOT NULL,
    objective   INTEGER NOT NULL,
    makespan    INTEGER NOT NULL,
    plan_today  TEXT NOT NULL,
    wall_ms     INTEGER NOT NULL,
    late        INTEGER NOT NULL DEFAULT 0,
    recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS plan_entries (
    plan_id    INTEGER NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    step_id    TEXT NOT NULL,
    project    TEXT NOT NULL,
    step_name  TEXT NOT NULL,
    resource   TEXT NOT NULL,
    machine    TEXT NOT NULL DEFAULT '',
    start_date TEXT NOT NULL,
    end_date   TEXT NOT NULL,
    delay_days INTEGER NOT NULL,
    PRIMARY KEY (plan_id, step_id)
);
`

// PlanRecord is one recorded plan header.
type PlanRecord struct {
	ID         int64                  `json:"id"`
	Snapshot   string                 `json:"snapshot"`
	Status     scheduler.SolverStatus `json:"status"`
	Objective  int64                  `json:"objective"`
	Makespan   int                    `json:"makespan"`
	Today      string                 `json:"today"`
	WallTime   time.Duration          `json:"wall_time"`
	Late       int                    `json:"late_projects"`
	RecordedAt time.Time              `json:"recorded_at"`
}

// Store keeps committed plans in a local SQLite database in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and creates the schema.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set busy timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a plan with its entries in one transaction. Results without
// a schedule are refused.
func (s *Store) Record(ctx context.Context, snapshotPath string, result *scheduler.ScheduleResult) (int64, error) {
	if result == nil || !result.Status.HasSchedule() {
		return 0, errors.New("history: only plans with a schedule are recorded")
	}

	var late int
	for _, project := range result.Projects {
		if project.ExceedsTolerance {
			late++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	const insertPlan = `
		INSERT INTO plans (snapshot, status, objective, makespan, plan_today, wall_ms, late)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := tx.ExecContext(
		ctx,
		insertPlan,
		snapshotPath,
		string(result.Status),
		result.Objective,
		result.Makespan,
		scheduler.FormatDate(result.Today),
		result.WallTime.Milliseconds(),
		late,
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert plan: %w", err)
	}

	planID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: plan id: %w", err)
	}

	const insertEntry = `
		INSERT INTO plan_entries (plan_id, step_id, project, step_name, resource, machine, start_date, end_date, delay_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, entry := range result.Entries {
		if _, err := tx.ExecContext(
			ctx,
			insertEntry,
			planID,
			entry.StepID,
			entry.ProjectName,
			entry.StepName,
			entry.ResourceName,
			entry.MachineName,
			scheduler.FormatDate(entry.Start),
			scheduler.FormatDate(entry.End),
			entry.DelayDays,
		); err != nil {
			return 0, fmt.Errorf("history: insert entry %s: %w", entry.StepID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}

	return planID, nil
}

// Recent returns the latest plans, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]PlanRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	const q = `
		SELECT id, snapshot, status, objective, makespan, plan_today, wall_ms, late, recorded_at
		FROM plans ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent plans: %w", err)
	}
	defer rows.Close()

	var result []PlanRecord

	for rows.Next() {
		var (
			record     PlanRecord
			status, ts string
			wallMS     int64
		)

		if err := rows.Scan(
			&record.ID,
			&record.Snapshot,
			&status,
			&record.Objective,
			&record.Makespan,
			&record.Today,
			&wallMS,
			&record.Late,
			&ts,
		); err != nil {
			return nil, fmt.Errorf("history: scan plan: %w", err)
		}

		recordedAt, err := parseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("history: parse plan timestamp: %w", err)
		}
		record.RecordedAt = recordedAt

		record.Status = scheduler.SolverStatus(status)
		record.WallTime = time.Duration(wallMS) * time.Millisecond

		result = append(result, record)
	}

	return result, rows.Err()
}

// Entries returns the dated steps of one recorded plan, ordered by start.
func (s *Store) Entries(ctx context.Context, planID int64) ([]scheduler.ScheduleEntry, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM plans WHERE id = ?", planID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPlanNotFound, planID)
	}
	if err != nil {
		return nil, fmt.Errorf("history: plan %d: %w", planID, err)
	}

	const q = `
		SELECT step_id, project, step_name, resource, machine, start_date, end_date, delay_days
		FROM plan_entries WHERE plan_id = ? ORDER BY start_date, project, step_id`

	rows, err := s.db.QueryContext(ctx, q, planID)
	if err != nil {
		return nil, fmt.Errorf("history: entries of plan %d: %w", planID, err)
	}
	defer rows.Close()

	var result []scheduler.ScheduleEntry

	for rows.Next() {
		var (
			entry      scheduler.ScheduleEntry
			start, end string
		)

		if err := rows.Scan(
			&entry.StepID,
			&entry.ProjectName,
			&entry.StepName,
			&entry.ResourceName,
			&entry.MachineName,
			&start,
			&end,
			&entry.DelayDays,
		); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}

		if entry.Start, err = scheduler.ParseDate(start); err != nil {
			return nil, fmt.Errorf("history: entry %s start: %w", entry.StepID, err)
		}

		if entry.End, err = scheduler.ParseDate(end); err != nil {
			return nil, fmt.Errorf("history: entry %s end: %w", entry.StepID, err)
		}

		result = append(result, entry)
	}

	return result, rows.Err()
}

// timestampFormats lists the formats SQLite drivers may produce for
// CURRENT_TIMESTAMP.
var timestampFormats = []string{
	time.RFC3339,
	time.DateTime,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
