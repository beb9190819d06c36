package navdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded execution of the analysis pipeline.
type Run struct {
	RunID        string `json:"run_id"`
	DataFolder   string `json:"data_folder"`
	OutputFolder string `json:"output_folder"`
	Steps        string `json:"steps"`
	Participants int    `json:"participants"`
	FilesCreated int    `json:"files_created"`
	Warnings     int    `json:"warnings"`
	Errors       int    `json:"errors"`
	Status       string `json:"status"`
	StartedAt    int64  `json:"started_at"`
	CompletedAt  int64  `json:"completed_at,omitempty"`
}

// RunStore provides persistence for analysis runs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Begin records a new run in the running state. An empty RunID, StartedAt or
// Status is filled in.
func (s *RunStore) Begin(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO analysis_runs (
				run_id, data_folder, output_folder, steps,
				participants, files_created, warnings, errors,
				status, started_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.DataFolder, run.OutputFolder, run.Steps,
			run.Participants, run.FilesCreated, run.Warnings, run.Errors,
			run.Status, run.StartedAt,
		)
		return err
	})
}

// Complete finalizes a run's counters, status and completion time. A zero
// CompletedAt is stamped now; a running status becomes completed or failed
// based on the error count.
func (s *RunStore) Complete(run *Run) error {
	if run.CompletedAt == 0 {
		run.CompletedAt = time.Now().UnixNano()
	}
	if run.Status == "" || run.Status == StatusRunning {
		if run.Errors > 0 {
			run.Status = StatusFailed
		} else {
			run.Status = StatusCompleted
		}
	}

	return retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE analysis_runs
			SET participants = ?, files_created = ?, warnings = ?, errors = ?,
			    status = ?, completed_at = ?
			WHERE run_id = ?`,
			run.Participants, run.FilesCreated, run.Warnings, run.Errors,
			run.Status, run.CompletedAt, run.RunID,
		)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s not found", run.RunID)
		}
		return nil
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, data_folder, output_folder, steps,
		       participants, files_created, warnings, errors,
		       status, started_at, completed_at
		FROM analysis_runs
		WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, data_folder, output_folder, steps,
		       participants, files_created, warnings, errors,
		       status, started_at, completed_at
		FROM analysis_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var completedAt sql.NullInt64
	err := row.Scan(
		&r.RunID, &r.DataFolder, &r.OutputFolder, &r.Steps,
		&r.Participants, &r.FilesCreated, &r.Warnings, &r.Errors,
		&r.Status, &r.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		r.CompletedAt = completedAt.Int64
	}
	return &r, nil
}
