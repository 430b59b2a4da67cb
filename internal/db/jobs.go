package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Job states. A job moves pending -> running -> done|failed.
const (
	JobStatePending = "pending"
	JobStateRunning = "running"
	JobStateDone    = "done"
	JobStateFailed  = "failed"
)

// Job is one queued unit of work for the worker role.
type Job struct {
	ID        string          `json:"id"` // ULID
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	State     string          `json:"state"`
	Attempts  int             `json:"attempts"`
	LastError *string         `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func createJobsTable(db *DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,                    -- ULID, sortable by creation time
    kind TEXT NOT NULL,
    payload JSON NOT NULL,
    state TEXT NOT NULL DEFAULT 'pending',
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}

func (db *DB) InsertJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.Exec(
		`INSERT INTO jobs (id, kind, payload, state, attempts, created_at, updated_at) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		job.ID, job.Kind, string(job.Payload), JobStatePending, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// ClaimNextJob atomically takes the oldest pending job and marks it
// running. Returns ErrNotFound when the queue is empty.
func (db *DB) ClaimNextJob() (Job, error) {
	tx, err := db.Begin()
	if err != nil {
		return Job{}, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT id, kind, payload, state, attempts, last_error, created_at, updated_at
                        FROM jobs WHERE state = ? ORDER BY id ASC LIMIT 1`, JobStatePending)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to read pending job: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(`UPDATE jobs SET state = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		JobStateRunning, now, job.ID); err != nil {
		return Job{}, fmt.Errorf("failed to claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Job{}, fmt.Errorf("failed to commit claim: %w", err)
	}
	job.State = JobStateRunning
	job.Attempts++
	return job, nil
}

// JobByDeploymentID returns the newest job whose payload carries the
// given deployment ID.
func (db *DB) JobByDeploymentID(deploymentID string) (Job, error) {
	row := db.QueryRow(`SELECT id, kind, payload, state, attempts, last_error, created_at, updated_at
                        FROM jobs WHERE json_extract(payload, '$.deploymentId') = ? ORDER BY id DESC LIMIT 1`, deploymentID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("deployment %s: %w", deploymentID, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to find job for deployment: %w", err)
	}
	return job, nil
}

func (db *DB) CompleteJob(jobID string) error {
	return db.finishJob(jobID, JobStateDone, nil)
}

func (db *DB) FailJob(jobID string, cause error) error {
	msg := cause.Error()
	return db.finishJob(jobID, JobStateFailed, &msg)
}

func (db *DB) finishJob(jobID, state string, lastError *string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := db.Exec(`UPDATE jobs SET state = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		state, lastError, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// CountJobs returns the number of jobs in the given state.
func (db *DB) CountJobs(state string) (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE state = ?`, state).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// PruneJobs deletes finished jobs older than the cutoff.
func (db *DB) PruneJobs(olderThan time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM jobs WHERE state IN (?, ?) AND updated_at < ?`,
		JobStateDone, JobStateFailed, olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	pruned, _ := result.RowsAffected()
	return pruned, nil
}

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var job Job
	var payload, createdAt, updatedAt string
	err := row.Scan(&job.ID, &job.Kind, &payload, &job.State, &job.Attempts, &job.LastError, &createdAt, &updatedAt)
	if err != nil {
		return Job{}, err
	}
	job.Payload = json.RawMessage(payload)
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return job, nil
}
