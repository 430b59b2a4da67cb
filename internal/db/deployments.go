package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// Deployment is one recorded deploy of an environment.
type Deployment struct {
	ID             string          `json:"id"`
	Environment    string          `json:"environment"`
	AppName        string          `json:"app_name"`
	ImageRef       string          `json:"image_ref"`
	TaskDefARN     string          `json:"task_def_arn"`
	ConfigSnapshot json.RawMessage `json:"config_snapshot"`
	RolledBackFrom *string         `json:"rolled_back_from,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func createDeploymentsTable(db *DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS deployments (
    id TEXT PRIMARY KEY,                    -- Timestamp-based ID, sortable
    environment TEXT NOT NULL,
    app_name TEXT NOT NULL,
    image_ref TEXT NOT NULL,
    task_def_arn TEXT NOT NULL,
    config_snapshot JSON NOT NULL,          -- Resolved target config as JSON
    rolled_back_from TEXT,
    created_at TEXT NOT NULL,

    FOREIGN KEY (rolled_back_from) REFERENCES deployments(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_deployments_environment ON deployments(environment);
CREATE INDEX IF NOT EXISTS idx_deployments_app_name ON deployments(app_name);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create deployments table: %w", err)
	}
	return nil
}

func (db *DB) SaveDeployment(d Deployment) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO deployments (id, environment, app_name, image_ref, task_def_arn, config_snapshot, rolled_back_from, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.Exec(query, d.ID, d.Environment, d.AppName, d.ImageRef, string(d.ConfigSnapshot),
		d.RolledBackFrom, d.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}
	return nil
}

func scanDeployment(row interface{ Scan(...any) error }) (Deployment, error) {
	var d Deployment
	var snapshot string
	var createdAt string
	err := row.Scan(&d.ID, &d.Environment, &d.AppName, &d.ImageRef, &d.TaskDefARN, &snapshot, &d.RolledBackFrom, &createdAt)
	if err != nil {
		return Deployment{}, err
	}
	d.ConfigSnapshot = json.RawMessage(snapshot)
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return d, nil
}

const deploymentColumns = `id, environment, app_name, image_ref, task_def_arn, config_snapshot, rolled_back_from, created_at`

func (db *DB) GetDeployment(deploymentID string) (Deployment, error) {
	row := db.QueryRow(`SELECT `+deploymentColumns+` FROM deployments WHERE id = ?`, deploymentID)
	d, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Deployment{}, fmt.Errorf("deployment %s: %w", deploymentID, ErrNotFound)
	}
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to get deployment: %w", err)
	}
	return d, nil
}

// LatestDeployment returns the most recent deployment for an environment.
func (db *DB) LatestDeployment(environment string) (Deployment, error) {
	row := db.QueryRow(`SELECT `+deploymentColumns+` FROM deployments WHERE environment = ? ORDER BY id DESC LIMIT 1`, environment)
	d, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Deployment{}, fmt.Errorf("no deployments for %s: %w", environment, ErrNotFound)
	}
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to get latest deployment: %w", err)
	}
	return d, nil
}

// ListDeployments returns history for an environment, newest first.
// A non-positive limit returns everything.
func (db *DB) ListDeployments(environment string, limit int) ([]Deployment, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := db.Query(`SELECT `+deploymentColumns+` FROM deployments WHERE environment = ? ORDER BY id DESC LIMIT ?`, environment, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// PruneDeployments keeps the N most recent deployments per environment.
// IDs are sortable timestamps, so ordering by ID is ordering by time.
func (db *DB) PruneDeployments(environment string, keep int) (int64, error) {
	query := `
        DELETE FROM deployments
        WHERE environment = ?
        AND id NOT IN (
            SELECT id FROM deployments
            WHERE environment = ?
            ORDER BY id DESC
            LIMIT ?
        )`
	result, err := db.Exec(query, environment, environment, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune deployments: %w", err)
	}
	pruned, _ := result.RowsAffected()
	return pruned, nil
}
