package db

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/eskildsen/stevedore/internal/constants"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

type DB struct {
	*sql.DB
}

// New opens (or creates) the stevedore database in dataDir and applies
// migrations. Pragmas go in the DSN so every pooled connection gets them.
func New(dataDir string) (*DB, error) {
	dbFile := filepath.Join(dataDir, constants.DBFileName)
	dsn := dbFile + "?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	database, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{database}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	if err := createDeploymentsTable(db); err != nil {
		return err
	}
	if err := createJobsTable(db); err != nil {
		return err
	}
	if err := createSecretsTable(db); err != nil {
		return err
	}
	return nil
}
