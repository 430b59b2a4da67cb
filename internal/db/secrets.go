package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LocalSecret is an age-encrypted secret value kept in the database for
// the "local" secrets provider. Value is base64-encoded ciphertext.
type LocalSecret struct {
	Name      string    `json:"name"`
	Value     string    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func createSecretsTable(db *DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS secrets (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL,                    -- base64(age ciphertext)
    updated_at TEXT NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create secrets table: %w", err)
	}
	return nil
}

func (db *DB) SetSecret(name, encryptedValue string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.Exec(`INSERT INTO secrets (name, value, updated_at) VALUES (?, ?, ?)
                       ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, encryptedValue, now)
	if err != nil {
		return fmt.Errorf("failed to set secret: %w", err)
	}
	return nil
}

func (db *DB) GetSecret(name string) (LocalSecret, error) {
	var secret LocalSecret
	var updatedAt string
	err := db.QueryRow(`SELECT name, value, updated_at FROM secrets WHERE name = ?`, name).
		Scan(&secret.Name, &secret.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return LocalSecret{}, fmt.Errorf("secret %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return LocalSecret{}, fmt.Errorf("failed to get secret: %w", err)
	}
	secret.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return secret, nil
}

func (db *DB) ListSecrets() ([]LocalSecret, error) {
	rows, err := db.Query(`SELECT name, updated_at FROM secrets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	defer rows.Close()

	var secrets []LocalSecret
	for rows.Next() {
		var secret LocalSecret
		var updatedAt string
		if err := rows.Scan(&secret.Name, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		secret.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		secrets = append(secrets, secret)
	}
	return secrets, rows.Err()
}

func (db *DB) DeleteSecret(name string) error {
	result, err := db.Exec(`DELETE FROM secrets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("secret %s: %w", name, ErrNotFound)
	}
	return nil
}
