// Package secrets provides the two secret stores a deployment can pull
// from: AWS Secrets Manager and a local age-encrypted store.
package secrets

import (
	"context"
	"time"
)

// Info describes a stored secret without exposing its value.
type Info struct {
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the interface both providers implement.
type Store interface {
	Set(ctx context.Context, name, value string) error
	Get(ctx context.Context, name string) (string, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, name string) error
}
