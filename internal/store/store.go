// Package store persists the durable identity record.
package store

import (
	"context"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
)

// IdentityStore reads and writes the durable identity record.
// Save replaces the whole record.
type IdentityStore interface {
	Load(ctx context.Context) ([]domain.Identity, error)
	Save(ctx context.Context, identities []domain.Identity) error
	Ping(ctx context.Context) error
	Backend() string
}
