package store

import (
	"context"

	"github.com/velora-app/avatar-pipeline/internal/domain"
)

// AvatarStore defines the interface for persisting avatar records.
// The pipeline creates exactly one record per successfully trained avatar;
// uniqueness is scoped to the provider-assigned avatar ID.
type AvatarStore interface {
	// Create persists a new avatar record. Returns an error wrapping
	// ErrAvatarExists if a record with the same avatar ID already exists
	// (for example after a queue redelivery re-ran the pipeline).
	Create(ctx context.Context, avatar *domain.Avatar) error

	// GetByAvatarID retrieves an avatar record by its provider-assigned ID.
	// Returns an error wrapping ErrAvatarNotFound if no record exists.
	GetByAvatarID(ctx context.Context, avatarID string) (*domain.Avatar, error)
}
