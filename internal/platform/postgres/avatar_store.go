package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/velora-app/avatar-pipeline/internal/domain"
	"github.com/velora-app/avatar-pipeline/internal/platform/logger"
	"github.com/velora-app/avatar-pipeline/internal/store"
)

// PostgresAvatarStore implements the store.AvatarStore interface using
// PostgreSQL. Uniqueness is enforced on the provider-assigned avatar ID, so
// a redelivered pipeline run cannot create a second record.
type PostgresAvatarStore struct {
	db store.DBTX
}

// NewPostgresAvatarStore creates a new PostgresAvatarStore
func NewPostgresAvatarStore(db store.DBTX) *PostgresAvatarStore {
	return &PostgresAvatarStore{
		db: db,
	}
}

// Create persists a new avatar record. Returns an error wrapping
// store.ErrAvatarExists if a record with the same avatar ID already exists.
func (s *PostgresAvatarStore) Create(ctx context.Context, avatar *domain.Avatar) error {
	log := logger.FromContext(ctx)

	if err := avatar.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO avatars (
			avatar_id, user_id, avatar_name, gender, preview_image_url,
			preview_video_url, is_default, ethnicity, age_group, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(ctx, query,
		avatar.AvatarID,
		avatar.UserID,
		avatar.AvatarName,
		avatar.Gender,
		avatar.PreviewImageURL,
		avatar.PreviewVideoURL,
		avatar.Default,
		avatar.Ethnicity,
		avatar.AgeGroup,
		avatar.Status,
		avatar.CreatedAt,
		avatar.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("avatar record already exists",
				"avatar_id", avatar.AvatarID,
				"user_id", avatar.UserID)
			return MapUniqueViolation(err, store.ErrAvatarExists)
		}
		log.Error("failed to create avatar record",
			"avatar_id", avatar.AvatarID,
			"user_id", avatar.UserID,
			"error", err)
		return fmt.Errorf("failed to create avatar: %w", MapError(err))
	}

	return nil
}

// GetByAvatarID retrieves an avatar record by its provider-assigned ID.
// Returns an error wrapping store.ErrAvatarNotFound if no record exists.
func (s *PostgresAvatarStore) GetByAvatarID(ctx context.Context, avatarID string) (*domain.Avatar, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT avatar_id, user_id, avatar_name, gender, preview_image_url,
		       preview_video_url, is_default, ethnicity, age_group, status,
		       created_at, updated_at
		FROM avatars
		WHERE avatar_id = $1
	`

	var avatar domain.Avatar
	err := s.db.QueryRowContext(ctx, query, avatarID).Scan(
		&avatar.AvatarID,
		&avatar.UserID,
		&avatar.AvatarName,
		&avatar.Gender,
		&avatar.PreviewImageURL,
		&avatar.PreviewVideoURL,
		&avatar.Default,
		&avatar.Ethnicity,
		&avatar.AgeGroup,
		&avatar.Status,
		&avatar.CreatedAt,
		&avatar.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrAvatarNotFound, avatarID)
		}
		log.Error("failed to get avatar record",
			"avatar_id", avatarID,
			"error", err)
		return nil, fmt.Errorf("failed to get avatar: %w", MapError(err))
	}

	return &avatar, nil
}

// Ensure PostgresAvatarStore implements store.AvatarStore
var _ store.AvatarStore = (*PostgresAvatarStore)(nil)
