package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/velora-app/avatar-pipeline/internal/store"
)

func pgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		ConstraintName: "avatars_avatar_id_key",
		ColumnName:     "avatar_id",
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil passes through", nil, nil},
		{"no rows maps to not found", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation maps to duplicate", pgError(uniqueViolationCode), store.ErrDuplicate},
		{"foreign key violation maps to invalid entity", pgError(foreignKeyViolationCode), store.ErrInvalidEntity},
		{"check violation maps to invalid entity", pgError(checkViolationCode), store.ErrInvalidEntity},
		{"not null violation maps to invalid entity", pgError(notNullViolationCode), store.ErrInvalidEntity},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := MapError(tc.err)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}

	t.Run("unmapped errors pass through", func(t *testing.T) {
		t.Parallel()

		original := errors.New("connection reset")
		assert.Equal(t, original, MapError(original))
	})

	t.Run("wrapped pg errors are still mapped", func(t *testing.T) {
		t.Parallel()

		wrapped := fmt.Errorf("insert failed: %w", pgError(uniqueViolationCode))
		assert.ErrorIs(t, MapError(wrapped), store.ErrDuplicate)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(pgError(uniqueViolationCode)))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", pgError(uniqueViolationCode))))
	assert.False(t, IsUniqueViolation(pgError(foreignKeyViolationCode)))
	assert.False(t, IsUniqueViolation(errors.New("not a pg error")))
}

func TestMapUniqueViolation(t *testing.T) {
	t.Parallel()

	t.Run("maps to the specific error", func(t *testing.T) {
		t.Parallel()

		err := MapUniqueViolation(pgError(uniqueViolationCode), store.ErrAvatarExists)
		assert.ErrorIs(t, err, store.ErrAvatarExists)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("falls back to the generic duplicate error", func(t *testing.T) {
		t.Parallel()

		err := MapUniqueViolation(pgError(uniqueViolationCode), nil)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("passes other errors through", func(t *testing.T) {
		t.Parallel()

		original := errors.New("timeout")
		assert.Equal(t, original, MapUniqueViolation(original, store.ErrAvatarExists))
	})
}
