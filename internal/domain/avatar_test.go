package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validJob() AvatarJob {
	return AvatarJob{
		ImagePath: "/tmp/staged.jpg",
		AgeGroup:  AgeGroupAdult,
		Name:      "Jane",
		Gender:    GenderFemale,
		UserID:    "u1",
		MimeType:  "image/jpeg",
	}
}

func TestNewAvatar(t *testing.T) {
	avatar, err := NewAvatar(validJob(), "av1", "https://x/p.jpg")
	require.NoError(t, err)

	assert.Equal(t, "av1", avatar.AvatarID)
	assert.Equal(t, "u1", avatar.UserID)
	assert.Equal(t, "Jane", avatar.AvatarName)
	assert.Equal(t, GenderFemale, avatar.Gender)
	assert.Equal(t, "https://x/p.jpg", avatar.PreviewImageURL)
	assert.Empty(t, avatar.PreviewVideoURL, "preview video URL is filled by a later enrichment")
	assert.False(t, avatar.Default)
	assert.Equal(t, AvatarStatusPending, avatar.Status)
	assert.False(t, avatar.CreatedAt.IsZero())
}

func TestNewAvatarValidation(t *testing.T) {
	_, err := NewAvatar(validJob(), "", "https://x/p.jpg")
	assert.ErrorIs(t, err, ErrEmptyAvatarID)

	job := validJob()
	job.UserID = ""
	_, err = NewAvatar(job, "av1", "https://x/p.jpg")
	assert.ErrorIs(t, err, ErrEmptyAvatarUserID)

	job = validJob()
	job.Name = ""
	_, err = NewAvatar(job, "av1", "https://x/p.jpg")
	assert.ErrorIs(t, err, ErrEmptyAvatarName)
}

func TestAvatarValidateStatus(t *testing.T) {
	avatar, err := NewAvatar(validJob(), "av1", "https://x/p.jpg")
	require.NoError(t, err)

	avatar.Status = AvatarStatus("exploded")
	assert.ErrorIs(t, avatar.Validate(), ErrInvalidAvatarStatus)
}
