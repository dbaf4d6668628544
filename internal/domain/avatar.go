package domain

import (
	"errors"
	"time"
)

// AvatarStatus represents the training state of a persisted avatar.
type AvatarStatus string

// Possible avatar status values. An avatar is persisted as pending when the
// provider has acknowledged the training request; a later out-of-band status
// check moves it to ready or failed.
const (
	AvatarStatusPending AvatarStatus = "pending"
	AvatarStatusReady   AvatarStatus = "ready"
	AvatarStatusFailed  AvatarStatus = "failed"
)

// Common validation errors for Avatar
var (
	ErrEmptyAvatarID       = errors.New("avatar ID cannot be empty")
	ErrEmptyAvatarUserID   = errors.New("avatar user ID cannot be empty")
	ErrEmptyAvatarName     = errors.New("avatar name cannot be empty")
	ErrInvalidAvatarStatus = errors.New("invalid avatar status")
)

// Avatar represents a trained photo avatar owned by a user. Identity is the
// provider-assigned AvatarID scoped to the owning UserID.
type Avatar struct {
	AvatarID        string       `json:"avatar_id"`
	UserID          string       `json:"user_id"`
	AvatarName      string       `json:"avatar_name"`
	Gender          Gender       `json:"gender"`
	PreviewImageURL string       `json:"preview_image_url"`
	PreviewVideoURL string       `json:"preview_video_url"`
	Default         bool         `json:"default"`
	Ethnicity       string       `json:"ethnicity"`
	AgeGroup        AgeGroup     `json:"age_group"`
	Status          AvatarStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// NewAvatar builds the avatar record persisted after a successful training
// run. The preview video URL stays empty until a later async enrichment
// fills it in, and the status starts as pending.
func NewAvatar(job AvatarJob, avatarID, previewImageURL string) (*Avatar, error) {
	avatar := &Avatar{
		AvatarID:        avatarID,
		UserID:          job.UserID,
		AvatarName:      job.Name,
		Gender:          job.Gender,
		PreviewImageURL: previewImageURL,
		PreviewVideoURL: "",
		Default:         false,
		Ethnicity:       job.Ethnicity,
		AgeGroup:        job.AgeGroup,
		Status:          AvatarStatusPending,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	if err := avatar.Validate(); err != nil {
		return nil, err
	}

	return avatar, nil
}

// Validate checks if the Avatar has valid data.
// Returns an error if any field fails validation.
func (a *Avatar) Validate() error {
	if a.AvatarID == "" {
		return ErrEmptyAvatarID
	}

	if a.UserID == "" {
		return ErrEmptyAvatarUserID
	}

	if a.AvatarName == "" {
		return ErrEmptyAvatarName
	}

	if !isValidAvatarStatus(a.Status) {
		return ErrInvalidAvatarStatus
	}

	return nil
}

// isValidAvatarStatus checks if the given status is a valid AvatarStatus.
func isValidAvatarStatus(status AvatarStatus) bool {
	switch status {
	case AvatarStatusPending, AvatarStatusReady, AvatarStatusFailed:
		return true
	default:
		return false
	}
}
