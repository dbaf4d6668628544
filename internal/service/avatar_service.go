package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/velora-app/avatar-pipeline/internal/domain"
	"github.com/velora-app/avatar-pipeline/internal/events"
	"github.com/velora-app/avatar-pipeline/internal/task"
	"github.com/velora-app/avatar-pipeline/internal/tempfile"
)

// CreateAvatarRequest carries everything needed to start an avatar creation.
// Image is the raw photo stream; the service stages it locally before the
// request is accepted.
type CreateAvatarRequest struct {
	Image     io.Reader
	MimeType  string
	Name      string
	AgeGroup  domain.AgeGroup
	Gender    domain.Gender
	UserID    string
	Ethnicity string
}

// AvatarService accepts avatar creation requests into the asynchronous
// pipeline.
type AvatarService interface {
	// RequestAvatarCreation stages the source image and enqueues the
	// creation job. When it returns nil the job has been durably accepted;
	// progress is delivered out-of-band through the notifier.
	RequestAvatarCreation(ctx context.Context, req CreateAvatarRequest) error
}

// avatarServiceImpl implements the AvatarService interface
type avatarServiceImpl struct {
	files   *tempfile.Manager
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewAvatarService creates a new AvatarService.
func NewAvatarService(
	files *tempfile.Manager,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (AvatarService, error) {
	if files == nil {
		return nil, errors.New("tempfile manager cannot be nil")
	}
	if emitter == nil {
		return nil, errors.New("event emitter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &avatarServiceImpl{
		files:   files,
		emitter: emitter,
		logger:  logger.With("component", "avatar_service"),
	}, nil
}

// RequestAvatarCreation stages the image, validates the job, and emits the
// task request event. The staged file is owned by the job from the moment
// the event is accepted; if acceptance fails, the service releases it.
func (s *avatarServiceImpl) RequestAvatarCreation(ctx context.Context, req CreateAvatarRequest) error {
	if req.Image == nil {
		return fmt.Errorf("%w: image is required", ErrInvalidRequest)
	}

	imagePath, err := s.files.Stage(req.Image, extensionForMime(req.MimeType))
	if err != nil {
		if errors.Is(err, tempfile.ErrEmptyImage) {
			return fmt.Errorf("%w: image is empty", ErrInvalidRequest)
		}
		return NewAvatarServiceError("stage_image", "failed to stage source image", err)
	}

	job := domain.AvatarJob{
		ImagePath: imagePath,
		AgeGroup:  req.AgeGroup,
		Name:      req.Name,
		Gender:    req.Gender,
		UserID:    req.UserID,
		Ethnicity: req.Ethnicity,
		MimeType:  req.MimeType,
	}

	if err := job.Validate(); err != nil {
		s.releaseStagedImage(imagePath)
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	event, err := events.NewTaskRequestEvent(task.TaskTypeAvatarCreation, job)
	if err != nil {
		s.releaseStagedImage(imagePath)
		return NewAvatarServiceError("emit_event", "failed to build task request event", err)
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.releaseStagedImage(imagePath)
		return NewAvatarServiceError("emit_event", "failed to emit task request event", err)
	}

	s.logger.Info("avatar creation accepted",
		"user_id", job.UserID,
		"event_id", event.ID,
		"image_path", imagePath)
	return nil
}

// releaseStagedImage removes a staged file whose job was never accepted.
func (s *avatarServiceImpl) releaseStagedImage(path string) {
	if err := s.files.Remove(path); err != nil {
		s.logger.Error("failed to release staged image after rejected request",
			"path", path,
			"error", err)
	}
}

// extensionForMime picks a file extension for the staged copy of the image.
func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".img"
	}
}
