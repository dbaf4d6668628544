package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/velora-app/avatar-pipeline/internal/domain"
	"github.com/velora-app/avatar-pipeline/internal/notify"
	"github.com/velora-app/avatar-pipeline/internal/platform/heygen"
	"github.com/velora-app/avatar-pipeline/internal/store"
)

// Common errors
var (
	ErrNilProvider    = errors.New("provider client cannot be nil")
	ErrNilAvatarStore = errors.New("avatar store cannot be nil")
	ErrNilNotifier    = errors.New("notifier cannot be nil")
	ErrNilFileManager = errors.New("file manager cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
)

// User-facing failure messages, keyed off what the provider reported.
const (
	msgUploadFailed      = "failed to upload your photo"
	msgInvalidImage      = "the photo has an invalid format or size"
	msgRateLimited       = "the avatar service is busy, please retry later"
	msgGroupCreateFailed = "failed to create your avatar"
	msgSaveFailed        = "your avatar was trained but could not be saved"
	msgUnexpectedFailure = "avatar creation failed"
)

// ProviderClient is the slice of the provider API the pipeline consumes.
// *heygen.Client satisfies it; tests substitute stubs.
type ProviderClient interface {
	UploadAsset(ctx context.Context, data []byte, contentType, idempotencyKey string) (string, error)
	CreateAvatarGroup(ctx context.Context, req heygen.CreateAvatarGroupRequest) (*heygen.AvatarGroup, error)
	Train(ctx context.Context, groupID string) error
}

// FileManager releases the staged source image owned by a job.
// Release must be idempotent.
type FileManager interface {
	Remove(path string) error
}

// stageError marks a failure that was already classified and notified by
// the stage where it occurred. The outer handler must not emit a second,
// generic notification for it.
type stageError struct {
	stage notify.Stage
	err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error {
	return e.err
}

// AvatarCreationTask drives one avatar job through the provider workflow:
// upload the staged photo, create the photo avatar group, wait out the
// provider's indexing delay and request training, then persist the avatar
// record. Progress is pushed to the owning user at every stage, and the
// staged image is released on every exit path.
type AvatarCreationTask struct {
	id            uuid.UUID
	job           domain.AvatarJob
	provider      ProviderClient
	avatarStore   store.AvatarStore
	notifier      notify.Notifier
	files         FileManager
	trainingDelay time.Duration
	logger        *slog.Logger
	status        TaskStatus
}

// NewAvatarCreationTask creates a new avatar creation task for the given job.
func NewAvatarCreationTask(
	job domain.AvatarJob,
	provider ProviderClient,
	avatarStore store.AvatarStore,
	notifier notify.Notifier,
	files FileManager,
	trainingDelay time.Duration,
	logger *slog.Logger,
) (*AvatarCreationTask, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if avatarStore == nil {
		return nil, ErrNilAvatarStore
	}
	if notifier == nil {
		return nil, ErrNilNotifier
	}
	if files == nil {
		return nil, ErrNilFileManager
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return &AvatarCreationTask{
		id:            uuid.New(),
		job:           job,
		provider:      provider,
		avatarStore:   avatarStore,
		notifier:      notifier,
		files:         files,
		trainingDelay: trainingDelay,
		logger:        logger.With("task_type", TaskTypeAvatarCreation, "user_id", job.UserID),
		status:        TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *AvatarCreationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *AvatarCreationTask) Type() string {
	return TaskTypeAvatarCreation
}

// Payload returns the job serialized as JSON. Recovery rebuilds the task
// from exactly these bytes.
func (t *AvatarCreationTask) Payload() []byte {
	data, err := json.Marshal(t.job)
	if err != nil {
		// If marshal fails, return an empty payload with error logged
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *AvatarCreationTask) Status() TaskStatus {
	return t.status
}

// Execute runs the avatar creation pipeline. Any returned error is
// propagated to the runner so the queue records the failure; by that point
// the user has already been notified and the staged image released.
func (t *AvatarCreationTask) Execute(ctx context.Context) (err error) {
	t.status = TaskStatusProcessing
	t.logger.Info("starting avatar creation task", "task_id", t.id)

	// Release the staged image on every exit path. Remove is idempotent,
	// so double release from a racing cleanup is harmless.
	defer func() {
		if removeErr := t.files.Remove(t.job.ImagePath); removeErr != nil {
			t.logger.Error("failed to release staged image",
				"path", t.job.ImagePath,
				"error", removeErr)
		}
	}()

	// Outer failure handler: stage failures notified the user already;
	// anything else gets the generic error notification here.
	defer func() {
		if err == nil {
			t.status = TaskStatusCompleted
			return
		}
		t.status = TaskStatusFailed
		var stageErr *stageError
		if !errors.As(err, &stageErr) {
			t.notifier.Notify(ctx, t.job.UserID, notify.StageError, notify.StatusError, map[string]any{
				"message":   msgUnexpectedFailure,
				"raw_error": err.Error(),
			})
		}
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	// 1. Upload the staged photo
	imageKey, err := t.uploadStage(ctx)
	if err != nil {
		return err
	}

	// 2. Create the photo avatar group
	group, err := t.createGroupStage(ctx, imageKey)
	if err != nil {
		return err
	}

	// 3. Wait for provider-side indexing, then request training
	if err := t.trainStage(ctx, group.GroupID); err != nil {
		return err
	}

	// 4. Persist the avatar record
	if err := t.persistStage(ctx, group); err != nil {
		return err
	}

	t.logger.Info("avatar creation task completed",
		"task_id", t.id,
		"avatar_id", group.AvatarID)
	return nil
}

// uploadStage reads the staged image and uploads it to the provider.
// Failure is terminal: the user is notified once and no later stage runs.
func (t *AvatarCreationTask) uploadStage(ctx context.Context) (string, error) {
	data, err := os.ReadFile(t.job.ImagePath)
	if err != nil {
		t.notifyStageFailure(ctx, notify.StageUpload, msgUploadFailed, err)
		return "", &stageError{stage: notify.StageUpload, err: fmt.Errorf("read staged image: %w", err)}
	}

	imageKey, err := t.provider.UploadAsset(ctx, data, t.job.MimeType, t.id.String())
	if err != nil {
		t.notifyStageFailure(ctx, notify.StageUpload, msgUploadFailed, err)
		return "", &stageError{stage: notify.StageUpload, err: fmt.Errorf("upload asset: %w", err)}
	}

	t.logger.Info("photo uploaded", "image_key", imageKey)
	t.notifier.Notify(ctx, t.job.UserID, notify.StageUpload, notify.StatusSuccess, map[string]any{
		"image_key": imageKey,
	})
	return imageKey, nil
}

// createGroupStage creates the provider-side avatar group. Provider status
// codes are mapped to user-facing messages; failure is terminal.
func (t *AvatarCreationTask) createGroupStage(ctx context.Context, imageKey string) (*heygen.AvatarGroup, error) {
	group, err := t.provider.CreateAvatarGroup(ctx, heygen.CreateAvatarGroupRequest{
		Name:           t.job.Name,
		ImageKey:       imageKey,
		IdempotencyKey: t.id.String(),
	})
	if err != nil {
		t.notifyStageFailure(ctx, notify.StageGroupCreation, groupCreationMessage(err), err)
		return nil, &stageError{stage: notify.StageGroupCreation, err: fmt.Errorf("create avatar group: %w", err)}
	}

	t.logger.Info("avatar group created",
		"avatar_id", group.AvatarID,
		"group_id", group.GroupID)
	t.notifier.Notify(ctx, t.job.UserID, notify.StageGroupCreation, notify.StatusSuccess, map[string]any{
		"avatar_id":         group.AvatarID,
		"group_id":          group.GroupID,
		"preview_image_url": group.PreviewImageURL,
	})
	return group, nil
}

// trainStage waits out the provider's eventual-consistency window on a
// cancellable timer, then requests training. The provider only acknowledges
// the request, so a failed call is a soft failure: it is logged and the
// pipeline continues. Actual training completion is observed later by an
// out-of-band status check.
func (t *AvatarCreationTask) trainStage(ctx context.Context, groupID string) error {
	if t.trainingDelay > 0 {
		timer := time.NewTimer(t.trainingDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("cancelled while waiting for group indexing: %w", ctx.Err())
		}
	}

	t.notifier.Notify(ctx, t.job.UserID, notify.StageTraining, notify.StatusProgress, map[string]any{
		"group_id": groupID,
	})

	if err := t.provider.Train(ctx, groupID); err != nil {
		t.logger.Warn("training request failed, continuing",
			"group_id", groupID,
			"error", err)
		return nil
	}

	t.logger.Info("training requested", "group_id", groupID)
	return nil
}

// persistStage writes the avatar record. A failed write is terminal: the
// user is told the avatar could not be saved, and the error propagates so
// the queue records the failure. The provider-side group is left as-is.
func (t *AvatarCreationTask) persistStage(ctx context.Context, group *heygen.AvatarGroup) error {
	t.notifier.Notify(ctx, t.job.UserID, notify.StageSaving, notify.StatusProgress, map[string]any{
		"avatar_id": group.AvatarID,
	})

	avatar, err := domain.NewAvatar(t.job, group.AvatarID, group.PreviewImageURL)
	if err != nil {
		t.notifyStageFailure(ctx, notify.StageSaving, msgSaveFailed, err)
		return &stageError{stage: notify.StageSaving, err: fmt.Errorf("build avatar record: %w", err)}
	}

	if err := t.avatarStore.Create(ctx, avatar); err != nil {
		if store.IsDuplicateError(err) {
			// A redelivered job already persisted this avatar. Treat the
			// record as created and finish normally.
			t.logger.Warn("avatar record already exists, treating as saved",
				"avatar_id", group.AvatarID)
		} else {
			t.notifyStageFailure(ctx, notify.StageSaving, msgSaveFailed, err)
			return &stageError{stage: notify.StageSaving, err: fmt.Errorf("save avatar record: %w", err)}
		}
	}

	t.logger.Info("avatar record saved", "avatar_id", group.AvatarID)
	t.notifier.Notify(ctx, t.job.UserID, notify.StageComplete, notify.StatusSuccess, map[string]any{
		"avatar_id":         group.AvatarID,
		"preview_image_url": group.PreviewImageURL,
	})
	return nil
}

// notifyStageFailure pushes a stage-scoped error notification.
func (t *AvatarCreationTask) notifyStageFailure(ctx context.Context, stage notify.Stage, message string, cause error) {
	t.notifier.Notify(ctx, t.job.UserID, stage, notify.StatusError, map[string]any{
		"message":   message,
		"raw_error": cause.Error(),
	})
}

// groupCreationMessage maps a provider error to the message shown to the
// user.
func groupCreationMessage(err error) string {
	if apiErr, ok := heygen.AsAPIError(err); ok {
		switch apiErr.StatusCode {
		case http.StatusBadRequest:
			return msgInvalidImage
		case http.StatusTooManyRequests:
			return msgRateLimited
		}
	}
	return msgGroupCreateFailed
}
