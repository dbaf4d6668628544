package task

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/velora-app/avatar-pipeline/internal/domain"
	"github.com/velora-app/avatar-pipeline/internal/notify"
	"github.com/velora-app/avatar-pipeline/internal/store"
)

// AvatarCreationTaskFactory builds avatar creation tasks with their
// dependencies pre-wired. The producer side uses CreateTask to turn an
// accepted job into a queueable task; the runner uses CreateFromPayload to
// revive persisted tasks after a restart.
type AvatarCreationTaskFactory struct {
	provider      ProviderClient
	avatarStore   store.AvatarStore
	notifier      notify.Notifier
	files         FileManager
	trainingDelay time.Duration
	logger        *slog.Logger
}

// NewAvatarCreationTaskFactory creates a factory for avatar creation tasks.
func NewAvatarCreationTaskFactory(
	provider ProviderClient,
	avatarStore store.AvatarStore,
	notifier notify.Notifier,
	files FileManager,
	trainingDelay time.Duration,
	logger *slog.Logger,
) (*AvatarCreationTaskFactory, error) {
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

	return &AvatarCreationTaskFactory{
		provider:      provider,
		avatarStore:   avatarStore,
		notifier:      notifier,
		files:         files,
		trainingDelay: trainingDelay,
		logger:        logger,
	}, nil
}

// CreateTask builds an executable task for the given job.
func (f *AvatarCreationTaskFactory) CreateTask(job domain.AvatarJob) (Task, error) {
	return NewAvatarCreationTask(
		job,
		f.provider,
		f.avatarStore,
		f.notifier,
		f.files,
		f.trainingDelay,
		f.logger,
	)
}

// CreateFromPayload rebuilds a task from a persisted payload. The payload
// is the JSON-serialized job, exactly what AvatarCreationTask.Payload
// produced when the task was first saved.
func (f *AvatarCreationTaskFactory) CreateFromPayload(payload []byte) (Task, error) {
	var job domain.AvatarJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal avatar creation payload: %w", err)
	}

	return f.CreateTask(job)
}
