package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-app/avatar-pipeline/internal/domain"
	"github.com/velora-app/avatar-pipeline/internal/events"
	"github.com/velora-app/avatar-pipeline/internal/task"
	"github.com/velora-app/avatar-pipeline/internal/tempfile"
)

// emitterRecorder captures emitted events and can be set to fail.
type emitterRecorder struct {
	mu      sync.Mutex
	events  []*events.TaskRequestEvent
	emitErr error
}

func (e *emitterRecorder) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	if e.emitErr != nil {
		return e.emitErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type serviceFixture struct {
	svc     AvatarService
	files   *tempfile.Manager
	emitter *emitterRecorder
	dir     string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	dir := t.TempDir()
	files, err := tempfile.NewManager(dir, testLogger())
	require.NoError(t, err)

	emitter := &emitterRecorder{}
	svc, err := NewAvatarService(files, emitter, testLogger())
	require.NoError(t, err)

	return &serviceFixture{svc: svc, files: files, emitter: emitter, dir: dir}
}

func validRequest() CreateAvatarRequest {
	return CreateAvatarRequest{
		Image:    strings.NewReader("fake jpeg bytes"),
		MimeType: "image/jpeg",
		Name:     "Jane",
		AgeGroup: domain.AgeGroupAdult,
		Gender:   domain.GenderFemale,
		UserID:   "u1",
	}
}

// stagedFiles lists files currently present in the staging directory.
func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	return matches
}

func TestNewAvatarService_Validation(t *testing.T) {
	t.Parallel()

	files, err := tempfile.NewManager(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, err = NewAvatarService(nil, &emitterRecorder{}, testLogger())
	assert.Error(t, err)

	_, err = NewAvatarService(files, nil, testLogger())
	assert.Error(t, err)

	_, err = NewAvatarService(files, &emitterRecorder{}, nil)
	assert.Error(t, err)
}

func TestRequestAvatarCreation_Success(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	err := f.svc.RequestAvatarCreation(context.Background(), validRequest())
	require.NoError(t, err)

	// One event of the avatar creation type was emitted
	require.Len(t, f.emitter.events, 1)
	event := f.emitter.events[0]
	assert.Equal(t, task.TaskTypeAvatarCreation, event.Type)

	// The event payload is a valid job pointing at the staged file
	var job domain.AvatarJob
	require.NoError(t, event.UnmarshalPayload(&job))
	require.NoError(t, job.Validate())
	assert.Equal(t, "u1", job.UserID)
	assert.Equal(t, "image/jpeg", job.MimeType)

	data, err := os.ReadFile(job.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, "fake jpeg bytes", string(data))
}

func TestRequestAvatarCreation_MissingImage(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	req := validRequest()
	req.Image = nil

	err := f.svc.RequestAvatarCreation(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, f.emitter.events)
}

func TestRequestAvatarCreation_EmptyImage(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	req := validRequest()
	req.Image = strings.NewReader("")

	err := f.svc.RequestAvatarCreation(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, f.emitter.events)
	assert.Empty(t, stagedFiles(t, f.dir), "no staged file should survive a rejected request")
}

func TestRequestAvatarCreation_InvalidJob(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	req := validRequest()
	req.AgeGroup = "toddler"

	err := f.svc.RequestAvatarCreation(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, f.emitter.events)

	// The staged copy was released when validation rejected the job
	assert.Empty(t, stagedFiles(t, f.dir))
}

func TestRequestAvatarCreation_EmitFailure(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.emitter.emitErr = errors.New("no handlers available")

	err := f.svc.RequestAvatarCreation(context.Background(), validRequest())
	require.Error(t, err)

	var svcErr *AvatarServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "emit_event", svcErr.Operation)

	// The job was never accepted, so its staged image must not leak
	assert.Empty(t, stagedFiles(t, f.dir))
}
