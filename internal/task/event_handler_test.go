package task

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-app/avatar-pipeline/internal/events"
)

func TestTaskFactoryEventHandler_HandleEvent(t *testing.T) {
	t.Parallel()

	t.Run("creates and submits a task", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), testLogger())

		handler := NewTaskFactoryEventHandler(runner, testLogger())
		handler.RegisterFactory("mock_task", &MockTaskFactory{TaskType: "mock_task"})

		payload, err := json.Marshal(MockPayload{Message: "hello"})
		require.NoError(t, err)
		event, err := events.NewTaskRequestEvent("mock_task", json.RawMessage(payload))
		require.NoError(t, err)

		err = handler.HandleEvent(context.Background(), event)
		require.NoError(t, err)

		// The task was durably accepted before HandleEvent returned
		pending, _ := store.GetPendingTasks(context.Background())
		assert.Len(t, pending, 1)
	})

	t.Run("ignores unsupported event types", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), testLogger())
		handler := NewTaskFactoryEventHandler(runner, testLogger())

		event, err := events.NewTaskRequestEvent("unknown_type", map[string]string{"k": "v"})
		require.NoError(t, err)

		err = handler.HandleEvent(context.Background(), event)
		assert.NoError(t, err)

		pending, _ := store.GetPendingTasks(context.Background())
		assert.Empty(t, pending)
	})

	t.Run("propagates submit failures", func(t *testing.T) {
		t.Parallel()

		// A queue with zero capacity rejects every submission
		store := NewMockTaskStore()
		config := DefaultTaskRunnerConfig()
		config.QueueSize = 0
		runner := NewTaskRunner(store, config, testLogger())

		handler := NewTaskFactoryEventHandler(runner, testLogger())
		handler.RegisterFactory("mock_task", &MockTaskFactory{TaskType: "mock_task"})

		event, err := events.NewTaskRequestEvent("mock_task", MockPayload{Message: "doomed"})
		require.NoError(t, err)

		err = handler.HandleEvent(context.Background(), event)
		assert.Error(t, err)
	})
}
