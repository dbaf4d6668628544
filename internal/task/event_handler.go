package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/velora-app/avatar-pipeline/internal/events"
)

// TaskFactoryEventHandler bridges the producer side and the queue: it turns
// task request events into executable tasks via the registered factories and
// submits them to the runner. Event payloads use the same encoding as
// persisted task payloads, so one factory serves both paths.
type TaskFactoryEventHandler struct {
	factories map[string]TaskFactory
	runner    *TaskRunner
	logger    *slog.Logger
}

// NewTaskFactoryEventHandler creates an event handler backed by the given
// task runner.
func NewTaskFactoryEventHandler(runner *TaskRunner, logger *slog.Logger) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		factories: make(map[string]TaskFactory),
		runner:    runner,
		logger:    logger.With("component", "task_factory_event_handler"),
	}
}

// RegisterFactory associates an event type with the factory that builds
// tasks for it. The same factory should also be registered on the runner so
// recovered tasks of this type can be revived.
func (h *TaskFactoryEventHandler) RegisterFactory(taskType string, factory TaskFactory) {
	h.factories[taskType] = factory
}

// HandleEvent turns a task request event into a task and submits it.
// Events with no registered factory are ignored, not failed: other handlers
// may be responsible for them.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	factory, ok := h.factories[event.Type]
	if !ok {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	task, err := factory.CreateFromPayload(event.Payload)
	if err != nil {
		h.logger.Error("failed to create task from event",
			"error", err,
			"event_type", event.Type,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task from event: %w", err)
	}

	if err := h.runner.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", task.ID(),
			"event_type", event.Type,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task created and submitted",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"event_id", event.ID)
	return nil
}

// Ensure TaskFactoryEventHandler implements events.EventHandler
var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)
