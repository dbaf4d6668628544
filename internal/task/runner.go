package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/velora-app/avatar-pipeline/internal/platform/logger"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// TaskTimeout bounds the total execution time of a single task.
	// Zero means no deadline.
	TaskTimeout time.Duration

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		TaskTimeout:            5 * time.Minute,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing. It persists every accepted
// task before handing it to the in-memory queue, recovers unfinished tasks
// at startup, and resets tasks stuck in processing state so a crashed
// worker's job is redelivered rather than lost. Delivery is therefore
// at-least-once; task implementations must tolerate redelivery.
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	factories  map[string]TaskFactory
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	// Apply default check interval if not specified
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		factories:  make(map[string]TaskFactory),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// RegisterFactory associates a task type with the factory that can rebuild
// executable tasks of that type from persisted payloads. Tasks recovered
// from the store with no registered factory cannot be re-run.
func (r *TaskRunner) RegisterFactory(taskType string, factory TaskFactory) {
	r.factories[taskType] = factory
}

// Submit adds a new task to the queue. The task is saved to the store first;
// only after durable acceptance is it offered to the in-memory queue, so
// the producer's contract is fulfilled the moment Submit returns.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		// The task stays pending in the store; recovery or the stuck-task
		// monitor will requeue it later.
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Start initializes the worker pool and begins processing tasks
func (r *TaskRunner) Start() error {
	// Recover unfinished tasks from previous runs
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	// Start worker goroutines
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	// Start goroutine to check for stuck tasks periodically
	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
}

// Recover loads any unfinished tasks from the database and requeues them.
// Tasks found in processing state were interrupted by a crash; they are
// reset to pending before requeueing. This is the redelivery path.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, t := range pendingTasks {
		r.requeue(ctx, t)
	}

	for _, t := range processingTasks {
		if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", t.ID(),
				"task_type", t.Type(),
				"error", err)
			continue
		}
		r.requeue(ctx, t)
	}

	return nil
}

// requeue revives a recovered task through its registered factory and
// offers it to the in-memory queue.
func (r *TaskRunner) requeue(ctx context.Context, t Task) {
	factory, ok := r.factories[t.Type()]
	if !ok {
		r.logger.Error("no factory registered for recovered task",
			"task_id", t.ID(),
			"task_type", t.Type())
		return
	}

	revived, err := factory.CreateFromPayload(t.Payload())
	if err != nil {
		r.logger.Error("failed to rebuild recovered task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark unrecoverable task as failed",
				"task_id", t.ID(),
				"error", updateErr)
		}
		return
	}

	// The revived task carries a fresh ID; persist it so its lifecycle is
	// tracked, and retire the original row.
	if err := r.Submit(ctx, revived); err != nil {
		r.logger.Error("failed to requeue recovered task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
		return
	}
	if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusCompleted, "Superseded by requeued task "+revived.ID().String()); err != nil {
		r.logger.Error("failed to retire recovered task row",
			"task_id", t.ID(),
			"error", err)
	}
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	// Status writes use a fresh context so a task that ran out its
	// deadline can still be marked failed.
	ctx := context.Background()

	execCtx := ctx
	var cancel context.CancelFunc
	if r.config.TaskTimeout > 0 {
		// Bound worst-case resource hold time: provider calls and the
		// training delay are unbounded-latency dependencies otherwise.
		execCtx, cancel = context.WithTimeout(ctx, r.config.TaskTimeout)
		defer cancel()
	}

	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	// Downstream layers (stores, clients) pick the enriched logger up via
	// logger.FromContext.
	ctx = logger.WithLogger(ctx, log)
	execCtx = logger.WithLogger(execCtx, log)

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		log.Error("failed to update task status to processing", "error", err)
		return
	}

	log.Info("processing task")

	err := task.Execute(execCtx)

	if err != nil {
		log.Error("task execution failed", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}

		r.errHandler(task, err)
	} else {
		log.Info("task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			log.Error("failed to update task status to completed", "error", updateErr)
		}
	}
}

// stuckTaskMonitor periodically checks for tasks that have been in
// "processing" state for too long and resets them for redelivery.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}

			if len(stuckTasks) == 0 {
				continue
			}

			r.logger.Info("found stuck tasks", "count", len(stuckTasks))

			for _, t := range stuckTasks {
				if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending,
					"Reset after being stuck in processing state"); err != nil {
					r.logger.Error("failed to reset stuck task status",
						"task_id", t.ID(),
						"task_type", t.Type(),
						"error", err)
					continue
				}
				r.requeue(ctx, t)
			}
		}
	}
}
