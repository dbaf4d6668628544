package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_EnqueueAndConsume(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(2, testLogger())

	task := CreateMockTaskWithPayload("queued task")
	require.NoError(t, queue.Enqueue(task))

	select {
	case got := <-queue.GetChannel():
		assert.Equal(t, task.ID(), got.ID())
	default:
		t.Fatal("expected a task to be readable from the queue channel")
	}
}

func TestTaskQueue_Full(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, testLogger())

	require.NoError(t, queue.Enqueue(CreateMockTaskWithPayload("first")))

	// Producers never block on a full queue; they get an error instead
	err := queue.Enqueue(CreateMockTaskWithPayload("second"))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestTaskQueue_Closed(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(2, testLogger())
	task := CreateMockTaskWithPayload("survivor")
	require.NoError(t, queue.Enqueue(task))

	queue.Close()

	err := queue.Enqueue(CreateMockTaskWithPayload("rejected"))
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Already-queued tasks remain readable after close
	got, ok := <-queue.GetChannel()
	require.True(t, ok)
	assert.Equal(t, task.ID(), got.ID())

	_, ok = <-queue.GetChannel()
	assert.False(t, ok, "channel should be drained and closed")
}

func TestTaskQueue_CloseTwice(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, testLogger())
	queue.Close()
	assert.NotPanics(t, func() { queue.Close() })
}
