package queue

import (
	"context"

	"storyreel/internal/model"

	"storyreel/internal/pkg/errors"
)

// MemoryQueue is a bounded single-consumer channel. The channel both
// orders jobs and wakes the worker, so there is no unsynchronized
// "queue just became non-empty, start a worker" check anywhere.
type MemoryQueue struct {
	ch chan *model.RenderJob
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryQueue{ch: make(chan *model.RenderJob, capacity)}
}

func (q *MemoryQueue) Push(ctx context.Context, job *model.RenderJob) error {
	select {
	case q.ch <- job:
		return nil
	default:
		return errors.New(errors.CodeUnavailable, "job queue is full")
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (*model.RenderJob, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job := <-q.ch:
		return job, nil
	}
}

func (q *MemoryQueue) Close() error { return nil }
