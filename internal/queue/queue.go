// Package queue provides the FIFO job queue feeding the single render
// worker. Two backends share the contract: an in-process bounded channel
// (the default) and a Redis list for operators who want jobs to survive a
// restart.
package queue

import (
	"context"
	"fmt"

	"storyreel/internal/config"
	"storyreel/internal/model"

	"github.com/redis/go-redis/v9"
)

// Queue is a first-in-first-out job queue with a single consumer.
type Queue interface {
	// Push appends a job to the tail.
	Push(ctx context.Context, job *model.RenderJob) error
	// Pop blocks until a job is available or ctx is canceled. Exactly one
	// goroutine may call Pop.
	Pop(ctx context.Context) (*model.RenderJob, error)
	Close() error
}

// New builds the queue selected by configuration.
func New(cfg config.QueueConfig) (Queue, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryQueue(cfg.Capacity), nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return NewRedisQueue(rdb, cfg.QueueName), nil

	default:
		return nil, fmt.Errorf("queue: unknown backend: %s", cfg.Backend)
	}
}
