package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"storyreel/internal/model"
)

// RedisQueue keeps jobs in a Redis list so queued work survives a process
// restart. LPUSH/BRPOP keeps first-in-first-out order with one consumer.
type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

func (q *RedisQueue) Push(ctx context.Context, job *model.RenderJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", job.ID, err)
	}
	return q.rdb.LPush(ctx, q.queueName, payload).Err()
}

// Pop blocks until an element exists (BRPOP) or ctx is canceled.
func (q *RedisQueue) Pop(ctx context.Context) (*model.RenderJob, error) {
	res, err := q.rdb.BRPop(ctx, 0, q.queueName).Result()
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("queue: malformed BRPOP reply")
	}

	var job model.RenderJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("queue: unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Close() error { return q.rdb.Close() }
