package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"steps-rewards/internal/domain"
)

// RedisRunQueue реализует очередь задач распределения на базе Redis lists.
// Запасной вариант для стендов без RabbitMQ: доставка без подтверждений,
// ack(false) просто возвращает задачу в хвост.
type RedisRunQueue struct {
	client *redis.Client
	key    string
}

// NewRedisRunQueue создаёт очередь по указанному ключу.
func NewRedisRunQueue(client *redis.Client, key string) *RedisRunQueue {
	return &RedisRunQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisRunQueue) Enqueue(ctx context.Context, job domain.DistributionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RedisRunQueue) Receive(ctx context.Context) (domain.DistributionJob, domain.DistributionAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.DistributionJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.DistributionJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.DistributionJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.DistributionJob{}, nil, errors.New("redis queue: unexpected response")
		}
		var job domain.DistributionJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.DistributionJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.Enqueue(context.WithoutCancel(ctx), job)
		}
		return job, ack, nil
	}
}
