package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"steps-rewards/internal/domain"
)

const leaseKeyPrefix = "reward:lease:"

// RunLease — аренда запуска распределения на дату поверх Redis SetNX.
// TTL страхует от вечно висящей аренды после падения воркера.
type RunLease struct {
	client *redis.Client
}

// NewRunLease создаёт аренду.
func NewRunLease(client *redis.Client) *RunLease {
	return &RunLease{client: client}
}

var _ domain.RunLease = (*RunLease)(nil)

// Acquire пытается захватить аренду на дату.
func (l *RunLease) Acquire(ctx context.Context, date time.Time, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, leaseKey(date), "1", ttl).Result()
}

// Release освобождает аренду.
func (l *RunLease) Release(ctx context.Context, date time.Time) error {
	return l.client.Del(ctx, leaseKey(date)).Err()
}

func leaseKey(date time.Time) string {
	return leaseKeyPrefix + domain.DateKey(date)
}
