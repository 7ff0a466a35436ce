package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"steps-rewards/internal/domain"
	"steps-rewards/internal/infra/cache"
	"steps-rewards/internal/infra/config"
	applog "steps-rewards/internal/infra/log"
	"steps-rewards/internal/infra/queue"
)

// onceTTL держит маркер "за эту дату уже ставили задачу" двое суток:
// дольше любого разумного ретрая, короче бесконечности.
const onceTTL = 48 * time.Hour

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "scheduler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("scheduler: некорректный часовой пояс")
	}

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("scheduler: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	onceCache := cache.NewRedis(redisClient)

	var runQueue domain.DistributionQueue
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitRunQueue(cfg.RabbitURL, cfg.Queues.Distribution)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		runQueue = rabbit
	} else {
		runQueue = queue.NewRedisRunQueue(redisClient, cfg.Queues.Distribution)
	}

	logger.Info().Int("hour", cfg.Rewards.ScheduleHour).Str("tz", cfg.TZ).Msg("scheduler: запущен")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановлен")
			return
		case <-ticker.C:
		}

		now := time.Now().In(loc)
		if now.Hour() < cfg.Rewards.ScheduleHour {
			continue
		}
		// Распределяем за вчера: счётчики вчерашнего дня уже заморожены.
		date := domain.Day(now.AddDate(0, 0, -1))

		key := "reward:scheduled:" + domain.DateKey(date)
		err := onceCache.Once(key, onceTTL, func() error {
			job := domain.DistributionJob{
				ID:          uuid.NewString(),
				Date:        date,
				RunID:       uuid.NewString(),
				RequestedAt: time.Now().UTC(),
				Cause:       domain.RunCauseScheduled,
			}
			if err := runQueue.Enqueue(ctx, job); err != nil {
				return err
			}
			logger.Info().Str("date", domain.DateKey(date)).Str("run_id", job.RunID).Msg("scheduler: задача распределения поставлена")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Str("date", domain.DateKey(date)).Msg("scheduler: не удалось поставить задачу")
		}
	}
}
