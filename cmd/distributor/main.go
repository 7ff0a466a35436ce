package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"steps-rewards/internal/adapters/repo"
	"steps-rewards/internal/domain"
	"steps-rewards/internal/infra/cache"
	"steps-rewards/internal/infra/config"
	"steps-rewards/internal/infra/db"
	applog "steps-rewards/internal/infra/log"
	"steps-rewards/internal/infra/metrics"
	"steps-rewards/internal/infra/queue"
	"steps-rewards/internal/usecase/rewards"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "distributor")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("distributor: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("distributor: миграция схемы БД")
	}

	var (
		redisClient *redis.Client
		lease       domain.RunLease
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		lease = cache.NewRunLease(redisClient)
	}

	var runQueue domain.DistributionQueue
	switch {
	case cfg.RabbitURL != "":
		rabbit, err := queue.NewRabbitRunQueue(cfg.RabbitURL, cfg.Queues.Distribution)
		if err != nil {
			logger.Fatal().Err(err).Msg("distributor: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		runQueue = rabbit
	case redisClient != nil:
		runQueue = queue.NewRedisRunQueue(redisClient, cfg.Queues.Distribution)
	default:
		logger.Fatal().Msg("distributor: не настроена ни одна очередь (RABBITMQ_URL/REDIS_ADDR)")
	}

	orchCfg, err := rewards.OrchestratorConfigFromConfig(cfg.Rewards)
	if err != nil {
		logger.Fatal().Err(err).Msg("distributor: некорректная конфигурация наград")
	}
	orchestrator := rewards.NewOrchestrator(repoAdapter, repoAdapter, repoAdapter, lease, orchCfg, logger.With().Str("component", "orchestrator").Logger())

	logger.Info().Str("queue", cfg.Queues.Distribution).Msg("distributor: запущен")

	for {
		job, ack, err := runQueue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("distributor: остановлен")
				return
			}
			logger.Error().Err(err).Msg("distributor: ошибка чтения очереди")
			continue
		}

		stats, err := orchestrator.Run(ctx, job)
		switch {
		case err == nil:
			logger.Info().
				Str("date", domain.DateKey(job.Date)).
				Str("run_id", job.RunID).
				Int64("users_rewarded", stats.UsersRewarded).
				Msg("distributor: запуск завершён")
			ackOrLog(logger, ack, true)
		case errors.Is(err, rewards.ErrAlreadyDistributed):
			// Дубликат задачи на уже распределённую дату — не ошибка.
			logger.Warn().Str("date", domain.DateKey(job.Date)).Msg("distributor: дата уже распределена, задача снята")
			ackOrLog(logger, ack, true)
		case errors.Is(err, rewards.ErrRunInProgress):
			logger.Warn().Str("date", domain.DateKey(job.Date)).Msg("distributor: запуск уже идёт, задача вернётся в очередь")
			ackOrLog(logger, ack, false)
		default:
			// Ошибка хранилища: запуск прерван целиком, ретрай безопасен
			// благодаря идемпотентности по runId.
			logger.Error().Err(err).Str("date", domain.DateKey(job.Date)).Msg("distributor: запуск прерван")
			ackOrLog(logger, ack, false)
		}
	}
}

func ackOrLog(logger zerolog.Logger, ack domain.DistributionAckFunc, success bool) {
	if err := ack(success); err != nil {
		logger.Error().Err(err).Msg("distributor: не удалось подтвердить задачу")
	}
}
