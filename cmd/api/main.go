package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"steps-rewards/internal/adapters/repo"
	"steps-rewards/internal/domain"
	"steps-rewards/internal/infra/cache"
	"steps-rewards/internal/infra/config"
	"steps-rewards/internal/infra/db"
	httpinfra "steps-rewards/internal/infra/http"
	applog "steps-rewards/internal/infra/log"
	"steps-rewards/internal/infra/metrics"
	"steps-rewards/internal/infra/queue"
	"steps-rewards/internal/usecase/rewards"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("api: некорректный часовой пояс")
	}

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api: миграция схемы БД")
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
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		runQueue = rabbit
	case redisClient != nil:
		runQueue = queue.NewRedisRunQueue(redisClient, cfg.Queues.Distribution)
	default:
		logger.Fatal().Msg("api: не настроена ни одна очередь (RABBITMQ_URL/REDIS_ADDR)")
	}

	orchCfg, err := rewards.OrchestratorConfigFromConfig(cfg.Rewards)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: некорректная конфигурация наград")
	}
	orchestrator := rewards.NewOrchestrator(repoAdapter, repoAdapter, repoAdapter, lease, orchCfg, logger.With().Str("component", "orchestrator").Logger())

	server := httpinfra.NewServer(logger)

	server.Router.Group(func(protected chi.Router) {
		protected.Use(httpinfra.AuthMiddleware(cfg.Auth.TokenSecret))

		protected.Post("/api/v1/rewards/claim", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			uid := httpinfra.UserID(r)

			var req claimRequest
			if r.ContentLength != 0 {
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, r, http.StatusBadRequest, "invalid request body")
					return
				}
			}
			date, err := resolveClaimDate(req.Date, loc)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
				return
			}

			res, err := orchestrator.RunUser(r.Context(), uid, date)
			if err != nil {
				if errors.Is(err, rewards.ErrUserInactive) {
					metrics.ClaimRequestsTotal.WithLabelValues("precondition_failed").Inc()
					writeError(w, r, http.StatusPreconditionFailed, "пользователь неактивен")
					return
				}
				logger.Error().Err(err).Str("uid", uid).Msg("api: ошибка начисления")
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}

			resp := claimResponse{OK: true, Date: domain.DateKey(date)}
			if res.Status == domain.RewardSkipped {
				resp.OK = false
				resp.Reason = skipReason(res)
				metrics.ClaimRequestsTotal.WithLabelValues(resp.Reason).Inc()
			} else {
				resp.RewardEarned = res.RewardEarned.StringFixed(6)
				resp.Result = newRewardResultDTO(res)
				metrics.ClaimRequestsTotal.WithLabelValues("rewarded").Inc()
			}
			writeJSON(w, resp)
		})

		protected.Get("/api/v1/rewards/summary", func(w http.ResponseWriter, r *http.Request) {
			uid := httpinfra.UserID(r)
			balance, ok, err := repoAdapter.GetBalance(r.Context(), uid)
			if err != nil {
				logger.Error().Err(err).Str("uid", uid).Msg("api: ошибка чтения баланса")
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}
			if !ok {
				balance = domain.Balance{UID: uid}
			}
			writeJSON(w, balanceResponse{
				UID:         uid,
				Personal:    balance.Personal.StringFixed(6),
				Family:      balance.Family.StringFixed(6),
				TotalEarned: balance.TotalEarned.StringFixed(6),
			})
		})
	})

	server.Router.Group(func(admin chi.Router) {
		admin.Use(httpinfra.AdminMiddleware(cfg.Auth.AdminToken))

		admin.Post("/api/v1/admin/rewards/run", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req adminRunRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, r, http.StatusBadRequest, "invalid request body")
				return
			}
			date, err := time.ParseInLocation(domain.DateLayout, req.Date, time.UTC)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
				return
			}
			job := domain.DistributionJob{
				ID:          uuid.NewString(),
				Date:        domain.Day(date),
				RunID:       uuid.NewString(),
				Force:       req.Force,
				RequestedAt: time.Now().UTC(),
				Cause:       domain.RunCauseAdmin,
			}
			if err := runQueue.Enqueue(r.Context(), job); err != nil {
				logger.Error().Err(err).Msg("api: не удалось поставить задачу распределения")
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(adminRunResponse{Date: domain.DateKey(job.Date), RunID: job.RunID})
		})

		admin.Get("/api/v1/admin/rewards/stats", func(w http.ResponseWriter, r *http.Request) {
			date, err := time.ParseInLocation(domain.DateLayout, r.URL.Query().Get("date"), time.UTC)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
				return
			}
			stats, ok, err := repoAdapter.GetStats(r.Context(), date)
			if err != nil {
				logger.Error().Err(err).Msg("api: ошибка чтения статистики")
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}
			if !ok {
				writeError(w, r, http.StatusNotFound, "статистика за дату не найдена")
				return
			}
			writeJSON(w, newStatsDTO(stats))
		})
	})

	go func() {
		if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: HTTP сервер упал")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки HTTP сервера")
	}
	log.Info().Msg("api: остановлен")
}

// resolveClaimDate возвращает дату начисления: по умолчанию вчера в
// опорном часовом поясе — счётчик за вчера уже заморожен.
func resolveClaimDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return domain.Day(time.Now().In(loc).AddDate(0, 0, -1)), nil
	}
	date, err := time.ParseInLocation(domain.DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return domain.Day(date), nil
}

// skipReason переводит skipped-результат в машинную причину для клиента.
func skipReason(res domain.RewardResult) string {
	switch res.Limit.Reason {
	case domain.LimitZero:
		return "no_steps"
	case domain.LimitUnderMin:
		return "below_min_threshold"
	default:
		return "no_rate"
	}
}
