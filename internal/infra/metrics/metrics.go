package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	DistributionRunSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "distribution_run_seconds",
		Help:    "Длительность запуска распределения наград",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"status"})

	DistributionRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distribution_runs_total",
		Help: "Количество запусков распределения по статусам",
	}, []string{"status"})

	RewardDistributedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reward_distributed_total",
		Help: "Суммарно распределено наград",
	})

	ClaimRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_requests_total",
		Help: "Запросы синхронного начисления по результату",
	}, []string{"outcome"})

	BatchFlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reward_batch_flushes_total",
		Help: "Количество закоммиченных групп записей",
	})

	BatchOpsPerFlush = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reward_batch_ops_per_flush",
		Help:    "Число операций в закоммиченной группе",
		Buckets: []float64{1, 5, 10, 50, 100, 200, 300, 400, 500},
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики в указанном реестре.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		DistributionRunSeconds,
		DistributionRunsTotal,
		RewardDistributedTotal,
		ClaimRequestsTotal,
		BatchFlushesTotal,
		BatchOpsPerFlush,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveDistributionRun записывает длительность и статус запуска.
func ObserveDistributionRun(status string, start time.Time) {
	if status == "" {
		status = "unknown"
	}
	DistributionRunSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
	DistributionRunsTotal.WithLabelValues(status).Inc()
}

// AddRewardDistributed учитывает распределённую сумму.
func AddRewardDistributed(amount float64) {
	if amount > 0 {
		RewardDistributedTotal.Add(amount)
	}
}

// ObserveBatchFlush учитывает закоммиченную группу записей.
func ObserveBatchFlush(ops int) {
	BatchFlushesTotal.Inc()
	BatchOpsPerFlush.Observe(float64(ops))
}

// ObserveNetworkRequest записывает длительность запроса к внешней системе.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
