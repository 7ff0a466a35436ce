package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Auth struct {
		TokenSecret string `envconfig:"AUTH_TOKEN_SECRET"`
		AdminToken  string `envconfig:"ADMIN_TOKEN"`
	} `envconfig:""`

	Queues struct {
		Distribution string `envconfig:"DISTRIBUTION_QUEUE_KEY" default:"reward_runs"`
	} `envconfig:""`

	Rewards RewardsConfig `envconfig:""`
}

// RewardsConfig — правила распределения наград. Таблицы тарифов и пула
// заданы окружением, чтобы тесты и стенды могли подставить свои.
type RewardsConfig struct {
	MinThreshold int64 `envconfig:"REWARD_MIN_THRESHOLD" default:"1000"`

	CapBase    int64 `envconfig:"REWARD_CAP_BASE" default:"10000"`
	CapMid     int64 `envconfig:"REWARD_CAP_MID" default:"15000"`
	CapPremium int64 `envconfig:"REWARD_CAP_PREMIUM" default:"25000"`

	MultiplierBase    string `envconfig:"REWARD_MULTIPLIER_BASE" default:"1.0"`
	MultiplierMid     string `envconfig:"REWARD_MULTIPLIER_MID" default:"1.25"`
	MultiplierPremium string `envconfig:"REWARD_MULTIPLIER_PREMIUM" default:"1.5"`

	FamilyShare string `envconfig:"REWARD_FAMILY_SHARE" default:"0.8"`
	AdultAge    int    `envconfig:"REWARD_ADULT_AGE" default:"14"`

	PeriodPool string `envconfig:"REWARD_PERIOD_POOL" default:"500000000000"`
	PeriodDays int64  `envconfig:"REWARD_PERIOD_DAYS" default:"180"`
	// PoolOverrides — точечные пулы на даты: "2025-06-01=1000,2025-06-02=2000".
	PoolOverrides string `envconfig:"REWARD_POOL_OVERRIDES"`

	// BatchLimit — жёсткий потолок операций в атомарной группе бэкенда.
	BatchLimit int `envconfig:"REWARD_BATCH_LIMIT" default:"500"`
	// BatchFlushAt — запас, при котором группа сбрасывается досрочно.
	BatchFlushAt int `envconfig:"REWARD_BATCH_FLUSH_AT" default:"400"`

	ScanParallel int           `envconfig:"REWARD_SCAN_PARALLEL" default:"8"`
	LeaseTTL     time.Duration `envconfig:"REWARD_LEASE_TTL" default:"10m"`

	// ScheduleHour — час (в TZ), после которого шедулер запускает
	// распределение за вчера.
	ScheduleHour int `envconfig:"REWARD_SCHEDULE_HOUR" default:"3"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
