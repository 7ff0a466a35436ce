package config

import (
	"testing"

	"github.com/kelseyhightower/envconfig"
)

func TestDefaults(t *testing.T) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Fatalf("порт по умолчанию: %d", cfg.Port)
	}
	if cfg.Queues.Distribution != "reward_runs" {
		t.Fatalf("ключ очереди по умолчанию: %q", cfg.Queues.Distribution)
	}
	if cfg.Rewards.MinThreshold != 1000 || cfg.Rewards.CapPremium != 25000 {
		t.Fatalf("правила по умолчанию разошлись: %+v", cfg.Rewards)
	}
	if cfg.Rewards.PeriodPool != "500000000000" || cfg.Rewards.PeriodDays != 180 {
		t.Fatalf("пул по умолчанию разошёлся: %+v", cfg.Rewards)
	}
	// Запас сброса обязан оставлять место до жёсткого потолка группы.
	if cfg.Rewards.BatchFlushAt >= cfg.Rewards.BatchLimit {
		t.Fatalf("порог сброса не ниже потолка: %d >= %d", cfg.Rewards.BatchFlushAt, cfg.Rewards.BatchLimit)
	}
	if cfg.Rewards.ScheduleHour != 3 {
		t.Fatalf("час запуска по умолчанию: %d", cfg.Rewards.ScheduleHour)
	}
}
