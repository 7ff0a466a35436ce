package rewards

import (
	"testing"

	"steps-rewards/internal/domain"
	"steps-rewards/internal/infra/config"
)

func baseRewardsConfig() config.RewardsConfig {
	return config.RewardsConfig{
		MinThreshold:      1000,
		CapBase:           10000,
		CapMid:            15000,
		CapPremium:        25000,
		MultiplierBase:    "1.0",
		MultiplierMid:     "1.25",
		MultiplierPremium: "1.5",
		FamilyShare:       "0.8",
		AdultAge:          14,
		PeriodPool:        "500000000000",
		PeriodDays:        180,
		BatchLimit:        500,
		BatchFlushAt:      400,
	}
}

func TestPolicyFromConfig(t *testing.T) {
	policy, err := PolicyFromConfig(baseRewardsConfig())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if policy.DailyCap(domain.TierPremium) != 25000 {
		t.Fatalf("потолок premium потерялся: %d", policy.DailyCap(domain.TierPremium))
	}
	if got := policy.Multiplier(domain.TierMid).String(); got != "1.25" {
		t.Fatalf("множитель mid потерялся: %s", got)
	}
	if policy.AdultAge != 14 {
		t.Fatalf("возраст взрослого потерялся: %d", policy.AdultAge)
	}
}

func TestPolicyFromConfigRejectsBadShare(t *testing.T) {
	cfg := baseRewardsConfig()
	cfg.FamilyShare = "1.5"
	if _, err := PolicyFromConfig(cfg); err == nil {
		t.Fatalf("доля больше единицы обязана отклоняться")
	}

	cfg.FamilyShare = "не число"
	if _, err := PolicyFromConfig(cfg); err == nil {
		t.Fatalf("мусор в доле обязан отклоняться")
	}
}

func TestPoolFromConfigOverrides(t *testing.T) {
	cfg := baseRewardsConfig()
	cfg.PoolOverrides = "2025-06-01=1000, 2025-06-02=2500.5"

	pool, err := PoolFromConfig(cfg)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(pool.Overrides) != 2 {
		t.Fatalf("ожидали два переопределения, получили %d", len(pool.Overrides))
	}
	if got := pool.Overrides["2025-06-02"].String(); got != "2500.5" {
		t.Fatalf("переопределение не распарсилось: %s", got)
	}
}

func TestPoolFromConfigRejectsBadOverrides(t *testing.T) {
	for _, bad := range []string{
		"2025-06-01",           // нет суммы
		"когда-нибудь=1000",    // не дата
		"2025-06-01=миллион",   // не число
	} {
		cfg := baseRewardsConfig()
		cfg.PoolOverrides = bad
		if _, err := PoolFromConfig(cfg); err == nil {
			t.Fatalf("ожидали ошибку для %q", bad)
		}
	}
}

func TestOrchestratorConfigKeepsFlushMargin(t *testing.T) {
	cfg := baseRewardsConfig()
	cfg.BatchFlushAt = 700 // выше жёсткого потолка

	orchCfg, err := OrchestratorConfigFromConfig(cfg)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if orchCfg.FlushAt >= cfg.BatchLimit {
		t.Fatalf("порог сброса обязан быть строго меньше потолка: %d >= %d", orchCfg.FlushAt, cfg.BatchLimit)
	}
}
