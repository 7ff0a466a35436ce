package rewards

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
	"steps-rewards/internal/infra/config"
)

// PolicyFromConfig собирает правила из конфигурации окружения.
func PolicyFromConfig(cfg config.RewardsConfig) (Policy, error) {
	multBase, err := decimal.NewFromString(cfg.MultiplierBase)
	if err != nil {
		return Policy{}, fmt.Errorf("множитель base: %w", err)
	}
	multMid, err := decimal.NewFromString(cfg.MultiplierMid)
	if err != nil {
		return Policy{}, fmt.Errorf("множитель mid: %w", err)
	}
	multPremium, err := decimal.NewFromString(cfg.MultiplierPremium)
	if err != nil {
		return Policy{}, fmt.Errorf("множитель premium: %w", err)
	}
	familyShare, err := decimal.NewFromString(cfg.FamilyShare)
	if err != nil {
		return Policy{}, fmt.Errorf("семейная доля: %w", err)
	}
	if familyShare.IsNegative() || familyShare.GreaterThan(decimal.NewFromInt(1)) {
		return Policy{}, fmt.Errorf("семейная доля вне [0,1]: %s", cfg.FamilyShare)
	}

	return Policy{
		DailyCaps: map[domain.SubscriptionTier]int64{
			domain.TierBase:    cfg.CapBase,
			domain.TierMid:     cfg.CapMid,
			domain.TierPremium: cfg.CapPremium,
		},
		DefaultCap:   cfg.CapBase,
		MinThreshold: cfg.MinThreshold,
		Multipliers: map[domain.SubscriptionTier]decimal.Decimal{
			domain.TierBase:    multBase,
			domain.TierMid:     multMid,
			domain.TierPremium: multPremium,
		},
		DefaultMultiplier: multBase,
		FamilyShareAdult:  familyShare,
		AdultAge:          cfg.AdultAge,
	}, nil
}

// PoolFromConfig собирает расписание пула, включая точечные переопределения
// вида "2025-06-01=1000,2025-06-02=2000".
func PoolFromConfig(cfg config.RewardsConfig) (PoolSchedule, error) {
	pool, err := decimal.NewFromString(cfg.PeriodPool)
	if err != nil {
		return PoolSchedule{}, fmt.Errorf("пул периода: %w", err)
	}

	overrides := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(cfg.PoolOverrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return PoolSchedule{}, fmt.Errorf("переопределение пула %q: ожидался формат дата=сумма", pair)
		}
		if _, err := time.Parse(domain.DateLayout, key); err != nil {
			return PoolSchedule{}, fmt.Errorf("переопределение пула %q: %w", pair, err)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return PoolSchedule{}, fmt.Errorf("переопределение пула %q: %w", pair, err)
		}
		overrides[key] = amount
	}

	return PoolSchedule{
		PeriodPool: pool,
		PeriodDays: cfg.PeriodDays,
		Overrides:  overrides,
	}, nil
}

// OrchestratorConfigFromConfig — готовая конфигурация оркестратора.
func OrchestratorConfigFromConfig(cfg config.RewardsConfig) (OrchestratorConfig, error) {
	policy, err := PolicyFromConfig(cfg)
	if err != nil {
		return OrchestratorConfig{}, err
	}
	pool, err := PoolFromConfig(cfg)
	if err != nil {
		return OrchestratorConfig{}, err
	}
	flushAt := cfg.BatchFlushAt
	if cfg.BatchLimit > 0 && flushAt >= cfg.BatchLimit {
		// Запас обязан быть строго меньше жёсткого потолка группы.
		flushAt = cfg.BatchLimit - 1
	}
	return OrchestratorConfig{
		Policy:       policy,
		Pool:         pool,
		ScanParallel: cfg.ScanParallel,
		FlushAt:      flushAt,
		LeaseTTL:     cfg.LeaseTTL,
	}, nil
}
