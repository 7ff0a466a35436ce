package rewards

import (
	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
)

// rewardPrecision — число знаков после запятой в начислениях. Округление до
// этой точности финально: именно округлённая сумма попадает в баланс.
const rewardPrecision = 6

// ratePrecision — внутренняя точность суточной ставки. Выше точности
// начислений, чтобы деление большого пула не теряло значимые знаки.
const ratePrecision = 12

// Policy — правила нормализации активности и дележа награды. Все таблицы
// (потолки, множители, порог, доли) приходят из конфигурации и инжектятся
// явно, глобального состояния у движка нет.
type Policy struct {
	// DailyCaps — суточный потолок зачтённых шагов по тарифам.
	DailyCaps map[domain.SubscriptionTier]int64
	// DefaultCap применяется, если тарифа нет в таблице.
	DefaultCap int64
	// MinThreshold — минимальная зачтённая активность для участия.
	MinThreshold int64
	// Multipliers — множители веса по тарифам, строго возрастают.
	Multipliers map[domain.SubscriptionTier]decimal.Decimal
	// DefaultMultiplier применяется для неизвестного тарифа.
	DefaultMultiplier decimal.Decimal
	// FamilyShareAdult — доля взрослого участника семьи, уходящая в семью.
	FamilyShareAdult decimal.Decimal
	// AdultAge — возраст, с которого появляется личная доля.
	AdultAge int
}

// DefaultPolicy возвращает боевые значения правил.
func DefaultPolicy() Policy {
	return Policy{
		DailyCaps: map[domain.SubscriptionTier]int64{
			domain.TierBase:    10000,
			domain.TierMid:     15000,
			domain.TierPremium: 25000,
		},
		DefaultCap:   10000,
		MinThreshold: 1000,
		Multipliers: map[domain.SubscriptionTier]decimal.Decimal{
			domain.TierBase:    decimal.RequireFromString("1.0"),
			domain.TierMid:     decimal.RequireFromString("1.25"),
			domain.TierPremium: decimal.RequireFromString("1.5"),
		},
		DefaultMultiplier: decimal.RequireFromString("1.0"),
		FamilyShareAdult:  decimal.RequireFromString("0.8"),
		AdultAge:          14,
	}
}

// DailyCap возвращает потолок тарифа или потолок по умолчанию.
func (p Policy) DailyCap(tier domain.SubscriptionTier) int64 {
	if cap, ok := p.DailyCaps[tier]; ok {
		return cap
	}
	return p.DefaultCap
}

// Multiplier возвращает множитель тарифа или множитель по умолчанию.
func (p Policy) Multiplier(tier domain.SubscriptionTier) decimal.Decimal {
	if m, ok := p.Multipliers[tier]; ok {
		return m
	}
	return p.DefaultMultiplier
}
