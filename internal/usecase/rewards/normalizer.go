package rewards

import "steps-rewards/internal/domain"

// Normalize применяет суточный потолок тарифа и порог участия к сырому
// счётчику шагов. Функция тотальна: на любом входе, включая отрицательный
// мусор, возвращается корректный результат, ошибки невозможны.
//
// Порядок правил фиксирован: ноль → потолок → порог → причина обрезки.
func (p Policy) Normalize(raw int64, tier domain.SubscriptionTier) (int64, domain.LimitDescriptor) {
	dayCap := p.DailyCap(tier)
	limit := domain.LimitDescriptor{
		DailyCap: dayCap,
		Reason:   domain.LimitNone,
		Before:   raw,
	}

	if raw <= 0 {
		limit.Applied = true
		limit.Reason = domain.LimitZero
		limit.Before = 0
		return 0, limit
	}

	capped := raw
	if capped > dayCap {
		capped = dayCap
	}

	if capped < p.MinThreshold {
		limit.Applied = true
		limit.Reason = domain.LimitUnderMin
		return 0, limit
	}

	if capped < raw {
		limit.Applied = true
		limit.Reason = domain.LimitCap
	}
	limit.After = capped
	return capped, limit
}
