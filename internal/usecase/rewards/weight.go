package rewards

import (
	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
)

// Weight переводит зачтённую активность в безразмерный вес — единицу,
// в которой делится суточный пул. Возраст принимается, но на множитель
// сейчас не влияет; параметр сохранён до прояснения продуктового смысла.
// Неположительный результат схлопывается в ноль.
func (p Policy) Weight(counted int64, tier domain.SubscriptionTier, ageYears *int) decimal.Decimal {
	_ = ageYears

	if counted <= 0 {
		return decimal.Zero
	}
	weighted := decimal.NewFromInt(counted).Mul(p.Multiplier(tier))
	if !weighted.IsPositive() {
		return decimal.Zero
	}
	return weighted
}
