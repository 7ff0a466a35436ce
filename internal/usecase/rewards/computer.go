package rewards

import (
	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
)

// Computer — чистый вычислитель награды пользователя за день. Никакого
// ввода-вывода: результат полностью детерминирован тройкой входов
// (профиль, счётчик активности, суточная ставка).
type Computer struct {
	policy Policy
}

// NewComputer создаёт вычислитель с заданными правилами.
func NewComputer(policy Policy) Computer {
	return Computer{policy: policy}
}

// Compute строит результат начисления за день. Аномалии входа (мусорный
// тариф, отрицательные шаги, нулевая ставка) поглощаются в безопасный
// skipped-результат, но дескриптор лимита сохраняется для диагностики.
func (c Computer) Compute(user domain.UserContext, rec domain.ActivityRecord, rateDay decimal.Decimal) domain.RewardResult {
	counted, limit := c.policy.Normalize(rec.RawCount, user.Tier)

	res := domain.RewardResult{
		UID:             user.UID,
		Date:            domain.Day(rec.Date),
		FamilyID:        user.FamilyID,
		Tier:            user.Tier,
		RawCount:        rec.RawCount,
		CountedActivity: counted,
		RewardPreview:   decimal.Zero,
		RewardEarned:    decimal.Zero,
		Status:          domain.RewardSkipped,
		Limit:           limit,
	}

	if counted == 0 || !rateDay.IsPositive() {
		return res
	}

	weighted := c.policy.Weight(counted, user.Tier, user.AgeYears)
	if !weighted.IsPositive() {
		return res
	}

	reward := weighted.Mul(rateDay)
	if reward.IsNegative() {
		reward = decimal.Zero
	}
	reward = reward.Round(rewardPrecision)

	// Превью и начисление сейчас совпадают; схема оставляет им место
	// разойтись в будущем.
	res.RewardPreview = reward
	res.RewardEarned = reward

	res.Status = domain.RewardOK
	if limit.Reason == domain.LimitCap {
		res.Status = domain.RewardLimited
	}

	res.BonusFlags = c.bonusFlags(user, weighted)
	return res
}

// bonusFlags собирает применённые бонусные правила.
func (c Computer) bonusFlags(user domain.UserContext, weighted decimal.Decimal) []domain.BonusFlag {
	var flags []domain.BonusFlag
	if user.Tier != domain.TierBase && weighted.IsPositive() {
		flags = append(flags, domain.BonusSubscriptionBoost)
	}
	flags = append(flags, c.zoneBonus(user)...)
	flags = append(flags, c.streakBonus(user)...)
	return flags
}

// zoneBonus — точка расширения под геозонный бонус; пока всегда пусто.
func (c Computer) zoneBonus(domain.UserContext) []domain.BonusFlag { return nil }

// streakBonus — точка расширения под бонус за серию дней; пока всегда пусто.
func (c Computer) streakBonus(domain.UserContext) []domain.BonusFlag { return nil }
