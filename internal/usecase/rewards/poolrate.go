package rewards

import (
	"time"

	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
)

// PoolSchedule описывает периодический пул наград: фиксированная сумма,
// равномерно разлоченная по дням периода, плюс точечные переопределения
// на отдельные даты. Расписание инжектится из конфигурации.
type PoolSchedule struct {
	// PeriodPool — суммарный пул периода.
	PeriodPool decimal.Decimal
	// PeriodDays — длина периода в днях.
	PeriodDays int64
	// Overrides — переопределения суточного пула по ключу даты.
	Overrides map[string]decimal.Decimal
}

// DefaultPoolSchedule возвращает боевое расписание пула.
func DefaultPoolSchedule() PoolSchedule {
	return PoolSchedule{
		PeriodPool: decimal.RequireFromString("500000000000"),
		PeriodDays: 180,
	}
}

// DailyPool возвращает пул на дату: переопределение, если оно задано,
// иначе равномерную долю периода.
func (s PoolSchedule) DailyPool(date time.Time) decimal.Decimal {
	if override, ok := s.Overrides[domain.DateKey(date)]; ok {
		return override
	}
	if s.PeriodDays <= 0 || !s.PeriodPool.IsPositive() {
		return decimal.Zero
	}
	return s.PeriodPool.DivRound(decimal.NewFromInt(s.PeriodDays), rewardPrecision)
}

// RateDay выводит ставку награды за единицу веса. Ставка нулевая, если пул
// или глобальный вес не строго положительны; отрицательной или бесконечной
// она быть не может.
func RateDay(dailyPool, totalWeighted decimal.Decimal) decimal.Decimal {
	if !dailyPool.IsPositive() || !totalWeighted.IsPositive() {
		return decimal.Zero
	}
	return dailyPool.DivRound(totalWeighted, ratePrecision)
}
