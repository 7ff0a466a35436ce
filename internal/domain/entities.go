package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionTier описывает тариф подписки пользователя.
type SubscriptionTier string

const (
	// TierBase — базовый (бесплатный) тариф.
	TierBase SubscriptionTier = "base"
	// TierMid — средний тариф.
	TierMid SubscriptionTier = "mid"
	// TierPremium — премиальный тариф.
	TierPremium SubscriptionTier = "premium"
)

// TierFromString нормализует произвольную строку тарифа. Неизвестные значения
// считаются базовым тарифом, чтобы мусор в профиле не ронял расчёт.
func TierFromString(raw string) SubscriptionTier {
	switch SubscriptionTier(raw) {
	case TierBase, TierMid, TierPremium:
		return SubscriptionTier(raw)
	default:
		return TierBase
	}
}

// UserStatus описывает статус пользователя в каталоге профилей.
type UserStatus string

const (
	// UserActive — активный пользователь, участвует в распределении.
	UserActive UserStatus = "active"
	// UserBlocked — заблокированный пользователь.
	UserBlocked UserStatus = "blocked"
	// UserDeleted — удалённый пользователь.
	UserDeleted UserStatus = "deleted"
)

// UserContext — снимок профиля пользователя на момент расчёта.
// Каталог профилей внешний, движок читает его только на чтение.
type UserContext struct {
	UID      string
	Tier     SubscriptionTier
	AgeYears *int
	FamilyID string
	Status   UserStatus
}

// ActivityRecord — сырой суточный счётчик шагов пользователя.
// Запись создаётся внешним трекером и после прохождения дня неизменяема.
type ActivityRecord struct {
	UID      string
	Date     time.Time
	RawCount int64
}

// LimitReason объясняет, почему зачтённая активность отличается от сырой.
type LimitReason string

const (
	// LimitNone — лимиты не сработали.
	LimitNone LimitReason = "none"
	// LimitCap — сработал суточный потолок тарифа.
	LimitCap LimitReason = "cap"
	// LimitUnderMin — активность ниже порога участия.
	LimitUnderMin LimitReason = "under-min"
	// LimitZero — активности не было вовсе.
	LimitZero LimitReason = "zero"
)

// LimitDescriptor фиксирует применённый лимит для аудита результата.
type LimitDescriptor struct {
	DailyCap int64
	Applied  bool
	Reason   LimitReason
	Before   int64
	After    int64
}

// RewardStatus — итоговый статус начисления за день.
type RewardStatus string

const (
	// RewardOK — начисление прошло без ограничений.
	RewardOK RewardStatus = "ok"
	// RewardLimited — начисление прошло, но активность была обрезана потолком.
	RewardLimited RewardStatus = "limited"
	// RewardSkipped — начисления нет (нет шагов, нет веса или нулевая ставка).
	RewardSkipped RewardStatus = "skipped"
)

// BonusFlag помечает применённые бонусные правила.
type BonusFlag string

const (
	// BonusSubscriptionBoost — вес увеличен множителем платного тарифа.
	BonusSubscriptionBoost BonusFlag = "subscription_boost"
)

// RewardResult — результат расчёта награды пользователя за конкретную дату.
// Денежные поля уже округлены до шести знаков, это округление финально.
// RunID служит идемпотентным маркером: повтор того же запуска — no-op.
type RewardResult struct {
	UID             string
	Date            time.Time
	FamilyID        string
	Tier            SubscriptionTier
	RawCount        int64
	CountedActivity int64
	RewardPreview   decimal.Decimal
	RewardEarned    decimal.Decimal
	Status          RewardStatus
	Limit           LimitDescriptor
	BonusFlags      []BonusFlag
	RunID           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Balance — накопительные счётчики пользователя. Меняются только атомарными
// инкрементами, read-modify-write снаружи запрещён.
type Balance struct {
	UID         string
	Personal    decimal.Decimal
	Family      decimal.Decimal
	TotalEarned decimal.Decimal
	UpdatedAt   time.Time
}

// LedgerKindActivityReward — единственный вид записей, который пишет движок.
const LedgerKindActivityReward = "activity_reward"

// FamilyLedgerEntry — append-only запись семейной доли награды.
type FamilyLedgerEntry struct {
	FamilyID  string
	Date      time.Time
	UID       string
	Amount    decimal.Decimal
	RunID     string
	Kind      string
	CreatedAt time.Time
}

// StatsStatus — терминальный статус запуска распределения.
type StatsStatus string

const (
	// StatsOK — награды начислены хотя бы одному пользователю.
	StatsOK StatsStatus = "ok"
	// StatsNoRewards — валидное завершение без начислений.
	StatsNoRewards StatsStatus = "no_rewards"
)

// DailyStats — агрегат одного запуска распределения, аудит-след за дату.
type DailyStats struct {
	Date                  time.Time
	RunID                 string
	Status                StatsStatus
	UsersScanned          int64
	UsersEligible         int64
	UsersRewarded         int64
	TotalRawActivity      int64
	TotalWeightedActivity decimal.Decimal
	TotalDistributed      decimal.Decimal
	RateDay               decimal.Decimal
	UpdatedAt             time.Time
}

// RunSummary — последний результат пользователя, компактный агрегат для
// мобильного клиента.
type RunSummary struct {
	UID           string
	Date          time.Time
	RunID         string
	RewardEarned  decimal.Decimal
	PersonalShare decimal.Decimal
	FamilyShare   decimal.Decimal
	Status        RewardStatus
	UpdatedAt     time.Time
}
