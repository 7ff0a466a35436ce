package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProfileRepo — внешний каталог профилей, только чтение.
type ProfileRepo interface {
	ListActive(ctx context.Context) ([]UserContext, error)
	GetUser(ctx context.Context, uid string) (UserContext, error)
}

// ActivityRepo — внешнее хранилище суточных счётчиков, только чтение.
// Отсутствующая запись возвращается нулевой, а не ошибкой.
type ActivityRepo interface {
	GetActivity(ctx context.Context, uid string, date time.Time) (ActivityRecord, error)
}

// RewardRepo управляет данными, которыми владеет движок распределения.
type RewardRepo interface {
	// GetResult возвращает сохранённый результат за дату; false — записи нет.
	GetResult(ctx context.Context, uid string, date time.Time) (RewardResult, bool, error)
	GetBalance(ctx context.Context, uid string) (Balance, bool, error)
	GetStats(ctx context.Context, date time.Time) (DailyStats, bool, error)
	UpsertStats(ctx context.Context, stats DailyStats) error
	ListLedger(ctx context.Context, familyID string, date time.Time) ([]FamilyLedgerEntry, error)
	// NewBatch открывает новую ограниченную группу записей.
	NewBatch() RewardBatch
}

// RewardBatch копит операции записи и коммитит их одной атомарной группой.
// У бэкенда есть жёсткий потолок операций на группу, поэтому оркестратор
// обязан сбрасывать группу до достижения предела.
type RewardBatch interface {
	// UpsertResult сливает результат с существующим, сохраняя CreatedAt.
	UpsertResult(result RewardResult)
	// IncrementBalance атомарно прибавляет доли к счётчикам баланса.
	IncrementBalance(uid string, personal, family, total decimal.Decimal)
	// AppendLedger добавляет запись семейного леджера.
	AppendLedger(entry FamilyLedgerEntry)
	// UpsertRunSummary обновляет последний агрегат пользователя.
	UpsertRunSummary(summary RunSummary)
	// Len возвращает число накопленных операций.
	Len() int
	// Flush коммитит группу; после успешного коммита группа пуста.
	Flush(ctx context.Context) error
}

// RunLease — аренда запуска на дату: два пересекающихся запуска за одну дату
// не должны считать ставку по наполовину собранной сумме.
type RunLease interface {
	// Acquire пытается захватить аренду; false — аренда уже у другого запуска.
	Acquire(ctx context.Context, date time.Time, ttl time.Duration) (bool, error)
	Release(ctx context.Context, date time.Time) error
}
