package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
	"steps-rewards/internal/infra/metrics"
)

// rewardBatch копит операции записи и коммитит их одной транзакцией через
// pgx.Batch. Оркестратор сбрасывает группу до потолка операций бэкенда.
type rewardBatch struct {
	repo *Postgres
	ops  []batchOp
}

type batchOp struct {
	sql  string
	args []any
}

var _ domain.RewardBatch = (*rewardBatch)(nil)

// NewBatch реализует domain.RewardRepo.
func (p *Postgres) NewBatch() domain.RewardBatch {
	return &rewardBatch{repo: p}
}

// UpsertResult сливает результат с существующим, created_at не трогается.
func (b *rewardBatch) UpsertResult(res domain.RewardResult) {
	flags := make([]string, 0, len(res.BonusFlags))
	for _, flag := range res.BonusFlags {
		flags = append(flags, string(flag))
	}
	b.ops = append(b.ops, batchOp{
		sql: `
INSERT INTO reward_results (uid, date, family_id, tier, raw_count, counted_activity,
                            reward_preview, reward_earned, status,
                            limit_daily_cap, limit_applied, limit_reason, limit_before, limit_after,
                            bonus_flags, run_id, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now(), now())
ON CONFLICT (uid, date) DO UPDATE SET
    family_id = EXCLUDED.family_id,
    tier = EXCLUDED.tier,
    raw_count = EXCLUDED.raw_count,
    counted_activity = EXCLUDED.counted_activity,
    reward_preview = EXCLUDED.reward_preview,
    reward_earned = EXCLUDED.reward_earned,
    status = EXCLUDED.status,
    limit_daily_cap = EXCLUDED.limit_daily_cap,
    limit_applied = EXCLUDED.limit_applied,
    limit_reason = EXCLUDED.limit_reason,
    limit_before = EXCLUDED.limit_before,
    limit_after = EXCLUDED.limit_after,
    bonus_flags = EXCLUDED.bonus_flags,
    run_id = EXCLUDED.run_id,
    updated_at = now()
`,
		args: []any{
			res.UID, domain.Day(res.Date), res.FamilyID, string(res.Tier),
			res.RawCount, res.CountedActivity,
			res.RewardPreview.String(), res.RewardEarned.String(), string(res.Status),
			res.Limit.DailyCap, res.Limit.Applied, string(res.Limit.Reason),
			res.Limit.Before, res.Limit.After, flags, res.RunID,
		},
	})
}

// IncrementBalance атомарно прибавляет доли к счётчикам; чтения-записи нет.
func (b *rewardBatch) IncrementBalance(uid string, personal, family, total decimal.Decimal) {
	b.ops = append(b.ops, batchOp{
		sql: `
INSERT INTO balances (uid, personal, family, total_earned, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (uid) DO UPDATE SET
    personal = balances.personal + EXCLUDED.personal,
    family = balances.family + EXCLUDED.family,
    total_earned = balances.total_earned + EXCLUDED.total_earned,
    updated_at = now()
`,
		args: []any{uid, personal.String(), family.String(), total.String()},
	})
}

// AppendLedger добавляет запись леджера; повтор по ключу — no-op.
func (b *rewardBatch) AppendLedger(entry domain.FamilyLedgerEntry) {
	b.ops = append(b.ops, batchOp{
		sql: `
INSERT INTO family_ledger (family_id, date, uid, amount, run_id, kind, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (family_id, date, uid, run_id) DO NOTHING
`,
		args: []any{entry.FamilyID, domain.Day(entry.Date), entry.UID, entry.Amount.String(), entry.RunID, entry.Kind},
	})
}

// UpsertRunSummary обновляет последний агрегат пользователя.
func (b *rewardBatch) UpsertRunSummary(summary domain.RunSummary) {
	b.ops = append(b.ops, batchOp{
		sql: `
INSERT INTO run_summaries (uid, date, run_id, reward_earned, personal_share, family_share, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (uid) DO UPDATE SET
    date = EXCLUDED.date,
    run_id = EXCLUDED.run_id,
    reward_earned = EXCLUDED.reward_earned,
    personal_share = EXCLUDED.personal_share,
    family_share = EXCLUDED.family_share,
    status = EXCLUDED.status,
    updated_at = now()
`,
		args: []any{
			summary.UID, domain.Day(summary.Date), summary.RunID,
			summary.RewardEarned.String(), summary.PersonalShare.String(),
			summary.FamilyShare.String(), string(summary.Status),
		},
	})
}

// Len возвращает число накопленных операций.
func (b *rewardBatch) Len() int {
	return len(b.ops)
}

// Flush коммитит группу одной транзакцией; после успеха группа пуста.
func (b *rewardBatch) Flush(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	ctx, cancel := b.repo.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := b.flush(ctx)
	metrics.ObserveNetworkRequest("postgres", "reward_batch_flush", "reward_results", start, err)
	if err != nil {
		return err
	}
	metrics.ObserveBatchFlush(len(b.ops))
	b.ops = b.ops[:0]
	return nil
}

func (b *rewardBatch) flush(ctx context.Context) error {
	tx, err := b.repo.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("открытие транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, op := range b.ops {
		batch.Queue(op.sql, op.args...)
	}
	results := tx.SendBatch(ctx, batch)
	for range b.ops {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("операция группы: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("закрытие группы: %w", err)
	}
	return tx.Commit(ctx)
}
