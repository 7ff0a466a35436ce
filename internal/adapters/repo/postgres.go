package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
	"steps-rewards/internal/infra/metrics"
)

// Postgres реализует репозитории движка на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.ProfileRepo  = (*Postgres)(nil)
	_ domain.ActivityRepo = (*Postgres)(nil)
	_ domain.RewardRepo   = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListActive реализует domain.ProfileRepo.
func (p *Postgres) ListActive(ctx context.Context) ([]domain.UserContext, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT uid, subscription_tier, age_years, family_id, status
FROM users
WHERE status = 'active'
ORDER BY uid
`)
	metrics.ObserveNetworkRequest("postgres", "users_list_active", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.UserContext
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetUser реализует domain.ProfileRepo.
func (p *Postgres) GetUser(ctx context.Context, uid string) (domain.UserContext, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT uid, subscription_tier, age_years, family_id, status
FROM users
WHERE uid = $1
`, uid)
	user, err := scanUser(row)
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	return user, err
}

func scanUser(row pgx.Row) (domain.UserContext, error) {
	var (
		user     domain.UserContext
		tier     string
		age      sql.NullInt32
		familyID sql.NullString
		status   string
	)
	if err := row.Scan(&user.UID, &tier, &age, &familyID, &status); err != nil {
		return domain.UserContext{}, err
	}
	user.Tier = domain.TierFromString(tier)
	user.Status = domain.UserStatus(status)
	if age.Valid {
		years := int(age.Int32)
		user.AgeYears = &years
	}
	if familyID.Valid {
		user.FamilyID = familyID.String
	}
	return user, nil
}

// GetActivity реализует domain.ActivityRepo: отсутствующая запись — нулевая.
func (p *Postgres) GetActivity(ctx context.Context, uid string, date time.Time) (domain.ActivityRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	record := domain.ActivityRecord{UID: uid, Date: domain.Day(date)}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT raw_count FROM activity_days WHERE uid = $1 AND date = $2
`, uid, domain.Day(date)).Scan(&record.RawCount)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	metrics.ObserveNetworkRequest("postgres", "activity_get", "activity_days", start, err)
	if err != nil {
		return domain.ActivityRecord{}, err
	}
	return record, nil
}

// GetResult возвращает сохранённый результат начисления.
func (p *Postgres) GetResult(ctx context.Context, uid string, date time.Time) (domain.RewardResult, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		res      domain.RewardResult
		tier     string
		status   string
		reason   string
		preview  string
		earned   string
		flags    []string
		familyID sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT uid, date, family_id, tier, raw_count, counted_activity,
       reward_preview::text, reward_earned::text, status,
       limit_daily_cap, limit_applied, limit_reason, limit_before, limit_after,
       bonus_flags, run_id, created_at, updated_at
FROM reward_results
WHERE uid = $1 AND date = $2
`, uid, domain.Day(date)).Scan(
		&res.UID, &res.Date, &familyID, &tier, &res.RawCount, &res.CountedActivity,
		&preview, &earned, &status,
		&res.Limit.DailyCap, &res.Limit.Applied, &reason, &res.Limit.Before, &res.Limit.After,
		&flags, &res.RunID, &res.CreatedAt, &res.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "reward_result_get", "reward_results", start, nil)
		return domain.RewardResult{}, false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "reward_result_get", "reward_results", start, err)
	if err != nil {
		return domain.RewardResult{}, false, err
	}

	if familyID.Valid {
		res.FamilyID = familyID.String
	}
	res.Tier = domain.TierFromString(tier)
	res.Status = domain.RewardStatus(status)
	res.Limit.Reason = domain.LimitReason(reason)
	if res.RewardPreview, err = decimal.NewFromString(preview); err != nil {
		return domain.RewardResult{}, false, err
	}
	if res.RewardEarned, err = decimal.NewFromString(earned); err != nil {
		return domain.RewardResult{}, false, err
	}
	for _, flag := range flags {
		res.BonusFlags = append(res.BonusFlags, domain.BonusFlag(flag))
	}
	return res, true, nil
}

// GetBalance возвращает баланс пользователя.
func (p *Postgres) GetBalance(ctx context.Context, uid string) (domain.Balance, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		balance  domain.Balance
		personal string
		family   string
		total    string
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT uid, personal::text, family::text, total_earned::text, updated_at
FROM balances
WHERE uid = $1
`, uid).Scan(&balance.UID, &personal, &family, &total, &balance.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "balance_get", "balances", start, nil)
		return domain.Balance{}, false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "balance_get", "balances", start, err)
	if err != nil {
		return domain.Balance{}, false, err
	}
	if balance.Personal, err = decimal.NewFromString(personal); err != nil {
		return domain.Balance{}, false, err
	}
	if balance.Family, err = decimal.NewFromString(family); err != nil {
		return domain.Balance{}, false, err
	}
	if balance.TotalEarned, err = decimal.NewFromString(total); err != nil {
		return domain.Balance{}, false, err
	}
	return balance, true, nil
}

// GetStats возвращает агрегат запуска за дату.
func (p *Postgres) GetStats(ctx context.Context, date time.Time) (domain.DailyStats, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		stats       domain.DailyStats
		status      string
		weighted    string
		distributed string
		rate        string
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT date, run_id, status, users_scanned, users_eligible, users_rewarded,
       total_raw_activity, total_weighted_activity::text, total_distributed::text,
       rate_day::text, updated_at
FROM daily_stats
WHERE date = $1
`, domain.Day(date)).Scan(
		&stats.Date, &stats.RunID, &status, &stats.UsersScanned, &stats.UsersEligible,
		&stats.UsersRewarded, &stats.TotalRawActivity, &weighted, &distributed,
		&rate, &stats.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "daily_stats_get", "daily_stats", start, nil)
		return domain.DailyStats{}, false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "daily_stats_get", "daily_stats", start, err)
	if err != nil {
		return domain.DailyStats{}, false, err
	}
	stats.Status = domain.StatsStatus(status)
	if stats.TotalWeightedActivity, err = decimal.NewFromString(weighted); err != nil {
		return domain.DailyStats{}, false, err
	}
	if stats.TotalDistributed, err = decimal.NewFromString(distributed); err != nil {
		return domain.DailyStats{}, false, err
	}
	if stats.RateDay, err = decimal.NewFromString(rate); err != nil {
		return domain.DailyStats{}, false, err
	}
	return stats, true, nil
}

// UpsertStats пишет агрегат запуска, один на дату.
func (p *Postgres) UpsertStats(ctx context.Context, stats domain.DailyStats) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO daily_stats (date, run_id, status, users_scanned, users_eligible, users_rewarded,
                         total_raw_activity, total_weighted_activity, total_distributed,
                         rate_day, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
ON CONFLICT (date) DO UPDATE SET
    run_id = EXCLUDED.run_id,
    status = EXCLUDED.status,
    users_scanned = EXCLUDED.users_scanned,
    users_eligible = EXCLUDED.users_eligible,
    users_rewarded = EXCLUDED.users_rewarded,
    total_raw_activity = EXCLUDED.total_raw_activity,
    total_weighted_activity = EXCLUDED.total_weighted_activity,
    total_distributed = EXCLUDED.total_distributed,
    rate_day = EXCLUDED.rate_day,
    updated_at = now()
`, domain.Day(stats.Date), stats.RunID, string(stats.Status), stats.UsersScanned,
		stats.UsersEligible, stats.UsersRewarded, stats.TotalRawActivity,
		stats.TotalWeightedActivity.String(), stats.TotalDistributed.String(),
		stats.RateDay.String())
	metrics.ObserveNetworkRequest("postgres", "daily_stats_upsert", "daily_stats", start, err)
	return err
}

// ListLedger возвращает записи семейного леджера за дату.
func (p *Postgres) ListLedger(ctx context.Context, familyID string, date time.Time) ([]domain.FamilyLedgerEntry, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT family_id, date, uid, amount::text, run_id, kind, created_at
FROM family_ledger
WHERE family_id = $1 AND date = $2
ORDER BY uid
`, familyID, domain.Day(date))
	metrics.ObserveNetworkRequest("postgres", "family_ledger_list", "family_ledger", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.FamilyLedgerEntry
	for rows.Next() {
		var (
			entry  domain.FamilyLedgerEntry
			amount string
		)
		if err := rows.Scan(&entry.FamilyID, &entry.Date, &entry.UID, &amount, &entry.RunID, &entry.Kind, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if entry.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
