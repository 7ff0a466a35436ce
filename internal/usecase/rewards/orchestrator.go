package rewards

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
	"steps-rewards/internal/infra/metrics"
)

// ErrRunInProgress возвращается, если аренда запуска на дату уже захвачена.
var ErrRunInProgress = errors.New("распределение за эту дату уже выполняется")

// ErrAlreadyDistributed возвращается при попытке пересчитать уже
// распределённую дату без явного force.
var ErrAlreadyDistributed = errors.New("награды за эту дату уже распределены")

// ErrUserInactive возвращается, если наградить запросил неактивный пользователь.
var ErrUserInactive = errors.New("пользователь неактивен")

// defaultScanParallel — ширина пула чтения активности в первом проходе.
const defaultScanParallel = 4

// defaultFlushAt — запас до жёсткого потолка операций в атомарной группе.
const defaultFlushAt = 400

// defaultLeaseTTL — срок аренды запуска.
const defaultLeaseTTL = 10 * time.Minute

// Orchestrator ведёт двухпроходное распределение суточного пула: первый
// проход собирает глобальный взвешенный объём активности, второй — считает
// и персистит начисления. Владеет идемпотентностью и дисциплиной записи.
type Orchestrator struct {
	profiles domain.ProfileRepo
	activity domain.ActivityRepo
	rewards  domain.RewardRepo
	lease    domain.RunLease
	computer Computer
	policy   Policy
	pool     PoolSchedule
	parallel int
	flushAt  int
	leaseTTL time.Duration
	log      zerolog.Logger
}

// OrchestratorConfig — настройки запуска, собираются из конфигурации.
type OrchestratorConfig struct {
	Policy       Policy
	Pool         PoolSchedule
	ScanParallel int
	FlushAt      int
	LeaseTTL     time.Duration
}

// NewOrchestrator создаёт оркестратор. Аренда может быть nil — тогда
// запуски не защищены от наложения (допустимо в тестах и при одиночном
// воркере).
func NewOrchestrator(profiles domain.ProfileRepo, activity domain.ActivityRepo, rewardRepo domain.RewardRepo, lease domain.RunLease, cfg OrchestratorConfig, log zerolog.Logger) *Orchestrator {
	if cfg.ScanParallel <= 0 {
		cfg.ScanParallel = defaultScanParallel
	}
	if cfg.FlushAt <= 0 {
		cfg.FlushAt = defaultFlushAt
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	return &Orchestrator{
		profiles: profiles,
		activity: activity,
		rewards:  rewardRepo,
		lease:    lease,
		computer: NewComputer(cfg.Policy),
		policy:   cfg.Policy,
		pool:     cfg.Pool,
		parallel: cfg.ScanParallel,
		flushAt:  cfg.FlushAt,
		leaseTTL: cfg.LeaseTTL,
		log:      log,
	}
}

// eligibleInput — участник, прошедший первый проход.
type eligibleInput struct {
	user     domain.UserContext
	record   domain.ActivityRecord
	weighted decimal.Decimal
}

// scanTotals — агрегат первого прохода.
type scanTotals struct {
	eligible      []eligibleInput
	usersScanned  int64
	usersEligible int64
	totalRaw      int64
	totalWeighted decimal.Decimal
}

// Run выполняет полное распределение за дату задачи. Ставка считается только
// после полного завершения первого прохода — это жёсткий барьер. Ошибки
// хранилища прерывают запуск целиком; уже закоммиченные группы остаются,
// повтор с тем же runId безопасен благодаря идемпотентной проверке.
func (o *Orchestrator) Run(ctx context.Context, job domain.DistributionJob) (domain.DailyStats, error) {
	date := domain.Day(job.Date)
	start := time.Now()
	runLog := o.log.With().Str("date", domain.DateKey(date)).Str("run_id", job.RunID).Logger()

	if o.lease != nil {
		ok, err := o.lease.Acquire(ctx, date, o.leaseTTL)
		if err != nil {
			return domain.DailyStats{}, fmt.Errorf("захват аренды запуска: %w", err)
		}
		if !ok {
			return domain.DailyStats{}, ErrRunInProgress
		}
		defer func() {
			if err := o.lease.Release(context.WithoutCancel(ctx), date); err != nil {
				runLog.Error().Err(err).Msg("не удалось освободить аренду запуска")
			}
		}()
	}

	// Новый runId по уже распределённой дате — осознанный пересчёт,
	// требует явного force.
	if existing, ok, err := o.rewards.GetStats(ctx, date); err != nil {
		return domain.DailyStats{}, fmt.Errorf("чтение статистики за дату: %w", err)
	} else if ok && existing.Status == domain.StatsOK && existing.RunID != job.RunID && !job.Force {
		return domain.DailyStats{}, ErrAlreadyDistributed
	}

	totals, err := o.scan(ctx, date)
	if err != nil {
		metrics.ObserveDistributionRun("error", start)
		return domain.DailyStats{}, err
	}

	stats := domain.DailyStats{
		Date:                  date,
		RunID:                 job.RunID,
		Status:                domain.StatsNoRewards,
		UsersScanned:          totals.usersScanned,
		UsersEligible:         totals.usersEligible,
		TotalRawActivity:      totals.totalRaw,
		TotalWeightedActivity: totals.totalWeighted,
		TotalDistributed:      decimal.Zero,
		RateDay:               decimal.Zero,
	}

	rate := RateDay(o.pool.DailyPool(date), totals.totalWeighted)
	if len(totals.eligible) == 0 || !rate.IsPositive() {
		// Валидное терминальное состояние, а не ошибка.
		if err := o.rewards.UpsertStats(ctx, stats); err != nil {
			return domain.DailyStats{}, fmt.Errorf("запись статистики: %w", err)
		}
		runLog.Info().Int64("users_scanned", stats.UsersScanned).Msg("нет участников, награды не распределялись")
		metrics.ObserveDistributionRun(string(domain.StatsNoRewards), start)
		return stats, nil
	}
	stats.RateDay = rate

	rewarded, distributed, err := o.distribute(ctx, date, job.RunID, job.Force, rate, totals.eligible, runLog)
	if err != nil {
		metrics.ObserveDistributionRun("error", start)
		return domain.DailyStats{}, err
	}
	stats.UsersRewarded = rewarded
	stats.TotalDistributed = distributed
	if rewarded > 0 {
		stats.Status = domain.StatsOK
	}

	if err := o.rewards.UpsertStats(ctx, stats); err != nil {
		return domain.DailyStats{}, fmt.Errorf("запись статистики: %w", err)
	}

	runLog.Info().
		Int64("users_scanned", stats.UsersScanned).
		Int64("users_eligible", stats.UsersEligible).
		Int64("users_rewarded", stats.UsersRewarded).
		Str("total_distributed", stats.TotalDistributed.StringFixed(rewardPrecision)).
		Msg("распределение завершено")
	metrics.ObserveDistributionRun(string(stats.Status), start)
	metrics.AddRewardDistributed(distributed.InexactFloat64())
	return stats, nil
}

// UserRunID — детерминированный runId синхронного запуска по одному
// пользователю: повторные запросы за тот же день идемпотентны сами по себе.
func UserRunID(uid string, date time.Time) string {
	return fmt.Sprintf("user:%s:%s", uid, domain.DateKey(date))
}

// RunUser выполняет то же ядро для ровно одной пары (uid, дата) и
// возвращает результат вызывающему. Отсутствие шагов или веса — это
// skipped-результат, а не ошибка.
func (o *Orchestrator) RunUser(ctx context.Context, uid string, date time.Time) (domain.RewardResult, error) {
	date = domain.Day(date)
	user, err := o.profiles.GetUser(ctx, uid)
	if err != nil {
		return domain.RewardResult{}, fmt.Errorf("чтение профиля: %w", err)
	}
	if user.Status != domain.UserActive {
		return domain.RewardResult{}, ErrUserInactive
	}

	runID := UserRunID(uid, date)
	if prev, ok, err := o.rewards.GetResult(ctx, uid, date); err != nil {
		return domain.RewardResult{}, fmt.Errorf("чтение результата: %w", err)
	} else if ok && (prev.RunID == runID || prev.RewardEarned.IsPositive()) {
		// Начисление за эту дату уже применено — повторным клеймом или
		// батчевым запуском, неважно. Повтор возвращает сохранённый
		// результат и не пишет денег.
		return prev, nil
	}

	totals, err := o.scan(ctx, date)
	if err != nil {
		return domain.RewardResult{}, err
	}
	rate := RateDay(o.pool.DailyPool(date), totals.totalWeighted)

	record, err := o.activity.GetActivity(ctx, uid, date)
	if err != nil {
		return domain.RewardResult{}, fmt.Errorf("чтение активности: %w", err)
	}

	res := o.computer.Compute(user, domain.ActivityRecord{UID: uid, Date: date, RawCount: record.RawCount}, rate)
	if !res.RewardEarned.IsPositive() {
		return res, nil
	}
	res.RunID = runID

	batch := o.rewards.NewBatch()
	o.enqueueUser(batch, date, runID, user, res)
	if err := batch.Flush(ctx); err != nil {
		return domain.RewardResult{}, fmt.Errorf("коммит начисления: %w", err)
	}
	return res, nil
}

// scan — первый проход: обходит всех активных пользователей и накапливает
// глобальные суммы. Чтения активности независимы и выполняются пулом
// воркеров; редукция в общий агрегат защищена мьютексом.
func (o *Orchestrator) scan(ctx context.Context, date time.Time) (scanTotals, error) {
	users, err := o.profiles.ListActive(ctx)
	if err != nil {
		return scanTotals{}, fmt.Errorf("список активных пользователей: %w", err)
	}

	totals := scanTotals{totalWeighted: decimal.Zero}
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	jobs := make(chan domain.UserContext)

	for i := 0; i < o.parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				if scanCtx.Err() != nil {
					continue
				}
				if user.Status != domain.UserActive {
					mu.Lock()
					totals.usersScanned++
					mu.Unlock()
					continue
				}
				record, err := o.activity.GetActivity(scanCtx, user.UID, date)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("чтение активности %s: %w", user.UID, err)
					}
					mu.Unlock()
					cancel()
					continue
				}
				counted, _ := o.policy.Normalize(record.RawCount, user.Tier)
				weighted := o.policy.Weight(counted, user.Tier, user.AgeYears)

				mu.Lock()
				totals.usersScanned++
				if record.RawCount > 0 && weighted.IsPositive() {
					totals.usersEligible++
					totals.totalRaw += record.RawCount
					totals.totalWeighted = totals.totalWeighted.Add(weighted)
					totals.eligible = append(totals.eligible, eligibleInput{
						user:     user,
						record:   domain.ActivityRecord{UID: user.UID, Date: date, RawCount: record.RawCount},
						weighted: weighted,
					})
				}
				mu.Unlock()
			}
		}()
	}

	for _, user := range users {
		jobs <- user
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return scanTotals{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return scanTotals{}, err
	}

	// Порядок участников стабилен независимо от гонки воркеров.
	sort.Slice(totals.eligible, func(i, j int) bool {
		return totals.eligible[i].user.UID < totals.eligible[j].user.UID
	})
	return totals, nil
}

// distribute — второй проход: считает начисления и персистит их
// ограниченными группами. Аномалии отдельного пользователя не прерывают
// запуск; фатальны только ошибки хранилища.
func (o *Orchestrator) distribute(ctx context.Context, date time.Time, runID string, force bool, rate decimal.Decimal, eligible []eligibleInput, runLog zerolog.Logger) (int64, decimal.Decimal, error) {
	var (
		rewarded    int64
		noops       int64
		distributed = decimal.Zero
	)

	batch := o.rewards.NewBatch()
	for _, in := range eligible {
		res := o.computer.Compute(in.user, in.record, rate)
		if !res.RewardEarned.IsPositive() {
			continue
		}

		// Идемпотентность: за пару (uid, дата) платит ровно один запуск.
		// Повтор того же runId, как и чужой уже применённый результат
		// (например, клейм до батча), денег не пишет — агрегаты
		// восстанавливаются из сохранённого результата. Перезаписать
		// чужое начисление может только явный force.
		prev, ok, err := o.rewards.GetResult(ctx, in.user.UID, date)
		if err != nil {
			return 0, decimal.Zero, fmt.Errorf("проверка идемпотентности %s: %w", in.user.UID, err)
		}
		if ok && (prev.RunID == runID || (!force && prev.RewardEarned.IsPositive())) {
			noops++
			rewarded++
			distributed = distributed.Add(prev.RewardEarned)
			continue
		}

		res.RunID = runID
		o.enqueueUser(batch, date, runID, in.user, res)
		rewarded++
		distributed = distributed.Add(res.RewardEarned)

		if batch.Len() >= o.flushAt {
			if err := batch.Flush(ctx); err != nil {
				return 0, decimal.Zero, fmt.Errorf("коммит группы записей: %w", err)
			}
		}
	}
	if batch.Len() > 0 {
		if err := batch.Flush(ctx); err != nil {
			return 0, decimal.Zero, fmt.Errorf("коммит группы записей: %w", err)
		}
	}

	if noops > 0 {
		runLog.Info().Int64("noops", noops).Msg("пропущены уже начисленные пользователи")
	}
	return rewarded, distributed, nil
}

// enqueueUser ставит в группу полный набор записей одного пользователя:
// результат, инкременты баланса, семейный леджер и компактный агрегат.
func (o *Orchestrator) enqueueUser(batch domain.RewardBatch, date time.Time, runID string, user domain.UserContext, res domain.RewardResult) {
	personal, family := o.policy.SplitShares(res.RewardEarned, user.AgeYears, user.FamilyID)

	batch.UpsertResult(res)
	batch.IncrementBalance(user.UID, personal, family, res.RewardEarned)
	if family.IsPositive() && user.FamilyID != "" {
		batch.AppendLedger(domain.FamilyLedgerEntry{
			FamilyID: user.FamilyID,
			Date:     date,
			UID:      user.UID,
			Amount:   family,
			RunID:    runID,
			Kind:     domain.LedgerKindActivityReward,
		})
	}
	batch.UpsertRunSummary(domain.RunSummary{
		UID:           user.UID,
		Date:          date,
		RunID:         runID,
		RewardEarned:  res.RewardEarned,
		PersonalShare: personal,
		FamilyShare:   family,
		Status:        res.Status,
	})
}
