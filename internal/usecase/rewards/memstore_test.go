package rewards

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
)

// memStore — заглушка всех хранилищ под тесты оркестратора. Батч имитирует
// дисциплину боевого бэкенда: операции копятся и применяются только на Flush,
// размер каждой закоммиченной группы запоминается.
type memStore struct {
	mu        sync.Mutex
	users     []domain.UserContext
	activity  map[string]int64
	results   map[string]domain.RewardResult
	balances  map[string]domain.Balance
	ledger    []domain.FamilyLedgerEntry
	summaries map[string]domain.RunSummary
	stats     map[string]domain.DailyStats
	flushes   []int

	activityErr error
}

func newMemStore() *memStore {
	return &memStore{
		activity:  map[string]int64{},
		results:   map[string]domain.RewardResult{},
		balances:  map[string]domain.Balance{},
		summaries: map[string]domain.RunSummary{},
		stats:     map[string]domain.DailyStats{},
	}
}

func resultKey(uid string, date time.Time) string {
	return uid + "|" + domain.DateKey(date)
}

func (s *memStore) ListActive(context.Context) ([]domain.UserContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []domain.UserContext
	for _, u := range s.users {
		if u.Status == domain.UserActive {
			active = append(active, u)
		}
	}
	return active, nil
}

func (s *memStore) GetUser(_ context.Context, uid string) (domain.UserContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UID == uid {
			return u, nil
		}
	}
	return domain.UserContext{}, fmt.Errorf("пользователь %s не найден", uid)
}

func (s *memStore) GetActivity(_ context.Context, uid string, date time.Time) (domain.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityErr != nil {
		return domain.ActivityRecord{}, s.activityErr
	}
	return domain.ActivityRecord{UID: uid, Date: date, RawCount: s.activity[uid]}, nil
}

func (s *memStore) GetResult(_ context.Context, uid string, date time.Time) (domain.RewardResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[resultKey(uid, date)]
	return res, ok, nil
}

func (s *memStore) GetBalance(_ context.Context, uid string) (domain.Balance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[uid]
	return b, ok, nil
}

func (s *memStore) GetStats(_ context.Context, date time.Time) (domain.DailyStats, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[domain.DateKey(date)]
	return st, ok, nil
}

func (s *memStore) UpsertStats(_ context.Context, stats domain.DailyStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[domain.DateKey(stats.Date)] = stats
	return nil
}

func (s *memStore) ListLedger(_ context.Context, familyID string, date time.Time) ([]domain.FamilyLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FamilyLedgerEntry
	for _, e := range s.ledger {
		if e.FamilyID == familyID && domain.DateKey(e.Date) == domain.DateKey(date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) NewBatch() domain.RewardBatch {
	return &memBatch{store: s}
}

type memBatch struct {
	store *memStore
	ops   []func()
}

func (b *memBatch) UpsertResult(res domain.RewardResult) {
	b.ops = append(b.ops, func() {
		key := resultKey(res.UID, res.Date)
		if prev, ok := b.store.results[key]; ok {
			res.CreatedAt = prev.CreatedAt
		}
		b.store.results[key] = res
	})
}

func (b *memBatch) IncrementBalance(uid string, personal, family, total decimal.Decimal) {
	b.ops = append(b.ops, func() {
		bal := b.store.balances[uid]
		bal.UID = uid
		bal.Personal = bal.Personal.Add(personal)
		bal.Family = bal.Family.Add(family)
		bal.TotalEarned = bal.TotalEarned.Add(total)
		b.store.balances[uid] = bal
	})
}

func (b *memBatch) AppendLedger(entry domain.FamilyLedgerEntry) {
	b.ops = append(b.ops, func() {
		for _, e := range b.store.ledger {
			if e.FamilyID == entry.FamilyID && e.UID == entry.UID &&
				domain.DateKey(e.Date) == domain.DateKey(entry.Date) && e.RunID == entry.RunID {
				return
			}
		}
		b.store.ledger = append(b.store.ledger, entry)
	})
}

func (b *memBatch) UpsertRunSummary(summary domain.RunSummary) {
	b.ops = append(b.ops, func() {
		b.store.summaries[summary.UID] = summary
	})
}

func (b *memBatch) Len() int { return len(b.ops) }

func (b *memBatch) Flush(context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		op()
	}
	b.store.flushes = append(b.store.flushes, len(b.ops))
	b.ops = b.ops[:0]
	return nil
}

// memLease — заглушка аренды запуска.
type memLease struct {
	mu       sync.Mutex
	busy     bool
	acquired int
	released int
}

func (l *memLease) Acquire(context.Context, time.Time, time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return false, nil
	}
	l.busy = true
	l.acquired++
	return true, nil
}

func (l *memLease) Release(context.Context, time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.busy = false
	l.released++
	return nil
}
