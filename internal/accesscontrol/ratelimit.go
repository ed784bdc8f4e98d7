package accesscontrol

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tier names an independent rate-limit dimension. Each tier keeps its own
// counter per key with its own limit and window.
type Tier string

const (
	TierAPIKey Tier = "api_key"
	TierUser   Tier = "user"
	TierIP     Tier = "ip"
)

// RateCheck describes one tier evaluation for a request.
type RateCheck struct {
	Tier   Tier
	Key    string
	Limit  int64
	Window time.Duration
}

// RateStatus is the outcome of a single tier check, surfaced to callers for
// X-RateLimit-* response headers.
type RateStatus struct {
	Tier      Tier
	Key       string
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateResult aggregates all tier checks for a request. A request passes only
// when every tier allows it; Restrictive is the status with the fewest
// remaining requests, the one rendered into headers.
type RateResult struct {
	Allowed     bool
	Statuses    []RateStatus
	Restrictive RateStatus
}

// CounterStore provides the shared window counters. Incr must be atomic per
// key: concurrent increments may never lose an update, or limits could be
// bypassed. The first increment of a window anchors it; once the window
// elapses the count restarts from zero.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// MemoryCounterStore is a process-local CounterStore.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
}

type windowCounter struct {
	count int64
	start time.Time
}

// NewMemoryCounterStore builds an empty counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]*windowCounter)}
}

func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.Sub(c.start) >= window {
		c = &windowCounter{start: now}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.start.Add(window), nil
}

// RateLimiter evaluates sliding-window counters over a CounterStore.
type RateLimiter struct {
	store    CounterStore
	failOpen bool
	logger   *zap.Logger
}

// NewRateLimiter builds a limiter. failOpen controls behavior when the
// counter store is unreachable: true admits the request with a warning
// (availability over strictness, the default policy), false denies it.
func NewRateLimiter(store CounterStore, failOpen bool, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{store: store, failOpen: failOpen, logger: logger}
}

// Check increments the counter for (tier, key) and reports the tier status.
// The increment happens regardless of outcome: rejected requests still burn
// budget, which blunts retry storms.
func (l *RateLimiter) Check(ctx context.Context, c RateCheck) (RateStatus, error) {
	key := string(c.Tier) + ":" + c.Key

	count, resetAt, err := l.store.Incr(ctx, key, c.Window)
	if err != nil {
		if l.failOpen {
			l.logger.Warn("counter store unavailable, admitting request",
				zap.String("tier", string(c.Tier)), zap.Error(err))
			return RateStatus{
				Tier: c.Tier, Key: c.Key, Allowed: true,
				Limit: c.Limit, Remaining: c.Limit, ResetAt: time.Now().Add(c.Window),
			}, nil
		}
		l.logger.Error("counter store unavailable, denying request",
			zap.String("tier", string(c.Tier)), zap.Error(err))
		return RateStatus{
			Tier: c.Tier, Key: c.Key, Allowed: false,
			Limit: c.Limit, Remaining: 0, ResetAt: time.Now().Add(c.Window),
		}, nil
	}

	remaining := c.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return RateStatus{
		Tier:      c.Tier,
		Key:       c.Key,
		Allowed:   count <= c.Limit,
		Limit:     c.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// CheckAll evaluates every configured tier. All tiers are incremented even
// when an earlier one denies, keeping their windows consistent with one
// another.
func (l *RateLimiter) CheckAll(ctx context.Context, checks []RateCheck) (RateResult, error) {
	result := RateResult{Allowed: true}

	for i, c := range checks {
		status, err := l.Check(ctx, c)
		if err != nil {
			return RateResult{}, err
		}
		result.Statuses = append(result.Statuses, status)
		if !status.Allowed {
			result.Allowed = false
		}
		if i == 0 || moreRestrictive(status, result.Restrictive) {
			result.Restrictive = status
		}
	}
	return result, nil
}

// moreRestrictive orders statuses: denials beat allowances, then fewer
// remaining requests, then the later reset.
func moreRestrictive(a, b RateStatus) bool {
	if a.Allowed != b.Allowed {
		return !a.Allowed
	}
	if a.Remaining != b.Remaining {
		return a.Remaining < b.Remaining
	}
	return a.ResetAt.After(b.ResetAt)
}
