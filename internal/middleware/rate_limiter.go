package middleware

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ==================== SyncRateLimiter ====================

// SyncRateLimiter is a per-key cooldown for manually triggered store calls,
// so that a user hammering "Sync now" does not hammer the store.
type SyncRateLimiter struct {
	locks sync.Map // key -> *lockEntry
	now   func() time.Time
}

type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

func NewSyncRateLimiter() *SyncRateLimiter {
	return &SyncRateLimiter{now: time.Now}
}

// CheckResult is the answer of Check / CheckOnly.
type CheckResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Check reports whether key may run now and, if so, starts its cooldown.
// key looks like "site:123:products".
func (r *SyncRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	elapsed := now.Sub(entry.lastTime)
	if elapsed < interval {
		return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// CheckOnly is Check without starting a cooldown.
func (r *SyncRateLimiter) CheckOnly(key string, interval time.Duration) CheckResult {
	actual, ok := r.locks.Load(key)
	if !ok {
		return CheckResult{Allowed: true}
	}

	entry := actual.(*lockEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	elapsed := r.now().Sub(entry.lastTime)
	if elapsed < interval {
		return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
	}
	return CheckResult{Allowed: true}
}

// Reset clears the cooldown of key, e.g. after a failed call.
func (r *SyncRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Keys ====================

// SyncType names the store call being limited.
type SyncType string

const (
	SyncTypeProducts     SyncType = "products"
	SyncTypeStats        SyncType = "stats"
	SyncTypePriceHistory SyncType = "price_history"
	SyncTypeConnection   SyncType = "connection"
)

func SiteSyncKey(siteID int64, syncType SyncType) string {
	return fmt.Sprintf("site:%d:%s", siteID, syncType)
}

func ProductSyncKey(productID int64, syncType SyncType) string {
	return fmt.Sprintf("product:%d:%s", productID, syncType)
}

func GlobalSyncKey(syncType SyncType) string {
	return fmt.Sprintf("global:%s", syncType)
}

// DefaultIntervals are used when a route passes a zero interval.
var DefaultIntervals = map[SyncType]time.Duration{
	SyncTypeProducts:     30 * time.Second,
	SyncTypeStats:        10 * time.Second,
	SyncTypePriceHistory: 10 * time.Second,
	SyncTypeConnection:   3 * time.Second,
}

func GetInterval(syncType SyncType) time.Duration {
	if interval, ok := DefaultIntervals[syncType]; ok {
		return interval
	}
	return 30 * time.Second
}

// ==================== KeyRateLimiter ====================

// KeyRateLimiter keeps one token bucket per key (webhook API keys).
type KeyRateLimiter struct {
	limiters sync.Map // key -> *rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewKeyRateLimiter allows perSecond events per key with the given burst.
func NewKeyRateLimiter(perSecond float64, burst int) *KeyRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyRateLimiter{limit: rate.Limit(perSecond), burst: burst}
}

func (l *KeyRateLimiter) Allow(key string) bool {
	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	return actual.(*rate.Limiter).Allow()
}
