package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key (server id) plus an optional
// global bucket shared by all keys.
type KeyedLimiter struct {
	mu      sync.Mutex
	global  *rate.Limiter
	perKey  map[string]*entry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter. perSecond <= 0 disables per-key limiting and
// globalPerSecond <= 0 disables the global bucket.
func New(perSecond float64, globalPerSecond float64, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	kl := &KeyedLimiter{
		perKey:  make(map[string]*entry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
	if globalPerSecond > 0 {
		kl.global = rate.NewLimiter(rate.Limit(globalPerSecond), burst)
	}
	return kl
}

// Allow reports whether an action for key may proceed now and consumes a token if so.
func (kl *KeyedLimiter) Allow(key string) bool {
	now := kl.now()
	if kl.global != nil && !kl.global.AllowN(now, 1) {
		return false
	}
	if kl.limit <= 0 {
		return true
	}
	kl.mu.Lock()
	e, ok := kl.perKey[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(kl.limit, kl.burst)}
		kl.perKey[key] = e
	}
	e.lastSeen = now
	kl.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// Sweep drops buckets not used for the idle TTL and returns how many were removed.
func (kl *KeyedLimiter) Sweep() int {
	cutoff := kl.now().Add(-kl.idleTTL)
	kl.mu.Lock()
	defer kl.mu.Unlock()
	n := 0
	for k, e := range kl.perKey {
		if e.lastSeen.Before(cutoff) {
			delete(kl.perKey, k)
			n++
		}
	}
	return n
}
