// Package ratelimit throttles anonymous tracking lookups per client key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed holds one token bucket per key. Idle buckets are dropped by Sweep.
type Keyed struct {
	mu      sync.Mutex
	buckets map[string]*entry
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewKeyed allows perMinute lookups per key with the given burst. A
// non-positive perMinute disables limiting.
func NewKeyed(perMinute float64, burst int) *Keyed {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &Keyed{
		buckets: make(map[string]*entry),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	e, ok := k.buckets[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Sweep forgets keys not seen for idle and returns how many were dropped.
func (k *Keyed) Sweep(idle time.Duration) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	cutoff := k.now().Add(-idle)
	dropped := 0
	for key, e := range k.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(k.buckets, key)
			dropped++
		}
	}
	return dropped
}

func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
