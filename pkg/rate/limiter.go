package rate

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type localRateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	sync.Mutex
	limiters  map[string]*keyedLimiter
	lastSweep time.Time
	now       func() time.Time
}

type keyedLimiter struct {
	*rate.Limiter
	lastUsed time.Time
}

// NewLimiter returns a local limiter allowing limit operations per second for
// each key. A non-positive limit disables limiting.
func NewLimiter(limit float64) Limiter {
	if limit <= 0 {
		return &NoLimiter{}
	}
	return NewLocalRateLimiter(rate.Limit(limit))
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations
// per second for each key, with a burst of at least one. Keys unused for a
// minute are forgotten.
func NewLocalRateLimiter(limit rate.Limit) Limiter {
	burst := int(math.Ceil(float64(limit)))
	if burst < 1 {
		burst = 1
	}

	return &localRateLimiter{
		limit:    limit,
		burst:    burst,
		idle:     time.Minute,
		limiters: make(map[string]*keyedLimiter),
		now:      time.Now,
	}
}

// Allow implements limiter.Allow.
func (l *localRateLimiter) Allow(key string) (bool, error) {
	l.Lock()
	now := l.now()
	l.sweep(now)

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = &keyedLimiter{Limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = limiter
	}
	limiter.lastUsed = now
	l.Unlock()

	return limiter.AllowN(now, 1), nil
}

// sweep drops idle limiters, at most once per idle period. Callers hold the
// lock.
func (l *localRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now

	for key, limiter := range l.limiters {
		if now.Sub(limiter.lastUsed) >= l.idle {
			delete(l.limiters, key)
		}
	}
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements limiter.Allow.
func (n *NoLimiter) Allow(_ string) (bool, error) {
	return true, nil
}
