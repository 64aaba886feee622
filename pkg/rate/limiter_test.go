package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNoLimiter(t *testing.T) {
	l := &NoLimiter{}
	for i := 0; i < 10000; i++ {
		allowed, err := l.Allow("")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestNewLimiter(t *testing.T) {
	for _, limit := range []float64{0, -1} {
		assert.IsType(t, &NoLimiter{}, NewLimiter(limit))
	}

	l := NewLimiter(1)
	assert.IsType(t, &localRateLimiter{}, l)

	allowed, err := l.Allow("a")
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow("a")
	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestLocalRateLimiter(t *testing.T) {
	now := time.Now()
	l := NewLocalRateLimiter(rate.Limit(2)).(*localRateLimiter)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("a")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := l.Allow("a")
	assert.NoError(t, err)
	assert.False(t, allowed)

	// Ensure key partitioning is valid
	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("b")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err = l.Allow("b")
	assert.NoError(t, err)
	assert.False(t, allowed)

	// Tokens refill over time
	now = now.Add(500 * time.Millisecond)
	allowed, _ = l.Allow("a")
	assert.True(t, allowed)
}

func TestLocalRateLimiter_FractionalRate(t *testing.T) {
	now := time.Now()
	l := NewLocalRateLimiter(rate.Limit(0.5)).(*localRateLimiter)
	l.now = func() time.Time { return now }

	allowed, _ := l.Allow("a")
	assert.True(t, allowed)
	allowed, _ = l.Allow("a")
	assert.False(t, allowed)

	now = now.Add(2 * time.Second)
	allowed, _ = l.Allow("a")
	assert.True(t, allowed)
}

func TestLocalRateLimiter_ForgetsIdleKeys(t *testing.T) {
	now := time.Now()
	l := NewLocalRateLimiter(rate.Limit(1)).(*localRateLimiter)
	l.now = func() time.Time { return now }

	_, _ = l.Allow("a")
	_, _ = l.Allow("b")
	assert.Len(t, l.limiters, 2)

	now = now.Add(2 * time.Minute)
	_, _ = l.Allow("b")
	assert.Len(t, l.limiters, 1)
	assert.Contains(t, l.limiters, "b")
}
