package agent

import (
	"context"
	"sync"
	"time"
)

// RateLimiter throttles generation calls with one token bucket per scope
// (tenant or patient), so one busy tenant cannot starve the others.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     float64
	rate    float64 // tokens per second
	now     func() time.Time

	lastSweep time.Time
}

// sweepInterval bounds how often idle buckets are dropped.
const sweepInterval = time.Minute

type bucket struct {
	tokens   float64
	lastTime time.Time
}

func NewRateLimiter(maxBurst int, ratePerMinute float64) *RateLimiter {
	if maxBurst <= 0 {
		maxBurst = 10
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		max:     float64(maxBurst),
		rate:    ratePerMinute / 60.0,
		now:     time.Now,
	}
}

// take refills the scope's bucket and consumes a token if one is available.
// Otherwise it returns how long until the next token.
func (rl *RateLimiter) take(scope string) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweep(now)
	}
	b, ok := rl.buckets[scope]
	if !ok {
		b = &bucket{tokens: rl.max, lastTime: now}
		rl.buckets[scope] = b
	}
	b.tokens += now.Sub(b.lastTime).Seconds() * rl.rate
	if b.tokens > rl.max {
		b.tokens = rl.max
	}
	b.lastTime = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return 0, true
	}
	waitSec := (1.0 - b.tokens) / rl.rate
	return time.Duration(waitSec * float64(time.Second)), false
}

// sweep drops buckets that have refilled to max. A new bucket starts full,
// so dropping one does not change the outcome for its scope.
func (rl *RateLimiter) sweep(now time.Time) {
	for scope, b := range rl.buckets {
		if b.tokens+now.Sub(b.lastTime).Seconds()*rl.rate >= rl.max {
			delete(rl.buckets, scope)
		}
	}
	rl.lastSweep = now
}

// Allow consumes a token for scope without waiting.
func (rl *RateLimiter) Allow(scope string) bool {
	_, ok := rl.take(scope)
	return ok
}

// Wait blocks until scope has a token or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, scope string) error {
	for {
		wait, ok := rl.take(scope)
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
