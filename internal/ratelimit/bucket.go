// Package ratelimit implements the blocking token bucket that throttles
// upstream signal fetches. Two process-wide buckets exist (weather, news) so
// the signal classes throttle independently; see internal/agent/tools.
//
// This is deliberately not golang.org/x/time/rate: Acquire must block the
// caller and refill in whole intervals (burst-per-interval semantics), while
// x/time/rate smooths tokens continuously. The HTTP layer uses x/time/rate
// for per-caller request limiting where smoothing is what we want.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket refilled lazily in whole intervals.
// Acquire can only delay the caller, never fail.
type Bucket struct {
	mu         sync.Mutex
	capacity   int
	interval   time.Duration
	tokens     int
	lastRefill time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewBucket creates a full bucket holding capacity tokens per interval.
func NewBucket(capacity int, interval time.Duration) *Bucket {
	if capacity < 1 {
		capacity = 1
	}
	return &Bucket{
		capacity:   capacity,
		interval:   interval,
		tokens:     capacity,
		lastRefill: time.Now(),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Acquire blocks until a token is available, then consumes one.
//
// Refill is lazy: elapsed whole intervals since the last refill top the
// bucket up by intervals×capacity, capped at capacity. When the bucket is
// empty the caller sleeps out the remainder of the current interval and the
// bucket resets to full.
func (b *Bucket) Acquire() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.lastRefill)

	if intervals := int(elapsed / b.interval); intervals > 0 {
		b.tokens = min(b.capacity, b.tokens+intervals*b.capacity)
		b.lastRefill = now
	}

	if b.tokens == 0 {
		if remaining := b.interval - now.Sub(b.lastRefill); remaining > 0 {
			b.sleep(remaining)
		}
		b.tokens = b.capacity
		b.lastRefill = b.now()
	}

	b.tokens--
}

// Tokens returns the current token count without refilling. Test hook.
func (b *Bucket) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}
