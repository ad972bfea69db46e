// Package ratelimit provides token-bucket limiting keyed by source
// address. The QoS service uses it to keep a chatty or spoofed peer
// from monopolizing the echo loop; the tunnel uses it to bound
// connection churn per source.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	rate       int // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket with the given rate and capacity.
func NewTokenBucket(rate, capacity int) *TokenBucket {
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		rate:       rate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can be allowed and consumes a token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int(elapsed.Seconds() * float64(tb.rate))
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// maxSources caps the per-source bucket map. Datagram sources churn
// (NAT rebinding during matchmaking), so when the cap is hit the map
// is reset rather than tracked with an eviction list.
const maxSources = 4096

// SourceLimiter applies a global and a per-source token bucket. A
// rate of 0 disables the corresponding check.
type SourceLimiter struct {
	mu      sync.Mutex
	global  *TokenBucket
	buckets map[string]*TokenBucket
	rate    int
	burst   int
}

// NewSourceLimiter creates a limiter with a shared global rate and a
// per-source rate, both with the same burst size.
func NewSourceLimiter(globalRate, perSourceRate, burst int) *SourceLimiter {
	l := &SourceLimiter{
		buckets: make(map[string]*TokenBucket),
		rate:    perSourceRate,
		burst:   burst,
	}
	if globalRate > 0 {
		l.global = NewTokenBucket(globalRate, burst)
	}
	return l
}

// Allow reports whether the given source may proceed, consuming a
// token from both the global and the source's bucket.
func (l *SourceLimiter) Allow(source string) bool {
	if l.global != nil && !l.global.Allow() {
		return false
	}
	if l.rate <= 0 {
		return true
	}

	l.mu.Lock()
	if len(l.buckets) >= maxSources {
		l.buckets = make(map[string]*TokenBucket)
	}
	bucket, exists := l.buckets[source]
	if !exists {
		bucket = NewTokenBucket(l.rate, l.burst)
		l.buckets[source] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}

// Sources returns how many distinct sources currently hold a bucket.
func (l *SourceLimiter) Sources() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
