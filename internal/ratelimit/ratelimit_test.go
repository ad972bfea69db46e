package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	bucket := NewTokenBucket(2, 5) // 2 tokens per second, capacity of 5

	// Initial tokens should be at capacity
	for i := 0; i < 5; i++ {
		if !bucket.Allow() {
			t.Errorf("Expected initial request %d to be allowed", i)
		}
	}

	// Next request should be denied (bucket empty)
	if bucket.Allow() {
		t.Error("Expected request to be denied when bucket is empty")
	}

	// Wait and check if tokens are refilled
	time.Sleep(1100 * time.Millisecond)

	if !bucket.Allow() {
		t.Error("Expected request to be allowed after token refill")
	}
	if !bucket.Allow() {
		t.Error("Expected second request to be allowed after token refill")
	}
	if bucket.Allow() {
		t.Error("Expected third request to be denied")
	}
}

func TestSourceLimiterPerSource(t *testing.T) {
	l := NewSourceLimiter(0, 2, 3) // global disabled; 2/s per source, burst 3

	src := "198.51.100.1"
	for i := 0; i < 3; i++ {
		if !l.Allow(src) {
			t.Errorf("Expected datagram %d to be allowed for %s", i, src)
		}
	}
	if l.Allow(src) {
		t.Error("Expected datagram to be denied once burst consumed")
	}

	// A different source has its own bucket
	if !l.Allow("198.51.100.2") {
		t.Error("Expected datagram from fresh source to be allowed")
	}
}

func TestSourceLimiterGlobal(t *testing.T) {
	l := NewSourceLimiter(2, 0, 2) // per-source disabled; global 2/s, burst 2

	if !l.Allow("a") {
		t.Error("Expected first global datagram to be allowed")
	}
	if !l.Allow("b") {
		t.Error("Expected second global datagram to be allowed")
	}
	if l.Allow("c") {
		t.Error("Expected datagram to be denied once global burst consumed")
	}
}

func TestSourceLimiterDisabled(t *testing.T) {
	l := NewSourceLimiter(0, 0, 5)
	for i := 0; i < 100; i++ {
		if !l.Allow("any") {
			t.Errorf("Expected datagram %d to be allowed with limits disabled", i)
		}
	}
}

func TestSourceLimiterBounded(t *testing.T) {
	l := NewSourceLimiter(0, 1000, 1000)
	for i := 0; i < maxSources+10; i++ {
		l.Allow(fmt.Sprintf("src-%d", i))
	}
	if got := l.Sources(); got > maxSources {
		t.Errorf("Sources = %d, want <= %d", got, maxSources)
	}
}
