package addrcache

import (
	"context"
	"net"
	"sync"
	"time"
)

// memoryCache keeps the resolved address in-process. The read lock
// serves the fast path; refresh takes the write lock and re-checks
// expiry so waiters coalesce into one recomputation.
type memoryCache struct {
	resolver *resolver

	mu      sync.RWMutex
	value   net.IP
	expires time.Time
}

// NewMemory returns an in-process Cache. endpoints overrides the
// external resolver list; pass nil for the defaults.
func NewMemory(endpoints []string) Cache {
	return &memoryCache{resolver: newResolver(endpoints)}
}

func (m *memoryCache) PublicAddress(ctx context.Context, fallback net.IP) net.IP {
	m.mu.RLock()
	if m.value != nil && time.Now().Before(m.expires) {
		value := m.value
		m.mu.RUnlock()
		return value
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have refreshed while we waited for the lock.
	if m.value != nil && time.Now().Before(m.expires) {
		return m.value
	}
	if ip := m.resolver.resolve(ctx); ip != nil {
		m.value = ip
		m.expires = time.Now().Add(TTL)
		return ip
	}
	// Total failure: answer with the caller's fallback without
	// poisoning the cache, so the next datagram retries resolution.
	return fallback
}
