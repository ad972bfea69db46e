package addrcache

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/PocketRelay/PocketArkClient/internal/obs"
	"github.com/redis/go-redis/v9"
)

const redisKey = "pocketark:public_address"

// redisCache stores the resolved address in Redis with the cache TTL
// so restarts of the client reuse it instead of hitting the external
// services again. Refreshes are still serialized locally.
type redisCache struct {
	client   *redis.Client
	resolver *resolver
	mu       sync.Mutex
}

// NewRedis returns a Redis-backed Cache, verifying connectivity first.
func NewRedis(addr, password string, db int) (Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &redisCache{client: rdb, resolver: newResolver(nil)}, nil
}

func (r *redisCache) PublicAddress(ctx context.Context, fallback net.IP) net.IP {
	if ip := r.get(ctx); ip != nil {
		return ip
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: another caller may have refreshed while we waited.
	if ip := r.get(ctx); ip != nil {
		return ip
	}
	ip := r.resolver.resolve(ctx)
	if ip == nil {
		return fallback
	}
	if err := r.client.Set(ctx, redisKey, ip.String(), TTL).Err(); err != nil {
		obs.Error("addrcache.redis.set", obs.Fields{"err": err.Error()})
	}
	return ip
}

func (r *redisCache) get(ctx context.Context) net.IP {
	val, err := r.client.Get(ctx, redisKey).Result()
	if err != nil {
		if err != redis.Nil {
			obs.Error("addrcache.redis.get", obs.Fields{"err": err.Error()})
		}
		return nil
	}
	if ip := net.ParseIP(val); ip != nil {
		return ip.To4()
	}
	return nil
}
