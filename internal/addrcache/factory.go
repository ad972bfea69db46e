package addrcache

import "github.com/PocketRelay/PocketArkClient/internal/obs"

// New creates either an in-memory or Redis-backed cache based on
// configuration. An empty redisAddr selects the in-memory backend.
func New(redisAddr, redisPassword string, redisDB int) (Cache, error) {
	if redisAddr == "" {
		obs.Info("addrcache.backend", obs.Fields{"type": "in-memory"})
		return NewMemory(nil), nil
	}
	obs.Info("addrcache.backend", obs.Fields{"type": "redis", "addr": redisAddr})
	return NewRedis(redisAddr, redisPassword, redisDB)
}
