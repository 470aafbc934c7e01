package oracle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore adapts a Redis connection to the Store interface, grounded on
// original_source/src/database/redis_client.py's RedisClient: a short,
// best-effort read of a single key. A client is always built for the
// given address; an unreachable server makes each Get fail fast rather
// than blocking the run on a missing price feed.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisStore connects to addr (host:port). Mirrors redis_client.py's
// short socket timeout so a stalled price feed degrades pricing instead of
// stalling the run.
func NewRedisStore(addr, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &RedisStore{client: client, ctx: context.Background()}
}

// Get implements Store. A missing key or any Redis error both surface as
// "not found" — the caller (Oracle.NativeUSDPrice) turns that into
// errs.NativePriceUnavailable rather than a numeric fallback.
func (r *RedisStore) Get(key string) (string, bool) {
	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
