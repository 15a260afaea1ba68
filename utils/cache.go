// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"schoolfees/config"

	"github.com/go-redis/redis/v8"
)

var (
	// CacheClient is the generic cache client (directory lookups).
	CacheClient *redis.Client
	// SequenceClient holds the receipt number counters.
	SequenceClient *redis.Client
)

func newRedisClient(db int, name string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		// Both clients have a degraded path, so an unreachable Redis is not fatal.
		log.Printf("WARNING: Redis (%s) not reachable at startup: %v", name, err)
	}
	return client
}

// InitCache initializes the generic Redis cache client.
func InitCache() {
	CacheClient = newRedisClient(config.AppConfig.RedisCacheDB, "cache")
}

// GetCacheClient returns the generic cache client.
func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		InitCache()
	}
	return CacheClient
}

// InitSequenceStore initializes the Redis client used for receipt counters.
func InitSequenceStore() {
	SequenceClient = newRedisClient(config.AppConfig.RedisSequenceDB, "sequence")
}

// GetSequenceClient returns the Redis client used for receipt counters.
func GetSequenceClient() *redis.Client {
	if SequenceClient == nil {
		InitSequenceStore()
	}
	return SequenceClient
}
