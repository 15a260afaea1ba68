package directoryRepo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"schoolfees/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const schoolCacheKeyPrefix = "school_code:"

// CachedDirectory serves school-code lookups from Redis and delegates everything
// else to the wrapped repository. Cache failures fall through to the store.
type CachedDirectory struct {
	DirectoryRepository
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps inner with a Redis school-code cache.
func NewCachedDirectory(inner DirectoryRepository, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{DirectoryRepository: inner, cache: cache, ttl: ttl, logger: logger}
}

func schoolCacheKey(code string) string {
	return schoolCacheKeyPrefix + strings.ToUpper(strings.TrimSpace(code))
}

// GetSchoolByCode checks Redis before the store and caches hits for the configured TTL.
// Misses are not cached so a newly onboarded school resolves immediately.
func (c *CachedDirectory) GetSchoolByCode(ctx context.Context, code string) (*models.School, error) {
	key := schoolCacheKey(code)

	cached, err := c.cache.Get(ctx, key).Result()
	if err == nil {
		var school models.School
		if jsonErr := json.Unmarshal([]byte(cached), &school); jsonErr == nil {
			return &school, nil
		}
		c.logger.Warn("Discarding unreadable school cache entry", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("School cache unavailable, reading from store", zap.Error(err))
	}

	school, err := c.DirectoryRepository.GetSchoolByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(school); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to cache school", zap.String("key", key), zap.Error(err))
		}
	}
	return school, nil
}
