package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/common/metrics"
	"leadgen-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const DefaultCacheTTL = 24 * time.Hour

// CachedLegalSource serves repeated legal lookups from Redis. Only successful
// answers are stored. Redis failures fall through to the wrapped source.
type CachedLegalSource struct {
	next   LegalSource
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedLegalSource(next LegalSource, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedLegalSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedLegalSource{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "legal-cache"}),
	}
}

// CacheKey is "legal:<kind>:<value>"; name lookups are case-insensitive.
func CacheKey(q models.LegalQuery) string {
	value := q.Value
	if q.Kind == models.IdentifierName {
		value = strings.ToLower(value)
	}
	return fmt.Sprintf("legal:%s:%s", q.Kind, value)
}

func (c *CachedLegalSource) Lookup(ctx context.Context, q models.LegalQuery) (*models.LegalData, error) {
	key := CacheKey(q)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached models.LegalData
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
			metrics.EnrichmentCacheHits.Inc()
			return &cached, nil
		}
		c.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": key})
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("legal cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	data, err := c.next.Lookup(ctx, q)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return data, nil
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("legal cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	return data, nil
}
