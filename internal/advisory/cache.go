package advisory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"thittam.org/internal/obs"
)

const cachePrefix = "advisory:"

// Cached stores search results and requirement fields in Redis. Other calls
// pass straight through. Cache failures never fail the call.
type Cached struct {
	Service
	rdb *redis.Client
	ttl time.Duration
}

func NewCached(next Service, rdb *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{Service: next, rdb: rdb, ttl: ttl}
}

func cacheKey(ctx context.Context, kind, input string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(input))))
	return cachePrefix + kind + ":" + string(LanguageFrom(ctx)) + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) SearchSchemes(ctx context.Context, query string) (SearchResult, error) {
	key := cacheKey(ctx, "search", query)
	var hit SearchResult
	if c.get(ctx, key, &hit) {
		return hit, nil
	}
	res, err := c.Service.SearchSchemes(ctx, query)
	if err != nil {
		return res, err
	}
	c.put(ctx, key, res)
	return res, nil
}

func (c *Cached) Requirements(ctx context.Context, scheme string) ([]RequirementField, error) {
	key := cacheKey(ctx, "requirements", scheme)
	var hit []RequirementField
	if c.get(ctx, key, &hit) {
		return hit, nil
	}
	fields, err := c.Service.Requirements(ctx, scheme)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, fields)
	return fields, nil
}

func (c *Cached) get(ctx context.Context, key string, v any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			obs.Logger().Warn("advisory cache read failed", slog.String("key", key), obs.Err(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		obs.Logger().Warn("advisory cache entry unreadable", slog.String("key", key), obs.Err(err))
		return false
	}
	return true
}

func (c *Cached) put(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		obs.Logger().Warn("advisory cache write failed", slog.String("key", key), obs.Err(err))
	}
}
