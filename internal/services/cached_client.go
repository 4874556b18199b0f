package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/pkg/cache"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

type bypassKey struct{}

// WithCacheBypass marks ctx so CachedMetricsClient skips cache reads. Fresh
// results are still written back.
func WithCacheBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// CachedMetricsClient caches parsed query responses in Valkey. Errors are
// never cached.
type CachedMetricsClient struct {
	next   MetricsClient
	cache  cache.ValkeyCluster
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedMetricsClient(next MetricsClient, c cache.ValkeyCluster, ttl time.Duration, logger logger.Logger) *CachedMetricsClient {
	return &CachedMetricsClient{next: next, cache: c, ttl: ttl, logger: logger}
}

func (c *CachedMetricsClient) Execute(ctx context.Context, query string, startSeconds, endSeconds int64) (models.QueryResponse, error) {
	hash := cache.QueryHash("instant", query, strconv.FormatInt(endSeconds, 10))
	return c.cached(ctx, hash, func() (models.QueryResponse, error) {
		return c.next.Execute(ctx, query, startSeconds, endSeconds)
	})
}

func (c *CachedMetricsClient) ExecuteRange(ctx context.Context, query string, startSeconds, endSeconds int64, step string) (models.QueryResponse, error) {
	hash := cache.QueryHash("range", query,
		strconv.FormatInt(startSeconds, 10), strconv.FormatInt(endSeconds, 10), step)
	return c.cached(ctx, hash, func() (models.QueryResponse, error) {
		return c.next.ExecuteRange(ctx, query, startSeconds, endSeconds, step)
	})
}

func (c *CachedMetricsClient) cached(ctx context.Context, hash string, fetch func() (models.QueryResponse, error)) (models.QueryResponse, error) {
	if !cacheBypassed(ctx) {
		raw, err := c.cache.GetCachedQueryResult(ctx, hash)
		switch {
		case err == nil:
			var resp models.QueryResponse
			if err := json.Unmarshal(raw, &resp); err == nil {
				return resp, nil
			}
			c.logger.Warn("Discarding undecodable cached query result", "hash", hash)
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Debug("Query cache read failed", "error", err)
		}
	}

	resp, err := fetch()
	if err != nil {
		return resp, err
	}
	if err := c.cache.CacheQueryResult(ctx, hash, resp, c.ttl); err != nil {
		c.logger.Warn("Failed to cache query result", "hash", hash, "error", err)
	}
	return resp, nil
}
