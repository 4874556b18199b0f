package cache

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// autoSwapCache starts with a fallback (the in-memory noop cache) and keeps
// dialing the real Valkey client until it succeeds, then swaps atomically.
type autoSwapCache struct {
	mu      sync.RWMutex
	current ValkeyCluster
	logger  logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newAutoSwapCache(
	fallback ValkeyCluster,
	logger logger.Logger,
	interval time.Duration,
	dialReal func() (ValkeyCluster, error),
) *autoSwapCache {
	a := &autoSwapCache{
		current: fallback,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				real, err := dialReal()
				if err != nil {
					a.logger.Warn("Valkey connection attempt failed; will retry", "error", err)
					continue
				}
				a.mu.Lock()
				a.current = real
				a.mu.Unlock()
				a.logger.Info("Valkey connection established; switched from in-memory to real cache")
				return
			}
		}
	}()

	return a
}

// Stop stops the background connector.
func (a *autoSwapCache) Stop() { a.stopOnce.Do(func() { close(a.stopCh) }) }

func (a *autoSwapCache) active() ValkeyCluster {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

func (a *autoSwapCache) Get(ctx context.Context, key string) ([]byte, error) {
	return a.active().Get(ctx, key)
}

func (a *autoSwapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.active().Set(ctx, key, value, ttl)
}

func (a *autoSwapCache) Delete(ctx context.Context, key string) error {
	return a.active().Delete(ctx, key)
}

func (a *autoSwapCache) CacheQueryResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error {
	return a.active().CacheQueryResult(ctx, queryHash, result, ttl)
}

func (a *autoSwapCache) GetCachedQueryResult(ctx context.Context, queryHash string) ([]byte, error) {
	return a.active().GetCachedQueryResult(ctx, queryHash)
}

func (a *autoSwapCache) HealthCheck(ctx context.Context) error {
	return a.active().HealthCheck(ctx)
}

const swapInterval = 5 * time.Second

// NewAutoSwapForSingle creates an auto-swapping cache that upgrades from
// in-memory to a single-node Valkey client when reachable.
func NewAutoSwapForSingle(addr string, db int, password string, ttl time.Duration, log logger.Logger, fallback ValkeyCluster) ValkeyCluster {
	return newAutoSwapCache(fallback, log, swapInterval, func() (ValkeyCluster, error) {
		return NewValkeySingle(addr, db, password, ttl)
	})
}

// NewAutoSwapForCluster creates an auto-swapping cache that upgrades from
// in-memory to a Valkey cluster client when reachable.
func NewAutoSwapForCluster(nodes []string, password string, ttl time.Duration, log logger.Logger, fallback ValkeyCluster) ValkeyCluster {
	return newAutoSwapCache(fallback, log, swapInterval, func() (ValkeyCluster, error) {
		return NewValkeyCluster(nodes, password, ttl)
	})
}

// Open connects to Valkey (one node: single client, more: cluster client).
// When the first dial fails it returns the in-memory cache wrapped so that it
// upgrades once Valkey becomes reachable. No nodes means in-memory only.
func Open(nodes []string, db int, password string, ttl time.Duration, log logger.Logger) ValkeyCluster {
	fallback := func() ValkeyCluster { return NewNoopValkeyCache(log, ttl) }
	switch len(nodes) {
	case 0:
		return fallback()
	case 1:
		c, err := NewValkeySingle(nodes[0], db, password, ttl)
		if err == nil {
			return c
		}
		log.Warn("Valkey single-node unreachable", "addr", nodes[0], "error", err)
		return NewAutoSwapForSingle(nodes[0], db, password, ttl, log, fallback())
	default:
		c, err := NewValkeyCluster(nodes, password, ttl)
		if err == nil {
			return c
		}
		log.Warn("Valkey cluster unreachable", "nodes", nodes, "error", err)
		return NewAutoSwapForCluster(nodes, password, ttl, log, fallback())
	}
}
