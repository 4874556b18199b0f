package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// noopValkeyCache provides an in-memory, process-local fallback that satisfies
// ValkeyCluster when the external cache is unavailable. Data is not shared
// across replicas and is lost on restart.
type noopValkeyCache struct {
	m      map[string]noopEntry
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

type noopEntry struct {
	data    []byte
	expires time.Time
}

func NewNoopValkeyCache(log logger.Logger, defaultTTL time.Duration) ValkeyCluster {
	log.Warn("Valkey cache unavailable; using in-memory fallback (noop)")
	return &noopValkeyCache{m: make(map[string]noopEntry), ttl: defaultTTL, now: time.Now, logger: log}
}

func (n *noopValkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	n.mu.RLock()
	e, ok := n.m[key]
	n.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && !n.now().Before(e.expires) {
		n.mu.Lock()
		delete(n.m, key)
		n.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return e.data, nil
}

func (n *noopValkeyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := encode(key, value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = n.ttl
	}
	e := noopEntry{data: b}
	if ttl > 0 {
		e.expires = n.now().Add(ttl)
	}
	n.mu.Lock()
	n.m[key] = e
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) Delete(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.m, key)
	n.mu.Unlock()
	return nil
}

func (n *noopValkeyCache) CacheQueryResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error {
	return n.Set(ctx, queryKey(queryHash), result, ttl)
}

func (n *noopValkeyCache) GetCachedQueryResult(ctx context.Context, queryHash string) ([]byte, error) {
	return n.Get(ctx, queryKey(queryHash))
}

// HealthCheck always fails so readiness reports the degraded cache.
func (n *noopValkeyCache) HealthCheck(ctx context.Context) error {
	return errors.New("valkey unavailable: using in-memory cache")
}
