package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

func TestNoopValkey_BasicOps(t *testing.T) {
	cch := NewNoopValkeyCache(logger.NewNop(), time.Minute)
	ctx := context.Background()

	require.NoError(t, cch.Set(ctx, "k1", "v1", time.Second))
	b, err := cch.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b))

	require.NoError(t, cch.Delete(ctx, "k1"))
	_, err = cch.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cch.CacheQueryResult(ctx, QueryHash("q", "1", "2"), map[string]int{"a": 1}, time.Second))
	b, err = cch.GetCachedQueryResult(ctx, QueryHash("q", "1", "2"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	assert.Error(t, cch.HealthCheck(ctx))
}

func TestNoopValkey_Expiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cch := NewNoopValkeyCache(logger.NewNop(), time.Minute).(*noopValkeyCache)
	cch.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cch.Set(ctx, "short", "x", time.Second))
	require.NoError(t, cch.Set(ctx, "default", "y", 0))

	now = now.Add(2 * time.Second)
	_, err := cch.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = cch.Get(ctx, "default")
	assert.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = cch.Get(ctx, "default")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestQueryHash(t *testing.T) {
	assert.Equal(t, QueryHash("a", "b"), QueryHash("a", "b"))
	assert.NotEqual(t, QueryHash("ab", ""), QueryHash("a", "b"))
	assert.Len(t, QueryHash("x"), 64)
}

func TestAutoSwap_UpgradesOnceDialSucceeds(t *testing.T) {
	ctx := context.Background()
	fallback := NewNoopValkeyCache(logger.NewNop(), time.Minute)
	real := NewNoopValkeyCache(logger.NewNop(), time.Minute)
	require.NoError(t, real.Set(ctx, "k", "from-real", 0))

	var attempts atomic.Int32
	a := newAutoSwapCache(fallback, logger.NewNop(), 5*time.Millisecond, func() (ValkeyCluster, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("dial refused")
		}
		return real, nil
	})
	defer a.Stop()

	_, err := a.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.Eventually(t, func() bool {
		b, err := a.Get(ctx, "k")
		return err == nil && string(b) == "from-real"
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, attempts.Load(), int32(3))
}

func TestOpen_NoNodesIsInMemory(t *testing.T) {
	c := Open(nil, 0, "", time.Minute, logger.NewNop())
	_, ok := c.(*noopValkeyCache)
	assert.True(t, ok)
}
