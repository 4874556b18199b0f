//go:build db

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Live Valkey/Redis single-node test, enabled when VALKEY_ADDR is set.
func TestValkeySingle_DB(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set; skipping DB test")
	}
	ttl := 2 * time.Second
	cch, err := NewValkeySingle(addr, 0, os.Getenv("VALKEY_PASSWORD"), ttl)
	require.NoError(t, err)

	ctx := context.Background()
	hash := QueryHash("db-test", time.Now().String())
	require.NoError(t, cch.CacheQueryResult(ctx, hash, map[string]string{"status": "success"}, ttl))
	b, err := cch.GetCachedQueryResult(ctx, hash)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success"}`, string(b))

	require.NoError(t, cch.Delete(ctx, queryKey(hash)))
	_, err = cch.Get(ctx, queryKey(hash))
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, cch.HealthCheck(ctx))
}
