package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/pkg/cache"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

func newCachedClient(next MetricsClient) *CachedMetricsClient {
	log := logger.NewNop()
	return NewCachedMetricsClient(next, cache.NewNoopValkeyCache(log, time.Minute), time.Minute, log)
}

func TestCachedMetricsClient_ServesFromCache(t *testing.T) {
	next := &fakeMetrics{instant: func(string) (models.QueryResponse, error) {
		return vector([]map[string]string{{"service_name": "cart"}}, []string{"5.5"}), nil
	}}
	c := newCachedClient(next)

	first, err := c.Execute(context.Background(), "q", 0, 60)
	require.NoError(t, err)
	second, err := c.Execute(context.Background(), "q", 0, 60)
	require.NoError(t, err)

	assert.Len(t, next.recorded(), 1)
	assert.Equal(t, first.Kind, second.Kind)
	require.Len(t, second.Series, 1)
	assert.Equal(t, "5.5", second.Series[0].Points[0].Value)

	_, err = c.Execute(context.Background(), "q", 0, 120)
	require.NoError(t, err)
	assert.Len(t, next.recorded(), 2)
}

func TestCachedMetricsClient_RangeKeyIncludesStep(t *testing.T) {
	next := &fakeMetrics{}
	c := newCachedClient(next)

	_, _ = c.ExecuteRange(context.Background(), "q", 0, 3600, "1m")
	_, _ = c.ExecuteRange(context.Background(), "q", 0, 3600, "1m")
	_, _ = c.ExecuteRange(context.Background(), "q", 0, 3600, "5m")
	assert.Len(t, next.recorded(), 2)
}

func TestCachedMetricsClient_BypassAndErrors(t *testing.T) {
	fail := true
	next := &fakeMetrics{instant: func(string) (models.QueryResponse, error) {
		if fail {
			return models.QueryResponse{}, errors.New("boom")
		}
		return models.QueryResponse{Kind: models.ResponseKindEmpty}, nil
	}}
	c := newCachedClient(next)

	_, err := c.Execute(context.Background(), "q", 0, 60)
	require.Error(t, err)

	fail = false
	_, err = c.Execute(context.Background(), "q", 0, 60)
	require.NoError(t, err)
	assert.Len(t, next.recorded(), 2)

	_, err = c.Execute(WithCacheBypass(context.Background()), "q", 0, 60)
	require.NoError(t, err)
	assert.Len(t, next.recorded(), 3)
	assert.False(t, cacheBypassed(context.Background()))
}
