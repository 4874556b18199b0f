package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/services"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`services:
  - serviceName: cart
    environment: prod
`), 0o600))
	return path
}

func TestBuild_FileCatalog(t *testing.T) {
	cfg := &config.Config{}
	cfg.Catalog.Source = "file"
	cfg.Catalog.File = writeCatalog(t)
	cfg.Cache.TTL = 60

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := Build(ctx, cfg, logger.NewNop())
	require.NoError(t, err)

	assert.IsType(t, &services.FileCatalogProvider{}, c.Catalog)
	assert.Nil(t, c.Tracer)
	require.NotNil(t, c.Dashboard)

	records, err := c.Catalog.Services(ctx, models.TimeWindow{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cart", records[0].ServiceName)
	assert.NoError(t, c.Shutdown(ctx))
}

func TestBuild_MissingCatalogFile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Catalog.Source = "file"
	cfg.Catalog.File = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Build(context.Background(), cfg, logger.NewNop())
	assert.ErrorContains(t, err, "load service catalog")
}

func TestBuild_MetricsCatalogAndBadTemplate(t *testing.T) {
	cfg := &config.Config{}
	cfg.Catalog.Source = "metrics"
	c, err := Build(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &services.MetricsCatalogProvider{}, c.Catalog)

	cfg.ServiceHealth.QueryTemplates = map[string]string{"service_faults": "{{ .Nope"}
	_, err = Build(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestApply_KeepsTemplatesOnParseError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := &config.Config{}
	cfg.Catalog.Source = "metrics"
	c, err := Build(context.Background(), cfg, logger.NewFromZap(zap.New(core)))
	require.NoError(t, err)

	next := *cfg
	next.Database.VictoriaMetrics.Endpoints = []string{"http://vm:8428"}
	next.ServiceHealth.QueryTemplates = map[string]string{"service_faults": "{{ .Nope"}
	c.Apply(&next)
	assert.Equal(t, 1, logs.FilterMessage("Keeping previous query templates").Len())
	assert.Equal(t, 1, logs.FilterMessage("VictoriaMetrics endpoints updated").Len())

	next.ServiceHealth.QueryTemplates = nil
	c.Apply(&next)
	assert.Equal(t, 1, logs.FilterMessage("Service health configuration applied").Len())
}

func TestFallbackBounds(t *testing.T) {
	assert.Nil(t, fallbackBounds(config.BoundsConfig{}))
	b := fallbackBounds(config.BoundsConfig{LatencyMin: 1, LatencyMax: 500})
	require.NotNil(t, b)
	assert.Equal(t, 500.0, b.LatencyMax)
}
