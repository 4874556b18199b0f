// Package bootstrap assembles the service health components from a Config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/internal/discovery"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
	"github.com/platformbuilds/mirador-servicehealth/internal/querytemplate"
	"github.com/platformbuilds/mirador-servicehealth/internal/services"
	"github.com/platformbuilds/mirador-servicehealth/internal/tracing"
	"github.com/platformbuilds/mirador-servicehealth/pkg/cache"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

const serviceName = "mirador-servicehealth"

type Components struct {
	Cache     cache.ValkeyCluster
	Metrics   *services.VictoriaMetricsService
	Catalog   services.ServiceCatalogProvider
	Health    *services.ServiceHealthService
	Dashboard *services.Dashboard
	// Tracer is nil unless tracing is enabled.
	Tracer *tracing.HealthTracer

	logger     logger.Logger
	discovered bool
	closers    []func(context.Context) error
}

// Build wires cache, backend client, catalog, service and dashboard. A file
// catalog is watched for edits until ctx is done.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Components, error) {
	c := &Components{logger: log}

	if cfg.Monitoring.TracingEnabled {
		tp, err := tracing.NewTracerProvider(ctx, serviceName, monitoring.Version, cfg.Monitoring.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, tp.Shutdown)
		c.Tracer = tracing.NewHealthTracer(nil)
		log.Info("OpenTelemetry tracing enabled", "endpoint", cfg.Monitoring.OTLPEndpoint)
	}

	ttl := time.Duration(cfg.Cache.TTL) * time.Second
	if cfg.Cache.Enabled {
		c.Cache = cache.Open(cfg.Cache.Nodes, cfg.Cache.DB, cfg.Cache.Password, ttl, log)
		log.Info("Valkey cache initialized", "nodes", len(cfg.Cache.Nodes))
	} else {
		c.Cache = cache.NewNoopValkeyCache(log, ttl)
	}

	c.Metrics = services.NewVictoriaMetricsService(cfg.Database.VictoriaMetrics, log)
	if c.Tracer != nil {
		c.Metrics.WithTracer(c.Tracer)
	}
	if d := cfg.Database.VictoriaMetrics.Discovery; d.Enabled {
		c.discovered = true
		discovery.StartDNSDiscovery(ctx, d, c.Metrics, log)
	}

	catalog, err := c.buildCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Catalog = catalog

	templates, err := querytemplate.New(cfg.ServiceHealth.QueryTemplates)
	if err != nil {
		return nil, err
	}
	sh := cfg.ServiceHealth
	c.Health = services.NewServiceHealthService(
		services.NewCachedMetricsClient(c.Metrics, c.Cache, ttl, log),
		catalog,
		services.ServiceHealthOptions{
			Templates: templates,
			Labels: querytemplate.Labels{
				Service:       sh.Labels.Service,
				Environment:   sh.Labels.Environment,
				RemoteService: sh.Labels.RemoteService,
			},
			TopK:           sh.TopK,
			FallbackBounds: fallbackBounds(sh.Bounds),
			Sparklines:     sh.Sparklines,
		},
		log,
	)

	c.Dashboard = services.NewDashboard(c.Health, log)
	if c.Tracer != nil {
		c.Dashboard.WithTracer(c.Tracer)
	}
	return c, nil
}

func (c *Components) buildCatalog(ctx context.Context, cfg *config.Config) (services.ServiceCatalogProvider, error) {
	switch cfg.Catalog.Source {
	case "file":
		p, err := services.NewFileCatalogProvider(cfg.Catalog.File, c.logger)
		if err != nil {
			return nil, fmt.Errorf("load service catalog: %w", err)
		}
		go func() {
			if err := p.Watch(ctx); err != nil {
				c.logger.Error("Catalog watcher stopped", "error", err)
			}
		}()
		return p, nil
	default:
		return services.NewMetricsCatalogProvider(c.Metrics, services.MetricsCatalogOptions{
			Match:            cfg.Catalog.SeriesMatch,
			ServiceLabel:     cfg.ServiceHealth.Labels.Service,
			EnvironmentLabel: cfg.ServiceHealth.Labels.Environment,
			AttributePrefix:  cfg.Catalog.AttributePrefix,
			Cache:            c.Cache,
			CacheTTL:         time.Duration(cfg.Catalog.CacheTTL) * time.Second,
		}, c.logger), nil
	}
}

func fallbackBounds(b config.BoundsConfig) *models.MetricBounds {
	if b.LatencyMax <= b.LatencyMin && b.ThroughputMax <= b.ThroughputMin {
		return nil
	}
	return &models.MetricBounds{
		LatencyMin:    b.LatencyMin,
		LatencyMax:    b.LatencyMax,
		ThroughputMin: b.ThroughputMin,
		ThroughputMax: b.ThroughputMax,
	}
}

// Apply pushes the hot-reloadable parts of cfg into running components:
// query templates and, unless DNS discovery owns them, backend endpoints. A
// template set that fails to parse leaves the current one in place.
func (c *Components) Apply(cfg *config.Config) {
	if !c.discovered {
		c.Metrics.ReplaceEndpoints(cfg.Database.VictoriaMetrics.Endpoints)
	}

	templates, err := querytemplate.New(cfg.ServiceHealth.QueryTemplates)
	if err != nil {
		c.logger.Error("Keeping previous query templates", "error", err)
		return
	}
	c.Health.SetTemplates(templates)
	c.logger.Info("Service health configuration applied", "templates", len(templates.Names()))
}

func (c *Components) Shutdown(ctx context.Context) error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn(ctx))
	}
	return errors.Join(errs...)
}
