package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/catalogfilter"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/normalizer"
	"github.com/platformbuilds/mirador-servicehealth/internal/querytemplate"
	"github.com/platformbuilds/mirador-servicehealth/internal/ranking"
	"github.com/platformbuilds/mirador-servicehealth/internal/timerange"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// ServiceHealthOptions configures ServiceHealthService. Zero values fall back
// to the built-in defaults.
type ServiceHealthOptions struct {
	Templates      *querytemplate.Set
	Labels         querytemplate.Labels
	TopK           int
	FallbackBounds *models.MetricBounds
	// Sparklines keeps the full point series on every table row.
	Sparklines bool
}

// ServiceHealthService answers the three service health widgets: top
// faulty services, top faulty dependencies of a service, and the filtered
// service table.
type ServiceHealthService struct {
	metrics   MetricsClient
	catalog   ServiceCatalogProvider
	templates atomic.Pointer[querytemplate.Set]
	labels    querytemplate.Labels
	topK      int
	pipeline  *catalogfilter.Pipeline
	sparkline bool
	logger    logger.Logger
}

func NewServiceHealthService(metrics MetricsClient, catalog ServiceCatalogProvider, opts ServiceHealthOptions, logger logger.Logger) *ServiceHealthService {
	s := &ServiceHealthService{
		metrics:   metrics,
		catalog:   catalog,
		labels:    opts.Labels,
		topK:      opts.TopK,
		sparkline: opts.Sparklines,
		logger:    logger,
	}
	if s.labels.Service == "" {
		s.labels.Service = querytemplate.DefaultLabels.Service
	}
	if s.labels.Environment == "" {
		s.labels.Environment = querytemplate.DefaultLabels.Environment
	}
	if s.labels.RemoteService == "" {
		s.labels.RemoteService = querytemplate.DefaultLabels.RemoteService
	}
	if s.topK <= 0 {
		s.topK = ranking.DefaultK
	}
	bounds := catalogfilter.DefaultBounds
	if opts.FallbackBounds != nil {
		bounds = *opts.FallbackBounds
	}
	s.pipeline = catalogfilter.NewPipeline(bounds)

	tmpl := opts.Templates
	if tmpl == nil {
		tmpl = querytemplate.MustDefaults()
	}
	s.templates.Store(tmpl)
	return s
}

// SetTemplates swaps the query templates; in-flight queries keep the old set.
func (s *ServiceHealthService) SetTemplates(set *querytemplate.Set) {
	if set == nil {
		return
	}
	s.templates.Store(set)
	s.logger.Info("Service health query templates updated", "templates", set.Names())
}

func (s *ServiceHealthService) render(name string, data querytemplate.Data) (string, error) {
	data.Labels = s.labels
	q, err := s.templates.Load().Render(name, data)
	if err != nil {
		return "", NewTemplateError(err)
	}
	return q, nil
}

func (s *ServiceHealthService) k(k int) int {
	if k <= 0 {
		return s.topK
	}
	return k
}

// TopServiceFaults ranks services of env by fault percentage over the
// window. An empty env matches every environment.
func (s *ServiceHealthService) TopServiceFaults(ctx context.Context, window models.TimeWindow, env string, k int) (*models.RankedWidget, error) {
	bucket := timerange.BucketLabel(window.Start, window.End)
	query, err := s.render(querytemplate.ServiceFaults, querytemplate.Data{Environment: env, Bucket: bucket})
	if err != nil {
		return nil, err
	}
	labels := []string{s.labels.Service, s.labels.Environment}
	return s.rank(ctx, query, window, bucket, labels, k)
}

// TopDependencyFaults ranks the remote services called by service.
func (s *ServiceHealthService) TopDependencyFaults(ctx context.Context, window models.TimeWindow, env, service string, k int) (*models.RankedWidget, error) {
	bucket := timerange.BucketLabel(window.Start, window.End)
	query, err := s.render(querytemplate.DependencyFaults, querytemplate.Data{Environment: env, Service: service, Bucket: bucket})
	if err != nil {
		return nil, err
	}
	labels := []string{"client", s.labels.RemoteService}
	return s.rank(ctx, query, window, bucket, labels, k)
}

func (s *ServiceHealthService) rank(ctx context.Context, query string, window models.TimeWindow, bucket string, labels []string, k int) (*models.RankedWidget, error) {
	resp, err := s.metrics.Execute(ctx, query, window.StartSeconds(), window.EndSeconds())
	if err != nil {
		return nil, AsQueryError(err)
	}
	records := normalizer.Normalize(resp, labels)
	s.logger.Debug("Fault ranking query finished",
		"response_kind", resp.Kind.String(),
		"records", len(records),
		"bucket", bucket)

	return &models.RankedWidget{
		Labels:  labels,
		Entries: ranking.Rank(records, s.k(k)),
		Window:  window,
		Bucket:  bucket,
	}, nil
}

// ServiceTable loads the catalog and RED range series for the window and
// runs the filter pipeline over them.
func (s *ServiceHealthService) ServiceTable(ctx context.Context, window models.TimeWindow, env string, filter models.FilterState) (*models.ServiceTable, error) {
	catalog, err := s.catalog.Services(ctx, window)
	if err != nil {
		return nil, AsQueryError(fmt.Errorf("load service catalog: %w", err))
	}

	metrics, err := s.Snapshots(ctx, window, env)
	if err != nil {
		return nil, err
	}

	res := s.pipeline.Run(catalog, metrics, filter)
	return &models.ServiceTable{
		Rows:                  catalogfilter.BuildRows(res.Services, metrics, s.sparkline),
		Bounds:                res.Bounds,
		EnvironmentCategories: catalogfilter.EnvironmentCategories(catalog),
		AttributeVocabulary:   catalogfilter.AttributeVocabulary(catalog),
		Total:                 len(catalog),
		Filtered:              len(res.Services),
		Window:                window,
	}, nil
}

// AttributeValues exposes the catalog vocabulary for the filter controls.
func (s *ServiceHealthService) AttributeValues(ctx context.Context, window models.TimeWindow) (map[string][]string, error) {
	vocab, err := s.catalog.AttributeValues(ctx, window)
	if err != nil {
		return nil, AsQueryError(fmt.Errorf("load service catalog: %w", err))
	}
	return vocab, nil
}

var snapshotQueries = []struct {
	template string
	metric   models.MetricName
}{
	{querytemplate.Latency, models.MetricLatency},
	{querytemplate.Throughput, models.MetricThroughput},
	{querytemplate.FailureRatio, models.MetricFailureRatio},
}

// Snapshots runs the latency, throughput and failure ratio range queries in
// parallel and folds them into per-service snapshots. The step follows the
// window's tick interval.
func (s *ServiceHealthService) Snapshots(ctx context.Context, window models.TimeWindow, env string) (map[string]models.MetricSnapshot, error) {
	tick := timerange.TickConfigFor(window)
	step := timerange.DurationToken(time.Duration(tick.MinIntervalMs) * time.Millisecond)

	type result struct {
		metric models.MetricName
		points map[string][]models.MetricPoint
		err    error
	}
	results := make([]result, len(snapshotQueries))

	queries := make([]string, len(snapshotQueries))
	for i, sq := range snapshotQueries {
		query, err := s.render(sq.template, querytemplate.Data{Environment: env, Step: step})
		if err != nil {
			return nil, err
		}
		queries[i] = query
	}

	var wg sync.WaitGroup
	for i, sq := range snapshotQueries {
		wg.Add(1)
		go func(i int, metric models.MetricName, query string) {
			defer wg.Done()
			resp, err := s.metrics.ExecuteRange(ctx, query, window.StartSeconds(), window.EndSeconds(), step)
			if err != nil {
				results[i] = result{metric: metric, err: err}
				return
			}
			results[i] = result{metric: metric, points: normalizer.Snapshots(resp, s.labels.Service)}
		}(i, sq.metric, queries[i])
	}
	wg.Wait()

	perMetric := make(map[models.MetricName]map[string][]models.MetricPoint, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, AsQueryError(r.err)
		}
		perMetric[r.metric] = r.points
	}
	return normalizer.MergeSnapshots(perMetric), nil
}
