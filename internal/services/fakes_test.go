package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

var testWindow = models.TimeWindow{
	Start: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}

// fakeMetrics answers instant and range queries from funcs and records the
// rendered queries.
type fakeMetrics struct {
	mu      sync.Mutex
	queries []string
	steps   []string

	instant func(query string) (models.QueryResponse, error)
	ranged  func(query string) (models.QueryResponse, error)
}

func (f *fakeMetrics) Execute(ctx context.Context, query string, startSeconds, endSeconds int64) (models.QueryResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.instant == nil {
		return models.QueryResponse{}, nil
	}
	return f.instant(query)
}

func (f *fakeMetrics) ExecuteRange(ctx context.Context, query string, startSeconds, endSeconds int64, step string) (models.QueryResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.steps = append(f.steps, step)
	f.mu.Unlock()
	if f.ranged == nil {
		return models.QueryResponse{}, nil
	}
	return f.ranged(query)
}

func (f *fakeMetrics) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// vector builds an instant series response; labels and values pair up.
func vector(labels []map[string]string, values []string) models.QueryResponse {
	resp := models.QueryResponse{Kind: models.ResponseKindSeries}
	for i, l := range labels {
		resp.Series = append(resp.Series, models.SeriesData{
			Labels: l,
			Points: []models.SamplePair{{Timestamp: float64(testWindow.End.Unix()), Value: values[i]}},
		})
	}
	return resp
}

// matrix builds a single-point range response per service.
func matrix(values map[string]float64) models.QueryResponse {
	resp := models.QueryResponse{Kind: models.ResponseKindSeries}
	for svc, v := range values {
		resp.Series = append(resp.Series, models.SeriesData{
			Labels: map[string]string{"service_name": svc},
			Points: []models.SamplePair{{Timestamp: float64(testWindow.End.Unix()), Value: v}},
		})
	}
	return resp
}

// redRanges serves the latency, throughput and failure ratio range queries.
func redRanges(latency, throughput, failure map[string]float64) func(string) (models.QueryResponse, error) {
	return func(query string) (models.QueryResponse, error) {
		switch {
		case strings.Contains(query, "histogram_quantile"):
			return matrix(latency), nil
		case strings.Contains(query, "STATUS_CODE_ERROR"):
			return matrix(failure), nil
		default:
			return matrix(throughput), nil
		}
	}
}

type staticCatalog struct {
	services []models.ServiceRecord
	err      error
}

func (c staticCatalog) Services(ctx context.Context, window models.TimeWindow) ([]models.ServiceRecord, error) {
	return c.services, c.err
}

func (c staticCatalog) AttributeValues(ctx context.Context, window models.TimeWindow) (map[string][]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	return map[string][]string{"team": {"payments"}}, nil
}
