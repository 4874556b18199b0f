// Package catalogfilter implements the service table filter pipeline:
// free-text search, environment category, nested attributes, facet-bounded
// latency/throughput ranges and failure-rate buckets, in that order.
package catalogfilter

import (
	"strings"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

// Result is the pipeline output together with the bounds computed for the
// range stage.
type Result struct {
	Services []models.ServiceRecord
	Bounds   models.MetricBounds
}

// Pipeline carries the fallback bounds; the zero value uses DefaultBounds.
type Pipeline struct {
	fallback models.MetricBounds
}

func NewPipeline(fallback models.MetricBounds) *Pipeline {
	return &Pipeline{fallback: fallback}
}

var defaultPipeline = NewPipeline(DefaultBounds)

// Filter applies the pipeline with DefaultBounds.
func Filter(catalog []models.ServiceRecord, metrics map[string]models.MetricSnapshot, state models.FilterState) []models.ServiceRecord {
	return defaultPipeline.Run(catalog, metrics, state).Services
}

// FilterWithBounds is Filter plus the bounds the range stage was judged
// against.
func FilterWithBounds(catalog []models.ServiceRecord, metrics map[string]models.MetricSnapshot, state models.FilterState) Result {
	return defaultPipeline.Run(catalog, metrics, state)
}

// ComputeMetricBounds uses the pipeline's fallback range.
func (p *Pipeline) ComputeMetricBounds(subset []models.ServiceRecord, metrics map[string]models.MetricSnapshot) models.MetricBounds {
	return computeBounds(subset, metrics, p.fallback)
}

// Run executes every stage on the survivors of the previous one. The range
// stage is judged against bounds of the stage 1-3 survivors, so a slider
// left at its extremes does not filter.
func (p *Pipeline) Run(catalog []models.ServiceRecord, metrics map[string]models.MetricSnapshot, state models.FilterState) Result {
	out := bySearch(catalog, state.SearchQuery)
	out = byEnvironment(out, state.SelectedEnvironments)
	out = byAttributes(out, state.SelectedAttributeValues)

	bounds := p.ComputeMetricBounds(out, metrics)
	out = byRange(out, metrics, latencyMs, state.LatencyRange, bounds.LatencyMin, bounds.LatencyMax)
	out = byRange(out, metrics, throughput, state.ThroughputRange, bounds.ThroughputMin, bounds.ThroughputMax)

	out = byFailureThreshold(out, metrics, state.SelectedFailureThresholds)
	return Result{Services: out, Bounds: bounds}
}

func keep(in []models.ServiceRecord, pred func(models.ServiceRecord) bool) []models.ServiceRecord {
	out := make([]models.ServiceRecord, 0, len(in))
	for _, svc := range in {
		if pred(svc) {
			out = append(out, svc)
		}
	}
	return out
}

func bySearch(in []models.ServiceRecord, query string) []models.ServiceRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return in
	}
	return keep(in, func(svc models.ServiceRecord) bool {
		return strings.Contains(strings.ToLower(svc.ServiceName), q) ||
			strings.Contains(strings.ToLower(svc.Environment), q)
	})
}

func byEnvironment(in []models.ServiceRecord, selected []string) []models.ServiceRecord {
	if len(selected) == 0 {
		return in
	}
	set := toSet(selected)
	return keep(in, func(svc models.ServiceRecord) bool {
		_, ok := set[ClassifyEnvironment(svc.Environment)]
		return ok
	})
}

// byAttributes: AND across paths, OR within the values of one path.
func byAttributes(in []models.ServiceRecord, selected map[string][]string) []models.ServiceRecord {
	constraints := map[string]map[string]struct{}{}
	for path, values := range selected {
		if len(values) > 0 {
			constraints[path] = toSet(values)
		}
	}
	if len(constraints) == 0 {
		return in
	}
	return keep(in, func(svc models.ServiceRecord) bool {
		for path, allowed := range constraints {
			v, ok := ResolvePath(svc.GroupByAttributes, path)
			if !ok {
				return false
			}
			if _, match := allowed[Stringify(v)]; !match {
				return false
			}
		}
		return true
	})
}

func byRange(in []models.ServiceRecord, metrics map[string]models.MetricSnapshot, value valueFn, selected *models.Range, lo, hi float64) []models.ServiceRecord {
	if !rangeActive(selected, lo, hi) {
		return in
	}
	return keep(in, func(svc models.ServiceRecord) bool {
		v, ok := value(metrics[svc.ServiceName])
		if !ok {
			return false
		}
		return v >= selected.Min && v <= selected.Max
	})
}

// rangeActive reports whether the selection is strictly narrower than the
// computed bounds.
func rangeActive(selected *models.Range, lo, hi float64) bool {
	return selected != nil && (selected.Min > lo || selected.Max < hi)
}

func byFailureThreshold(in []models.ServiceRecord, metrics map[string]models.MetricSnapshot, selected []string) []models.ServiceRecord {
	if len(selected) == 0 {
		return in
	}
	return keep(in, func(svc models.ServiceRecord) bool {
		pct, ok := failurePercent(metrics[svc.ServiceName])
		return ok && matchesAnyThreshold(selected, pct)
	})
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
