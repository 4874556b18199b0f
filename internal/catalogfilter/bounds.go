package catalogfilter

import (
	"math"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

// DefaultBounds is used per metric when the subset carries no sample of it.
var DefaultBounds = models.MetricBounds{
	LatencyMin:    0,
	LatencyMax:    1000,
	ThroughputMin: 0,
	ThroughputMax: 100,
}

// ComputeMetricBounds returns floor(min)/ceil(max) of the latest latency (in
// milliseconds) and throughput samples of subset.
func ComputeMetricBounds(subset []models.ServiceRecord, metrics map[string]models.MetricSnapshot) models.MetricBounds {
	return computeBounds(subset, metrics, DefaultBounds)
}

func computeBounds(subset []models.ServiceRecord, metrics map[string]models.MetricSnapshot, fallback models.MetricBounds) models.MetricBounds {
	latMin, latMax, latOK := extremes(subset, metrics, latencyMs)
	thrMin, thrMax, thrOK := extremes(subset, metrics, throughput)

	out := fallback
	if latOK {
		out.LatencyMin, out.LatencyMax = math.Floor(latMin), math.Ceil(latMax)
	}
	if thrOK {
		out.ThroughputMin, out.ThroughputMax = math.Floor(thrMin), math.Ceil(thrMax)
	}
	return out
}

type valueFn func(models.MetricSnapshot) (float64, bool)

func latencyMs(s models.MetricSnapshot) (float64, bool) {
	v, ok := s.Latest(models.MetricLatency)
	return v * 1000, ok
}

func throughput(s models.MetricSnapshot) (float64, bool) {
	return s.Latest(models.MetricThroughput)
}

func failurePercent(s models.MetricSnapshot) (float64, bool) {
	v, ok := s.Latest(models.MetricFailureRatio)
	return v * 100, ok
}

func extremes(subset []models.ServiceRecord, metrics map[string]models.MetricSnapshot, value valueFn) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	found := false
	for _, svc := range subset {
		v, ok := value(metrics[svc.ServiceName])
		if !ok || math.IsNaN(v) {
			continue
		}
		lo, hi, found = math.Min(lo, v), math.Max(hi, v), true
	}
	return lo, hi, found
}
