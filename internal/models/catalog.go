package models

import "time"

// ServiceRecord is one entry of the service catalog. GroupByAttributes is a
// nested string-keyed mapping (e.g. {"team": {"name": "payments"}}).
type ServiceRecord struct {
	ServiceName       string         `json:"serviceName" yaml:"serviceName"`
	Environment       string         `json:"environment" yaml:"environment"`
	GroupByAttributes map[string]any `json:"groupByAttributes,omitempty" yaml:"groupByAttributes,omitempty"`
}

// MetricName identifies a RED signal of a MetricSnapshot.
type MetricName string

const (
	// MetricLatency is measured in seconds.
	MetricLatency MetricName = "latency"
	// MetricThroughput is measured in requests per second.
	MetricThroughput MetricName = "throughput"
	// MetricFailureRatio is a 0-1 ratio.
	MetricFailureRatio MetricName = "failureRatio"
)

// MetricPoint is a single (timestamp, value) sample.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricSnapshot holds the ordered samples per metric of one service.
type MetricSnapshot map[MetricName][]MetricPoint

// Latest returns the most recent sample of a metric.
func (s MetricSnapshot) Latest(name MetricName) (float64, bool) {
	points := s[name]
	if len(points) == 0 {
		return 0, false
	}
	return points[len(points)-1].Value, true
}

// Range is a closed numeric interval selected by a range slider.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FilterState is the user's current selection on the service table. Set-like
// fields travel as slices; nil ranges mean "no selection".
type FilterState struct {
	SearchQuery               string              `json:"searchQuery,omitempty"`
	SelectedEnvironments      []string            `json:"selectedEnvironments,omitempty"`
	SelectedAttributeValues   map[string][]string `json:"selectedAttributeValues,omitempty"`
	LatencyRange              *Range              `json:"latencyRange,omitempty"`
	ThroughputRange           *Range              `json:"throughputRange,omitempty"`
	SelectedFailureThresholds []string            `json:"selectedFailureThresholds,omitempty"`
}

// MetricBounds are the facet-like slider extremes of the current subset.
type MetricBounds struct {
	LatencyMin    float64 `json:"latencyMin"`
	LatencyMax    float64 `json:"latencyMax"`
	ThroughputMin float64 `json:"throughputMin"`
	ThroughputMax float64 `json:"throughputMax"`
}

// ServiceRow is a filtered catalog entry with its latest RED values.
type ServiceRow struct {
	ServiceRecord
	Category       string         `json:"category"`
	LatencyMs      *float64       `json:"latencyMs,omitempty"`
	Throughput     *float64       `json:"throughput,omitempty"`
	FailurePercent *float64       `json:"failurePercent,omitempty"`
	Snapshot       MetricSnapshot `json:"snapshot,omitempty"`
}

// ServiceTable is the result of one service-table recomputation.
type ServiceTable struct {
	Rows                  []ServiceRow        `json:"rows"`
	Bounds                MetricBounds        `json:"bounds"`
	EnvironmentCategories []string            `json:"environmentCategories"`
	AttributeVocabulary   map[string][]string `json:"attributeVocabulary"`
	Total                 int                 `json:"total"`
	Filtered              int                 `json:"filtered"`
	Window                TimeWindow          `json:"window"`
}
