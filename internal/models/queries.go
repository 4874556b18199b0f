package models

type MetricsQLQueryRequest struct {
	Query    string `json:"query" binding:"required"`
	Time     string `json:"time,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	TenantID string `json:"-"`
}

type MetricsQLRangeQueryRequest struct {
	Query    string `json:"query" binding:"required"`
	Start    string `json:"start" binding:"required"`
	End      string `json:"end" binding:"required"`
	Step     string `json:"step" binding:"required"`
	TenantID string `json:"-"`
}

type MetricsQLQueryResult struct {
	Status        string      `json:"status"`
	Data          interface{} `json:"data"`
	SeriesCount   int         `json:"series_count"`
	ExecutionTime int64       `json:"execution_time_ms"`
}

type MetricsQLRangeQueryResult struct {
	Status         string      `json:"status"`
	Data           interface{} `json:"data"`
	DataPointCount int         `json:"data_point_count"`
}

type SeriesRequest struct {
	Match    []string `json:"match[]"`
	Start    string   `json:"start,omitempty"`
	End      string   `json:"end,omitempty"`
	TenantID string   `json:"-"`
}

// VictoriaMetricsResponse is the Prometheus HTTP API envelope.
type VictoriaMetricsResponse struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data"`
	ErrorType string      `json:"errorType,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ResponseKind discriminates the accepted metric response shapes.
type ResponseKind int

const (
	ResponseKindEmpty ResponseKind = iota
	ResponseKindRowTable
	ResponseKindSeries
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseKindRowTable:
		return "row_table"
	case ResponseKindSeries:
		return "series"
	default:
		return "empty"
	}
}

// RowValueColumn is the fixed value column of row-table responses.
const RowValueColumn = "@value"

// RowTable is the flat-row response shape: every row maps column name to a
// string or number; RowValueColumn carries the measurement.
type RowTable struct {
	Rows []map[string]any `json:"rows"`
}

// SamplePair is a raw (timestamp, value) pair as sent by Prometheus-style
// APIs; Value is usually a string.
type SamplePair struct {
	Timestamp float64 `json:"timestamp"`
	Value     any     `json:"value"`
}

// SeriesData is one classic time series. Instant queries carry one point,
// range queries carry the ordered list.
type SeriesData struct {
	Labels map[string]string `json:"labels"`
	Points []SamplePair      `json:"points"`
}

// QueryResponse is the tagged union handed to the normalizer.
type QueryResponse struct {
	Kind   ResponseKind `json:"kind"`
	Table  *RowTable    `json:"table,omitempty"`
	Series []SeriesData `json:"series,omitempty"`
}
