// Package monitoring exposes the Prometheus self-metrics of the service
// health API.
//
// Usage:
//
//	router := gin.New()
//	router.Use(monitoring.HTTPMetricsMiddleware())
//	monitoring.SetupPrometheusMetrics(router)
//
//	start := time.Now()
//	// ... backend call ...
//	monitoring.RecordVictoriaMetricsQuery("instant", time.Since(start), err == nil)
//
// Available metrics:
//   - mirador_servicehealth_http_requests_total{method, endpoint, status_code}
//   - mirador_servicehealth_http_request_duration_seconds{method, endpoint}
//   - mirador_servicehealth_cache_operations_total{operation, result}
//   - mirador_servicehealth_victoria_metrics_queries_total{query_type, status}
//   - mirador_servicehealth_victoria_metrics_query_duration_seconds{query_type}
//   - mirador_servicehealth_widget_refresh_total{widget, outcome}
//   - mirador_servicehealth_widget_refresh_duration_seconds{widget}
//   - mirador_servicehealth_stale_responses_total{widget}
//   - mirador_servicehealth_query_errors_total{kind}
//   - mirador_servicehealth_catalog_loads_total{source, status}
//   - mirador_servicehealth_websocket_clients
//   - mirador_servicehealth_active_connections
//   - mirador_servicehealth_errors_total{type, component}
package monitoring

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is stamped into the build info gauge.
var Version = "dev"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_servicehealth_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_servicehealth_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_servicehealth_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, error, success
	)

	victoriaMetricsQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_servicehealth_victoria_metrics_queries_total",
			Help: "Total number of VictoriaMetrics queries",
		},
		[]string{"query_type", "status"},
	)

	victoriaMetricsQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_servicehealth_victoria_metrics_query_duration_seconds",
			Help:    "VictoriaMetrics query duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"query_type"},
	)

	widgetRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_servicehealth_widget_refresh_total",
			Help: "Dashboard widget refreshes by outcome",
		},
		[]string{"widget", "outcome"}, // outcome: committed, error, stale
	)

	widgetRefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_servicehealth_widget_refresh_duration_seconds",
			Help:    "Dashboard widget refresh duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"widget"},
	)

	staleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_servicehealth_stale_responses_total",
			Help: "Responses discarded because a newer request generation was issued",
		},
		[]string{"widget"},
	)

	queryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_servicehealth_query_errors_total",
			Help: "Backend query errors by kind",
		},
		[]string{"kind"},
	)

	catalogLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_servicehealth_catalog_loads_total",
			Help: "Service catalog loads by source",
		},
		[]string{"source", "status"},
	)

	websocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_servicehealth_websocket_clients",
			Help: "Connected dashboard stream clients",
		},
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_servicehealth_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_servicehealth_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mirador_servicehealth_build_info",
			Help: "Build information",
			ConstLabels: prometheus.Labels{
				"version":    Version,
				"component":  "mirador-servicehealth",
				"go_version": runtime.Version(),
			},
		}, func() float64 { return 1 }))

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, cacheOperationsTotal,
			victoriaMetricsQueriesTotal, victoriaMetricsQueryDuration,
			widgetRefreshTotal, widgetRefreshDuration, staleResponsesTotal,
			queryErrorsTotal, catalogLoadsTotal, websocketClients,
			activeConnections, errorsTotal,
		} {
			_ = prometheus.Register(c)
		}
	})
}

// SetupPrometheusMetrics registers the collectors on the default registry
// and exposes them at path (default /metrics).
func SetupPrometheusMetrics(router gin.IRoutes, path ...string) {
	register()
	p := "/metrics"
	if len(path) > 0 && path[0] != "" {
		p = path[0]
	}
	router.GET(p, gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = normalizeEndpoint(c.Request.URL.Path)
		}

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

		if c.Writer.Status() >= 400 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordCacheOperation records cache operation metrics.
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// RecordVictoriaMetricsQuery records VictoriaMetrics query metrics.
func RecordVictoriaMetricsQuery(queryType string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("victoria_metrics", queryType).Inc()
	}
	victoriaMetricsQueriesTotal.WithLabelValues(queryType, status).Inc()
	victoriaMetricsQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

// RecordWidgetRefresh records one widget fetch of a refresh cycle.
func RecordWidgetRefresh(widget, outcome string, duration time.Duration) {
	widgetRefreshTotal.WithLabelValues(widget, outcome).Inc()
	widgetRefreshDuration.WithLabelValues(widget).Observe(duration.Seconds())
}

// RecordStaleResponse counts a response dropped by its generation check.
func RecordStaleResponse(widget string) {
	staleResponsesTotal.WithLabelValues(widget).Inc()
}

// RecordQueryError counts a structured query error by kind.
func RecordQueryError(kind string) {
	queryErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordCatalogLoad records a catalog load attempt.
func RecordCatalogLoad(source string, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("catalog", source).Inc()
	}
	catalogLoadsTotal.WithLabelValues(source, status).Inc()
}

// WebsocketClientConnected / WebsocketClientDisconnected track stream clients.
func WebsocketClientConnected()    { websocketClients.Inc() }
func WebsocketClientDisconnected() { websocketClients.Dec() }

// normalizeEndpoint replaces numeric path segments with :id for unmatched routes.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if i > 0 && isNumeric(part) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
