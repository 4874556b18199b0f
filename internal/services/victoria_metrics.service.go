package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
	"github.com/platformbuilds/mirador-servicehealth/internal/normalizer"
	"github.com/platformbuilds/mirador-servicehealth/internal/tracing"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// MetricQueryClient runs an instant query evaluated at the end of
// [start, end] and returns the parsed response.
type MetricQueryClient interface {
	Execute(ctx context.Context, query string, startSeconds, endSeconds int64) (models.QueryResponse, error)
}

// RangeQueryClient runs a range query with the given step token.
type RangeQueryClient interface {
	ExecuteRange(ctx context.Context, query string, startSeconds, endSeconds int64, step string) (models.QueryResponse, error)
}

// MetricsClient is what the service health widgets need from the backend.
type MetricsClient interface {
	MetricQueryClient
	RangeQueryClient
}

// SeriesClient lists series label sets, used by the metrics catalog.
type SeriesClient interface {
	GetSeries(ctx context.Context, request *models.SeriesRequest) ([]map[string]string, error)
}

type VictoriaMetricsService struct {
	name      string
	endpoints []string
	client    *http.Client
	logger    logger.Logger
	tracer    *tracing.HealthTracer
	current   int // round-robin cursor

	// guards endpoint updates and selection
	mu sync.Mutex

	username string
	password string

	// retries is the total number of attempts for transport errors and 5xx
	retries   int
	backoffMS int // base backoff (ms) for attempt 1; then doubles

	clusterPath bool
}

func NewVictoriaMetricsService(cfg config.VictoriaMetricsConfig, logger logger.Logger) *VictoriaMetricsService {
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	return &VictoriaMetricsService{
		name:      cfg.Name,
		endpoints: append([]string(nil), cfg.Endpoints...),
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		logger:      logger,
		tracer:      tracing.NewHealthTracer(nil),
		retries:     retries,
		backoffMS:   cfg.BackoffMS,
		username:    cfg.Username,
		password:    cfg.Password,
		clusterPath: cfg.ClusterPath,
	}
}

// WithTracer replaces the tracer (tests use an in-memory recorder).
func (s *VictoriaMetricsService) WithTracer(t *tracing.HealthTracer) *VictoriaMetricsService {
	s.tracer = t
	return s
}

// ReplaceEndpoints swaps the list used for round-robin.
func (s *VictoriaMetricsService) ReplaceEndpoints(eps []string) {
	s.mu.Lock()
	s.endpoints = append([]string(nil), eps...)
	s.current = 0
	s.mu.Unlock()
	s.logger.Info("VictoriaMetrics endpoints updated", "source", s.name, "count", len(eps))
}

// Execute implements MetricQueryClient. Failures are *QueryError.
func (s *VictoriaMetricsService) Execute(ctx context.Context, query string, startSeconds, endSeconds int64) (models.QueryResponse, error) {
	res, err := s.ExecuteQuery(ctx, &models.MetricsQLQueryRequest{
		Query: query,
		Time:  strconv.FormatInt(endSeconds, 10),
	})
	if err != nil {
		return models.QueryResponse{}, AsQueryError(err)
	}
	return normalizer.ParseQueryResponse(res.Data), nil
}

// ExecuteRange implements RangeQueryClient. Failures are *QueryError.
func (s *VictoriaMetricsService) ExecuteRange(ctx context.Context, query string, startSeconds, endSeconds int64, step string) (models.QueryResponse, error) {
	res, err := s.ExecuteRangeQuery(ctx, &models.MetricsQLRangeQueryRequest{
		Query: query,
		Start: strconv.FormatInt(startSeconds, 10),
		End:   strconv.FormatInt(endSeconds, 10),
		Step:  step,
	})
	if err != nil {
		return models.QueryResponse{}, AsQueryError(err)
	}
	return normalizer.ParseQueryResponse(res.Data), nil
}

func (s *VictoriaMetricsService) ExecuteQuery(ctx context.Context, request *models.MetricsQLQueryRequest) (*models.MetricsQLQueryResult, error) {
	start := time.Now()
	ctx, span := s.tracer.StartBackendQuerySpan(ctx, "instant", request.Query)
	defer span.End()

	params := url.Values{}
	params.Set("query", request.Query)
	if request.Time != "" {
		params.Set("time", request.Time)
	}
	if request.Timeout != "" {
		params.Set("timeout", request.Timeout)
	}

	var vmResponse models.VictoriaMetricsResponse
	endpoint, err := s.get(ctx, "query", params, request.TenantID, &vmResponse)
	took := time.Since(start)
	monitoring.RecordVictoriaMetricsQuery("instant", took, err == nil)
	if err != nil {
		s.tracer.RecordError(span, err)
		return nil, err
	}

	result := &models.MetricsQLQueryResult{
		Status:        vmResponse.Status,
		Data:          vmResponse.Data,
		SeriesCount:   countSeries(vmResponse.Data),
		ExecutionTime: took.Milliseconds(),
	}
	s.tracer.RecordQueryMetrics(span, took, result.SeriesCount, true)

	s.logger.Debug("MetricsQL query executed",
		"query", request.Query,
		"source", s.name,
		"endpoint", endpoint,
		"took", took,
		"seriesCount", result.SeriesCount,
	)
	return result, nil
}

func (s *VictoriaMetricsService) ExecuteRangeQuery(ctx context.Context, request *models.MetricsQLRangeQueryRequest) (*models.MetricsQLRangeQueryResult, error) {
	start := time.Now()
	ctx, span := s.tracer.StartBackendQuerySpan(ctx, "range", request.Query)
	defer span.End()

	params := url.Values{}
	params.Set("query", request.Query)
	params.Set("start", request.Start)
	params.Set("end", request.End)
	params.Set("step", request.Step)

	var vmResponse models.VictoriaMetricsResponse
	endpoint, err := s.get(ctx, "query_range", params, request.TenantID, &vmResponse)
	took := time.Since(start)
	monitoring.RecordVictoriaMetricsQuery("range", took, err == nil)
	if err != nil {
		s.tracer.RecordError(span, err)
		return nil, err
	}

	result := &models.MetricsQLRangeQueryResult{
		Status:         vmResponse.Status,
		Data:           vmResponse.Data,
		DataPointCount: countDataPoints(vmResponse.Data),
	}
	s.tracer.RecordQueryMetrics(span, took, result.DataPointCount, true)

	s.logger.Debug("MetricsQL range query executed",
		"query", request.Query,
		"source", s.name,
		"endpoint", endpoint,
		"took", took,
		"dataPoints", result.DataPointCount,
	)
	return result, nil
}

// GetSeries lists the label sets matching request.Match.
func (s *VictoriaMetricsService) GetSeries(ctx context.Context, request *models.SeriesRequest) ([]map[string]string, error) {
	start := time.Now()
	params := url.Values{}
	for _, match := range request.Match {
		params.Add("match[]", match)
	}
	if request.Start != "" {
		params.Set("start", request.Start)
	}
	if request.End != "" {
		params.Set("end", request.End)
	}

	var vmResponse struct {
		Status string              `json:"status"`
		Data   []map[string]string `json:"data"`
	}
	_, err := s.get(ctx, "series", params, request.TenantID, &vmResponse)
	monitoring.RecordVictoriaMetricsQuery("series", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return vmResponse.Data, nil
}

// HealthCheck probes /health on the next endpoint.
func (s *VictoriaMetricsService) HealthCheck(ctx context.Context) error {
	endpoint := s.selectEndpoint()
	if endpoint == "" {
		return ErrNoEndpoint
	}

	resp, err := s.doRequestWithRetry(ctx, http.MethodGet, endpoint+"/health", nil, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: readBodySnippet(resp.Body)}
	}
	return nil
}

// get calls a Prometheus API path, preferring the vmselect cluster prefix
// when configured and falling back to the single-node path when the
// cluster path is unsupported. It returns the endpoint used.
func (s *VictoriaMetricsService) get(ctx context.Context, apiPath string, params url.Values, tenantID string, out any) (string, error) {
	endpoint := s.selectEndpoint()
	if endpoint == "" {
		return "", ErrNoEndpoint
	}

	urlSingle := fmt.Sprintf("%s/api/v1/%s?%s", endpoint, apiPath, params.Encode())
	headers := map[string]string{"Accept": "application/json"}
	if tenantID != "" {
		headers["AccountID"] = tenantID
	}

	target := urlSingle
	if s.clusterPath {
		target = fmt.Sprintf("%s/select/0/prometheus/api/v1/%s?%s", endpoint, apiPath, params.Encode())
	}

	resp, err := s.doRequestWithRetry(ctx, http.MethodGet, target, nil, headers)
	if err != nil {
		return endpoint, fmt.Errorf("VictoriaMetrics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && s.clusterPath {
		body := readBodySnippet(resp.Body)
		if resp.StatusCode == http.StatusNotFound || (resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(body), "unsupported path")) {
			_ = resp.Body.Close()
			resp, err = s.doRequestWithRetry(ctx, http.MethodGet, urlSingle, nil, headers)
			if err != nil {
				return endpoint, fmt.Errorf("VictoriaMetrics request failed (single path): %w", err)
			}
			defer resp.Body.Close()
		} else {
			return endpoint, statusError(resp.StatusCode, body)
		}
	}
	if resp.StatusCode != http.StatusOK {
		return endpoint, statusError(resp.StatusCode, readBodySnippet(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return endpoint, fmt.Errorf("failed to parse VictoriaMetrics response: %w", err)
	}
	return endpoint, nil
}

// statusError prefers the "error" field of a Prometheus error envelope.
func statusError(code int, body string) error {
	var envelope models.VictoriaMetricsResponse
	if json.Unmarshal([]byte(body), &envelope) == nil && envelope.Error != "" {
		body = envelope.Error
	}
	return &StatusError{StatusCode: code, Body: strings.TrimSpace(body)}
}

// selectEndpoint implements round-robin load balancing (safe for empty slice).
func (s *VictoriaMetricsService) selectEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.endpoints) == 0 {
		return ""
	}
	ep := s.endpoints[s.current%len(s.endpoints)]
	s.current++
	return ep
}

/* ----------------------------- retry + helpers ----------------------------- */

// doRequestWithRetry sends an HTTP request and retries on 5xx or transport
// errors, up to s.retries attempts in total.
func (s *VictoriaMetricsService) doRequestWithRetry(
	ctx context.Context,
	method, urlStr string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {

	var lastErr error
	backoff := time.Duration(s.backoffMS) * time.Millisecond

	for attempt := 1; attempt <= s.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if s.username != "" {
			req.SetBasicAuth(s.username, s.password)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("VictoriaMetrics request failed (transport)",
				"attempt", attempt, "method", method, "url", urlStr, "error", err)
		} else if resp.StatusCode >= 500 && attempt < s.retries {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: readBodySnippet(resp.Body)}
			_ = resp.Body.Close()
			s.logger.Warn("VictoriaMetrics 5xx response, retrying",
				"attempt", attempt, "method", method, "url", urlStr, "status", resp.StatusCode)
		} else {
			// success, non-retryable status, or last attempt: caller reads it
			return resp, nil
		}

		if attempt == s.retries || ctx.Err() != nil {
			break
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.retries > 1 {
		s.logger.Error("VictoriaMetrics request exhausted retries",
			"method", method, "url", urlStr, "retries", s.retries, "error", lastErr)
	}
	return nil, lastErr
}

// readBodySnippet returns a short text excerpt from an HTTP body for error messages.
func readBodySnippet(r io.Reader) string {
	const max = 8 << 10 // 8KB
	b, _ := io.ReadAll(io.LimitReader(r, max))
	return string(b)
}

// countSeries estimates the number of series in a VM/Prometheus response.
func countSeries(data any) int {
	m, ok := data.(map[string]any)
	if !ok {
		return 0
	}
	arr, _ := m["result"].([]any)
	return len(arr)
}

// countDataPoints estimates the datapoint count of a range query.
func countDataPoints(data any) int {
	m, ok := data.(map[string]any)
	if !ok {
		return 0
	}
	result, _ := m["result"].([]any)
	count := 0
	for _, it := range result {
		series, _ := it.(map[string]any)
		if series == nil {
			continue
		}
		if vals, ok := series["values"].([]any); ok {
			count += len(vals)
			continue
		}
		if _, ok := series["value"].([]any); ok {
			count++
		}
	}
	return count
}
