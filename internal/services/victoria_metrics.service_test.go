package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

const vectorBody = `{"status":"success","data":{"resultType":"vector","result":[
	{"metric":{"service_name":"cart","deployment_environment":"prod"},"value":[1700000000,"5.5"]},
	{"metric":{"service_name":"payment","deployment_environment":"prod"},"value":[1700000000,"3.2"]}]}}`

const matrixBody = `{"status":"success","data":{"resultType":"matrix","result":[
	{"metric":{"service_name":"cart"},"values":[[1700000000,"0.1"],[1700000060,"0.2"]]}]}}`

func newTestVM(t *testing.T, endpoints []string, mutate ...func(*config.VictoriaMetricsConfig)) *VictoriaMetricsService {
	t.Helper()
	cfg := config.VictoriaMetricsConfig{Name: "test", Endpoints: endpoints, Timeout: 2000}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewVictoriaMetricsService(cfg, logger.NewFromZap(zaptest.NewLogger(t)))
}

func TestVictoriaMetricsService_ExecuteInstant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		assert.Equal(t, "sum(up)", r.URL.Query().Get("query"))
		assert.Equal(t, "1700000600", r.URL.Query().Get("time"))
		_, _ = w.Write([]byte(vectorBody))
	}))
	defer srv.Close()

	vm := newTestVM(t, []string{srv.URL})
	resp, err := vm.Execute(context.Background(), "sum(up)", 1700000000, 1700000600)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseKindSeries, resp.Kind)
	require.Len(t, resp.Series, 2)
	assert.Equal(t, "cart", resp.Series[0].Labels["service_name"])
}

func TestVictoriaMetricsService_ExecuteRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query_range", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1700000000", q.Get("start"))
		assert.Equal(t, "1700003600", q.Get("end"))
		assert.Equal(t, "1m", q.Get("step"))
		_, _ = w.Write([]byte(matrixBody))
	}))
	defer srv.Close()

	vm := newTestVM(t, []string{srv.URL})
	resp, err := vm.ExecuteRange(context.Background(), "rate(x[1m])", 1700000000, 1700003600, "1m")
	require.NoError(t, err)
	require.Len(t, resp.Series, 1)
	assert.Len(t, resp.Series[0].Points, 2)
}

func TestVictoriaMetricsService_GetSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/series", r.URL.Path)
		assert.Equal(t, []string{"target_info"}, r.URL.Query()["match[]"])
		_, _ = w.Write([]byte(`{"status":"success","data":[{"__name__":"target_info","service_name":"cart"}]}`))
	}))
	defer srv.Close()

	vm := newTestVM(t, []string{srv.URL})
	sets, err := vm.GetSeries(context.Background(), &models.SeriesRequest{Match: []string{"target_info"}})
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "cart", sets[0]["service_name"])
}

func TestVictoriaMetricsService_ErrorKinds(t *testing.T) {
	t.Run("no endpoint is a configuration error", func(t *testing.T) {
		vm := newTestVM(t, nil)
		_, err := vm.Execute(context.Background(), "up", 0, 60)
		var qe *QueryError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, KindConfiguration, qe.Kind)
		assert.True(t, errors.Is(err, ErrNoEndpoint))
	})

	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		code := code
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer srv.Close()

			_, err := newTestVM(t, []string{srv.URL}).Execute(context.Background(), "up", 0, 60)
			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, KindAuthentication, qe.Kind)
		})
	}

	t.Run("bad query is transient with backend message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"status":"error","errorType":"bad_data","error":"parse error at char 3"}`))
		}))
		defer srv.Close()

		_, err := newTestVM(t, []string{srv.URL}).ExecuteRange(context.Background(), "up(", 0, 60, "1m")
		var qe *QueryError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, KindTransient, qe.Kind)
		assert.Contains(t, qe.UserMessage(), "parse error at char 3")
	})
}

func TestVictoriaMetricsService_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(vectorBody))
	}))
	defer srv.Close()

	vm := newTestVM(t, []string{srv.URL}, func(c *config.VictoriaMetricsConfig) {
		c.Retries = 2
		c.BackoffMS = 1
	})
	resp, err := vm.Execute(context.Background(), "up", 0, 60)
	require.NoError(t, err)
	assert.Len(t, resp.Series, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestVictoriaMetricsService_SingleAttemptByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestVM(t, []string{srv.URL}).Execute(context.Background(), "up", 0, 60)
	require.Error(t, err)
	assert.Equal(t, KindTransient, AsQueryError(err).Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestVictoriaMetricsService_ClusterPathFallback(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasPrefix(r.URL.Path, "/select/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(vectorBody))
	}))
	defer srv.Close()

	vm := newTestVM(t, []string{srv.URL}, func(c *config.VictoriaMetricsConfig) { c.ClusterPath = true })
	_, err := vm.Execute(context.Background(), "up", 0, 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"/select/0/prometheus/api/v1/query", "/api/v1/query"}, paths)
}

func TestVictoriaMetricsService_RoundRobin(t *testing.T) {
	hits := map[string]int{}
	newSrv := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits[name]++
			_, _ = w.Write([]byte(vectorBody))
		}))
	}
	a, b := newSrv("a"), newSrv("b")
	defer a.Close()
	defer b.Close()

	vm := newTestVM(t, []string{a.URL, b.URL})
	for i := 0; i < 4; i++ {
		_, err := vm.Execute(context.Background(), "up", 0, 60)
		require.NoError(t, err)
	}
	assert.Equal(t, map[string]int{"a": 2, "b": 2}, hits)

	vm.ReplaceEndpoints(nil)
	_, err := vm.Execute(context.Background(), "up", 0, 60)
	assert.Equal(t, KindConfiguration, AsQueryError(err).Kind)
}

func TestVictoriaMetricsService_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestVM(t, []string{srv.URL}).HealthCheck(context.Background()))
	assert.ErrorIs(t, newTestVM(t, nil).HealthCheck(context.Background()), ErrNoEndpoint)
}

func TestCountSeries(t *testing.T) {
	data := map[string]any{
		"result": []any{
			map[string]any{"metric": map[string]any{"__name__": "up"}, "value": []any{123, "1"}},
			map[string]any{"metric": map[string]any{"__name__": "up"}, "value": []any{124, "0"}},
		},
	}
	assert.Equal(t, 2, countSeries(data))
	assert.Equal(t, 0, countSeries("nope"))
}

func TestCountDataPoints(t *testing.T) {
	data := map[string]any{
		"result": []any{
			map[string]any{"values": []any{[]any{1, "1"}, []any{2, "1"}}},
			map[string]any{"value": []any{3, "0"}},
		},
	}
	assert.Equal(t, 3, countDataPoints(data))
}

func TestReadBodySnippet(t *testing.T) {
	s := strings.Repeat("a", 100)
	assert.Equal(t, s, readBodySnippet(strings.NewReader(s)))

	big := strings.Repeat("x", 100_000)
	assert.Len(t, readBodySnippet(strings.NewReader(big)), 8<<10)
}
