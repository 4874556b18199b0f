package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/platformbuilds/mirador-servicehealth/internal/catalogfilter"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/querytemplate"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

var testCatalog = []models.ServiceRecord{
	{ServiceName: "checkout", Environment: "eks:prod", GroupByAttributes: map[string]any{"team": map[string]any{"name": "payments"}}},
	{ServiceName: "cart", Environment: "ec2:default", GroupByAttributes: map[string]any{"team": map[string]any{"name": "storefront"}}},
	{ServiceName: "thumbnailer", Environment: "lambda:default"},
}

func newTestHealthService(t *testing.T, m *fakeMetrics, opts ServiceHealthOptions) *ServiceHealthService {
	t.Helper()
	return NewServiceHealthService(m, staticCatalog{services: testCatalog}, opts, logger.NewFromZap(zaptest.NewLogger(t)))
}

func TestTopServiceFaults_Ranks(t *testing.T) {
	m := &fakeMetrics{instant: func(string) (models.QueryResponse, error) {
		return vector([]map[string]string{
			{"service_name": "shipping", "deployment_environment": "prod"},
			{"service_name": "cart", "deployment_environment": "prod"},
			{"service_name": "payment", "deployment_environment": "prod"},
			{"service_name": "idle", "deployment_environment": "prod"},
		}, []string{"1.8", "5.5", "3.2", "0"}), nil
	}}
	svc := newTestHealthService(t, m, ServiceHealthOptions{})

	w, err := svc.TopServiceFaults(context.Background(), testWindow, "prod", 0)
	require.NoError(t, err)
	assert.Equal(t, "1h", w.Bucket)
	assert.Equal(t, []string{"service_name", "deployment_environment"}, w.Labels)
	require.Len(t, w.Entries, 3)

	assert.Equal(t, models.LabelTuple{"cart", "prod"}, w.Entries[0].Key)
	assert.InDelta(t, 52.38, w.Entries[0].RelativePercentage, 0.01)
	assert.InDelta(t, 30.48, w.Entries[1].RelativePercentage, 0.01)
	assert.InDelta(t, 17.14, w.Entries[2].RelativePercentage, 0.01)

	q := m.recorded()
	require.Len(t, q, 1)
	assert.Contains(t, q[0], `deployment_environment="prod"`)
	assert.Contains(t, q[0], "[1h]")
}

func TestTopServiceFaults_EscapesEnvironment(t *testing.T) {
	m := &fakeMetrics{}
	svc := newTestHealthService(t, m, ServiceHealthOptions{})

	_, err := svc.TopServiceFaults(context.Background(), testWindow, `prod"} or vector(1) #`, 5)
	require.NoError(t, err)
	assert.Contains(t, m.recorded()[0], `deployment_environment="prod\"} or vector(1) #"`)
}

func TestTopDependencyFaults(t *testing.T) {
	m := &fakeMetrics{instant: func(string) (models.QueryResponse, error) {
		return vector([]map[string]string{
			{"client": "checkout", "server": "payment"},
			{"client": "checkout", "server": "cart"},
		}, []string{"40", "120"}), nil
	}}
	svc := newTestHealthService(t, m, ServiceHealthOptions{})

	w, err := svc.TopDependencyFaults(context.Background(), testWindow, "prod", "checkout", 5)
	require.NoError(t, err)
	require.Len(t, w.Entries, 2)
	assert.Equal(t, models.LabelTuple{"checkout", "cart"}, w.Entries[0].Key)
	assert.InDelta(t, 120, w.Entries[0].RelativePercentage, 1e-9)
	assert.InDelta(t, 40, w.Entries[1].RelativePercentage, 1e-9)
	assert.Contains(t, m.recorded()[0], `{client="checkout",deployment_environment="prod"}`)
}

func TestTopServiceFaults_KLimitsEntries(t *testing.T) {
	m := &fakeMetrics{instant: func(string) (models.QueryResponse, error) {
		return vector([]map[string]string{{"service_name": "a"}, {"service_name": "b"}, {"service_name": "c"}},
			[]string{"1", "2", "3"}), nil
	}}
	svc := newTestHealthService(t, m, ServiceHealthOptions{TopK: 2})

	w, err := svc.TopServiceFaults(context.Background(), testWindow, "", 0)
	require.NoError(t, err)
	assert.Len(t, w.Entries, 2)

	w, err = svc.TopServiceFaults(context.Background(), testWindow, "", 1)
	require.NoError(t, err)
	assert.Len(t, w.Entries, 1)
}

func TestTopServiceFaults_BackendErrorIsStructured(t *testing.T) {
	m := &fakeMetrics{instant: func(string) (models.QueryResponse, error) {
		return models.QueryResponse{}, &StatusError{StatusCode: 401}
	}}
	svc := newTestHealthService(t, m, ServiceHealthOptions{})

	_, err := svc.TopServiceFaults(context.Background(), testWindow, "prod", 5)
	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, KindAuthentication, qe.Kind)
}

func TestSetTemplates_SwapsQueries(t *testing.T) {
	m := &fakeMetrics{}
	svc := newTestHealthService(t, m, ServiceHealthOptions{})

	set, err := querytemplate.New(map[string]string{
		querytemplate.ServiceFaults: `custom_faults{{selector .Labels.Environment .Environment}}[{{.Bucket}}]`,
	})
	require.NoError(t, err)
	svc.SetTemplates(set)
	svc.SetTemplates(nil)

	_, err = svc.TopServiceFaults(context.Background(), testWindow, "prod", 5)
	require.NoError(t, err)
	assert.Equal(t, `custom_faults{deployment_environment="prod"}[1h]`, m.recorded()[0])
}

func TestTopServiceFaults_TemplateErrorNamesTemplate(t *testing.T) {
	m := &fakeMetrics{}
	set, err := querytemplate.New(map[string]string{querytemplate.ServiceFaults: `custom_faults{{.Nope}}`})
	require.NoError(t, err)
	svc := newTestHealthService(t, m, ServiceHealthOptions{Templates: set})

	_, err = svc.TopServiceFaults(context.Background(), testWindow, "prod", 5)
	qe := AsQueryError(err)
	require.NotNil(t, qe)
	assert.Equal(t, KindConfiguration, qe.Kind)
	assert.True(t, errors.Is(err, ErrQueryTemplate))
	assert.Contains(t, qe.UserMessage(), "Invalid query template")
	assert.Contains(t, qe.UserMessage(), querytemplate.ServiceFaults)
	assert.NotEqual(t, dataSourceMessage, qe.UserMessage())
	assert.Empty(t, m.recorded())
}

func TestServiceTable(t *testing.T) {
	m := &fakeMetrics{ranged: redRanges(
		map[string]float64{"checkout": 0.125, "cart": 0.0625},
		map[string]float64{"checkout": 40, "cart": 85.25},
		map[string]float64{"checkout": 0.002, "cart": 0.03125},
	)}
	svc := newTestHealthService(t, m, ServiceHealthOptions{})

	table, err := svc.ServiceTable(context.Background(), testWindow, "prod", models.FilterState{})
	require.NoError(t, err)
	assert.Equal(t, 3, table.Total)
	assert.Equal(t, 3, table.Filtered)
	assert.Equal(t, models.MetricBounds{LatencyMin: 62, LatencyMax: 125, ThroughputMin: 40, ThroughputMax: 86}, table.Bounds)
	assert.Equal(t, catalogfilter.EnvironmentCategories(testCatalog), table.EnvironmentCategories)
	assert.Equal(t, []string{"payments", "storefront"}, table.AttributeVocabulary["team.name"])

	require.Len(t, table.Rows, 3)
	cart := table.Rows[1]
	assert.Equal(t, "cart", cart.ServiceName)
	assert.Equal(t, catalogfilter.CategoryEC2, cart.Category)
	require.NotNil(t, cart.LatencyMs)
	assert.InDelta(t, 62.5, *cart.LatencyMs, 1e-9)
	assert.InDelta(t, 3.125, *cart.FailurePercent, 1e-9)
	assert.Nil(t, cart.Snapshot)
	assert.Nil(t, table.Rows[2].LatencyMs)

	m.mu.Lock()
	steps := append([]string(nil), m.steps...)
	m.mu.Unlock()
	assert.Equal(t, []string{"30m", "30m", "30m"}, steps)
}

func TestServiceTable_Filtered(t *testing.T) {
	m := &fakeMetrics{ranged: redRanges(
		map[string]float64{"checkout": 0.125, "cart": 0.0625},
		map[string]float64{"checkout": 40, "cart": 85.25},
		map[string]float64{"checkout": 0.002, "cart": 0.03125},
	)}
	svc := newTestHealthService(t, m, ServiceHealthOptions{Sparklines: true})

	table, err := svc.ServiceTable(context.Background(), testWindow, "", models.FilterState{
		SelectedAttributeValues: map[string][]string{"team.name": {"payments"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, table.Total)
	assert.Equal(t, 1, table.Filtered)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "checkout", table.Rows[0].ServiceName)
	assert.Len(t, table.Rows[0].Snapshot[models.MetricLatency], 1)
}

func TestServiceTable_Errors(t *testing.T) {
	t.Run("range query failure", func(t *testing.T) {
		m := &fakeMetrics{ranged: func(string) (models.QueryResponse, error) {
			return models.QueryResponse{}, ErrNoEndpoint
		}}
		svc := newTestHealthService(t, m, ServiceHealthOptions{})
		_, err := svc.ServiceTable(context.Background(), testWindow, "", models.FilterState{})
		assert.Equal(t, KindConfiguration, AsQueryError(err).Kind)
	})

	t.Run("catalog failure", func(t *testing.T) {
		svc := NewServiceHealthService(&fakeMetrics{}, staticCatalog{err: errors.New("catalog down")},
			ServiceHealthOptions{}, logger.NewNop())
		_, err := svc.ServiceTable(context.Background(), testWindow, "", models.FilterState{})
		qe := AsQueryError(err)
		assert.Equal(t, KindTransient, qe.Kind)
		assert.Contains(t, qe.Message, "catalog down")

		_, err = svc.AttributeValues(context.Background(), testWindow)
		assert.Error(t, err)
	})
}

func TestServiceTable_FallbackBounds(t *testing.T) {
	fallback := models.MetricBounds{LatencyMin: 0, LatencyMax: 5000, ThroughputMin: 0, ThroughputMax: 10}
	svc := newTestHealthService(t, &fakeMetrics{}, ServiceHealthOptions{FallbackBounds: &fallback})

	table, err := svc.ServiceTable(context.Background(), testWindow, "", models.FilterState{})
	require.NoError(t, err)
	assert.Equal(t, fallback, table.Bounds)
}
