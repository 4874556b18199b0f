package catalogfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

func TestResolvePath(t *testing.T) {
	attrs := map[string]any{
		"team":    map[string]any{"owner": map[string]string{"name": "ana"}},
		"replica": 3.0,
	}
	v, ok := ResolvePath(attrs, "team.owner.name")
	require.True(t, ok)
	assert.Equal(t, "ana", v)

	v, ok = ResolvePath(attrs, "replica")
	require.True(t, ok)
	assert.Equal(t, "3", Stringify(v))

	_, ok = ResolvePath(attrs, "team.missing")
	assert.False(t, ok)
	_, ok = ResolvePath(attrs, "replica.deeper")
	assert.False(t, ok)
	_, ok = ResolvePath(nil, "team")
	assert.False(t, ok)
}

func TestAttributeVocabulary(t *testing.T) {
	vocab := AttributeVocabulary([]models.ServiceRecord{
		{ServiceName: "a", GroupByAttributes: map[string]any{"team": map[string]any{"name": "b"}, "canary": true}},
		{ServiceName: "b", GroupByAttributes: map[string]any{"team": map[string]any{"name": "a"}}},
		{ServiceName: "c", GroupByAttributes: map[string]any{"team": map[string]any{"name": "a"}}},
	})
	assert.Equal(t, map[string][]string{
		"team.name": {"a", "b"},
		"canary":    {"true"},
	}, vocab)
}

func TestClassifyEnvironment(t *testing.T) {
	cases := map[string]string{
		"eks:prod/checkout": CategoryEKS,
		"EKS:staging":       CategoryEKS,
		"ecs:cluster":       CategoryECS,
		"ec2:default":       CategoryEC2,
		"lambda:default":    CategoryLambda,
		"k8s:cluster/ns":    CategoryKubernetes,
		"generic:default":   CategoryGeneric,
		"on-prem":           CategoryOther,
		"":                  CategoryOther,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ClassifyEnvironment(raw), raw)
	}
}

func TestEnvironmentCategories(t *testing.T) {
	catalog, _ := fixture()
	assert.Equal(t, []string{CategoryEC2, CategoryEKS, CategoryLambda, CategoryOther}, EnvironmentCategories(catalog))
}

func TestBuildRows(t *testing.T) {
	catalog, metrics := fixture()
	rows := BuildRows(catalog, metrics, false)
	require.Len(t, rows, len(catalog))

	require.NotNil(t, rows[0].LatencyMs)
	assert.InDelta(t, 125, *rows[0].LatencyMs, 1e-9)
	assert.InDelta(t, 0.2, *rows[0].FailurePercent, 1e-9)
	assert.Nil(t, rows[0].Snapshot)
	assert.Equal(t, CategoryEKS, rows[0].Category)

	assert.Nil(t, rows[4].LatencyMs)
	assert.Nil(t, rows[4].Throughput)
}
