package catalogfilter

import (
	"sort"
	"strings"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

// Environment categories. Raw environment strings are platform identifiers
// such as "eks:prod-cluster/checkout" or "ec2:default".
const (
	CategoryEKS        = "EKS"
	CategoryECS        = "ECS"
	CategoryEC2        = "EC2"
	CategoryLambda     = "Lambda"
	CategoryKubernetes = "Kubernetes"
	CategoryGeneric    = "Generic"
	CategoryOther      = "Other"
)

var platformTable = []struct {
	platform string
	category string
}{
	{"eks", CategoryEKS},
	{"ecs", CategoryECS},
	{"ec2", CategoryEC2},
	{"lambda", CategoryLambda},
	{"k8s", CategoryKubernetes},
	{"kubernetes", CategoryKubernetes},
	{"generic", CategoryGeneric},
}

// ClassifyEnvironment maps a raw environment string onto its category. The
// platform is the part before the first ':'.
func ClassifyEnvironment(raw string) string {
	platform := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(platform, ':'); i >= 0 {
		platform = platform[:i]
	}
	for _, row := range platformTable {
		if row.platform == platform {
			return row.category
		}
	}
	return CategoryOther
}

// EnvironmentCategories lists the distinct categories present in catalog.
func EnvironmentCategories(catalog []models.ServiceRecord) []string {
	seen := map[string]struct{}{}
	for _, svc := range catalog {
		seen[ClassifyEnvironment(svc.Environment)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
