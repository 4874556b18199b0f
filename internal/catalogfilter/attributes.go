package catalogfilter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

// ResolvePath walks a dotted path ("team.owner.name") through nested maps.
func ResolvePath(attrs map[string]any, path string) (any, bool) {
	if len(attrs) == 0 || path == "" {
		return nil, false
	}
	var cur any = attrs
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// Stringify renders a resolved attribute value for comparison with a
// selected checklist value.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// AttributeVocabulary flattens every leaf of every service's
// GroupByAttributes into dotted paths and returns the sorted distinct values
// observed per path.
func AttributeVocabulary(catalog []models.ServiceRecord) map[string][]string {
	sets := map[string]map[string]struct{}{}
	for _, svc := range catalog {
		flatten("", svc.GroupByAttributes, func(path string, v any) {
			if sets[path] == nil {
				sets[path] = map[string]struct{}{}
			}
			sets[path][Stringify(v)] = struct{}{}
		})
	}
	out := make(map[string][]string, len(sets))
	for path, set := range sets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out[path] = values
	}
	return out
}

func flatten(prefix string, node any, emit func(path string, v any)) {
	switch m := node.(type) {
	case map[string]any:
		for k, v := range m {
			flatten(joinPath(prefix, k), v, emit)
		}
	case map[string]string:
		for k, v := range m {
			emit(joinPath(prefix, k), v)
		}
	default:
		if prefix != "" {
			emit(prefix, node)
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
