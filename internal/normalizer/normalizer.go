package normalizer

import (
	"math"
	"strconv"
	"strings"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

// Normalize converts either response shape into records keyed by labelNames,
// in arrival order. It never fails: unknown shapes and empty payloads yield
// an empty slice, missing labels become "unknown" and unparsable values 0.
func Normalize(resp models.QueryResponse, labelNames []string) []models.RawRecord {
	switch resp.Kind {
	case models.ResponseKindRowTable:
		return fromRowTable(resp.Table, labelNames)
	case models.ResponseKindSeries:
		return fromSeries(resp.Series, labelNames)
	default:
		return []models.RawRecord{}
	}
}

func fromRowTable(table *models.RowTable, labelNames []string) []models.RawRecord {
	if table == nil {
		return []models.RawRecord{}
	}
	out := make([]models.RawRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		key := make(models.LabelTuple, len(labelNames))
		for i, name := range labelNames {
			key[i] = labelString(row[name])
		}
		v, _ := toFloat(row[models.RowValueColumn])
		out = append(out, models.RawRecord{Key: key, Value: v})
	}
	return out
}

func fromSeries(series []models.SeriesData, labelNames []string) []models.RawRecord {
	out := make([]models.RawRecord, 0, len(series))
	for _, s := range series {
		key := make(models.LabelTuple, len(labelNames))
		for i, name := range labelNames {
			v, ok := s.Labels[name]
			if !ok || v == "" {
				v = models.UnknownLabel
			}
			key[i] = v
		}
		value := 0.0
		if n := len(s.Points); n > 0 {
			value, _ = toFloat(s.Points[n-1].Value)
		}
		out = append(out, models.RawRecord{Key: key, Value: value})
	}
	return out
}

func labelString(v any) string {
	switch x := v.(type) {
	case nil:
		return models.UnknownLabel
	case string:
		if x == "" {
			return models.UnknownLabel
		}
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return models.UnknownLabel
	}
}

// toFloat parses numbers and numeric strings. Unparsable and non-finite
// inputs become 0.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
