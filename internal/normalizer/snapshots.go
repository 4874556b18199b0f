package normalizer

import (
	"sort"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

// Snapshots converts a range response into full point sequences keyed by
// the value of keyLabel. Points are ordered by timestamp; series sharing a
// key are merged.
func Snapshots(resp models.QueryResponse, keyLabel string) map[string][]models.MetricPoint {
	out := map[string][]models.MetricPoint{}
	switch resp.Kind {
	case models.ResponseKindSeries:
		for _, s := range resp.Series {
			key := s.Labels[keyLabel]
			if key == "" {
				key = models.UnknownLabel
			}
			for _, p := range s.Points {
				v, _ := toFloat(p.Value)
				out[key] = append(out[key], models.MetricPoint{Timestamp: epochToTime(p.Timestamp), Value: v})
			}
		}
	case models.ResponseKindRowTable:
		if resp.Table == nil {
			break
		}
		for _, row := range resp.Table.Rows {
			key := labelString(row[keyLabel])
			v, _ := toFloat(row[models.RowValueColumn])
			out[key] = append(out[key], models.MetricPoint{Timestamp: rowTimestamp(row["@timestamp"]), Value: v})
		}
	}
	for k := range out {
		points := out[k]
		sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	}
	return out
}

// MergeSnapshots folds per-metric point maps into per-service snapshots.
func MergeSnapshots(perMetric map[models.MetricName]map[string][]models.MetricPoint) map[string]models.MetricSnapshot {
	out := map[string]models.MetricSnapshot{}
	for metric, byService := range perMetric {
		for service, points := range byService {
			snap, ok := out[service]
			if !ok {
				snap = models.MetricSnapshot{}
				out[service] = snap
			}
			snap[metric] = points
		}
	}
	return out
}

func rowTimestamp(v any) time.Time {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
	}
	ts, _ := toFloat(v)
	return epochToTime(ts)
}

func epochToTime(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	whole := int64(sec)
	nanos := int64((sec - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos).UTC()
}
