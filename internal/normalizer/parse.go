// Package normalizer converts metrics backend responses into uniform records.
package normalizer

import (
	"encoding/json"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

// ParseQueryResponse is the single place where raw payloads are inspected.
// It accepts a decoded JSON value (or raw bytes) and tags it with its shape:
// a "rows" container is a row table; a "result" container (top level or
// under "data") is a classic series response; anything else is empty.
func ParseQueryResponse(payload any) models.QueryResponse {
	obj, ok := asObject(payload)
	if !ok {
		return models.QueryResponse{Kind: models.ResponseKindEmpty}
	}

	if rows, ok := obj["rows"].([]any); ok {
		return models.QueryResponse{Kind: models.ResponseKindRowTable, Table: parseRows(rows)}
	}

	if data, ok := obj["data"].(map[string]any); ok {
		if _, has := data["result"]; has {
			obj = data
		}
	}
	if result, ok := obj["result"].([]any); ok {
		return models.QueryResponse{Kind: models.ResponseKindSeries, Series: parseSeries(result)}
	}
	return models.QueryResponse{Kind: models.ResponseKindEmpty}
}

func asObject(payload any) (map[string]any, bool) {
	switch v := payload.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, false
		}
		return m, true
	case json.RawMessage:
		return asObject([]byte(v))
	default:
		// Typed values (e.g. structs from a client) go through a JSON round trip.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return asObject(raw)
	}
}

func parseRows(rows []any) *models.RowTable {
	table := &models.RowTable{Rows: make([]map[string]any, 0, len(rows))}
	for _, r := range rows {
		if row, ok := r.(map[string]any); ok {
			table.Rows = append(table.Rows, row)
		}
	}
	return table
}

func parseSeries(result []any) []models.SeriesData {
	out := make([]models.SeriesData, 0, len(result))
	for _, item := range result {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s := models.SeriesData{Labels: map[string]string{}}
		if metric, ok := entry["metric"].(map[string]any); ok {
			for k, v := range metric {
				if str, ok := v.(string); ok {
					s.Labels[k] = str
				}
			}
		}
		if pair, ok := samplePair(entry["value"]); ok {
			s.Points = append(s.Points, pair)
		}
		if values, ok := entry["values"].([]any); ok {
			for _, v := range values {
				if pair, ok := samplePair(v); ok {
					s.Points = append(s.Points, pair)
				}
			}
		}
		out = append(out, s)
	}
	return out
}

func samplePair(v any) (models.SamplePair, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return models.SamplePair{}, false
	}
	ts, _ := toFloat(arr[0])
	return models.SamplePair{Timestamp: ts, Value: arr[1]}, true
}
