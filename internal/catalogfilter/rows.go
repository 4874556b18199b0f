package catalogfilter

import "github.com/platformbuilds/mirador-servicehealth/internal/models"

// BuildRows attaches category and latest RED values to filtered services.
// withSeries keeps the full snapshot for sparklines.
func BuildRows(services []models.ServiceRecord, metrics map[string]models.MetricSnapshot, withSeries bool) []models.ServiceRow {
	rows := make([]models.ServiceRow, 0, len(services))
	for _, svc := range services {
		snap := metrics[svc.ServiceName]
		row := models.ServiceRow{
			ServiceRecord:  svc,
			Category:       ClassifyEnvironment(svc.Environment),
			LatencyMs:      optional(latencyMs(snap)),
			Throughput:     optional(throughput(snap)),
			FailurePercent: optional(failurePercent(snap)),
		}
		if withSeries {
			row.Snapshot = snap
		}
		rows = append(rows, row)
	}
	return rows
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
