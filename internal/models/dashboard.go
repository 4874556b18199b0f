package models

import "time"

// WidgetState is the per-widget result holder snapshot of the latest
// committed refresh cycle.
type WidgetState[T any] struct {
	Generation   uint64    `json:"generation"`
	CycleID      string    `json:"cycle_id,omitempty"`
	CommittedAt  time.Time `json:"committed_at"`
	Data         T         `json:"data"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Failed reports whether the last committed cycle ended in an error.
func (w WidgetState[T]) Failed() bool { return w.ErrorKind != "" }

// DashboardState is everything the service-health page renders.
type DashboardState struct {
	Window          TimeWindow                 `json:"window"`
	Tick            TickConfig                 `json:"tick"`
	Bucket          string                     `json:"bucket"`
	TopServices     WidgetState[*RankedWidget] `json:"top_services"`
	TopDependencies WidgetState[*RankedWidget] `json:"top_dependencies"`
	ServiceTable    WidgetState[*ServiceTable] `json:"service_table"`
}

// DashboardRequest is the refresh payload of the dashboard endpoint.
type DashboardRequest struct {
	TimeWindowRequest
	Environment  string      `json:"environment,omitempty"`
	Service      string      `json:"service,omitempty"`
	Filter       FilterState `json:"filter"`
	RefreshToken uint64      `json:"refresh_token"`
	TopK         int         `json:"k,omitempty"`
}

// ServiceTableRequest is the payload of the filtered service table endpoint.
type ServiceTableRequest struct {
	TimeWindowRequest
	Environment string      `json:"environment,omitempty"`
	Filter      FilterState `json:"filter"`
}
