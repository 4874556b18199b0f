package models

import (
	"time"
)

// TimeWindowRequest is the public request shape for time-window endpoints.
// From and To are date-math expressions ("now-15m", "now", RFC3339, epoch).
type TimeWindowRequest struct {
	From string `json:"from" form:"from"`
	To   string `json:"to" form:"to"`
}

// TimeWindow is an absolute, inclusive evaluation window. Start never
// follows End.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }
func (w TimeWindow) StartSeconds() int64     { return w.Start.Unix() }
func (w TimeWindow) EndSeconds() int64       { return w.End.Unix() }

// Equal compares instants, ignoring location.
func (w TimeWindow) Equal(o TimeWindow) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

// TickConfig drives chart x-axis ticks for a window.
type TickConfig struct {
	MinIntervalMs int64  `json:"min_interval_ms"`
	LabelFormat   string `json:"label_format"`
}

// ResolvedWindow is returned by the window endpoint and the CLI.
type ResolvedWindow struct {
	Window      TimeWindow `json:"window"`
	Tick        TickConfig `json:"tick"`
	Bucket      string     `json:"bucket"`
	DurationSec int64      `json:"duration_seconds"`
}
