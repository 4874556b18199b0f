package timerange

import (
	"fmt"
	"math"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

const (
	LabelTimeOfDay   = "15:04"
	LabelDateAndTime = "Jan 2 15:04"
	LabelDateOnly    = "Jan 2 2006"
)

type tickBucket struct {
	below    time.Duration // exclusive upper edge; zero means unbounded
	interval time.Duration
	format   string
}

var tickBuckets = []tickBucket{
	{below: 15 * time.Minute, interval: time.Minute, format: LabelTimeOfDay},
	{below: time.Hour, interval: 5 * time.Minute, format: LabelTimeOfDay},
	{below: 6 * time.Hour, interval: 30 * time.Minute, format: LabelTimeOfDay},
	{below: 24 * time.Hour, interval: 2 * time.Hour, format: LabelTimeOfDay},
	{below: 7 * 24 * time.Hour, interval: 6 * time.Hour, format: LabelDateAndTime},
	{interval: 24 * time.Hour, format: LabelDateOnly},
}

// TickConfigFor picks the tick interval and label layout for a window. Each
// bucket includes its lower edge.
func TickConfigFor(w models.TimeWindow) models.TickConfig {
	d := w.Duration()
	for _, b := range tickBuckets {
		if b.below == 0 || d < b.below {
			return models.TickConfig{MinIntervalMs: b.interval.Milliseconds(), LabelFormat: b.format}
		}
	}
	last := tickBuckets[len(tickBuckets)-1]
	return models.TickConfig{MinIntervalMs: last.interval.Milliseconds(), LabelFormat: last.format}
}

// BucketLabel renders the window length as a PromQL range token: whole
// minutes rounded up, promoted to hours at 60 minutes and to days at 24 hours.
func BucketLabel(start, end time.Time) string {
	d := end.Sub(start)
	if d < 0 {
		d = 0
	}
	minutes := int64(math.Ceil(d.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := ceilDiv(minutes, 60)
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dd", ceilDiv(hours, 24))
}

// DurationToken renders d with the largest unit that divides it exactly.
func DurationToken(d time.Duration) string {
	switch {
	case d <= 0:
		return "1s"
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}

// Describe bundles the derived settings of a window.
func Describe(w models.TimeWindow) models.ResolvedWindow {
	return models.ResolvedWindow{
		Window:      w,
		Tick:        TickConfigFor(w),
		Bucket:      BucketLabel(w.Start, w.End),
		DurationSec: int64(w.Duration() / time.Second),
	}
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
