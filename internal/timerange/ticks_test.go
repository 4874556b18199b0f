package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

func window(d time.Duration) models.TimeWindow {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return models.TimeWindow{Start: start, End: start.Add(d)}
}

func TestTickConfigFor_Buckets(t *testing.T) {
	cases := []struct {
		d        time.Duration
		interval time.Duration
		format   string
	}{
		{time.Minute, time.Minute, LabelTimeOfDay},
		{15*time.Minute - time.Millisecond, time.Minute, LabelTimeOfDay},
		{15 * time.Minute, 5 * time.Minute, LabelTimeOfDay},
		{time.Hour, 30 * time.Minute, LabelTimeOfDay},
		{6 * time.Hour, 2 * time.Hour, LabelTimeOfDay},
		{24*time.Hour - time.Second, 2 * time.Hour, LabelTimeOfDay},
		{24 * time.Hour, 6 * time.Hour, LabelDateAndTime},
		{7 * 24 * time.Hour, 24 * time.Hour, LabelDateOnly},
		{90 * 24 * time.Hour, 24 * time.Hour, LabelDateOnly},
	}
	for _, tc := range cases {
		t.Run(tc.d.String(), func(t *testing.T) {
			cfg := TickConfigFor(window(tc.d))
			assert.Equal(t, tc.interval.Milliseconds(), cfg.MinIntervalMs)
			assert.Equal(t, tc.format, cfg.LabelFormat)
		})
	}
}

func TestBucketLabel(t *testing.T) {
	cases := map[time.Duration]string{
		0:                            "1m",
		30 * time.Second:             "1m",
		15 * time.Minute:             "15m",
		15*time.Minute + time.Second: "16m",
		59 * time.Minute:             "59m",
		time.Hour:                    "1h",
		61 * time.Minute:             "2h",
		23 * time.Hour:               "23h",
		24 * time.Hour:               "1d",
		7 * 24 * time.Hour:           "7d",
		7*24*time.Hour + time.Minute: "8d",
	}
	for d, want := range cases {
		w := window(d)
		assert.Equal(t, want, BucketLabel(w.Start, w.End), d.String())
	}
}

func TestDurationToken(t *testing.T) {
	assert.Equal(t, "1m", DurationToken(time.Minute))
	assert.Equal(t, "5m", DurationToken(5*time.Minute))
	assert.Equal(t, "2h", DurationToken(2*time.Hour))
	assert.Equal(t, "1d", DurationToken(24*time.Hour))
	assert.Equal(t, "90s", DurationToken(90*time.Second))
	assert.Equal(t, "1s", DurationToken(0))
}

func TestDescribe(t *testing.T) {
	d := Describe(window(time.Hour))
	assert.Equal(t, "1h", d.Bucket)
	assert.Equal(t, int64(3600), d.DurationSec)
	assert.Equal(t, (30 * time.Minute).Milliseconds(), d.Tick.MinIntervalMs)
}
