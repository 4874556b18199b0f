package models

import "strings"

// UnknownLabel replaces label components that are missing from a backend row
// or series.
const UnknownLabel = "unknown"

// LabelTuple is the ordered key of a record, e.g. (service, remoteService, environment).
type LabelTuple []string

func (t LabelTuple) String() string { return strings.Join(t, "/") }

// Get returns the i-th component or UnknownLabel when out of range.
func (t LabelTuple) Get(i int) string {
	if i < 0 || i >= len(t) {
		return UnknownLabel
	}
	return t[i]
}

// RawRecord is one logical measurement from the metrics backend.
type RawRecord struct {
	Key   LabelTuple `json:"key"`
	Value float64    `json:"value"`
}

// RankedEntry is a displayed row of a top-K fault widget.
type RankedEntry struct {
	Key                LabelTuple `json:"key"`
	RawValue           float64    `json:"raw_value"`
	RelativePercentage float64    `json:"relative_percentage"`
}

// RankedWidget bundles a ranking with the labels it is keyed by.
type RankedWidget struct {
	Labels  []string      `json:"labels"`
	Entries []RankedEntry `json:"entries"`
	Window  TimeWindow    `json:"window"`
	Bucket  string        `json:"bucket"`
}
