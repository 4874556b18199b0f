package catalogfilter

// Failure-rate threshold buckets, evaluated on the latest failure ratio
// expressed as a percentage.
const (
	ThresholdBelow1   = "<1%"
	Threshold1To5     = "1-5%"
	ThresholdAtLeast5 = ">=5%"
)

var failureThresholds = map[string]func(pct float64) bool{
	ThresholdBelow1:   func(pct float64) bool { return pct < 1 },
	Threshold1To5:     func(pct float64) bool { return pct >= 1 && pct < 5 },
	ThresholdAtLeast5: func(pct float64) bool { return pct >= 5 },
}

// FailureThresholds lists the bucket ids in display order.
func FailureThresholds() []string {
	return []string{ThresholdBelow1, Threshold1To5, ThresholdAtLeast5}
}

func matchesAnyThreshold(ids []string, pct float64) bool {
	for _, id := range ids {
		if pred, ok := failureThresholds[id]; ok && pred(pct) {
			return true
		}
	}
	return false
}
