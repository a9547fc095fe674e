package filter

type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendWorsening    Trend = "worsening"
	TrendStable       Trend = "stable"
	TrendUndetermined Trend = "undetermined"
)

// trendThreshold is the minimum half-average severity delta that counts
// as a real change rather than noise.
const trendThreshold = 0.3

// ClassifyTrend compares the average severity of the two halves of a
// chronologically ordered series. Fewer than two points cannot show a
// direction and classify as undetermined, never as a default bucket.
func ClassifyTrend(severities []float64) Trend {
	if len(severities) < 2 {
		return TrendUndetermined
	}

	mid := len(severities) / 2
	first := average(severities[:mid])
	second := average(severities[mid:])

	switch {
	case second < first-trendThreshold:
		return TrendImproving
	case second > first+trendThreshold:
		return TrendWorsening
	default:
		return TrendStable
	}
}

func average(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
