package filter

import "testing"

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name       string
		severities []float64
		want       Trend
	}{
		{
			name:       "empty series is undetermined",
			severities: nil,
			want:       TrendUndetermined,
		},
		{
			name:       "single point is undetermined",
			severities: []float64{3.0},
			want:       TrendUndetermined,
		},
		{
			name:       "flat two-point series is stable",
			severities: []float64{1.0, 1.0},
			want:       TrendStable,
		},
		{
			name:       "delta above threshold is worsening",
			severities: []float64{1.0, 1.5},
			want:       TrendWorsening,
		},
		{
			name:       "delta above threshold downward is improving",
			severities: []float64{1.5, 1.0},
			want:       TrendImproving,
		},
		{
			name:       "delta at exactly the threshold stays stable",
			severities: []float64{1.0, 1.3},
			want:       TrendStable,
		},
		{
			name:       "longer series splits at midpoint",
			severities: []float64{4, 4, 3, 1, 1, 0},
			want:       TrendImproving,
		},
		{
			name:       "odd length puts the extra point in the second half",
			severities: []float64{0, 2, 2},
			want:       TrendWorsening,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTrend(tt.severities); got != tt.want {
				t.Errorf("ClassifyTrend(%v) = %s, want %s", tt.severities, got, tt.want)
			}
		})
	}
}
