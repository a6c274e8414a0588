package profiling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4})
	assert.Equal(t, 4, s.N)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 5.0/3.0, s.Variance, 1e-12)

	one := Summarize([]float64{7})
	assert.Equal(t, 7.0, one.Mean)
	assert.True(t, math.IsNaN(one.Variance))

	empty := Summarize(nil)
	assert.True(t, math.IsNaN(empty.Mean))
}

func TestSMD(t *testing.T) {
	treated := []float64{2, 4, 6}
	control := []float64{1, 2, 3}
	spread := PooledSD(Summarize(treated), Summarize(control))
	assert.InDelta(t, math.Sqrt(2.5), spread, 1e-12)

	tests := []struct {
		name    string
		t, c    []float64
		spread  float64
		want    float64
		wantNaN bool
	}{
		{"pooled", treated, control, spread, 2 / math.Sqrt(2.5), false},
		{"equal means", []float64{1, 3}, []float64{2, 2}, 0, 0, false},
		{"zero spread", []float64{1, 1}, []float64{0, 0}, 0, 0, true},
		{"negative", control, treated, spread, -2 / math.Sqrt(2.5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMD(tt.t, tt.c, tt.spread)
			if tt.wantNaN {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}
