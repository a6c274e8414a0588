package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Summary is the location and spread of one sample
type Summary struct {
	N        int
	Mean     float64
	Variance float64 // sample variance; NaN below two values
}

// Summarize computes the mean and sample variance. An empty sample has NaN fields.
func Summarize(data []float64) Summary {
	s := Summary{N: len(data), Mean: math.NaN(), Variance: math.NaN()}
	if len(data) == 0 {
		return s
	}
	if mean, err := stats.Mean(data); err == nil {
		s.Mean = mean
	}
	if len(data) > 1 {
		if v, err := stats.SampleVariance(data); err == nil {
			s.Variance = v
		}
	}
	return s
}

// PooledSD is sqrt((var(a) + var(b)) / 2), the usual denominator for
// standardized mean differences
func PooledSD(a, b Summary) float64 {
	return math.Sqrt((a.Variance + b.Variance) / 2)
}

// SMD is the standardized mean difference of two samples against a fixed
// spread. It is 0 when both means agree, and NaN when the spread is zero or
// undefined but the means differ.
func SMD(treated, control []float64, spread float64) float64 {
	t, c := Summarize(treated), Summarize(control)
	diff := t.Mean - c.Mean
	if diff == 0 {
		return 0
	}
	if spread == 0 || math.IsNaN(spread) {
		return math.NaN()
	}
	return diff / spread
}
