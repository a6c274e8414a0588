package features

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// StandardScaler centers each column and divides by its population standard deviation.
// Constant columns are centered only.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler learns per-column mean and standard deviation from x
func FitScaler(x mat.Matrix) (*StandardScaler, error) {
	r, c := x.Dims()
	s := &StandardScaler{Mean: make([]float64, c), Scale: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, err
		}
		sd, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return nil, err
		}
		if sd == 0 {
			sd = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = sd
	}
	return s, nil
}

// Transform returns a scaled copy of x
func (s *StandardScaler) Transform(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, x)
	return out
}

// FitTransform fits on x and returns the scaled copy
func FitTransform(x mat.Matrix) (*mat.Dense, *StandardScaler, error) {
	s, err := FitScaler(x)
	if err != nil {
		return nil, nil, err
	}
	return s.Transform(x), s, nil
}
