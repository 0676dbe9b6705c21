package features

import (
	"fmt"
	"math"
)

// MinMaxScaler rescales every column to [0, 1] using the min and max seen
// during Fit. Constant columns map to 0.
type MinMaxScaler struct {
	Min   []float64 `json:"min"`
	Scale []float64 `json:"scale"`
}

// Fit records per-column min and range.
func (s *MinMaxScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("min-max scaler: no rows to fit")
	}
	cols := len(x[0])
	lo := make([]float64, cols)
	hi := make([]float64, cols)
	for c := range lo {
		lo[c], hi[c] = math.Inf(1), math.Inf(-1)
	}

	for r, row := range x {
		if len(row) != cols {
			return fmt.Errorf("min-max scaler: row %d has %d columns, want %d", r, len(row), cols)
		}
		for c, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("min-max scaler: row %d column %d is not finite", r, c)
			}
			lo[c] = math.Min(lo[c], v)
			hi[c] = math.Max(hi[c], v)
		}
	}

	s.Min = lo
	s.Scale = make([]float64, cols)
	for c := range lo {
		rng := hi[c] - lo[c]
		if rng == 0 {
			rng = 1
		}
		s.Scale[c] = 1 / rng
	}
	return nil
}

// Transform returns scaled copies of the rows.
func (s *MinMaxScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.Min == nil {
		return nil, fmt.Errorf("min-max scaler: not fitted")
	}
	out := make([][]float64, len(x))
	for r, row := range x {
		if len(row) != len(s.Min) {
			return nil, fmt.Errorf("min-max scaler: row %d has %d columns, want %d", r, len(row), len(s.Min))
		}
		scaled := make([]float64, len(row))
		for c, v := range row {
			scaled[c] = (v - s.Min[c]) * s.Scale[c]
		}
		out[r] = scaled
	}
	return out, nil
}

// FitTransform fits on x and returns x scaled.
func (s *MinMaxScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
