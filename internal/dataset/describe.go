package dataset

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// ColumnSummary holds descriptive statistics for one numeric column.
type ColumnSummary struct {
	Name  string
	Count int
	Mean  float64
	Std   float64 // sample standard deviation, NaN for fewer than two rows
	Min   float64
	Max   float64
}

// Describe summarises the named numeric columns.
func Describe(t *Table, columns []string) ([]ColumnSummary, error) {
	matrix, err := t.Floats(columns)
	if err != nil {
		return nil, err
	}

	out := make([]ColumnSummary, len(columns))
	for c, name := range columns {
		data := make(stats.Float64Data, len(matrix))
		for r := range matrix {
			data[r] = matrix[r][c]
		}

		s := ColumnSummary{Name: name, Count: len(data), Std: math.NaN()}
		if s.Mean, err = stats.Mean(data); err != nil {
			return nil, fmt.Errorf("column %q mean: %w", name, err)
		}
		if s.Min, err = stats.Min(data); err != nil {
			return nil, fmt.Errorf("column %q min: %w", name, err)
		}
		if s.Max, err = stats.Max(data); err != nil {
			return nil, fmt.Errorf("column %q max: %w", name, err)
		}
		if len(data) > 1 {
			if s.Std, err = stats.StandardDeviationSample(data); err != nil {
				return nil, fmt.Errorf("column %q std: %w", name, err)
			}
		}
		out[c] = s
	}
	return out, nil
}
