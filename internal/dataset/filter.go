package dataset

import (
	"fmt"

	"cash-reader/internal/common"
)

// FilterByCurrency keeps the rows whose currency field equals code exactly.
func FilterByCurrency(t *Table, column, code string) (*Table, error) {
	idx := t.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("currency column %q not found", column)
	}
	return t.Filter(func(row []string) bool {
		return row[idx] == code
	}), nil
}

// SelectCurrency is the explorer's subset: rows of one currency with the
// index artifact column removed.
func SelectCurrency(t *Table, code string) (*Table, error) {
	subset, err := FilterByCurrency(t, common.CurrencyColumn, code)
	if err != nil {
		return nil, err
	}
	subset.DropIndexArtifact()
	return subset, nil
}
