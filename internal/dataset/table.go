// Package dataset loads and reshapes the banknote feature CSVs.
// A Table keeps the raw header and string cells exactly as read so that
// filtered subsets can be written back without reformatting numbers; typed
// views (numeric matrices, label columns) are derived on demand.
//
// The package also implements the denomination bookkeeping used by the
// explorer: parsing "<value>_<suffix>" labels, counting rows per label and
// ordering the counts numerically.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cash-reader/internal/common"

	"github.com/rs/zerolog/log"
)

// Table is an in-memory CSV file: one header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV reads a CSV file with a header row.
// Every data row must have as many fields as the header.
func ReadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV rows from %s: %w", path, err)
	}

	log.Debug().
		Str("file", path).
		Int("columns", len(header)).
		Int("rows", len(rows)).
		Msg("CSV loaded")

	return &Table{Header: header, Rows: rows}, nil
}

// WriteCSV writes the table, creating the parent directory if needed.
func (t *Table) WriteCSV(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return file.Close()
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, col := range t.Header {
		if col == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Floats parses the named columns into a row-major matrix.
func (t *Table) Floats(columns []string) ([][]float64, error) {
	indices := make([]int, len(columns))
	for i, name := range columns {
		if indices[i] = t.Index(name); indices[i] < 0 {
			return nil, fmt.Errorf("column %q not found", name)
		}
	}

	out := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		vals := make([]float64, len(indices))
		for c, idx := range indices {
			v, err := parseFloat(row[idx])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, columns[c], err)
			}
			vals[c] = v
		}
		out[r] = vals
	}
	return out, nil
}

// Filter returns a new table holding the rows for which keep returns true.
// Rows are shared with the receiver, not copied.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := &Table{Header: append([]string(nil), t.Header...)}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// DropColumn removes the named column in place.
func (t *Table) DropColumn(name string) error {
	idx := t.Index(name)
	if idx < 0 {
		return fmt.Errorf("column %q not found", name)
	}
	t.Header = removeAt(t.Header, idx)
	for i, row := range t.Rows {
		t.Rows[i] = removeAt(row, idx)
	}
	return nil
}

// DropIndexArtifact removes the unnamed row-number column pandas writes in
// front of the data. It reports whether such a column was present.
func (t *Table) DropIndexArtifact() bool {
	for _, name := range t.Header {
		if isIndexArtifact(name) {
			_ = t.DropColumn(name)
			return true
		}
	}
	return false
}

// FeatureColumns lists the numeric feature columns: everything except the
// index artifact, the denomination label and the currency code.
func (t *Table) FeatureColumns() []string {
	var cols []string
	for _, name := range t.Header {
		switch {
		case isIndexArtifact(name):
		case name == common.DenominationColumn, name == common.CurrencyColumn:
		default:
			cols = append(cols, name)
		}
	}
	return cols
}

// Head returns up to n leading rows.
func (t *Table) Head(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// parseFloat accepts decimal and exponent notation only. Go's digit
// separators and hex floats are rejected so "5_1" labels never pass as 51.
func parseFloat(s string) (float64, error) {
	trimmed := strings.TrimLeft(s, "+-")
	if strings.Contains(s, "_") || strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return strconv.ParseFloat(s, 64)
}

func isIndexArtifact(name string) bool {
	return name == "" || name == common.IndexArtifact
}

func removeAt(s []string, idx int) []string {
	out := make([]string, 0, len(s)-1)
	out = append(out, s[:idx]...)
	return append(out, s[idx+1:]...)
}
