package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"cash-reader/internal/dataset"
	"cash-reader/internal/ml"

	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

// PrintColumns writes the column names of t, one per row.
func PrintColumns(w io.Writer, t *dataset.Table) {
	table := newTable(w, []string{"#", "column"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, name := range t.Header {
		table.Append([]string{strconv.Itoa(i), name})
	}
	table.Render()
}

// PrintHead writes the first n rows of t with a leading row number.
func PrintHead(w io.Writer, t *dataset.Table, n int) {
	header := append([]string{"#"}, t.Header...)
	table := newTable(w, header)
	for i, row := range t.Head(n) {
		table.Append(append([]string{strconv.Itoa(i)}, row...))
	}
	table.Render()
}

// PrintCounts writes per-denomination counts in the order given.
func PrintCounts(w io.Writer, counts []dataset.DenominationCount) {
	table := newTable(w, []string{"Denomination", "Count"})
	total := 0
	for _, c := range counts {
		table.Append([]string{c.Denomination, strconv.Itoa(c.Count)})
		total += c.Count
	}
	table.SetFooter([]string{"total", strconv.Itoa(total)})
	table.Render()
}

// PrintSummary writes describe-style statistics, one row per column.
func PrintSummary(w io.Writer, summaries []dataset.ColumnSummary) {
	table := newTable(w, []string{"column", "count", "mean", "std", "min", "max"})
	for _, s := range summaries {
		table.Append([]string{
			s.Name,
			strconv.Itoa(s.Count),
			formatFloat(s.Mean),
			formatFloat(s.Std),
			formatFloat(s.Min),
			formatFloat(s.Max),
		})
	}
	table.Render()
}

// PrintModelSummary writes one row per layer and the parameter total.
func PrintModelSummary(w io.Writer, layers []ml.LayerSummary) {
	table := newTable(w, []string{"Layer", "Type", "Output Shape", "Param #"})
	total := 0
	for _, l := range layers {
		table.Append([]string{l.Name, l.Type, l.OutputShape, strconv.Itoa(l.Params)})
		total += l.Params
	}
	table.SetFooter([]string{"", "", "Total params", strconv.Itoa(total)})
	table.Render()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.6f", v)
}
