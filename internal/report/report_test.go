package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cash-reader/internal/dataset"
	"cash-reader/internal/ml"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func sampleHistory() ml.History {
	return ml.History{
		Loss:        []float64{1.2, 0.8, 0.5},
		Accuracy:    []float64{0.4, 0.7, 0.85},
		ValLoss:     []float64{1.1, 0.9, 0.6},
		ValAccuracy: []float64{0.45, 0.65, 0.8},
	}
}

func TestPlotHistory_WritesBothCurves(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")

	paths, err := PlotHistory(sampleHistory(), dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, AccuracyPlot),
		filepath.Join(dir, LossPlot),
	}, paths)

	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", p)
	}
}

func TestPlotHistory_WithoutValidation(t *testing.T) {
	h := sampleHistory()
	h.ValLoss, h.ValAccuracy = nil, nil

	paths, err := PlotHistory(h, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestPlotHistory_Errors(t *testing.T) {
	_, err := PlotHistory(ml.History{}, t.TempDir())
	assert.Error(t, err, "no epochs")

	h := sampleHistory()
	h.Loss[1] = math.NaN()
	_, err = PlotHistory(h, t.TempDir())
	assert.Error(t, err, "NaN points cannot be drawn")
}

func sampleTable() *dataset.Table {
	return &dataset.Table{
		Header: []string{"f1", "Denomination", "Currency"},
		Rows: [][]string{
			{"0.1", "5_1", "USD"},
			{"0.2", "10_1", "USD"},
			{"0.3", "1_1", "USD"},
		},
	}
}

func TestPrintColumnsAndHead(t *testing.T) {
	var buf bytes.Buffer
	PrintColumns(&buf, sampleTable())
	out := buf.String()
	assert.Contains(t, out, "Denomination")
	assert.Contains(t, out, "Currency")

	buf.Reset()
	PrintHead(&buf, sampleTable(), 2)
	out = buf.String()
	assert.Contains(t, out, "10_1")
	assert.NotContains(t, out, "0.3", "third row is past the head")
}

func TestPrintCounts(t *testing.T) {
	var buf bytes.Buffer
	PrintCounts(&buf, []dataset.DenominationCount{
		{Denomination: "100_1", Count: 4, Value: 100, Suffix: 1},
		{Denomination: "5_1", Count: 7, Value: 5, Suffix: 1},
	})
	out := buf.String()

	assert.Less(t, strings.Index(out, "100_1"), strings.Index(out, "5_1"), "order is kept")
	assert.Contains(t, out, "11")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, []dataset.ColumnSummary{
		{Name: "f1", Count: 1, Mean: 0.5, Std: math.NaN(), Min: 0.5, Max: 0.5},
	})
	out := buf.String()
	assert.Contains(t, out, "0.500000")
	assert.Contains(t, out, "NaN")
}

func TestPrintModelSummary(t *testing.T) {
	net, err := ml.NewSequential(4, 1,
		ml.Dense(8, ml.ActivationReLU),
		ml.Dropout(0.2),
		ml.Dense(3, ml.ActivationSoftmax),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintModelSummary(&buf, net.Summary())
	out := buf.String()
	assert.Contains(t, out, "dense_1")
	assert.Contains(t, out, "dropout_1")
	assert.Contains(t, out, "(None, 3)")
	assert.Contains(t, out, "67", "4*8+8 + 8*3+3")
}

func TestWriteCounts(t *testing.T) {
	counts := []dataset.DenominationCount{
		{Denomination: "100_2", Count: 3, Value: 100, Suffix: 2},
		{Denomination: "100_1", Count: 9, Value: 100, Suffix: 1},
		{Denomination: "1_1", Count: 12, Value: 1, Suffix: 1},
	}
	path := filepath.Join(t.TempDir(), "out", "counts.csv")
	require.NoError(t, WriteCounts(path, counts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Denomination,Count,Value,Suffix\n"))

	var back []dataset.DenominationCount
	require.NoError(t, gocsv.UnmarshalBytes(data, &back))
	assert.Equal(t, counts, back)
}
