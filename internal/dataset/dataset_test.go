package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `,f1,f2,Denomination,Currency
0,0.1,1.0,5_1,USD
1,0.2,2.0,10_2,EUR
2,0.3,3.0,10_2,USD
3,0.4,4.0,1_1,USD
4,0.5,5.0,20_1,EUR
5,0.6,6.0,10_1,USD
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadCSV(t *testing.T) {
	table, err := ReadCSV(writeSample(t, sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"", "f1", "f2", "Denomination", "Currency"}, table.Header)
	assert.Equal(t, 6, table.Len())
	assert.Equal(t, []string{"2", "0.3", "3.0", "10_2", "USD"}, table.Rows[2])
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = ReadCSV(writeSample(t, ""))
	assert.Error(t, err, "empty file has no header")

	_, err = ReadCSV(writeSample(t, "a,b\n1,2\n3\n"))
	assert.Error(t, err, "short row")
}

func TestFilterByCurrency_KeepsOnlyMatchingRows(t *testing.T) {
	table, err := ReadCSV(writeSample(t, sampleCSV))
	require.NoError(t, err)

	usd, err := FilterByCurrency(table, "Currency", "USD")
	require.NoError(t, err)

	// a row appears in the output iff its currency equals the constant
	currencies, err := table.Column("Currency")
	require.NoError(t, err)
	expected := 0
	for _, c := range currencies {
		if c == "USD" {
			expected++
		}
	}
	assert.Equal(t, expected, usd.Len())
	for _, row := range usd.Rows {
		assert.Equal(t, "USD", row[4])
	}

	// case-sensitive exact match
	none, err := FilterByCurrency(table, "Currency", "usd")
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())

	_, err = FilterByCurrency(table, "Moneda", "USD")
	assert.Error(t, err)
}

func TestSelectCurrency_EndToEnd(t *testing.T) {
	table, err := ReadCSV(writeSample(t, sampleCSV))
	require.NoError(t, err)

	usd, err := SelectCurrency(table, "USD")
	require.NoError(t, err)

	assert.Equal(t, []string{"f1", "f2", "Denomination", "Currency"}, usd.Header)
	require.Equal(t, 4, usd.Len())
	for _, row := range usd.Rows {
		assert.Len(t, row, 4)
		assert.Equal(t, "USD", row[3])
	}

	// source table is untouched
	assert.Len(t, table.Header, 5)
	assert.Len(t, table.Rows[0], 5)

	out := filepath.Join(t.TempDir(), "nested", "dataset_usd.csv")
	require.NoError(t, usd.WriteCSV(out))

	reread, err := ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, usd.Header, reread.Header)
	assert.Equal(t, usd.Rows, reread.Rows)
}

func TestDropIndexArtifact(t *testing.T) {
	table := &Table{
		Header: []string{"Unnamed: 0", "f1", "Denomination", "Currency"},
		Rows:   [][]string{{"0", "1.5", "5_1", "USD"}},
	}
	assert.True(t, table.DropIndexArtifact())
	assert.Equal(t, []string{"f1", "Denomination", "Currency"}, table.Header)
	assert.Equal(t, []string{"1.5", "5_1", "USD"}, table.Rows[0])
	assert.False(t, table.DropIndexArtifact())

	assert.Error(t, table.DropColumn("missing"))
}

func TestFeatureColumns(t *testing.T) {
	table, err := ReadCSV(writeSample(t, sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, table.FeatureColumns())

	matrix, err := table.Floats(table.FeatureColumns())
	require.NoError(t, err)
	require.Len(t, matrix, 6)
	assert.Equal(t, []float64{0.3, 3.0}, matrix[2])

	_, err = table.Floats([]string{"Denomination"})
	assert.Error(t, err)
	_, err = table.Floats([]string{"f9"})
	assert.Error(t, err)
}

func TestFloats_StrictNumberSyntax(t *testing.T) {
	testCases := []struct {
		cell    string
		want    float64
		wantErr bool
	}{
		{"0.25", 0.25, false},
		{"-1.5e3", -1500, false},
		{"+2", 2, false},
		{"5_1", 0, true},
		{"1_000", 0, true},
		{"0x1p4", 0, true},
		{"-0X10", 0, true},
		{"", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.cell, func(t *testing.T) {
			table := &Table{Header: []string{"f"}, Rows: [][]string{{tc.cell}}}
			got, err := table.Floats([]string{"f"})
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), `row 0 column "f"`)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got[0][0])
		})
	}
}

func TestParseDenomination(t *testing.T) {
	testCases := []struct {
		label   string
		value   int
		suffix  int
		wantErr bool
	}{
		{"5_1", 5, 1, false},
		{"100_2", 100, 2, false},
		{"5", 0, 0, true},
		{"5_1_2", 0, 0, true},
		{"five_1", 0, 0, true},
		{"5_x", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.label, func(t *testing.T) {
			d, err := ParseDenomination(tc.label)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.value, d.Value)
			assert.Equal(t, tc.suffix, d.Suffix)
			assert.Equal(t, tc.label, d.Label)
		})
	}
}

func TestDenominationOrderIsNumeric(t *testing.T) {
	five, err := ParseDenomination("5_1")
	require.NoError(t, err)
	ten, err := ParseDenomination("10_2")
	require.NoError(t, err)

	// lexicographically "10_2" < "5_1"; numerically descending puts 10 first too,
	// so also check a pair where string order disagrees
	assert.True(t, ten.Less(five))
	assert.False(t, five.Less(ten))

	nine, _ := ParseDenomination("9_1")
	hundred, _ := ParseDenomination("100_1")
	assert.True(t, hundred.Less(nine))

	tenOne, _ := ParseDenomination("10_1")
	assert.True(t, ten.Less(tenOne), "suffix breaks ties descending")
}

func TestCountByDenomination(t *testing.T) {
	table, err := ReadCSV(writeSample(t, sampleCSV))
	require.NoError(t, err)

	counts, err := CountByDenomination(table, "Denomination")
	require.NoError(t, err)

	labels := make([]string, len(counts))
	for i, c := range counts {
		labels[i] = c.Denomination
	}
	assert.Equal(t, []string{"20_1", "10_2", "10_1", "5_1", "1_1"}, labels)
	assert.Equal(t, 2, counts[1].Count)
	assert.Equal(t, 10, counts[1].Value)
	assert.Equal(t, 2, counts[1].Suffix)

	total := 0
	for _, c := range counts {
		total += c.Count
	}
	assert.Equal(t, table.Len(), total)
}

func TestCountByDenomination_MalformedLabel(t *testing.T) {
	table := &Table{
		Header: []string{"Denomination"},
		Rows:   [][]string{{"5_1"}, {"fifty"}},
	}
	_, err := CountByDenomination(table, "Denomination")
	assert.Error(t, err)

	_, err = CountByDenomination(table, "Label")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	table, err := ReadCSV(writeSample(t, sampleCSV))
	require.NoError(t, err)

	summary, err := Describe(table, []string{"f1", "f2"})
	require.NoError(t, err)
	require.Len(t, summary, 2)

	f2 := summary[1]
	assert.Equal(t, "f2", f2.Name)
	assert.Equal(t, 6, f2.Count)
	assert.InDelta(t, 3.5, f2.Mean, 1e-9)
	assert.InDelta(t, 1.0, f2.Min, 1e-9)
	assert.InDelta(t, 6.0, f2.Max, 1e-9)
	assert.InDelta(t, math.Sqrt(3.5), f2.Std, 1e-9)

	single := &Table{Header: []string{"x"}, Rows: [][]string{{"2"}}}
	summary, err = Describe(single, []string{"x"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(summary[0].Std))

	empty := &Table{Header: []string{"x"}}
	_, err = Describe(empty, []string{"x"})
	assert.Error(t, err)
}
