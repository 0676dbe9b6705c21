package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cash-reader/internal/common"
)

// Denomination is a parsed "<value>_<suffix>" label.
type Denomination struct {
	Label  string
	Value  int
	Suffix int
}

// DenominationCount is one line of the explorer's per-denomination report.
type DenominationCount struct {
	Denomination string `csv:"Denomination"`
	Count        int    `csv:"Count"`
	Value        int    `csv:"Value"`
	Suffix       int    `csv:"Suffix"`
}

// ParseDenomination splits a label into its integer value and suffix.
// The label must contain exactly one separator.
func ParseDenomination(label string) (Denomination, error) {
	parts := strings.Split(label, common.DenominationSep)
	if len(parts) != 2 {
		return Denomination{}, fmt.Errorf("denomination %q: expected <value>%s<suffix>", label, common.DenominationSep)
	}
	value, err := strconv.Atoi(parts[0])
	if err != nil {
		return Denomination{}, fmt.Errorf("denomination %q value: %w", label, err)
	}
	suffix, err := strconv.Atoi(parts[1])
	if err != nil {
		return Denomination{}, fmt.Errorf("denomination %q suffix: %w", label, err)
	}
	return Denomination{Label: label, Value: value, Suffix: suffix}, nil
}

// Less orders denominations descending by (value, suffix).
func (d Denomination) Less(o Denomination) bool {
	if d.Value != o.Value {
		return d.Value > o.Value
	}
	if d.Suffix != o.Suffix {
		return d.Suffix > o.Suffix
	}
	return d.Label < o.Label
}

// CountByDenomination counts rows per label of the named column and sorts
// the result descending by numeric (value, suffix). Any label that does not
// parse fails the whole count.
func CountByDenomination(t *Table, column string) ([]DenominationCount, error) {
	labels, err := t.Column(column)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}

	parsed := make([]Denomination, 0, len(counts))
	for label := range counts {
		d, err := ParseDenomination(label)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, d)
	}

	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].Less(parsed[j])
	})

	out := make([]DenominationCount, len(parsed))
	for i, d := range parsed {
		out[i] = DenominationCount{
			Denomination: d.Label,
			Count:        counts[d.Label],
			Value:        d.Value,
			Suffix:       d.Suffix,
		}
	}
	return out, nil
}
