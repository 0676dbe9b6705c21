package features

import (
	"fmt"
	"sort"
)

// LabelEncoder maps string labels to dense indices 0..N-1 in sorted order.
// It is fitted once and then reused for every later split.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder rebuilds a fitted encoder from its class list.
func NewLabelEncoder(classes []string) *LabelEncoder {
	e := &LabelEncoder{}
	e.setClasses(append([]string(nil), classes...))
	return e
}

// Fit learns the set of classes.
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("label encoder: no labels to fit")
	}
	seen := make(map[string]struct{})
	var classes []string
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)
	e.setClasses(classes)
	return nil
}

func (e *LabelEncoder) setClasses(classes []string) {
	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
}

// Transform encodes labels; a label not seen during Fit is an error.
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	if e.index == nil {
		return nil, fmt.Errorf("label encoder: not fitted")
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := e.index[l]
		if !ok {
			return nil, fmt.Errorf("label encoder: unseen label %q", l)
		}
		out[i] = idx
	}
	return out, nil
}

// FitTransform fits on labels and encodes them.
func (e *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform decodes class indices back to labels.
func (e *LabelEncoder) InverseTransform(indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(e.classes) {
			return nil, fmt.Errorf("label encoder: class index %d out of range [0,%d)", idx, len(e.classes))
		}
		out[i] = e.classes[idx]
	}
	return out, nil
}

// Classes returns the fitted labels ordered by index.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}
