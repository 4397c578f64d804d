// Package encoder implements a fitted one-hot encoding for categorical
// features. The mapping is learned once on the training set and reused
// verbatim for every prediction, which is what keeps training and
// prediction matrices column-aligned.
package encoder

import (
	"errors"
	"fmt"
	"sort"
)

// ErrWidthMismatch is returned when a row's categorical count does not
// match the fitted column count.
var ErrWidthMismatch = errors.New("encoder: categorical width mismatch")

// OneHot maps each observed category value to a dedicated indicator
// column. Values unseen at fit time encode to an all-zero block instead
// of failing. The encoder is immutable after Fit; exported fields exist
// only for gob serialization.
type OneHot struct {
	Columns    []string   // categorical column names, in input order
	Categories [][]string // observed values per column, sorted

	index []map[string]int
}

// Fit learns the category mapping from the full training set. rows holds
// one categorical vector per training row, aligned with columns.
func Fit(columns []string, rows [][]string) (*OneHot, error) {
	if len(columns) == 0 {
		return nil, errors.New("encoder: no categorical columns")
	}

	seen := make([]map[string]struct{}, len(columns))
	for i := range seen {
		seen[i] = make(map[string]struct{})
	}
	for _, row := range rows {
		if len(row) != len(columns) {
			return nil, ErrWidthMismatch
		}
		for i, v := range row {
			seen[i][v] = struct{}{}
		}
	}

	categories := make([][]string, len(columns))
	for i, vals := range seen {
		cats := make([]string, 0, len(vals))
		for v := range vals {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		categories[i] = cats
	}

	e := &OneHot{
		Columns:    append([]string(nil), columns...),
		Categories: categories,
	}
	e.buildIndex()
	return e, nil
}

// Width is the total number of indicator columns.
func (e *OneHot) Width() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats)
	}
	return n
}

// FeatureNames returns one name per indicator column, e.g. "weekday_5".
func (e *OneHot) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	for i, cats := range e.Categories {
		for _, v := range cats {
			names = append(names, fmt.Sprintf("%s_%s", e.Columns[i], v))
		}
	}
	return names
}

// Transform encodes one categorical vector into its indicator block.
// Unknown values contribute all zeros.
func (e *OneHot) Transform(row []string) ([]float64, error) {
	if len(row) != len(e.Columns) {
		return nil, ErrWidthMismatch
	}
	if e.index == nil {
		e.buildIndex()
	}

	block := make([]float64, e.Width())
	offset := 0
	for i, v := range row {
		if j, ok := e.index[i][v]; ok {
			block[offset+j] = 1
		}
		offset += len(e.Categories[i])
	}
	return block, nil
}

// buildIndex derives the lookup maps from Categories. Called after Fit
// and lazily after gob decoding, which only restores exported fields.
func (e *OneHot) buildIndex() {
	e.index = make([]map[string]int, len(e.Categories))
	for i, cats := range e.Categories {
		e.index[i] = make(map[string]int, len(cats))
		for j, v := range cats {
			e.index[i][v] = j
		}
	}
}
