// Package dataset turns tabular flow records into labelled feature matrices.
package dataset

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
)

// DefaultLabel is the class column of the ISCX FlowMeter feature export.
const DefaultLabel = "calss"

// HasColumn reports whether df has a column called name.
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// SplitLabels separates df into its feature columns and the label vector.
// Row order is preserved in both outputs. When the label column is absent
// df is returned unmodified with nil labels.
func SplitLabels(df dataframe.DataFrame, label string) (dataframe.DataFrame, []string) {
	if !HasColumn(df, label) {
		return df, nil
	}
	labels := df.Col(label).Records()
	return df.Drop(label), labels
}

// Matrix is a row-major numeric view of a feature frame.
type Matrix struct {
	Names []string
	Rows  [][]float64
}

// ToMatrix converts every column of df to float64. Cells that do not parse
// as numbers become NaN.
func ToMatrix(df dataframe.DataFrame) Matrix {
	names := df.Names()
	rows := make([][]float64, df.Nrow())
	for i := range rows {
		rows[i] = make([]float64, len(names))
	}
	for j, name := range names {
		for i, v := range df.Col(name).Float() {
			rows[i][j] = v
		}
	}
	return Matrix{Names: names, Rows: rows}
}

// Len returns the number of rows.
func (m Matrix) Len() int {
	return len(m.Rows)
}

// Project returns a matrix holding only the named columns, in the given order.
func (m Matrix) Project(names []string) (Matrix, error) {
	pos := make(map[string]int, len(m.Names))
	for j, n := range m.Names {
		pos[n] = j
	}

	cols := make([]int, len(names))
	for k, n := range names {
		j, ok := pos[n]
		if !ok {
			return Matrix{}, fmt.Errorf("unknown column %q", n)
		}
		cols[k] = j
	}

	rows := make([][]float64, len(m.Rows))
	for i, row := range m.Rows {
		out := make([]float64, len(cols))
		for k, j := range cols {
			out[k] = row[j]
		}
		rows[i] = out
	}
	return Matrix{Names: append([]string(nil), names...), Rows: rows}, nil
}

// HasNaN reports whether any cell is NaN.
func (m Matrix) HasNaN() bool {
	for _, row := range m.Rows {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Encoder maps class names to dense integer ids in sorted name order.
type Encoder struct {
	classes []string
	ids     map[string]int
}

// NewEncoder builds an encoder over every distinct value in the given label sets.
func NewEncoder(sets ...[]string) *Encoder {
	seen := map[string]struct{}{}
	for _, set := range sets {
		for _, v := range set {
			seen[v] = struct{}{}
		}
	}

	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	ids := make(map[string]int, len(classes))
	for i, c := range classes {
		ids[c] = i
	}
	return &Encoder{classes: classes, ids: ids}
}

// Classes returns the class names indexed by id.
func (e *Encoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Encode maps labels to ids. Unknown labels are an error.
func (e *Encoder) Encode(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := e.ids[l]
		if !ok {
			return nil, fmt.Errorf("unknown class %q", l)
		}
		out[i] = id
	}
	return out, nil
}
