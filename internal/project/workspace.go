package project

import (
	"fmt"
	"sort"

	"github.com/ternarybob/analysisd/internal/apperr"
)

// Workspace is the project's rectangular, row-order-preserving data
// table. Columns are addressed by name; companion columns
// (" (Preprocessed)", " (Topic)") live in the same table as ordinary
// ones.
type Workspace struct {
	Columns []string
	Rows    [][]any
}

// NewWorkspace returns an empty workspace with the given column order.
func NewWorkspace(columns []string) *Workspace {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Workspace{Columns: cols}
}

// RowCount returns the number of rows.
func (w *Workspace) RowCount() int {
	return len(w.Rows)
}

func (w *Workspace) columnIndex(name string) int {
	for i, c := range w.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every value in the named column, in row order.
func (w *Workspace) Column(name string) ([]any, error) {
	idx := w.columnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q: %w", name, apperr.ErrMissingColumn)
	}
	out := make([]any, len(w.Rows))
	for i, row := range w.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// SetColumn adds a new column or replaces an existing one in place.
// values must have RowCount entries once the workspace is non-empty.
func (w *Workspace) SetColumn(name string, values []any) error {
	if len(w.Rows) > 0 && len(values) != len(w.Rows) {
		return fmt.Errorf("column %q has %d values, want %d: %w", name, len(values), len(w.Rows), apperr.ErrUnsyncedSchema)
	}

	idx := w.columnIndex(name)
	if idx >= 0 {
		for i := range w.Rows {
			w.Rows[i][idx] = values[i]
		}
		return nil
	}

	w.Columns = append(w.Columns, name)
	if len(w.Rows) == 0 {
		for range values {
			w.Rows = append(w.Rows, make([]any, len(w.Columns)))
		}
	}
	for i := range w.Rows {
		w.Rows[i] = append(w.Rows[i], nil)
	}
	for i, v := range values {
		w.Rows[i][len(w.Columns)-1] = v
	}
	return nil
}

// Clone returns a deep copy of the workspace.
func (w *Workspace) Clone() *Workspace {
	clone := NewWorkspace(w.Columns)
	clone.Rows = make([][]any, len(w.Rows))
	for i, row := range w.Rows {
		r := make([]any, len(row))
		copy(r, row)
		clone.Rows[i] = r
	}
	return clone
}

// RowPredicate selects rows for Filter.
type RowPredicate func(row []any, columnIndex map[string]int) bool

// Filter returns a new workspace containing only rows matching pred.
func (w *Workspace) Filter(pred RowPredicate) *Workspace {
	idx := make(map[string]int, len(w.Columns))
	for i, c := range w.Columns {
		idx[c] = i
	}

	out := NewWorkspace(w.Columns)
	for _, row := range w.Rows {
		if pred(row, idx) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// SortBy returns a new workspace with rows ordered by the named
// column. less compares two column values already extracted for that
// column.
func (w *Workspace) SortBy(column string, ascending bool, less func(a, b any) bool) (*Workspace, error) {
	idx := w.columnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("sort column %q: %w", column, apperr.ErrMissingColumn)
	}

	out := w.Clone()
	sort.SliceStable(out.Rows, func(i, j int) bool {
		if ascending {
			return less(out.Rows[i][idx], out.Rows[j][idx])
		}
		return less(out.Rows[j][idx], out.Rows[i][idx])
	})
	return out, nil
}
