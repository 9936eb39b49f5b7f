package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetColumnAddsNewColumnMatchingRowCount(t *testing.T) {
	w := NewWorkspace([]string{"review"})
	w.Rows = [][]any{{"good"}, {"bad"}}

	require.NoError(t, w.SetColumn("review (Preprocessed)", []any{"good", "bad"}))

	col, err := w.Column("review (Preprocessed)")
	require.NoError(t, err)
	assert.Equal(t, []any{"good", "bad"}, col)
}

func TestSetColumnRejectsMismatchedLength(t *testing.T) {
	w := NewWorkspace([]string{"review"})
	w.Rows = [][]any{{"good"}, {"bad"}}

	err := w.SetColumn("rating", []any{1})

	assert.Error(t, err)
}

func TestFilterPreservesRowOrder(t *testing.T) {
	w := NewWorkspace([]string{"rating"})
	w.Rows = [][]any{{1}, {5}, {3}, {5}}

	filtered := w.Filter(func(row []any, idx map[string]int) bool {
		return row[idx["rating"]].(int) == 5
	})

	assert.Equal(t, 2, filtered.RowCount())
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	w := NewWorkspace([]string{"rating"})
	w.Rows = [][]any{{1}, {2}}

	clone := w.Clone()
	clone.Rows[0][0] = 99

	assert.Equal(t, 1, w.Rows[0][0])
}
