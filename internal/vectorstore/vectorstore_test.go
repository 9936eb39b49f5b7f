package vectorstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/analysisd/internal/apperr"
)

func TestLoadReturnsFileNotExistsForUnsavedDir(t *testing.T) {
	s := New()
	dir := filepath.Join(t.TempDir(), "document_vectors")

	_, err := s.Load(dir)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrFileNotExists))
}

func TestSaveThenLoadRoundTripsRowsInOrder(t *testing.T) {
	s := New()
	dir := filepath.Join(t.TempDir(), "document_vectors")
	rows := [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}

	require.NoError(t, s.Save(dir, "review", "document", rows))

	loaded, err := s.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, rows, loaded)
}

func TestSaveReplacesPreviousContent(t *testing.T) {
	s := New()
	dir := filepath.Join(t.TempDir(), "document_vectors")

	require.NoError(t, s.Save(dir, "review", "document", [][]float32{{1}, {2}, {3}}))
	require.NoError(t, s.Save(dir, "review", "document", [][]float32{{9}}))

	loaded, err := s.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{9}}, loaded)
}

func TestLoadReusesMemoizedHandleAcrossCalls(t *testing.T) {
	s := New()
	dir := filepath.Join(t.TempDir(), "document_vectors")
	require.NoError(t, s.Save(dir, "review", "document", [][]float32{{1, 1}}))

	first, err := s.Load(dir)
	require.NoError(t, err)
	second, err := s.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
