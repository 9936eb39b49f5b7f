package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/analysisd/internal/apperr"
)

func TestEncodeColumnNeverCollidesAcrossDistinctNames(t *testing.T) {
	a := EncodeColumn("review text")
	b := EncodeColumn("review/text")

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "/")
	assert.NotContains(t, b, "/")
}

func TestPathSlotsAreRootedUnderProjectDataDir(t *testing.T) {
	m := New("/data", "proj123")

	assert.Equal(t, filepath.Join("/data", "data", "proj123", "config.json"), m.Config())
	assert.Equal(t, filepath.Join("/data", "data", "proj123", "workspace.parquet"), m.Workspace())
	assert.Contains(t, m.TopicResult("reviews"), filepath.Join("topics", EncodeColumn("reviews")+".json"))
}

func TestAssertExistsReturnsFileNotExists(t *testing.T) {
	m := New(t.TempDir(), "proj")

	err := m.AssertExists(m.Config())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrFileNotExists))
}

func TestAllocateCreatesParentDirectory(t *testing.T) {
	m := New(t.TempDir(), "proj")
	target := m.DocumentVectors("reviews")

	path, err := m.Allocate(target)

	require.NoError(t, err)
	assert.Equal(t, target, path)
	assert.DirExists(t, filepath.Dir(target))
}

func TestAtomicWriteLeavesNoTemporaryFileOnSuccess(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "workspace.parquet")

	require.NoError(t, AtomicWrite(target, []byte("payload")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "workspace.parquet", entries[0].Name())
}

func TestCleanupRemovesEmptyProjectDirectory(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "data", "proj")
	m := New(root, "proj")
	require.NoError(t, os.MkdirAll(projectDir, 0755))

	file := filepath.Join(projectDir, "config.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0644))

	unmanaged, err := m.Cleanup(nil, []string{file}, false)

	require.NoError(t, err)
	assert.Empty(t, unmanaged)
	assert.NoDirExists(t, projectDir)
}

func TestCleanupReportsUnmanagedFilesAndKeepsDirectory(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "data", "proj")
	m := New(root, "proj")
	require.NoError(t, os.MkdirAll(projectDir, 0755))

	managed := filepath.Join(projectDir, "config.json")
	stray := filepath.Join(projectDir, "notes.txt")
	require.NoError(t, os.WriteFile(managed, []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(stray, []byte("hi"), 0644))

	unmanaged, err := m.Cleanup(nil, []string{managed}, false)

	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, unmanaged)
	assert.DirExists(t, projectDir)
}
