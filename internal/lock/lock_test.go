package lock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/analysisd/internal/apperr"
)

func TestAcquireThenReleaseAllowsReacquisition(t *testing.T) {
	mgr := New()
	artifact := filepath.Join(t.TempDir(), "workspace.parquet")

	h, err := mgr.Acquire(context.Background(), "proj1", artifact, 0)
	require.NoError(t, err)
	require.NoError(t, h.Release())

	h2, err := mgr.Acquire(context.Background(), "proj1", artifact, 0)
	require.NoError(t, err)
	require.NoError(t, h2.Release())
}

func TestAcquireTimesOutWhileProjectLockHeld(t *testing.T) {
	mgr := New()
	artifact := filepath.Join(t.TempDir(), "workspace.parquet")

	held, err := mgr.Acquire(context.Background(), "proj1", artifact, 0)
	require.NoError(t, err)
	defer held.Release()

	otherArtifact := filepath.Join(t.TempDir(), "other.parquet")
	_, err = mgr.Acquire(context.Background(), "proj1", otherArtifact, 50*time.Millisecond)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnallowedColumnOperation))
}

func TestDistinctProjectsDoNotContend(t *testing.T) {
	mgr := New()

	h1, err := mgr.Acquire(context.Background(), "projA", filepath.Join(t.TempDir(), "a.parquet"), 50*time.Millisecond)
	require.NoError(t, err)
	defer h1.Release()

	h2, err := mgr.Acquire(context.Background(), "projB", filepath.Join(t.TempDir(), "b.parquet"), 50*time.Millisecond)
	require.NoError(t, err)
	defer h2.Release()
}
