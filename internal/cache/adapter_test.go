package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/analysisd/internal/config"
)

func TestLoadServesFromMemoryWithoutTouchingDisk(t *testing.T) {
	diskReads := 0
	adapter := NewAdapter(
		config.CachePolicy{MaxSize: 5, TTLSeconds: 300},
		func(key string) (string, error) {
			diskReads++
			return "from-disk", nil
		},
		func(key string, value string) error { return nil },
	)

	require.NoError(t, adapter.Save("k", "from-save"))

	v, err := adapter.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "from-save", v)
	assert.Equal(t, 0, diskReads)
}

func TestLoadReadsThroughOnMiss(t *testing.T) {
	diskReads := 0
	adapter := NewAdapter(
		config.CachePolicy{MaxSize: 5, TTLSeconds: 300},
		func(key string) (string, error) {
			diskReads++
			return "from-disk", nil
		},
		func(key string, value string) error { return nil },
	)

	v, err := adapter.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "from-disk", v)
	assert.Equal(t, 1, diskReads)

	// Second load is served from the now-populated cache.
	v2, err := adapter.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "from-disk", v2)
	assert.Equal(t, 1, diskReads)
}

func TestInvalidateThenLoadReadsFromDiskAgain(t *testing.T) {
	diskReads := 0
	adapter := NewAdapter(
		config.CachePolicy{MaxSize: 5, TTLSeconds: 300},
		func(key string) (string, error) {
			diskReads++
			return "fresh", nil
		},
		func(key string, value string) error { return nil },
	)

	require.NoError(t, adapter.Save("k", "stale"))
	adapter.Invalidate("k", false)

	v, err := adapter.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, diskReads)
}

func TestInvalidatePrefixClearsAllMatchingKeys(t *testing.T) {
	adapter := NewAdapter(
		config.CachePolicy{MaxSize: 5, TTLSeconds: 300},
		func(key string) (string, error) { return "v", nil },
		func(key string, value string) error { return nil },
	)

	require.NoError(t, adapter.Save("proj1/a", "a"))
	require.NoError(t, adapter.Save("proj1/b", "b"))
	require.NoError(t, adapter.Save("proj2/a", "a"))

	adapter.Invalidate("proj1/", true)

	_, ok := adapter.Peek("proj1/a")
	assert.False(t, ok)
	_, ok = adapter.Peek("proj1/b")
	assert.False(t, ok)
	_, ok = adapter.Peek("proj2/a")
	assert.True(t, ok)
}

func TestSaveLeavesCacheUntouchedWhenDiskWriteFails(t *testing.T) {
	boom := errors.New("disk full")
	adapter := NewAdapter(
		config.CachePolicy{MaxSize: 5, TTLSeconds: 300},
		func(key string) (string, error) { return "disk-value", nil },
		func(key string, value string) error { return boom },
	)

	err := adapter.Save("k", "new-value")
	require.ErrorIs(t, err, boom)

	_, ok := adapter.Peek("k")
	assert.False(t, ok)
}

func TestPersistentAfterSaveSurvivesTTLWindow(t *testing.T) {
	adapter := NewAdapter(
		config.CachePolicy{MaxSize: 1, TTLSeconds: 0, PersistentAfterSave: true},
		func(key string) (string, error) { return "disk", nil },
		func(key string, value string) error { return nil },
	)

	require.NoError(t, adapter.Save("k", "seeded"))
	time.Sleep(5 * time.Millisecond)

	v, ok := adapter.Peek("k")
	assert.True(t, ok)
	assert.Equal(t, "seeded", v)
}
