package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/analysisd/internal/config"
	"github.com/ternarybob/analysisd/internal/lock"
	"github.com/ternarybob/analysisd/internal/paths"
	"github.com/ternarybob/analysisd/internal/project"
)

func newTestWatcher(t *testing.T) (*Watcher, *project.Manager, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = root
	caches := project.NewManager(cfg, lock.New())

	w, err := New(cfg.ProjectsDir(), caches, 30*time.Millisecond)
	require.NoError(t, err)
	return w, caches, cfg.ProjectsDir()
}

func TestInvalidateRoutesConfigJSONToConfigCache(t *testing.T) {
	w, caches, dataRoot := newTestWatcher(t)
	pc := caches.Get("proj1")
	require.NoError(t, pc.Config.Save("", project.Project{ProjectID: "proj1"}))

	w.invalidate(filepath.Join(dataRoot, "proj1", "config.json"))

	_, ok := pc.Config.Peek("")
	assert.False(t, ok)
}

func TestInvalidateRoutesConfigJSONAlsoCascadesToWorkspaceCache(t *testing.T) {
	w, caches, dataRoot := newTestWatcher(t)
	pc := caches.Get("proj1")
	require.NoError(t, pc.Config.Save("", project.Project{ProjectID: "proj1"}))
	require.NoError(t, pc.Workspace.Save("", project.NewWorkspace([]string{"review"})))

	w.invalidate(filepath.Join(dataRoot, "proj1", "config.json"))

	_, configOK := pc.Config.Peek("")
	_, workspaceOK := pc.Workspace.Peek("")
	assert.False(t, configOK, "config.json edit must invalidate the config cache")
	assert.False(t, workspaceOK, "config.json edit must cascade into the workspace cache (§12)")
}

func TestInvalidateRoutesWorkspaceParquetToWorkspaceCache(t *testing.T) {
	w, caches, dataRoot := newTestWatcher(t)
	pc := caches.Get("proj1")
	require.NoError(t, pc.Workspace.Save("", project.NewWorkspace([]string{"review"})))

	w.invalidate(filepath.Join(dataRoot, "proj1", "workspace.parquet"))

	_, ok := pc.Workspace.Peek("")
	assert.False(t, ok)
}

func TestInvalidateRoutesTopicResultByColumn(t *testing.T) {
	w, caches, dataRoot := newTestWatcher(t)
	pc := caches.Get("proj1")
	column := "review"
	require.NoError(t, pc.Topics.Save(column, project.TopicResult{Column: column}))

	w.invalidate(filepath.Join(dataRoot, "proj1", "topics", paths.EncodeColumn(column)+".json"))

	_, ok := pc.Topics.Peek(column)
	assert.False(t, ok)
}

func TestInvalidateIgnoresUnknownPaths(t *testing.T) {
	w, caches, dataRoot := newTestWatcher(t)
	pc := caches.Get("proj1")
	require.NoError(t, pc.Config.Save("", project.Project{ProjectID: "proj1"}))

	w.invalidate(filepath.Join(dataRoot, "proj1", "userdata", "notes.json"))

	_, ok := pc.Config.Peek("")
	assert.True(t, ok, "unrelated path must not invalidate the config cache")
}

func TestStartThenStopIsIdempotentAndLeavesNoGoroutineHang(t *testing.T) {
	w, _, _ := newTestWatcher(t)

	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())

	w.Stop()
	assert.False(t, w.IsRunning())

	w.Stop()
	assert.False(t, w.IsRunning())
}

func TestWriteToConfigJSONEventuallyInvalidatesCache(t *testing.T) {
	w, caches, dataRoot := newTestWatcher(t)
	pc := caches.Get("proj1")
	require.NoError(t, pc.Config.Save("", project.Project{ProjectID: "proj1"}))

	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(dataRoot, "proj1", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{"project_id":"proj1"}`), 0644))

	assert.Eventually(t, func() bool {
		_, ok := pc.Config.Peek("")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
