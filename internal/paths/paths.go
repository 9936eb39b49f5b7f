// Package paths implements the Path Manager (C1): deterministic,
// pure derivation of absolute artifact paths under a project's data
// directory, plus the atomic-write and cleanup helpers every adapter
// routes its disk mutations through.
package paths

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/analysisd/internal/apperr"
)

// Manager derives paths under data/<project_id>/ for one project.
type Manager struct {
	root      string // config.ProjectDataDir(projectID)
	projectID string
}

// New returns a path Manager rooted at dataDir/data/<projectID>.
func New(dataDir, projectID string) *Manager {
	return &Manager{
		root:      filepath.Join(dataDir, "data", projectID),
		projectID: projectID,
	}
}

// ProjectID returns the id this manager is scoped to.
func (m *Manager) ProjectID() string {
	return m.projectID
}

// Root returns the absolute project data directory.
func (m *Manager) Root() string {
	return m.root
}

// EncodeColumn produces a filesystem-safe, collision-free encoding of
// a column name for use as a path segment: base64 (URL-safe, no
// padding) of the UTF-8 bytes, which never collides with another
// column's encoding or with path syntax. The encoding is reversible;
// internal/watcher decodes it to map an artifact path back to the
// column name its cache entries are keyed by.
func EncodeColumn(column string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(column))
}

// Config returns the path to the project's config.json.
func (m *Manager) Config() string {
	return filepath.Join(m.root, "config.json")
}

// Workspace returns the path to the project's workspace.parquet.
func (m *Manager) Workspace() string {
	return filepath.Join(m.root, "workspace.parquet")
}

// TopicResult returns the path to a column's topic-result JSON.
func (m *Manager) TopicResult(column string) string {
	return filepath.Join(m.root, "topics", EncodeColumn(column)+".json")
}

// ModelDir returns the opaque fitted-model directory for a column.
func (m *Manager) ModelDir(column string) string {
	return filepath.Join(m.root, "bertopic", EncodeColumn(column))
}

// DocumentVectors returns the storage directory for a column's
// document vectors (a chromem-go collection directory, not a single
// file — internal/vectorstore owns what lives underneath it).
func (m *Manager) DocumentVectors(column string) string {
	return filepath.Join(m.root, "embedding", EncodeColumn(column), "document_vectors")
}

// UMAPEmbeddings returns the storage directory for a column's UMAP
// embeddings.
func (m *Manager) UMAPEmbeddings(column string) string {
	return filepath.Join(m.root, "embedding", EncodeColumn(column), "umap_embeddings")
}

// VisualizationEmbeddings returns the storage directory for a
// column's 2D visualization embeddings.
func (m *Manager) VisualizationEmbeddings(column string) string {
	return filepath.Join(m.root, "embedding", EncodeColumn(column), "visualization_embeddings")
}

// Evaluation returns the path to a column's topic-evaluation JSON.
func (m *Manager) Evaluation(column string) string {
	return filepath.Join(m.root, "evaluation", "topic_evaluation_"+EncodeColumn(column)+".json")
}

// Experiment returns the path to a column's topic-experiment JSON.
func (m *Manager) Experiment(column string) string {
	return filepath.Join(m.root, "evaluation", "topic_experiment_"+EncodeColumn(column)+".json")
}

// UserData returns the path to a named userdata JSON document.
func (m *Manager) UserData(name string) string {
	return filepath.Join(m.root, "userdata", name+".json")
}

// LockFile returns the inter-process lock-file path adjacent to an
// artifact path.
func LockFile(artifact string) string {
	return artifact + ".lock"
}

// Full resolves a path slot to its absolute form. Slots returned by
// this package's other methods are already absolute; Full exists so
// callers holding only a relative path (e.g. from a watcher event)
// can normalize it against a root.
func (m *Manager) Full(relative string) string {
	if filepath.IsAbs(relative) {
		return relative
	}
	return filepath.Join(m.root, relative)
}

// AssertExists returns apperr.ErrFileNotExists-wrapped error if path
// is missing. Kept as a thin existence check; callers that need
// validation of contents use their adapter's own decode step.
func (m *Manager) AssertExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("assert exists %s: %w", path, apperr.ErrFileNotExists)
	}
	return nil
}

// Allocate creates the parent directory of path and returns path
// unchanged, for callers about to write to it.
func (m *Manager) Allocate(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("allocate %s: %w", path, err)
	}
	return path, nil
}

// Cleanup removes the listed files and directories. Unless soft is
// true, the project directory is then removed too if it is empty;
// if anything is left in it, the directory is kept and the name of
// every remaining entry is returned so the caller can log them.
func (m *Manager) Cleanup(dirs, files []string, soft bool) (unmanaged []string, err error) {
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("cleanup file %s: %w", f, err)
		}
	}
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			return nil, fmt.Errorf("cleanup dir %s: %w", d, err)
		}
	}

	if soft {
		return nil, nil
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read project dir %s: %w", m.root, err)
	}
	if len(entries) > 0 {
		for _, e := range entries {
			unmanaged = append(unmanaged, e.Name())
		}
		return unmanaged, nil
	}

	if err := os.Remove(m.root); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove empty project dir %s: %w", m.root, err)
	}
	return nil, nil
}

// AtomicWrite writes data to a temporary sibling of path, then renames
// it over path. On any error the temporary file is removed. Every
// mutation to a persistent artifact goes through this helper so a
// reader never observes a partially-written file.
func AtomicWrite(path string, data []byte) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}

	tmp, createErr := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if createErr != nil {
		return fmt.Errorf("atomic write %s: %w", path, createErr)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	return nil
}
