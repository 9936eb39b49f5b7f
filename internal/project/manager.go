package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ternarybob/analysisd/internal/apperr"
	"github.com/ternarybob/analysisd/internal/cache"
	"github.com/ternarybob/analysisd/internal/config"
	"github.com/ternarybob/analysisd/internal/lock"
	"github.com/ternarybob/analysisd/internal/paths"
	"github.com/ternarybob/analysisd/internal/vectorstore"
)

// vectors is the process-wide vector store backing every project's
// Vectors adapter; chromem-go databases are memoized per directory,
// so one Store safely serves every project.
var vectors = vectorstore.New()

// ProjectCache is one project's set of typed Cache Adapters (C3),
// each backed by the generic cache.Adapter and routed through the
// Path Manager (C1) and Lock Manager (C2) for disk access.
type ProjectCache struct {
	ProjectID string

	paths       *paths.Manager
	locks       *lock.Manager
	lockTimeout time.Duration

	Config     *cache.Adapter[Project]
	Workspace  *cache.Adapter[*Workspace]
	Topics     *cache.Adapter[TopicResult]
	Models     *cache.Adapter[FittedModel]
	Vectors    *cache.Adapter[Vectors]
	Evaluation *cache.Adapter[EvaluationResult]
	Experiment *cache.Adapter[ExperimentResult]
}

// newProjectCache builds the seven adapters for one project, wiring
// each one's disk loader/saver through the artifact's file lock: JSON
// artifacts are written with paths.AtomicWrite, vector artifacts
// through internal/vectorstore.
func newProjectCache(cfg *config.Config, locks *lock.Manager, projectID string) *ProjectCache {
	pm := paths.New(cfg.Service.DataDir, projectID)
	pc := &ProjectCache{
		ProjectID:   projectID,
		paths:       pm,
		locks:       locks,
		lockTimeout: cfg.Lock.Timeout(),
	}

	pc.Config = cache.NewAdapter(cfg.Cache.Config,
		func(string) (Project, error) { return loadJSON[Project](pc, pm.Config(), 0) },
		func(_ string, v Project) error { return saveJSON(pc, pm.Config(), v, 0) },
	)

	pc.Workspace = cache.NewAdapter(cfg.Cache.Workspace,
		func(string) (*Workspace, error) { return loadJSON[*Workspace](pc, pm.Workspace(), 0) },
		func(_ string, v *Workspace) error { return saveJSON(pc, pm.Workspace(), v, 0) },
	)

	pc.Topics = cache.NewAdapter(cfg.Cache.Topic,
		func(column string) (TopicResult, error) { return loadJSON[TopicResult](pc, pm.TopicResult(column), 0) },
		func(column string, v TopicResult) error { return saveJSON(pc, pm.TopicResult(column), v, 0) },
	)

	pc.Models = cache.NewAdapter(cfg.Cache.Model,
		func(column string) (FittedModel, error) { return loadJSON[FittedModel](pc, pm.ModelDir(column)+".json", 0) },
		func(column string, v FittedModel) error { return saveJSON(pc, pm.ModelDir(column)+".json", v, 0) },
	)

	pc.Vectors = cache.NewAdapter(cfg.Cache.Vectors,
		func(key string) (Vectors, error) {
			column, kind := splitVectorKey(key)
			rows, err := loadVectorRows(pc, vectorPath(pm, column, kind))
			if err != nil {
				return Vectors{}, err
			}
			return Vectors{Column: column, Kind: kind, Rows: rows}, nil
		},
		func(key string, v Vectors) error {
			column, kind := splitVectorKey(key)
			return saveVectorRows(pc, vectorPath(pm, column, kind), column, kind, v.Rows)
		},
	)

	pc.Evaluation = cache.NewAdapter(cfg.Cache.Evaluation,
		func(column string) (EvaluationResult, error) { return loadJSON[EvaluationResult](pc, pm.Evaluation(column), 0) },
		func(column string, v EvaluationResult) error { return saveJSON(pc, pm.Evaluation(column), v, 0) },
	)

	pc.Experiment = cache.NewAdapter(cfg.Cache.Experiment,
		func(column string) (ExperimentResult, error) { return loadJSON[ExperimentResult](pc, pm.Experiment(column), 0) },
		func(column string, v ExperimentResult) error { return saveJSON(pc, pm.Experiment(column), v, 0) },
	)

	return pc
}

func vectorPath(pm *paths.Manager, column, kind string) string {
	switch kind {
	case "umap":
		return pm.UMAPEmbeddings(column)
	case "visualization":
		return pm.VisualizationEmbeddings(column)
	default:
		return pm.DocumentVectors(column)
	}
}

func splitVectorKey(key string) (column, kind string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, "document"
}

// VectorKey builds the cache key for a column+kind pair, as stored by
// Vectors adapters.
func VectorKey(column, kind string) string {
	return column + "/" + kind
}

// WorkspaceKey hashes a filter+sort description into a cache key. The
// empty filter and sort yields the empty string, which represents the
// raw (unfiltered, unsorted) workspace — the key the watcher
// invalidates on any workspace.parquet change.
func WorkspaceKey(filter, sortSpec string) string {
	if filter == "" && sortSpec == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(filter + "\x00" + sortSpec))
	return hex.EncodeToString(sum[:])[:16]
}

// loadJSON acquires the artifact's lock, reads it, and decodes it.
func loadJSON[T any](pc *ProjectCache, path string, timeoutOverride time.Duration) (T, error) {
	var zero T

	timeout := pc.lockTimeout
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	h, err := pc.locks.Acquire(context.Background(), pc.ProjectID, path, timeout)
	if err != nil {
		return zero, err
	}
	defer h.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, fmt.Errorf("read %s: %w", path, apperr.ErrFileNotExists)
		}
		return zero, fmt.Errorf("read %s: %w", path, err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("decode %s: %w", path, apperr.ErrCorruptedFile)
	}
	return value, nil
}

// loadVectorRows acquires the artifact's lock and reads its rows back
// from the vector store backing directory.
func loadVectorRows(pc *ProjectCache, dir string) ([][]float32, error) {
	h, err := pc.locks.Acquire(context.Background(), pc.ProjectID, dir, pc.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	return vectors.Load(dir)
}

// saveVectorRows acquires the artifact's lock and writes rows to the
// vector store backing directory.
func saveVectorRows(pc *ProjectCache, dir, column, kind string, rows [][]float32) error {
	h, err := pc.locks.Acquire(context.Background(), pc.ProjectID, dir, pc.lockTimeout)
	if err != nil {
		return err
	}
	defer h.Release()

	return vectors.Save(dir, column, kind, rows)
}

// saveJSON acquires the artifact's lock and writes it atomically.
func saveJSON[T any](pc *ProjectCache, path string, value T, timeoutOverride time.Duration) error {
	timeout := pc.lockTimeout
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	h, err := pc.locks.Acquire(context.Background(), pc.ProjectID, path, timeout)
	if err != nil {
		return err
	}
	defer h.Release()

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return paths.AtomicWrite(path, data)
}

// InvalidateConfig drops the cached config and cascades into the
// workspace cache (§12): an edited schema can change column
// semantics, so a stale workspace load after a config.json edit would
// serve columns against the old schema.
func (pc *ProjectCache) InvalidateConfig() {
	pc.Config.Invalidate("", false)
	pc.Workspace.Invalidate("", true)
}

// InvalidateAll clears every adapter's in-memory entries for this
// project, without touching disk. Used by prefix-based task
// invalidation and by project removal.
func (pc *ProjectCache) InvalidateAll() {
	pc.Config.Invalidate("", true)
	pc.Workspace.Invalidate("", true)
	pc.Topics.Invalidate("", true)
	pc.Models.Invalidate("", true)
	pc.Vectors.Invalidate("", true)
	pc.Evaluation.Invalidate("", true)
	pc.Experiment.Invalidate("", true)
}

// Manager owns one ProjectCache per registered project, keyed by
// project id, the way the teacher's internal/project.Manager owns one
// indexer/watcher pair per project.
type Manager struct {
	cfg   *config.Config
	locks *lock.Manager

	mu       sync.RWMutex
	projects map[string]*ProjectCache
}

// NewManager creates an empty cache Manager.
func NewManager(cfg *config.Config, locks *lock.Manager) *Manager {
	return &Manager{
		cfg:      cfg,
		locks:    locks,
		projects: make(map[string]*ProjectCache),
	}
}

// Get returns the ProjectCache for id, creating it on first use.
func (m *Manager) Get(id string) *ProjectCache {
	m.mu.RLock()
	pc, ok := m.projects[id]
	m.mu.RUnlock()
	if ok {
		return pc
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pc, ok := m.projects[id]; ok {
		return pc
	}
	pc = newProjectCache(m.cfg, m.locks, id)
	m.projects[id] = pc
	return pc
}

// Remove drops a project's cache entirely (invalidating memory, not
// disk); used when a project is deleted.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pc, ok := m.projects[id]; ok {
		pc.InvalidateAll()
		delete(m.projects, id)
	}
}

// Projects returns the ids of every project with a live cache.
func (m *Manager) Projects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.projects))
	for id := range m.projects {
		ids = append(ids, id)
	}
	return ids
}
