// Package watcher implements the Filesystem Watcher (C4): it
// subscribes recursively to the data root, debounces bursts of
// events, and translates each settled path into a targeted cache
// invalidation via internal/project's Manager.
package watcher

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ternarybob/analysisd/internal/logger"
	"github.com/ternarybob/analysisd/internal/project"
)

// Watcher watches data root for artifact changes and invalidates the
// matching project cache adapter.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	caches    *project.Manager
	debounce  time.Duration

	pendingMu sync.Mutex
	pending   map[string]time.Time

	stop    chan struct{}
	done    chan struct{}
	running bool
	mu      sync.Mutex
}

// New creates a Watcher rooted at root (the service's data directory,
// config.Config.ProjectsDir()), routing invalidations through caches.
func New(root string, caches *project.Manager, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		root:      root,
		caches:    caches,
		debounce:  debounce,
		pending:   make(map[string]time.Time),
	}, nil
}

// IsRunning reports whether the watcher's goroutines are active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start begins watching the data root. Calling it while already
// running is a no-op. Stop closes the underlying fsnotify watcher, so
// a stopped Watcher cannot be started again.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}
	if err := w.addDirectories(w.root); err != nil {
		return err
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.processEvents()
	go w.processDebounced()

	return nil
}

// Stop halts the watcher's goroutines and releases the OS handle.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()

	<-w.done
	w.fsWatcher.Close()
}

// addDirectories walks root and subscribes every directory, since
// fsnotify watches are not recursive.
func (w *Watcher) addDirectories(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsWatcher.Add(path)
	})
}

// processEvents drains fsnotify's channel into the pending map, and
// watches newly created directories so nested project dirs created
// after Start are picked up automatically.
func (w *Watcher) processEvents() {
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.GetLogger().Warn().Err(err).Msg("filesystem watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if strings.HasSuffix(event.Name, ".lock") {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsWatcher.Add(event.Name)
			return
		}
	}

	if !(event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)) {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = time.Now()
	w.pendingMu.Unlock()
}

// processDebounced periodically flushes paths that have been quiet
// for at least the debounce interval.
func (w *Watcher) processDebounced() {
	interval := w.debounce
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.flushSettled(interval)
		}
	}
}

func (w *Watcher) flushSettled(interval time.Duration) {
	now := time.Now()

	w.pendingMu.Lock()
	var settled []string
	for path, last := range w.pending {
		if now.Sub(last) >= interval {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	for _, path := range settled {
		w.invalidate(path)
	}
}

// invalidate resolves path relative to root, extracts the project id
// as the first path component, and routes the remainder to the
// matching adapter.
func (w *Watcher) invalidate(path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return
	}
	projectID, remainder := parts[0], parts[1:]

	pc := w.caches.Get(projectID)

	// Per-column path segments hold paths.EncodeColumn output, while
	// the adapters are keyed by the raw column name.
	decode := func(segment string) string {
		raw, err := base64.RawURLEncoding.DecodeString(segment)
		if err != nil {
			return segment
		}
		return string(raw)
	}

	switch {
	case len(remainder) == 1 && remainder[0] == "config.json":
		pc.InvalidateConfig()
	case len(remainder) == 1 && remainder[0] == "workspace.parquet":
		pc.Workspace.Invalidate("", true)
	case len(remainder) == 2 && remainder[0] == "topics":
		pc.Topics.Invalidate(decode(strings.TrimSuffix(remainder[1], ".json")), false)
	case len(remainder) >= 2 && remainder[0] == "bertopic":
		pc.Models.Invalidate(decode(strings.TrimSuffix(remainder[1], ".json")), false)
	case len(remainder) >= 3 && remainder[0] == "embedding":
		pc.Vectors.Invalidate(decode(remainder[1])+"/", true)
	case len(remainder) == 2 && remainder[0] == "evaluation" && strings.HasPrefix(remainder[1], "topic_evaluation_"):
		column := strings.TrimSuffix(strings.TrimPrefix(remainder[1], "topic_evaluation_"), ".json")
		pc.Evaluation.Invalidate(decode(column), false)
	case len(remainder) == 2 && remainder[0] == "evaluation" && strings.HasPrefix(remainder[1], "topic_experiment_"):
		column := strings.TrimSuffix(strings.TrimPrefix(remainder[1], "topic_experiment_"), ".json")
		pc.Experiment.Invalidate(decode(column), false)
	}
}
