// Package lock implements the Lock Manager (C2): a two-tier lock
// composed of an intra-process lock keyed by project id (not
// re-entrant) and an inter-process file lock keyed by an absolute
// path adjacent to the guarded artifact. Acquisition is always
// inter-process first, then intra-process; release is in reverse
// order.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/ternarybob/analysisd/internal/apperr"
	"github.com/ternarybob/analysisd/internal/paths"
)

// projectLock is a mutex keyed by project id. It records the current
// holder's token but never compares it, so it is not re-entrant: a
// second Acquire for the same project blocks until the first handle
// is released, or fails once its timeout expires.
type projectLock struct {
	mu     sync.Mutex
	holder any
}

// Manager owns one intra-process lock per project id and hands out
// composed handles that also acquire an inter-process file lock.
type Manager struct {
	mu       sync.Mutex
	projects map[string]*projectLock
}

// New returns an empty Lock Manager.
func New() *Manager {
	return &Manager{projects: make(map[string]*projectLock)}
}

func (m *Manager) projectLockFor(projectID string) *projectLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.projects[projectID]
	if !ok {
		pl = &projectLock{}
		m.projects[projectID] = pl
	}
	return pl
}

// Handle is a held composition of the inter-process file lock and the
// intra-process project lock. Release undoes both, in reverse
// acquisition order.
type Handle struct {
	file      *flock.Flock
	project   *projectLock
	token     any
	reentrant bool
}

// Acquire locks the artifact adjacent to artifactPath and the given
// project id, in that order, creating the lock file's directory if it
// is missing. A zero timeout waits indefinitely (the background-worker
// path); a positive timeout is the caller-facing path and, on expiry,
// returns apperr.ErrUnallowedFileOperation if the file lock was not
// obtained or apperr.ErrUnallowedColumnOperation if the project lock
// was not.
func (m *Manager) Acquire(ctx context.Context, projectID, artifactPath string, timeout time.Duration) (*Handle, error) {
	lockPath := paths.LockFile(artifactPath)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("create lock dir for %s: %w", artifactPath, err)
	}
	fl := flock.New(lockPath)

	locked, err := acquireFileLock(ctx, fl, timeout)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("acquire file lock %s: %w", artifactPath, apperr.ErrUnallowedFileOperation)
	}

	pl := m.projectLockFor(projectID)
	token := new(int)
	if reentered := tryReenter(pl, token, timeout); !reentered {
		fl.Unlock()
		return nil, fmt.Errorf("acquire project lock %s: %w", projectID, apperr.ErrUnallowedColumnOperation)
	}

	return &Handle{file: fl, project: pl, token: token}, nil
}

// acquireFileLock waits for the inter-process file lock. timeout==0
// waits indefinitely. Expiry of timeout reports (false, nil).
func acquireFileLock(ctx context.Context, fl *flock.Flock, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		if err := fl.Lock(); err != nil {
			return false, fmt.Errorf("lock %s: %w", fl.Path(), err)
		}
		return true, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, 25*time.Millisecond)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return false, nil
	}
	return locked, err
}

// tryReenter blocks on the project's intra-process lock up to
// timeout (0 means indefinitely), reporting success.
func tryReenter(pl *projectLock, token any, timeout time.Duration) bool {
	if timeout <= 0 {
		pl.mu.Lock()
		pl.holder = token
		return true
	}

	done := make(chan struct{})
	go func() {
		pl.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		pl.holder = token
		return true
	case <-time.After(timeout):
		go func() {
			<-done
			pl.mu.Unlock()
		}()
		return false
	}
}

// Release unlocks the project lock then the file lock, in reverse
// acquisition order.
func (h *Handle) Release() error {
	h.project.holder = nil
	h.project.mu.Unlock()
	if err := h.file.Unlock(); err != nil {
		return fmt.Errorf("release file lock %s: %w", h.file.Path(), err)
	}
	return nil
}
