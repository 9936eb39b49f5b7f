// Package app wires every long-lived component into one process
// container and owns the start/stop lifecycle, generalized from the
// teacher's internal/service/daemon.go with the HTTP server dropped
// (no transport layer in scope here, an explicit Non-goal).
package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/analysisd/internal/config"
	"github.com/ternarybob/analysisd/internal/lock"
	"github.com/ternarybob/analysisd/internal/logger"
	"github.com/ternarybob/analysisd/internal/project"
	"github.com/ternarybob/analysisd/internal/task"
	"github.com/ternarybob/analysisd/internal/watcher"
)

// App owns every process-level component: the cache manager (C3), the
// lock manager (C2), the task engine (C6/C5), and the filesystem
// watcher (C4), plus the logging/PID-file lifecycle the teacher's
// Daemon managed for its HTTP server.
type App struct {
	Config  *config.Config
	Logger  arbor.ILogger
	Locks   *lock.Manager
	Cache   *project.Manager
	Engine  *task.Engine
	Watcher *watcher.Watcher

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New builds an App from cfg without starting anything.
func New(cfg *config.Config) *App {
	locks := lock.New()
	cache := project.NewManager(cfg, locks)

	return &App{
		Config:    cfg,
		Locks:     locks,
		Cache:     cache,
		Engine:    task.New(cfg),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start ensures data directories exist, configures logging, writes the
// PID file, and starts the filesystem watcher if enabled.
func (a *App) Start() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := os.MkdirAll(a.Config.Service.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	a.Logger = logger.SetupLogger(a.Config)
	logger.InitLogger(a.Logger)

	if err := a.writePID(); err != nil {
		return fmt.Errorf("write PID: %w", err)
	}

	if a.Config.Watcher.Enabled {
		w, err := watcher.New(a.Config.ProjectsDir(), a.Cache, a.Config.Watcher.Debounce())
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		a.Watcher = w
	}

	a.Logger.Info().Str("data_dir", a.Config.Service.DataDir).Msg("app started")
	return nil
}

// Wait blocks until a shutdown signal arrives or Stop is called, then
// shuts every component down in reverse start order.
func (a *App) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		if a.Logger != nil {
			a.Logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
		}
	case <-a.stopCh:
		if a.Logger != nil {
			a.Logger.Info().Msg("stop requested, shutting down")
		}
	}

	a.shutdown()
}

// Stop signals Wait to return, shuts every component down, and blocks
// until that is done. It does not depend on Wait having been called.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	close(a.stopCh)
	a.shutdown()
	<-a.stoppedCh
}

func (a *App) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}

	if a.Watcher != nil {
		a.Watcher.Stop()
	}
	a.Engine.Shutdown()

	_ = os.Remove(a.Config.Service.PIDFile)

	a.running = false
	close(a.stoppedCh)
}

func (a *App) writePID() error {
	pidPath := a.Config.Service.PIDFile
	if err := os.MkdirAll(filepath.Dir(pidPath), 0755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// IsRunning reports whether a PID file names a still-alive process.
func IsRunning(cfg *config.Config) (bool, int) {
	data, err := os.ReadFile(cfg.Service.PIDFile)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(cfg.Service.PIDFile)
		return false, 0
	}

	return true, pid
}

// StopRunning sends SIGTERM to a running process named by the PID
// file, escalating to SIGKILL if it does not exit within a few
// seconds.
func StopRunning(cfg *config.Config) error {
	running, pid := IsRunning(cfg)
	if !running {
		return fmt.Errorf("app not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if running, _ := IsRunning(cfg); !running {
			return nil
		}
	}

	if err := process.Kill(); err != nil {
		return fmt.Errorf("kill process: %w", err)
	}

	_ = os.Remove(cfg.Service.PIDFile)
	return nil
}
