package task

import (
	"context"
	"sync/atomic"
	"time"
)

// Status is a TaskRecord's lifecycle state (§3 data model).
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Log is one append-only entry in a TaskRecord's log list.
type Log struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the task record surfaced to callers: current status,
// the full ordered log, and an optional kind-specific result payload.
type Record struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Logs   []Log  `json:"logs"`
	Data   any    `json:"data,omitempty"`
}

func (r *Record) clone() *Record {
	c := &Record{ID: r.ID, Status: r.Status, Data: r.Data}
	c.Logs = make([]Log, len(r.Logs))
	copy(c.Logs, r.Logs)
	return c
}

// ConflictPolicy governs what AddTask does when a record already
// exists for a task id in Idle or Pending state.
type ConflictPolicy int

const (
	// PolicyIgnore leaves the existing in-flight task untouched and
	// returns without submitting the new one.
	PolicyIgnore ConflictPolicy = iota
	// PolicyCancel invalidates the existing task (cancellation +
	// scheduler entry drop) before submitting the new one.
	PolicyCancel
	// PolicyQueue runs the new task after the current one finishes.
	// Reserved: not used by any first-generation caller, but
	// implemented (one level deep) so the policy is meaningful if a
	// future caller needs it.
	PolicyQueue
)

// CancellationToken is the cooperative-cancellation handle shared
// between the Task Engine and a job's Task Proxy.
type CancellationToken struct {
	stopped atomic.Bool
}

// Stop marks the token as cancelled. Idempotent.
func (t *CancellationToken) Stop() {
	t.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (t *CancellationToken) Stopped() bool {
	return t.stopped.Load()
}

// Func is the signature every submitted job implements. ctx is
// cancelled when the engine shuts down; proxy is the job's sole
// channel back to the engine's results map.
type Func func(ctx context.Context, proxy *Proxy) error
