package task

import (
	"errors"
	"time"

	"github.com/ternarybob/analysisd/internal/apperr"
	"github.com/ternarybob/analysisd/internal/config"
	"github.com/ternarybob/analysisd/internal/logger"
)

// Proxy is passed as the first argument to every submitted job (C5).
// It is the job's only channel back to the engine's results map;
// jobs never touch that map directly.
type Proxy struct {
	taskID string
	token  *CancellationToken
	cfg    *config.Config
	queue  chan<- statusUpdate
	// record is the generation identity captured when this proxy's job
	// was submitted; see statusUpdate's doc comment.
	record *Record
}

func newProxy(taskID string, token *CancellationToken, cfg *config.Config, queue chan<- statusUpdate, record *Record) *Proxy {
	return &Proxy{taskID: taskID, token: token, cfg: cfg, queue: queue, record: record}
}

func (p *Proxy) push(mutate func(r *Record)) {
	p.queue <- statusUpdate{taskID: p.taskID, record: p.record, mutate: mutate}
}

func (p *Proxy) appendLog(status Status, msg string) {
	p.push(func(r *Record) {
		r.Logs = append(r.Logs, Log{Status: status, Message: msg, Timestamp: time.Now()})
	})
}

// LogPending appends a pending-tagged log entry.
func (p *Proxy) LogPending(msg string) { p.appendLog(StatusPending, msg) }

// LogSuccess appends a success-tagged log entry without changing the
// record's overall status; call Success to mark the task done.
func (p *Proxy) LogSuccess(msg string) { p.appendLog(StatusSuccess, msg) }

// LogError appends a failure-tagged log entry without changing the
// record's overall status.
func (p *Proxy) LogError(msg string) { p.appendLog(StatusFailed, msg) }

// Success marks the task Success and attaches data, the job's final result.
func (p *Proxy) Success(data any) {
	p.push(func(r *Record) {
		r.Status = StatusSuccess
		r.Data = data
		r.Logs = append(r.Logs, Log{Status: StatusSuccess, Message: "success", Timestamp: time.Now()})
	})
}

// CheckStop returns apperr.ErrTaskStop if the task has been cancelled.
// Long-running stages must call this at safe checkpoints.
func (p *Proxy) CheckStop() error {
	if p.token.Stopped() {
		return apperr.ErrTaskStop
	}
	return nil
}

// Context runs fn with the process-wide logger re-pointed at logFile.
// On exit it maps apperr.ErrTaskStop to a Failed status with a
// "cancelled" log entry, and any other error to Failed with the error
// text. ErrTaskStop is swallowed here: it must never surface past a
// job's top level.
func (p *Proxy) Context(logFile string, fn func() error) error {
	return logger.WithScopedFileLogger(p.cfg, logFile, func() error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, apperr.ErrTaskStop) {
			p.push(func(r *Record) {
				r.Status = StatusFailed
				r.Logs = append(r.Logs, Log{Status: StatusFailed, Message: "cancelled", Timestamp: time.Now()})
			})
			return nil
		}

		p.push(func(r *Record) {
			r.Status = StatusFailed
			r.Logs = append(r.Logs, Log{Status: StatusFailed, Message: err.Error(), Timestamp: time.Now()})
		})
		return err
	})
}
