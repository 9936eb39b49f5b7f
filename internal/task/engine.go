// Package task implements the Task Engine (C6) and Task Proxy (C5):
// a bounded worker pool that runs long-lived pipeline and experiment
// jobs, coalescing by task id and reporting status back through a
// proxy-owned channel rather than shared-map writes from workers.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/analysisd/internal/apperr"
	"github.com/ternarybob/analysisd/internal/config"
)

// statusUpdate is tagged with the *Record pointer captured when its
// job was submitted (its generation). The receiver only applies an
// update if that pointer still matches e.results[taskID]: once
// PolicyCancel replaces a task id with a new generation, any update
// still in flight from the old generation carries the old pointer and
// is dropped instead of mutating the new generation's live record.
type statusUpdate struct {
	taskID string
	record *Record
	mutate func(r *Record)
}

type queuedJob struct {
	fn          Func
	idleMessage string
}

// Engine is the Task Engine (C6). Zero value is not usable; build one
// with New.
type Engine struct {
	cfg *config.Config

	mu         sync.Mutex
	results    map[string]*Record
	tokens     map[string]*CancellationToken
	queuedNext map[string]*queuedJob

	updates chan statusUpdate
	sem     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	wg           sync.WaitGroup
	receiverDone chan struct{}
}

// New builds an Engine sized by cfg.Task.Workers/QueueSize and starts
// its receiver loop.
func New(cfg *config.Config) *Engine {
	workers := cfg.Task.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.Task.QueueSize
	if queueSize < 1 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:          cfg,
		results:      make(map[string]*Record),
		tokens:       make(map[string]*CancellationToken),
		queuedNext:   make(map[string]*queuedJob),
		updates:      make(chan statusUpdate, queueSize),
		sem:          make(chan struct{}, workers),
		ctx:          ctx,
		cancel:       cancel,
		receiverDone: make(chan struct{}),
	}

	go e.receive()

	return e
}

// Get returns a snapshot copy of a task's record.
func (e *Engine) Get(taskID string) (Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.results[taskID]
	if !ok {
		return Record{}, false
	}
	return *r.clone(), true
}

// AddTask submits fn under taskID per the conflict policy described in
// §4.6: Ignore leaves an in-flight task alone, Cancel invalidates it
// and replaces it, Queue defers fn until the in-flight task finishes.
func (e *Engine) AddTask(taskID string, fn Func, idleMessage string, policy ConflictPolicy) {
	e.mu.Lock()

	if existing, ok := e.results[taskID]; ok && (existing.Status == StatusIdle || existing.Status == StatusPending) {
		switch policy {
		case PolicyIgnore:
			e.mu.Unlock()
			return
		case PolicyQueue:
			e.queuedNext[taskID] = &queuedJob{fn: fn, idleMessage: idleMessage}
			e.mu.Unlock()
			return
		case PolicyCancel:
			if tok, ok := e.tokens[taskID]; ok {
				tok.Stop()
			}
			delete(e.tokens, taskID)
		}
	}

	record := &Record{
		ID:     taskID,
		Status: StatusIdle,
		Logs:   []Log{{Status: StatusIdle, Message: idleMessage, Timestamp: time.Now()}},
	}
	token := &CancellationToken{}
	e.results[taskID] = record
	e.tokens[taskID] = token
	e.mu.Unlock()

	e.submit(taskID, fn, token, record)
}

func (e *Engine) submit(taskID string, fn Func, token *CancellationToken, record *Record) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		select {
		case e.sem <- struct{}{}:
		case <-e.ctx.Done():
			return
		}
		defer func() { <-e.sem }()

		e.updates <- statusUpdate{taskID: taskID, record: record, mutate: func(r *Record) { r.Status = StatusPending }}

		proxy := newProxy(taskID, token, e.cfg, e.updates, record)
		e.runJob(taskID, fn, proxy, record)
		e.runQueuedReplacement(taskID)
	}()
}

func (e *Engine) runJob(taskID string, fn Func, proxy *Proxy, record *Record) {
	defer func() {
		if r := recover(); r != nil {
			e.updates <- statusUpdate{taskID: taskID, record: record, mutate: func(rec *Record) {
				rec.Status = StatusFailed
				rec.Logs = append(rec.Logs, Log{Status: StatusFailed, Message: fmt.Sprintf("panic: %v", r), Timestamp: time.Now()})
			}}
		}
	}()

	err := fn(e.ctx, proxy)
	if err == nil || errors.Is(err, apperr.ErrTaskStop) {
		return
	}

	// A job that returns an error without routing it through
	// Proxy.Context leaves the record in whatever state its own log
	// calls left it; make sure it still ends up Failed.
	e.updates <- statusUpdate{taskID: taskID, record: record, mutate: func(rec *Record) {
		if rec.Status != StatusFailed {
			rec.Status = StatusFailed
			rec.Logs = append(rec.Logs, Log{Status: StatusFailed, Message: err.Error(), Timestamp: time.Now()})
		}
	}}
}

func (e *Engine) runQueuedReplacement(taskID string) {
	e.mu.Lock()
	next, ok := e.queuedNext[taskID]
	if ok {
		delete(e.queuedNext, taskID)
	}
	e.mu.Unlock()

	if !ok {
		return
	}
	e.AddTask(taskID, next.fn, next.idleMessage, PolicyCancel)
}

// Invalidate cancels and optionally clears matching task records.
// When prefix is true, taskID is matched as a prefix against every
// known task id, enabling "cancel everything for project X" without
// enumerating artifact kinds.
func (e *Engine) Invalidate(taskID string, prefix bool, clear bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !prefix {
		if tok, ok := e.tokens[taskID]; ok {
			tok.Stop()
			delete(e.tokens, taskID)
		}
		if clear {
			delete(e.results, taskID)
		}
		return
	}

	for id, tok := range e.tokens {
		if strings.HasPrefix(id, taskID) {
			tok.Stop()
			delete(e.tokens, id)
		}
	}
	if clear {
		for id := range e.results {
			if strings.HasPrefix(id, taskID) {
				delete(e.results, id)
			}
		}
	}
}

func (e *Engine) receive() {
	defer close(e.receiverDone)
	for u := range e.updates {
		e.mu.Lock()
		if r, ok := e.results[u.taskID]; ok && r == u.record {
			u.mutate(r)
		}
		e.mu.Unlock()
	}
}

// Shutdown cancels every in-flight task, waits for workers to return,
// then stops the receiver loop. Jobs observe cancellation at their
// next CheckStop.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	for _, tok := range e.tokens {
		tok.Stop()
	}
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	close(e.updates)
	<-e.receiverDone
}
