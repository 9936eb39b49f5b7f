// Package cache implements the generic half of the Cache Adapters
// (C3): a typed Save/Load/Invalidate facade over an in-memory
// LRU+TTL cache, backed by a caller-supplied disk codec. Per-kind
// policy (max size, TTL, persistent-after-save) comes from
// internal/config.CachePolicy; per-kind concrete types and disk
// encodings are supplied by the package that owns the domain model
// (internal/project), since this package knows nothing about
// projects, columns, or topics.
package cache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ternarybob/analysisd/internal/config"
)

// entry is what the in-memory cache actually stores: the value plus
// enough bookkeeping to decide eviction and to answer "is this a
// persistent seed".
type entry[T any] struct {
	value      T
	cachedAt   time.Time
	persistent bool
}

// DiskLoader reads a value for key from its on-disk artifact. It is
// expected to acquire whatever lock the caller's domain needs before
// touching disk (internal/lock) and to map "missing"/"corrupt" to the
// apperr kinds before returning.
type DiskLoader[T any] func(key string) (T, error)

// DiskSaver writes value for key to its on-disk artifact, typically
// via paths.AtomicWrite under a held lock.
type DiskSaver[T any] func(key string, value T) error

// Adapter is the generic Cache Adapter described in §4.3: Save writes
// through to disk then seeds memory; Load serves from memory when
// fresh, otherwise reads through; Invalidate drops matching entries.
type Adapter[T any] struct {
	mu         sync.Mutex
	lru        *lru.LRU[string, entry[T]]
	persistent map[string]entry[T]
	policy     config.CachePolicy
	load       DiskLoader[T]
	save       DiskSaver[T]
}

// NewAdapter builds an Adapter honoring policy's max size and TTL.
// A zero MaxSize means unbounded (the LRU's size cap is disabled).
func NewAdapter[T any](policy config.CachePolicy, load DiskLoader[T], save DiskSaver[T]) *Adapter[T] {
	size := policy.MaxSize
	if size <= 0 {
		size = 0 // expirable.NewLRU treats size<=0 as unbounded
	}
	return &Adapter[T]{
		lru:        lru.NewLRU[string, entry[T]](size, nil, policy.TTL()),
		persistent: make(map[string]entry[T]),
		policy:     policy,
		load:       load,
		save:       save,
	}
}

// Save writes through to disk, then seeds the in-memory cache with a
// fresh entry — persistent (exempt from LRU/TTL eviction) when the
// adapter's policy says so. On a disk-write error the in-memory cache
// is left untouched, keeping memory consistent with the
// failed-to-change disk state.
func (a *Adapter[T]) Save(key string, value T) error {
	if err := a.save(key, value); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	e := entry[T]{value: value, cachedAt: time.Now(), persistent: a.policy.PersistentAfterSave}
	if e.persistent {
		delete(a.persistent, key) // drop any stale copy before reseeding
		a.persistent[key] = e
		a.lru.Remove(key)
	} else {
		a.lru.Add(key, e)
	}
	return nil
}

// Load returns the cached value if present and fresh; otherwise it
// reads through the configured DiskLoader, caches the result as a
// non-persistent entry, and returns it.
func (a *Adapter[T]) Load(key string) (T, error) {
	a.mu.Lock()
	if e, ok := a.persistent[key]; ok {
		a.mu.Unlock()
		return e.value, nil
	}
	if e, ok := a.lru.Get(key); ok {
		a.mu.Unlock()
		return e.value, nil
	}
	a.mu.Unlock()

	value, err := a.load(key)
	if err != nil {
		var zero T
		return zero, err
	}

	a.mu.Lock()
	a.lru.Add(key, entry[T]{value: value, cachedAt: time.Now()})
	a.mu.Unlock()

	return value, nil
}

// Invalidate clears matching in-memory entries. When prefix is true,
// key is treated as a prefix over every cached key (used by the
// filesystem watcher and by "cancel/clear everything for project X"
// callers); otherwise it is an exact key.
func (a *Adapter[T]) Invalidate(key string, prefix bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !prefix {
		a.lru.Remove(key)
		delete(a.persistent, key)
		return
	}

	for _, k := range a.lru.Keys() {
		if strings.HasPrefix(k, key) {
			a.lru.Remove(k)
		}
	}
	for k := range a.persistent {
		if strings.HasPrefix(k, key) {
			delete(a.persistent, k)
		}
	}
}

// Peek returns the cached value without touching disk or affecting
// recency, reporting whether it was present.
func (a *Adapter[T]) Peek(key string) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.persistent[key]; ok {
		return e.value, true
	}
	if e, ok := a.lru.Peek(key); ok {
		return e.value, true
	}
	var zero T
	return zero, false
}
