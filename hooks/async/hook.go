// Package asynchook moves hook delivery off the caller's goroutine.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	c, _ := scalecache.New(scalecache.Options{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/scalecache"
)

// Hooks queues events for inner and drops them when the queue is full.
type Hooks struct {
	inner scalecache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ scalecache.Hooks = (*Hooks)(nil)

func New(inner scalecache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) Hit(e scalecache.Entry)  { h.try(func() { h.inner.Hit(e) }) }
func (h *Hooks) Miss(q scalecache.Entry) { h.try(func() { h.inner.Miss(q) }) }
func (h *Hooks) Generated(e scalecache.Entry, took time.Duration) {
	h.try(func() { h.inner.Generated(e, took) })
}
func (h *Hooks) GenerateFailed(q scalecache.Entry, err error) {
	h.try(func() { h.inner.GenerateFailed(q, err) })
}
func (h *Hooks) DuplicateInsert(e scalecache.Entry) { h.try(func() { h.inner.DuplicateInsert(e) }) }
func (h *Hooks) StaleDiscard(e scalecache.Entry)    { h.try(func() { h.inner.StaleDiscard(e) }) }
func (h *Hooks) Reset(entries int, bytes int64) {
	h.try(func() { h.inner.Reset(entries, bytes) })
}
