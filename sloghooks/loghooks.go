// Package sloghooks reports cache events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/scalecache"
)

type Options struct {
	// Sampling to avoid floods on the Get hot path; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// SlowGenerate promotes Generated to Info when generation took at
	// least this long; 0 keeps everything at Debug.
	SlowGenerate time.Duration
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ scalecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(e scalecache.Entry) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("scalecache.hit", "entry", e.String())
}

func (h *Hooks) Miss(q scalecache.Entry) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("scalecache.miss", "entry", q.String())
}

func (h *Hooks) Generated(e scalecache.Entry, took time.Duration) {
	if h.l == nil {
		return
	}
	if h.opts.SlowGenerate > 0 && took >= h.opts.SlowGenerate {
		h.l.Info("scalecache.slow_generate",
			"entry", e.String(),
			"took", took,
			"bytes", e.MemoryFootprint())
		return
	}
	h.l.Debug("scalecache.generated",
		"entry", e.String(),
		"took", took,
		"bytes", e.MemoryFootprint())
}

func (h *Hooks) GenerateFailed(q scalecache.Entry, err error) {
	if h.l == nil {
		return
	}
	kind, _ := scalecache.KindOf(err)
	h.l.Warn("scalecache.generate_failed",
		"entry", q.String(),
		"kind", kind.String(),
		"err", err)
}

func (h *Hooks) DuplicateInsert(e scalecache.Entry) {
	if h.l == nil {
		return
	}
	h.l.Info("scalecache.duplicate_insert", "entry", e.String())
}

func (h *Hooks) StaleDiscard(e scalecache.Entry) {
	if h.l == nil {
		return
	}
	h.l.Info("scalecache.stale_discard", "entry", e.String())
}

func (h *Hooks) Reset(entries int, bytes int64) {
	if h.l == nil {
		return
	}
	h.l.Info("scalecache.reset",
		"entries", entries,
		"bytes", bytes)
}
