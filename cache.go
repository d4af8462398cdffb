package scalecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/unkn0wn-root/scalecache/imgproc"
	"github.com/unkn0wn-root/scalecache/raster"
)

// Cache is an ordered, deduplicating set of entries derived from one
// original entry. It is safe for concurrent use.
//
// The mutex guards the structure only. Generation runs unlocked, so two
// goroutines missing on the same key may both generate it; the second
// insert replaces the first (see Options.CoalesceMisses).
type Cache struct {
	ops      Ops
	log      Logger
	hooks    Hooks
	coalesce bool

	mu       sync.Mutex
	tree     *btree.BTreeG[Entry]
	original Entry
	memUsed  int64
	// epoch moves on every SetOriginal/Clear; entries generated under an
	// older epoch are never inserted.
	epoch   uint64
	flights []*flight
}

// flight is an in-progress generation other misses may wait on.
type flight struct {
	entry Entry
	done  chan struct{}
}

func newCache(opts Options) (*Cache, error) {
	degree := coalesce(opts.BTreeDegree, defaultDegree)
	if degree < 2 {
		return nil, usageError("new", fmt.Sprintf("btree degree %d < 2", degree), nil)
	}
	c := &Cache{
		ops:      coalesce[Ops](opts.Ops, imgproc.Ops{}),
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
		coalesce: opts.CoalesceMisses,
		tree:     btree.NewG[Entry](degree, entryLess),
	}
	return c, nil
}

// Ops returns the operators entries should delegate pixel work to.
func (c *Cache) Ops() Ops { return c.ops }

// SetOriginal drops every stored entry and makes e the root of a new
// derivation graph. e must already carry its payload.
func (c *Cache) SetOriginal(e Entry) error {
	if e == nil || e.Payload() == nil {
		return usageError("set_original", "entry has no payload", nil)
	}
	if err := e.Payload().Validate(); err != nil {
		return usageError("set_original", "invalid payload", err)
	}

	c.mu.Lock()
	dropped, released := c.resetLocked()
	c.tree.ReplaceOrInsert(e)
	c.original = e
	c.memUsed = e.MemoryFootprint()
	c.mu.Unlock()

	c.hooks.Reset(dropped, released)
	c.log.Info("original set", Fields{"entry": e.String(), "dropped": dropped, "released": released})
	return nil
}

// SetOriginalRaster wraps r in a PyramidEntry at the given base scale and
// installs it as the original.
func (c *Cache) SetOriginalRaster(r *raster.Raster, scale float64) (*PyramidEntry, error) {
	e, err := NewOriginal(r, scale)
	if err != nil {
		return nil, err
	}
	if err := c.SetOriginal(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Original returns the root entry, or nil before SetOriginal and after Clear.
func (c *Cache) Original() Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.original
}

// Get returns the stored entry equal to q, generating and inserting q on a
// miss. Equal keys always yield the entry already stored; q is then only
// a probe and is discarded.
//
// A failed generation inserts nothing. If SetOriginal or Clear runs while q
// is being generated, q is returned but not inserted.
func (c *Cache) Get(ctx context.Context, q Entry) (Entry, error) {
	if err := c.resolve(q); err != nil {
		return nil, err
	}
	for {
		c.mu.Lock()
		if c.original == nil {
			c.mu.Unlock()
			return nil, usageError("get", q.String(), ErrNoOriginal)
		}
		if hit, ok := c.tree.Get(q); ok {
			c.mu.Unlock()
			c.hooks.Hit(hit)
			return hit, nil
		}
		if c.coalesce {
			if f := c.findFlightLocked(q); f != nil {
				c.mu.Unlock()
				select {
				case <-f.done:
					continue // re-check the tree
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
		epoch := c.epoch
		var f *flight
		if c.coalesce {
			f = &flight{entry: q, done: make(chan struct{})}
			c.flights = append(c.flights, f)
		}
		c.mu.Unlock()
		return c.generate(ctx, q, epoch, f)
	}
}

func (c *Cache) generate(ctx context.Context, q Entry, epoch uint64, f *flight) (Entry, error) {
	if f != nil {
		defer c.land(f)
	}
	c.hooks.Miss(q)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := q.Generate(ctx, c); err != nil {
		c.hooks.GenerateFailed(q, err)
		c.log.Warn("generate failed", Fields{"entry": q.String(), "err": err})
		return nil, err
	}
	took := time.Since(start)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.hooks.StaleDiscard(q)
		c.log.Debug("generated entry outlived its original; not inserted", Fields{"entry": q.String()})
		return q, nil
	}
	prev, replaced := c.tree.ReplaceOrInsert(q)
	if replaced {
		c.memUsed -= prev.MemoryFootprint()
		if prev == c.original {
			c.original = q
		}
	}
	c.memUsed += q.MemoryFootprint()
	c.mu.Unlock()

	if replaced {
		c.hooks.DuplicateInsert(q)
		c.log.Debug("duplicate generation replaced stored entry", Fields{"entry": q.String()})
	}
	c.hooks.Generated(q, took)
	c.log.Debug("generated", Fields{"entry": q.String(), "took": took, "bytes": q.MemoryFootprint()})
	return q, nil
}

func (c *Cache) findFlightLocked(q Entry) *flight {
	for _, f := range c.flights {
		if entryEqual(f.entry, q) {
			return f
		}
	}
	return nil
}

func (c *Cache) land(f *flight) {
	c.mu.Lock()
	for i, g := range c.flights {
		if g == f {
			c.flights = append(c.flights[:i], c.flights[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(f.done)
}

// GetClosest returns whichever neighbour of q's sort position is nearer by
// Distance, preferring the later one on ties. ok is false when neither
// neighbour is comparable with q. q is never stored.
func (c *Cache) GetClosest(q Entry) (Entry, bool) {
	if c.resolve(q) != nil {
		return nil, false
	}
	earlier, later := c.neighbours(q)
	de, dl := c.distanceTo(q, earlier), c.distanceTo(q, later)
	switch {
	case later != nil && !isInf(dl) && dl <= de:
		return later, true
	case earlier != nil && !isInf(de):
		return earlier, true
	}
	return nil, false
}

// GetLE returns the best stored entry whose key does not exceed q's: the
// later neighbour on an exact key match, else the earlier neighbour when it
// is comparable with q.
func (c *Cache) GetLE(q Entry) (Entry, bool) {
	if c.resolve(q) != nil {
		return nil, false
	}
	earlier, later := c.neighbours(q)
	if later != nil && c.distanceTo(q, later) == 0 {
		return later, true
	}
	if earlier != nil && !isInf(c.distanceTo(q, earlier)) {
		return earlier, true
	}
	return nil, false
}

// Clear drops every entry, including the original.
func (c *Cache) Clear() {
	c.mu.Lock()
	dropped, released := c.resetLocked()
	c.mu.Unlock()

	c.hooks.Reset(dropped, released)
	c.log.Info("cache cleared", Fields{"dropped": dropped, "released": released})
}

// ClearEntry drops the stored entries equal to q and reports how many were
// removed. Removing the original leaves the cache without one. A key that
// cannot be resolved, such as a width-0 pyramid key with no original set,
// is an error rather than a miss.
func (c *Cache) ClearEntry(q Entry) (int, error) {
	if err := c.resolve(q); err != nil {
		return 0, err
	}

	c.mu.Lock()
	removed := 0
	var released int64
	for {
		old, ok := c.tree.Delete(q)
		if !ok {
			break
		}
		removed++
		released += old.MemoryFootprint()
		if old == c.original {
			c.original = nil
		}
	}
	c.memUsed -= released
	c.mu.Unlock()

	if removed > 0 {
		c.log.Debug("entry cleared", Fields{"entry": q.String(), "removed": removed})
	}
	return removed, nil
}

// Len is the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Len()
}

// MemoryUsed is the sum of MemoryFootprint over stored entries.
func (c *Cache) MemoryUsed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memUsed
}

func (c *Cache) resetLocked() (dropped int, released int64) {
	dropped, released = c.tree.Len(), c.memUsed
	c.tree.Clear(false)
	c.original = nil
	c.memUsed = 0
	c.epoch++
	return dropped, released
}

func (c *Cache) resolve(q Entry) error {
	if q == nil {
		return usageError("get", "nil entry", nil)
	}
	if r, ok := q.(Resolver); ok {
		return r.Resolve(c)
	}
	return nil
}

// neighbours brackets the position q would sort at: later is the first
// stored entry not before q, earlier the last one strictly before it.
func (c *Cache) neighbours(q Entry) (earlier, later Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.AscendGreaterOrEqual(q, func(e Entry) bool {
		later = e
		return false
	})
	c.tree.DescendLessOrEqual(q, func(e Entry) bool {
		if !entryLess(e, q) {
			return true
		}
		earlier = e
		return false
	})
	return earlier, later
}

// descendBefore walks stored entries strictly before q, nearest first,
// until fn returns false. fn runs under the cache lock and must not call
// back into c.
func (c *Cache) descendBefore(q Entry, fn func(Entry) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.DescendLessOrEqual(q, func(e Entry) bool {
		if !entryLess(e, q) {
			return true
		}
		return fn(e)
	})
}

func (c *Cache) distanceTo(q, e Entry) float64 {
	if e == nil {
		return inf
	}
	return entryDistance(q, e)
}

// originalPyramid returns the original as a PyramidEntry, the only kind
// pyramid generation can derive from.
func (c *Cache) originalPyramid(op string) (*PyramidEntry, error) {
	o := c.Original()
	if o == nil {
		return nil, usageError(op, "no original", ErrNoOriginal)
	}
	p, ok := o.(*PyramidEntry)
	if !ok {
		return nil, usageError(op, fmt.Sprintf("original %s is not a pyramid entry", o), nil)
	}
	return p, nil
}
