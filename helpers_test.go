package scalecache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/scalecache/imgproc"
	"github.com/unkn0wn-root/scalecache/raster"
)

// ==============================
// Recording operators
// ==============================

type opCall struct {
	op     string
	ratio  int
	sigma  float64
	before float64
	after  float64
	width  int
	height int
}

func (c opCall) String() string {
	return fmt.Sprintf("%s(r=%d s=%.4g b=%.4g a=%.4g %dx%d)", c.op, c.ratio, c.sigma, c.before, c.after, c.width, c.height)
}

// recordingOps runs the real operators and remembers each call.
type recordingOps struct {
	imgproc.Ops
	mu    sync.Mutex
	calls []opCall
}

func (o *recordingOps) record(c opCall) {
	o.mu.Lock()
	o.calls = append(o.calls, c)
	o.mu.Unlock()
}

func (o *recordingOps) Calls() []opCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]opCall(nil), o.calls...)
}

func (o *recordingOps) Reset() {
	o.mu.Lock()
	o.calls = nil
	o.mu.Unlock()
}

func (o *recordingOps) Convert(src *raster.Raster, to raster.Format) (*raster.Raster, error) {
	o.record(opCall{op: "convert", width: src.Width, height: src.Height})
	return o.Ops.Convert(src, to)
}

func (o *recordingOps) Blur(src *raster.Raster, sigma float64, dir raster.Direction) (*raster.Raster, error) {
	o.record(opCall{op: "blur", sigma: sigma, width: src.Width, height: src.Height})
	return o.Ops.Blur(src, sigma, dir)
}

func (o *recordingOps) Decimate(src *raster.Raster, ratio int, before, after float64) (*raster.Raster, error) {
	o.record(opCall{op: "decimate", ratio: ratio, before: before, after: after, width: src.Width, height: src.Height})
	return o.Ops.Decimate(src, ratio, before, after)
}

func (o *recordingOps) Resample(src *raster.Raster, width, height int, ratio float64) (*raster.Raster, error) {
	o.record(opCall{op: "resample", width: width, height: height})
	return o.Ops.Resample(src, width, height, ratio)
}

func (o *recordingOps) Subtract(a, b *raster.Raster) (*raster.Raster, error) {
	o.record(opCall{op: "subtract", width: a.Width, height: a.Height})
	return o.Ops.Subtract(a, b)
}

func (o *recordingOps) Derivative(src *raster.Raster, dir raster.Direction) (*raster.Raster, error) {
	o.record(opCall{op: "derivative", width: src.Width, height: src.Height})
	return o.Ops.Derivative(src, dir)
}

// shrinkingOps returns a raster one pixel narrower than asked for.
type shrinkingOps struct{ imgproc.Ops }

func (shrinkingOps) Blur(src *raster.Raster, _ float64, _ raster.Direction) (*raster.Raster, error) {
	return raster.New(src.Format, src.Width-1, src.Height)
}

// ==============================
// Recording hooks
// ==============================

type recordingHooks struct {
	mu         sync.Mutex
	hits       int
	misses     int
	generated  int
	failed     int
	duplicates int
	stale      int
	resets     int
}

func (h *recordingHooks) Hit(Entry)                      { h.inc(&h.hits) }
func (h *recordingHooks) Miss(Entry)                     { h.inc(&h.misses) }
func (h *recordingHooks) Generated(Entry, time.Duration) { h.inc(&h.generated) }
func (h *recordingHooks) GenerateFailed(Entry, error)    { h.inc(&h.failed) }
func (h *recordingHooks) DuplicateInsert(Entry)          { h.inc(&h.duplicates) }
func (h *recordingHooks) StaleDiscard(Entry)             { h.inc(&h.stale) }
func (h *recordingHooks) Reset(int, int64)               { h.inc(&h.resets) }

func (h *recordingHooks) inc(p *int) {
	h.mu.Lock()
	*p++
	h.mu.Unlock()
}

func (h *recordingHooks) get(p *int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *p
}

// ==============================
// A minimal entry kind
// ==============================

const testKind EntryKind = 200

// keyEntry orders by key alone and generates a 1x1 payload through gen.
type keyEntry struct {
	payload
	key float64
	gen func(ctx context.Context, c *Cache) error
}

func newKey(key float64, gen func(context.Context, *Cache) error) *keyEntry {
	return &keyEntry{key: key, gen: gen}
}

func newKeyOriginal(t *testing.T, key float64) *keyEntry {
	t.Helper()
	e := newKey(key, nil)
	e.raster = mustRaster(t, raster.Gray8, 1, 1)
	return e
}

func (e *keyEntry) Kind() EntryKind { return testKind }
func (e *keyEntry) Less(o Entry) bool {
	return e.key < o.(*keyEntry).key
}
func (e *keyEntry) Distance(o Entry) float64 {
	k, ok := o.(*keyEntry)
	if !ok {
		return inf
	}
	return math.Abs(e.key - k.key)
}
func (e *keyEntry) Generate(ctx context.Context, c *Cache) error {
	if e.gen != nil {
		if err := e.gen(ctx, c); err != nil {
			return err
		}
	}
	r, err := raster.New(raster.Gray8, 1, 1)
	if err != nil {
		return err
	}
	e.raster = r
	return nil
}
func (e *keyEntry) String() string { return fmt.Sprintf("key %g", e.key) }

// ==============================
// Helpers
// ==============================

func mustRaster(t *testing.T, f raster.Format, w, h int) *raster.Raster {
	t.Helper()
	r, err := raster.New(f, w, h)
	if err != nil {
		t.Fatalf("raster.New: %v", err)
	}
	return r
}

// gradient is a w x h image with a diagonal ramp, so blurs and resizes
// produce non-trivial samples.
func gradient(t *testing.T, f raster.Format, w, h int) *raster.Raster {
	t.Helper()
	r := mustRaster(t, f, w, h)
	ch := f.Channels()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				r.Set(x, y, c, raster.Quantize(f, float32((x+y+c*17)%256)))
			}
		}
	}
	return r
}

func newTestCache(t *testing.T, opt func(*Options)) *Cache {
	t.Helper()
	var opts Options
	if opt != nil {
		opt(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// newPyramidCache seeds a cache with a width x width gray original at
// scale 0.5 and returns the recording ops behind it.
func newPyramidCache(t *testing.T, width int, opt func(*Options)) (*Cache, *recordingOps, *PyramidEntry) {
	t.Helper()
	ops := &recordingOps{}
	c := newTestCache(t, func(o *Options) {
		o.Ops = ops
		if opt != nil {
			opt(o)
		}
	})
	orig, err := c.SetOriginalRaster(gradient(t, raster.Gray8, width, width), 0.5)
	if err != nil {
		t.Fatalf("SetOriginalRaster: %v", err)
	}
	return c, ops, orig
}

func mustPyramid(t *testing.T, c *Cache, scale float64, width int) *PyramidEntry {
	t.Helper()
	e, err := c.Pyramid(context.Background(), raster.Gray8, scale, width)
	if err != nil {
		t.Fatalf("Pyramid(%v, %d): %v", scale, width, err)
	}
	return e
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-3 }
