package scalecache

import (
	"context"
	"fmt"
	"math"

	"github.com/unkn0wn-root/scalecache/raster"
)

// octaveNoise absorbs float error in log2 so a scale sitting on an octave
// boundary is not assigned to the octave below it.
const octaveNoise = 1e-6

// PyramidEntry is one (format, scale, width) level of the scale space.
//
// Scale is the blur radius in pixels of the original full-resolution
// image. Width 0 means "whatever resolution suits the scale" and is
// resolved to origWidth >> octave before lookup.
type PyramidEntry struct {
	payload
	format raster.Format
	scale  float64
	width  int
	height int
}

var (
	_ Entry    = (*PyramidEntry)(nil)
	_ Resolver = (*PyramidEntry)(nil)
)

// NewPyramidEntry builds a probe; Get either returns the stored equal entry
// or generates this one.
func NewPyramidEntry(f raster.Format, scale float64, width int) *PyramidEntry {
	return &PyramidEntry{format: f, scale: scale, width: width}
}

// NewOriginal wraps a captured image taken at the given base scale.
func NewOriginal(r *raster.Raster, scale float64) (*PyramidEntry, error) {
	if err := r.Validate(); err != nil {
		return nil, usageError("new_original", "invalid raster", err)
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, usageError("new_original", fmt.Sprintf("base scale %v must be positive", scale), nil)
	}
	return &PyramidEntry{
		payload: payload{raster: r},
		format:  r.Format,
		scale:   scale,
		width:   r.Width,
		height:  r.Height,
	}, nil
}

func (e *PyramidEntry) Kind() EntryKind       { return KindPyramid }
func (e *PyramidEntry) Format() raster.Format { return e.format }
func (e *PyramidEntry) Scale() float64        { return e.scale }
func (e *PyramidEntry) Width() int            { return e.width }

// Height is known once the entry is generated (or for the original).
func (e *PyramidEntry) Height() int { return e.height }

func (e *PyramidEntry) String() string {
	return fmt.Sprintf("pyramid %s scale=%.4g width=%d", e.format, e.scale, e.width)
}

// Resolve validates the key and fills in an unconstrained width.
func (e *PyramidEntry) Resolve(c *Cache) error {
	if e.scale < 0 || math.IsNaN(e.scale) || math.IsInf(e.scale, 0) || e.width < 0 {
		return usageError("resolve", "invalid key "+e.String(), nil)
	}
	if e.width != 0 {
		return nil
	}
	orig, err := c.originalPyramid("resolve")
	if err != nil {
		return err
	}
	e.width = orig.octaveWidth(orig.octaveOf(e.scale))
	return nil
}

// Less orders by format, then scale (within ScaleTolerance), then width
// descending.
func (e *PyramidEntry) Less(other Entry) bool {
	o := other.(*PyramidEntry)
	if e.format != o.format {
		return e.format < o.format
	}
	if !scalesEqual(e.scale, o.scale) {
		return e.scale < o.scale
	}
	return e.width > o.width
}

// Distance weighs scale gaps four times heavier than width gaps.
func (e *PyramidEntry) Distance(other Entry) float64 {
	o, ok := other.(*PyramidEntry)
	if !ok || e.format != o.format {
		return inf
	}
	return 4*relativeGap(e.scale, o.scale) + relativeGap(float64(e.width), float64(o.width))
}

// Generate derives the level from the closest stored source, descending
// one octave at a time through c when nothing usable is stored.
func (e *PyramidEntry) Generate(ctx context.Context, c *Cache) error {
	if e.raster != nil {
		return nil
	}
	orig, err := c.originalPyramid("generate")
	if err != nil {
		return err
	}
	if e.width == 0 {
		e.width = orig.octaveWidth(orig.octaveOf(e.scale))
	}
	e.height = orig.heightFor(e.width)

	src := e.nearestSource(c)
	if src == nil {
		if src, err = e.octaveSource(ctx, c, orig); err != nil {
			return err
		}
	}

	out, err := resampleInto(c.Ops(), orig, src, e)
	if err != nil {
		return err
	}
	e.raster = out
	return nil
}

// nearestSource looks at stored entries sorting before e. The first one at
// e's scale is the narrowest that is still wider, and is resized directly.
// Otherwise the best candidate within one octave of blur (scale >= e/2) and
// one octave of resolution (width in [w, 2w]) is the one with the smallest
// width ratio.
func (e *PyramidEntry) nearestSource(c *Cache) *PyramidEntry {
	var best *PyramidEntry
	bestGap := inf
	c.descendBefore(e, func(x Entry) bool {
		p, ok := x.(*PyramidEntry)
		if !ok || p.format != e.format {
			return false
		}
		if scalesEqual(p.scale, e.scale) {
			best = p
			return false
		}
		if p.scale < e.scale/2 {
			return false
		}
		if p.width < e.width || p.width > 2*e.width {
			return true
		}
		if g := relativeGap(float64(p.width), float64(e.width)); g < bestGap {
			best, bestGap = p, g
		}
		return true
	})
	return best
}

// octaveSource falls back to the original or to the octave boundary level
// below e, generating that level through c if needed.
func (e *PyramidEntry) octaveSource(ctx context.Context, c *Cache, orig *PyramidEntry) (*PyramidEntry, error) {
	if e.scale < orig.scale {
		return orig, nil
	}
	target := orig.octaveTarget(e)
	if target == nil {
		return orig, nil
	}
	if orig.rank(target) >= orig.rank(e) {
		panic(fmt.Sprintf("scalecache: octave recursion from %s to %s does not descend", e, target))
	}
	got, err := c.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	return got.(*PyramidEntry), nil
}

// The helpers below are called on the original entry.

// octaveOf is floor(log2(scale / o.scale)), clamped at 0.
func (o *PyramidEntry) octaveOf(scale float64) int {
	if scale <= o.scale {
		return 0
	}
	l := math.Log2(scale / o.scale)
	n := math.Floor(l)
	if l-n > 1-octaveNoise {
		n++
	}
	return int(n)
}

func (o *PyramidEntry) octaveScale(n int) float64 {
	return o.scale * math.Exp2(float64(n))
}

func (o *PyramidEntry) octaveWidth(n int) int {
	if n >= 63 {
		return 1
	}
	if w := o.width >> uint(n); w > 0 {
		return w
	}
	return 1
}

func (o *PyramidEntry) heightFor(width int) int {
	if width == o.width {
		return o.height
	}
	h := int(math.Round(float64(o.height) * float64(width) / float64(o.width)))
	if h < 1 {
		return 1
	}
	return h
}

// boundaryWidth keeps a level at least as wide as the request, so a wide
// level is never rebuilt from a narrower boundary.
func (o *PyramidEntry) boundaryWidth(n, width int) int {
	return min(max(width, o.octaveWidth(n)), max(o.width, o.octaveWidth(n)))
}

// onBoundary reports whether e sits on the boundary of octave n at any width
// from the octave width up to the original's.
func (o *PyramidEntry) onBoundary(e *PyramidEntry, n int) bool {
	return scalesEqual(e.scale, o.octaveScale(n)) && e.width == o.boundaryWidth(n, e.width)
}

// octaveTarget is the boundary level e recurses to, or nil when that is the
// original itself.
func (o *PyramidEntry) octaveTarget(e *PyramidEntry) *PyramidEntry {
	n := o.octaveOf(e.scale)
	if n > 0 && o.onBoundary(e, n) {
		n--
	}
	if n == 0 {
		return nil
	}
	return NewPyramidEntry(e.format, o.octaveScale(n), o.boundaryWidth(n, e.width))
}

// rank strictly decreases along every recursive octaveSource step: a level
// inside octave n recurses to the boundary of n, a boundary of n to the
// boundary of n-1. boundaryWidth never narrows below the octave width, so the
// target always counts as a boundary.
func (o *PyramidEntry) rank(e *PyramidEntry) int {
	n := o.octaveOf(e.scale)
	if o.onBoundary(e, n) {
		return 2 * n
	}
	return 2*n + 1
}

// Pyramid returns the level at (scale, width), generating it if needed.
// Width 0 selects the octave width for scale.
func (c *Cache) Pyramid(ctx context.Context, f raster.Format, scale float64, width int) (*PyramidEntry, error) {
	e, err := c.Get(ctx, NewPyramidEntry(f, scale, width))
	if err != nil {
		return nil, err
	}
	return e.(*PyramidEntry), nil
}
