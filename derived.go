package scalecache

import (
	"context"
	"fmt"
	"math"

	"github.com/unkn0wn-root/scalecache/raster"
)

// DoGEntry is the difference of two pyramid levels of one width: the
// outer (blurrier) level minus the inner one. It keeps the two scales by
// value and fetches both levels through the cache on Generate.
type DoGEntry struct {
	payload
	format raster.Format
	inner  float64
	outer  float64
	width  int
	// derived is sqrt(inner*outer), the ordering scale of the pair.
	derived float64
}

var (
	_ Entry    = (*DoGEntry)(nil)
	_ Resolver = (*DoGEntry)(nil)
)

// NewDoGEntry builds a probe for the difference between scales s1 and s2.
// The order of s1 and s2 does not matter. Width 0 picks the octave width
// of the smaller scale.
func NewDoGEntry(f raster.Format, s1, s2 float64, width int) *DoGEntry {
	inner, outer := math.Min(s1, s2), math.Max(s1, s2)
	return &DoGEntry{
		format:  f,
		inner:   inner,
		outer:   outer,
		width:   width,
		derived: math.Sqrt(inner * outer),
	}
}

func (e *DoGEntry) Kind() EntryKind       { return KindDoG }
func (e *DoGEntry) Format() raster.Format { return e.format }
func (e *DoGEntry) Scale() float64        { return e.derived }
func (e *DoGEntry) Width() int            { return e.width }

// Scales returns the inner and outer pyramid scales.
func (e *DoGEntry) Scales() (inner, outer float64) { return e.inner, e.outer }

func (e *DoGEntry) String() string {
	return fmt.Sprintf("dog %s scale=%.4g (%.4g-%.4g) width=%d", e.format, e.derived, e.outer, e.inner, e.width)
}

func (e *DoGEntry) Resolve(c *Cache) error {
	if !(e.inner > 0) || math.IsInf(e.outer, 0) || e.width < 0 {
		return usageError("resolve", "invalid key "+e.String(), nil)
	}
	if e.width != 0 {
		return nil
	}
	orig, err := c.originalPyramid("resolve")
	if err != nil {
		return err
	}
	e.width = orig.octaveWidth(orig.octaveOf(e.inner))
	return nil
}

// Less orders by format, derived scale, inner scale, then width descending.
func (e *DoGEntry) Less(other Entry) bool {
	o := other.(*DoGEntry)
	if e.format != o.format {
		return e.format < o.format
	}
	if !scalesEqual(e.derived, o.derived) {
		return e.derived < o.derived
	}
	if !scalesEqual(e.inner, o.inner) {
		return e.inner < o.inner
	}
	return e.width > o.width
}

func (e *DoGEntry) Distance(other Entry) float64 {
	o, ok := other.(*DoGEntry)
	if !ok || e.format != o.format {
		return inf
	}
	return 4*relativeGap(e.derived, o.derived) +
		4*relativeGap(e.inner, o.inner) +
		relativeGap(float64(e.width), float64(o.width))
}

func (e *DoGEntry) Generate(ctx context.Context, c *Cache) error {
	if e.raster != nil {
		return nil
	}
	if err := e.Resolve(c); err != nil {
		return err
	}
	inner, err := c.Get(ctx, NewPyramidEntry(e.format, e.inner, e.width))
	if err != nil {
		return err
	}
	outer, err := c.Get(ctx, NewPyramidEntry(e.format, e.outer, e.width))
	if err != nil {
		return err
	}
	out, err := c.Ops().Subtract(outer.Payload(), inner.Payload())
	if err != nil {
		return err
	}
	e.raster = out
	return nil
}

// DerivativeEntry is the central finite difference of one pyramid level
// along Horizontal or Vertical. Only single-channel formats are supported.
type DerivativeEntry struct {
	payload
	format raster.Format
	dir    raster.Direction
	scale  float64
	width  int
	// derived is hypot(scale, spacing/2), spacing being the level's pixel
	// pitch in original pixels; set by Resolve.
	derived float64
}

var (
	_ Entry    = (*DerivativeEntry)(nil)
	_ Resolver = (*DerivativeEntry)(nil)
)

func NewDerivativeEntry(f raster.Format, dir raster.Direction, scale float64, width int) *DerivativeEntry {
	return &DerivativeEntry{format: f, dir: dir, scale: scale, width: width}
}

func (e *DerivativeEntry) Kind() EntryKind             { return KindDerivative }
func (e *DerivativeEntry) Format() raster.Format       { return e.format }
func (e *DerivativeEntry) Direction() raster.Direction { return e.dir }
func (e *DerivativeEntry) Scale() float64              { return e.derived }
func (e *DerivativeEntry) Width() int                  { return e.width }

// SourceScale is the scale of the pyramid level being differentiated.
func (e *DerivativeEntry) SourceScale() float64 { return e.scale }

func (e *DerivativeEntry) String() string {
	return fmt.Sprintf("derivative %s d%s scale=%.4g (of %.4g) width=%d", e.format, e.dir, e.derived, e.scale, e.width)
}

func (e *DerivativeEntry) Resolve(c *Cache) error {
	if e.dir != raster.Horizontal && e.dir != raster.Vertical {
		return usageError("resolve", "derivative direction must be x or y: "+e.String(), nil)
	}
	if e.scale < 0 || math.IsNaN(e.scale) || math.IsInf(e.scale, 0) || e.width < 0 {
		return usageError("resolve", "invalid key "+e.String(), nil)
	}
	if e.width != 0 && e.derived != 0 {
		return nil
	}
	orig, err := c.originalPyramid("resolve")
	if err != nil {
		return err
	}
	if e.width == 0 {
		e.width = orig.octaveWidth(orig.octaveOf(e.scale))
	}
	spacing := float64(orig.width) / float64(e.width)
	e.derived = math.Hypot(e.scale, spacing/2)
	return nil
}

// Less orders by format, direction, derived scale, then width descending.
func (e *DerivativeEntry) Less(other Entry) bool {
	o := other.(*DerivativeEntry)
	if e.format != o.format {
		return e.format < o.format
	}
	if e.dir != o.dir {
		return e.dir < o.dir
	}
	if !scalesEqual(e.derived, o.derived) {
		return e.derived < o.derived
	}
	return e.width > o.width
}

func (e *DerivativeEntry) Distance(other Entry) float64 {
	o, ok := other.(*DerivativeEntry)
	if !ok || e.format != o.format || e.dir != o.dir {
		return inf
	}
	return 4*relativeGap(e.derived, o.derived) + relativeGap(float64(e.width), float64(o.width))
}

func (e *DerivativeEntry) Generate(ctx context.Context, c *Cache) error {
	if e.raster != nil {
		return nil
	}
	if err := e.Resolve(c); err != nil {
		return err
	}
	src, err := c.Get(ctx, NewPyramidEntry(e.format, e.scale, e.width))
	if err != nil {
		return err
	}
	out, err := c.Ops().Derivative(src.Payload(), e.dir)
	if err != nil {
		return err
	}
	e.raster = out
	return nil
}
