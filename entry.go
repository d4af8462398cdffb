package scalecache

import (
	"context"
	"fmt"
	"math"

	"github.com/unkn0wn-root/scalecache/raster"
)

// ScaleTolerance is the relative gap under which two scales are the same key.
const ScaleTolerance = 0.01

// EntryKind is the closed set of entry variants. Entries of different kinds
// order by kind alone and are never comparable by distance.
type EntryKind uint8

const (
	KindPyramid EntryKind = iota + 1
	KindDoG
	KindDerivative
)

func (k EntryKind) String() string {
	switch k {
	case KindPyramid:
		return "pyramid"
	case KindDoG:
		return "dog"
	case KindDerivative:
		return "derivative"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Entry is one unit of cached work.
//
// Less is only called with an entry of the same Kind and must be a strict
// weak ordering. Distance returns +Inf for entries of another kind and 0
// for identical keys. Generate fills the payload and may call c.Get for
// its dependencies; it must not be called on an entry that is already
// stored. Once an entry is stored in a Cache it is owned by it and its
// payload must not change.
type Entry interface {
	Kind() EntryKind
	Less(other Entry) bool
	Distance(other Entry) float64
	Generate(ctx context.Context, c *Cache) error
	Payload() *raster.Raster
	MemoryFootprint() int64
	String() string
}

// Resolver is implemented by entries whose key depends on the original
// entry (for example a width left at 0). The cache calls Resolve before
// using the entry as a probe.
type Resolver interface {
	Resolve(c *Cache) error
}

// payload is embedded by the concrete entries.
type payload struct {
	raster *raster.Raster
}

func (p *payload) Payload() *raster.Raster { return p.raster }

// MemoryFootprint is ceil(width * height * bytesPerPixel) of the payload.
func (p *payload) MemoryFootprint() int64 { return p.raster.Footprint() }

func entryLess(a, b Entry) bool {
	if ka, kb := a.Kind(), b.Kind(); ka != kb {
		return ka < kb
	}
	return a.Less(b)
}

func entryEqual(a, b Entry) bool {
	return !entryLess(a, b) && !entryLess(b, a)
}

func entryDistance(a, b Entry) float64 {
	if a.Kind() != b.Kind() {
		return math.Inf(1)
	}
	return a.Distance(b)
}

// scalesEqual reports whether a and b are within ScaleTolerance of each other.
func scalesEqual(a, b float64) bool {
	if a == b {
		return true
	}
	lo, hi := math.Min(a, b), math.Max(a, b)
	if lo <= 0 {
		return false
	}
	return hi/lo-1 < ScaleTolerance
}

// relativeGap is max/min - 1, or 0 when either side is 0.
func relativeGap(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	lo, hi := math.Min(a, b), math.Max(a, b)
	return hi/lo - 1
}
