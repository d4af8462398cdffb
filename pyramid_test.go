package scalecache

import (
	"context"
	"math"
	"testing"

	"github.com/unkn0wn-root/scalecache/raster"
)

func expectCalls(t *testing.T, got []opCall, want ...opCall) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.op != w.op || g.ratio != w.ratio || !approx(g.sigma, w.sigma) ||
			!approx(g.before, w.before) || !approx(g.after, w.after) ||
			(w.width != 0 && g.width != w.width) {
			t.Fatalf("call %d = %v, want %v", i, g, w)
		}
	}
}

func TestPyramidOrdering(t *testing.T) {
	p := func(f raster.Format, s float64, w int) *PyramidEntry { return NewPyramidEntry(f, s, w) }
	cases := []struct {
		name string
		a, b *PyramidEntry
		less bool
	}{
		{"scale", p(raster.Gray8, 1, 128), p(raster.Gray8, 2, 128), true},
		{"scale reversed", p(raster.Gray8, 2, 128), p(raster.Gray8, 1, 128), false},
		{"width descending", p(raster.Gray8, 1, 256), p(raster.Gray8, 1, 128), true},
		{"narrower later", p(raster.Gray8, 1, 128), p(raster.Gray8, 1, 256), false},
		{"within tolerance is width only", p(raster.Gray8, 1.005, 256), p(raster.Gray8, 1, 128), true},
		{"outside tolerance", p(raster.Gray8, 1, 128), p(raster.Gray8, 1.02, 256), true},
		{"format first", p(raster.Gray8, 8, 1), p(raster.GrayF32, 0.1, 512), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Less(tc.b); got != tc.less {
				t.Fatalf("%s < %s = %v, want %v", tc.a, tc.b, got, tc.less)
			}
		})
	}

	a, b := p(raster.Gray8, 1, 128), p(raster.Gray8, 1.009, 128)
	if a.Less(b) || b.Less(a) {
		t.Fatalf("scales within 1%% with equal width must be the same key")
	}
}

// TestPyramidStrictWeakOrder checks irreflexivity, asymmetry and
// transitivity over a grid whose scales are well apart.
func TestPyramidStrictWeakOrder(t *testing.T) {
	var grid []*PyramidEntry
	for _, f := range []raster.Format{raster.Gray8, raster.RGBF32} {
		for _, s := range []float64{0.5, 0.503, 1, 1.5, 2} {
			for _, w := range []int{256, 128, 64} {
				grid = append(grid, NewPyramidEntry(f, s, w))
			}
		}
	}
	for _, a := range grid {
		if a.Less(a) {
			t.Fatalf("%s < itself", a)
		}
		for _, b := range grid {
			if a.Less(b) && b.Less(a) {
				t.Fatalf("%s and %s are both less", a, b)
			}
			for _, c := range grid {
				if a.Less(b) && b.Less(c) && !a.Less(c) {
					t.Fatalf("not transitive: %s < %s < %s", a, b, c)
				}
			}
		}
	}
}

func TestPyramidDistance(t *testing.T) {
	a := NewPyramidEntry(raster.Gray8, 1, 128)
	cases := []struct {
		name string
		b    Entry
		want float64
	}{
		{"self", a, 0},
		{"same key", NewPyramidEntry(raster.Gray8, 1, 128), 0},
		{"double scale", NewPyramidEntry(raster.Gray8, 2, 128), 4},
		{"double width", NewPyramidEntry(raster.Gray8, 1, 256), 1},
		{"other format", NewPyramidEntry(raster.RGB8, 1, 128), math.Inf(1)},
		{"other kind", NewDoGEntry(raster.Gray8, 1, 2, 128), math.Inf(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := entryDistance(a, tc.b); got != tc.want {
				t.Fatalf("distance = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewOriginalValidation(t *testing.T) {
	r := mustRaster(t, raster.Gray8, 4, 4)
	if _, err := NewOriginal(r, 0); err == nil {
		t.Fatalf("scale 0 must be rejected")
	}
	if _, err := NewOriginal(r, math.Inf(1)); err == nil {
		t.Fatalf("infinite scale must be rejected")
	}
	if _, err := NewOriginal(&raster.Raster{Format: raster.Gray8, Width: 2, Height: 2}, 1); err == nil {
		t.Fatalf("raster without samples must be rejected")
	}
	o, err := NewOriginal(r, 0.5)
	if err != nil {
		t.Fatalf("NewOriginal: %v", err)
	}
	if o.Width() != 4 || o.Height() != 4 || o.Format() != raster.Gray8 {
		t.Fatalf("unexpected original %s", o)
	}
}

func TestPyramidInvalidKey(t *testing.T) {
	c, _, _ := newPyramidCache(t, 16, nil)
	for _, q := range []*PyramidEntry{
		NewPyramidEntry(raster.Gray8, -1, 8),
		NewPyramidEntry(raster.Gray8, math.NaN(), 8),
		NewPyramidEntry(raster.Gray8, 1, -8),
	} {
		_, err := c.Get(context.Background(), q)
		if k, _ := KindOf(err); k != ErrorKindUsage {
			t.Fatalf("Get(%s): want usage error, got %v", q, err)
		}
	}
}

// Scenario (a): same scale at half the width is an exact decimation.
func TestScenarioHalvingDecimates(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 256, nil)
	e := mustPyramid(t, c, 0.5, 128)

	expectCalls(t, ops.Calls(), opCall{op: "decimate", ratio: 2, before: 0.5, after: 0.25, width: 256})
	if e.Width() != 128 || e.Height() != 128 || e.Payload().Width != 128 {
		t.Fatalf("unexpected level %s %dx%d", e, e.Payload().Width, e.Payload().Height)
	}
}

// Scenario (b): same width at a larger scale only blurs.
func TestScenarioSameWidthBlurs(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 256, nil)
	e := mustPyramid(t, c, 1.0, 256)

	expectCalls(t, ops.Calls(), opCall{op: "blur", sigma: math.Sqrt(0.75)})
	if e.Payload().Width != 256 {
		t.Fatalf("blur must keep the width, got %d", e.Payload().Width)
	}
}

// Scenario (c): two octaves up recurses through the first octave boundary,
// which stays memoised.
func TestScenarioOctaveRecursion(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 256, nil)
	top := mustPyramid(t, c, 2.0, 64)

	expectCalls(t, ops.Calls(),
		opCall{op: "decimate", ratio: 2, before: 0.5, after: 0.5, width: 256},
		opCall{op: "decimate", ratio: 2, before: 0.5, after: 0.5, width: 128},
	)
	if top.Payload().Width != 64 || c.Len() != 3 {
		t.Fatalf("want original + intermediate + top, Len=%d", c.Len())
	}

	mid, ok := c.GetLE(NewPyramidEntry(raster.Gray8, 1.0, 128))
	if !ok || mid.(*PyramidEntry).Width() != 128 {
		t.Fatalf("intermediate (1.0, 128) must be stored")
	}

	ops.Reset()
	again := mustPyramid(t, c, 1.0, 128)
	if again != mid {
		t.Fatalf("intermediate must be returned as stored")
	}
	byOctave := mustPyramid(t, c, 1.0, 0)
	if byOctave != mid {
		t.Fatalf("width 0 must resolve to the octave width")
	}
	if calls := ops.Calls(); len(calls) != 0 {
		t.Fatalf("memoised levels must not regenerate: %v", calls)
	}
}

// TestScenarioSequence runs (a), (b), (c) on one cache so earlier levels
// become candidate sources for later ones.
func TestScenarioSequence(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 256, nil)
	mustPyramid(t, c, 0.5, 128)
	mustPyramid(t, c, 1.0, 256)
	ops.Reset()

	mustPyramid(t, c, 2.0, 64)
	// (1.0,128) is a pure resize of the stored (1.0,256)
	expectCalls(t, ops.Calls(),
		opCall{op: "decimate", ratio: 2, before: 1.0, after: 0.5, width: 256},
		opCall{op: "decimate", ratio: 2, before: 0.5, after: 0.5, width: 128},
	)
	if c.Len() != 5 {
		t.Fatalf("Len = %d, want 5", c.Len())
	}
}

func TestIntraOctaveLevel(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 256, nil)
	mustPyramid(t, c, 1.5, 128)

	expectCalls(t, ops.Calls(),
		opCall{op: "decimate", ratio: 2, before: 0.5, after: 0.5, width: 256},
		opCall{op: "blur", sigma: math.Sqrt(0.75*0.75 - 0.5*0.5), width: 128},
	)
}

func TestSameScalePrefersNarrowestWider(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 256, nil)

	mustPyramid(t, c, 0.5, 64)
	expectCalls(t, ops.Calls(), opCall{op: "decimate", ratio: 4, before: 0.5, after: 0.125, width: 256})

	mustPyramid(t, c, 0.5, 128)
	ops.Reset()
	mustPyramid(t, c, 0.5, 32)
	expectCalls(t, ops.Calls(), opCall{op: "decimate", ratio: 2, before: 0.125, after: 0.0625, width: 64})
}

func TestGenerateIsIdempotent(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 64, nil)
	first := mustPyramid(t, c, 1.0, 64)
	n := len(ops.Calls())
	second := mustPyramid(t, c, 1.004, 64)
	if first != second || len(ops.Calls()) != n {
		t.Fatalf("scale within tolerance must hit")
	}
	if err := first.Generate(context.Background(), c); err != nil || len(ops.Calls()) != n {
		t.Fatalf("generating a filled entry is a no-op: %v", err)
	}
}

func TestWidthZeroResolvesToOctave(t *testing.T) {
	c, _, _ := newPyramidCache(t, 256, nil)
	cases := []struct {
		scale float64
		width int
	}{
		{0.25, 256}, // below the base scale stays at full size
		{0.5, 256},
		{0.9, 256},
		{1.0, 128},
		{3.9, 64},
		{4.0, 32},
		{1 << 12, 1}, // never below one pixel
	}
	for _, tc := range cases {
		e := mustPyramid(t, c, tc.scale, 0)
		if e.Width() != tc.width {
			t.Fatalf("scale %v: width %d, want %d", tc.scale, e.Width(), tc.width)
		}
	}
}

func TestFormatConversion(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 32, nil)
	e, err := c.Get(context.Background(), NewPyramidEntry(raster.GrayF32, 0.5, 32))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	expectCalls(t, ops.Calls(), opCall{op: "convert"})
	if e.Payload().Format != raster.GrayF32 {
		t.Fatalf("want grayf32 payload, got %s", e.Payload().Format)
	}
}

func TestOperatorOutputChecked(t *testing.T) {
	c := newTestCache(t, func(o *Options) { o.Ops = shrinkingOps{} })
	if _, err := c.SetOriginalRaster(gradient(t, raster.Gray8, 16, 16), 0.5); err != nil {
		t.Fatalf("SetOriginalRaster: %v", err)
	}
	_, err := c.Pyramid(context.Background(), raster.Gray8, 1, 16)
	if k, _ := KindOf(err); k != ErrorKindNumericFailure {
		t.Fatalf("want numeric failure, got %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("bad output must not be stored")
	}
}

func TestPlanFor(t *testing.T) {
	lvl := func(s float64, w, h int) *PyramidEntry {
		return &PyramidEntry{format: raster.Gray8, scale: s, width: w, height: h}
	}
	cases := []struct {
		name     string
		src, dst *PyramidEntry
		kind     planKind
		sigma    float64
		ratio    int
	}{
		{"copy", lvl(0.5, 256, 256), lvl(0.5, 256, 256), planCopy, 0, 0},
		{"copy within tolerance", lvl(0.5, 256, 256), lvl(0.5000001, 256, 256), planCopy, 0, 0},
		{"blur", lvl(0.5, 256, 256), lvl(1, 256, 256), planBlur, math.Sqrt(0.75), 0},
		{"decimate", lvl(0.5, 256, 256), lvl(0.5, 128, 128), planDecimate, 0, 2},
		{"decimate odd height", lvl(0.5, 256, 255), lvl(0.5, 128, 128), planDecimate, 0, 2},
		{"height mismatch", lvl(0.5, 256, 255), lvl(0.5, 128, 127), planResample, 0, 0},
		{"non-integer ratio", lvl(0.5, 256, 256), lvl(0.5, 100, 100), planResample, 0, 0},
		{"blur would shrink", lvl(1, 256, 256), lvl(0.5, 128, 128), planResample, 0, 0},
		{"upsample", lvl(2, 64, 64), lvl(4, 128, 128), planResample, math.Sqrt(1 - 0.25), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := planFor(256, tc.src, tc.dst)
			if p.kind != tc.kind || !approx(p.sigma, tc.sigma) || p.ratio != tc.ratio {
				t.Fatalf("plan = %+v (%s), want %s sigma=%v ratio=%d", p, p.kind, tc.kind, tc.sigma, tc.ratio)
			}
		})
	}
}

func TestOctaveRankDescends(t *testing.T) {
	orig, err := NewOriginal(mustRaster(t, raster.Gray8, 256, 256), 0.5)
	if err != nil {
		t.Fatalf("NewOriginal: %v", err)
	}
	if n := orig.octaveOf(2 * (1 - 1e-7)); n != 2 {
		t.Fatalf("octaveOf just below a boundary = %d, want 2", n)
	}
	if n := orig.octaveOf(0.1); n != 0 {
		t.Fatalf("octaveOf below base = %d", n)
	}

	cases := []struct {
		scale float64
		width int
		rank  int
	}{
		{1.0, 128, 2},
		{1.5, 128, 3},
		{2.0, 64, 4},
		{2.0, 128, 4}, // wider than the octave is still a boundary
		{2.0, 256, 4},
		{2.0, 32, 5},
		{3.0, 64, 5},
		{3.0, 256, 5},
		{1.0, 512, 3}, // wider than the original
	}
	for _, tc := range cases {
		e := NewPyramidEntry(raster.Gray8, tc.scale, tc.width)
		if r := orig.rank(e); r != tc.rank {
			t.Fatalf("rank(%s) = %d, want %d", e, r, tc.rank)
		}
		target := orig.octaveTarget(e)
		if target == nil {
			continue
		}
		if orig.rank(target) >= orig.rank(e) {
			t.Fatalf("recursion from %s to %s does not descend", e, target)
		}
		if target.width < min(e.width, orig.width) {
			t.Fatalf("recursion from %s narrows to %s", e, target)
		}
	}
}

// A full-width level above the first octave is blurred up at full width,
// never rebuilt from a decimated level.
func TestFullWidthLevelStaysFullWidth(t *testing.T) {
	c, ops, _ := newPyramidCache(t, 256, nil)
	top := mustPyramid(t, c, 3.0, 256)

	expectCalls(t, ops.Calls(),
		opCall{op: "blur", sigma: math.Sqrt(1 - 0.25), width: 256},
		opCall{op: "blur", sigma: math.Sqrt(4 - 1), width: 256},
		opCall{op: "blur", sigma: math.Sqrt(9 - 4), width: 256},
	)
	if top.Payload().Width != 256 || c.Len() != 4 {
		t.Fatalf("want original + (1,256) + (2,256) + top, Len=%d", c.Len())
	}
	for _, s := range []float64{1.0, 2.0} {
		e, ok := c.GetLE(NewPyramidEntry(raster.Gray8, s, 256))
		if !ok || e.(*PyramidEntry).Width() != 256 || !scalesEqual(e.(*PyramidEntry).Scale(), s) {
			t.Fatalf("boundary (%v, 256) must be stored, got %v", s, e)
		}
	}
}
