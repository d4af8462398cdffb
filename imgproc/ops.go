package imgproc

import (
	"fmt"
	"math"

	"github.com/unkn0wn-root/scalecache/raster"
)

// Ops is the stateless default operator set.
type Ops struct{}

// Convert re-expresses src in format to.
func (Ops) Convert(src *raster.Raster, to raster.Format) (*raster.Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	out, err := raster.New(to, src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	sc, dc := src.Format.Channels(), to.Channels()
	n := src.Width * src.Height
	for i := 0; i < n; i++ {
		in := src.Pix[i*sc : i*sc+sc]
		dst := out.Pix[i*dc : i*dc+dc]
		switch {
		case sc == dc:
			copy(dst, in)
		case sc == 3 && dc == 1:
			dst[0] = raster.Luma(in[0], in[1], in[2])
		case sc == 1 && dc == 3:
			dst[0], dst[1], dst[2] = in[0], in[0], in[0]
		default:
			return nil, fmt.Errorf("%w: %s -> %s", raster.ErrUnsupportedFormat, src.Format, to)
		}
	}
	out.QuantizeInPlace()
	return out, nil
}

// Blur convolves src with a Gaussian of the given sigma along dir.
// A sigma of zero returns a copy.
func (Ops) Blur(src *raster.Raster, sigma float64, dir raster.Direction) (*raster.Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("%w: blur sigma %v", raster.ErrDegenerate, sigma)
	}
	if sigma == 0 {
		return src.Clone(), nil
	}
	k := Kernel(sigma)
	out := src
	if dir == raster.Both || dir == raster.Horizontal {
		out = convolveX(out, k)
	}
	if dir == raster.Both || dir == raster.Vertical {
		out = convolveY(out, k)
	}
	if out == src {
		return nil, fmt.Errorf("%w: blur direction %s", raster.ErrDegenerate, dir)
	}
	out.QuantizeInPlace()
	return out, nil
}

// Decimate downsamples src by an integer ratio in one pass. before is the
// blur already present in src (source pixels), after the blur wanted in the
// output (output pixels); the missing amount is applied before sampling.
func (o Ops) Decimate(src *raster.Raster, ratio int, before, after float64) (*raster.Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if ratio < 2 {
		return nil, fmt.Errorf("%w: decimate ratio %d", raster.ErrDegenerate, ratio)
	}
	pre := 0.0
	if d := after*float64(ratio)*after*float64(ratio) - before*before; d > 0 {
		pre = math.Sqrt(d)
	}
	blurred := src
	if pre > 0 {
		k := Kernel(pre)
		blurred = convolveY(convolveX(src, k), k)
	}

	w := (src.Width + ratio - 1) / ratio
	h := (src.Height + ratio - 1) / ratio
	out, err := raster.New(src.Format, w, h)
	if err != nil {
		return nil, err
	}
	off := float64(ratio-1) / 2
	ch := src.Format.Channels()
	for y := 0; y < h; y++ {
		sy := float64(y*ratio) + off
		for x := 0; x < w; x++ {
			sx := float64(x*ratio) + off
			for c := 0; c < ch; c++ {
				out.Set(x, y, c, bilinear(blurred, sx, sy, c))
			}
		}
	}
	out.QuantizeInPlace()
	return out, nil
}

// Resample maps src onto a width x height grid where one output pixel
// spans 1/ratio source pixels on both axes.
func (Ops) Resample(src *raster.Raster, width, height int, ratio float64) (*raster.Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, fmt.Errorf("%w: resample ratio %v", raster.ErrDegenerate, ratio)
	}
	out, err := raster.New(src.Format, width, height)
	if err != nil {
		return nil, err
	}
	ch := src.Format.Channels()
	for y := 0; y < height; y++ {
		sy := (float64(y)+0.5)/ratio - 0.5
		for x := 0; x < width; x++ {
			sx := (float64(x)+0.5)/ratio - 0.5
			for c := 0; c < ch; c++ {
				out.Set(x, y, c, bilinear(src, sx, sy, c))
			}
		}
	}
	out.QuantizeInPlace()
	return out, nil
}

// Subtract returns a - b in the unquantized variant of their format.
func (Ops) Subtract(a, b *raster.Raster) (*raster.Raster, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if a.Width != b.Width || a.Height != b.Height || a.Format.Channels() != b.Format.Channels() {
		return nil, fmt.Errorf("%w: subtract %s %dx%d and %s %dx%d",
			raster.ErrDegenerate, a.Format, a.Width, a.Height, b.Format, b.Width, b.Height)
	}
	out, err := raster.New(a.Format.Float(), a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	for i := range out.Pix {
		out.Pix[i] = a.Pix[i] - b.Pix[i]
	}
	return out, nil
}

// Derivative is the central finite difference of a single-channel raster
// along Horizontal or Vertical, with replicated borders.
func (Ops) Derivative(src *raster.Raster, dir raster.Direction) (*raster.Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.Format.Channels() != 1 {
		return nil, fmt.Errorf("%w: derivative of %s", raster.ErrUnsupportedFormat, src.Format)
	}
	dx, dy := 0, 0
	switch dir {
	case raster.Horizontal:
		dx = 1
	case raster.Vertical:
		dy = 1
	default:
		return nil, fmt.Errorf("%w: derivative direction %s", raster.ErrDegenerate, dir)
	}
	out, err := raster.New(src.Format.Float(), src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			v := (src.Clamped(x+dx, y+dy, 0) - src.Clamped(x-dx, y-dy, 0)) / 2
			out.Set(x, y, 0, v)
		}
	}
	return out, nil
}

func bilinear(r *raster.Raster, x, y float64, c int) float32 {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := float32(x-x0), float32(y-y0)
	ix, iy := int(x0), int(y0)
	top := r.Clamped(ix, iy, c)*(1-fx) + r.Clamped(ix+1, iy, c)*fx
	bot := r.Clamped(ix, iy+1, c)*(1-fx) + r.Clamped(ix+1, iy+1, c)*fx
	return top*(1-fy) + bot*fy
}
