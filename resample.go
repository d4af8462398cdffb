package scalecache

import (
	"fmt"
	"math"

	"github.com/unkn0wn-root/scalecache/raster"
)

// minSigma is the additional blur (source pixels) below which none is applied.
const minSigma = 1e-3

type planKind uint8

const (
	planCopy planKind = iota
	planBlur
	planDecimate
	planResample
)

func (k planKind) String() string {
	switch k {
	case planCopy:
		return "copy"
	case planBlur:
		return "blur"
	case planDecimate:
		return "decimate"
	case planResample:
		return "resample"
	}
	return fmt.Sprintf("plan(%d)", uint8(k))
}

// plan is the operator choice for one src -> dst derivation.
type plan struct {
	kind   planKind
	sigma  float64 // additional blur in source pixels (blur, resample)
	ratio  int     // decimate
	before float64 // native blur of src (decimate)
	after  float64 // native blur of dst (decimate)
	scale  float64 // output/input pixels (resample)
}

// nativeScale is the blur of e expressed in e's own pixels.
func nativeScale(scale float64, width, origWidth int) float64 {
	return scale * float64(width) / float64(origWidth)
}

func planFor(origWidth int, src, dst *PyramidEntry) plan {
	srcNative := nativeScale(src.scale, src.width, origWidth)
	dstNative := nativeScale(dst.scale, dst.width, origWidth)
	dstInSrc := nativeScale(dst.scale, src.width, origWidth)

	sigma := 0.0
	if d := dstInSrc*dstInSrc - srcNative*srcNative; d > 0 {
		sigma = math.Sqrt(d)
	}

	switch {
	case src.width == dst.width:
		if sigma < minSigma {
			return plan{kind: planCopy}
		}
		return plan{kind: planBlur, sigma: sigma}
	case src.width > dst.width && src.width%dst.width == 0:
		r := src.width / dst.width
		consistent := dstNative*float64(r) >= srcNative*(1-ScaleTolerance)
		if r >= 2 && consistent && (src.height+r-1)/r == dst.height {
			return plan{kind: planDecimate, ratio: r, before: srcNative, after: dstNative}
		}
	}
	return plan{
		kind:  planResample,
		sigma: sigma,
		scale: float64(dst.width) / float64(src.width),
	}
}

// resampleInto produces dst's payload from src's.
func resampleInto(ops Ops, orig, src, dst *PyramidEntry) (*raster.Raster, error) {
	in := src.raster
	if in.Format != dst.format {
		conv, err := ops.Convert(in, dst.format)
		if err != nil {
			return nil, err
		}
		in = conv
	}

	var (
		out *raster.Raster
		err error
	)
	p := planFor(orig.width, src, dst)
	switch p.kind {
	case planCopy:
		out = in
	case planBlur:
		out, err = ops.Blur(in, p.sigma, raster.Both)
	case planDecimate:
		out, err = ops.Decimate(in, p.ratio, p.before, p.after)
	default:
		if p.sigma >= minSigma {
			if in, err = ops.Blur(in, p.sigma, raster.Both); err != nil {
				return nil, err
			}
		}
		out, err = ops.Resample(in, dst.width, dst.height, p.scale)
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.Format != dst.format || out.Width != dst.width || out.Height != dst.height {
		return nil, &Error{
			Kind: ErrorKindNumericFailure,
			Op:   "generate",
			Msg:  fmt.Sprintf("%s produced %s, want %s %dx%d", p.kind, describeRaster(out), dst.format, dst.width, dst.height),
		}
	}
	return out, nil
}

func describeRaster(r *raster.Raster) string {
	if r == nil {
		return "no raster"
	}
	return fmt.Sprintf("%s %dx%d", r.Format, r.Width, r.Height)
}
