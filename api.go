package scalecache

import (
	"github.com/unkn0wn-root/scalecache/imgproc"
	"github.com/unkn0wn-root/scalecache/raster"
)

// Ops are the numeric collaborators a cache delegates pixel work to.
// The cache decides which operator runs with which parameters; it never
// touches pixels itself. Implementations must not mutate their inputs.
type Ops interface {
	// Convert re-expresses src in another pixel format.
	Convert(src *raster.Raster, to raster.Format) (*raster.Raster, error)
	// Blur adds a Gaussian of sigma source pixels along dir.
	Blur(src *raster.Raster, sigma float64, dir raster.Direction) (*raster.Raster, error)
	// Decimate downsamples by an integer ratio >= 2; before is the native
	// blur of src, after the native blur wanted in the output.
	Decimate(src *raster.Raster, ratio int, before, after float64) (*raster.Raster, error)
	// Resample resizes src to width x height, ratio being output/input pixels.
	Resample(src *raster.Raster, width, height int, ratio float64) (*raster.Raster, error)
	// Subtract returns a - b pointwise.
	Subtract(a, b *raster.Raster) (*raster.Raster, error)
	// Derivative is a finite difference along Horizontal or Vertical.
	Derivative(src *raster.Raster, dir raster.Direction) (*raster.Raster, error)
}

var _ Ops = imgproc.Ops{}

// Options tune a Cache. The zero value is ready to use.
type Options struct {
	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
	Ops    Ops    // if nil, imgproc.Ops{} is used

	// BTreeDegree is the degree of the ordered entry tree; 0 => 16.
	BTreeDegree int

	// CoalesceMisses makes concurrent misses on equal keys wait for the
	// first generation instead of each generating and racing to insert.
	// Default false.
	CoalesceMisses bool
}

const defaultDegree = 16

// New builds an empty cache. Call SetOriginal before Get.
func New(opts Options) (*Cache, error) {
	return newCache(opts)
}
