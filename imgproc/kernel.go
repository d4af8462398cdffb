package imgproc

import (
	"math"

	"github.com/unkn0wn-root/scalecache/raster"
)

// Kernel returns a normalised 1-D Gaussian truncated at 3 sigma.
// Its length is always odd, the centre tap sits at len/2.
func Kernel(sigma float64) []float32 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	k := make([]float32, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+radius] = float32(v)
		sum += v
	}
	for i := range k {
		k[i] = float32(float64(k[i]) / sum)
	}
	return k
}

func convolveX(src *raster.Raster, k []float32) *raster.Raster {
	out := &raster.Raster{Format: src.Format, Width: src.Width, Height: src.Height, Pix: make([]float32, len(src.Pix))}
	radius := len(k) / 2
	ch := src.Format.Channels()
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			for c := 0; c < ch; c++ {
				var acc float32
				for i, w := range k {
					acc += w * src.Clamped(x+i-radius, y, c)
				}
				out.Set(x, y, c, acc)
			}
		}
	}
	return out
}

func convolveY(src *raster.Raster, k []float32) *raster.Raster {
	out := &raster.Raster{Format: src.Format, Width: src.Width, Height: src.Height, Pix: make([]float32, len(src.Pix))}
	radius := len(k) / 2
	ch := src.Format.Channels()
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			for c := 0; c < ch; c++ {
				var acc float32
				for i, w := range k {
					acc += w * src.Clamped(x, y+i-radius, c)
				}
				out.Set(x, y, c, acc)
			}
		}
	}
	return out
}
