// Package raster holds the pixel payload shared by cache entries and the
// numeric operators that produce them.
package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrUnsupportedFormat = errors.New("raster: unsupported format")
	ErrDegenerate        = errors.New("raster: degenerate raster")
)

// Raster is a row-major image with interleaved channels.
// Rasters handed out by a cache are shared and must be treated as read-only.
type Raster struct {
	Format Format
	Width  int
	Height int
	Pix    []float32
}

// New allocates a zeroed raster.
func New(f Format, width, height int) (*Raster, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDegenerate, width, height)
	}
	return &Raster{
		Format: f,
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*f.Channels()),
	}, nil
}

// Stride is the number of samples in one row.
func (r *Raster) Stride() int { return r.Width * r.Format.Channels() }

func (r *Raster) At(x, y, c int) float32 {
	return r.Pix[y*r.Stride()+x*r.Format.Channels()+c]
}

func (r *Raster) Set(x, y, c int, v float32) {
	r.Pix[y*r.Stride()+x*r.Format.Channels()+c] = v
}

// Clamped reads a sample with coordinates clamped to the raster bounds.
func (r *Raster) Clamped(x, y, c int) float32 {
	if x < 0 {
		x = 0
	} else if x >= r.Width {
		x = r.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= r.Height {
		y = r.Height - 1
	}
	return r.At(x, y, c)
}

// Validate checks that the raster has a known format, a positive area and
// a sample slice of the right length.
func (r *Raster) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil raster", ErrDegenerate)
	}
	if !r.Format.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, r.Format)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrDegenerate, r.Width, r.Height)
	}
	if want := r.Width * r.Height * r.Format.Channels(); len(r.Pix) != want {
		return fmt.Errorf("%w: %d samples, want %d", ErrDegenerate, len(r.Pix), want)
	}
	return nil
}

func (r *Raster) Clone() *Raster {
	out := *r
	out.Pix = append([]float32(nil), r.Pix...)
	return &out
}

// Equal reports whether both rasters have the same layout and samples.
func (r *Raster) Equal(o *Raster) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Format != o.Format || r.Width != o.Width || r.Height != o.Height || len(r.Pix) != len(o.Pix) {
		return false
	}
	for i := range r.Pix {
		if r.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// Footprint is ceil(width * height * bytesPerPixel).
func (r *Raster) Footprint() int64 {
	if r == nil {
		return 0
	}
	return int64(math.Ceil(float64(r.Width) * float64(r.Height) * r.Format.BytesPerPixel()))
}

// Checksum hashes the layout and samples with xxhash.
func (r *Raster) Checksum() uint64 {
	if r == nil {
		return 0
	}
	d := xxhash.New()
	var hdr [9]byte
	hdr[0] = byte(r.Format)
	binary.BigEndian.PutUint32(hdr[1:5], uint32(r.Width))
	binary.BigEndian.PutUint32(hdr[5:9], uint32(r.Height))
	_, _ = d.Write(hdr[:])

	var u4 [4]byte
	for _, v := range r.Pix {
		binary.BigEndian.PutUint32(u4[:], math.Float32bits(v))
		_, _ = d.Write(u4[:])
	}
	return d.Sum64()
}

// Quantize rounds and clamps v when f is an 8-bit format.
func Quantize(f Format, v float32) float32 {
	if !f.Quantized() {
		return v
	}
	v = float32(math.Round(float64(v)))
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// QuantizeInPlace applies Quantize to every sample of r.
func (r *Raster) QuantizeInPlace() {
	if !r.Format.Quantized() {
		return
	}
	for i, v := range r.Pix {
		r.Pix[i] = Quantize(r.Format, v)
	}
}
