package raster

import (
	"fmt"
	"image"
	"image/color"
)

// FromImage converts img into a raster of format f.
// Gray formats take the Rec. 601 luma of colour inputs.
func FromImage(img image.Image, f Format) (*Raster, error) {
	b := img.Bounds()
	r, err := New(f, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			rf := float32(c.R) / 257
			gf := float32(c.G) / 257
			bf := float32(c.B) / 257
			if f.Channels() == 1 {
				r.Set(x, y, 0, Quantize(f, Luma(rf, gf, bf)))
				continue
			}
			r.Set(x, y, 0, Quantize(f, rf))
			r.Set(x, y, 1, Quantize(f, gf))
			r.Set(x, y, 2, Quantize(f, bf))
		}
	}
	return r, nil
}

// Image renders the raster as an 8-bit image, clamping samples to 0..255.
func (r *Raster) Image() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Width, r.Height)
	switch r.Format.Channels() {
	case 1:
		img := image.NewGray(rect)
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				img.SetGray(x, y, color.Gray{Y: clamp8(r.At(x, y, 0))})
			}
		}
		return img, nil
	case 3:
		img := image.NewRGBA(rect)
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				img.SetRGBA(x, y, color.RGBA{
					R: clamp8(r.At(x, y, 0)),
					G: clamp8(r.At(x, y, 1)),
					B: clamp8(r.At(x, y, 2)),
					A: 0xff,
				})
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, r.Format)
}

// Luma is the Rec. 601 weighted sum of r, g and b.
func Luma(r, g, b float32) float32 {
	return 0.299*r + 0.587*g + 0.114*b
}

func clamp8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
