package raster

import (
	"fmt"
	"strings"
)

// Format tags the nominal pixel layout of a Raster.
// Values of every format use the 0..255 intensity range; the 8-bit
// formats are additionally rounded and clamped to integers.
type Format uint8

const (
	FormatUnknown Format = iota
	Gray8
	GrayF32
	RGB8
	RGBF32
)

func (f Format) Valid() bool { return f >= Gray8 && f <= RGBF32 }

// Channels returns the number of interleaved samples per pixel.
func (f Format) Channels() int {
	switch f {
	case Gray8, GrayF32:
		return 1
	case RGB8, RGBF32:
		return 3
	}
	return 0
}

// BytesPerPixel is the storage cost the format stands for.
func (f Format) BytesPerPixel() float64 {
	switch f {
	case Gray8:
		return 1
	case GrayF32:
		return 4
	case RGB8:
		return 3
	case RGBF32:
		return 12
	}
	return 0
}

// Quantized reports whether samples are rounded to 8-bit integers.
func (f Format) Quantized() bool { return f == Gray8 || f == RGB8 }

// Float returns the unquantized format with the same channel layout.
func (f Format) Float() Format {
	switch f {
	case Gray8:
		return GrayF32
	case RGB8:
		return RGBF32
	}
	return f
}

func (f Format) String() string {
	switch f {
	case Gray8:
		return "gray8"
	case GrayF32:
		return "grayf32"
	case RGB8:
		return "rgb8"
	case RGBF32:
		return "rgbf32"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ParseFormat maps the names produced by String back to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gray8", "gray":
		return Gray8, nil
	case "grayf32":
		return GrayF32, nil
	case "rgb8", "rgb":
		return RGB8, nil
	case "rgbf32":
		return RGBF32, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Direction selects the axes a blur or derivative acts on.
type Direction uint8

const (
	Both Direction = iota
	Horizontal
	Vertical
)

func (d Direction) String() string {
	switch d {
	case Both:
		return "xy"
	case Horizontal:
		return "x"
	case Vertical:
		return "y"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}
