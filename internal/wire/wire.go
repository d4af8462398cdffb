// Package wire frames rasters for storage outside the cache, e.g. the
// --raw output of the CLI.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/unkn0wn-root/scalecache/raster"
)

const (
	version   byte = 1
	kindLevel byte = 1
	kindStack byte = 2

	// magic | ver | kind | format | scale | width | height | n
	levelHeader = 4 + 1 + 1 + 1 + 8 + 4 + 4 + 4
	stackHeader = 4 + 1 + 1 + 4
)

var (
	ErrCorrupt = errors.New("scalecache: corrupt frame")
	magic4     = [...]byte{'S', 'C', 'R', 'S'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// EncodeRaster frames one raster with the scale it was generated at.
//
//	magic(4) | ver(1) | kind(1=level) | format(1) | scale(f64 be)
//	width(u32 be) | height(u32 be) | n(u32 be) | samples(f32 be * n)
func EncodeRaster(scale float64, r *raster.Raster) []byte {
	var buf bytes.Buffer
	buf.Grow(levelHeader + 4*len(r.Pix))
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindLevel)
	writeLevel(&buf, scale, r)
	return buf.Bytes()
}

// DecodeRaster is the inverse of EncodeRaster. Trailing bytes are an error.
func DecodeRaster(b []byte) (float64, *raster.Raster, error) {
	if len(b) < 6 || !hasMagic(b) || b[4] != version || b[5] != kindLevel {
		return 0, nil, ErrCorrupt
	}
	scale, r, off, err := readLevel(b, 6)
	if err != nil {
		return 0, nil, err
	}
	if off != len(b) {
		return 0, nil, ErrCorrupt
	}
	return scale, r, nil
}

// Stack:
//
//	magic(4) | ver(1) | kind(2=stack) | n(u32 be)
//	nameLen(u16 be) | name(nameLen) | level (format..samples as above) * n
type StackItem struct {
	Name   string
	Scale  float64
	Raster *raster.Raster
}

func EncodeStack(items []StackItem) []byte {
	total := stackHeader
	for _, it := range items {
		total += 2 + len(it.Name) + levelHeader - 6 + 4*len(it.Raster.Pix)
	}

	var buf bytes.Buffer
	buf.Grow(total)
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindStack)

	var u4 [4]byte
	var u2 [2]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(items)))
	buf.Write(u4[:])

	for _, it := range items {
		if l := len(it.Name); l == 0 || l > 0xFFFF {
			panic("scalecache: invalid name length in stack")
		}
		binary.BigEndian.PutUint16(u2[:], uint16(len(it.Name)))
		buf.Write(u2[:])
		buf.WriteString(it.Name)
		writeLevel(&buf, it.Scale, it.Raster)
	}
	return buf.Bytes()
}

func DecodeStack(b []byte) ([]StackItem, error) {
	if len(b) < stackHeader || !hasMagic(b) || b[4] != version || b[5] != kindStack {
		return nil, ErrCorrupt
	}
	off := 6
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// each item needs at least its name length and level header
	if n > (len(b)-off)/(2+levelHeader-6) {
		return nil, ErrCorrupt
	}

	items := make([]StackItem, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return nil, ErrCorrupt
		}
		nlen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if nlen <= 0 || nlen > len(b)-off {
			return nil, ErrCorrupt
		}
		name := string(b[off : off+nlen])
		off += nlen

		scale, r, next, err := readLevel(b, off)
		if err != nil {
			return nil, err
		}
		off = next
		items = append(items, StackItem{Name: name, Scale: scale, Raster: r})
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}
	return items, nil
}

func writeLevel(buf *bytes.Buffer, scale float64, r *raster.Raster) {
	var u8 [8]byte
	var u4 [4]byte

	buf.WriteByte(byte(r.Format))
	binary.BigEndian.PutUint64(u8[:], math.Float64bits(scale))
	buf.Write(u8[:])
	binary.BigEndian.PutUint32(u4[:], uint32(r.Width))
	buf.Write(u4[:])
	binary.BigEndian.PutUint32(u4[:], uint32(r.Height))
	buf.Write(u4[:])
	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Pix)))
	buf.Write(u4[:])
	for _, v := range r.Pix {
		binary.BigEndian.PutUint32(u4[:], math.Float32bits(v))
		buf.Write(u4[:])
	}
}

func readLevel(b []byte, off int) (float64, *raster.Raster, int, error) {
	const fixed = 1 + 8 + 4 + 4 + 4
	if off+fixed > len(b) {
		return 0, nil, 0, ErrCorrupt
	}
	f := raster.Format(b[off])
	off++
	scale := math.Float64frombits(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	w := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	h := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if n > (len(b)-off)/4 { // overflow-safe bound check
		return 0, nil, 0, ErrCorrupt
	}

	r := &raster.Raster{Format: f, Width: w, Height: h, Pix: make([]float32, n)}
	for i := range r.Pix {
		r.Pix[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
	}
	if r.Validate() != nil {
		return 0, nil, 0, ErrCorrupt
	}
	return scale, r, off, nil
}
