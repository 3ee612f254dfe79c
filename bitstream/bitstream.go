// Package bitstream implements the DMA-ready, BCM-encoded bitstream
// consumed by the Galactic Unicorn PIO program. It owns the single
// shared buffer the encoder writes and DMA reads; see the doc comment
// on [Stream] for the concurrency discipline.
package bitstream

import "galacticunicorn.com/gamma"

const (
	// Width and Height are the logical pixel dimensions of the panel.
	Width  = 53
	Height = 11

	// Frames is the number of BCM bit planes per refresh.
	Frames = 14
	// FrameBytes is the size in bytes of one (row, frame) record.
	FrameBytes = 60
	// RowBytes is the size in bytes of one row (all of its frames).
	RowBytes = Frames * FrameBytes
	// Length is the total size of the bitstream buffer in bytes.
	Length = Height * RowBytes

	// pixelOffset is the byte offset of the first pixel within a
	// (row, frame) record.
	pixelOffset = 2
)

// PixelSource is the minimal read-only contract a pixel buffer must
// satisfy to be scattered into a [Stream] by [Stream.SetPixels]. It is
// deliberately smaller than image.Image: the Galactic Unicorn core
// does not depend on a generic color model, only on W×H 8-bit RGB
// triples.
type PixelSource interface {
	// Bounds returns the pixel source's width and height.
	Bounds() (w, h int)
	// At returns the color of the pixel at (x, y).
	At(x, y int) (r, g, b uint8)
}

// Stream is the shared bitstream buffer: a contiguous, 4-byte-aligned
// byte array DMA reads continuously while the encoder writes it byte
// by byte from application context. There is no mutual exclusion
// between the two: DMA reads 32-bit words at hardware speed while the
// encoder writes individual bytes at CPU speed, so a refresh in
// progress during a write may observe a mixture of old and new pixel
// bits. That is the only observable anomaly (one frame of tearing);
// a single byte write is atomic with respect to a 32-bit read on this
// class of hardware, and no further ordering guarantee is required or
// provided.
type Stream struct {
	words [Length / 4]uint32
}

// Bytes returns the stream's backing storage as a byte slice, for
// handing its address to DMA. The returned slice aliases the stream
// and must not outlive it.
func (s *Stream) Bytes() []byte {
	return unsafeBytes(s.words[:])
}

// Words returns the stream's backing storage as the 32-bit words DMA
// transfers it in.
func (s *Stream) Words() []uint32 {
	return s.words[:]
}

// Init performs the one-time structural initialization of every
// (row, frame) header: the row pixel count, the row-select bits, and
// the BCM tick count. These bytes are never mutated again; only the
// per-pixel bytes written by SetPixel/SetPixels change after Init.
func (s *Stream) Init() {
	buf := s.Bytes()
	for r := 0; r < Height; r++ {
		for f := 0; f < Frames; f++ {
			o := r*RowBytes + f*FrameBytes
			buf[o] = Width - 1
			buf[o+1] = byte(r)
			putUint32LE(buf[o+56:o+60], uint32(1)<<uint(f))
		}
	}
}

// SetPixel encodes a single pixel update. Coordinates outside the
// panel are silently clipped, matching the panel's own clipping
// contract. Coordinates are remapped through the panel's physical
// orientation before encoding.
func (s *Stream) SetPixel(x, y int, r, g, b, brightness uint8) {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return
	}
	// Physical orientation: the panel scans with reversed row/column
	// order relative to logical (0,0) at the top-left.
	x = Width - 1 - x
	y = Height - 1 - y

	gr := gamma.Lookup8(scale(r, brightness))
	gg := gamma.Lookup8(scale(g, brightness))
	gb := gamma.Lookup8(scale(b, brightness))

	buf := s.Bytes()
	for f := 0; f < Frames; f++ {
		o := y*RowBytes + f*FrameBytes + pixelOffset + x
		buf[o] = byte(gb&1) | byte(gg&1)<<1 | byte(gr&1)<<2
		gr >>= 1
		gg >>= 1
		gb >>= 1
	}
}

// SetPixels encodes every pixel of src at the given brightness.
func (s *Stream) SetPixels(src PixelSource, brightness uint8) {
	w, h := src.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := src.At(x, y)
			s.SetPixel(x, y, r, g, b, brightness)
		}
	}
}

// scale applies brightness scaling c' = (c * brightness) >> 8.
func scale(c, brightness uint8) uint8 {
	return uint8((uint16(c) * uint16(brightness)) >> 8)
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
