package vram

import (
	"errors"
	"fmt"

	"github.com/klarke/photoframe/trace"
)

// ErrBounds is returned for store accesses outside width times height.
var ErrBounds = errors.New("pixel index out of bounds")

// Store is the frame arena: width times height packed colors, kept as raw
// bytes because the memory channel underneath transfers single bytes. Cell i
// occupies bytes 2i (low) and 2i+1 (high); the pixel at row r, column c has
// index r*width+c.
//
// The store itself has no locking. The arbiter enforces that the load phase
// (decoder writing) and the display phase (scanline reads) never overlap.
type Store struct {
	width  int
	height int
	bytes  []byte
}

// NewStore allocates a zeroed arena.
func NewStore(width, height int) *Store {
	return &Store{
		width:  width,
		height: height,
		bytes:  make([]byte, width*height*2),
	}
}

func (s *Store) Width() int {
	return s.width
}

func (s *Store) Height() int {
	return s.height
}

// Pixels returns the number of cells in the arena.
func (s *Store) Pixels() int {
	return s.width * s.height
}

// check validates a cell index.
func (s *Store) check(index uint32) error {
	if int(index) >= s.Pixels() {
		return trace.Wrap(fmt.Errorf("index %d of %d", index, s.Pixels()), ErrBounds)
	}
	return nil
}

// setByte writes one channel byte. even=false selects the high byte.
func (s *Store) setByte(index uint32, high bool, b byte) {
	off := index * 2
	if high {
		off++
	}
	s.bytes[off] = b
}

// byteAt reads one channel byte.
func (s *Store) byteAt(index uint32, high bool) byte {
	off := index * 2
	if high {
		off++
	}
	return s.bytes[off]
}

// At returns the color at row, col. It bypasses the channel model and is
// meant for assertions and for exporting a finished frame, not for the
// display path.
func (s *Store) At(row, col int) RGB565 {
	index := uint32(row*s.width + col)
	return FromBytes(s.byteAt(index, false), s.byteAt(index, true))
}
