// Package bmp decodes classic 24-bit uncompressed bitmaps into a stream of
// pixel write events. The source format stores rows bottom-up with each row
// padded to a 4-byte boundary; the decoder flips rows so the emitted indices
// describe a top-down image.
package bmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klarke/photoframe/trace"
	"github.com/klarke/photoframe/vram"
)

// These errors end a decode attempt. None of them is retried: a bad file
// stays bad.
var (
	ErrSignature   = errors.New("not a bitmap: signature mismatch")
	ErrBitDepth    = errors.New("unsupported bit depth, only 24-bit is handled")
	ErrCompression = errors.New("unsupported compression, only uncompressed is handled")
	ErrGeometry    = errors.New("implausible image geometry")
	ErrTruncated   = errors.New("pixel data ended early")
)

// headerSize covers the file header and the info header that follows it.
const headerSize = 54

// maxDimension bounds width and height. Anything larger than this is a
// corrupt header, not a photo.
const maxDimension = 1 << 14

// Header is the fixed 54-byte bitmap header: the file header followed by
// the BITMAPINFOHEADER. It is parsed once and discarded after validation.
type Header struct {
	Signature       [2]byte
	FileSize        uint32
	Reserved1       uint16
	Reserved2       uint16
	PixelDataOffset uint32
	InfoSize        uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitCount        uint16
	Compression     uint32
	ImageSize       uint32
	XPelsPerMeter   int32
	YPelsPerMeter   int32
	ColorsUsed      uint32
	ColorsImportant uint32
}

// State enumerates the decoder's strict progression. Error is absorbing.
type State int

const (
	AwaitHeader State = iota
	SkipToPixelData
	DecodeRows
	Done
	Error
)

func (s State) String() string {
	switch s {
	case AwaitHeader:
		return "await header"
	case SkipToPixelData:
		return "skip to pixel data"
	case DecodeRows:
		return "decode rows"
	case Done:
		return "done"
	case Error:
		return "error"
	}
	return fmt.Sprintf("unknown state %d", int(s))
}

// PixelWrite is one decoded pixel bound for the pixel store.
type PixelWrite struct {
	Index uint32
	Color vram.RGB565
}

// Decoder pulls bytes from its source and yields pixel writes. It never
// emits a single write before the header passed validation.
type Decoder struct {
	src io.Reader

	state State
	err   error

	width   int
	height  int
	padding int // bytes appended to every row in the source
	skip    int // bytes between the header and the pixel data

	srcRow int // source rows are bottom-up
	col    int
}

// NewDecoder returns a decoder over src. Nothing is read until the first
// call to Next.
func NewDecoder(src io.Reader) *Decoder {
	return &Decoder{src: src, state: AwaitHeader}
}

// State returns the decoder's current state.
func (d *Decoder) State() State {
	return d.state
}

// Width returns the image width in pixels, valid once the header has been
// read.
func (d *Decoder) Width() int {
	return d.width
}

// Height returns the image height in pixels, valid once the header has been
// read.
func (d *Decoder) Height() int {
	return d.height
}

// fail latches the absorbing error state.
func (d *Decoder) fail(err error) error {
	d.state = Error
	d.err = err
	return err
}

// Next returns the next pixel write in source order: bottom row first, left
// to right, with destination indices flipped to top-down. io.EOF signals a
// completely decoded image; any other error is fatal and sticky.
func (d *Decoder) Next() (PixelWrite, error) {
	switch d.state {
	case Done:
		return PixelWrite{}, io.EOF
	case Error:
		return PixelWrite{}, d.err
	case AwaitHeader:
		if err := d.readHeader(); err != nil {
			return PixelWrite{}, d.fail(err)
		}
		d.state = SkipToPixelData
		fallthrough
	case SkipToPixelData:
		if err := d.discard(d.skip); err != nil {
			return PixelWrite{}, d.fail(err)
		}
		d.state = DecodeRows
	}

	var bgr [3]byte
	if _, err := io.ReadFull(d.src, bgr[:]); err != nil {
		return PixelWrite{}, d.fail(trace.Wrap(err, ErrTruncated))
	}

	destRow := d.height - 1 - d.srcRow
	write := PixelWrite{
		Index: uint32(destRow*d.width + d.col),
		Color: vram.Pack(bgr[2], bgr[1], bgr[0]),
	}

	d.col++
	if d.col == d.width {
		// The row padding is consumed and dropped, it never reaches
		// the store.
		if err := d.discard(d.padding); err != nil {
			return PixelWrite{}, d.fail(trace.Wrap(err, ErrTruncated))
		}
		d.col = 0
		d.srcRow++
		if d.srcRow == d.height {
			d.state = Done
		}
	}

	return write, nil
}

// Drain pulls every remaining pixel write and hands it to sink. It returns
// nil once the image is completely decoded.
func (d *Decoder) Drain(sink func(PixelWrite) error) error {
	for {
		write, err := d.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sink(write); err != nil {
			return err
		}
	}
}

func (d *Decoder) readHeader() error {
	var raw [headerSize]byte
	if _, err := io.ReadFull(d.src, raw[:]); err != nil {
		return trace.Wrap(err, ErrTruncated)
	}

	var hdr Header
	if err := binary.Read(bytes.NewReader(raw[:]), binary.LittleEndian, &hdr); err != nil {
		return trace.Wrap(err, ErrTruncated)
	}

	if hdr.Signature[0] != 'B' || hdr.Signature[1] != 'M' {
		return trace.From(ErrSignature)
	}
	if hdr.BitCount != 24 {
		return trace.Wrap(fmt.Errorf("bit depth %d", hdr.BitCount), ErrBitDepth)
	}
	if hdr.Compression != 0 {
		return trace.Wrap(fmt.Errorf("compression %d", hdr.Compression), ErrCompression)
	}

	// Top-down bitmaps encode a negative height. The display pipeline
	// only handles the classic bottom-up layout.
	if hdr.Width <= 0 || hdr.Height <= 0 || hdr.Width > maxDimension || hdr.Height > maxDimension {
		return trace.Wrap(fmt.Errorf("%d x %d", hdr.Width, hdr.Height), ErrGeometry)
	}
	if hdr.PixelDataOffset < headerSize {
		return trace.Wrap(fmt.Errorf("pixel data offset %d", hdr.PixelDataOffset), ErrGeometry)
	}

	d.width = int(hdr.Width)
	d.height = int(hdr.Height)
	d.padding = (4 - (3*d.width)%4) % 4
	d.skip = int(hdr.PixelDataOffset) - headerSize

	return nil
}

// discard consumes n bytes from the source.
func (d *Decoder) discard(n int) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, d.src, int64(n)); err != nil {
		return trace.Wrap(err, ErrTruncated)
	}
	return nil
}
