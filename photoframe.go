// Package photoframe wires the whole load pipeline together: the SD card
// driver, the FAT32 resolver, the bitmap decoder and the arbitrated pixel
// store. The result of a load is a fully populated store plus two sticky
// status flags for the mode-selection logic: image ready or image error with
// a coarse fault class.
package photoframe

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klarke/photoframe/bmp"
	"github.com/klarke/photoframe/card"
	"github.com/klarke/photoframe/fat"
	"github.com/klarke/photoframe/trace"
	"github.com/klarke/photoframe/vram"
)

// ErrDimensionMismatch is raised when the decoded image does not match the
// fixed store geometry exactly.
var ErrDimensionMismatch = errors.New("image dimensions do not match the frame store")

// ErrorCode is the coarse fault taxonomy surfaced to the mode-selection
// logic. It deliberately carries less detail than the wrapped error chain:
// the caller only decides between retrying from cold start and giving up.
type ErrorCode int

const (
	CodeNone ErrorCode = iota

	// CodeTransport: the card did not respond or the link died. Requires
	// a full re-initialization.
	CodeTransport

	// CodeFormat: the card responded but holds no usable volume or file.
	CodeFormat

	// CodeDecode: the file was found but is not a decodable image.
	CodeDecode

	// CodeTiming: the display side missed a scanline deadline.
	CodeTiming
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeTransport:
		return "transport fault"
	case CodeFormat:
		return "format fault"
	case CodeDecode:
		return "decode fault"
	case CodeTiming:
		return "timing fault"
	}
	return fmt.Sprintf("unknown code %d", int(c))
}

// Status is the externally visible outcome of a load session.
type Status struct {
	Ready   bool
	Faulted bool
	Code    ErrorCode
}

// Config sizes the frame store and tunes the memory controller.
type Config struct {
	// Width and Height fix the target resolution. A decoded image must
	// match exactly.
	Width  int
	Height int

	// RefreshInterval is the memory maintenance ceiling in channel
	// ticks.
	RefreshInterval int

	// Extension of the file to locate in the root directory, without
	// the dot.
	Extension string
}

// DefaultConfig matches the fixed display target.
func DefaultConfig() Config {
	return Config{
		Width:           640,
		Height:          480,
		RefreshInterval: 64,
		Extension:       "BMP",
	}
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Height == 0 {
		c.Height = def.Height
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = def.RefreshInterval
	}
	if c.Extension == "" {
		c.Extension = def.Extension
	}
	c.Extension = strings.ToUpper(c.Extension)
}

// Frame is one load-then-display session over a single card.
type Frame struct {
	cfg Config

	driver *card.Driver
	ctrl   *vram.Controller

	volume *fat.Volume
	entry  fat.Entry

	status Status
	err    error
}

// New builds a frame over the card behind trx. Zero config fields take
// their defaults.
func New(trx card.Transceiver, cfg Config) *Frame {
	cfg.fillDefaults()

	return &Frame{
		cfg:    cfg,
		driver: card.NewDriver(trx),
		ctrl:   vram.NewController(vram.NewStore(cfg.Width, cfg.Height), cfg.RefreshInterval),
	}
}

// Status returns the sticky session outcome.
func (f *Frame) Status() Status {
	return f.status
}

// Err returns the full error chain behind a faulted status, or nil.
func (f *Frame) Err() error {
	return f.err
}

// Store returns the pixel arena. Its contents are only meaningful once
// Status().Ready is set.
func (f *Frame) Store() *vram.Store {
	return f.ctrl.Store()
}

// Controller returns the memory arbiter, which the display side needs to
// drive its scanline prefetches.
func (f *Frame) Controller() *vram.Controller {
	return f.ctrl
}

// Volume returns the mounted volume after a successful load, for
// inspection.
func (f *Frame) Volume() *fat.Volume {
	return f.volume
}

// Entry returns the located directory entry after a successful load.
func (f *Frame) Entry() fat.Entry {
	return f.entry
}

// fail latches the error status. There is no partial success: the ready
// flag stays clear, so the display side never observes a half-written
// store.
func (f *Frame) fail(code ErrorCode, err error) error {
	f.status = Status{Faulted: true, Code: code}
	f.err = err
	return err
}

// Load runs one complete load session: initialize the card, mount the
// volume, locate the image by extension, decode it through the memory
// arbiter and flip the store into the display phase. It either ends with
// Status().Ready or with a latched fault; it is not restartable, a retry
// takes a fresh Frame (cold start).
func (f *Frame) Load() error {
	if err := f.driver.Initialize(); err != nil {
		return f.fail(CodeTransport, err)
	}

	volume, err := fat.Mount(f.driver)
	if err != nil {
		return f.fail(f.classifyResolver(err), err)
	}
	f.volume = volume

	entry, err := volume.LocateByExt(f.cfg.Extension)
	if err != nil {
		return f.fail(f.classifyResolver(err), err)
	}
	f.entry = entry

	if err := f.decode(volume.FileReader(entry)); err != nil {
		return err
	}

	// Flush the last write out of the channel, then flip the phase. From
	// here on only scanline reads are granted.
	for !f.ctrl.Idle() {
		f.ctrl.Tick()
	}
	f.ctrl.EnterDisplayPhase()
	f.status = Status{Ready: true}

	return nil
}

// decode drains the decoder into the store through the arbiter's write
// port, with the offer/tick loop providing the backpressure.
func (f *Frame) decode(src io.Reader) error {
	dec := bmp.NewDecoder(src)

	sized := false
	for {
		write, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return f.fail(f.classifyDecoder(err), err)
		}

		if !sized {
			store := f.ctrl.Store()
			if dec.Width() != store.Width() || dec.Height() != store.Height() {
				err := trace.Wrap(
					fmt.Errorf("%dx%d image, %dx%d store", dec.Width(), dec.Height(), store.Width(), store.Height()),
					ErrDimensionMismatch)
				return f.fail(CodeDecode, err)
			}
			sized = true
		}

		if err := f.push(write); err != nil {
			return f.fail(CodeDecode, err)
		}
	}
}

// push hands one pixel to the write port, ticking the channel until it is
// accepted.
func (f *Frame) push(write bmp.PixelWrite) error {
	for {
		ok, err := f.ctrl.OfferWrite(write.Index, write.Color)
		if err != nil {
			return err
		}
		f.ctrl.Tick()
		if ok {
			return nil
		}
	}
}

// classifyResolver separates card transport faults from filesystem format
// faults.
func (f *Frame) classifyResolver(err error) ErrorCode {
	if errors.Is(err, fat.ErrDeviceFault) {
		return CodeTransport
	}
	return CodeFormat
}

// classifyDecoder separates image format problems from an underlying
// storage fault cutting the stream short.
func (f *Frame) classifyDecoder(err error) ErrorCode {
	if errors.Is(err, fat.ErrDeviceFault) {
		return CodeTransport
	}
	return CodeDecode
}
