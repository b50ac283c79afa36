package card

import (
	"errors"
	"io"
)

// ErrRemoved is returned by the emulated link once Remove has been called.
var ErrRemoved = errors.New("card removed")

// ImageCard is a Transceiver that emulates an SD card in SPI mode, backed by
// a card image. It answers the same command subset a real card would during
// a read-only session: reset, interface condition, operating condition
// polling, OCR query and single block reads.
//
// The emulation is byte-faithful on purpose: the driver cannot tell it from
// real wiring, so the whole protocol state machine is exercised when tests
// or the CLI run against an image file.
type ImageCard struct {
	img  io.ReaderAt
	size int64

	// SDHC selects the block-addressed personality. When false the card
	// rejects the interface condition command like a legacy card and
	// expects byte offsets in read commands.
	SDHC bool

	// BusyPolls is how many operating-condition polls the card answers
	// with the idle flag before reporting ready. Zero means ready on the
	// first poll.
	BusyPolls int

	selected bool
	appCmd   bool
	idle     bool
	enumed   bool
	polls    int
	removed  bool

	frame    [6]byte
	frameLen int
	out      []byte
}

// NewImageCard wraps a card image of the given size in bytes. Reads beyond
// the image answer with a parameter error, as a real card does for
// out-of-range addresses.
func NewImageCard(img io.ReaderAt, size int64) *ImageCard {
	return &ImageCard{
		img:  img,
		size: size,
		SDHC: true,
	}
}

// Remove simulates pulling the card mid-session. Every exchange afterwards
// fails, which the driver treats as a fatal transport fault.
func (c *ImageCard) Remove() {
	c.removed = true
}

// Select implements Transceiver.
func (c *ImageCard) Select(assert bool) {
	c.selected = assert
	if !assert {
		// Deselecting aborts any partially clocked frame or pending
		// response bytes.
		c.frameLen = 0
		c.out = nil
	}
}

// SetRate implements Transceiver. The emulation has no clock, the rate is
// accepted and ignored.
func (c *ImageCard) SetRate(rate Rate) {}

// Exchange implements Transceiver.
func (c *ImageCard) Exchange(tx byte) (byte, error) {
	if c.removed {
		return 0xFF, ErrRemoved
	}
	if !c.selected {
		return 0xFF, nil
	}

	// Pending response bytes win over anything the host is clocking out;
	// the host sends 0xFF fill while it reads.
	if len(c.out) > 0 {
		b := c.out[0]
		c.out = c.out[1:]
		return b, nil
	}

	if c.frameLen == 0 {
		// A command frame starts with 01 in the two top bits.
		if tx&0xC0 != 0x40 {
			return 0xFF, nil
		}
		c.frame[0] = tx
		c.frameLen = 1
		return 0xFF, nil
	}

	c.frame[c.frameLen] = tx
	c.frameLen++
	if c.frameLen == len(c.frame) {
		c.frameLen = 0
		c.respond()
	}

	return 0xFF, nil
}

// respond queues the response bytes for the frame just received. A real card
// needs up to eight clocks before answering; one fill byte models that gap.
func (c *ImageCard) respond() {
	index := c.frame[0] & 0x3F
	arg := uint32(c.frame[1])<<24 | uint32(c.frame[2])<<16 | uint32(c.frame[3])<<8 | uint32(c.frame[4])

	app := c.appCmd
	c.appCmd = false

	c.out = append(c.out, 0xFF)

	switch {
	case index == cmdGoIdleState:
		c.idle = true
		c.enumed = false
		c.polls = 0
		c.out = append(c.out, r1IdleState)

	case index == cmdSendIfCond:
		if !c.SDHC {
			c.out = append(c.out, r1IdleState|r1IllegalCommand)
			return
		}
		c.out = append(c.out, r1IdleState,
			byte(arg>>24), byte(arg>>16), byte(arg>>8), byte(arg))

	case index == cmdAppCmd:
		c.appCmd = true
		if c.enumed {
			c.out = append(c.out, 0x00)
		} else {
			c.out = append(c.out, r1IdleState)
		}

	case index == acmdSendOpCond && app:
		if c.polls < c.BusyPolls {
			c.polls++
			c.out = append(c.out, r1IdleState)
			return
		}
		c.idle = false
		c.enumed = true
		c.out = append(c.out, 0x00)

	case index == cmdReadOCR:
		ocr := byte(0x80) // power-up done
		if c.SDHC {
			ocr |= ocrCardCapacity
		}
		c.out = append(c.out, 0x00, ocr, 0xFF, 0x80, 0x00)

	case index == cmdReadSingle:
		c.readBlock(arg)

	default:
		c.out = append(c.out, r1IllegalCommand)
	}
}

func (c *ImageCard) readBlock(arg uint32) {
	if !c.enumed {
		c.out = append(c.out, r1IllegalCommand)
		return
	}

	offset := int64(arg)
	if c.SDHC {
		offset *= BlockSize
	}
	if offset < 0 || offset+BlockSize > c.size {
		// Parameter error flag in R1.
		c.out = append(c.out, 0x40)
		return
	}

	var payload [BlockSize]byte
	if _, err := c.img.ReadAt(payload[:], offset); err != nil && err != io.EOF {
		// Card-internal read failure surfaces as an error token in
		// place of the start token.
		c.out = append(c.out, 0x00, 0xFF, 0x01)
		return
	}

	// R1, a couple of access-delay fill bytes, start token, payload and a
	// dummy 16-bit CRC which the driver discards anyway.
	c.out = append(c.out, 0x00, 0xFF, 0xFF, dataStartToken)
	c.out = append(c.out, payload[:]...)
	c.out = append(c.out, 0x00, 0x00)
}
