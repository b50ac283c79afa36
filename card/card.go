// Package card implements the SPI-mode command protocol for SD memory cards
// and exposes the card as a simple 512-byte block device.
//
// The driver only ever reads. It speaks to the card through the Transceiver
// interface so the same state machine runs against real wiring or against
// the in-package card-image emulation.
package card

import (
	"errors"
	"fmt"

	"github.com/klarke/photoframe/trace"
)

// BlockSize is fixed by the protocol. SPI-mode reads always transfer whole
// 512-byte blocks regardless of the card's native addressing.
const BlockSize = 512

// Block is the payload of a single block read.
type Block [BlockSize]byte

// These errors may occur while talking to the card. All of them latch the
// driver into the Fatal state, see Driver.
var (
	ErrTransport          = errors.New("transport fault on the serial link")
	ErrNoResponse         = errors.New("no response to command")
	ErrCommandRejected    = errors.New("command rejected by card")
	ErrVoltageCheck       = errors.New("interface condition echo mismatch")
	ErrEnumerationStalled = errors.New("card stayed busy past the retry ceiling")
	ErrDataTimeout        = errors.New("data token not observed in time")
	ErrNotReady           = errors.New("driver is not in the ready state")
)

// SPI-mode command set. Commands are sent with bit 6 of the index set.
const (
	cmdGoIdleState    = 0  // software reset, enters idle state
	cmdSendIfCond     = 8  // voltage check, distinguishes v2 cards
	cmdReadSingle     = 17 // single block read
	cmdAppCmd         = 55 // prefix for application commands
	cmdReadOCR        = 58 // operating conditions register
	acmdSendOpCond    = 41 // initiate initialization (after cmdAppCmd)
	hcsFlag           = 0x40000000
	checkPattern      = 0x1AA
	r1IdleState       = 0x01
	r1IllegalCommand  = 0x04
	dataStartToken    = 0xFE
	ocrCardCapacity   = 0x40 // CCS bit in OCR byte 0
	ifCondEchoMask    = 0xFFF
)

// Retry ceilings. These are counted in exchanged bytes, not wall-clock time:
// every poll step costs one byte on the link.
const (
	responseAttempts = 10
	opCondAttempts   = 2048
	tokenAttempts    = 4096
)

// State enumerates the driver's lifecycle.
type State int

const (
	NotReady State = iota
	Enumerating
	Ready
	Fatal
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "not ready"
	case Enumerating:
		return "enumerating"
	case Ready:
		return "ready"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("unknown state %d", int(s))
}

// Driver drives one SD card in SPI mode. It is not safe for concurrent use;
// the capture context owns it exclusively.
type Driver struct {
	trx Transceiver

	state State
	fault error

	// SDHC/SDXC cards take block numbers directly, older cards take byte
	// offsets. Detected from the OCR during enumeration.
	blockAddressed bool
}

// NewDriver returns a driver for the card behind trx. The card is not
// touched until Initialize is called.
func NewDriver(trx Transceiver) *Driver {
	return &Driver{
		trx:   trx,
		state: NotReady,
	}
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// Fault returns the latched error after a fatal condition, or nil.
func (d *Driver) Fault() error {
	return d.fault
}

// BlockAddressed reports the addressing mode detected during enumeration.
// Only meaningful once the driver is Ready.
func (d *Driver) BlockAddressed() bool {
	return d.blockAddressed
}

// fail latches the driver into the Fatal state. Further reads are suppressed
// until Initialize is called again.
func (d *Driver) fail(err error) error {
	d.state = Fatal
	d.fault = err
	d.trx.Select(false)
	return err
}

// Initialize runs the fixed enumeration sequence: reset, interface condition
// query, operating condition polling, capacity query. It may be called from
// any state and either ends in Ready or latches Fatal.
func (d *Driver) Initialize() error {
	d.state = Enumerating
	d.fault = nil
	d.blockAddressed = false

	// The protocol requires the compatibility rate until the card reports
	// ready.
	d.trx.SetRate(RateInit)

	// At least 74 clock cycles with the card deselected so it can settle
	// into SPI mode. Ten dummy bytes is 80.
	d.trx.Select(false)
	for i := 0; i < 10; i++ {
		if _, err := d.trx.Exchange(0xFF); err != nil {
			return d.fail(trace.Wrap(err, ErrTransport))
		}
	}

	d.trx.Select(true)
	defer d.trx.Select(false)

	// CMD0: software reset. The card answers with the idle flag alone.
	r1, err := d.command(cmdGoIdleState, 0)
	if err != nil {
		return d.fail(err)
	}
	if r1 != r1IdleState {
		return d.fail(trace.Wrap(fmt.Errorf("reset response %#02x", r1), ErrCommandRejected))
	}

	// CMD8: voltage check. v2 cards echo the argument back, v1 cards
	// reject the command as illegal and are enumerated without the host
	// capacity support flag.
	v2 := true
	r1, err = d.command(cmdSendIfCond, checkPattern)
	if err != nil {
		return d.fail(err)
	}
	if r1&r1IllegalCommand != 0 {
		v2 = false
	} else {
		echo, err := d.trailing(4)
		if err != nil {
			return d.fail(err)
		}
		if echo&ifCondEchoMask != checkPattern {
			return d.fail(trace.Wrap(fmt.Errorf("echo %#03x", echo&ifCondEchoMask), ErrVoltageCheck))
		}
	}

	// ACMD41: poll until the card leaves the idle state.
	var arg uint32
	if v2 {
		arg = hcsFlag
	}
	ready := false
	for i := 0; i < opCondAttempts; i++ {
		if r1, err = d.command(cmdAppCmd, 0); err != nil {
			return d.fail(err)
		}
		if r1, err = d.command(acmdSendOpCond, arg); err != nil {
			return d.fail(err)
		}
		if r1 == 0 {
			ready = true
			break
		}
	}
	if !ready {
		return d.fail(trace.From(ErrEnumerationStalled))
	}

	// CMD58: read the OCR to detect the addressing mode.
	r1, err = d.command(cmdReadOCR, 0)
	if err != nil {
		return d.fail(err)
	}
	if r1 != 0 {
		return d.fail(trace.Wrap(fmt.Errorf("OCR response %#02x", r1), ErrCommandRejected))
	}
	ocr, err := d.trailing(4)
	if err != nil {
		return d.fail(err)
	}
	d.blockAddressed = ocr&(uint32(ocrCardCapacity)<<24) != 0

	// Enumeration is done, the compatibility rate is no longer required.
	d.trx.SetRate(RateFull)
	d.state = Ready

	return nil
}

// ReadBlock reads block n. Valid only in the Ready state. The trailing two
// integrity bytes of the data packet are consumed and discarded.
func (d *Driver) ReadBlock(n uint32) (*Block, error) {
	if d.state != Ready {
		return nil, trace.From(ErrNotReady)
	}

	addr := n
	if !d.blockAddressed {
		addr = n * BlockSize
	}

	d.trx.Select(true)
	defer d.trx.Select(false)

	r1, err := d.command(cmdReadSingle, addr)
	if err != nil {
		return nil, d.fail(err)
	}
	if r1 != 0 {
		return nil, d.fail(trace.Wrap(fmt.Errorf("read response %#02x", r1), ErrCommandRejected))
	}

	// The card needs time to fetch the block. It keeps the line high until
	// the start-of-data token appears.
	token := byte(0xFF)
	for i := 0; i < tokenAttempts; i++ {
		if token, err = d.trx.Exchange(0xFF); err != nil {
			return nil, d.fail(trace.Wrap(err, ErrTransport))
		}
		if token != 0xFF {
			break
		}
	}
	if token != dataStartToken {
		return nil, d.fail(trace.Wrap(fmt.Errorf("token %#02x", token), ErrDataTimeout))
	}

	block := &Block{}
	for i := range block {
		b, err := d.trx.Exchange(0xFF)
		if err != nil {
			return nil, d.fail(trace.Wrap(err, ErrTransport))
		}
		block[i] = b
	}

	// Two CRC bytes close the packet. They are clocked out and dropped.
	for i := 0; i < 2; i++ {
		if _, err := d.trx.Exchange(0xFF); err != nil {
			return nil, d.fail(trace.Wrap(err, ErrTransport))
		}
	}

	return block, nil
}

// command sends a 6-byte command frame and polls for the single-byte R1
// response. Responses have the top bit clear; anything else is line noise
// from the card still being busy.
func (d *Driver) command(index byte, arg uint32) (byte, error) {
	frame := [6]byte{
		0x40 | index,
		byte(arg >> 24),
		byte(arg >> 16),
		byte(arg >> 8),
		byte(arg),
	}
	frame[5] = crc7(frame[:5])<<1 | 1

	for _, b := range frame {
		if _, err := d.trx.Exchange(b); err != nil {
			return 0, trace.Wrap(err, ErrTransport)
		}
	}

	for i := 0; i < responseAttempts; i++ {
		b, err := d.trx.Exchange(0xFF)
		if err != nil {
			return 0, trace.Wrap(err, ErrTransport)
		}
		if b&0x80 == 0 {
			return b, nil
		}
	}

	return 0, trace.Wrap(fmt.Errorf("command %d", index), ErrNoResponse)
}

// trailing reads the n payload bytes that follow an R1 response, big-endian.
func (d *Driver) trailing(n int) (uint32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := d.trx.Exchange(0xFF)
		if err != nil {
			return 0, trace.Wrap(err, ErrTransport)
		}
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// crc7 computes the 7-bit CRC (polynomial x^7+x^3+1) over a command frame.
// SPI mode only verifies it for the reset and interface condition commands
// but it costs nothing to send a correct one everywhere.
func crc7(data []byte) byte {
	var crc byte
	for _, b := range data {
		for bit := 0; bit < 8; bit++ {
			crc <<= 1
			if (b^crc)&0x80 != 0 {
				crc ^= 0x09
			}
			b <<= 1
		}
	}
	return crc & 0x7F
}
