// Package vram models the external frame memory of the display core: a flat
// pixel arena behind a single byte-oriented channel, the arbiter that
// multiplexes refresh, decoder writes and scanline reads onto that channel,
// and the double-buffered scanline cache feeding the display reader.
//
// Everything in this package advances in discrete ticks. One tick grants at
// most one byte operation on the channel, which is what makes the arbitration
// properties testable.
package vram

// RGB565 is a packed 16-bit color: five bits red, six bits green, five bits
// blue.
type RGB565 uint16

// Pack truncates 8-bit channels to their allotted widths. Truncation, not
// rounding: the low bits are simply dropped.
func Pack(r, g, b uint8) RGB565 {
	return RGB565(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

// FromBytes assembles a color from its low and high channel bytes.
func FromBytes(lo, hi byte) RGB565 {
	return RGB565(uint16(hi)<<8 | uint16(lo))
}

// Low returns the byte stored at the even channel address.
func (c RGB565) Low() byte {
	return byte(c)
}

// High returns the byte stored at the odd channel address.
func (c RGB565) High() byte {
	return byte(c >> 8)
}

// R returns the red channel widened back to 8 bits, low bits zero.
func (c RGB565) R() uint8 {
	return uint8(c>>11) << 3
}

// G returns the green channel widened back to 8 bits, low bits zero.
func (c RGB565) G() uint8 {
	return uint8(c>>5&0x3F) << 2
}

// B returns the blue channel widened back to 8 bits, low bits zero.
func (c RGB565) B() uint8 {
	return uint8(c&0x1F) << 3
}
