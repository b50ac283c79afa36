package vram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPack(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    RGB565
	}{
		{name: "black", r: 0, g: 0, b: 0, want: 0x0000},
		{name: "white", r: 255, g: 255, b: 255, want: 0xFFFF},
		{name: "red", r: 255, g: 0, b: 0, want: 0xF800},
		{name: "green", r: 0, g: 255, b: 0, want: 0x07E0},
		{name: "blue", r: 0, g: 0, b: 255, want: 0x001F},
		{name: "truncation drops low bits", r: 0x07, g: 0x03, b: 0x07, want: 0x0000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pack(tt.r, tt.g, tt.b))
		})
	}
}

func TestBytesRoundTrip(t *testing.T) {
	c := Pack(0x12, 0xB4, 0x56)
	assert.Equal(t, c, FromBytes(c.Low(), c.High()))
}

func TestChannelWidening(t *testing.T) {
	c := Pack(255, 255, 255)
	assert.Equal(t, uint8(0xF8), c.R())
	assert.Equal(t, uint8(0xFC), c.G())
	assert.Equal(t, uint8(0xF8), c.B())
}
