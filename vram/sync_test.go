package vram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineSyncEdgePerAdvance(t *testing.T) {
	timing := &LineTiming{}
	sync := &LineSync{}

	// Idle sampling produces no edges.
	for i := 0; i < 5; i++ {
		_, edge := sync.Sample(timing)
		assert.False(t, edge, "edge without an advance at sample %d", i)
	}

	// Each advance becomes visible as exactly one edge, two samples
	// later.
	for line := uint32(0); line < 10; line++ {
		timing.Advance(line)

		edges := 0
		var sampledLine uint32
		for i := 0; i < 6; i++ {
			l, edge := sync.Sample(timing)
			if edge {
				edges++
				sampledLine = l
			}
		}
		assert.Equal(t, 1, edges, "advance %d", line)
		assert.Equal(t, line, sampledLine, "line index crossing with the edge")
	}
}

func TestLineSyncTwoStageDelay(t *testing.T) {
	timing := &LineTiming{}
	sync := &LineSync{}

	timing.Advance(7)

	// The first sample after the strobe flips must not yet report the
	// edge; the value needs two stages to settle.
	_, edge := sync.Sample(timing)
	assert.False(t, edge, "edge visible after one stage")

	line, edge := sync.Sample(timing)
	assert.True(t, edge, "edge not visible after two stages")
	assert.Equal(t, uint32(7), line)
}
