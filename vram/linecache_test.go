package vram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// displayStore builds a store in the display phase where pixel (row, col)
// holds a color derived from its position.
func displayStore(t *testing.T, width, height, refreshInterval int) *Controller {
	t.Helper()

	store := NewStore(width, height)
	ctrl := NewController(store, refreshInterval)

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			mustWrite(t, ctrl, uint32(row*width+col), rowColor(row, col))
		}
	}

	ctrl.EnterDisplayPhase()
	return ctrl
}

func rowColor(row, col int) RGB565 {
	return RGB565(row*1000 + col + 1)
}

// runFill ticks the fill domain and the channel together for n steps.
func runFill(lc *LineCache, ctrl *Controller, n int) {
	for i := 0; i < n; i++ {
		lc.Tick()
		ctrl.Tick()
	}
}

func TestLineCacheAlternation(t *testing.T) {
	const width, height = 4, 3

	ctrl := displayStore(t, width, height, 100)
	timing := &LineTiming{}
	lc := NewLineCache(ctrl, timing)

	// Generous budget per line: each pixel costs two channel ticks plus
	// arbitration slack.
	const budget = width * 8

	// Let the initial prefetch of row 0 finish.
	runFill(lc, ctrl, budget)
	require.NoError(t, lc.Fault())

	prevActive := lc.ActiveIndex()

	for line := uint32(0); line < 9; line++ {
		timing.Advance(line)
		runFill(lc, ctrl, budget)
		require.NoError(t, lc.Fault(), "line %d", line)

		// Exactly one swap per line-advance edge.
		assert.NotEqual(t, prevActive, lc.ActiveIndex(), "no swap for line %d", line)
		prevActive = lc.ActiveIndex()
		assert.True(t, lc.TakeLineReady(), "line ready not raised for line %d", line)
		assert.False(t, lc.TakeLineReady(), "line ready raised twice for line %d", line)

		// The active buffer holds the row the display is scanning,
		// wrapped around the frame height.
		want := int(line % height)
		for col := 0; col < width; col++ {
			assert.Equal(t, rowColor(want, col), lc.Active()[col],
				"line %d col %d", line, col)
		}
	}
}

func TestLineCacheDeadlineMiss(t *testing.T) {
	ctrl := displayStore(t, 4, 2, 100)
	timing := &LineTiming{}
	lc := NewLineCache(ctrl, timing)

	// Advance the display without granting the fill side any channel
	// time: the initial prefetch of row 0 cannot have finished.
	timing.Advance(0)
	for i := 0; i < 4; i++ {
		lc.Tick()
	}

	require.Error(t, lc.Fault())
	assert.True(t, errors.Is(lc.Fault(), ErrLineDeadline))

	// The fault is sticky; further ticks must not clear it.
	runFill(lc, ctrl, 100)
	assert.True(t, errors.Is(lc.Fault(), ErrLineDeadline))
}

func TestLineCacheFillMargin(t *testing.T) {
	ctrl := displayStore(t, 8, 2, 100)
	timing := &LineTiming{}
	lc := NewLineCache(ctrl, timing)

	runFill(lc, ctrl, 200)
	require.NoError(t, lc.Fault())

	// Eight pixels at two channel ticks each is the floor; arbitration
	// slack must stay modest when the channel is otherwise idle.
	assert.GreaterOrEqual(t, lc.MaxFillTicks(), 16)
	assert.Less(t, lc.MaxFillTicks(), 64)
}
