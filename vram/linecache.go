package vram

import (
	"errors"
)

// ErrLineDeadline is the fatal timing violation: the display reader advanced
// to a new line before the standby buffer was filled. There is no recovery
// inside a session; the throughput budget was simply missed.
var ErrLineDeadline = errors.New("scanline fill missed the display deadline")

// LineCache holds two scanline buffers. The display reader drains the active
// one while the fill side loads the upcoming row into the standby one
// through the memory controller. The roles swap on every line-advance edge,
// a single flag flip.
//
// Tick runs in the fill domain. The display domain only writes the
// LineTiming signals and reads the active buffer.
type LineCache struct {
	ctrl   *Controller
	timing *LineTiming
	sync   LineSync

	width  int
	height int
	bufs   [2][]RGB565
	active int

	filling   bool
	fillRow   uint32
	offered   int
	filled    int
	lineReady bool

	fillTicks    int
	maxFillTicks int

	fault error
}

// NewLineCache wires the cache between the controller and the display
// timing signals and starts prefetching row 0 into the standby buffer.
func NewLineCache(ctrl *Controller, timing *LineTiming) *LineCache {
	store := ctrl.Store()
	lc := &LineCache{
		ctrl:   ctrl,
		timing: timing,
		width:  store.Width(),
		height: store.Height(),
	}
	lc.bufs[0] = make([]RGB565, lc.width)
	lc.bufs[1] = make([]RGB565, lc.width)

	lc.beginFill(0)

	return lc
}

func (lc *LineCache) beginFill(row uint32) {
	lc.filling = true
	lc.fillRow = row
	lc.offered = 0
	lc.filled = 0
	lc.fillTicks = 0
}

// standby returns the buffer currently being filled.
func (lc *LineCache) standby() []RGB565 {
	return lc.bufs[lc.active^1]
}

// Active returns the buffer the display reader drains. Exactly one buffer is
// active at any time; the other is the fill target.
func (lc *LineCache) Active() []RGB565 {
	return lc.bufs[lc.active]
}

// ActiveIndex returns which of the two buffers is active, for invariant
// checks.
func (lc *LineCache) ActiveIndex() int {
	return lc.active
}

// TakeLineReady reports whether a swap happened since the last call, i.e.
// the active buffer holds a freshly filled line.
func (lc *LineCache) TakeLineReady() bool {
	ready := lc.lineReady
	lc.lineReady = false
	return ready
}

// Fault returns the latched timing violation, or nil.
func (lc *LineCache) Fault() error {
	return lc.fault
}

// MaxFillTicks returns the worst observed ticks from fill start to
// completion, the margin against the line deadline.
func (lc *LineCache) MaxFillTicks() int {
	return lc.maxFillTicks
}

// Tick advances the fill domain by one step: sample the timing signals,
// swap on a line edge, and keep pulling the upcoming row out of the store.
// The controller's own Tick must be driven separately; the cache only files
// requests and collects results.
func (lc *LineCache) Tick() {
	if lc.fault != nil {
		return
	}

	line, edge := lc.sync.Sample(lc.timing)

	if edge {
		if lc.filling {
			lc.fault = ErrLineDeadline
			return
		}

		// The swap is the only point where buffer roles change, and
		// it is a single flag flip.
		lc.active ^= 1
		lc.lineReady = true

		lc.beginFill((line + 1) % uint32(lc.height))
	}

	if !lc.filling {
		return
	}
	lc.fillTicks++

	// Collect a completed read before issuing the next request so the
	// read port never sits on a finished value.
	if color, ok := lc.ctrl.TakeRead(); ok {
		lc.standby()[lc.filled] = color
		lc.filled++
		if lc.filled == lc.width {
			lc.filling = false
			if lc.fillTicks > lc.maxFillTicks {
				lc.maxFillTicks = lc.fillTicks
			}
			return
		}
	}

	if lc.offered < lc.width {
		index := lc.fillRow*uint32(lc.width) + uint32(lc.offered)
		ok, err := lc.ctrl.OfferRead(index)
		if err != nil {
			lc.fault = err
			return
		}
		if ok {
			lc.offered++
		}
	}
}
