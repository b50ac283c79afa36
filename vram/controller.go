package vram

import (
	"errors"
)

// ErrPhase is returned when an offer does not match the controller's current
// phase: decoder writes during display, scanline reads during load.
var ErrPhase = errors.New("operation does not match the access phase")

// Grant names what the channel did in one tick.
type Grant int

const (
	GrantNone Grant = iota
	GrantRefresh
	GrantWriteLow
	GrantWriteHigh
	GrantReadLow
	GrantReadHigh
)

func (g Grant) String() string {
	switch g {
	case GrantNone:
		return "idle"
	case GrantRefresh:
		return "refresh"
	case GrantWriteLow:
		return "write low"
	case GrantWriteHigh:
		return "write high"
	case GrantReadLow:
		return "read low"
	case GrantReadHigh:
		return "read high"
	}
	return "unknown"
}

// IsWrite reports whether the grant moved decoder data.
func (g Grant) IsWrite() bool {
	return g == GrantWriteLow || g == GrantWriteHigh
}

// IsRead reports whether the grant moved scanline data.
func (g Grant) IsRead() bool {
	return g == GrantReadLow || g == GrantReadHigh
}

// Stats counts channel grants for throughput inspection.
type Stats struct {
	Ticks     uint64
	Refreshes uint64
	Writes    uint64 // completed color writes
	Reads     uint64 // completed color reads
	Idle      uint64
}

// Controller multiplexes the three operation classes onto the single memory
// channel. Priority is fixed: refresh first, then whichever data class the
// current phase allows. The two classes can never contend with each other
// because the phase flag makes them mutually exclusive.
//
// A color access is two byte operations, low then high, at adjacent
// addresses. Refresh may preempt between the two.
type Controller struct {
	store *Store

	// refreshInterval is the maintenance ceiling in ticks. Every
	// refreshInterval-th tick is spent on a refresh cycle no matter what
	// else is pending.
	refreshInterval int
	sinceRefresh    int

	display bool // false: load phase, true: display phase

	// At most one data access is in flight. lowDone marks that the low
	// byte has been transferred and the high byte is still owed.
	writePending bool
	writeIndex   uint32
	writeColor   RGB565
	writeLowDone bool

	readPending bool
	readIndex   uint32
	readLowDone bool
	readLow     byte
	readResult  RGB565
	readDone    bool

	stats Stats
}

// NewController wires the arbiter to its arena. refreshInterval is the
// maintenance ceiling in ticks; the controller spends one tick on refresh at
// least that often.
func NewController(store *Store, refreshInterval int) *Controller {
	return &Controller{
		store:           store,
		refreshInterval: refreshInterval,
	}
}

// Store returns the arena behind the controller.
func (c *Controller) Store() *Store {
	return c.store
}

// DisplayPhase reports whether the controller serves scanline reads rather
// than decoder writes.
func (c *Controller) DisplayPhase() bool {
	return c.display
}

// EnterDisplayPhase flips the phase flag. The decoder has finished; from now
// on only reads are granted. There is no way back short of a cold restart,
// matching the load-then-display session model.
func (c *Controller) EnterDisplayPhase() {
	c.display = true
}

// Stats returns the grant counters so far.
func (c *Controller) Stats() Stats {
	return c.stats
}

// Idle reports whether no data access is in flight or waiting to be
// collected. Callers use it to flush the channel before a phase change.
func (c *Controller) Idle() bool {
	return !c.writePending && !c.readPending && !c.readDone
}

// OfferWrite hands the controller one decoded pixel. It reports false while
// the write port is busy; the caller must hold the pixel and offer it again,
// which is the backpressure half of the ready/valid handshake.
func (c *Controller) OfferWrite(index uint32, color RGB565) (bool, error) {
	if c.display {
		return false, ErrPhase
	}
	if err := c.store.check(index); err != nil {
		return false, err
	}
	if c.writePending {
		return false, nil
	}

	c.writePending = true
	c.writeIndex = index
	c.writeColor = color
	c.writeLowDone = false

	return true, nil
}

// OfferRead requests the color at a cell for the scanline cache. It reports
// false while the read port is busy.
func (c *Controller) OfferRead(index uint32) (bool, error) {
	if !c.display {
		return false, ErrPhase
	}
	if err := c.store.check(index); err != nil {
		return false, err
	}
	if c.readPending || c.readDone {
		return false, nil
	}

	c.readPending = true
	c.readIndex = index
	c.readLowDone = false

	return true, nil
}

// TakeRead pops a completed read, if any.
func (c *Controller) TakeRead() (RGB565, bool) {
	if !c.readDone {
		return 0, false
	}
	c.readDone = false
	return c.readResult, true
}

// Tick advances the channel by one byte operation and returns what was
// granted.
func (c *Controller) Tick() Grant {
	c.stats.Ticks++

	// Refresh preempts everything, including the gap between the two
	// bytes of a data access.
	c.sinceRefresh++
	if c.sinceRefresh >= c.refreshInterval {
		c.sinceRefresh = 0
		c.stats.Refreshes++
		return GrantRefresh
	}

	if c.writePending {
		if !c.writeLowDone {
			c.store.setByte(c.writeIndex, false, c.writeColor.Low())
			c.writeLowDone = true
			return GrantWriteLow
		}
		c.store.setByte(c.writeIndex, true, c.writeColor.High())
		c.writePending = false
		c.stats.Writes++
		return GrantWriteHigh
	}

	if c.readPending {
		if !c.readLowDone {
			c.readLow = c.store.byteAt(c.readIndex, false)
			c.readLowDone = true
			return GrantReadLow
		}
		hi := c.store.byteAt(c.readIndex, true)
		c.readResult = FromBytes(c.readLow, hi)
		c.readPending = false
		c.readDone = true
		c.stats.Reads++
		return GrantReadHigh
	}

	c.stats.Idle++
	return GrantNone
}
