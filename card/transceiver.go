package card

// Rate selects the clock rate of the serial link. Enumeration must happen at
// the compatibility rate; once the card reports ready the driver switches to
// the full rate.
type Rate int

const (
	// RateInit is the slow compatibility rate (at most 400kHz on real
	// wiring) every card accepts before enumeration.
	RateInit Rate = iota

	// RateFull is the operating rate used for data transfers.
	RateFull
)

// Transceiver is the byte-level serial link to the card. SPI is full duplex:
// every transmitted byte clocks one received byte back, so a read is an
// exchange of 0xFF.
//
// Implementations are the real wiring and the card-image emulation in this
// package. It mainly exists to be able to mock the link in tests.
// Generated mock using mockgen:
//
//	mockgen -source=transceiver.go -destination=transceiver_mock.go -package card
type Transceiver interface {
	// Exchange clocks one byte out and returns the byte clocked in. An
	// error means the link itself failed (card removed, wiring fault)
	// and is always fatal to the driver.
	Exchange(tx byte) (byte, error)

	// Select asserts or releases the chip-select line.
	Select(assert bool)

	// SetRate switches the link clock rate.
	SetRate(rate Rate)
}
