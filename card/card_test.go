package card

import (
	"bytes"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
)

// testImage builds a card image of n blocks where every block is filled with
// a pattern derived from its block number, so any block can be verified
// independently.
func testImage(n int) []byte {
	img := make([]byte, n*BlockSize)
	for block := 0; block < n; block++ {
		for i := 0; i < BlockSize; i++ {
			img[block*BlockSize+i] = byte(block*7 + i)
		}
	}
	return img
}

func TestDriverInitialize(t *testing.T) {
	tests := []struct {
		name               string
		sdhc               bool
		busyPolls          int
		wantErr            error
		wantState          State
		wantBlockAddressed bool
	}{
		{
			name:               "high capacity card",
			sdhc:               true,
			wantState:          Ready,
			wantBlockAddressed: true,
		},
		{
			name:               "high capacity card that needs polling",
			sdhc:               true,
			busyPolls:          25,
			wantState:          Ready,
			wantBlockAddressed: true,
		},
		{
			name:               "legacy byte addressed card",
			sdhc:               false,
			wantState:          Ready,
			wantBlockAddressed: false,
		},
		{
			name:      "card that never leaves idle",
			sdhc:      true,
			busyPolls: opCondAttempts + 1,
			wantErr:   ErrEnumerationStalled,
			wantState: Fatal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage(4)
			trx := NewImageCard(bytes.NewReader(img), int64(len(img)))
			trx.SDHC = tt.sdhc
			trx.BusyPolls = tt.busyPolls

			d := NewDriver(trx)
			err := d.Initialize()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Initialize() error = %v, want %v", err, tt.wantErr)
			}
			if d.State() != tt.wantState {
				t.Errorf("State() = %v, want %v", d.State(), tt.wantState)
			}
			if tt.wantErr == nil && d.BlockAddressed() != tt.wantBlockAddressed {
				t.Errorf("BlockAddressed() = %v, want %v", d.BlockAddressed(), tt.wantBlockAddressed)
			}
		})
	}
}

func TestDriverReadBlock(t *testing.T) {
	tests := []struct {
		name    string
		sdhc    bool
		blocks  []uint32
		wantErr error
	}{
		{
			name:   "block addressed reads",
			sdhc:   true,
			blocks: []uint32{0, 3, 1, 1},
		},
		{
			name:   "byte addressed reads",
			sdhc:   false,
			blocks: []uint32{2, 0},
		},
		{
			name:    "read past the end of the card",
			sdhc:    true,
			blocks:  []uint32{100},
			wantErr: ErrCommandRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage(4)
			trx := NewImageCard(bytes.NewReader(img), int64(len(img)))
			trx.SDHC = tt.sdhc

			d := NewDriver(trx)
			if err := d.Initialize(); err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}

			for _, n := range tt.blocks {
				block, err := d.ReadBlock(n)
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadBlock(%d) error = %v, want %v", n, err, tt.wantErr)
				}
				if tt.wantErr != nil {
					continue
				}
				want := img[int(n)*BlockSize : int(n+1)*BlockSize]
				if !bytes.Equal(block[:], want) {
					t.Errorf("ReadBlock(%d) payload does not match the image", n)
				}
			}
		})
	}
}

func TestDriverReadBlockNotReady(t *testing.T) {
	img := testImage(1)
	d := NewDriver(NewImageCard(bytes.NewReader(img), int64(len(img))))

	if _, err := d.ReadBlock(0); !errors.Is(err, ErrNotReady) {
		t.Errorf("ReadBlock() before Initialize() error = %v, want %v", err, ErrNotReady)
	}
}

func TestDriverCardRemoved(t *testing.T) {
	img := testImage(2)
	trx := NewImageCard(bytes.NewReader(img), int64(len(img)))

	d := NewDriver(trx)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := d.ReadBlock(0); err != nil {
		t.Fatalf("ReadBlock() error = %v", err)
	}

	trx.Remove()

	if _, err := d.ReadBlock(1); !errors.Is(err, ErrTransport) {
		t.Errorf("ReadBlock() after removal error = %v, want %v", err, ErrTransport)
	}
	if d.State() != Fatal {
		t.Errorf("State() after removal = %v, want %v", d.State(), Fatal)
	}

	// The fatal state is sticky: further reads are suppressed without a
	// fresh Initialize.
	if _, err := d.ReadBlock(1); !errors.Is(err, ErrNotReady) {
		t.Errorf("ReadBlock() in fatal state error = %v, want %v", err, ErrNotReady)
	}
}

func TestDriverReinitializeAfterFatal(t *testing.T) {
	img := testImage(2)
	trx := NewImageCard(bytes.NewReader(img), int64(len(img)))

	d := NewDriver(trx)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	// Force a fatal condition, then recover from cold.
	if _, err := d.ReadBlock(100); err == nil {
		t.Fatal("ReadBlock() out of range did not fail")
	}
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize() after fatal error = %v", err)
	}
	if d.State() != Ready {
		t.Errorf("State() = %v, want %v", d.State(), Ready)
	}
	if d.Fault() != nil {
		t.Errorf("Fault() = %v, want nil after reinitialization", d.Fault())
	}
}

func TestDriverNoResponse(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// A card that never answers: the link works but only ever returns
	// fill bytes.
	trx := NewMockTransceiver(mockCtrl)
	trx.EXPECT().SetRate(gomock.Any()).AnyTimes()
	trx.EXPECT().Select(gomock.Any()).AnyTimes()
	trx.EXPECT().Exchange(gomock.Any()).Return(byte(0xFF), nil).AnyTimes()

	d := NewDriver(trx)
	if err := d.Initialize(); !errors.Is(err, ErrNoResponse) {
		t.Errorf("Initialize() error = %v, want %v", err, ErrNoResponse)
	}
	if d.State() != Fatal {
		t.Errorf("State() = %v, want %v", d.State(), Fatal)
	}
}

func TestDriverTransportFault(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	linkErr := errors.New("wire broke")

	trx := NewMockTransceiver(mockCtrl)
	trx.EXPECT().SetRate(gomock.Any()).AnyTimes()
	trx.EXPECT().Select(gomock.Any()).AnyTimes()
	trx.EXPECT().Exchange(gomock.Any()).Return(byte(0xFF), linkErr).AnyTimes()

	d := NewDriver(trx)
	err := d.Initialize()
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Initialize() error = %v, want %v", err, ErrTransport)
	}
	if !errors.Is(err, linkErr) {
		t.Errorf("Initialize() error = %v, want the underlying %v in the chain", err, linkErr)
	}
}

func TestCRC7(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  byte
	}{
		{
			name:  "reset command",
			frame: []byte{0x40, 0x00, 0x00, 0x00, 0x00},
			want:  0x4A,
		},
		{
			name:  "interface condition command",
			frame: []byte{0x48, 0x00, 0x00, 0x01, 0xAA},
			want:  0x43,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crc7(tt.frame); got != tt.want {
				t.Errorf("crc7() = %#02x, want %#02x", got, tt.want)
			}
		})
	}
}
