package fat

import (
	"fmt"
	"io"

	"github.com/klarke/photoframe/trace"
)

// ChainReader streams a file's bytes by walking its cluster chain. It
// implements io.Reader and yields exactly the file size before io.EOF,
// regardless of how much space the final cluster wastes.
//
// The chain is materialized lazily: the next link is only resolved from the
// FAT once the current cluster is exhausted.
type ChainReader struct {
	vol *Volume

	cluster   uint32
	sector    uint32 // next sector index within the current cluster
	remaining uint32 // file bytes not yet yielded

	buf    []byte
	bufOff int

	err error
}

// FileReader returns a reader over the file described by entry. The walk is
// bounded even on a corrupt FAT with a looping chain: at most
// ceil(size/clusterBytes) clusters are ever visited because the reader stops
// after exactly the file size.
func (vol *Volume) FileReader(entry Entry) *ChainReader {
	return &ChainReader{
		vol:       vol,
		cluster:   entry.StartCluster(),
		remaining: uint32(entry.Size()),
	}
}

// Read implements io.Reader. Any resolver or device error is sticky.
func (r *ChainReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	n := 0
	for n < len(p) {
		if r.bufOff == len(r.buf) {
			if r.remaining == 0 {
				r.err = io.EOF
				break
			}
			if err := r.fill(); err != nil {
				r.err = err
				break
			}
		}

		copied := copy(p[n:], r.buf[r.bufOff:])
		n += copied
		r.bufOff += copied
	}

	if n > 0 {
		return n, nil
	}
	return 0, r.err
}

// fill loads the next data sector, advancing the cluster chain when the
// current cluster is exhausted.
func (r *ChainReader) fill() error {
	// Data clusters start at 2. A smaller start cluster with a nonzero
	// file size is a corrupt directory entry.
	if r.cluster < 2 {
		return trace.Wrap(fmt.Errorf("start cluster %d", r.cluster), ErrEndOfChain)
	}

	if r.sector == uint32(r.vol.info.SectorsPerCluster) {
		next, err := r.vol.nextCluster(r.cluster)
		if err != nil {
			return err
		}
		if next >= eocFirst || next == badCluster {
			// The chain ended but the file size says there should
			// be more.
			return trace.Wrap(fmt.Errorf("%d bytes missing", r.remaining), ErrEndOfChain)
		}
		r.cluster = next
		r.sector = 0
	}

	block, err := r.vol.dev.ReadBlock(r.vol.clusterSector(r.cluster) + r.sector)
	if err != nil {
		return trace.Wrap(err, ErrDeviceFault)
	}
	r.sector++

	take := uint32(sectorSize)
	if r.remaining < take {
		take = r.remaining
	}
	r.remaining -= take

	r.buf = block[:take]
	r.bufOff = 0

	return nil
}
