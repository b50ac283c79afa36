// Package fat resolves a single file on a read-only FAT32 volume behind a
// block device. It is deliberately narrow: locate one file in the root
// directory by extension and stream its cluster chain. There is no write
// support and no subdirectory traversal.
package fat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/klarke/photoframe/card"
	"github.com/klarke/photoframe/trace"
)

// These errors may occur while mounting or searching a volume. They are
// distinct on purpose so a caller can tell a broken card from a card that
// simply holds no usable image.
var (
	ErrDeviceFault   = errors.New("block device read failed")
	ErrBootSignature = errors.New("boot signature missing")
	ErrNotFAT32      = errors.New("not a FAT32 volume")
	ErrFileNotFound  = errors.New("no matching file in the root directory")
	ErrEndOfChain    = errors.New("cluster chain ended before the file size was reached")
)

const (
	sectorSize     = card.BlockSize
	dirEntrySize   = 32
	bootSignOffset = 510
	mbrEntryOffset = 446

	// FAT32 chain entries use 28 bits, the top nibble is reserved.
	fatEntryMask = 0x0FFFFFFF
	// End-of-chain range. Any masked value at or above eocFirst ends the
	// chain.
	eocFirst = 0x0FFFFFF8
	// badCluster marks an unusable cluster and must never appear inside a
	// file's chain.
	badCluster = 0x0FFFFFF7
)

// BlockDevice is what the resolver needs from the storage layer. It is
// satisfied by *card.Driver. It mainly exists to be able to mock the device
// in tests.
// Generated mock using mockgen:
//
//	mockgen -source=volume.go -destination=blockdevice_mock.go -package fat
type BlockDevice interface {
	ReadBlock(n uint32) (*card.Block, error)
}

// Info describes a mounted volume. It is derived once during Mount and
// immutable afterwards.
type Info struct {
	PartitionStart    uint32
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATStart          uint32
	DataStart         uint32
	RootCluster       uint32
	TotalSectors      uint32
}

// window is a single-sector read cache. Directory scans and FAT lookups walk
// sectors linearly, so keeping the last fetched sector avoids rereading it
// for every 32-byte entry.
type window struct {
	current uint32
	valid   bool
	buffer  card.Block
}

// Volume is a mounted, read-only FAT32 volume.
type Volume struct {
	dev   BlockDevice
	info  Info
	win   window
	label string
}

// Mount reads the partition table and boot sector from dev and returns a
// usable volume. Both partitioned cards and superfloppy cards (the boot
// sector directly in block 0) are accepted.
func Mount(dev BlockDevice) (*Volume, error) {
	vol := &Volume{dev: dev}

	if err := vol.fetch(0); err != nil {
		return nil, err
	}

	if vol.win.buffer[bootSignOffset] != 0x55 || vol.win.buffer[bootSignOffset+1] != 0xAA {
		return nil, trace.From(ErrBootSignature)
	}

	start, err := vol.partitionStart()
	if err != nil {
		return nil, err
	}

	if err := vol.readBootSector(start); err != nil {
		return nil, err
	}

	return vol, nil
}

// partitionStart decides whether block 0 is already a FAT32 boot sector or a
// master boot record and returns the first block of the volume.
func (vol *Volume) partitionStart() (uint32, error) {
	// A boot sector begins with a jump instruction; an MBR has no reason
	// to. This is the same heuristic every firmware uses.
	jmp := vol.win.buffer[0]
	if (jmp == 0xEB && vol.win.buffer[2] == 0x90) || jmp == 0xE9 {
		return 0, nil
	}

	var part PartitionEntry
	err := binary.Read(bytes.NewReader(vol.win.buffer[mbrEntryOffset:]), binary.LittleEndian, &part)
	if err != nil {
		return 0, trace.Wrap(err, ErrNotFAT32)
	}

	// 0x0B and 0x0C are the FAT32 partition types (CHS and LBA flavors).
	if part.Type != 0x0B && part.Type != 0x0C {
		return 0, trace.Wrap(fmt.Errorf("partition type %#02x", part.Type), ErrNotFAT32)
	}

	return part.LBAStart, nil
}

// readBootSector parses and validates the boot sector at the given block and
// fills in the volume descriptor.
func (vol *Volume) readBootSector(start uint32) error {
	if err := vol.fetch(start); err != nil {
		return err
	}

	if vol.win.buffer[bootSignOffset] != 0x55 || vol.win.buffer[bootSignOffset+1] != 0xAA {
		return trace.From(ErrBootSignature)
	}

	var bpb BPB
	err := binary.Read(bytes.NewReader(vol.win.buffer[:]), binary.LittleEndian, &bpb)
	if err != nil {
		return trace.Wrap(err, ErrNotFAT32)
	}

	// The driver below always transfers 512-byte blocks, so larger FAT
	// sector sizes cannot be mapped onto it.
	if bpb.BytesPerSector != sectorSize {
		return trace.Wrap(fmt.Errorf("sector size %d", bpb.BytesPerSector), ErrNotFAT32)
	}

	// Sectors per cluster must be a nonzero power of two.
	if bpb.SectorsPerCluster == 0 || bpb.SectorsPerCluster&(bpb.SectorsPerCluster-1) != 0 {
		return trace.Wrap(fmt.Errorf("sectors per cluster %d", bpb.SectorsPerCluster), ErrNotFAT32)
	}

	if bpb.ReservedSectorCount == 0 {
		return trace.Wrap(errors.New("zero reserved sectors"), ErrNotFAT32)
	}

	// FAT12/16 volumes carry a fixed root directory region and a 16-bit
	// FAT size; on FAT32 both must be zero.
	if bpb.RootEntryCount != 0 || bpb.FATSize16 != 0 || bpb.FAT32.FATSize == 0 {
		return trace.Wrap(errors.New("FAT12/16 layout"), ErrNotFAT32)
	}

	if bpb.FAT32.RootCluster < 2 {
		return trace.Wrap(fmt.Errorf("root cluster %d", bpb.FAT32.RootCluster), ErrNotFAT32)
	}

	vol.info = Info{
		PartitionStart:    start,
		SectorsPerCluster: bpb.SectorsPerCluster,
		ReservedSectors:   bpb.ReservedSectorCount,
		FATStart:          start + uint32(bpb.ReservedSectorCount),
		RootCluster:       bpb.FAT32.RootCluster,
		TotalSectors:      bpb.TotalSectors32,
	}
	vol.info.DataStart = vol.info.FATStart + uint32(bpb.NumFATs)*bpb.FAT32.FATSize
	vol.label = strings.TrimRight(string(bpb.FAT32.BSVolumeLabel[:]), " ")

	return nil
}

// Info returns the volume descriptor.
func (vol *Volume) Info() Info {
	return vol.info
}

// Label returns the volume label from the boot sector.
func (vol *Volume) Label() string {
	return vol.label
}

// fetch loads a specific single sector of the card into the window. Loading
// the sector that is already present is free.
func (vol *Volume) fetch(sector uint32) error {
	if vol.win.valid && sector == vol.win.current {
		return nil
	}

	block, err := vol.dev.ReadBlock(sector)
	if err != nil {
		return trace.Wrap(err, ErrDeviceFault)
	}

	vol.win.buffer = *block
	vol.win.current = sector
	vol.win.valid = true

	return nil
}

// clusterSector returns the first sector of a data cluster. Data clusters
// are numbered from 2.
func (vol *Volume) clusterSector(cluster uint32) uint32 {
	return vol.info.DataStart + (cluster-2)*uint32(vol.info.SectorsPerCluster)
}

// nextCluster resolves one link of the cluster chain from the FAT. Only the
// low 28 bits of a FAT32 entry are significant.
func (vol *Volume) nextCluster(cluster uint32) (uint32, error) {
	sector := vol.info.FATStart + cluster/(sectorSize/4)
	offset := (cluster % (sectorSize / 4)) * 4

	if err := vol.fetch(sector); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(vol.win.buffer[offset:]) & fatEntryMask, nil
}

// LocateByExt scans the root directory for the first file whose extension
// matches ext (case-insensitive, without the dot). Deleted entries, long
// file name entries, subdirectories and the volume label are skipped.
//
// Only the first cluster of the root directory is scanned. A root directory
// that grew beyond one cluster is not supported; a match beyond it reports
// ErrFileNotFound. See the package documentation.
func (vol *Volume) LocateByExt(ext string) (Entry, error) {
	first := vol.clusterSector(vol.info.RootCluster)

	for s := uint32(0); s < uint32(vol.info.SectorsPerCluster); s++ {
		if err := vol.fetch(first + s); err != nil {
			return Entry{}, err
		}

		for off := 0; off < sectorSize; off += dirEntrySize {
			raw := vol.win.buffer[off : off+dirEntrySize]

			switch {
			case raw[0] == entryLast:
				return Entry{}, trace.From(ErrFileNotFound)
			case raw[0] == entryFree:
				continue
			}

			var header EntryHeader
			if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &header); err != nil {
				return Entry{}, trace.Wrap(err, ErrDeviceFault)
			}

			if header.Attribute&attrLongName == attrLongName {
				continue
			}
			if header.Attribute&(attrDirectory|attrVolumeLabel) != 0 {
				continue
			}

			entryExt := strings.TrimRight(string(header.Name[8:11]), " ")
			if strings.EqualFold(entryExt, ext) {
				return newEntry(header), nil
			}
		}
	}

	return Entry{}, trace.From(ErrFileNotFound)
}
