// Package mkfat synthesizes small FAT32 card images in memory. It exists for
// tests and has no ambition beyond them: one FAT copy, a handful of
// clusters, files allocated contiguously.
package mkfat

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	sectorSize      = 512
	reservedSectors = 32
	mbrGap          = 64 // sectors in front of the volume when partitioned
)

// entry describes one root directory slot.
type entry struct {
	name    [11]byte
	attr    byte
	deleted bool
	longish bool
	data    []byte
}

// Builder accumulates files and produces a card image.
type Builder struct {
	// SectorsPerCluster must be a power of two. Zero means 1.
	SectorsPerCluster int

	// Partitioned prefixes the volume with a master boot record and a
	// single FAT32 partition entry instead of building a superfloppy.
	Partitioned bool

	// Label is the volume label written to the boot sector.
	Label string

	entries []entry
}

func name83(name, ext string) [11]byte {
	var out [11]byte
	copy(out[:], "           ")
	copy(out[:8], strings.ToUpper(name))
	copy(out[8:], strings.ToUpper(ext))
	return out
}

// AddFile appends a regular file to the root directory.
func (b *Builder) AddFile(name, ext string, data []byte) {
	b.entries = append(b.entries, entry{name: name83(name, ext), attr: 0x20, data: data})
}

// AddDeleted appends a deleted entry, which any reader must skip.
func (b *Builder) AddDeleted(name, ext string) {
	b.entries = append(b.entries, entry{name: name83(name, ext), attr: 0x20, deleted: true})
}

// AddLongName appends a long-file-name metadata entry.
func (b *Builder) AddLongName() {
	b.entries = append(b.entries, entry{attr: 0x0F, longish: true})
}

// AddDirectory appends a subdirectory entry with no content behind it.
func (b *Builder) AddDirectory(name string) {
	b.entries = append(b.entries, entry{name: name83(name, ""), attr: 0x10})
}

// Build produces the card image, rounded up to whole sectors.
func (b *Builder) Build() []byte {
	spc := b.SectorsPerCluster
	if spc == 0 {
		spc = 1
	}
	clusterBytes := spc * sectorSize

	volStart := 0
	if b.Partitioned {
		volStart = mbrGap
	}

	// Cluster 2 is the root directory; file data follows contiguously.
	type chain struct{ first, count int }
	chains := make([]chain, len(b.entries))
	next := 3
	for i, e := range b.entries {
		if len(e.data) == 0 {
			continue
		}
		count := (len(e.data) + clusterBytes - 1) / clusterBytes
		chains[i] = chain{first: next, count: count}
		next += count
	}
	clusterCount := next

	fatSectors := (clusterCount*4 + sectorSize - 1) / sectorSize
	dataStart := volStart + reservedSectors + fatSectors
	totalSectors := dataStart - volStart + (clusterCount-2)*spc

	img := make([]byte, (dataStart+(clusterCount-2)*spc)*sectorSize)

	if b.Partitioned {
		b.writeMBR(img, totalSectors)
	}
	b.writeBootSector(img[volStart*sectorSize:], fatSectors, totalSectors)

	// FAT: reserved entries 0 and 1, end-of-chain for the root cluster,
	// then each file's chain linked contiguously.
	fat := img[(volStart+reservedSectors)*sectorSize:]
	putFAT := func(cluster int, value uint32) {
		binary.LittleEndian.PutUint32(fat[cluster*4:], value)
	}
	putFAT(0, 0x0FFFFFF8)
	putFAT(1, 0x0FFFFFFF)
	putFAT(2, 0x0FFFFFFF)
	for _, c := range chains {
		for i := 0; i < c.count; i++ {
			if i == c.count-1 {
				putFAT(c.first+i, 0x0FFFFFFF)
			} else {
				putFAT(c.first+i, uint32(c.first+i+1))
			}
		}
	}

	// Root directory in cluster 2.
	root := img[dataStart*sectorSize:]
	for i, e := range b.entries {
		slot := root[i*32 : (i+1)*32]
		if e.longish {
			slot[0] = 0x41
			slot[11] = 0x0F
			continue
		}
		copy(slot[:11], e.name[:])
		if e.deleted {
			slot[0] = 0xE5
		}
		slot[11] = e.attr
		binary.LittleEndian.PutUint16(slot[20:], uint16(chains[i].first>>16))
		binary.LittleEndian.PutUint16(slot[22:], 0x7BC5) // 15:30:10
		binary.LittleEndian.PutUint16(slot[24:], 0x58C5) // 2024-06-05
		binary.LittleEndian.PutUint16(slot[26:], uint16(chains[i].first&0xFFFF))
		binary.LittleEndian.PutUint32(slot[28:], uint32(len(e.data)))
	}

	// File data.
	for i, e := range b.entries {
		if len(e.data) == 0 {
			continue
		}
		off := (dataStart + (chains[i].first-2)*spc) * sectorSize
		copy(img[off:], e.data)
	}

	return img
}

func (b *Builder) writeMBR(img []byte, totalSectors int) {
	part := img[446:]
	part[4] = 0x0C // FAT32 LBA
	binary.LittleEndian.PutUint32(part[8:], mbrGap)
	binary.LittleEndian.PutUint32(part[12:], uint32(totalSectors))
	img[510] = 0x55
	img[511] = 0xAA
}

func (b *Builder) writeBootSector(sec []byte, fatSectors, totalSectors int) {
	spc := b.SectorsPerCluster
	if spc == 0 {
		spc = 1
	}

	copy(sec[0:], []byte{0xEB, 0x58, 0x90})
	copy(sec[3:], "MKFAT   ")
	binary.LittleEndian.PutUint16(sec[11:], sectorSize)
	sec[13] = byte(spc)
	binary.LittleEndian.PutUint16(sec[14:], reservedSectors)
	sec[16] = 1 // one FAT copy
	binary.LittleEndian.PutUint32(sec[32:], uint32(totalSectors))
	binary.LittleEndian.PutUint32(sec[36:], uint32(fatSectors))
	binary.LittleEndian.PutUint32(sec[44:], 2) // root cluster

	label := fmt.Sprintf("%-11s", b.Label)
	copy(sec[71:], label[:11])
	copy(sec[82:], "FAT32   ")

	sec[510] = 0x55
	sec[511] = 0xAA
}
