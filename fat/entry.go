package fat

import (
	"os"
	"strings"
	"time"
)

// Entry is the resolver's view of one root directory entry. It implements
// os.FileInfo so callers can print it like any other file.
type Entry struct {
	header EntryHeader
}

func newEntry(header EntryHeader) Entry {
	return Entry{header: header}
}

// StartCluster returns the first cluster of the file's chain. The cluster
// number is stored split into two 16-bit halves.
func (e Entry) StartCluster() uint32 {
	return uint32(e.header.FirstClusterHI)<<16 | uint32(e.header.FirstClusterLO)
}

// Name returns the 8.3 name joined with a dot, trailing padding removed.
func (e Entry) Name() string {
	name := strings.TrimRight(string(e.header.Name[:8]), " ")
	ext := strings.TrimRight(string(e.header.Name[8:11]), " ")

	if ext != "" {
		name += "."
	}

	return name + ext
}

func (e Entry) Size() int64 {
	return int64(e.header.FileSize)
}

func (e Entry) Mode() os.FileMode {
	return 0
}

// ModTime returns the entry's last write timestamp. An invalid date field
// yields the zero time.
func (e Entry) ModTime() time.Time {
	writeDate := ParseDate(e.header.WriteDate)
	writeTime := ParseTime(e.header.WriteTime)

	// A zero date means the field held an invalid value. The time part
	// cannot be checked the same way because midnight is a valid time.
	if writeDate.IsZero() {
		return time.Time{}
	}

	return time.Date(writeDate.Year(), writeDate.Month(), writeDate.Day(),
		writeTime.Hour(), writeTime.Minute(), writeTime.Second(), 0, time.UTC)
}

func (e Entry) IsDir() bool {
	return false
}

func (e Entry) Sys() interface{} {
	return e.header
}
