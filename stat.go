package goexfat

import (
	"os"
	"time"
)

// Kind tells files and directories apart.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "Directory"
	}
	return "File"
}

// FileRecord describes one file or directory of a directory listing.
type FileRecord struct {
	Name       string
	Kind       Kind
	Attributes uint16

	// FirstCluster is the first cluster of the data.
	FirstCluster uint32
	// ValidLength is the number of bytes actually written, Length the size of the file.
	ValidLength uint64
	Length      uint64
	// Contiguous is set if the data occupies consecutive clusters and the FAT must not be consulted.
	Contiguous bool

	Created  time.Time
	Modified time.Time
}

// IsDir reports whether the record describes a directory.
func (r FileRecord) IsDir() bool {
	return r.Kind == KindDirectory
}

// FileInfo returns an os.FileInfo view of the record.
func (r FileRecord) FileInfo() os.FileInfo {
	return recordFileInfo{r}
}

type recordFileInfo struct {
	record FileRecord
}

func (i recordFileInfo) Name() string {
	return i.record.Name
}

func (i recordFileInfo) Size() int64 {
	if i.record.IsDir() {
		return 0
	}
	return int64(i.record.Length)
}

func (i recordFileInfo) Mode() os.FileMode {
	mode := os.FileMode(0444)
	if i.record.Attributes&AttrReadOnly == 0 {
		mode |= 0200
	}
	if i.IsDir() {
		mode |= os.ModeDir | 0111
	}
	return mode
}

func (i recordFileInfo) ModTime() time.Time {
	return i.record.Modified
}

func (i recordFileInfo) IsDir() bool {
	return i.record.IsDir()
}

func (i recordFileInfo) Sys() interface{} {
	return i.record
}
