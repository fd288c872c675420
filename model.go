// File model contains the structs which match the direct structures of the exFAT filesystem.

package goexfat

import "github.com/aligator/goexfat/blockdev"

// BootSector is the main boot sector of an exFAT volume.
// All multi byte fields are little endian.
type BootSector struct {
	JumpBoot                    [3]byte
	FileSystemName              [8]byte
	MustBeZero                  [53]byte
	PartitionOffset             uint64
	VolumeLength                uint64
	FatOffset                   uint32
	FatLength                   uint32
	ClusterHeapOffset           uint32
	ClusterCount                uint32
	FirstClusterOfRootDirectory uint32
	VolumeSerialNumber          uint32
	FileSystemRevision          uint16
	VolumeFlags                 uint16
	BytesPerSectorShift         uint8
	SectorsPerClusterShift      uint8
	NumberOfFats                uint8
	DriveSelect                 uint8
	PercentInUse                uint8
	Reserved                    [7]byte
	BootCode                    [390]byte
	BootSignature               [2]byte
}

// Entry types of the directory entries which are understood.
// The high bit marks an entry as in use, so deleted entries never match.
const (
	entryEndOfDirectory  = 0x00
	entryAllocationBmp   = 0x81
	entryUpcaseTable     = 0x82
	entryVolumeLabel     = 0x83
	entryFile            = 0x85
	entryStreamExtension = 0xC0
	entryFileName        = 0xC1
)

const (
	entrySize       = 32
	entriesPerBlock = blockdev.BlockSize / entrySize

	// nameUnitsPerEntry is the number of UTF-16 code units one file name entry holds.
	nameUnitsPerEntry = 15
)

// File attributes of a FileDirectoryEntry.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrDirectory = 0x10
	AttrArchive   = 0x20
)

// FileDirectoryEntry is the primary entry of a file or directory.
// SecondaryCount tells how many of the following entries belong to it.
type FileDirectoryEntry struct {
	EntryType                 uint8
	SecondaryCount            uint8
	SetChecksum               uint16
	FileAttributes            uint16
	Reserved1                 uint16
	CreateTimestamp           uint32
	LastModifiedTimestamp     uint32
	LastAccessedTimestamp     uint32
	Create10msIncrement       uint8
	LastModified10msIncrement uint8
	CreateUtcOffset           uint8
	LastModifiedUtcOffset     uint8
	LastAccessedUtcOffset     uint8
	Reserved2                 [7]byte
}

// Flags of the GeneralSecondaryFlags field.
const (
	flagAllocationPossible = 0x01
	flagNoFatChain         = 0x02
)

// StreamExtensionEntry locates the data of a file or directory.
type StreamExtensionEntry struct {
	EntryType             uint8
	GeneralSecondaryFlags uint8
	Reserved1             uint8
	NameLength            uint8
	NameHash              uint16
	Reserved2             uint16
	ValidDataLength       uint64
	Reserved3             uint32
	FirstCluster          uint32
	DataLength            uint64
}

// FileNameEntry holds one fragment of a file name.
type FileNameEntry struct {
	EntryType             uint8
	GeneralSecondaryFlags uint8
	FileName              [nameUnitsPerEntry]uint16
}
