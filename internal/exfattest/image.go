// Package exfattest builds small synthetic exFAT volumes for tests.
// An Image is sparse: only written sectors are stored, every other addressable
// sector reads as zeros. It implements blockdev.Device directly and can also be
// written out as a dense image file.
package exfattest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/aligator/goexfat/blockdev"
	"github.com/spf13/afero"
)

// Entry types as they appear on disk.
const (
	TypeEndOfDirectory  = 0x00
	TypeDeletedFile     = 0x05
	TypeBitmap          = 0x81
	TypeUpcaseTable     = 0x82
	TypeVolumeLabel     = 0x83
	TypeFile            = 0x85
	TypeStreamExtension = 0xC0
	TypeFileName        = 0xC1
)

// Attributes of a file entry.
const (
	AttrReadOnly  = 0x01
	AttrDirectory = 0x10
	AttrArchive   = 0x20
)

// RootCluster is the first cluster of the root directory of every built image.
const RootCluster = 4

// Options controls the layout of a new Image.
type Options struct {
	// PartitionOffset is the absolute sector holding the boot sector.
	PartitionOffset uint32
	// SectorsPerClusterShift defaults to 0, one sector per cluster.
	SectorsPerClusterShift uint8
	// ClusterCount defaults to 64.
	ClusterCount uint32
	// MediaSectors extends the addressable media beyond the end of the volume.
	MediaSectors uint32
}

// Image is a sparse in-memory exFAT volume.
type Image struct {
	PartitionOffset        uint32
	FatOffset              uint32
	FatLength              uint32
	ClusterHeapOffset      uint32
	ClusterCount           uint32
	SectorsPerClusterShift uint8
	MediaSectors           uint32

	// Fail makes ReadBlock fail for the listed absolute sectors.
	Fail map[uint32]bool

	sectors map[uint32]*blockdev.Block
	cursor  map[uint32]int
	reads   []uint32
}

// New lays out an empty volume and writes its boot sector.
func New(opts Options) *Image {
	if opts.ClusterCount == 0 {
		opts.ClusterCount = 64
	}

	fatLength := ((opts.ClusterCount+2)*4 + blockdev.BlockSize - 1) / blockdev.BlockSize
	img := &Image{
		PartitionOffset:        opts.PartitionOffset,
		FatOffset:              32,
		FatLength:              fatLength,
		ClusterHeapOffset:      32 + fatLength,
		ClusterCount:           opts.ClusterCount,
		SectorsPerClusterShift: opts.SectorsPerClusterShift,
		MediaSectors:           opts.MediaSectors,
		Fail:                   map[uint32]bool{},
		sectors:                map[uint32]*blockdev.Block{},
		cursor:                 map[uint32]int{},
	}

	img.writeBootSector()

	// Media descriptor and the reserved second entry, then the system clusters and the root.
	img.SetFAT(0, 0xFFFFFFF8)
	img.SetFAT(1, 0xFFFFFFFF)
	img.SetFAT(2, 0xFFFFFFFF)
	img.SetFAT(3, 0xFFFFFFFF)
	img.SetFAT(RootCluster, 0xFFFFFFFF)

	return img
}

func (img *Image) writeBootSector() {
	b := img.Sector(img.PartitionOffset)
	copy(b[0:3], []byte{0xEB, 0x76, 0x90})
	copy(b[3:11], "EXFAT   ")
	binary.LittleEndian.PutUint64(b[0x40:], uint64(img.PartitionOffset))
	binary.LittleEndian.PutUint64(b[0x48:], uint64(img.VolumeLength()))
	binary.LittleEndian.PutUint32(b[0x50:], img.FatOffset)
	binary.LittleEndian.PutUint32(b[0x54:], img.FatLength)
	binary.LittleEndian.PutUint32(b[0x58:], img.ClusterHeapOffset)
	binary.LittleEndian.PutUint32(b[0x5C:], img.ClusterCount)
	binary.LittleEndian.PutUint32(b[0x60:], RootCluster)
	binary.LittleEndian.PutUint32(b[0x64:], 0xC0FFEE42)
	binary.LittleEndian.PutUint16(b[0x68:], 0x0100)
	binary.LittleEndian.PutUint16(b[0x6A:], 0)
	b[0x6C] = 9
	b[0x6D] = img.SectorsPerClusterShift
	b[0x6E] = 1
	b[0x6F] = 0x80
	b[0x70] = 3
	b[0x1FE] = 0x55
	b[0x1FF] = 0xAA
}

// VolumeLength is the number of sectors of the volume, not counting the partition offset.
func (img *Image) VolumeLength() uint32 {
	return img.ClusterHeapOffset + img.ClusterCount<<img.SectorsPerClusterShift
}

// Sectors is the number of addressable sectors, counted from the start of the media.
func (img *Image) Sectors() uint32 {
	end := img.PartitionOffset + img.VolumeLength()
	if img.MediaSectors > end {
		return img.MediaSectors
	}
	return end
}

// BootSector returns the boot sector for modification.
func (img *Image) BootSector() *blockdev.Block {
	return img.Sector(img.PartitionOffset)
}

// Sector returns the absolute sector addr for modification, allocating it if needed.
func (img *Image) Sector(addr uint32) *blockdev.Block {
	b, ok := img.sectors[addr]
	if !ok {
		b = &blockdev.Block{}
		img.sectors[addr] = b
	}
	return b
}

// ClusterSector returns the absolute first sector of cluster.
func (img *Image) ClusterSector(cluster uint32) uint32 {
	return img.PartitionOffset + img.ClusterHeapOffset + (cluster-2)<<img.SectorsPerClusterShift
}

// SetFAT stores value as FAT entry of cluster.
func (img *Image) SetFAT(cluster, value uint32) {
	pos := cluster * 4
	b := img.Sector(img.PartitionOffset + img.FatOffset + pos/blockdev.BlockSize)
	binary.LittleEndian.PutUint32(b[pos%blockdev.BlockSize:], value)
}

// SetChain links the given clusters in order and terminates the chain.
func (img *Image) SetChain(clusters ...uint32) {
	for i, c := range clusters {
		next := uint32(0xFFFFFFFF)
		if i+1 < len(clusters) {
			next = clusters[i+1]
		}
		img.SetFAT(c, next)
	}
}

// WriteAt writes data starting at byte offset off of cluster, continuing through the following sectors.
func (img *Image) WriteAt(cluster uint32, off int, data []byte) {
	start := img.ClusterSector(cluster)
	for len(data) > 0 {
		addr := start + uint32(off/blockdev.BlockSize)
		inBlock := off % blockdev.BlockSize
		n := copy(img.Sector(addr)[inBlock:], data)
		data = data[n:]
		off += n
	}
}

// AddEntries appends raw directory entries to the directory starting at cluster.
// Entries are laid out sequentially from the first sector of the cluster on and the
// clusters used so far are chained in the FAT, overwriting their previous entries.
func (img *Image) AddEntries(cluster uint32, entries ...[32]byte) {
	for _, e := range entries {
		idx := img.cursor[cluster]
		img.WriteAt(cluster, idx*32, e[:])
		img.cursor[cluster] = idx + 1
	}

	clusterSize := blockdev.BlockSize << img.SectorsPerClusterShift
	chain := make([]uint32, (img.cursor[cluster]*32+clusterSize-1)/clusterSize)
	for i := range chain {
		chain[i] = cluster + uint32(i)
	}
	img.SetChain(chain...)
}

// EntryCount returns how many entries were added to the directory at cluster.
func (img *Image) EntryCount(cluster uint32) int {
	return img.cursor[cluster]
}

// Reads returns every sector address read so far.
func (img *Image) Reads() []uint32 {
	return img.reads
}

var errInjected = errors.New("injected read failure")

// ReadBlock implements blockdev.Device.
func (img *Image) ReadBlock(addr uint32, dst *blockdev.Block) error {
	img.reads = append(img.reads, addr)
	if img.Fail[addr] {
		return fmt.Errorf("sector %d: %w", addr, errInjected)
	}
	if addr >= img.Sectors() {
		return fmt.Errorf("sector %d: %w", addr, blockdev.ErrOutOfRange)
	}
	if b, ok := img.sectors[addr]; ok {
		*dst = *b
	} else {
		*dst = blockdev.Block{}
	}
	return nil
}

// Save writes the image densely to name on fs.
func (img *Image) Save(fs afero.Fs, name string) error {
	data := make([]byte, int(img.Sectors())*blockdev.BlockSize)
	for addr, b := range img.sectors {
		copy(data[int(addr)*blockdev.BlockSize:], b[:])
	}
	return afero.WriteFile(fs, name, data, 0644)
}

// FileEntry builds a primary file directory entry.
func FileEntry(secondaryCount uint8, attributes uint16, modified uint32) [32]byte {
	var e [32]byte
	e[0] = TypeFile
	e[1] = secondaryCount
	binary.LittleEndian.PutUint16(e[4:], attributes)
	binary.LittleEndian.PutUint32(e[8:], modified)
	binary.LittleEndian.PutUint32(e[12:], modified)
	binary.LittleEndian.PutUint32(e[16:], modified)
	return e
}

// StreamExtension builds a stream extension entry.
func StreamExtension(contiguous bool, nameLength uint8, firstCluster uint32, validLength, length uint64) [32]byte {
	var e [32]byte
	e[0] = TypeStreamExtension
	e[1] = 0x01
	if contiguous {
		e[1] |= 0x02
	}
	e[3] = nameLength
	binary.LittleEndian.PutUint64(e[8:], validLength)
	binary.LittleEndian.PutUint32(e[20:], firstCluster)
	binary.LittleEndian.PutUint64(e[24:], length)
	return e
}

// FileName builds a file name entry from up to 15 UTF-16 code units.
func FileName(units []uint16) [32]byte {
	var e [32]byte
	e[0] = TypeFileName
	for i, u := range units {
		if i == 15 {
			break
		}
		binary.LittleEndian.PutUint16(e[2+2*i:], u)
	}
	return e
}

// Marker builds an entry which only carries a type byte, e.g. TypeBitmap or TypeDeletedFile.
func Marker(entryType byte) [32]byte {
	var e [32]byte
	e[0] = entryType
	return e
}

// VolumeLabel builds a volume label entry.
func VolumeLabel(label string) [32]byte {
	e := Marker(TypeVolumeLabel)
	units := utf16.Encode([]rune(label))
	e[1] = byte(len(units))
	for i, u := range units {
		if i == 11 {
			break
		}
		binary.LittleEndian.PutUint16(e[2+2*i:], u)
	}
	return e
}

// FileSet builds the complete entry set of a file or directory: primary entry, stream extension and name fragments.
func FileSet(name string, attributes uint16, firstCluster uint32, length uint64, contiguous bool) [][32]byte {
	units := utf16.Encode([]rune(name))

	var fragments [][32]byte
	for i := 0; i < len(units); i += 15 {
		end := i + 15
		if end > len(units) {
			end = len(units)
		}
		fragments = append(fragments, FileName(units[i:end]))
	}

	// 2024-03-15 13:45:30 local time.
	modified := uint32(44)<<25 | 3<<21 | 15<<16 | 13<<11 | 45<<5 | 15

	set := [][32]byte{
		FileEntry(uint8(1+len(fragments)), attributes, modified),
		StreamExtension(contiguous, uint8(len(units)), firstCluster, length, length),
	}
	return append(set, fragments...)
}
