package goexfat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aligator/goexfat/blockdev"
	"github.com/aligator/goexfat/checkpoint"
	"github.com/aligator/goexfat/internal/logging"
)

// These errors may occur while opening a volume or reading its metadata.
var (
	ErrNoBootSector         = errors.New("no exFAT boot sector found")
	ErrInvalidBootSignature = errors.New("invalid boot signature")
	ErrReadFail             = errors.New("could not read from the device")
	ErrDecodingName         = errors.New("could not decode the file name")
	ErrEndOfChain           = errors.New("end of the cluster chain")
	ErrBadCluster           = errors.New("bad cluster in the cluster chain")
)

// bootSectorCandidates are the sectors searched for a boot sector.
// They cover an unpartitioned card and the common partition alignments.
var bootSectorCandidates = [...]uint32{0, 65536, 32768, 2048}

var (
	fileSystemName = [8]byte{'E', 'X', 'F', 'A', 'T', ' ', ' ', ' '}
	bootSignature  = [2]byte{0x55, 0xAA}
)

const (
	fileSystemNameOffset = 0x03
	bootSignatureOffset  = 0x1FE
)

// Geometry contains the volume parameters of the boot sector.
// Sector values are counted in sectors, relative to PartitionOffset.
type Geometry struct {
	PartitionOffset   uint64
	VolumeLength      uint64
	FatOffset         uint32
	FatLength         uint32
	ClusterHeapOffset uint32
	ClusterCount      uint32
	RootCluster       uint32
	SerialNumber      uint32
	VolumeFlags       uint16
	SectorShift       uint8
	ClusterShift      uint8
	NumberOfFats      uint8
	DriveSelect       uint8
	PercentInUse      uint8
}

// SectorsPerCluster returns the number of sectors in one cluster.
func (g Geometry) SectorsPerCluster() uint32 {
	return 1 << g.ClusterShift
}

// ClusterSize returns the size of one cluster in bytes.
func (g Geometry) ClusterSize() int64 {
	return int64(1) << (g.SectorShift + g.ClusterShift)
}

// ClusterToSector converts a cluster index into the absolute address of its first sector.
// Cluster numbering starts at 2, which is the first sector of the cluster heap.
func (g Geometry) ClusterToSector(cluster uint32) uint32 {
	return uint32(g.PartitionOffset) + g.ClusterHeapOffset + (cluster-2)<<g.ClusterShift
}

// Volume is an opened exFAT volume.
// It reads through scratch blocks owned by the volume and is therefore not safe for concurrent use.
type Volume struct {
	dev      blockdev.Device
	geometry Geometry

	block     blockdev.Block
	lookahead blockdev.Block
	// fat holds the FAT sector of the last NextCluster call, so a lookup in the
	// middle of a directory walk leaves block and lookahead alone.
	fat blockdev.Block
}

// Open searches the boot sector of an exFAT volume on dev and reads the volume geometry from it.
// It panics if the sector size of the volume does not equal blockdev.BlockSize.
func Open(dev blockdev.Device) (*Volume, error) {
	v := &Volume{dev: dev}

	if err := LocateBootSector(dev, &v.block); err != nil {
		return nil, err
	}

	geometry, err := ParseGeometry(&v.block)
	if err != nil {
		return nil, err
	}
	v.geometry = geometry

	logging.Debug(logging.ComponentVolume, "volume opened",
		"partitionOffset", geometry.PartitionOffset,
		"clusterHeapOffset", geometry.ClusterHeapOffset,
		"clusterCount", geometry.ClusterCount,
		"sectorsPerCluster", geometry.SectorsPerCluster(),
		"rootCluster", geometry.RootCluster)

	return v, nil
}

// LocateBootSector reads the candidate boot sectors in order and stores the first one
// carrying the exFAT file system name into dst.
// Candidates beyond the end of the device are skipped, any other read failure aborts the search.
func LocateBootSector(dev blockdev.Device, dst *blockdev.Block) error {
	for _, addr := range bootSectorCandidates {
		if err := dev.ReadBlock(addr, dst); err != nil {
			if errors.Is(err, blockdev.ErrOutOfRange) {
				continue
			}
			return checkpoint.Wrap(err, ErrReadFail)
		}

		if !bytes.Equal(dst[fileSystemNameOffset:fileSystemNameOffset+8], fileSystemName[:]) {
			continue
		}

		if !bytes.Equal(dst[bootSignatureOffset:bootSignatureOffset+2], bootSignature[:]) {
			return checkpoint.From(fmt.Errorf("%w at sector %d: %#x", ErrInvalidBootSignature, addr, dst[bootSignatureOffset:]))
		}

		return nil
	}

	return checkpoint.From(ErrNoBootSector)
}

// ParseGeometry reads the volume parameters out of a boot sector.
// A sector size other than blockdev.BlockSize cannot be read by this package at all, so it panics in that case.
func ParseGeometry(sector *blockdev.Block) (Geometry, error) {
	bs := BootSector{}
	if err := binary.Read(bytes.NewReader(sector[:]), binary.LittleEndian, &bs); err != nil {
		return Geometry{}, checkpoint.From(err)
	}

	if 1<<uint(bs.BytesPerSectorShift) != blockdev.BlockSize {
		panic(fmt.Sprintf("exFAT sector size 2^%d does not match the block size %d", bs.BytesPerSectorShift, blockdev.BlockSize))
	}

	return Geometry{
		PartitionOffset:   bs.PartitionOffset,
		VolumeLength:      bs.VolumeLength,
		FatOffset:         bs.FatOffset,
		FatLength:         bs.FatLength,
		ClusterHeapOffset: bs.ClusterHeapOffset,
		ClusterCount:      bs.ClusterCount,
		RootCluster:       bs.FirstClusterOfRootDirectory,
		SerialNumber:      bs.VolumeSerialNumber,
		VolumeFlags:       bs.VolumeFlags,
		SectorShift:       bs.BytesPerSectorShift,
		ClusterShift:      bs.SectorsPerClusterShift,
		NumberOfFats:      bs.NumberOfFats,
		DriveSelect:       bs.DriveSelect,
		PercentInUse:      bs.PercentInUse,
	}, nil
}

// Geometry returns the parameters read from the boot sector.
func (v *Volume) Geometry() Geometry {
	return v.geometry
}

// Device returns the device the volume is read from.
func (v *Volume) Device() blockdev.Device {
	return v.dev
}

// ClusterToSector is a shortcut for Geometry().ClusterToSector.
func (v *Volume) ClusterToSector(cluster uint32) uint32 {
	return v.geometry.ClusterToSector(cluster)
}

// Root returns a record describing the root directory.
func (v *Volume) Root() FileRecord {
	return FileRecord{
		Kind:         KindDirectory,
		Attributes:   AttrDirectory,
		FirstCluster: v.geometry.RootCluster,
	}
}

// NextCluster looks up the successor of cluster in the first FAT.
// It returns ErrEndOfChain after the last cluster of a chain.
func (v *Volume) NextCluster(cluster uint32) (uint32, error) {
	if cluster < 2 || cluster-2 >= v.geometry.ClusterCount {
		return 0, checkpoint.From(fmt.Errorf("%w: cluster %d out of range", ErrBadCluster, cluster))
	}

	pos := cluster * 4
	addr := uint32(v.geometry.PartitionOffset) + v.geometry.FatOffset + pos/blockdev.BlockSize
	if err := v.readSector(addr, &v.fat); err != nil {
		return 0, err
	}

	next := binary.LittleEndian.Uint32(v.fat[pos%blockdev.BlockSize:])
	switch {
	case next >= 0xFFFFFFF8:
		return 0, ErrEndOfChain
	case next == 0xFFFFFFF7, next < 2:
		return 0, checkpoint.From(fmt.Errorf("%w: %d -> %#x", ErrBadCluster, cluster, next))
	}
	return next, nil
}

// readSector reads one sector, reporting failures as ErrReadFail.
func (v *Volume) readSector(addr uint32, dst *blockdev.Block) error {
	return checkpoint.Wrap(v.dev.ReadBlock(addr, dst), ErrReadFail)
}
