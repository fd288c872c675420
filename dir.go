package goexfat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/aligator/goexfat/checkpoint"
)

const (
	// DirLengthLimit is the number of records ListDirectory returns at most.
	// Longer directories are truncated.
	DirLengthLimit = 205

	// MaxNameLength is the maximum length of a decoded name in bytes.
	MaxNameLength = 255

	// maxNameUnits is the maximum exFAT name length in UTF-16 code units.
	maxNameUnits = 255
)

// ListDirectory reads the directory starting at firstCluster into a new slice
// holding at most DirLengthLimit records. The clusters of the directory are taken from the FAT.
func (v *Volume) ListDirectory(firstCluster uint32) ([]FileRecord, error) {
	return v.ListDirectoryOf(dirRecord(firstCluster))
}

// ListDirectoryOf is ListDirectory for the directory described by dir.
// A contiguous directory is read without consulting the FAT.
func (v *Volume) ListDirectoryOf(dir FileRecord) ([]FileRecord, error) {
	var records [DirLengthLimit]FileRecord
	n, err := v.ReadDirOf(dir, records[:])
	if err != nil {
		return nil, err
	}
	return records[:n:n], nil
}

// ReadDir reads the directory starting at firstCluster into dst and returns the number of records read.
// Reading stops at the end of directory marker, at the end of the cluster chain or as soon as dst is full.
//
// The sectors of the directory are read in order, following the cluster chain in the FAT.
// An entry set which continues in the next sector is read completely before the walk goes on.
//
// If any name cannot be decoded, nothing is returned and the error is ErrDecodingName.
func (v *Volume) ReadDir(firstCluster uint32, dst []FileRecord) (int, error) {
	return v.ReadDirOf(dirRecord(firstCluster), dst)
}

// ReadDirOf is ReadDir for the directory described by dir.
// A contiguous directory ends after the clusters covered by its length.
func (v *Volume) ReadDirOf(dir FileRecord, dst []FileRecord) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	cur := v.dirCursor(dir)
	n := 0
	for {
		if err := v.readSector(cur.addr(), &v.block); err != nil {
			return 0, err
		}

		set := entrySet{v: v, at: cur}
		for i := 0; i < entriesPerBlock; i++ {
			entry := v.block[i*entrySize : (i+1)*entrySize]

			switch entry[0] {
			case entryEndOfDirectory:
				return n, nil
			case entryFile:
				set.primary = i
				record, err := set.record()
				if err != nil {
					return 0, err
				}

				dst[n] = record
				n++
				if n == len(dst) {
					return n, nil
				}
			case entryAllocationBmp, entryUpcaseTable, entryVolumeLabel:
				// Volume metadata, no records.
			}
		}

		if err := cur.advance(); err != nil {
			if errors.Is(err, ErrEndOfChain) {
				return n, nil
			}
			return 0, err
		}
	}
}

// Label reads the volume label from the root directory.
// It returns an empty string if the volume has no label.
func (v *Volume) Label() (string, error) {
	cur := v.dirCursor(v.Root())
	for {
		if err := v.readSector(cur.addr(), &v.block); err != nil {
			return "", err
		}

		for i := 0; i < entriesPerBlock; i++ {
			entry := v.block[i*entrySize : (i+1)*entrySize]
			switch entry[0] {
			case entryEndOfDirectory:
				return "", nil
			case entryVolumeLabel:
				count := int(entry[1])
				if count > 11 {
					count = 11
				}
				var name nameBuilder
				for j := 0; j < count; j++ {
					name.units[j] = binary.LittleEndian.Uint16(entry[2+2*j:])
				}
				name.n = count
				return name.decode()
			}
		}

		if err := cur.advance(); err != nil {
			if errors.Is(err, ErrEndOfChain) {
				return "", nil
			}
			return "", err
		}
	}
}

func dirRecord(firstCluster uint32) FileRecord {
	return FileRecord{
		Kind:         KindDirectory,
		Attributes:   AttrDirectory,
		FirstCluster: firstCluster,
	}
}

// dirCursor points to one sector of a directory.
type dirCursor struct {
	v       *Volume
	cluster uint32
	sector  uint32

	// Only set for contiguous directories, which do not use the FAT.
	contiguous bool
	clusters   uint32
}

func (v *Volume) dirCursor(dir FileRecord) dirCursor {
	c := dirCursor{v: v, cluster: dir.FirstCluster, contiguous: dir.Contiguous}
	if dir.Contiguous {
		size := uint64(v.geometry.ClusterSize())
		c.clusters = uint32((dir.Length + size - 1) / size)
		if c.clusters == 0 {
			c.clusters = 1
		}
	}
	return c
}

func (c *dirCursor) addr() uint32 {
	return c.v.ClusterToSector(c.cluster) + c.sector
}

// advance moves to the next sector of the directory.
// It returns ErrEndOfChain after the last sector.
func (c *dirCursor) advance() error {
	c.sector++
	if c.sector < c.v.geometry.SectorsPerCluster() {
		return nil
	}
	c.sector = 0

	if c.contiguous {
		c.clusters--
		if c.clusters == 0 {
			return ErrEndOfChain
		}
		c.cluster++
		return nil
	}

	next, err := c.v.NextCluster(c.cluster)
	if err != nil {
		return err
	}
	c.cluster = next
	return nil
}

// entrySet reads the entries belonging to the primary entry at index primary of the sector at.
// The sector itself is expected in v.block, following sectors are loaded into v.lookahead on demand.
type entrySet struct {
	v       *Volume
	at      dirCursor
	primary int

	// ahead is the sector in v.lookahead, aheadBy sectors behind at.
	ahead   dirCursor
	aheadBy int
}

// entry returns the entry at idx, counted from the start of the sector at.
func (s *entrySet) entry(idx int) ([]byte, error) {
	if idx < entriesPerBlock {
		return s.v.block[idx*entrySize : (idx+1)*entrySize], nil
	}

	by := idx / entriesPerBlock
	if s.aheadBy == 0 || s.aheadBy > by {
		s.ahead = s.at
		s.aheadBy = 0
	}
	if s.aheadBy < by {
		for s.aheadBy < by {
			if err := s.ahead.advance(); err != nil {
				if errors.Is(err, ErrEndOfChain) {
					return nil, checkpoint.From(fmt.Errorf("%w: entry set continues after the end of the directory", ErrBadCluster))
				}
				return nil, err
			}
			s.aheadBy++
		}
		if err := s.v.readSector(s.ahead.addr(), &s.v.lookahead); err != nil {
			s.aheadBy = 0
			return nil, err
		}
	}

	idx %= entriesPerBlock
	return s.v.lookahead[idx*entrySize : (idx+1)*entrySize], nil
}

func (s *entrySet) record() (FileRecord, error) {
	raw, err := s.entry(s.primary)
	if err != nil {
		return FileRecord{}, err
	}
	primary := FileDirectoryEntry{}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &primary); err != nil {
		return FileRecord{}, checkpoint.From(err)
	}

	record := FileRecord{
		Kind:       KindFile,
		Attributes: primary.FileAttributes,
		Created:    ParseTimestamp(primary.CreateTimestamp, primary.Create10msIncrement, primary.CreateUtcOffset),
		Modified:   ParseTimestamp(primary.LastModifiedTimestamp, primary.LastModified10msIncrement, primary.LastModifiedUtcOffset),
	}
	if primary.FileAttributes&AttrDirectory != 0 {
		record.Kind = KindDirectory
	}

	var name nameBuilder
	for i := 1; i <= int(primary.SecondaryCount); i++ {
		raw, err := s.entry(s.primary + i)
		if err != nil {
			return FileRecord{}, err
		}

		switch raw[0] {
		case entryStreamExtension:
			stream := StreamExtensionEntry{}
			if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &stream); err != nil {
				return FileRecord{}, checkpoint.From(err)
			}
			record.FirstCluster = stream.FirstCluster
			record.ValidLength = stream.ValidDataLength
			record.Length = stream.DataLength
			record.Contiguous = stream.GeneralSecondaryFlags&flagNoFatChain != 0
		case entryFileName:
			fragment := FileNameEntry{}
			if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &fragment); err != nil {
				return FileRecord{}, checkpoint.From(err)
			}
			if err := name.add(fragment.FileName); err != nil {
				return FileRecord{}, err
			}
		}
	}

	decoded, err := name.decode()
	if err != nil {
		return FileRecord{}, err
	}
	record.Name = decoded

	return record, nil
}

// nameBuilder collects the code units of all name fragments before decoding them,
// so a surrogate pair may be split over two fragments.
type nameBuilder struct {
	units [maxNameUnits]uint16
	n     int
}

// add appends a fragment without its zero padding.
func (b *nameBuilder) add(fragment [nameUnitsPerEntry]uint16) error {
	end := len(fragment)
	for end > 0 && fragment[end-1] == 0 {
		end--
	}

	if b.n+end > len(b.units) {
		return checkpoint.From(fmt.Errorf("%w: more than %d code units", ErrDecodingName, maxNameUnits))
	}
	b.n += copy(b.units[b.n:], fragment[:end])
	return nil
}

func (b *nameBuilder) decode() (string, error) {
	var buf [MaxNameLength]byte
	size := 0

	units := b.units[:b.n]
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if utf16.IsSurrogate(r) {
			if i+1 == len(units) {
				return "", checkpoint.From(fmt.Errorf("%w: unpaired surrogate %#04x", ErrDecodingName, units[i]))
			}
			r = utf16.DecodeRune(r, rune(units[i+1]))
			if r == utf8.RuneError {
				return "", checkpoint.From(fmt.Errorf("%w: invalid surrogate pair %#04x %#04x", ErrDecodingName, units[i], units[i+1]))
			}
			i++
		}

		if size+utf8.RuneLen(r) > len(buf) {
			return "", checkpoint.From(fmt.Errorf("%w: longer than %d bytes", ErrDecodingName, MaxNameLength))
		}
		size += utf8.EncodeRune(buf[size:], r)
	}

	return string(buf[:size]), nil
}
