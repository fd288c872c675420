// Package riff walks the chunk headers of a RIFF container stored in consecutive sectors.
//
// The walk is intentionally flat. Container headers ("RIFF" and "LIST") advance by
// their 8 header bytes only, so their sub-chunks are visited one by one. The form type
// following the outer header ("WAVE") advances by its 4 bytes. Every other chunk
// advances by its header plus its declared length.
//
// A header is expected to lie completely within one sector.
package riff

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aligator/goexfat/blockdev"
	"github.com/aligator/goexfat/checkpoint"
	"github.com/aligator/goexfat/internal/logging"
)

// HeaderSize is the size of an identifier plus its length field.
const HeaderSize = 8

// These errors may occur while walking the chunks.
var (
	ErrReadHeader           = errors.New("could not read the chunk header")
	ErrHeaderStraddlesBlock = errors.New("chunk header crosses a block boundary")
)

// Well known identifiers.
var (
	IDRiff   = [4]byte{'R', 'I', 'F', 'F'}
	IDList   = [4]byte{'L', 'I', 'S', 'T'}
	IDWave   = [4]byte{'W', 'A', 'V', 'E'}
	IDFormat = [4]byte{'f', 'm', 't', ' '}
	IDData   = [4]byte{'d', 'a', 't', 'a'}
)

// ChunkHeader describes one chunk.
// Start and Next are byte offsets counted from the first byte of the container.
type ChunkHeader struct {
	ID     [4]byte
	Length uint32
	Start  uint64
	Next   uint64
}

// Is reports whether the chunk has the identifier id.
func (h ChunkHeader) Is(id [4]byte) bool {
	return h.ID == id
}

func (h ChunkHeader) String() string {
	return fmt.Sprintf("%q len=%d start=%d next=%d", h.ID[:], h.Length, h.Start, h.Next)
}

// Advance returns the offset of the chunk following a chunk with the given id and length at start.
func Advance(id [4]byte, length uint32, start uint64) uint64 {
	switch id {
	case IDRiff, IDList:
		return start + HeaderSize
	case IDWave:
		return start + 4
	default:
		return start + HeaderSize + uint64(length)
	}
}

// Decode reads a header at offset off of b, which itself starts at byte start of the container.
func Decode(b []byte, off int, start uint64) (ChunkHeader, error) {
	if off < 0 || off+HeaderSize > len(b) {
		return ChunkHeader{}, checkpoint.From(fmt.Errorf("%w: offset %d", ErrHeaderStraddlesBlock, start))
	}

	h := ChunkHeader{Start: start}
	copy(h.ID[:], b[off:off+4])
	h.Length = binary.LittleEndian.Uint32(b[off+4:])
	h.Next = Advance(h.ID, h.Length, start)
	return h, nil
}

// Walker reads chunk headers of a container which starts at the first byte of sector start.
// It keeps the last read sector, so walking the small headers at the start of a file
// reads the first sector only once.
type Walker struct {
	dev   blockdev.Device
	start uint32

	block  blockdev.Block
	cached uint32
	valid  bool
}

// NewWalker creates a Walker for the container starting at sector start of dev.
func NewWalker(dev blockdev.Device, start uint32) *Walker {
	return &Walker{dev: dev, start: start}
}

// First reads the header at the start of the container.
func (w *Walker) First() (ChunkHeader, error) {
	return w.at(0)
}

// Next reads the header following prev.
func (w *Walker) Next(prev ChunkHeader) (ChunkHeader, error) {
	return w.at(prev.Next)
}

// Sector returns the sector holding byte offset of the container.
// The returned block is only valid until the next call on w.
func (w *Walker) Sector(offset uint64) (*blockdev.Block, error) {
	addr := w.start + uint32(offset/blockdev.BlockSize)
	if w.valid && w.cached == addr {
		return &w.block, nil
	}

	w.valid = false
	if err := w.dev.ReadBlock(addr, &w.block); err != nil {
		return nil, checkpoint.Wrap(err, ErrReadHeader)
	}
	w.cached = addr
	w.valid = true
	return &w.block, nil
}

func (w *Walker) at(offset uint64) (ChunkHeader, error) {
	block, err := w.Sector(offset)
	if err != nil {
		return ChunkHeader{}, err
	}

	h, err := Decode(block[:], int(offset%blockdev.BlockSize), offset)
	if err != nil {
		return ChunkHeader{}, err
	}

	logging.Debug(logging.ComponentContainer, "chunk", "id", string(h.ID[:]), "length", h.Length, "start", h.Start, "next", h.Next)
	return h, nil
}
