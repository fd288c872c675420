package blockdev

import (
	"fmt"
	"io"

	"github.com/aligator/goexfat/checkpoint"
	"github.com/spf13/afero"
)

// sector caches the last block read from the image.
type sector struct {
	current uint32
	valid   bool
	buffer  Block
}

// Image is a Device backed by a raw disk image, e.g. a dump of an SD card.
// It keeps the last read block cached, as directory walks and chunk walks read
// the same block repeatedly.
// An Image is not safe for concurrent use.
type Image struct {
	file   afero.File
	blocks uint32
	sector sector
}

// Open opens the image file name on fs.
func Open(fs afero.Fs, name string) (*Image, error) {
	file, err := fs.Open(name)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	img, err := NewImage(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return img, nil
}

// NewImage uses an already opened file as image.
// Trailing bytes which do not fill a whole block are not addressable.
func NewImage(file afero.File) (*Image, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, checkpoint.From(err)
	}

	return &Image{
		file:   file,
		blocks: uint32(stat.Size() / BlockSize),
	}, nil
}

// Blocks returns the number of addressable blocks.
func (i *Image) Blocks() uint32 {
	return i.blocks
}

func (i *Image) ReadBlock(addr uint32, dst *Block) error {
	if err := i.fetch(addr); err != nil {
		return err
	}
	*dst = i.sector.buffer
	return nil
}

// fetch loads a single block into the cache.
func (i *Image) fetch(addr uint32) error {
	// Only load it once.
	if i.sector.valid && i.sector.current == addr {
		return nil
	}

	if addr >= i.blocks {
		return checkpoint.Wrap(fmt.Errorf("%w: %d >= %d", ErrOutOfRange, addr, i.blocks), ErrReadBlock)
	}

	// Invalidate first so a failed read never leaves a half written buffer marked as cached.
	i.sector.valid = false
	n, err := i.file.ReadAt(i.sector.buffer[:], int64(addr)*BlockSize)
	if n != BlockSize {
		if err == nil || err == io.EOF {
			err = io.ErrShortBuffer
		}
		return checkpoint.Wrap(fmt.Errorf("block %d: %w", addr, err), ErrReadBlock)
	}

	i.sector.current = addr
	i.sector.valid = true
	return nil
}

func (i *Image) Close() error {
	i.sector.valid = false
	return i.file.Close()
}
