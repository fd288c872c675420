package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/aligator/goexfat"
	"github.com/aligator/goexfat/blockdev"
	"github.com/aligator/goexfat/checkpoint"
	"github.com/aligator/goexfat/internal/logging"
	"github.com/aligator/goexfat/riff"
)

const (
	// BufferBlocks is the number of blocks ReadNextSamples buffers at most.
	BufferBlocks = 100

	// MaxChunkHops bounds the number of chunk headers Open looks at.
	MaxChunkHops = 10
)

// Scratch holds the blocks buffered by ReadNextSamples.
type Scratch [BufferBlocks * blockdev.BlockSize]byte

// Volume is the part of a volume needed to locate the file data.
// It is implemented by *goexfat.Volume.
type Volume interface {
	Device() blockdev.Device
	ClusterToSector(cluster uint32) uint32
}

// formatChunk is the fmt chunk payload, starting 8 bytes after the chunk start.
type formatChunk struct {
	FormatCode    uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

const formatChunkSize = 16

// File is an opened WAV file together with its read position inside the data chunk.
// A File is not safe for concurrent use.
type File struct {
	Descriptor

	dev         blockdev.Device
	startSector uint32
	firstByte   uint32
	dataLength  uint32

	// consumed counts the bytes of the data chunk which have been skipped or returned.
	consumed uint32
	started  bool
}

// Open locates the fmt and the data chunk of the file described by record.
// Nothing is returned if one of them cannot be found within MaxChunkHops chunks.
func Open(vol Volume, record goexfat.FileRecord) (*File, error) {
	if record.IsDir() {
		return nil, checkpoint.From(fmt.Errorf("%w: %s", ErrNotAFile, record.Name))
	}

	f := &File{
		dev:         vol.Device(),
		startSector: vol.ClusterToSector(record.FirstCluster),
	}

	w := riff.NewWalker(f.dev, f.startSector)
	h, err := w.First()
	if err != nil {
		return nil, err
	}

	foundFormat, foundData := false, false
	for hop := 0; hop < MaxChunkHops; hop++ {
		if h.Is(riff.IDFormat) {
			if err := f.readFormat(w, h); err != nil {
				return nil, err
			}
			foundFormat = true
		} else if h.Is(riff.IDData) {
			f.firstByte = uint32(h.Start) + riff.HeaderSize
			f.dataLength = h.Length
			foundData = true
			break
		}

		if hop+1 == MaxChunkHops {
			break
		}
		if h, err = w.Next(h); err != nil {
			return nil, err
		}
	}

	if !foundData {
		return nil, checkpoint.From(fmt.Errorf("%w within %d chunks of %s", ErrDataChunkNotFound, MaxChunkHops, record.Name))
	}
	if !foundFormat {
		return nil, checkpoint.From(fmt.Errorf("%w before the data chunk of %s", ErrFormatChunkNotFound, record.Name))
	}

	logging.Debug(logging.ComponentContainer, "wav opened",
		"name", record.Name,
		"format", f.Format.String(),
		"channels", f.Channels,
		"sampleRate", f.SampleRate,
		"bitsPerSample", f.BitsPerSample,
		"firstByte", f.firstByte,
		"dataLength", f.dataLength)

	return f, nil
}

// readFormat reads the fmt chunk h, which has to lie within the first sector of the file.
func (f *File) readFormat(w *riff.Walker, h riff.ChunkHeader) error {
	start := h.Start + riff.HeaderSize
	if start+formatChunkSize > blockdev.BlockSize {
		return checkpoint.From(fmt.Errorf("%w: fmt chunk at %d is not within the first block", ErrInvalidFormat, h.Start))
	}

	block, err := w.Sector(0)
	if err != nil {
		return err
	}

	chunk := formatChunk{}
	if err := binary.Read(bytes.NewReader(block[start:start+formatChunkSize]), binary.LittleEndian, &chunk); err != nil {
		return checkpoint.From(err)
	}

	if chunk.Channels == 0 || chunk.BlockAlign < chunk.Channels {
		return checkpoint.From(fmt.Errorf("%w: %d channels with a block alignment of %d", ErrInvalidFormat, chunk.Channels, chunk.BlockAlign))
	}

	f.Descriptor = Descriptor{
		Format:          decodeFormat(chunk.FormatCode),
		FormatCode:      chunk.FormatCode,
		Channels:        chunk.Channels,
		SampleRate:      chunk.SampleRate,
		ByteRate:        chunk.ByteRate,
		BlockAlign:      chunk.BlockAlign,
		BitsPerSample:   chunk.BitsPerSample,
		BytesPerChannel: chunk.BlockAlign / chunk.Channels,
	}
	return nil
}

// DataLength is the declared length of the data chunk in bytes.
func (f *File) DataLength() uint32 {
	return f.dataLength
}

// FirstByte is the offset of the first sample byte, counted from the start of the file.
func (f *File) FirstByte() uint32 {
	return f.firstByte
}

// Consumed is the number of data bytes skipped or read so far.
func (f *File) Consumed() uint32 {
	return f.consumed
}

// align skips the bytes up to the next block boundary on the first read.
func (f *File) align() {
	if f.started {
		return
	}
	f.started = true

	skip := (blockdev.BlockSize - (f.firstByte+f.consumed)%blockdev.BlockSize) % blockdev.BlockSize
	if remaining := f.dataLength - f.consumed; skip > remaining {
		skip = remaining
	}
	f.consumed += skip
}

// ReadNextBlock reads the next whole block of sample data into dst.
//
// The first call skips the data bytes sharing a block with the chunk headers.
// ErrEndOfData is returned as soon as the next block would reach the end of the
// data chunk, so the last partial block is never returned.
// A failed read does not advance the position and may be retried.
func (f *File) ReadNextBlock(dst *blockdev.Block) error {
	f.align()

	if uint64(f.consumed)+blockdev.BlockSize >= uint64(f.dataLength) {
		return checkpoint.From(ErrEndOfData)
	}

	addr := f.startSector + (f.firstByte+f.consumed)/blockdev.BlockSize
	if err := f.dev.ReadBlock(addr, dst); err != nil {
		return checkpoint.Wrap(err, ErrReadData)
	}
	f.consumed += blockdev.BlockSize
	return nil
}

// ReadNextSamples buffers the next sample data into scratch and returns an iterator
// over the channel samples in it, left aligned in an int32.
// The iterator is forward only: it continues where a previous range over it stopped
// and yields nothing once the buffered data is exhausted. Each call except the last one
// buffers whole frames only. A trailing incomplete sample at the end of the data is dropped.
//
// The first call skips the chunk header bytes in front of the data. ErrEndOfData is
// returned once the whole data chunk was read.
//
// It panics with ErrUnsupportedBitDepth if the file uses more than 4 bytes per channel.
func (f *File) ReadNextSamples(scratch *Scratch) (iter.Seq[int32], error) {
	width := int(f.BytesPerChannel)
	if width > 4 {
		panic(fmt.Errorf("%w: %d bytes per channel", ErrUnsupportedBitDepth, width))
	}
	f.started = true

	remaining := f.dataLength - f.consumed
	if remaining == 0 {
		return nil, checkpoint.From(ErrEndOfData)
	}

	pos := f.firstByte + f.consumed
	skip := int(pos % blockdev.BlockSize)
	want := len(scratch) - skip
	if uint32(want) >= remaining {
		want = int(remaining)
	} else {
		// Stop at a frame boundary so the next call starts on the first channel again.
		want -= int((f.consumed + uint32(want)) % uint32(f.BlockAlign))
	}

	blocks := (skip + want + blockdev.BlockSize - 1) / blockdev.BlockSize
	addr := f.startSector + pos/blockdev.BlockSize
	for i := 0; i < blocks; i++ {
		block := (*blockdev.Block)(scratch[i*blockdev.BlockSize : (i+1)*blockdev.BlockSize])
		if err := f.dev.ReadBlock(addr+uint32(i), block); err != nil {
			return nil, checkpoint.Wrap(err, ErrReadData)
		}
	}
	f.consumed += uint32(want)

	return samples(scratch[skip:skip+want], width), nil
}

// samples iterates over data in steps of width bytes.
// The position lives outside of the returned function, so a second range continues
// instead of starting over.
func samples(data []byte, width int) iter.Seq[int32] {
	shift := 32 - 8*width
	pos := 0
	return func(yield func(int32) bool) {
		for width > 0 && pos+width <= len(data) {
			var raw [4]byte
			copy(raw[:], data[pos:pos+width])
			pos += width

			if !yield(int32(binary.LittleEndian.Uint32(raw[:]) << shift)) {
				return
			}
		}
	}
}
