package main

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/aligator/goexfat/checkpoint"
	"github.com/aligator/goexfat/wav"
	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// wavOutput encodes samples into a WAV file on the host.
type wavOutput struct {
	file     afero.File
	enc      *gowav.Encoder
	format   *audio.Format
	bitDepth int

	// reused by Write
	data []int
}

func createWAV(fs afero.Fs, name string, d wav.Descriptor, bitDepth int) (*wavOutput, error) {
	file, err := fs.Create(name)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	return &wavOutput{
		file:     file,
		enc:      gowav.NewEncoder(file, int(d.SampleRate), bitDepth, int(d.Channels), 1),
		format:   d.AudioFormat(),
		bitDepth: bitDepth,
	}, nil
}

// WriteSamples appends interleaved samples of the configured bit depth.
func (o *wavOutput) WriteSamples(samples []int) error {
	err := o.enc.Write(&audio.IntBuffer{
		Format:         o.format,
		Data:           samples,
		SourceBitDepth: o.bitDepth,
	})
	return checkpoint.From(err)
}

// Write appends 16 bit little endian samples, as written by stream.Transport.
func (o *wavOutput) Write(p []byte) (int, error) {
	o.data = o.data[:0]
	for i := 0; i+1 < len(p); i += 2 {
		o.data = append(o.data, int(int16(binary.LittleEndian.Uint16(p[i:]))))
	}
	if err := o.WriteSamples(o.data); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close finishes the WAV header and closes the file.
func (o *wavOutput) Close() error {
	err := o.enc.Close()
	if cerr := o.file.Close(); err == nil {
		err = cerr
	}
	return checkpoint.From(err)
}

// pacedWriter lets writes take as long as playing them would.
type pacedWriter struct {
	w        io.WriteCloser
	byteRate uint32
	start    time.Time
	written  int64
}

func newPacedWriter(w io.WriteCloser, byteRate uint32) *pacedWriter {
	return &pacedWriter{w: w, byteRate: byteRate}
}

func (p *pacedWriter) Write(b []byte) (int, error) {
	if p.start.IsZero() {
		p.start = time.Now()
	}
	n, err := p.w.Write(b)
	p.written += int64(n)

	if p.byteRate > 0 {
		due := p.start.Add(time.Duration(p.written) * time.Second / time.Duration(p.byteRate))
		if wait := time.Until(due); wait > 0 {
			time.Sleep(wait)
		}
	}
	return n, err
}

func (p *pacedWriter) Close() error {
	return p.w.Close()
}
