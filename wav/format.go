package wav

import (
	"fmt"

	"github.com/go-audio/audio"
)

// Format is the encoding of the samples.
type Format uint8

const (
	FormatOther Format = iota
	FormatPCM
	FormatIEEEFloat
	FormatALaw
	FormatMuLaw
)

// Format codes of the fmt chunk.
const (
	codePCM       = 0x0001
	codeIEEEFloat = 0x0003
	codeALaw      = 0x0006
	codeMuLaw     = 0x0007
)

func decodeFormat(code uint16) Format {
	switch code {
	case codePCM:
		return FormatPCM
	case codeIEEEFloat:
		return FormatIEEEFloat
	case codeALaw:
		return FormatALaw
	case codeMuLaw:
		return FormatMuLaw
	default:
		return FormatOther
	}
}

func (f Format) String() string {
	switch f {
	case FormatPCM:
		return "PCM"
	case FormatIEEEFloat:
		return "IEEE float"
	case FormatALaw:
		return "A-law"
	case FormatMuLaw:
		return "µ-law"
	default:
		return "other"
	}
}

// Descriptor is the sample format read from the fmt chunk.
type Descriptor struct {
	Format Format
	// FormatCode is the raw code, useful if Format is FormatOther.
	FormatCode    uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	// BytesPerChannel is BlockAlign / Channels, the container width of one sample.
	BytesPerChannel uint16
}

// AudioFormat returns the format as used by the go-audio packages.
func (d Descriptor) AudioFormat() *audio.Format {
	return &audio.Format{
		NumChannels: int(d.Channels),
		SampleRate:  int(d.SampleRate),
	}
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%v, %d channels, %d Hz, %d bit (%d bytes per channel), %d bytes/s",
		d.Format, d.Channels, d.SampleRate, d.BitsPerSample, d.BytesPerChannel, d.ByteRate)
}
