package main

import (
	"fmt"
	"io"
	"time"

	"github.com/aligator/goexfat/internal/logging"
	"github.com/aligator/goexfat/wav"
	"github.com/ebitengine/oto/v3"
)

// drainTimeout bounds how long Close waits for buffered audio.
const drainTimeout = time.Second

// otoSink plays 16 bit samples on the sound card.
// Writes block until the player took the data, which paces the stream engine.
type otoSink struct {
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
}

func newOtoSink(d wav.Descriptor) (io.WriteCloser, error) {
	op := &oto.NewContextOptions{
		SampleRate:   int(d.SampleRate),
		ChannelCount: int(d.Channels),
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	s := &otoSink{otoCtx: otoCtx}
	s.pipeReader, s.pipeWriter = io.Pipe()
	s.player = otoCtx.NewPlayer(s.pipeReader)
	s.player.Play()

	logging.Info(logging.ComponentCLI, "audio output initialized", "sampleRate", d.SampleRate, "channels", d.Channels)
	return s, nil
}

func (s *otoSink) Write(p []byte) (int, error) {
	return s.pipeWriter.Write(p)
}

// Close lets the player finish the buffered audio and releases the device.
func (s *otoSink) Close() error {
	s.pipeWriter.Close()

	deadline := time.Now().Add(drainTimeout)
	for s.player.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	err := s.player.Close()
	s.pipeReader.Close()
	if serr := s.otoCtx.Suspend(); err == nil {
		err = serr
	}
	return err
}
