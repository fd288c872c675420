package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aligator/goexfat"
	"github.com/aligator/goexfat/blockdev"
	"github.com/aligator/goexfat/internal/logging"
	"github.com/aligator/goexfat/stream"
	"github.com/aligator/goexfat/wav"
	"github.com/spf13/afero"
)

var (
	ErrUsage          = errors.New("invalid arguments")
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnsupported    = errors.New("unsupported sample format")
)

// pollInterval is the wait of the play loop if no slot could be filled.
const pollInterval = time.Millisecond

// sinkFactory creates the device a file is played on.
type sinkFactory func(d wav.Descriptor) (io.WriteCloser, error)

type app struct {
	// fs holds the card image and the written WAV files.
	fs      afero.Fs
	stdout  io.Writer
	outPath string
	newSink sinkFactory
}

func (a *app) run(ctx context.Context, imagePath string, args []string) error {
	img, err := blockdev.Open(a.fs, imagePath)
	if err != nil {
		return err
	}
	defer img.Close()

	fsys, err := goexfat.New(img)
	if err != nil {
		return err
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "ls":
		dir := "/"
		if len(args) > 0 {
			dir = args[0]
		}
		return a.ls(fsys, dir)
	case "tree":
		return a.tree(fsys)
	case "info":
		if len(args) != 1 {
			return fmt.Errorf("%w: info <file>", ErrUsage)
		}
		return a.info(fsys, args[0])
	case "play":
		if len(args) != 1 {
			return fmt.Errorf("%w: play <file>", ErrUsage)
		}
		return a.play(ctx, fsys, args[0])
	case "extract":
		if len(args) != 2 {
			return fmt.Errorf("%w: extract <file> <out>", ErrUsage)
		}
		return a.extract(fsys, args[0], args[1])
	default:
		return fmt.Errorf("%w: %v", ErrUnknownCommand, cmd)
	}
}

func (a *app) ls(fsys *goexfat.Fs, dir string) error {
	f, err := fsys.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(a.stdout, "%v %10d %v %v\n", info.Mode(), info.Size(), info.ModTime().Format(time.DateTime), info.Name())
	}
	return nil
}

func (a *app) tree(fsys *goexfat.Fs) error {
	return afero.Walk(fsys, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			fmt.Fprintln(a.stdout, strings.TrimSuffix(path, "/")+"/")
			return nil
		}
		fmt.Fprintf(a.stdout, "%v (%d bytes)\n", path, info.Size())
		return nil
	})
}

func (a *app) info(fsys *goexfat.Fs, name string) error {
	vol := fsys.Volume()
	label, err := vol.Label()
	if err != nil {
		return err
	}
	g := vol.Geometry()

	fmt.Fprintf(a.stdout, "Volume:      %q, serial %08X\n", label, g.SerialNumber)
	fmt.Fprintf(a.stdout, "Partition:   sector %d, %d sectors\n", g.PartitionOffset, g.VolumeLength)
	fmt.Fprintf(a.stdout, "Clusters:    %d of %d bytes, heap at sector %d\n", g.ClusterCount, g.ClusterSize(), g.ClusterHeapOffset)

	f, err := a.openWAV(fsys, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "File:        %v\n", name)
	fmt.Fprintf(a.stdout, "Format:      %v\n", f.Descriptor)
	fmt.Fprintf(a.stdout, "Data:        %d bytes at offset %d\n", f.DataLength(), f.FirstByte())
	if f.ByteRate > 0 {
		fmt.Fprintf(a.stdout, "Duration:    %v\n", time.Duration(f.DataLength())*time.Second/time.Duration(f.ByteRate))
	}
	return nil
}

func (a *app) openWAV(fsys *goexfat.Fs, name string) (*wav.File, error) {
	record, err := fsys.Volume().Lookup(name)
	if err != nil {
		return nil, err
	}
	return wav.Open(fsys.Volume(), record)
}

func (a *app) play(ctx context.Context, fsys *goexfat.Fs, name string) error {
	f, err := a.openWAV(fsys, name)
	if err != nil {
		return err
	}
	if f.Format != wav.FormatPCM || f.BitsPerSample != 16 {
		return fmt.Errorf("%w: playback needs 16 bit PCM, got %v", ErrUnsupported, f.Descriptor)
	}

	var sink io.WriteCloser
	if a.outPath != "" {
		w, err := createWAV(a.fs, a.outPath, f.Descriptor, 16)
		if err != nil {
			return err
		}
		sink = newPacedWriter(w, f.ByteRate)
	} else {
		sink, err = a.newSink(f.Descriptor)
		if err != nil {
			return err
		}
	}

	logging.Info(logging.ComponentCLI, "playing", "file", name, "format", f.Descriptor.String())
	err = playOn(ctx, f, sink)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	return err
}

// playOn streams src to sink until the data is exhausted and every filled slot was played.
func playOn(ctx context.Context, src stream.BlockSource, sink io.Writer) error {
	transport := stream.NewTransport(sink)
	engine := stream.New(src, transport, stream.WithPollInterval(pollInterval))
	if err := engine.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- transport.Run(ctx, engine.OnTransferComplete)
		cancel()
	}()

	err := pump(ctx, engine)
	cancel()
	if terr := <-done; terr != nil && !errors.Is(terr, context.Canceled) {
		return terr
	}
	if err != nil {
		return err
	}

	stats := engine.Stats()
	logging.Info(logging.ComponentCLI, "playback finished",
		"transfers", stats.Transfers, "underruns", stats.Underruns, "abandoned", stats.Abandoned)
	return nil
}

func pump(ctx context.Context, engine *stream.Engine) error {
	for {
		published, err := engine.Pump()
		switch {
		case errors.Is(err, wav.ErrEndOfData):
			return engine.Drain(ctx)
		case err != nil:
			logging.Warn(logging.ComponentCLI, "reading the card failed, retrying", "error", err)
		}

		if published {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (a *app) extract(fsys *goexfat.Fs, name, outPath string) error {
	f, err := a.openWAV(fsys, name)
	if err != nil {
		return err
	}
	bits := int(f.BitsPerSample)
	if f.Format != wav.FormatPCM || (bits != 16 && bits != 24 && bits != 32) || int(f.BytesPerChannel)*8 != bits {
		return fmt.Errorf("%w: extract needs 16, 24 or 32 bit PCM, got %v", ErrUnsupported, f.Descriptor)
	}

	out, err := createWAV(a.fs, outPath, f.Descriptor, bits)
	if err != nil {
		return err
	}

	var scratch wav.Scratch
	data := make([]int, 0, len(scratch)/int(f.BytesPerChannel))
	total := 0
	for {
		samples, err := f.ReadNextSamples(&scratch)
		if errors.Is(err, wav.ErrEndOfData) {
			break
		}
		if err != nil {
			out.Close()
			return err
		}

		data = data[:0]
		for s := range samples {
			data = append(data, int(s>>(32-bits)))
		}
		if err := out.WriteSamples(data); err != nil {
			out.Close()
			return err
		}
		total += len(data)
	}

	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "extracted %d samples to %v\n", total, outPath)
	return nil
}
