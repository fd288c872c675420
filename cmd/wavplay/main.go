// wavplay reads an SD card image holding an exFAT volume and lists, inspects, plays or
// extracts the WAV files on it.
//
// Usage:
//
//	wavplay -image card.img ls [dir]
//	wavplay -image card.img tree
//	wavplay -image card.img info file.wav
//	wavplay -image card.img [-out played.wav] play file.wav
//	wavplay -image card.img extract file.wav out.wav
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/aligator/goexfat/internal/logging"
	"github.com/spf13/afero"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -image <card image> <command> [arguments]\n\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "Commands:")
	fmt.Fprintln(flag.CommandLine.Output(), "  ls [dir]                list a directory")
	fmt.Fprintln(flag.CommandLine.Output(), "  tree                    list every file of the volume")
	fmt.Fprintln(flag.CommandLine.Output(), "  info <file>             print volume and sample format information")
	fmt.Fprintln(flag.CommandLine.Output(), "  play <file>             play a 16 bit PCM file")
	fmt.Fprintln(flag.CommandLine.Output(), "  extract <file> <out>    decode the samples into a WAV file on the host")
	fmt.Fprintln(flag.CommandLine.Output(), "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	var (
		image    = flag.String("image", "", "path of the SD card image")
		logLevel = flag.String("log-level", "warn", "log level: debug, info, warn or error")
		logJSON  = flag.Bool("log-json", false, "log as JSON")
		out      = flag.String("out", "", "play into this WAV file instead of the sound card")
	)
	flag.Usage = usage
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.SetLevel(level)
	if *logJSON {
		logging.SetFormat(os.Stderr, logging.FormatJSON)
	}

	if *image == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{
		fs:      afero.NewOsFs(),
		stdout:  os.Stdout,
		outPath: *out,
		newSink: newOtoSink,
	}
	if err := a.run(ctx, *image, flag.Args()); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.Error(logging.ComponentCLI, "command failed", "command", flag.Arg(0), "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
