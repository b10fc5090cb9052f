// Command flvcat remuxes a single FLV file into a fragmented MP4 file.
//
// Usage: flvcat <input.flv> <output.mp4>
//
// This is a demonstration wrapper, not part of the remux core: it has no
// flag parsing framework, just two positional arguments and a single pass
// over the input file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mediaflux/flv2fmp4/internal/bitio"
	"github.com/mediaflux/flv2fmp4/internal/flv"
	"github.com/mediaflux/flv2fmp4/internal/observability"
	"github.com/mediaflux/flv2fmp4/internal/remux"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "flvcat:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: flvcat <input.flv> <output.mp4>")
	}
	inPath, outPath := args[0], args[1]

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  os.Getenv("FLVCAT_LOG_LEVEL"),
		Format: "text",
	})

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	ctx := observability.ContextWithLogger(context.Background(), logger)
	stop := observability.TimedOperation(ctx, logger, "remux")
	defer stop()

	r := remux.NewRemuxer(remux.Config{
		Logger: logger,
		OnHeader: func(header []byte) error {
			_, err := out.Write(header)
			return err
		},
		OnVideoFragment: func(fragment []byte) error {
			_, err := out.Write(fragment)
			return err
		},
		OnAudioFragment: func(fragment []byte) error {
			_, err := out.Write(fragment)
			return err
		},
		OnDecoderConfig: func(e remux.DecoderConfigEvent) error {
			logger.Debug("decoder config", "video", e.IsVideo, "codec", e.CodecString)
			return nil
		},
		OnUnsupported: func(e remux.UnsupportedEvent) error {
			logger.Warn("unsupported stream content, stopping early", "kind", e.Kind, "reason", e.Reason)
			return nil
		},
		OnEndOfSequence: func() error {
			logger.Debug("end of sequence reached")
			return nil
		},
	})

	q := bitio.NewQueue(data)
	dec := flv.NewDecoder(q, flv.DecoderConfig{
		Logger: logger,
		OnTag:  r.PushTag,
	})

	header, err := dec.DecodeHeader()
	if err != nil {
		return fmt.Errorf("decode flv header: %w", err)
	}
	r.PushHeader(header)

	if err := dec.DecodeBodyLoop(); err != nil {
		return fmt.Errorf("decode flv body: %w", err)
	}

	if err := r.Close(); err != nil {
		return fmt.Errorf("close remuxer: %w", err)
	}

	logger.Info("remux complete", "input", inPath, "output", outPath, "bytes_in", len(data))
	return nil
}
