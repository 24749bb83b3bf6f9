// Command stillenc feeds a single still image, held resident in GPU
// memory, through the hardware video encoder a fixed number of times and
// writes the resulting elementary stream to a file. It exists to exercise
// the encode path end to end with fully deterministic input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/stillenc/internal/bitstream"
	"github.com/zsiec/stillenc/internal/cuda"
	"github.com/zsiec/stillenc/internal/encoder"
	"github.com/zsiec/stillenc/internal/imaging"
	"github.com/zsiec/stillenc/internal/nvenc"
	"github.com/zsiec/stillenc/internal/pipeline"
	"github.com/zsiec/stillenc/internal/sink"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping", "signal", sig)
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		if errors.Is(err, encoder.ErrNotBuilt) {
			slog.Error("hardware support missing", "error", err)
		} else {
			slog.Error("encode failed", "error", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	img, err := imaging.Load(opts.input)
	if err != nil {
		return err
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if opts.width != 0 {
		if err := imaging.CheckOverride(width, height, opts.width, opts.height); err != nil {
			return err
		}
		width, height = opts.width, opts.height
	}
	if err := imaging.ValidateResolution(width, height); err != nil {
		return err
	}
	frame, err := imaging.Pack(img, opts.format)
	if err != nil {
		return err
	}

	slog.Info("stillenc starting",
		"version", version,
		"input", opts.input,
		"output", opts.output,
		"format", opts.format.String(),
		"resolution", fmt.Sprintf("%dx%d", width, height),
		"codec", string(opts.config.Codec),
		"frames", opts.frames,
	)

	// Open the output before touching the device so a bad path fails fast.
	file, err := sink.NewFile(opts.output)
	if err != nil {
		return err
	}

	if err := cuda.Init(); err != nil {
		return err
	}
	dev, err := cuda.GetDevice(opts.gpu)
	if err != nil {
		return err
	}
	name, err := dev.Name()
	if err != nil {
		return err
	}
	slog.Info("using device", "gpu", opts.gpu, "name", name)

	cuCtx, err := cuda.NewContext(dev)
	if err != nil {
		return err
	}
	defer cuCtx.Destroy()

	sess, err := nvenc.New(cuCtx, width, height, opts.format, opts.config, opts.vidmem, slog.Default())
	if err != nil {
		return err
	}
	defer sess.Close()

	inspector := bitstream.NewInspector(opts.config.Codec)
	sinks := []sink.Sink{file, inspector}
	if opts.vidmem {
		crc, err := sink.NewCRCSidecar(opts.output)
		if err != nil {
			return err
		}
		sinks = append(sinks, crc)
	}
	if opts.srtAddr != "" {
		srt, err := sink.DialSRT(opts.srtAddr, opts.srtStreamID, slog.Default())
		if err != nil {
			return err
		}
		sinks = append(sinks, srt)
	}
	out := sink.Multi(sinks...)

	var stats pipeline.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = pipeline.New(sess, frame, opts.frames, out, slog.Default()).Run(gctx)
		return err
	})
	runErr := g.Wait()

	if err := out.Close(); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			slog.Error("closing outputs", "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	sum := inspector.Summary()
	slog.Info("stream written",
		"output", opts.output,
		"codec_string", sum.Codec,
		"coded_resolution", fmt.Sprintf("%dx%d", sum.Width, sum.Height),
		"packets", stats.Packets,
		"keyframes", sum.Keyframes,
		"bytes", file.Bytes(),
	)
	if opts.vidmem {
		slog.Info("crc sidecar written", "path", sink.SidecarPath(opts.output))
	}
	return nil
}
