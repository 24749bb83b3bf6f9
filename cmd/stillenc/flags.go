package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/zsiec/stillenc/internal/cuda"
	"github.com/zsiec/stillenc/internal/encoder"
	"github.com/zsiec/stillenc/internal/nvenc"
)

// options holds the program flags. Encoder tuning words appear after a
// bare "--" and are forwarded verbatim to encoder.ParseOptions.
type options struct {
	input  string
	output string

	width  int // 0 = take from the image
	height int

	format encoder.BufferFormat
	gpu    int
	frames int
	vidmem bool

	srtAddr     string
	srtStreamID string

	config encoder.Config
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var (
		opts    options
		size    string
		fmtName string
		srtDest string
	)

	fs := flag.NewFlagSet("stillenc", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.input, "i", "", "input image file (png, jpeg, or gif)")
	fs.StringVar(&opts.output, "o", "", "output elementary stream (default out.h264 / out.hevc)")
	fs.StringVar(&size, "s", "", "resolution override WxH (must match the image)")
	fs.StringVar(&fmtName, "if", "iyuv", "encoder input buffer format")
	fs.IntVar(&opts.gpu, "gpu", 0, "GPU ordinal to encode on")
	fs.IntVar(&opts.frames, "frames", 375, "number of times to submit the image")
	fs.BoolVar(&opts.vidmem, "outputInVidMem", false,
		"route encoder output through device memory and write a CRC sidecar")
	fs.StringVar(&srtDest, "srt", "", "mirror packets to srt://host:port[?streamid=id]")

	fs.Usage = func() {
		w := fs.Output()
		fmt.Fprintf(w, "usage: stillenc -i image [flags] [-- encoder options]\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nEncoder options after \"--\": -codec h264|hevc, -preset p1..p7,\n")
		fmt.Fprintf(w, "-tuning, -profile, -rc, -fps, -gop, -bf, -bitrate, -maxbitrate,\n")
		fmt.Fprintf(w, "-vbvbufsize, -constqp, -cq, -qmin, -qmax.\n")
		fmt.Fprintf(w, "\nInput formats: iyuv nv12 yv12 yuv444 p010 yuv444p16 bgra bgra10 ayuv abgr abgr10\n")
	}

	if err := fs.Parse(args); err != nil {
		// Probing the GPUs costs a CUDA context and an encoder session per
		// device, so the capability table appears only on an explicit -h,
		// never on a mistyped flag.
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(out)
			printCaps(out)
		}
		return opts, err
	}

	if opts.input == "" {
		return opts, errors.New("an input image is required (-i)")
	}
	if opts.frames < 0 {
		return opts, fmt.Errorf("-frames must be non-negative, got %d", opts.frames)
	}

	var err error
	if opts.format, err = encoder.ParseBufferFormat(fmtName); err != nil {
		return opts, err
	}
	if size != "" {
		if opts.width, opts.height, err = parseSize(size); err != nil {
			return opts, err
		}
	}
	if srtDest != "" {
		if opts.srtAddr, opts.srtStreamID, err = parseSRTDest(srtDest); err != nil {
			return opts, err
		}
	}

	if opts.config, err = encoder.ParseOptions(fs.Args()); err != nil {
		return opts, err
	}
	if opts.output == "" {
		opts.output = "out." + string(opts.config.Codec)
	}
	return opts, nil
}

func parseSize(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("malformed resolution %q, want WxH", s)
	}
	return w, h, nil
}

func parseSRTDest(dest string) (addr, streamID string, err error) {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "srt" || u.Host == "" {
		return "", "", fmt.Errorf("malformed SRT destination %q, want srt://host:port[?streamid=id]", dest)
	}
	if !strings.Contains(u.Host, ":") {
		return "", "", fmt.Errorf("SRT destination %q needs a port", dest)
	}
	return u.Host, u.Query().Get("streamid"), nil
}

// printCaps appends the per-GPU encoder capability table to the usage
// output. Probing requires a CUDA device, so builds without hardware
// support print a one-line hint instead.
func printCaps(w io.Writer) {
	if err := cuda.Init(); err != nil {
		fmt.Fprintf(w, "encoder capabilities unavailable: %v\n", err)
		return
	}
	n, err := cuda.DeviceCount()
	if err != nil {
		fmt.Fprintf(w, "encoder capabilities unavailable: %v\n", err)
		return
	}
	for i := 0; i < n; i++ {
		caps, err := nvenc.QueryCaps(i)
		if err != nil {
			fmt.Fprintf(w, "GPU %d: %v\n", i, err)
			continue
		}
		fmt.Fprintf(w, "GPU %d: %s\n", caps.Ordinal, caps.Name)
		printCodecCaps(w, "h264", caps.H264)
		printCodecCaps(w, "hevc", caps.HEVC)
	}
}

func printCodecCaps(w io.Writer, name string, c encoder.CodecCaps) {
	if !c.Supported {
		fmt.Fprintf(w, "  %s: not supported\n", name)
		return
	}
	fmt.Fprintf(w, "  %s: yuv444=%s 10bit=%s lossless=%s meonly=%s",
		name, yesNo(c.YUV444), yesNo(c.TenBit), yesNo(c.Lossless), yesNo(c.MEOnly))
	if name == "hevc" {
		fmt.Fprintf(w, " sao=%s", yesNo(c.SAO))
	}
	fmt.Fprintf(w, " max=%dx%d\n", c.MaxWidth, c.MaxHeight)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
