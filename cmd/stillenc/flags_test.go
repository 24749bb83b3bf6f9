package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/zsiec/stillenc/internal/encoder"
)

func TestParseFlagsDefaults(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags([]string{"-i", "in.png"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.output != "out.h264" {
		t.Errorf("output = %q, want out.h264", opts.output)
	}
	if opts.frames != 375 {
		t.Errorf("frames = %d, want 375", opts.frames)
	}
	if opts.format != encoder.FormatIYUV {
		t.Errorf("format = %v, want iyuv", opts.format)
	}
	if opts.config.Codec != encoder.CodecH264 {
		t.Errorf("codec = %q, want h264", opts.config.Codec)
	}
}

func TestParseFlagsEncoderOptions(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags([]string{
		"-i", "in.png", "-if", "nv12", "-frames", "10",
		"--", "-codec", "hevc", "-preset", "p7", "-bitrate", "5M",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.config.Codec != encoder.CodecHEVC {
		t.Errorf("codec = %q, want hevc", opts.config.Codec)
	}
	if opts.config.Preset != "p7" {
		t.Errorf("preset = %q, want p7", opts.config.Preset)
	}
	if opts.config.AverageBitrate != 5_000_000 {
		t.Errorf("bitrate = %d, want 5000000", opts.config.AverageBitrate)
	}
	if opts.output != "out.hevc" {
		t.Errorf("output = %q, want out.hevc", opts.output)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{}, "input image"},
		{"bad format", []string{"-i", "x.png", "-if", "rgb565"}, "unknown input format"},
		{"bad size", []string{"-i", "x.png", "-s", "1920"}, "malformed resolution"},
		{"negative frames", []string{"-i", "x.png", "-frames", "-1"}, "non-negative"},
		{"bad srt", []string{"-i", "x.png", "-srt", "udp://h:1"}, "SRT destination"},
		{"srt no port", []string{"-i", "x.png", "-srt", "srt://host"}, "needs a port"},
		{"bad encoder option", []string{"-i", "x.png", "--", "-codec", "av1"}, "unknown codec"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseFlags(tc.args, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	w, h, err := parseSize("1920x1080")
	if err != nil || w != 1920 || h != 1080 {
		t.Errorf("parseSize(1920x1080) = %d, %d, %v", w, h, err)
	}
	if _, _, err := parseSize("0x100"); err == nil {
		t.Error("parseSize(0x100) should fail")
	}
}

func TestParseSRTDest(t *testing.T) {
	t.Parallel()

	addr, id, err := parseSRTDest("srt://relay.example.com:6000?streamid=still")
	if err != nil {
		t.Fatalf("parseSRTDest: %v", err)
	}
	if addr != "relay.example.com:6000" || id != "still" {
		t.Errorf("got %q, %q", addr, id)
	}
}

func TestParseFlagsBadFlagSkipsCapabilityProbe(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, err := parseFlags([]string{"-i", "x.png", "-bogus"}, &out)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want a flag parse error", err)
	}
	if !strings.Contains(out.String(), "usage: stillenc") {
		t.Error("usage text missing from bad-flag output")
	}
	if strings.Contains(out.String(), "encoder capabilities") || strings.Contains(out.String(), "GPU ") {
		t.Errorf("capability probe ran on a bad flag:\n%s", out.String())
	}
}

func TestParseFlagsHelpShowsCapabilities(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, err := parseFlags([]string{"-h"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(out.String(), "encoder capabilities") && !strings.Contains(out.String(), "GPU ") {
		t.Errorf("capability table missing from help output:\n%s", out.String())
	}
}
