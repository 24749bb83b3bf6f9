package encoder

import (
	"strings"
	"testing"
)

func TestParseOptionsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := ParseOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Codec != CodecH264 || cfg.Preset != "p4" || cfg.Tuning != "hq" {
		t.Errorf("defaults = %s/%s/%s, want h264/p4/hq", cfg.Codec, cfg.Preset, cfg.Tuning)
	}
	if cfg.FPS != 25 {
		t.Errorf("default fps = %d, want 25", cfg.FPS)
	}
}

func TestParseOptions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		words string
		check func(t *testing.T, cfg Config)
	}{
		{
			name:  "codec and preset",
			words: "-codec hevc -preset p1 -tuning lowlatency",
			check: func(t *testing.T, cfg Config) {
				if cfg.Codec != CodecHEVC || cfg.Preset != "p1" || cfg.Tuning != "lowlatency" {
					t.Errorf("got %s/%s/%s", cfg.Codec, cfg.Preset, cfg.Tuning)
				}
			},
		},
		{
			name:  "bitrates with suffixes",
			words: "-rc cbr -bitrate 2M -maxbitrate 4M -vbvbufsize 500K",
			check: func(t *testing.T, cfg Config) {
				if cfg.AverageBitrate != 2_000_000 {
					t.Errorf("bitrate = %d", cfg.AverageBitrate)
				}
				if cfg.MaxBitrate != 4_000_000 {
					t.Errorf("maxbitrate = %d", cfg.MaxBitrate)
				}
				if cfg.VBVBufferSize != 500_000 {
					t.Errorf("vbvbufsize = %d", cfg.VBVBufferSize)
				}
			},
		},
		{
			name:  "qp bounds",
			words: "-rc constqp -constqp 28 -qmin 20 -qmax 40 -gop 250 -bf 2 -fps 30",
			check: func(t *testing.T, cfg Config) {
				if cfg.ConstQP != 28 || cfg.QMin != 20 || cfg.QMax != 40 {
					t.Errorf("qp = %d/%d/%d", cfg.ConstQP, cfg.QMin, cfg.QMax)
				}
				if cfg.GOPLength != 250 || cfg.BFrames != 2 || cfg.FPS != 30 {
					t.Errorf("gop/bf/fps = %d/%d/%d", cfg.GOPLength, cfg.BFrames, cfg.FPS)
				}
			},
		},
		{
			name:  "hevc main10 profile",
			words: "-codec hevc -profile main10 -cq 23",
			check: func(t *testing.T, cfg Config) {
				if cfg.Profile != "main10" || cfg.TargetQuality != 23 {
					t.Errorf("profile=%s cq=%d", cfg.Profile, cfg.TargetQuality)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := ParseOptions(strings.Fields(tc.words))
			if err != nil {
				t.Fatal(err)
			}
			tc.check(t, cfg)
		})
	}
}

func TestParseOptionsErrors(t *testing.T) {
	t.Parallel()
	cases := []string{
		"-codec av1",            // unsupported codec
		"-preset fast",          // not a p1..p7 preset
		"-profile main10",       // main10 is hevc-only, codec defaults h264
		"-bitrate abc",          // not a number
		"-fps",                  // missing value
		"-qmin 40 -qmax 20",     // inverted bounds
		"-lookahead 8",          // unknown option
		"hevc",                  // bare word where an option is expected
		"-rc cqp",               // unknown rate control name
		"-tuning insanequality", // unknown tuning
	}
	for _, words := range cases {
		if _, err := ParseOptions(strings.Fields(words)); err == nil {
			t.Errorf("ParseOptions(%q): expected error", words)
		}
	}
}
