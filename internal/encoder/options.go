package encoder

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOptions applies encoder tuning words forwarded verbatim from the
// command line (everything after "--") on top of DefaultConfig. Options are
// "-name value" pairs; bit-rate values accept K and M suffixes.
//
//	-codec h264|hevc        -rc constqp|vbr|cbr    -bitrate 2M
//	-preset p1..p7          -fps N                 -maxbitrate 4M
//	-tuning hq|lowlatency|  -gop N                 -vbvbufsize 2M
//	        ultralowlatency|-bf N                  -constqp N
//	        lossless        -cq N                  -qmin N -qmax N
//	-profile <codec profile>
func ParseOptions(words []string) (Config, error) {
	cfg := DefaultConfig()

	for i := 0; i < len(words); i++ {
		opt := words[i]
		if !strings.HasPrefix(opt, "-") {
			return cfg, fmt.Errorf("expected an encoder option, got %q", opt)
		}
		if i+1 >= len(words) {
			return cfg, fmt.Errorf("encoder option %s needs a value", opt)
		}
		i++
		val := words[i]

		var err error
		switch opt {
		case "-codec":
			cfg.Codec = Codec(val)
		case "-preset":
			cfg.Preset = val
		case "-tuning":
			cfg.Tuning = val
		case "-profile":
			cfg.Profile = val
		case "-rc":
			cfg.RateControl = val
		case "-fps":
			cfg.FPS, err = parseInt(opt, val)
		case "-gop":
			cfg.GOPLength, err = parseInt(opt, val)
		case "-bf":
			cfg.BFrames, err = parseInt(opt, val)
		case "-bitrate":
			cfg.AverageBitrate, err = parseBitValue(opt, val)
		case "-maxbitrate":
			cfg.MaxBitrate, err = parseBitValue(opt, val)
		case "-vbvbufsize":
			cfg.VBVBufferSize, err = parseBitValue(opt, val)
		case "-constqp":
			cfg.ConstQP, err = parseInt(opt, val)
		case "-cq":
			cfg.TargetQuality, err = parseInt(opt, val)
		case "-qmin":
			cfg.QMin, err = parseInt(opt, val)
		case "-qmax":
			cfg.QMax, err = parseInt(opt, val)
		default:
			return cfg, fmt.Errorf("unknown encoder option %s", opt)
		}
		if err != nil {
			return cfg, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseInt(opt, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("encoder option %s: invalid number %q", opt, val)
	}
	return n, nil
}

// parseBitValue parses a bit count with an optional K or M decimal suffix,
// e.g. "2M" = 2_000_000.
func parseBitValue(opt, val string) (int, error) {
	mult := 1
	switch {
	case strings.HasSuffix(val, "K"), strings.HasSuffix(val, "k"):
		mult, val = 1_000, val[:len(val)-1]
	case strings.HasSuffix(val, "M"), strings.HasSuffix(val, "m"):
		mult, val = 1_000_000, val[:len(val)-1]
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("encoder option %s: invalid bit value %q", opt, val)
	}
	return n * mult, nil
}
