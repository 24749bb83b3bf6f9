package encoder

import "fmt"

// Codec selects the bitstream standard the session produces.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecHEVC Codec = "hevc"
)

// Preset names follow the hardware encoder's P1 (fastest) through P7
// (slowest, best quality) scale.
var validPresets = map[string]bool{
	"p1": true, "p2": true, "p3": true, "p4": true,
	"p5": true, "p6": true, "p7": true,
}

// Tuning biases the preset toward a use case.
var validTunings = map[string]bool{
	"hq": true, "lowlatency": true, "ultralowlatency": true, "lossless": true,
}

var validRateControls = map[string]bool{
	"constqp": true, "vbr": true, "cbr": true,
}

var validProfiles = map[Codec]map[string]bool{
	CodecH264: {"auto": true, "baseline": true, "main": true, "high": true, "high444": true},
	CodecHEVC: {"auto": true, "main": true, "main10": true, "frext": true},
}

// Config carries the encoder tuning options forwarded from the command
// line. Zero-valued rate fields leave the preset defaults in place.
type Config struct {
	Codec       Codec
	Preset      string
	Tuning      string
	Profile     string
	RateControl string

	FPS       int
	GOPLength int // 0 = infinite GOP (single IDR), matching a still-image stream
	BFrames   int

	AverageBitrate int // bits per second
	MaxBitrate     int
	VBVBufferSize  int

	// ConstQP applies when RateControl is "constqp"; TargetQuality drives
	// quality-bounded VBR when non-zero.
	ConstQP       int
	QMin          int
	QMax          int
	TargetQuality int
}

// DefaultConfig returns the tuning used when no encoder options are
// forwarded: H.264, P4 preset, high-quality tuning, 25 fps VBR.
func DefaultConfig() Config {
	return Config{
		Codec:       CodecH264,
		Preset:      "p4",
		Tuning:      "hq",
		Profile:     "auto",
		RateControl: "vbr",
		FPS:         25,
	}
}

// Validate reports the first invalid option, phrased for CLI display.
func (c Config) Validate() error {
	if c.Codec != CodecH264 && c.Codec != CodecHEVC {
		return fmt.Errorf("unknown codec %q (h264 or hevc)", c.Codec)
	}
	if !validPresets[c.Preset] {
		return fmt.Errorf("unknown preset %q (p1..p7)", c.Preset)
	}
	if !validTunings[c.Tuning] {
		return fmt.Errorf("unknown tuning %q (hq, lowlatency, ultralowlatency, lossless)", c.Tuning)
	}
	if !validRateControls[c.RateControl] {
		return fmt.Errorf("unknown rate control %q (constqp, vbr, cbr)", c.RateControl)
	}
	if !validProfiles[c.Codec][c.Profile] {
		return fmt.Errorf("profile %q is not valid for %s", c.Profile, c.Codec)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.BFrames < 0 {
		return fmt.Errorf("bframes must be non-negative, got %d", c.BFrames)
	}
	if c.AverageBitrate < 0 || c.MaxBitrate < 0 || c.VBVBufferSize < 0 {
		return fmt.Errorf("bitrate options must be non-negative")
	}
	if c.QMin > c.QMax {
		return fmt.Errorf("qmin %d exceeds qmax %d", c.QMin, c.QMax)
	}
	return nil
}
