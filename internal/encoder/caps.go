package encoder

// CodecCaps summarizes one codec's support level on a device, as reported
// by the encoder capability query API.
type CodecCaps struct {
	Supported bool
	YUV444    bool
	TenBit    bool
	Lossless  bool
	MEOnly    bool
	SAO       bool // HEVC sample adaptive offset
	MaxWidth  int
	MaxHeight int
}

// DeviceCaps is the per-GPU capability table shown by the help output.
type DeviceCaps struct {
	Ordinal int
	Name    string
	H264    CodecCaps
	HEVC    CodecCaps
}
