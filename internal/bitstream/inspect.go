package bitstream

import "github.com/zsiec/stillenc/internal/encoder"

// Summary is the end-of-run digest of the produced elementary stream.
type Summary struct {
	Codec     string // RFC 6381 codec string, "" if no SPS was seen
	Width     int
	Height    int
	Packets   int
	Bytes     int64
	Keyframes int
}

// Inspector observes packets on their way to the output and accumulates a
// Summary. It satisfies the sink contract so it can ride the fan-out chain
// without copying data.
type Inspector struct {
	codec  encoder.Codec
	sum    Summary
	gotSPS bool
}

// NewInspector creates an Inspector for streams of the given codec.
func NewInspector(codec encoder.Codec) *Inspector {
	return &Inspector{codec: codec}
}

// WritePacket scans one encoded packet. It never fails; the signature
// matches the sink interface.
func (in *Inspector) WritePacket(p encoder.Packet) error {
	in.sum.Packets++
	in.sum.Bytes += int64(len(p.Data))

	var units []NALUnit
	if in.codec == encoder.CodecHEVC {
		units = SplitAnnexBHEVC(p.Data)
	} else {
		units = SplitAnnexB(p.Data)
	}

	// A frame may be coded as several slices; count the packet as one
	// keyframe no matter how many RAP NAL units it carries.
	keyframe := false
	for _, u := range units {
		switch {
		case in.codec == encoder.CodecHEVC && IsHEVCKeyframe(u.Type):
			keyframe = true
		case in.codec != encoder.CodecHEVC && IsH264Keyframe(u.Type):
			keyframe = true
		}
		if in.gotSPS {
			continue
		}
		if in.codec == encoder.CodecHEVC && u.Type == HEVCNALSPS {
			if info, err := ParseHEVCSPS(u.Data); err == nil {
				in.sum.Codec = info.CodecString()
				in.sum.Width = info.Width
				in.sum.Height = info.Height
				in.gotSPS = true
			}
		} else if in.codec != encoder.CodecHEVC && u.Type == NALTypeSPS {
			if info, err := ParseSPS(u.Data); err == nil {
				in.sum.Codec = info.CodecString()
				in.sum.Width = info.Width
				in.sum.Height = info.Height
				in.gotSPS = true
			}
		}
	}
	if keyframe {
		in.sum.Keyframes++
	}
	return nil
}

// Close satisfies the sink contract.
func (in *Inspector) Close() error { return nil }

// Summary returns the digest accumulated so far.
func (in *Inspector) Summary() Summary { return in.sum }
