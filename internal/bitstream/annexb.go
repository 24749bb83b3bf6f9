// Package bitstream inspects the Annex B elementary stream the encoder
// emits: NAL unit splitting and just enough H.264/H.265 parameter set
// parsing to report the coded resolution and RFC 6381 codec string in the
// end-of-run summary.
package bitstream

// H.264 NAL unit types (ITU-T H.264 Table 7-1).
const (
	NALTypeIDR = 5
	NALTypeSPS = 7
	NALTypePPS = 8
)

// H.265 NAL unit types (ITU-T H.265 Table 7-1).
const (
	HEVCNALBlaWLP = 16
	HEVCNALCraNut = 21
	HEVCNALSPS    = 33
)

// NALUnit is one parsed NAL unit: the codec-specific type and the raw data
// including the NAL header byte(s), without the start code.
type NALUnit struct {
	Type byte
	Data []byte
}

// H264NALType extracts the 5-bit NAL type from an H.264 NAL header byte.
func H264NALType(b byte) byte { return b & 0x1F }

// HEVCNALType extracts the 6-bit NAL type from the first byte of an HEVC
// 2-byte NAL header.
func HEVCNALType(b byte) byte { return (b >> 1) & 0x3F }

// IsH264Keyframe reports whether the NAL type is an IDR slice.
func IsH264Keyframe(nalType byte) bool { return nalType == NALTypeIDR }

// IsHEVCKeyframe reports whether the NAL type is an HEVC random access
// point (BLA, IDR, or CRA).
func IsHEVCKeyframe(nalType byte) bool {
	return nalType >= HEVCNALBlaWLP && nalType <= HEVCNALCraNut
}

// SplitAnnexB parses an H.264 Annex B byte stream into NAL units. Both
// 3-byte (000001) and 4-byte (00000001) start codes are recognized.
func SplitAnnexB(data []byte) []NALUnit {
	return splitAnnexB(data, 1, func(d []byte) byte { return H264NALType(d[0]) })
}

// SplitAnnexBHEVC parses an HEVC Annex B byte stream, using the 2-byte NAL
// header for type extraction.
func SplitAnnexBHEVC(data []byte) []NALUnit {
	return splitAnnexB(data, 2, func(d []byte) byte { return HEVCNALType(d[0]) })
}

func splitAnnexB(data []byte, minNALBytes int, nalType func([]byte) byte) []NALUnit {
	n := len(data)
	if n < 4 {
		return nil
	}

	type scPos struct {
		scStart   int
		dataStart int
	}

	var positions []scPos
	i := 0
	for i < n-2 {
		if data[i] == 0 && data[i+1] == 0 {
			if i < n-3 && data[i+2] == 0 && data[i+3] == 1 {
				positions = append(positions, scPos{scStart: i, dataStart: i + 4})
				i += 4
				continue
			}
			if data[i+2] == 1 {
				positions = append(positions, scPos{scStart: i, dataStart: i + 3})
				i += 3
				continue
			}
		}
		i++
	}

	var units []NALUnit
	for idx, pos := range positions {
		if pos.dataStart >= n {
			continue
		}
		end := n
		if idx+1 < len(positions) {
			end = positions[idx+1].scStart
		}
		if pos.dataStart >= end {
			continue
		}

		nalData := data[pos.dataStart:end]
		if len(nalData) < minNALBytes {
			continue
		}

		units = append(units, NALUnit{Type: nalType(nalData), Data: nalData})
	}

	return units
}
