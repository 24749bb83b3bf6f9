package bitstream

import (
	"testing"

	"github.com/zsiec/stillenc/internal/encoder"
)

// bitWriter builds parameter set fixtures bit by bit.
type bitWriter struct {
	data []byte
	bit  int
}

func (bw *bitWriter) writeBit(b uint) {
	if bw.bit == 0 {
		bw.data = append(bw.data, 0)
	}
	if b != 0 {
		bw.data[len(bw.data)-1] |= 1 << (7 - bw.bit)
	}
	bw.bit = (bw.bit + 1) % 8
}

func (bw *bitWriter) writeBits(v uint, n int) {
	for i := n - 1; i >= 0; i-- {
		bw.writeBit((v >> uint(i)) & 1)
	}
}

// writeUE emits an Exp-Golomb unsigned value.
func (bw *bitWriter) writeUE(v uint) {
	code := v + 1
	n := 0
	for tmp := code; tmp > 1; tmp >>= 1 {
		n++
	}
	for i := 0; i < n; i++ {
		bw.writeBit(0)
	}
	bw.writeBits(code, n+1)
}

func (bw *bitWriter) stopBit() {
	bw.writeBit(1)
	for bw.bit != 0 {
		bw.writeBit(0)
	}
}

// buildSPS1080p returns a baseline-profile 1920x1080 H.264 SPS including
// the NAL header byte.
func buildSPS1080p() []byte {
	bw := &bitWriter{}
	bw.writeBits(66, 8)   // profile_idc: baseline
	bw.writeBits(0xC0, 8) // constraint flags
	bw.writeBits(30, 8)   // level_idc: 3.0
	bw.writeUE(0)         // seq_parameter_set_id
	bw.writeUE(0)         // log2_max_frame_num_minus4
	bw.writeUE(0)         // pic_order_cnt_type
	bw.writeUE(0)         // log2_max_pic_order_cnt_lsb_minus4
	bw.writeUE(1)         // max_num_ref_frames
	bw.writeBit(0)        // gaps_in_frame_num_value_allowed_flag
	bw.writeUE(119)       // pic_width_in_mbs_minus1: 1920
	bw.writeUE(67)        // pic_height_in_map_units_minus1: 1088
	bw.writeBit(1)        // frame_mbs_only_flag
	bw.writeBit(1)        // direct_8x8_inference_flag
	bw.writeBit(1)        // frame_cropping_flag
	bw.writeUE(0)         // crop left
	bw.writeUE(0)         // crop right
	bw.writeUE(0)         // crop top
	bw.writeUE(4)         // crop bottom: 1088 -> 1080
	bw.writeBit(0)        // vui_parameters_present_flag
	bw.stopBit()
	return append([]byte{0x67}, bw.data...)
}

// buildHEVCSPS720p returns a main-profile 1280x720 HEVC SPS including the
// 2-byte NAL header.
func buildHEVCSPS720p() []byte {
	bw := &bitWriter{}
	bw.writeBits(0, 4) // sps_video_parameter_set_id
	bw.writeBits(0, 3) // sps_max_sub_layers_minus1
	bw.writeBit(1)     // sps_temporal_id_nesting_flag

	// profile_tier_level
	bw.writeBits(0, 2)           // general_profile_space
	bw.writeBit(0)               // general_tier_flag
	bw.writeBits(1, 5)           // general_profile_idc: Main
	bw.writeBits(0x60000000, 32) // profile compatibility flags
	bw.writeBits(0x90, 8)        // constraint flags byte 0
	bw.writeBits(0, 16)
	bw.writeBits(0, 24) // constraint flags bytes 1-5
	bw.writeBits(93, 8) // general_level_idc: 3.1

	bw.writeUE(0)    // sps_seq_parameter_set_id
	bw.writeUE(1)    // chroma_format_idc: 4:2:0
	bw.writeUE(1280) // pic_width_in_luma_samples
	bw.writeUE(720)  // pic_height_in_luma_samples
	bw.writeBit(0)   // conformance_window_flag
	bw.stopBit()
	// NAL header: type 33 (SPS), layer 0, tid 1
	return append([]byte{33 << 1, 0x01}, bw.data...)
}

func annexB(units ...[]byte) []byte {
	var out []byte
	for _, u := range units {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, u...)
	}
	return out
}

func TestSplitAnnexB(t *testing.T) {
	t.Parallel()
	data := annexB(
		[]byte{0x67, 0x42, 0xE0, 0x1E},
		[]byte{0x68, 0xCE, 0x38, 0x80},
		[]byte{0x65, 0x88, 0x84, 0x00, 0xFF},
	)

	units := SplitAnnexB(data)
	if len(units) != 3 {
		t.Fatalf("got %d NAL units, want 3", len(units))
	}
	if units[0].Type != NALTypeSPS || units[1].Type != NALTypePPS || units[2].Type != NALTypeIDR {
		t.Errorf("types = %d %d %d, want 7 8 5", units[0].Type, units[1].Type, units[2].Type)
	}
	if !IsH264Keyframe(units[2].Type) {
		t.Error("IsH264Keyframe(IDR) = false")
	}
}

func TestSplitAnnexB3ByteStartCode(t *testing.T) {
	t.Parallel()
	data := []byte{
		0x00, 0x00, 0x01, 0x67, 0x42, 0xE0,
		0x00, 0x00, 0x01, 0x65, 0x88, 0x84,
	}
	units := SplitAnnexB(data)
	if len(units) != 2 {
		t.Fatalf("got %d NAL units, want 2", len(units))
	}
	if units[0].Type != NALTypeSPS || units[1].Type != NALTypeIDR {
		t.Errorf("types = %d %d, want 7 5", units[0].Type, units[1].Type)
	}
}

func TestSplitAnnexBEmpty(t *testing.T) {
	t.Parallel()
	if units := SplitAnnexB(nil); units != nil {
		t.Errorf("nil input: got %d units", len(units))
	}
	if units := SplitAnnexB([]byte{0x00, 0x01}); units != nil {
		t.Errorf("short input: got %d units", len(units))
	}
}

func TestParseSPS(t *testing.T) {
	t.Parallel()
	info, err := ParseSPS(buildSPS1080p())
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if got := info.CodecString(); got != "avc1.42C01E" {
		t.Errorf("CodecString = %q, want avc1.42C01E", got)
	}

	if _, err := ParseSPS([]byte{0x67, 0x42}); err == nil {
		t.Error("expected error for truncated SPS")
	}
}

func TestParseHEVCSPS(t *testing.T) {
	t.Parallel()
	info, err := ParseHEVCSPS(buildHEVCSPS720p())
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("resolution = %dx%d, want 1280x720", info.Width, info.Height)
	}
	if got := info.CodecString(); got != "hev1.1.6.L93.90" {
		t.Errorf("CodecString = %q, want hev1.1.6.L93.90", got)
	}
}

func TestHEVCNALType(t *testing.T) {
	t.Parallel()
	if got := HEVCNALType(33 << 1); got != HEVCNALSPS {
		t.Errorf("HEVCNALType = %d, want %d", got, HEVCNALSPS)
	}
	if !IsHEVCKeyframe(19) || IsHEVCKeyframe(1) {
		t.Error("IsHEVCKeyframe misclassifies")
	}
}

func TestInspector(t *testing.T) {
	t.Parallel()
	in := NewInspector(encoder.CodecH264)

	first := annexB(
		buildSPS1080p(),
		[]byte{0x68, 0xCE, 0x38, 0x80},
		[]byte{0x65, 0x88, 0x84, 0x00},
	)
	second := annexB([]byte{0x41, 0x9A, 0x00}) // non-IDR slice

	if err := in.WritePacket(encoder.Packet{Data: first, Keyframe: true}); err != nil {
		t.Fatal(err)
	}
	if err := in.WritePacket(encoder.Packet{Data: second}); err != nil {
		t.Fatal(err)
	}

	sum := in.Summary()
	if sum.Packets != 2 {
		t.Errorf("Packets = %d, want 2", sum.Packets)
	}
	if sum.Bytes != int64(len(first)+len(second)) {
		t.Errorf("Bytes = %d, want %d", sum.Bytes, len(first)+len(second))
	}
	if sum.Keyframes != 1 {
		t.Errorf("Keyframes = %d, want 1", sum.Keyframes)
	}
	if sum.Codec != "avc1.42C01E" || sum.Width != 1920 || sum.Height != 1080 {
		t.Errorf("summary = %q %dx%d", sum.Codec, sum.Width, sum.Height)
	}
}

func TestInspectorMultiSliceKeyframe(t *testing.T) {
	t.Parallel()
	in := NewInspector(encoder.CodecH264)

	// One IDR frame coded as two slices is still a single keyframe.
	pkt := annexB(
		buildSPS1080p(),
		[]byte{0x68, 0xCE, 0x38, 0x80},
		[]byte{0x65, 0x88, 0x84, 0x00},
		[]byte{0x65, 0x88, 0x94, 0x00},
	)
	if err := in.WritePacket(encoder.Packet{Data: pkt}); err != nil {
		t.Fatal(err)
	}
	if got := in.Summary().Keyframes; got != 1 {
		t.Errorf("Keyframes = %d, want 1", got)
	}
}
