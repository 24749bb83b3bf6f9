package encoder

import "testing"

func TestParseBufferFormat(t *testing.T) {
	t.Parallel()
	for name := range map[string]bool{
		"iyuv": true, "nv12": true, "yv12": true, "yuv444": true, "p010": true,
		"yuv444p16": true, "bgra": true, "bgra10": true, "ayuv": true,
		"abgr": true, "abgr10": true,
	} {
		f, err := ParseBufferFormat(name)
		if err != nil {
			t.Fatalf("ParseBufferFormat(%q): %v", name, err)
		}
		if f.String() != name {
			t.Errorf("round trip %q = %q", name, f.String())
		}
	}

	if _, err := ParseBufferFormat("rgb24"); err == nil {
		t.Error("expected error for unknown format name")
	}
}

func TestFrameSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		format BufferFormat
		w, h   int
		want   int
	}{
		{FormatIYUV, 1920, 1080, 1920 * 1080 * 3 / 2},
		{FormatYV12, 640, 480, 640 * 480 * 3 / 2},
		{FormatNV12, 1280, 720, 1280 * 720 * 3 / 2},
		{FormatYUV444, 640, 480, 640 * 480 * 3},
		{FormatP010, 1280, 720, 1280 * 720 * 3},
		{FormatYUV444P16, 640, 480, 640 * 480 * 6},
		{FormatBGRA, 1920, 1080, 1920 * 1080 * 4},
		{FormatABGR, 640, 480, 640 * 480 * 4},
		{FormatABGR10, 640, 480, 640 * 480 * 4},
		{FormatAYUV, 640, 480, 640 * 480 * 4},
	}
	for _, tc := range cases {
		if got := tc.format.FrameSize(tc.w, tc.h); got != tc.want {
			t.Errorf("%s %dx%d: FrameSize = %d, want %d", tc.format, tc.w, tc.h, got, tc.want)
		}
	}
}

func TestPlaneLayout(t *testing.T) {
	t.Parallel()

	planes := FormatNV12.Planes(1280, 720)
	if len(planes) != 2 {
		t.Fatalf("NV12 planes = %d, want 2", len(planes))
	}
	if planes[1].WidthBytes != 1280 || planes[1].Height != 360 {
		t.Errorf("NV12 chroma plane = %dx%d, want 1280x360", planes[1].WidthBytes, planes[1].Height)
	}

	planes = FormatIYUV.Planes(640, 480)
	if len(planes) != 3 {
		t.Fatalf("IYUV planes = %d, want 3", len(planes))
	}
	if planes[1].WidthBytes != 320 || planes[1].Height != 240 {
		t.Errorf("IYUV chroma plane = %dx%d, want 320x240", planes[1].WidthBytes, planes[1].Height)
	}

	planes = FormatBGRA.Planes(100, 50)
	if len(planes) != 1 || planes[0].WidthBytes != 400 {
		t.Errorf("BGRA planes = %+v, want single 400-byte-wide plane", planes)
	}
}

func TestFramePlaneData(t *testing.T) {
	t.Parallel()
	fr := &Frame{Format: FormatIYUV, Width: 4, Height: 4}
	fr.Data = make([]byte, FormatIYUV.FrameSize(4, 4))
	for i := range fr.Data {
		fr.Data[i] = byte(i)
	}
	if err := fr.Validate(); err != nil {
		t.Fatal(err)
	}

	y := fr.PlaneData(0)
	if len(y) != 16 || y[0] != 0 {
		t.Errorf("Y plane len=%d first=%d", len(y), y[0])
	}
	u := fr.PlaneData(1)
	if len(u) != 4 || u[0] != 16 {
		t.Errorf("U plane len=%d first=%d, want 4 and 16", len(u), u[0])
	}
	v := fr.PlaneData(2)
	if len(v) != 4 || v[0] != 20 {
		t.Errorf("V plane len=%d first=%d, want 4 and 20", len(v), v[0])
	}

	fr.Data = fr.Data[:10]
	if err := fr.Validate(); err == nil {
		t.Error("expected Validate to reject short buffer")
	}
}

func TestTenBit(t *testing.T) {
	t.Parallel()
	for _, f := range []BufferFormat{FormatP010, FormatYUV444P16, FormatBGRA10, FormatABGR10} {
		if !f.TenBit() {
			t.Errorf("%s: TenBit = false", f)
		}
	}
	for _, f := range []BufferFormat{FormatIYUV, FormatNV12, FormatBGRA, FormatAYUV} {
		if f.TenBit() {
			t.Errorf("%s: TenBit = true", f)
		}
	}
}
