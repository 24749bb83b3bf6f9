package encoder

import "fmt"

// BufferFormat identifies the pixel layout of encoder input buffers. The
// names mirror the hardware encoder's buffer format enumeration; Parse
// accepts the lowercase CLI spellings.
type BufferFormat int

const (
	FormatIYUV      BufferFormat = iota // planar YUV 4:2:0, 8-bit (I420)
	FormatNV12                          // semi-planar YUV 4:2:0, 8-bit, interleaved UV
	FormatYV12                          // planar YUV 4:2:0, 8-bit, V before U
	FormatYUV444                        // planar YUV 4:4:4, 8-bit
	FormatP010                          // semi-planar YUV 4:2:0, 10-bit in 16, MSB-aligned
	FormatYUV444P16                     // planar YUV 4:4:4, 10-bit in 16, MSB-aligned
	FormatBGRA                          // packed 8-bit B,G,R,A byte order
	FormatBGRA10                        // packed 10-bit BGR, 2-bit alpha, 32-bit words
	FormatAYUV                          // packed 8-bit V,U,Y,A byte order
	FormatABGR                          // packed 8-bit R,G,B,A byte order
	FormatABGR10                        // packed 10-bit RGB, 2-bit alpha, 32-bit words
)

var formatNames = map[BufferFormat]string{
	FormatIYUV:      "iyuv",
	FormatNV12:      "nv12",
	FormatYV12:      "yv12",
	FormatYUV444:    "yuv444",
	FormatP010:      "p010",
	FormatYUV444P16: "yuv444p16",
	FormatBGRA:      "bgra",
	FormatBGRA10:    "bgra10",
	FormatAYUV:      "ayuv",
	FormatABGR:      "abgr",
	FormatABGR10:    "abgr10",
}

// ParseBufferFormat maps a CLI format name to its BufferFormat.
func ParseBufferFormat(name string) (BufferFormat, error) {
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown input format %q", name)
}

func (f BufferFormat) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("BufferFormat(%d)", int(f))
}

// Packed reports whether the format stores all channels interleaved in a
// single plane of 32-bit pixels.
func (f BufferFormat) Packed() bool {
	switch f {
	case FormatBGRA, FormatBGRA10, FormatAYUV, FormatABGR, FormatABGR10:
		return true
	}
	return false
}

// TenBit reports whether samples carry more than 8 significant bits.
func (f BufferFormat) TenBit() bool {
	switch f {
	case FormatP010, FormatYUV444P16, FormatBGRA10, FormatABGR10:
		return true
	}
	return false
}

// Plane describes one plane of a host-packed frame: its row width in bytes
// and its number of rows. Host frames are packed with no row padding, so a
// plane occupies exactly WidthBytes*Height bytes.
type Plane struct {
	WidthBytes int
	Height     int
}

// Planes returns the plane layout for a frame of the given dimensions,
// in the order the planes appear in the host buffer.
func (f BufferFormat) Planes(w, h int) []Plane {
	switch f {
	case FormatIYUV, FormatYV12:
		return []Plane{{w, h}, {w / 2, h / 2}, {w / 2, h / 2}}
	case FormatNV12:
		return []Plane{{w, h}, {w, h / 2}}
	case FormatYUV444:
		return []Plane{{w, h}, {w, h}, {w, h}}
	case FormatP010:
		return []Plane{{2 * w, h}, {2 * w, h / 2}}
	case FormatYUV444P16:
		return []Plane{{2 * w, h}, {2 * w, h}, {2 * w, h}}
	default: // packed 32-bit
		return []Plane{{4 * w, h}}
	}
}

// FrameSize returns the total host buffer size in bytes for a frame of the
// given dimensions.
func (f BufferFormat) FrameSize(w, h int) int {
	total := 0
	for _, p := range f.Planes(w, h) {
		total += p.WidthBytes * p.Height
	}
	return total
}
