// Package nvenc drives the NVENC hardware encoder through a CUDA device:
// it owns the encode session, a ring of device-resident input slots, and
// the bitstream retrieval path. The real implementation requires the nvenc
// build tag plus the NVENC SDK headers and libnvidia-encode; without the
// tag New reports encoder.ErrNotBuilt.
package nvenc

import "github.com/zsiec/stillenc/internal/encoder"

// Device input slots are single pitched allocations holding all planes of
// one frame. The helpers below describe where each plane lives, following
// the layouts the encoder expects for registered CUDA device pointers.

// lumaRowBytes is the width in bytes of the first (or only) plane.
func lumaRowBytes(f encoder.BufferFormat, w int) int {
	return f.Planes(w, 2)[0].WidthBytes
}

// allocRows is the total allocation height, in rows of the luma pitch.
func allocRows(f encoder.BufferFormat, h int) int {
	switch f {
	case encoder.FormatIYUV, encoder.FormatYV12, encoder.FormatNV12, encoder.FormatP010:
		return h + h/2
	case encoder.FormatYUV444, encoder.FormatYUV444P16:
		return 3 * h
	default: // packed
		return h
	}
}

// chromaPitch is the device row stride of the chroma planes given the
// luma pitch the driver chose.
func chromaPitch(f encoder.BufferFormat, lumaPitch int) int {
	switch f {
	case encoder.FormatIYUV, encoder.FormatYV12:
		return lumaPitch / 2
	default:
		return lumaPitch
	}
}

// chromaOffsets returns the byte offsets of each chroma plane within the
// slot allocation.
func chromaOffsets(f encoder.BufferFormat, lumaPitch, h int) []int {
	switch f {
	case encoder.FormatIYUV, encoder.FormatYV12:
		return []int{lumaPitch * h, lumaPitch*h + (lumaPitch/2)*(h/2)}
	case encoder.FormatNV12, encoder.FormatP010:
		return []int{lumaPitch * h}
	case encoder.FormatYUV444, encoder.FormatYUV444P16:
		return []int{lumaPitch * h, 2 * lumaPitch * h}
	default:
		return nil
	}
}
