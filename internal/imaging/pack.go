package imaging

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/zsiec/stillenc/internal/encoder"
)

// Pack converts img into a host frame in the requested buffer format.
// Source pixels are treated as 8-bit; 10-bit formats carry the promoted
// 8-bit values MSB-aligned, which is what an 8-bit still warrants.
func Pack(img image.Image, format encoder.BufferFormat) (*encoder.Frame, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if err := ValidateResolution(w, h); err != nil {
		return nil, err
	}

	rgba := toRGBA(img)
	fr := &encoder.Frame{
		Format: format,
		Width:  w,
		Height: h,
		Data:   make([]byte, format.FrameSize(w, h)),
	}

	switch format {
	case encoder.FormatBGRA:
		packRGB(fr, rgba, 2, 1, 0) // B,G,R,A byte order
	case encoder.FormatABGR:
		packRGB(fr, rgba, 0, 1, 2) // R,G,B,A byte order
	case encoder.FormatBGRA10:
		packRGB10(fr, rgba, false)
	case encoder.FormatABGR10:
		packRGB10(fr, rgba, true)
	case encoder.FormatAYUV:
		packAYUV(fr, rgba)
	case encoder.FormatIYUV:
		y, cb, cr := toYCbCr(rgba)
		packPlanar420(fr, y, cb, cr, false)
	case encoder.FormatYV12:
		y, cb, cr := toYCbCr(rgba)
		packPlanar420(fr, y, cb, cr, true)
	case encoder.FormatNV12:
		y, cb, cr := toYCbCr(rgba)
		packNV12(fr, y, cb, cr)
	case encoder.FormatYUV444:
		y, cb, cr := toYCbCr(rgba)
		packPlanar444(fr, y, cb, cr)
	case encoder.FormatP010:
		y, cb, cr := toYCbCr(rgba)
		packP010(fr, y, cb, cr)
	case encoder.FormatYUV444P16:
		y, cb, cr := toYCbCr(rgba)
		packPlanar444P16(fr, y, cb, cr)
	default:
		return nil, fmt.Errorf("no packer for format %s", format)
	}

	return fr, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// toYCbCr converts to 8-bit BT.601 full-range planes at full resolution.
func toYCbCr(rgba *image.RGBA) (y, cb, cr []uint8) {
	w := rgba.Rect.Dx()
	h := rgba.Rect.Dy()
	y = make([]uint8, w*h)
	cb = make([]uint8, w*h)
	cr = make([]uint8, w*h)
	for row := 0; row < h; row++ {
		src := rgba.Pix[row*rgba.Stride:]
		for col := 0; col < w; col++ {
			px := src[col*4 : col*4+4]
			yy, cbb, crr := color.RGBToYCbCr(px[0], px[1], px[2])
			y[row*w+col] = yy
			cb[row*w+col] = cbb
			cr[row*w+col] = crr
		}
	}
	return y, cb, cr
}

func packRGB(fr *encoder.Frame, rgba *image.RGBA, ri, gi, bi int) {
	w, h := fr.Width, fr.Height
	for row := 0; row < h; row++ {
		src := rgba.Pix[row*rgba.Stride:]
		dst := fr.Data[row*4*w:]
		for col := 0; col < w; col++ {
			r, g, b, a := src[col*4], src[col*4+1], src[col*4+2], src[col*4+3]
			dst[col*4+ri] = r
			dst[col*4+gi] = g
			dst[col*4+bi] = b
			dst[col*4+3] = a
		}
	}
}

// packRGB10 packs A2R10G10B10 (bgra10) or A2B10G10R10 (abgr10) little-endian
// 32-bit words, with 8-bit channels promoted to the 10-bit MSBs.
func packRGB10(fr *encoder.Frame, rgba *image.RGBA, abgr bool) {
	w, h := fr.Width, fr.Height
	for row := 0; row < h; row++ {
		src := rgba.Pix[row*rgba.Stride:]
		dst := fr.Data[row*4*w:]
		for col := 0; col < w; col++ {
			r := uint32(src[col*4]) << 2
			g := uint32(src[col*4+1]) << 2
			b := uint32(src[col*4+2]) << 2
			a := uint32(src[col*4+3]) >> 6
			var word uint32
			if abgr {
				word = a<<30 | b<<20 | g<<10 | r
			} else {
				word = a<<30 | r<<20 | g<<10 | b
			}
			binary.LittleEndian.PutUint32(dst[col*4:], word)
		}
	}
}

// packAYUV stores V,U,Y,A byte order per 32-bit pixel.
func packAYUV(fr *encoder.Frame, rgba *image.RGBA) {
	w, h := fr.Width, fr.Height
	for row := 0; row < h; row++ {
		src := rgba.Pix[row*rgba.Stride:]
		dst := fr.Data[row*4*w:]
		for col := 0; col < w; col++ {
			y, cb, cr := color.RGBToYCbCr(src[col*4], src[col*4+1], src[col*4+2])
			dst[col*4] = cr
			dst[col*4+1] = cb
			dst[col*4+2] = y
			dst[col*4+3] = src[col*4+3]
		}
	}
}

// subsample420 averages each 2x2 chroma block.
func subsample420(plane []uint8, w, h int) []uint8 {
	out := make([]uint8, (w/2)*(h/2))
	for row := 0; row < h/2; row++ {
		for col := 0; col < w/2; col++ {
			sum := int(plane[(2*row)*w+2*col]) +
				int(plane[(2*row)*w+2*col+1]) +
				int(plane[(2*row+1)*w+2*col]) +
				int(plane[(2*row+1)*w+2*col+1])
			out[row*(w/2)+col] = uint8((sum + 2) / 4)
		}
	}
	return out
}

func packPlanar420(fr *encoder.Frame, y, cb, cr []uint8, vFirst bool) {
	copy(fr.PlaneData(0), y)
	u := subsample420(cb, fr.Width, fr.Height)
	v := subsample420(cr, fr.Width, fr.Height)
	if vFirst {
		u, v = v, u
	}
	copy(fr.PlaneData(1), u)
	copy(fr.PlaneData(2), v)
}

func packNV12(fr *encoder.Frame, y, cb, cr []uint8) {
	copy(fr.PlaneData(0), y)
	u := subsample420(cb, fr.Width, fr.Height)
	v := subsample420(cr, fr.Width, fr.Height)
	uv := fr.PlaneData(1)
	for i := range u {
		uv[2*i] = u[i]
		uv[2*i+1] = v[i]
	}
}

func packPlanar444(fr *encoder.Frame, y, cb, cr []uint8) {
	copy(fr.PlaneData(0), y)
	copy(fr.PlaneData(1), cb)
	copy(fr.PlaneData(2), cr)
}

// packP010 stores 16-bit little-endian samples with the 10 significant bits
// MSB-aligned; promoted 8-bit input reduces to sample<<8.
func packP010(fr *encoder.Frame, y, cb, cr []uint8) {
	dst := fr.PlaneData(0)
	for i, s := range y {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(s)<<8)
	}
	u := subsample420(cb, fr.Width, fr.Height)
	v := subsample420(cr, fr.Width, fr.Height)
	uv := fr.PlaneData(1)
	for i := range u {
		binary.LittleEndian.PutUint16(uv[4*i:], uint16(u[i])<<8)
		binary.LittleEndian.PutUint16(uv[4*i+2:], uint16(v[i])<<8)
	}
}

func packPlanar444P16(fr *encoder.Frame, y, cb, cr []uint8) {
	for p, plane := range [][]uint8{y, cb, cr} {
		dst := fr.PlaneData(p)
		for i, s := range plane {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(s)<<8)
		}
	}
}
