package encoder

import "fmt"

// Frame is a host-memory pixel buffer packed in a specific encoder input
// format. Planes are stored back to back with no row padding; the session
// re-pitches rows when copying into device input slots.
type Frame struct {
	Format BufferFormat
	Width  int
	Height int
	Data   []byte
}

// PlaneData returns the byte slice backing plane i.
func (fr *Frame) PlaneData(i int) []byte {
	planes := fr.Format.Planes(fr.Width, fr.Height)
	off := 0
	for j := 0; j < i; j++ {
		off += planes[j].WidthBytes * planes[j].Height
	}
	p := planes[i]
	return fr.Data[off : off+p.WidthBytes*p.Height]
}

// Validate checks that the buffer length matches the format geometry.
func (fr *Frame) Validate() error {
	want := fr.Format.FrameSize(fr.Width, fr.Height)
	if len(fr.Data) != want {
		return fmt.Errorf("frame buffer is %d bytes, %s %dx%d needs %d",
			len(fr.Data), fr.Format, fr.Width, fr.Height, want)
	}
	return nil
}
