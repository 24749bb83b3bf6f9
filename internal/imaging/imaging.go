// Package imaging loads the source still image and packs it into the
// encoder input buffer format requested on the command line. All work here
// is host-side; the session copies the packed planes into device memory.
package imaging

import (
	"fmt"
	"image"
	"os"

	// Register the stdlib decoders the demo accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Minimum coded picture size accepted by the hardware encoder.
const (
	minWidth  = 145
	minHeight = 49
)

// Load decodes the image file at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// ValidateResolution rejects dimensions the encoder cannot accept: below
// the hardware minimum, or odd (4:2:0 chroma planes need even sizes).
func ValidateResolution(w, h int) error {
	if w < minWidth || h < minHeight {
		return fmt.Errorf("resolution %dx%d below encoder minimum %dx%d", w, h, minWidth, minHeight)
	}
	if w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("resolution %dx%d must have even dimensions", w, h)
	}
	return nil
}

// CheckOverride verifies a -s WxH override against the decoded image size.
// The decoded size is authoritative; a mismatching override is an argument
// error rather than a silent ignore.
func CheckOverride(imgW, imgH, overrideW, overrideH int) error {
	if overrideW == 0 && overrideH == 0 {
		return nil
	}
	if overrideW != imgW || overrideH != imgH {
		return fmt.Errorf("-s %dx%d does not match decoded image size %dx%d",
			overrideW, overrideH, imgW, imgH)
	}
	return nil
}
