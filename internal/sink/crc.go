package sink

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/zsiec/stillenc/internal/encoder"
)

// CRCSidecar writes one CRC-32 (IEEE) per packet, as eight uppercase hex
// digits per line, to the "<output>_crc.txt" companion file used to verify
// device-memory output runs.
type CRCSidecar struct {
	f *os.File
	w *bufio.Writer
}

// SidecarPath derives the sidecar file name from the output path.
func SidecarPath(outputPath string) string {
	return outputPath + "_crc.txt"
}

// NewCRCSidecar creates (or truncates) the sidecar next to outputPath.
func NewCRCSidecar(outputPath string) (*CRCSidecar, error) {
	f, err := os.Create(SidecarPath(outputPath))
	if err != nil {
		return nil, fmt.Errorf("open crc sidecar: %w", err)
	}
	return &CRCSidecar{f: f, w: bufio.NewWriter(f)}, nil
}

func (s *CRCSidecar) WritePacket(p encoder.Packet) error {
	if _, err := fmt.Fprintf(s.w, "%08X\n", crc32.ChecksumIEEE(p.Data)); err != nil {
		return fmt.Errorf("write crc sidecar: %w", err)
	}
	return nil
}

func (s *CRCSidecar) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flush crc sidecar: %w", err)
	}
	return s.f.Close()
}
