package sink

import (
	"bufio"
	"fmt"
	"os"

	"github.com/zsiec/stillenc/internal/encoder"
)

// FileSink appends raw packet data to a file, producing the encoded
// elementary stream. The stream needs external muxing to be playable.
type FileSink struct {
	f     *os.File
	w     *bufio.Writer
	bytes int64
}

// NewFile creates (or truncates) the output file at path.
func NewFile(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &FileSink{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (s *FileSink) WritePacket(p encoder.Packet) error {
	n, err := s.w.Write(p.Data)
	s.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// Bytes returns the number of payload bytes written so far.
func (s *FileSink) Bytes() int64 { return s.bytes }

func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	return s.f.Close()
}
