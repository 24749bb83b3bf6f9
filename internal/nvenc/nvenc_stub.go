//go:build !nvenc

package nvenc

import (
	"log/slog"

	"github.com/zsiec/stillenc/internal/cuda"
	"github.com/zsiec/stillenc/internal/encoder"
)

// Session is the hardware encoder session. This build has no encoder
// support.
type Session struct{}

// New reports that this binary has no encoder support.
func New(ctx *cuda.Context, width, height int, format encoder.BufferFormat,
	cfg encoder.Config, outputInVidMem bool, log *slog.Logger) (*Session, error) {
	return nil, encoder.ErrNotBuilt
}

// Encode reports that this binary has no encoder support.
func (s *Session) Encode(src *encoder.Frame) ([]encoder.Packet, error) {
	return nil, encoder.ErrNotBuilt
}

// Flush reports that this binary has no encoder support.
func (s *Session) Flush() ([]encoder.Packet, error) { return nil, encoder.ErrNotBuilt }

// Close reports that this binary has no encoder support.
func (s *Session) Close() error { return encoder.ErrNotBuilt }

// QueryCaps reports that this binary has no encoder support.
func QueryCaps(ordinal int) (encoder.DeviceCaps, error) {
	return encoder.DeviceCaps{}, encoder.ErrNotBuilt
}
