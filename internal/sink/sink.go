// Package sink provides packet destinations for the encode pipeline: the
// output file, the CRC sidecar, an optional SRT mirror, and an ordered
// fan-out combining them. Every sink preserves packet emission order.
package sink

import (
	"errors"

	"github.com/zsiec/stillenc/internal/encoder"
)

// Sink consumes encoded packets in emission order.
type Sink interface {
	WritePacket(p encoder.Packet) error
	Close() error
}

// multi fans packets out to several sinks, each receiving every packet in
// emission order. A write error stops the chain.
type multi struct {
	sinks []Sink
}

// Multi combines sinks into one. Close closes every member even if some
// fail, returning the joined errors.
func Multi(sinks ...Sink) Sink {
	return &multi{sinks: sinks}
}

func (m *multi) WritePacket(p encoder.Packet) error {
	for _, s := range m.sinks {
		if err := s.WritePacket(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
