// Package pipeline drives the encode loop: it submits the prepared host
// frame to the encoder session a fixed number of times, then flushes the
// session and forwards every emitted packet downstream in emission order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zsiec/stillenc/internal/encoder"
)

// PacketWriter is the subset of the sink chain the pipeline writes to.
// Accepting an interface here decouples the loop from concrete sinks,
// making it testable with stubs.
type PacketWriter interface {
	WritePacket(p encoder.Packet) error
}

// Stats summarizes one encode run.
type Stats struct {
	FramesSubmitted int
	Packets         int
	TailPackets     int // packets drained by the flush phase
	Keyframes       int // packets the session flagged as keyframes
	Bytes           int64
}

// Pipeline owns one run of the encode loop. It is single-use: construct,
// Run once, discard.
type Pipeline struct {
	log    *slog.Logger
	sess   encoder.Session
	src    *encoder.Frame
	frames int
	out    PacketWriter
}

// New creates a pipeline that submits src to sess frames times and writes
// all emitted packets to out. If log is nil, slog.Default() is used.
func New(sess encoder.Session, src *encoder.Frame, frames int, out PacketWriter, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:    log.With("component", "pipeline"),
		sess:   sess,
		src:    src,
		frames: frames,
		out:    out,
	}
}

// Run executes the submit loop and the flush phase. Packet order out of
// the session is preserved exactly on the way to the writer; encoded
// bitstream ordering is meaningful to downstream decoders. A cancelled
// context stops the loop between submissions and skips the flush.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if p.frames < 0 {
		return stats, fmt.Errorf("frame count must be non-negative, got %d", p.frames)
	}
	if err := p.src.Validate(); err != nil {
		return stats, err
	}

	for i := 0; i < p.frames; i++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("encode interrupted after %d frames: %w", i, err)
		}

		pkts, err := p.sess.Encode(p.src)
		if err != nil {
			return stats, fmt.Errorf("encode frame %d: %w", i, err)
		}
		stats.FramesSubmitted++

		if err := p.write(pkts, &stats); err != nil {
			return stats, err
		}

		if (i+1)%100 == 0 {
			p.log.Debug("progress", "submitted", i+1, "packets", stats.Packets)
		}
	}

	pkts, err := p.sess.Flush()
	if err != nil {
		return stats, fmt.Errorf("flush: %w", err)
	}
	stats.TailPackets = len(pkts)
	if err := p.write(pkts, &stats); err != nil {
		return stats, err
	}

	p.log.Info("encode complete",
		"frames", stats.FramesSubmitted,
		"packets", stats.Packets,
		"tail_packets", stats.TailPackets,
		"keyframes", stats.Keyframes,
		"bytes", stats.Bytes,
	)
	return stats, nil
}

func (p *Pipeline) write(pkts []encoder.Packet, stats *Stats) error {
	for _, pkt := range pkts {
		if err := p.out.WritePacket(pkt); err != nil {
			return fmt.Errorf("write packet %d (picture %d): %w", stats.Packets, pkt.PictureIndex, err)
		}
		stats.Packets++
		if pkt.Keyframe {
			stats.Keyframes++
		}
		stats.Bytes += int64(len(pkt.Data))
	}
	return nil
}
