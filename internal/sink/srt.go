package sink

import (
	"fmt"
	"log/slog"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/stillenc/internal/encoder"
)

// srtPayloadSize is the standard SRT payload: 7 MPEG-TS packets (188 * 7).
// Packets larger than this are sent in consecutive chunks.
const srtPayloadSize = 1316

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

// SRTSink mirrors the encoded stream to a remote SRT listener, chunked to
// the SRT payload size with packet boundaries falling on chunk boundaries.
type SRTSink struct {
	log  *slog.Logger
	conn *srtgo.Conn
}

// DialSRT connects to an SRT listener at addr (host:port) announcing
// streamID. If log is nil, slog.Default() is used.
func DialSRT(addr, streamID string, log *slog.Logger) (*SRTSink, error) {
	if log == nil {
		log = slog.Default()
	}

	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs
	cfg.StreamID = streamID

	conn, err := srtgo.Dial(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("SRT dial %s: %w", addr, err)
	}

	log = log.With("component", "srt-sink")
	log.Info("connected", "addr", addr, "stream_id", streamID)
	return &SRTSink{log: log, conn: conn}, nil
}

func (s *SRTSink) WritePacket(p encoder.Packet) error {
	data := p.Data
	for len(data) > 0 {
		n := len(data)
		if n > srtPayloadSize {
			n = srtPayloadSize
		}
		if _, err := s.conn.Write(data[:n]); err != nil {
			return fmt.Errorf("SRT write: %w", err)
		}
		data = data[n:]
	}
	return nil
}

func (s *SRTSink) Close() error {
	return s.conn.Close()
}
