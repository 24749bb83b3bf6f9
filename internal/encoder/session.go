// Package encoder defines the portable types shared between the hardware
// encoder session, the encode pipeline, and the sinks: buffer formats,
// host frames, encoded packets, tuning configuration, and the Session
// interface the pipeline drives.
package encoder

import "errors"

// ErrNotBuilt is returned by hardware entry points when the binary was
// compiled without the nvenc build tag.
var ErrNotBuilt = errors.New("built without nvenc support (rebuild with -tags nvenc)")

// ErrSessionClosed is returned by Session methods after Close.
var ErrSessionClosed = errors.New("encoder session is closed")

// Packet is one unit of encoded bitstream output. The encoder may emit
// zero or more packets per submitted frame due to internal reordering and
// lookahead latency; emission order is semantically meaningful and must be
// preserved by everything downstream.
type Packet struct {
	Data []byte
	// PictureIndex is the encoder's display-order index for the frame this
	// packet encodes.
	PictureIndex uint32
	Keyframe     bool
}

// Session is a stateful handle into a hardware video encoder. Submissions
// are synchronous; a Session is not safe for concurrent use.
type Session interface {
	// Encode copies src into the next device-resident input slot, submits
	// it to the encoder, and returns any packets emitted. A nil packet
	// slice is a normal outcome while the encoder fills its pipeline.
	Encode(src *Frame) ([]Packet, error)

	// Flush signals end of stream and drains packets still buffered inside
	// the encoder pipeline. No further Encode calls are valid afterwards.
	Flush() ([]Packet, error)

	// Close releases device buffers and destroys the encoder session.
	Close() error
}
