package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zsiec/stillenc/internal/encoder"
)

// fakeSession models the hardware encoder's output latency: the first
// `delay` submissions return no packets, and the held frames drain at
// flush time.
type fakeSession struct {
	delay     int
	submitted int
	emitted   int
	closed    bool
	encodeErr error
}

func (s *fakeSession) packet() encoder.Packet {
	p := encoder.Packet{
		Data:         []byte{0x00, 0x00, 0x00, 0x01, 0x65, byte(s.emitted)},
		PictureIndex: uint32(s.emitted),
		Keyframe:     s.emitted == 0,
	}
	s.emitted++
	return p
}

func (s *fakeSession) Encode(src *encoder.Frame) ([]encoder.Packet, error) {
	if s.encodeErr != nil {
		return nil, s.encodeErr
	}
	s.submitted++
	if s.submitted <= s.delay {
		return nil, nil
	}
	return []encoder.Packet{s.packet()}, nil
}

func (s *fakeSession) Flush() ([]encoder.Packet, error) {
	var pkts []encoder.Packet
	for s.emitted < s.submitted {
		pkts = append(pkts, s.packet())
	}
	return pkts, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// collector records packets in arrival order.
type collector struct {
	packets []encoder.Packet
	failAt  int // fail on the Nth write when > 0
}

func (c *collector) WritePacket(p encoder.Packet) error {
	if c.failAt > 0 && len(c.packets)+1 == c.failAt {
		return errors.New("disk full")
	}
	c.packets = append(c.packets, p)
	return nil
}

func testFrame() *encoder.Frame {
	return &encoder.Frame{
		Format: encoder.FormatNV12,
		Width:  160,
		Height: 64,
		Data:   make([]byte, encoder.FormatNV12.FrameSize(160, 64)),
	}
}

func TestRunPreservesEmissionOrder(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{delay: 3}
	out := &collector{}

	stats, err := New(sess, testFrame(), 10, out, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.FramesSubmitted != 10 {
		t.Errorf("FramesSubmitted = %d, want 10", stats.FramesSubmitted)
	}
	// Total packets = frames submitted + drained tail packets.
	if stats.Packets != 10 {
		t.Errorf("Packets = %d, want 10", stats.Packets)
	}
	if stats.TailPackets != 3 {
		t.Errorf("TailPackets = %d, want 3", stats.TailPackets)
	}
	if stats.Keyframes != 1 {
		t.Errorf("Keyframes = %d, want 1 (only the first packet is flagged)", stats.Keyframes)
	}
	if len(out.packets) != 10 {
		t.Fatalf("collected %d packets, want 10", len(out.packets))
	}
	for i, p := range out.packets {
		if p.PictureIndex != uint32(i) {
			t.Fatalf("packet %d has picture index %d: emission order not preserved", i, p.PictureIndex)
		}
	}
}

func TestRunZeroLatencySession(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{}
	out := &collector{}

	stats, err := New(sess, testFrame(), 5, out, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Packets != 5 || stats.TailPackets != 0 {
		t.Errorf("packets/tail = %d/%d, want 5/0", stats.Packets, stats.TailPackets)
	}
}

func TestRunZeroFrames(t *testing.T) {
	t.Parallel()
	// Even with nothing submitted the flush phase still runs.
	sess := &fakeSession{}
	out := &collector{}

	stats, err := New(sess, testFrame(), 0, out, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Packets != 0 || stats.FramesSubmitted != 0 {
		t.Errorf("stats = %+v, want all zero", stats)
	}
}

func TestRunEncodeError(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("device lost")
	sess := &fakeSession{encodeErr: wantErr}

	_, err := New(sess, testFrame(), 3, &collector{}, nil).Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestRunWriteError(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{}
	out := &collector{failAt: 3}

	_, err := New(sess, testFrame(), 5, out, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected write error")
	}
	// The error names the picture that failed to write.
	if !strings.Contains(err.Error(), "picture 2") {
		t.Errorf("err = %v, want the failed picture index", err)
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess := &fakeSession{}
	stats, err := New(sess, testFrame(), 100, &collector{}, nil).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if stats.FramesSubmitted != 0 {
		t.Errorf("FramesSubmitted = %d after immediate cancel", stats.FramesSubmitted)
	}
}

func TestRunRejectsBadFrame(t *testing.T) {
	t.Parallel()
	fr := testFrame()
	fr.Data = fr.Data[:1]

	_, err := New(&fakeSession{}, fr, 1, &collector{}, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected frame validation error")
	}
}
