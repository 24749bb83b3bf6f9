package sink

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/zsiec/stillenc/internal/encoder"
)

func TestFileSink(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.h264")

	s, err := NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	pkts := [][]byte{
		{0x00, 0x00, 0x00, 0x01, 0x67},
		{0x00, 0x00, 0x00, 0x01, 0x65, 0xAA, 0xBB},
	}
	for _, d := range pkts {
		if err := s.WritePacket(encoder.Packet{Data: d}); err != nil {
			t.Fatal(err)
		}
	}
	if s.Bytes() != 12 {
		t.Errorf("Bytes = %d, want 12", s.Bytes())
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, pkts[0]...), pkts[1]...)
	if string(got) != string(want) {
		t.Errorf("file contents = % X, want % X", got, want)
	}
}

func TestCRCSidecar(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "out.h264")

	s, err := NewCRCSidecar(out)
	if err != nil {
		t.Fatal(err)
	}
	data := []byte{0x01, 0x02, 0x03}
	if err := s.WritePacket(encoder.Packet{Data: data}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(SidecarPath(out))
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%08X\n", crc32.ChecksumIEEE(data))
	if string(got) != want {
		t.Errorf("sidecar = %q, want %q", got, want)
	}
}

// orderSink records the order in which packets arrive.
type orderSink struct {
	id     byte
	trace  *[]byte
	closed bool
}

func (o *orderSink) WritePacket(p encoder.Packet) error {
	*o.trace = append(*o.trace, o.id)
	return nil
}

func (o *orderSink) Close() error {
	o.closed = true
	return nil
}

func TestMultiOrderAndClose(t *testing.T) {
	t.Parallel()
	var trace []byte
	a := &orderSink{id: 'a', trace: &trace}
	b := &orderSink{id: 'b', trace: &trace}
	m := Multi(a, b)

	for i := 0; i < 2; i++ {
		if err := m.WritePacket(encoder.Packet{Data: []byte{1}}); err != nil {
			t.Fatal(err)
		}
	}
	if string(trace) != "abab" {
		t.Errorf("write order = %q, want abab", trace)
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if !a.closed || !b.closed {
		t.Error("Multi.Close did not close all members")
	}
}
