package wire

import (
	"bytes"
	"testing"
)

func buildIDRequest(buf []byte, id BoardID) []byte {
	w := NewWriter(buf)
	w.Prepare(ProtocolConnection, uint16(ConnectionIDAssignment))
	w.WriteUint8(uint8(id))
	return w.Finish()
}

func TestWriterReaderRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	encoded := buildIDRequest(buf, 0)

	f, err := ParseFrame(encoded)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if f.Header.ProtocolType != ProtocolConnection {
		t.Errorf("ProtocolType = %v, want Connection", f.Header.ProtocolType)
	}
	if f.Header.Command != uint16(ConnectionIDAssignment) {
		t.Errorf("Command = %v, want IDAssignment", f.Header.Command)
	}
	if !bytes.Equal(f.Payload(), []byte{0}) {
		t.Errorf("Payload = %v, want [0]", f.Payload())
	}
	if len(f.Footprints()) != 0 {
		t.Errorf("Footprints = %v, want empty", f.Footprints())
	}
	if f.TotalSize() != HeaderSize+1 {
		t.Errorf("TotalSize = %d, want %d", f.TotalSize(), HeaderSize+1)
	}
}

func TestPopFrontStackRemovesFirstPushedFootprint(t *testing.T) {
	buf := make([]byte, 64)
	w := NewWriter(buf)
	w.Prepare(ProtocolConnection, uint16(ConnectionIDAssignment))
	w.WriteUint8(0)
	if err := w.PushFootprint(42); err != nil {
		t.Fatalf("PushFootprint(42): %v", err)
	}
	if err := w.PushFootprint(1); err != nil {
		t.Fatalf("PushFootprint(1): %v", err)
	}
	encoded := w.Finish()

	f, err := ParseFrame(encoded)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	wantFootprints := []BoardID{42, 1}
	if got := f.Footprints(); !equalFootprints(got, wantFootprints) {
		t.Fatalf("Footprints = %v, want %v", got, wantFootprints)
	}

	// copy into a second writer, pop the front, and check the original
	// front value was the one removed and the rest survives.
	w2 := NewWriter(make([]byte, 64))
	w2.Assign(f)
	front, ok := f.FrontFootprint()
	if !ok || front != 42 {
		t.Fatalf("FrontFootprint = %v,%v want 42,true", front, ok)
	}
	w2.PopFrontStack()
	popped := w2.Finish()

	f2, err := ParseFrame(popped)
	if err != nil {
		t.Fatalf("ParseFrame popped: %v", err)
	}
	if got := f2.Footprints(); !equalFootprints(got, []BoardID{1}) {
		t.Fatalf("Footprints after pop = %v, want [1]", got)
	}
}

func equalFootprints(a, b []BoardID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAssignCopiesHeaderPayloadFootprint(t *testing.T) {
	src := make([]byte, 64)
	w := NewWriter(src)
	w.Prepare(ProtocolEvent, uint16(EventControlsChanged))
	w.WriteUint8(7)
	w.WriteUint8(1)
	w.WriteUint8(1)
	if err := w.PushFootprint(9); err != nil {
		t.Fatalf("PushFootprint: %v", err)
	}
	encoded := w.Finish()
	f, err := ParseFrame(encoded)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}

	dst := make([]byte, 64)
	w2 := NewWriter(dst)
	assigned := w2.Assign(f)

	if !bytes.Equal(assigned, encoded) {
		t.Fatalf("Assign copy = %v, want %v", assigned, encoded)
	}
}

func TestScanResynchronisesPastJunkBytes(t *testing.T) {
	buf := make([]byte, 64)
	frame := buildIDRequest(buf, 0)

	stream := append([]byte{0xFF, 0xFF}, frame...)

	var got []Frame
	consumed := Scan(stream, func(f Frame) {
		got = append(got, f)
	})

	if len(got) != 1 {
		t.Fatalf("Scan found %d frames, want 1", len(got))
	}
	if consumed != len(stream) {
		t.Errorf("consumed = %d, want %d (all bytes)", consumed, len(stream))
	}
	if !bytes.Equal(got[0].Payload(), []byte{0}) {
		t.Errorf("recovered frame payload = %v, want [0]", got[0].Payload())
	}
}

func TestScanStopsOnIncompleteTrailingFrame(t *testing.T) {
	buf := make([]byte, 64)
	frame := buildIDRequest(buf, 0)
	truncated := frame[:len(frame)-1]

	var got []Frame
	consumed := Scan(truncated, func(f Frame) {
		got = append(got, f)
	})

	if len(got) != 0 {
		t.Fatalf("Scan found %d frames on truncated input, want 0", len(got))
	}
	if consumed != 0 {
		t.Errorf("consumed = %d, want 0 (wait for more bytes)", consumed)
	}
}

func TestDiscoveryPacketRoundTrip(t *testing.T) {
	buf := make([]byte, DiscoveryPacketSize)
	encoded := EncodeDiscovery(buf, DiscoveryPacket{
		BoardID:        7,
		ConnectionType: ConnectionUSB,
		Distance:       0,
	})

	got, err := DecodeDiscovery(encoded)
	if err != nil {
		t.Fatalf("DecodeDiscovery: %v", err)
	}
	want := DiscoveryPacket{BoardID: 7, ConnectionType: ConnectionUSB, Distance: 0}
	if got != want {
		t.Errorf("DecodeDiscovery = %+v, want %+v", got, want)
	}
}

func TestDecodeDiscoveryRejectsBadMagic(t *testing.T) {
	buf := make([]byte, DiscoveryPacketSize)
	EncodeDiscovery(buf, DiscoveryPacket{BoardID: 1})
	buf[0] ^= 0xFF

	if _, err := DecodeDiscovery(buf); err != ErrBadMagic {
		t.Errorf("DecodeDiscovery with corrupted magic = %v, want ErrBadMagic", err)
	}
}
