// Package wire implements the framed packet codec shared by every
// board and the studio master (spec §4.A, §6): a packed, little-endian
// header followed by a payload and a footprint stack, plus the smaller
// fixed-size UDP discovery beacon. Both are external wire contracts,
// not Go memory layouts, so everything here goes through
// encoding/binary rather than struct casts.
package wire

import (
	"encoding/binary"
	"errors"
)

// MagicKey opens every frame and every discovery beacon. A mismatch at
// the front of a stream triggers byte-slip resynchronisation rather
// than a parse failure.
const MagicKey uint32 = 0x42445354

// HeaderSize is the packed size of a frame header:
// MagicKey(4) + ProtocolType(1) + Command(2) + PayloadLen(2) + FootprintCount(1).
const HeaderSize = 4 + 1 + 2 + 2 + 1

// MaxFootprints is the largest footprint-stack length a single byte
// count can represent.
const MaxFootprints = 255

// DiscoveryPacketSize is the packed size of a UDP beacon:
// MagicKey(4) + BoardID(1) + ConnectionType(1) + NodeDistance(1).
const DiscoveryPacketSize = 4 + 1 + 1 + 1

var (
	ErrBadMagic      = errors.New("wire: magic key mismatch")
	ErrShortBuffer   = errors.New("wire: buffer shorter than declared frame size")
	ErrFootprintFull = errors.New("wire: footprint stack full")
)

// BoardID is the 8-bit identifier the master hands out. 0 means
// unassigned.
type BoardID uint8

// UnassignedBoardID is the sentinel carried by a board that has not
// completed the ID handshake, and by a client still in assign mode.
const UnassignedBoardID BoardID = 0

// ConnectionType classifies the physical link a beacon was heard on.
type ConnectionType uint8

const (
	ConnectionNone ConnectionType = iota
	ConnectionUSB
	ConnectionWiFi
)

// NodeDistance is the hop count to the studio master.
type NodeDistance uint8

// ProtocolType is the outer dispatch key of a framed packet.
type ProtocolType uint8

const (
	ProtocolConnection ProtocolType = iota
	ProtocolEvent
)

// ConnectionCommand enumerates Command values under ProtocolConnection.
type ConnectionCommand uint16

const (
	ConnectionIDAssignment ConnectionCommand = iota
	ConnectionHardwareSpecs
)

// EventCommand enumerates Command values under ProtocolEvent.
type EventCommand uint16

const (
	EventControlsChanged EventCommand = iota
)

// Header is the ten-byte frame header, decoded into Go-native widths.
type Header struct {
	ProtocolType   ProtocolType
	Command        uint16
	PayloadLen     uint16
	FootprintCount uint8
}

// TotalSize is the full on-wire length of the frame this header
// describes: header, payload, and footprint stack.
func (h Header) TotalSize() int {
	return HeaderSize + int(h.PayloadLen) + int(h.FootprintCount)
}

// DecodeHeader parses the ten bytes at the front of buf. It does not
// validate that buf holds the full frame; callers use TotalSize for
// that.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortBuffer
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != MagicKey {
		return Header{}, ErrBadMagic
	}
	return Header{
		ProtocolType:   ProtocolType(buf[4]),
		Command:        binary.LittleEndian.Uint16(buf[5:7]),
		PayloadLen:     binary.LittleEndian.Uint16(buf[7:9]),
		FootprintCount: buf[9],
	}, nil
}

// Frame is a read-only view over one complete, bounds-checked frame
// borrowed from a caller's buffer. It never copies.
type Frame struct {
	Header Header
	buf    []byte
}

// ParseFrame decodes and bounds-checks one frame at the front of buf.
// buf may hold more than one frame; the caller slices past
// f.TotalSize() to continue.
func ParseFrame(buf []byte) (Frame, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Frame{}, err
	}
	if len(buf) < h.TotalSize() {
		return Frame{}, ErrShortBuffer
	}
	return Frame{Header: h, buf: buf[:h.TotalSize()]}, nil
}

// Payload returns the frame's payload bytes.
func (f Frame) Payload() []byte {
	start := HeaderSize
	return f.buf[start : start+int(f.Header.PayloadLen)]
}

// Footprints returns the footprint stack, front first.
func (f Frame) Footprints() []BoardID {
	start := HeaderSize + int(f.Header.PayloadLen)
	raw := f.buf[start : start+int(f.Header.FootprintCount)]
	out := make([]BoardID, len(raw))
	for i, b := range raw {
		out[i] = BoardID(b)
	}
	return out
}

// FrontFootprint returns the first footprint entry without allocating,
// and false if the stack is empty.
func (f Frame) FrontFootprint() (BoardID, bool) {
	if f.Header.FootprintCount == 0 {
		return 0, false
	}
	start := HeaderSize + int(f.Header.PayloadLen)
	return BoardID(f.buf[start]), true
}

// TotalSize is the number of bytes this frame occupies in its source
// buffer.
func (f Frame) TotalSize() int { return len(f.buf) }

// Bytes returns the frame's full encoding: header, payload, footprints.
func (f Frame) Bytes() []byte { return f.buf }

// Writer assembles one frame into a caller-owned byte range. It never
// reallocates; dst must be large enough for the largest frame the
// caller intends to build with it.
type Writer struct {
	buf        []byte
	protocol   ProtocolType
	command    uint16
	payloadLen uint16
	footprints uint8
}

// NewWriter wraps dst.
func NewWriter(dst []byte) *Writer {
	return &Writer{buf: dst}
}

// Prepare starts a fresh frame, discarding anything previously
// assembled into the wrapped buffer.
func (w *Writer) Prepare(protocol ProtocolType, command uint16) {
	w.protocol = protocol
	w.command = command
	w.payloadLen = 0
	w.footprints = 0
}

func (w *Writer) payloadOffset() int {
	return HeaderSize + int(w.payloadLen)
}

// WriteUint8 appends one byte to the payload. Must be called before
// any PushFootprint on this frame.
func (w *Writer) WriteUint8(v uint8) {
	w.buf[w.payloadOffset()] = v
	w.payloadLen++
}

// WriteUint16 appends a little-endian uint16 to the payload.
func (w *Writer) WriteUint16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.payloadOffset():], v)
	w.payloadLen += 2
}

// WriteBytes appends raw bytes to the payload.
func (w *Writer) WriteBytes(p []byte) {
	copy(w.buf[w.payloadOffset():], p)
	w.payloadLen += uint16(len(p))
}

// PushFootprint appends id to the footprint stack. Footprints follow
// the payload on the wire, so the payload must be finished first.
func (w *Writer) PushFootprint(id BoardID) error {
	if int(w.footprints) >= MaxFootprints {
		return ErrFootprintFull
	}
	offset := HeaderSize + int(w.payloadLen) + int(w.footprints)
	w.buf[offset] = byte(id)
	w.footprints++
	return nil
}

// PopFrontStack removes the front footprint entry, shifting the rest
// down by one. Used when this node forwards a packet it is not the
// final hop for.
func (w *Writer) PopFrontStack() {
	if w.footprints == 0 {
		return
	}
	start := HeaderSize + int(w.payloadLen)
	copy(w.buf[start:start+int(w.footprints)-1], w.buf[start+1:start+int(w.footprints)])
	w.footprints--
}

// Finish writes the header over the accumulated payload/footprint
// lengths and returns the complete encoded frame.
func (w *Writer) Finish() []byte {
	binary.LittleEndian.PutUint32(w.buf[0:4], MagicKey)
	w.buf[4] = byte(w.protocol)
	binary.LittleEndian.PutUint16(w.buf[5:7], w.command)
	binary.LittleEndian.PutUint16(w.buf[7:9], w.payloadLen)
	w.buf[9] = w.footprints
	total := HeaderSize + int(w.payloadLen) + int(w.footprints)
	return w.buf[:total]
}

// Assign copies an already-parsed frame verbatim into this writer's
// buffer without re-validating it, mirroring the promotion of a
// client's packet into the transfer region.
func (w *Writer) Assign(f Frame) []byte {
	n := copy(w.buf, f.Bytes())
	w.protocol = f.Header.ProtocolType
	w.command = f.Header.Command
	w.payloadLen = f.Header.PayloadLen
	w.footprints = f.Header.FootprintCount
	return w.buf[:n]
}

// DiscoveryPacket is the fixed-size UDP beacon boards exchange during
// discovery.
type DiscoveryPacket struct {
	BoardID        BoardID
	ConnectionType ConnectionType
	Distance       NodeDistance
}

// EncodeDiscovery packs p into buf, which must be at least
// DiscoveryPacketSize long, and returns the written slice.
func EncodeDiscovery(buf []byte, p DiscoveryPacket) []byte {
	binary.LittleEndian.PutUint32(buf[0:4], MagicKey)
	buf[4] = byte(p.BoardID)
	buf[5] = byte(p.ConnectionType)
	buf[6] = byte(p.Distance)
	return buf[:DiscoveryPacketSize]
}

// DecodeDiscovery parses a beacon datagram. buf must be exactly
// DiscoveryPacketSize long, matching a UDP receiver's exact-size read.
func DecodeDiscovery(buf []byte) (DiscoveryPacket, error) {
	if len(buf) != DiscoveryPacketSize {
		return DiscoveryPacket{}, ErrShortBuffer
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != MagicKey {
		return DiscoveryPacket{}, ErrBadMagic
	}
	return DiscoveryPacket{
		BoardID:        BoardID(buf[4]),
		ConnectionType: ConnectionType(buf[5]),
		Distance:       NodeDistance(buf[6]),
	}, nil
}

// Scan walks buf frame by frame, calling fn for each complete, valid
// frame found. On a magic mismatch it advances one byte and retries
// rather than giving up, tolerating stream corruption the way the
// master/child channel is specified to. It returns how many bytes were
// consumed from the front of buf; buf[consumed:] is an incomplete
// trailing frame (or fewer than HeaderSize bytes) that was not passed
// to fn.
func Scan(buf []byte, fn func(Frame)) int {
	consumed := 0
	for consumed < len(buf) {
		f, err := ParseFrame(buf[consumed:])
		if err != nil {
			if errors.Is(err, ErrBadMagic) {
				consumed++
				continue
			}
			// incomplete frame: wait for more bytes before retrying
			break
		}
		fn(f)
		consumed += f.TotalSize()
	}
	return consumed
}
