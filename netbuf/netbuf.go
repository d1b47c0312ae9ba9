// Package netbuf implements the board's segmented network buffer
// (spec §3, §4.D): one fixed-capacity byte array carved into three
// named regions, each with an independent write head. The array is
// allocated once and never resized; heads, not zero sentinels, enforce
// region boundaries.
package netbuf

import (
	"errors"
	"io"
)

// Region capacities, per spec §4.D.
const (
	TransferCapacity  = 8192
	AssignCapacity    = 256
	SlaveDataCapacity = 3840
)

const (
	transferOffset  = 0
	assignOffset    = transferOffset + TransferCapacity
	slaveDataOffset = assignOffset + AssignCapacity
	totalCapacity   = slaveDataOffset + SlaveDataCapacity
)

// ErrRegionFull is returned when a write would push a region's head
// past its capacity. The caller's tick drops the frame that triggered
// it; the buffer itself is left consistent for the next tick.
var ErrRegionFull = errors.New("netbuf: region capacity exceeded")

// Buffer is the board's single network buffer. Zero value is ready to
// use. Not safe for concurrent use — the scheduler is the only caller.
type Buffer struct {
	data          [totalCapacity]byte
	transferHead  int
	assignHead    int
	slaveDataHead int
}

// Reset zeros the three write heads at the start of a tick. Data bytes
// are deliberately left untouched.
func (b *Buffer) Reset() {
	b.transferHead = 0
	b.assignHead = 0
	b.slaveDataHead = 0
}

// TransferLen returns how many bytes have been written into the
// transfer region this tick.
func (b *Buffer) TransferLen() int { return b.transferHead }

// AssignLen returns how many bytes have been written into the
// self-assign region this tick.
func (b *Buffer) AssignLen() int { return b.assignHead }

// SlaveDataLen returns how many bytes have been written into the
// slave-data region this tick.
func (b *Buffer) SlaveDataLen() int { return b.slaveDataHead }

// TransferWritable returns the unwritten tail of the transfer region.
func (b *Buffer) TransferWritable() []byte {
	return b.data[transferOffset+b.transferHead : transferOffset+TransferCapacity]
}

// AssignWritable returns the unwritten tail of the self-assign region.
func (b *Buffer) AssignWritable() []byte {
	return b.data[assignOffset+b.assignHead : assignOffset+AssignCapacity]
}

// AssignRegion returns the self-assign region's bytes starting at
// offset start and extending to the region's full capacity. Unlike
// AssignWritable this does not imply start is the current head: it
// lets a caller mutate a frame in place just after reading it, before
// advancing the head past it (e.g. to stamp footprint bytes onto an
// id-request frame that was just read into this region).
func (b *Buffer) AssignRegion(start int) []byte {
	return b.data[assignOffset+start : assignOffset+AssignCapacity]
}

// SlaveDataWritable returns the unwritten tail of the slave-data
// region.
func (b *Buffer) SlaveDataWritable() []byte {
	return b.data[slaveDataOffset+b.slaveDataHead : slaveDataOffset+SlaveDataCapacity]
}

// TransferWritten returns everything written into the transfer region
// so far this tick.
func (b *Buffer) TransferWritten() []byte {
	return b.data[transferOffset : transferOffset+b.transferHead]
}

// AssignWritten returns everything written into the self-assign region
// so far this tick.
func (b *Buffer) AssignWritten() []byte {
	return b.data[assignOffset : assignOffset+b.assignHead]
}

// SlaveDataWritten returns everything written into the slave-data
// region so far this tick.
func (b *Buffer) SlaveDataWritten() []byte {
	return b.data[slaveDataOffset : slaveDataOffset+b.slaveDataHead]
}

// AdvanceTransfer records that n bytes were written into the tail
// returned by TransferWritable.
func (b *Buffer) AdvanceTransfer(n int) error {
	if b.transferHead+n > TransferCapacity {
		return ErrRegionFull
	}
	b.transferHead += n
	return nil
}

// AdvanceAssign records that n bytes were written into the tail
// returned by AssignWritable.
func (b *Buffer) AdvanceAssign(n int) error {
	if b.assignHead+n > AssignCapacity {
		return ErrRegionFull
	}
	b.assignHead += n
	return nil
}

// AdvanceSlaveData records that n bytes were written into the tail
// returned by SlaveDataWritable.
func (b *Buffer) AdvanceSlaveData(n int) error {
	if b.slaveDataHead+n > SlaveDataCapacity {
		return ErrRegionFull
	}
	b.slaveDataHead += n
	return nil
}

// AppendTransfer copies p into the transfer region and advances its
// head, failing rather than overrunning the region.
func (b *Buffer) AppendTransfer(p []byte) error {
	dst := b.TransferWritable()
	if len(p) > len(dst) {
		return ErrRegionFull
	}
	n := copy(dst, p)
	return b.AdvanceTransfer(n)
}

// ReadAssign reads one chunk from r into the self-assign region's
// writable tail and advances the head by however many bytes were
// actually read, even if r also returned an error.
func (b *Buffer) ReadAssign(r io.Reader) (int, error) {
	n, err := r.Read(b.AssignWritable())
	if n > 0 {
		if aerr := b.AdvanceAssign(n); aerr != nil {
			return n, aerr
		}
	}
	return n, err
}

// ReadSlaveData reads one chunk from r into the slave-data region's
// writable tail and advances the head by however many bytes were
// actually read, even if r also returned an error.
func (b *Buffer) ReadSlaveData(r io.Reader) (int, error) {
	n, err := r.Read(b.SlaveDataWritable())
	if n > 0 {
		if aerr := b.AdvanceSlaveData(n); aerr != nil {
			return n, aerr
		}
	}
	return n, err
}
