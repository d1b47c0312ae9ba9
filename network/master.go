package network

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/MusicLab-Dev/Board/wire"
)

// idAssignmentPayloadSize is the payload width of every Connection/
// IDAssignment frame on the wire (spec §6): a single BoardID. Buffers
// that copy-and-restamp such a frame size on this plus the worst-case
// footprint stack (spec §3: up to 255 hops) so a deep forwarding chain
// can never overflow them.
const idAssignmentPayloadSize = 1

// State is the master connection lifecycle (spec §4.F).
type State uint8

const (
	Disconnected State = iota
	Connecting
	Handshaking
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Handshaking:
		return "Handshaking"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// electAndConnect drops any existing master socket, dials ep, and runs
// the id handshake. On any failure the node stays/returns to
// Disconnected with the socket closed, to be retried on a later
// discovery tick.
func (m *Module) electAndConnect(ep Endpoint) {
	if m.masterConn != nil {
		m.masterConn.Close()
		m.masterConn = nil
	}

	m.state = Connecting
	addr := net.JoinHostPort(ep.IP.String(), fmt.Sprintf("%d", m.cfg.MasterPort))
	conn, err := net.DialTimeout("tcp4", addr, dialTimeout)
	if err != nil {
		m.log.Warn().Err(err).Str("endpoint", addr).Msg("master connect failed")
		m.state = Disconnected
		return
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetKeepAliveConfig(net.KeepAliveConfig{
			Enable:   true,
			Idle:     masterKeepAliveIdle,
			Interval: masterKeepAliveInterval,
			Count:    masterKeepAliveCount,
		}); err != nil {
			m.log.Debug().Err(err).Msg("failed to configure master keepalive")
		}
	}

	m.state = Handshaking
	if err := m.handshake(conn, ep); err != nil {
		m.log.Warn().Err(err).Msg("master handshake failed")
		conn.Close()
		m.state = Disconnected
		return
	}

	m.masterConn = conn
	m.state = Connected
	m.log.Info().
		Uint8("selfID", uint8(m.selfID)).
		Uint8("distance", uint8(m.distance)).
		Msg("connected to master")
}

// handshake runs the one deliberately blocking-ish exchange allowed by
// spec §5: a bounded write, then a bounded read of the id assignment
// reply, implemented with SetReadDeadline/SetWriteDeadline rather than
// a truly unbounded blocking read.
func (m *Module) handshake(conn net.Conn, ep Endpoint) error {
	var out [32]byte
	w := wire.NewWriter(out[:])
	w.Prepare(wire.ProtocolConnection, uint16(wire.ConnectionIDAssignment))
	w.WriteUint8(uint8(wire.UnassignedBoardID))
	request := w.Finish()

	if err := conn.SetWriteDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(request); err != nil {
		return err
	}

	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return err
	}
	var in [32]byte
	n, err := conn.Read(in[:])
	if err != nil {
		return err
	}

	reply, err := wire.ParseFrame(in[:n])
	if err != nil {
		return fmt.Errorf("network: malformed handshake reply: %w", err)
	}
	if reply.Header.ProtocolType != wire.ProtocolConnection ||
		wire.ConnectionCommand(reply.Header.Command) != wire.ConnectionIDAssignment {
		return fmt.Errorf("network: unexpected handshake reply protocol=%d command=%d",
			reply.Header.ProtocolType, reply.Header.Command)
	}
	payload := reply.Payload()
	if len(payload) < 1 {
		return errors.New("network: handshake reply has no payload")
	}

	m.selfID = wire.BoardID(payload[0])
	m.connType = ep.ConnectionType
	m.distance = ep.Distance + 1

	// handshake done: the socket now belongs to the tick's non-blocking
	// read/write pattern, via SetReadDeadline(time.Now()) on every call
	// rather than a persistent deadline.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return err
	}

	return m.sendHardwareSpecs(conn)
}

// sendHardwareSpecs sends this node's Connection/HardwareSpecs frame
// to dst: its own id, and {width: pin count, height: 1}.
func (m *Module) sendHardwareSpecs(dst net.Conn) error {
	var out [32]byte
	w := wire.NewWriter(out[:])
	w.Prepare(wire.ProtocolConnection, uint16(wire.ConnectionHardwareSpecs))
	w.WriteUint8(uint8(m.selfID))
	w.WriteUint8(uint8(m.cfg.PinCount))
	w.WriteUint8(1)
	frame := w.Finish()

	if err := dst.SetWriteDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return err
	}
	_, err := dst.Write(frame)
	return err
}

// processMaster drains up to one read from the master socket and
// dispatches every complete frame found in it. A zero-length or
// erroring read (other than the would-block signal) is treated as
// master loss.
func (m *Module) processMaster() {
	if err := m.masterConn.SetReadDeadline(time.Now()); err != nil {
		m.log.Error().Err(err).Msg("failed to set master read deadline")
		return
	}

	n, err := m.masterConn.Read(m.masterReadBuf[:])
	if err != nil {
		if isWouldBlock(err) {
			return
		}
		m.log.Info().Err(err).Msg("master connection lost")
		m.disconnectFromMaster()
		return
	}
	if n == 0 {
		m.log.Info().Msg("master connection closed")
		m.disconnectFromMaster()
		return
	}

	wire.Scan(m.masterReadBuf[:n], m.handleMasterFrame)
}

// handleMasterFrame dispatches one frame already validated by
// wire.Scan.
func (m *Module) handleMasterFrame(f wire.Frame) {
	if f.Header.ProtocolType != wire.ProtocolConnection {
		return
	}
	switch wire.ConnectionCommand(f.Header.Command) {
	case wire.ConnectionIDAssignment:
		m.forwardIDAssignment(f)
	case wire.ConnectionHardwareSpecs:
		if err := m.sendHardwareSpecs(m.masterConn); err != nil {
			m.log.Warn().Err(err).Msg("failed to reply to HardwareSpecs request")
		}
	}
}

// forwardIDAssignment implements the generalised deep-forwarding rule
// (spec §9): the front footprint entry names the child this node must
// forward to; popping it and sending the remainder lets that child, in
// turn, resolve whatever is left of the stack. A footprint stack of
// exactly one entry means this node's own child is the final hop, and
// the payload carries that child's newly assigned real id.
func (m *Module) forwardIDAssignment(f wire.Frame) {
	front, ok := f.FrontFootprint()
	if !ok {
		m.log.Warn().Msg("IDAssignment from master with empty footprint stack")
		return
	}
	client := m.findClientByID(wire.BoardID(front))
	if client == nil {
		m.log.Warn().Uint8("id", uint8(front)).Msg("IDAssignment for unknown child")
		return
	}

	finalHop := len(f.Footprints()) == 1
	var assignedID wire.BoardID
	if finalHop {
		payload := f.Payload()
		if len(payload) < 1 {
			m.log.Warn().Msg("IDAssignment with no payload")
			return
		}
		assignedID = wire.BoardID(payload[0])
	}

	var out [wire.HeaderSize + idAssignmentPayloadSize + wire.MaxFootprints]byte
	w := wire.NewWriter(out[:])
	w.Assign(f)
	w.PopFrontStack()
	frame := w.Finish()

	if err := client.Conn.SetWriteDeadline(time.Now().Add(childWriteDeadline)); err != nil {
		m.log.Warn().Err(err).Msg("failed to set child write deadline")
		return
	}
	if _, err := client.Conn.Write(frame); err != nil {
		m.log.Warn().Err(err).Msg("failed to forward IDAssignment to child")
		return
	}

	if finalHop {
		client.ID = assignedID
	}
}

// findClientByID returns the client currently known by id, or nil.
func (m *Module) findClientByID(id wire.BoardID) *Client {
	for _, c := range m.clients {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// disconnectFromMaster tears down the master connection and every
// downstream child (spec §4.F Connected → Disconnected transition).
func (m *Module) disconnectFromMaster() {
	if m.masterConn != nil {
		m.masterConn.Close()
		m.masterConn = nil
	}
	m.selfID = wire.UnassignedBoardID
	m.connType = wire.ConnectionNone
	m.distance = 0
	m.state = Disconnected

	for _, c := range m.clients {
		c.Conn.Close()
	}
	m.clients = m.clients[:0]
}
