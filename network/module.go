// Package network implements the board's sockets, discovery and
// election, master/client connection state machine, and per-tick
// pipeline (spec §4.F) — the largest single component of the agent.
package network

import (
	"fmt"
	"net"
	"time"

	"github.com/MusicLab-Dev/Board/hardware"
	"github.com/MusicLab-Dev/Board/internal/boardlog"
	"github.com/MusicLab-Dev/Board/netbuf"
	"github.com/MusicLab-Dev/Board/wire"
	"github.com/rs/zerolog"
)

var log = boardlog.For("network")

// masterReadSize is the up-to-1KiB non-blocking read spec §4.F calls
// for when draining the master socket each tick.
const masterReadSize = 1024

// Module owns every socket and all state in the master/client network
// state machine. It is not safe for concurrent use: the scheduler is
// its only caller, once per tick and once per discovery cycle.
type Module struct {
	cfg Settings
	log zerolog.Logger

	sendConn *net.UDPConn
	recvConn *net.UDPConn
	listener *net.TCPListener

	state      State
	masterConn net.Conn
	selfID     wire.BoardID
	connType   wire.ConnectionType
	distance   wire.NodeDistance

	clients []*Client
	tempIDs tempIDAllocator

	buf netbuf.Buffer

	masterReadBuf [masterReadSize]byte
}

// NewModule opens the permanent sockets (UDP receive, TCP listen) and
// returns a Disconnected module. Socket/listen failures here are
// fatal at construction, per spec §4.F; the broadcast send socket is
// the one exception — see openBroadcastSend.
func NewModule(cfg Settings) (*Module, error) {
	m := &Module{cfg: cfg, state: Disconnected, log: log}

	recvConn, err := dialUDP(net.IPv4zero, cfg.BroadcastPort, false)
	if err != nil {
		return nil, fmt.Errorf("network: discovery receive socket: %w", err)
	}
	m.recvConn = recvConn

	listenPort := cfg.MasterPort
	if cfg.ChildListenPort != 0 {
		listenPort = cfg.ChildListenPort
	}
	listener, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: listenPort})
	if err != nil {
		recvConn.Close()
		return nil, fmt.Errorf("network: master listen socket: %w", err)
	}
	m.listener = listener

	if sendConn, err := openBroadcastSend(cfg); err != nil {
		if isBindFatal(err) {
			listener.Close()
			recvConn.Close()
			return nil, fmt.Errorf("network: broadcast send socket: %w", err)
		}
		log.Warn().Err(err).Msg("broadcast send socket unavailable at startup, will retry")
	} else {
		m.sendConn = sendConn
	}

	return m, nil
}

// openBroadcastSend opens the UDP socket beacons are sent from. A bind
// failure with EACCES/EADDRINUSE is fatal (returned to the caller to
// fail construction); any other failure is tolerated, to be retried
// on a later discovery tick.
func openBroadcastSend(cfg Settings) (*net.UDPConn, error) {
	ip := net.ParseIP(cfg.BroadcastAddr)
	conn, err := dialUDP(ip, cfg.BroadcastPort, true)
	if err != nil && isBindFatal(err) {
		return nil, err
	}
	return conn, err
}

// State returns the current master connection lifecycle state.
func (m *Module) State() State { return m.state }

// SelfID returns this node's assigned id, or wire.UnassignedBoardID.
func (m *Module) SelfID() wire.BoardID { return m.selfID }

// Distance returns this node's current hop count to the studio
// master.
func (m *Module) Distance() wire.NodeDistance { return m.distance }

// ClientCount returns the number of currently known downstream
// children.
func (m *Module) ClientCount() int { return len(m.clients) }

// Close releases every permanent socket. Intended for test teardown
// and process shutdown.
func (m *Module) Close() {
	if m.masterConn != nil {
		m.masterConn.Close()
	}
	if m.sendConn != nil {
		m.sendConn.Close()
	}
	if m.recvConn != nil {
		m.recvConn.Close()
	}
	if m.listener != nil {
		m.listener.Close()
	}
	for _, c := range m.clients {
		c.Conn.Close()
	}
}

// Discover runs one discovery cycle (spec §4.F): emit a beacon, drain
// the receive socket, and elect a (possibly new) master if warranted.
// Called on the network module's own discovery cadence, independent
// of the tick cadence.
func (m *Module) Discover() {
	m.emitBeacon()
	endpoints := m.scanBeacons()

	best, ok := pickBest(endpoints)
	if !ok {
		return
	}

	switch m.state {
	case Disconnected:
		m.electAndConnect(best)
	case Connected:
		if m.shouldReelect(best) {
			m.log.Info().Msg("better master endpoint found, re-electing")
			m.electAndConnect(best)
		}
	}
}

// emitBeacon sends this node's DiscoveryPacket to the configured
// broadcast destination, reopening the send socket first if it was
// never successfully bound.
func (m *Module) emitBeacon() {
	if m.sendConn == nil {
		conn, err := openBroadcastSend(m.cfg)
		if err != nil {
			m.log.Debug().Err(err).Msg("broadcast send socket still unavailable")
			return
		}
		m.sendConn = conn
	}

	var out [wire.DiscoveryPacketSize]byte
	pkt := wire.EncodeDiscovery(out[:], wire.DiscoveryPacket{
		BoardID:        m.selfID,
		ConnectionType: m.connType,
		Distance:       m.distance,
	})

	dest := &net.UDPAddr{IP: net.ParseIP(m.cfg.BroadcastAddr), Port: m.cfg.BroadcastPort}
	if _, err := m.sendConn.WriteToUDP(pkt, dest); err != nil {
		m.log.Debug().Err(err).Msg("beacon send failed")
	}
}

// scanBeacons drains the receive socket non-blockingly and returns
// one endpoint per valid beacon heard, excluding this node's own
// beacons. Repeated beacons from the same sender are not merged.
func (m *Module) scanBeacons() []Endpoint {
	var endpoints []Endpoint
	var in [wire.DiscoveryPacketSize]byte

	for {
		if err := m.recvConn.SetReadDeadline(time.Now()); err != nil {
			m.log.Error().Err(err).Msg("failed to set discovery read deadline")
			return endpoints
		}
		n, addr, err := m.recvConn.ReadFromUDP(in[:])
		if err != nil {
			return endpoints
		}

		pkt, perr := wire.DecodeDiscovery(in[:n])
		if perr != nil {
			continue
		}
		if pkt.BoardID == m.selfID {
			continue
		}

		endpoints = append(endpoints, Endpoint{
			IP:             addr.IP,
			ConnectionType: pkt.ConnectionType,
			Distance:       pkt.Distance,
		})
	}
}

// shouldReelect applies the re-election half of the policy (spec
// §4.F): trade up to USB if currently off it, or to a strictly shorter
// path.
func (m *Module) shouldReelect(best Endpoint) bool {
	if m.connType != wire.ConnectionUSB && best.ConnectionType == wire.ConnectionUSB {
		return true
	}
	return best.Distance+1 < m.distance
}

// Tick runs one pass of the per-tick pipeline (spec §4.F, §5): only
// while Connected, in the fixed order processMaster → acceptClients →
// readClients → processClientsData (including the sampler's own
// events) → transferToMaster, then resets the buffer for the next
// tick.
func (m *Module) Tick(events []hardware.InputEvent) {
	if m.state != Connected {
		return
	}

	m.processMaster()
	if m.state != Connected {
		return
	}

	m.acceptClients()
	m.readClients()
	m.processClientsData(events)
	m.transferToMaster()
	m.buf.Reset()
}

// acceptClients drains the listen socket non-blockingly; every
// accepted connection becomes a new Client in assign mode.
func (m *Module) acceptClients() {
	for {
		if err := m.listener.SetDeadline(time.Now()); err != nil {
			m.log.Error().Err(err).Msg("failed to set listener deadline")
			return
		}
		conn, err := m.listener.Accept()
		if err != nil {
			if !isWouldBlock(err) {
				m.log.Debug().Err(err).Msg("accept error")
			}
			return
		}
		m.clients = append(m.clients, &Client{Conn: conn})
	}
}

// readClients drains every child's socket once, routing assign-mode
// children through readAssignClient and data-mode children through
// readDataClient, and drops any client whose read failed outright.
func (m *Module) readClients() {
	live := m.clients[:0]
	for _, c := range m.clients {
		var keep bool
		if c.ID == wire.UnassignedBoardID {
			keep = m.readAssignClient(c)
		} else {
			keep = m.readDataClient(c)
		}
		if keep {
			live = append(live, c)
		} else {
			c.Conn.Close()
		}
	}
	m.clients = live
}

// readAssignClient reads one id-request frame from an assign-mode
// child into the self-assign region, stamps it with this node's id and
// a freshly minted temporary child id, and records that temporary id
// on the client. A request split across tick boundaries is not
// reassembled: the bytes read this tick are dropped at the tick's
// buffer reset, and the client stays in assign mode.
func (m *Module) readAssignClient(c *Client) bool {
	if err := c.Conn.SetReadDeadline(time.Now()); err != nil {
		m.log.Warn().Err(err).Msg("failed to set child read deadline")
		return true
	}

	start := m.buf.AssignLen()
	n, err := m.buf.ReadAssign(c.Conn)
	if err != nil {
		if isWouldBlock(err) {
			return true
		}
		m.log.Debug().Err(err).Msg("assign-mode child read error")
		return false
	}
	if n == 0 {
		return true
	}

	region := m.buf.AssignRegion(start)
	frame, perr := wire.ParseFrame(region[:n])
	if perr != nil {
		// incomplete or malformed id-request: nothing is stamped and the
		// client stays in assign mode.
		return true
	}
	if frame.Header.ProtocolType != wire.ProtocolConnection ||
		wire.ConnectionCommand(frame.Header.Command) != wire.ConnectionIDAssignment {
		m.log.Warn().Msg("assign-mode child sent unexpected frame")
		return false
	}

	w := wire.NewWriter(region)
	w.Assign(frame)
	tempID := m.tempIDs.next()
	if err := w.PushFootprint(tempID); err != nil {
		m.log.Warn().Err(err).Msg("footprint stack full, dropping id request")
		return true
	}
	if err := w.PushFootprint(m.selfID); err != nil {
		m.log.Warn().Err(err).Msg("footprint stack full, dropping id request")
		return true
	}
	stamped := w.Finish()

	if err := m.buf.AdvanceAssign(len(stamped) - n); err != nil {
		m.log.Warn().Msg("self-assign region full, dropping id request")
		return true
	}

	c.ID = tempID
	return true
}

// readDataClient reads whatever is available from a data-mode child
// straight into the slave-data region. Parsing happens later, in
// processClientsData.
func (m *Module) readDataClient(c *Client) bool {
	if err := c.Conn.SetReadDeadline(time.Now()); err != nil {
		m.log.Warn().Err(err).Msg("failed to set child read deadline")
		return true
	}

	_, err := m.buf.ReadSlaveData(c.Conn)
	if err == nil {
		return true
	}
	if isWouldBlock(err) {
		return true
	}
	m.log.Debug().Err(err).Msg("child read error")
	return false
}

// processClientsData runs the four-step promotion into the transfer
// region (spec §4.F): slave assigns, then self assigns, then slave
// events (reserved passthrough), then this node's own input events.
func (m *Module) processClientsData(events []hardware.InputEvent) {
	wire.Scan(m.buf.SlaveDataWritten(), func(f wire.Frame) {
		if !isIDAssignment(f) {
			return
		}
		m.stampAndTransfer(f)
	})

	wire.Scan(m.buf.AssignWritten(), func(f wire.Frame) {
		if !isIDAssignment(f) {
			return
		}
		if err := m.buf.AppendTransfer(f.Bytes()); err != nil {
			m.log.Warn().Err(err).Msg("transfer region full, dropping self-assign frame")
		}
	})

	wire.Scan(m.buf.SlaveDataWritten(), func(f wire.Frame) {
		if isIDAssignment(f) {
			return
		}
		if err := m.buf.AppendTransfer(f.Bytes()); err != nil {
			m.log.Warn().Err(err).Msg("transfer region full, dropping slave event frame")
		}
	})

	m.emitSelfEvents(events)
}

func isIDAssignment(f wire.Frame) bool {
	return f.Header.ProtocolType == wire.ProtocolConnection &&
		wire.ConnectionCommand(f.Header.Command) == wire.ConnectionIDAssignment
}

// stampAndTransfer copies a descendant's id-request frame, appends this
// node's own id to the end of its footprint stack, and promotes the
// result into the transfer region.
func (m *Module) stampAndTransfer(f wire.Frame) {
	var out [wire.HeaderSize + idAssignmentPayloadSize + wire.MaxFootprints]byte
	w := wire.NewWriter(out[:])
	w.Assign(f)
	if err := w.PushFootprint(m.selfID); err != nil {
		m.log.Warn().Err(err).Msg("footprint stack full, dropping forwarded id request")
		return
	}
	if err := m.buf.AppendTransfer(w.Finish()); err != nil {
		m.log.Warn().Err(err).Msg("transfer region full, dropping forwarded id request")
	}
}

// emitSelfEvents encodes the sampler's events vector as a single
// Event/ControlsChanged frame and appends it to the transfer region.
func (m *Module) emitSelfEvents(events []hardware.InputEvent) {
	if len(events) == 0 {
		return
	}

	var out [wire.HeaderSize + 2 + 255*2]byte
	w := wire.NewWriter(out[:])
	w.Prepare(wire.ProtocolEvent, uint16(wire.EventControlsChanged))
	w.WriteUint8(uint8(m.selfID))
	for _, e := range events {
		w.WriteUint8(e.Index)
		w.WriteUint8(e.Value)
	}

	if err := m.buf.AppendTransfer(w.Finish()); err != nil {
		m.log.Warn().Err(err).Msg("transfer region full, dropping own input events")
	}
}

// transferToMaster sends everything assembled in the transfer region
// as a single write, tolerating EAGAIN/EWOULDBLOCK: the tick's frame
// is then dropped (Tick resets the buffer right after), and the next
// tick sends its own.
func (m *Module) transferToMaster() {
	if m.buf.TransferLen() == 0 {
		return
	}

	if err := m.masterConn.SetWriteDeadline(time.Now()); err != nil {
		m.log.Error().Err(err).Msg("failed to set master write deadline")
		return
	}
	if _, err := m.masterConn.Write(m.buf.TransferWritten()); err != nil {
		if isWouldBlock(err) {
			return
		}
		m.log.Warn().Err(err).Msg("transfer to master failed")
	}
}
