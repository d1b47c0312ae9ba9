package network

import (
	"time"

	"github.com/MusicLab-Dev/Board/config"
)

// Settings carries the tunables the network module reads out of the
// config store at startup (spec §4.C).
type Settings struct {
	BroadcastAddr string
	BroadcastPort int
	MasterPort    int
	PinCount      int

	// ChildListenPort overrides the port this node's own downstream
	// listener binds to. Zero (the default for every config-file-backed
	// Settings) means "same as MasterPort", matching the single global
	// port spec §6 describes. It exists so same-host integration tests
	// can run a board and a synthetic parent on one loopback interface
	// without the two listeners fighting over one port number.
	ChildListenPort int
}

// Default fallbacks, per spec §4.C and §8 scenario 5 (configless
// fallback to loopback for same-host testing).
const (
	DefaultBroadcastAddr = "127.0.0.1"
	DefaultBroadcastPort = 4242
	DefaultMasterPort    = 4243
)

const (
	dialTimeout        = 2 * time.Second
	handshakeTimeout   = 2 * time.Second
	childWriteDeadline = 500 * time.Millisecond
)

// TCP keepalive tuning for the master connection (spec §4.F).
const (
	masterKeepAliveIdle     = 3 * time.Second
	masterKeepAliveInterval = 3 * time.Second
	masterKeepAliveCount    = 1
)

// SettingsFromConfig reads the recognised network keys out of s,
// falling back to the configless defaults when a key is absent.
func SettingsFromConfig(s *config.Store, pinCount int) Settings {
	return Settings{
		BroadcastAddr: s.Get("BroadcastAddress", DefaultBroadcastAddr),
		BroadcastPort: config.GetAs(s, "BroadcastPort", DefaultBroadcastPort),
		MasterPort:    config.GetAs(s, "MasterPort", DefaultMasterPort),
		PinCount:      pinCount,
	}
}
