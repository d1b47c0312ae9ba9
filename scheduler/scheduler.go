// Package scheduler owns the board's two modules and drives them from
// a single cooperative, busy-poll loop (spec §4.G, §5): independent
// per-module discovery cadences, and a shared tick cadence, with no
// locking because nothing else ever touches the modules concurrently.
package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/MusicLab-Dev/Board/hardware"
	"github.com/MusicLab-Dev/Board/internal/boardlog"
	"github.com/MusicLab-Dev/Board/network"
)

var log = boardlog.For("scheduler")

// idleParkDuration bounds CPU use when an iteration triggered neither
// a discovery nor a tick. It does not change any observable timing
// the spec names.
const idleParkDuration = 500 * time.Microsecond

// cache is the scheduler's own bookkeeping (spec §3 SchedulerCache):
// cadence periods and the timestamps used to decide when each fires.
type cache struct {
	tickRate         time.Duration
	hwDiscoveryRate  time.Duration
	netDiscoveryRate time.Duration

	lastTick         time.Time
	lastHWDiscovery  time.Time
	lastNetDiscovery time.Time
}

// Scheduler is the board agent's single owner of both modules. The
// only thread-safe operation is Stop; everything else assumes Run is
// the sole caller.
type Scheduler struct {
	hw  *hardware.Module
	net *network.Module

	cache cache
	stop  atomic.Bool
}

// New constructs a scheduler. tickRate is the shared per-tick period;
// hwDiscoveryRate and netDiscoveryRate are independent per-module
// cadences.
func New(hw *hardware.Module, net *network.Module, tickRate, hwDiscoveryRate, netDiscoveryRate time.Duration) *Scheduler {
	now := time.Now()
	return &Scheduler{
		hw:  hw,
		net: net,
		cache: cache{
			tickRate:         tickRate,
			hwDiscoveryRate:  hwDiscoveryRate,
			netDiscoveryRate: netDiscoveryRate,
			lastTick:         now,
			lastHWDiscovery:  now,
			lastNetDiscovery: now,
		},
	}
}

// Stop requests the run loop exit after its current iteration. Safe
// to call from a signal handler or test teardown.
func (s *Scheduler) Stop() {
	s.stop.Store(true)
}

// Run is the run loop. It returns once Stop has been called.
func (s *Scheduler) Run() {
	log.Info().Msg("scheduler starting")
	for !s.stop.Load() {
		now := time.Now()
		did := false

		if now.Sub(s.cache.lastHWDiscovery) >= s.cache.hwDiscoveryRate {
			s.cache.lastHWDiscovery = now
			s.hw.Discover(s.connected())
			did = true
		}
		if now.Sub(s.cache.lastNetDiscovery) >= s.cache.netDiscoveryRate {
			s.cache.lastNetDiscovery = now
			s.net.Discover()
			did = true
		}

		if now.Sub(s.cache.lastTick) >= s.cache.tickRate {
			connected := s.connected()
			s.hw.Tick(connected)
			s.net.Tick(s.hw.Events())
			s.cache.lastTick = now
			did = true
		}

		if !did {
			time.Sleep(idleParkDuration)
		}
	}
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) connected() bool {
	return s.net.State() == network.Connected
}
