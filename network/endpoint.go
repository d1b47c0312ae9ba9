package network

import (
	"net"

	"github.com/MusicLab-Dev/Board/wire"
)

// Endpoint is a candidate upstream board learnt from one discovery
// beacon (spec §3). It is transient: rebuilt from scratch every
// discovery cycle.
type Endpoint struct {
	IP             net.IP
	ConnectionType wire.ConnectionType
	Distance       wire.NodeDistance
}

// betterEndpoint reports whether a should be preferred over b under
// the election policy (spec §4.F): USB beats any other class; within
// the same class, smaller distance wins.
func betterEndpoint(a, b Endpoint) bool {
	aUSB := a.ConnectionType == wire.ConnectionUSB
	bUSB := b.ConnectionType == wire.ConnectionUSB
	if aUSB != bUSB {
		return aUSB
	}
	return a.Distance < b.Distance
}

// pickBest returns the most preferred endpoint in endpoints, or false
// if the list is empty.
func pickBest(endpoints []Endpoint) (Endpoint, bool) {
	if len(endpoints) == 0 {
		return Endpoint{}, false
	}
	best := endpoints[0]
	for _, e := range endpoints[1:] {
		if betterEndpoint(e, best) {
			best = e
		}
	}
	return best, true
}
