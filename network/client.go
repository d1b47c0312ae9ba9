package network

import (
	"net"

	"github.com/MusicLab-Dev/Board/wire"
)

// Client is a downstream child board: its socket and the identifier
// this node knows it by. ID is wire.UnassignedBoardID while the child
// is in assign mode (spec §3); it becomes a rolling temporary id once
// this node mints one, and finally the master's real id once the
// handshake completes end to end.
type Client struct {
	Conn net.Conn
	ID   wire.BoardID
}

// tempIDAllocator mints the rolling temporary ids handed to children
// while their real id request is in flight. The counter wraps at 255
// back to 0, but 0 (UnassignedBoardID) is never itself handed out.
type tempIDAllocator struct {
	counter uint8
}

func (a *tempIDAllocator) next() wire.BoardID {
	a.counter++
	if a.counter == 0 {
		a.counter = 1
	}
	return wire.BoardID(a.counter)
}
