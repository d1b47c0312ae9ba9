package network

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// dialUDP opens a UDP socket with SO_REUSEADDR, and SO_BROADCAST when
// requested, set before bind. net.ListenUDP has no hook for socket
// options, so this goes through the raw syscalls directly, the same
// way as every other UDP broadcaster in this codebase's lineage.
func dialUDP(ip net.IP, port int, broadcast bool) (*net.UDPConn, error) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, syscall.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("network: socket: %w", err)
	}

	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("network: setsockopt SO_REUSEADDR: %w", err)
	}
	if broadcast {
		if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1); err != nil {
			syscall.Close(fd)
			return nil, fmt.Errorf("network: setsockopt SO_BROADCAST: %w", err)
		}
	}

	addr := syscall.SockaddrInet4{Port: port}
	if ip4 := ip.To4(); ip4 != nil {
		copy(addr.Addr[:], ip4)
	}
	if err := syscall.Bind(fd, &addr); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("network: bind: %w", err)
	}

	f := os.NewFile(uintptr(fd), "")
	defer f.Close()
	pc, err := net.FilePacketConn(f)
	if err != nil {
		return nil, fmt.Errorf("network: FilePacketConn: %w", err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errors.New("network: FilePacketConn did not return a UDPConn")
	}
	return conn, nil
}

// isBindFatal reports whether a bind failure should be fatal at
// construction (spec §4.F failure semantics table): EACCES or
// EADDRINUSE. Any other errno is tolerated and retried.
func isBindFatal(err error) bool {
	return errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EADDRINUSE)
}

// isWouldBlock reports whether err is the non-blocking "no data/no
// room" signal this codebase gets from setting a read/write deadline
// of time.Now() rather than true O_NONBLOCK sockets.
func isWouldBlock(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
