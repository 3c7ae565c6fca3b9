package ports

import (
	"net"
	"strconv"
)

// SocketChecker tests a port by briefly listening on it.
type SocketChecker struct {
	// Host to bind; empty binds all interfaces.
	Host string
}

// Available reports whether a TCP listener could be opened on port.
// Any bind failure means unavailable.
func (c SocketChecker) Available(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(c.Host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
