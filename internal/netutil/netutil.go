// Package netutil holds the small TCP helpers shared by the node and
// interface binaries: an accept loop that hands each connection to a
// handler on its own goroutine, and helpers reading a listener's port
// and a connection's source IP. The dial-write-once send lives in
// wire.Send.
package netutil

import (
	"net"

	"github.com/rs/zerolog"
)

// Serve listens on addr and invokes handle for each accepted connection
// on its own goroutine, until the listener is closed. It returns the
// listener so the caller can read back the bound port (useful when addr
// requests an ephemeral port with ":0").
func Serve(addr string, logger zerolog.Logger, handle func(net.Conn)) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				logger.Debug().Err(err).Msg("listener stopped accepting")
				return
			}
			go handle(conn)
		}
	}()
	return ln, nil
}

// Port returns the TCP port a listener is bound to.
func Port(ln net.Listener) uint16 {
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

// SourceIP returns the IP address (no port) a connection originated
// from, used by the interface to derive a node's address from its
// CONNECT handshake without trusting any client-supplied address.
func SourceIP(conn net.Conn) string {
	addr := conn.RemoteAddr().(*net.TCPAddr)
	return addr.IP.String()
}
