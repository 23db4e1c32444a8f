// Package copyio implements the bidirectional byte splice between a TCP
// connection and a tunnel (wsconn.Adapter): two independent copy loops, each
// shutting down its peer on EOF, completing when both have stopped.
package copyio

import (
	"io"
	"net"
	"sync"

	"github.com/paulGUZU/wstunnel/internal/wsconn"
)

// Stats reports the byte counts copied in each direction. Purely observable
// (for logging); not semantically significant.
type Stats struct {
	TCPToTunnel int64
	TunnelToTCP int64
}

// Duplex runs the bidirectional splice between tcp and tunnel until both
// halves have stopped: tcp EOF triggers tunnel.Shutdown() (a Close packet,
// not a socket close); tunnel EOF triggers a TCP half-close. The first
// non-nil error observed by either half is returned; both halves still run
// to completion regardless.
func Duplex(tcp net.Conn, tunnel *wsconn.Adapter) (Stats, error) {
	var (
		stats   Stats
		wg      sync.WaitGroup
		errOnce sync.Once
		firstErr error
	)
	recordErr := func(err error) {
		if err == nil {
			return
		}
		errOnce.Do(func() { firstErr = err })
	}

	wg.Add(2)

	go func() {
		defer wg.Done()
		n, err := io.Copy(tunnel, tcp)
		stats.TCPToTunnel = n
		// tcp reached EOF (or failed): tell the tunnel side the logical
		// stream is over. A pre-existing tunnel write error from the other
		// goroutine means Shutdown will likely also fail; that's fine, it
		// surfaces through that goroutine's own return.
		_ = tunnel.Shutdown()
		if err != nil && err != io.EOF {
			recordErr(err)
		}
	}()

	go func() {
		defer wg.Done()
		n, err := io.Copy(tcp, tunnel)
		stats.TunnelToTCP = n
		halfCloseWrite(tcp)
		if err != nil && err != io.EOF {
			recordErr(err)
		}
	}()

	wg.Wait()
	return stats, firstErr
}

// halfCloseWrite half-closes the write side of tcp if it supports
// CloseWrite (as *net.TCPConn does), so the peer observes EOF without
// tearing down the whole connection; callers close the full connection
// themselves once both halves are done.
func halfCloseWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		_ = wc.CloseWrite()
		return
	}
	_ = conn.Close()
}
