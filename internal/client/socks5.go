package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/paulGUZU/wstunnel/internal/protocol"
)

const verSocks5 = 0x05

// Handler is invoked once the SOCKS5 handshake has produced a target Addr
// for an inbound connection. The SOCKS5Server has already sent the success
// reply before calling Handler (per §4.1's reference behavior), so Handler
// writes no SOCKS5 reply; it owns conn from this point and must close it
// when done.
type Handler func(ctx context.Context, addr protocol.Addr, conn net.Conn)

// SOCKS5Server accepts local TCP connections, drives the RFC 1928 greeting
// and CONNECT request state machine, and hands each resulting (addr, conn)
// pair to a Handler.
type SOCKS5Server struct {
	addr    string
	handler Handler
	log     *zap.SugaredLogger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	done     chan struct{}
	serveErr chan error
	wg       sync.WaitGroup
}

func NewSOCKS5Server(listenAddr string, handler Handler, log *zap.SugaredLogger) *SOCKS5Server {
	return &SOCKS5Server{
		addr:    listenAddr,
		handler: handler,
		log:     log,
		conns:   make(map[net.Conn]struct{}),
	}
}

func (s *SOCKS5Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("socks5: server already running")
	}

	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.done = make(chan struct{})
	s.serveErr = make(chan error, 1)

	s.log.Infow("socks5 listening", "addr", s.addr)
	go s.acceptLoop(l, s.done, s.serveErr)
	return nil
}

func (s *SOCKS5Server) ListenAndServe() error {
	if err := s.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	done := s.done
	errCh := s.serveErr
	s.mu.Unlock()

	<-done
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (s *SOCKS5Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	done := s.done
	s.listener = nil
	activeConns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		activeConns = append(activeConns, conn)
	}
	if l == nil && len(activeConns) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if l != nil {
		if err := l.Close(); err != nil {
			return err
		}
	}
	for _, conn := range activeConns {
		_ = conn.Close()
	}

	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SOCKS5Server) acceptLoop(l net.Listener, done chan struct{}, errCh chan error) {
	defer close(done)
	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			currentListener := s.listener
			s.mu.Unlock()

			if currentListener == nil {
				return
			}
			select {
			case errCh <- err:
			default:
			}
			return
		}
		if !s.trackConn(conn) {
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackConn(conn)
			s.handleConnection(conn)
		}()
	}
}

func (s *SOCKS5Server) trackConn(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *SOCKS5Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleConnection drives AwaitGreeting -> AwaitRequest -> SendReply, then
// calls Handler. Handler owns conn past this point (and closes it).
func (s *SOCKS5Server) handleConnection(conn net.Conn) {
	addr, ok := s.negotiate(conn)
	if !ok {
		conn.Close()
		return
	}
	s.handler(context.Background(), addr, conn)
}

// negotiate runs the greeting and request states. It replies [0x05, 0x00]
// after a valid greeting, and [0x05, 0x00, 0x00] + the echoed Addr after a
// valid request. Any failure closes conn without a partial reply, per
// spec's reference behavior (no RepCode failure replies on this path; only
// the success case ever writes a SendReply).
func (s *SOCKS5Server) negotiate(conn net.Conn) (protocol.Addr, bool) {
	var zero protocol.Addr

	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		return zero, false
	}
	if header[0] != verSocks5 {
		return zero, false
	}
	methods := make([]byte, int(header[1]))
	if _, err := io.ReadFull(conn, methods); err != nil {
		return zero, false
	}
	if !containsNoAuth(methods) {
		return zero, false
	}
	if _, err := conn.Write([]byte{verSocks5, 0x00}); err != nil {
		return zero, false
	}

	reqHeader := make([]byte, 3)
	if _, err := io.ReadFull(conn, reqHeader); err != nil {
		return zero, false
	}
	if reqHeader[0] != verSocks5 {
		return zero, false
	}
	cmd, err := protocol.DecodeCommand(reqHeader[1])
	if err != nil || cmd != protocol.CmdConnect {
		return zero, false
	}

	addr, err := protocol.DecodeSocksAddr(conn)
	if err != nil {
		return zero, false
	}

	reply, err := addr.EncodeSocksAddr()
	if err != nil {
		return zero, false
	}
	out := make([]byte, 0, 3+len(reply))
	out = append(out, verSocks5, byte(protocol.RepSuccess), 0x00)
	out = append(out, reply...)
	if _, err := conn.Write(out); err != nil {
		return zero, false
	}

	return addr, true
}

func containsNoAuth(methods []byte) bool {
	for _, m := range methods {
		if m == 0x00 {
			return true
		}
	}
	return false
}
