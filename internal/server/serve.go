package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/paulGUZU/wstunnel/internal/config"
	"github.com/paulGUZU/wstunnel/internal/copyio"
	"github.com/paulGUZU/wstunnel/internal/protocol"
	"github.com/paulGUZU/wstunnel/internal/wsconn"
	"github.com/paulGUZU/wstunnel/pkg/banner"
)

// dialTimeout bounds the upstream TCP dial on the server side of a tunnel.
const dialTimeout = 10 * time.Second

// Handler performs the WebSocket upgrade with an Authorization check, reads
// the first Connect packet, dials upstream, and runs the duplex copy (§4.7).
// TLS is already terminated by Serve's listener before requests reach it.
type Handler struct {
	authorization string
	upgrader      websocket.Upgrader
	log           *zap.SugaredLogger
}

func NewHandler(cfg *config.Config, log *zap.SugaredLogger) *Handler {
	return &Handler{
		authorization: cfg.Authorization,
		upgrader:      websocket.Upgrader{},
		log:           log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != h.authorization {
		http.Error(w, "invalid authorization", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	go h.serveTunnel(conn)
}

func (h *Handler) serveTunnel(conn *websocket.Conn) {
	defer conn.Close()

	adapter := wsconn.New(conn)
	addr, err := adapter.ReadConnect()
	if err != nil {
		h.log.Warnw("first tunnel message was not a Connect packet", "error", err)
		return
	}

	upstream, err := dialUpstream(addr)
	if err != nil {
		h.log.Warnw("upstream dial failed", "target", addr, "error", err)
		return
	}
	defer upstream.Close()

	stats, err := copyio.Duplex(upstream, adapter)
	if err != nil {
		h.log.Warnw("tunnel closed with error", "target", addr, "error", err,
			"bytes_in", stats.TCPToTunnel, "bytes_out", stats.TunnelToTCP)
		return
	}
	h.log.Debugw("tunnel closed", "target", addr,
		"bytes_in", stats.TCPToTunnel, "bytes_out", stats.TunnelToTCP)
}

// dialUpstream resolves addr (DNS lookup for the domain form) and dials the
// first resolved address that connects.
func dialUpstream(addr protocol.Addr) (net.Conn, error) {
	if addr.Type != protocol.AddrDomain {
		return net.DialTimeout("tcp", addr.HostPort(), dialTimeout)
	}

	ips, err := net.LookupIP(addr.Name)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, errors.New("server: no addresses resolved for " + addr.Name)
	}

	var lastErr error
	for _, ip := range ips {
		hostPort := net.JoinHostPort(ip.String(), strconv.Itoa(int(addr.Port)))
		conn, dialErr := net.DialTimeout("tcp", hostPort, dialTimeout)
		if dialErr == nil {
			return conn, nil
		}
		lastErr = dialErr
	}
	return nil, lastErr
}

// Serve terminates TLS on listenAddr using tlsConfig and serves upgrades via
// Handler until the listener fails.
func Serve(ctx context.Context, listenAddr string, tlsConfig *tls.Config, handler *Handler) error {
	listener, err := tls.Listen("tcp", listenAddr, tlsConfig)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	httpSrv := &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
	}()

	banner.Print("SERVER")
	banner.PrintServerStatus(listenAddr)

	err = httpSrv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
