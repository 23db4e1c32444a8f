package client

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/paulGUZU/wstunnel/internal/config"
	"github.com/paulGUZU/wstunnel/internal/copyio"
	"github.com/paulGUZU/wstunnel/internal/pool"
	"github.com/paulGUZU/wstunnel/internal/protocol"
	"github.com/paulGUZU/wstunnel/internal/wsconn"
	"github.com/paulGUZU/wstunnel/pkg/banner"
)

// defaultMaxIdle bounds the pool's idle WebSocket connections; it does not
// bound the number of concurrently leased tunnels (§4.5).
const defaultMaxIdle = 16

// Run starts the SOCKS5 front end and blocks until it exits.
func Run(cfg *config.Config, log *zap.SugaredLogger) error {
	builder, err := NewWebsocketBuilder(cfg.ProxyAddr, cfg.Authorization, &tls.Config{}, log)
	if err != nil {
		return err
	}
	wsPool := NewPool(builder, defaultMaxIdle)

	srv := NewSOCKS5Server(cfg.ListenAddr, newHandler(wsPool, log), log)

	banner.Print("CLIENT")
	banner.PrintClientStatus(cfg.ListenAddr, cfg.ProxyAddr)

	return srv.ListenAndServe()
}

// newHandler builds the Handler that leases a tunnel from wsPool, sends the
// Connect packet, and runs the duplex copy against conn (§4.6).
func newHandler(wsPool *pool.Pool[*websocket.Conn], log *zap.SugaredLogger) Handler {
	return func(ctx context.Context, addr protocol.Addr, conn net.Conn) {
		defer conn.Close()

		wsConn, err := wsPool.Get(ctx)
		if err != nil {
			log.Warnw("tunnel lease failed", "target", addr, "error", err)
			return
		}

		adapter := wsconn.New(wsConn)
		leaseReturned := false
		returnLease := func() {
			if leaseReturned {
				return
			}
			leaseReturned = true
			wsPool.Put(wsConn)
		}
		dropLease := func() {
			if leaseReturned {
				return
			}
			leaseReturned = true
			_ = adapter.Close()
		}

		if err := adapter.SendConnect(addr); err != nil {
			log.Warnw("send connect packet failed", "target", addr, "error", err)
			dropLease()
			return
		}

		stats, err := copyio.Duplex(conn, adapter)
		if err != nil {
			log.Warnw("tunnel closed with error", "target", addr, "error", err,
				"bytes_out", stats.TCPToTunnel, "bytes_in", stats.TunnelToTCP)
			dropLease()
			return
		}

		log.Debugw("tunnel closed", "target", addr,
			"bytes_out", stats.TCPToTunnel, "bytes_in", stats.TunnelToTCP)
		returnLease()
	}
}
