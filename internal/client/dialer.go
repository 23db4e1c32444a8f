package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/paulGUZU/wstunnel/internal/pool"
)

// WebsocketBuilder is the pool.Builder that dials a fresh wss:// connection
// to the tunnel server, carrying the configured shared secret in the
// Authorization header.
type WebsocketBuilder struct {
	ServerURL     string
	Authorization string
	TLSConfig     *tls.Config
	Log           *zap.SugaredLogger
}

var _ pool.Builder[*websocket.Conn] = (*WebsocketBuilder)(nil)

// NewWebsocketBuilder validates proxyAddr and returns a builder that dials
// wss://<proxyAddr>/.
func NewWebsocketBuilder(proxyAddr, authorization string, tlsConfig *tls.Config, log *zap.SugaredLogger) (*WebsocketBuilder, error) {
	u := url.URL{Scheme: "wss", Host: proxyAddr, Path: "/"}
	if _, err := url.Parse(u.String()); err != nil {
		return nil, fmt.Errorf("client: invalid proxy_addr %q: %w", proxyAddr, err)
	}
	return &WebsocketBuilder{
		ServerURL:     u.String(),
		Authorization: authorization,
		TLSConfig:     tlsConfig,
		Log:           log,
	}, nil
}

// Build implements pool.Builder.
func (b *WebsocketBuilder) Build(ctx context.Context) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		TLSClientConfig:  b.TLSConfig,
		HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
	}

	header := http.Header{}
	header.Set("Authorization", b.Authorization)

	conn, resp, err := dialer.DialContext(ctx, b.ServerURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: dial %s: %w (status %s)", b.ServerURL, err, resp.Status)
		}
		return nil, fmt.Errorf("client: dial %s: %w", b.ServerURL, err)
	}
	b.Log.Debugw("dialed new tunnel connection", "url", b.ServerURL)
	return conn, nil
}

// NewPool builds a *pool.Pool[*websocket.Conn] backed by b, keeping at most
// maxIdle idle tunnel connections.
func NewPool(b *WebsocketBuilder, maxIdle int) *pool.Pool[*websocket.Conn] {
	return pool.New[*websocket.Conn](b, maxIdle)
}
