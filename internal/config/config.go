// Package config parses the daemon's CLI surface and builds the TLS
// material the server side needs to terminate wss://.
package config

import (
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
)

// Mode selects which half of the tunnel a process runs as.
type Mode string

const (
	ModeClient Mode = "client"
	ModeServer Mode = "server"
)

// Config holds the parsed CLI surface (spec §6): mode, listen_addr,
// proxy_addr (client), fullchain/private_key (server), authorization.
type Config struct {
	Mode          Mode
	ListenAddr    string
	ProxyAddr     string
	Fullchain     string
	PrivateKey    string
	Authorization string
	Debug         bool
}

// Parse reads args (normally os.Args[1:]) into a Config and validates the
// combination required for the selected mode. Errors here are configuration
// errors: callers should treat them as fatal startup failures (spec §7).
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("wstunnel", flag.ContinueOnError)

	mode := fs.String("mode", "", "daemon role: client or server")
	listenAddr := fs.String("listen_addr", "", "local bind host:port")
	proxyAddr := fs.String("proxy_addr", "", "server host used to form wss://<host>/ (client)")
	fullchain := fs.String("fullchain", "", "path to cert-chain PEM (server)")
	privateKey := fs.String("private_key", "", "path to key PEM (server)")
	authorization := fs.String("authorization", "", "shared secret carried in the HTTP Authorization header")
	debug := fs.Bool("debug", false, "enable development-mode logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Mode:          Mode(*mode),
		ListenAddr:    *listenAddr,
		ProxyAddr:     *proxyAddr,
		Fullchain:     *fullchain,
		PrivateKey:    *privateKey,
		Authorization: *authorization,
		Debug:         *debug,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeClient, ModeServer:
	default:
		return fmt.Errorf("config: mode must be %q or %q, got %q", ModeClient, ModeServer, c.Mode)
	}
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr is required")
	}
	if c.Authorization == "" {
		return errors.New("config: authorization is required")
	}

	if c.Mode == ModeClient && c.ProxyAddr == "" {
		return errors.New("config: proxy_addr is required in client mode")
	}
	if c.Mode == ModeServer {
		if c.Fullchain == "" {
			return errors.New("config: fullchain is required in server mode")
		}
		if c.PrivateKey == "" {
			return errors.New("config: private_key is required in server mode")
		}
	}
	return nil
}

// LoadServerTLSConfig loads the certificate chain and private key named by
// Fullchain/PrivateKey and returns a tls.Config presenting that single
// certificate. No client-certificate authentication (spec §6).
func (c *Config) LoadServerTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.Fullchain, c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("config: load cert/key: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
