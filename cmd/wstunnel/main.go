// Command wstunnel runs either half of the SOCKS5-over-WebSocket tunnel,
// selected by -mode.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulGUZU/wstunnel/internal/client"
	"github.com/paulGUZU/wstunnel/internal/config"
	"github.com/paulGUZU/wstunnel/internal/logging"
	"github.com/paulGUZU/wstunnel/internal/server"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	sugar, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer sugar.Sync()

	switch cfg.Mode {
	case config.ModeClient:
		if err := client.Run(cfg, sugar); err != nil {
			sugar.Fatalw("client exited", "error", err)
		}
	case config.ModeServer:
		tlsConfig, err := cfg.LoadServerTLSConfig()
		if err != nil {
			sugar.Fatalw("tls config", "error", err)
		}

		handler := server.NewHandler(cfg, sugar)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := server.Serve(ctx, cfg.ListenAddr, tlsConfig, handler); err != nil {
			sugar.Fatalw("server exited", "error", err)
		}
	}
}
