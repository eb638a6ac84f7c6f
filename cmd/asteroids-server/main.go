// Command asteroids-server runs the authoritative game process: session
// registry, fixed-tick world simulation, and snapshot/leaderboard
// broadcast over the SR transport. Its startup sequence — config load,
// logger init, signal-driven graceful shutdown — follows the teacher's
// core/main.go, generalized from an SA-MP RakNet relay to this spec's own
// tick/session pipeline.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpasteros/asteroids-net/internal/applog"
	"github.com/dpasteros/asteroids-net/internal/config"
	"github.com/dpasteros/asteroids-net/internal/gameserver"
)

const version = "1.0.0"

func main() {
	cfgPath := "asteroids-server.cfg"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	var invalid *config.InvalidError
	if errors.As(err, &invalid) {
		fmt.Fprintf(os.Stderr, "asteroids-server: %v\n", err)
		os.Exit(1)
	}
	if err != nil {
		cfg = config.Defaults()
		fmt.Fprintf(os.Stderr, "asteroids-server: config %q not found, using defaults: %v\n", cfgPath, err)
	}

	applog.Init(applog.Options{Path: cfg.LogPath, Level: cfg.LogLevel, Stdout: true})
	defer applog.Sync()

	log := applog.L()
	log.Infow("starting asteroids-server", "version", version, "addr", fmt.Sprintf("%s:%d", cfg.ServerIP, cfg.ServerUDPPort))

	srv, err := gameserver.New(cfg)
	if err != nil {
		log.Fatalw("failed to construct server", "err", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			log.Infow("serving metrics", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, srv.Metrics().Handler()); err != nil {
				log.Errorw("metrics listener stopped", "err", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		log.Fatalw("server error", "err", err)
	case sig := <-sigChan:
		log.Infow("received signal, shutting down", "signal", sig.String())
		srv.Stop()
		time.Sleep(200 * time.Millisecond)
		log.Infow("server stopped")
		os.Exit(0)
	}
}
