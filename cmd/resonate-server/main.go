// ABOUTME: Entry point for the Resonate session server
// ABOUTME: Loads configuration and runs the authoritative peer with an optional monitor
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-sessions/internal/config"
	"github.com/Resonate-Protocol/resonate-sessions/internal/logging"
	"github.com/Resonate-Protocol/resonate-sessions/internal/ui"
	"github.com/Resonate-Protocol/resonate-sessions/internal/version"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/resonate"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
	"github.com/rs/zerolog"
)

var (
	configFile = flag.String("config", "", "Config file (default: ./resonate.yaml if present)")
	port       = flag.Int("port", resonate.DefaultPort, "HTTP and WebSocket port")
	name       = flag.String("name", "", "Server friendly name (default: hostname-resonate-server)")
	logFile    = flag.String("log-file", "resonate-server.log", "Log file path")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	debug      = flag.Bool("debug", false, "Enable per-message debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noAudio    = flag.Bool("no-audio", false, "Host persistent sessions only, without local playback")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	play       = flag.String("play", "", "Resource to start as a persistent looped session at launch")
)

// flagOverrides maps explicitly set flags to config keys
func flagOverrides() map[string]any {
	overrides := make(map[string]any)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			overrides["server.port"] = *port
		case "name":
			overrides["server.name"] = *name
		case "log-file":
			overrides["log.file"] = *logFile
		case "log-level":
			overrides["log.level"] = *logLevel
		case "debug":
			overrides["server.debug"] = *debug
		case "no-mdns":
			overrides["server.mdns"] = !*noMDNS
		case "no-audio":
			overrides["server.audio"] = !*noAudio
		case "no-tui":
			overrides["server.tui"] = !*noTUI
		}
	})
	return overrides
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile, flagOverrides())
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Log.File == "" {
		cfg.Log.File = *logFile
	}
	if cfg.Server.Debug && !flagSet("log-level") {
		cfg.Log.Level = "debug"
	}

	useTUI := cfg.Server.TUI
	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: !useTUI,
	})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = closer.Close() }()

	serverName := cfg.Server.Name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-resonate-server", hostname)
	}

	logger.Info().
		Str("version", version.Version).
		Str("name", serverName).
		Int("port", cfg.Server.Port).
		Str("config", cfg.Source).
		Msg("starting Resonate server")

	var backend session.Backend
	if cfg.Server.Audio {
		b, err := output.NewOto(output.Config{Logger: &logger})
		if err != nil {
			logger.Warn().Err(err).Msg("audio output unavailable, hosting persistent sessions only")
		} else {
			backend = b
		}
	}

	srv, err := resonate.NewServer(resonate.ServerConfig{
		Port:       cfg.Server.Port,
		Name:       serverName,
		EnableMDNS: cfg.Server.MDNS,
		Backend:    backend,
		Logger:     &logger,
		Debug:      cfg.Server.Debug,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server")
	}

	if *play != "" {
		sc := session.Config{Resource: *play, Looped: true, Persistent: true}
		if _, err := srv.Play(sc, "", ""); err != nil {
			logger.Error().Err(err).Str("resource", *play).Msg("failed to start session")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var monitor *ui.Monitor
	if useTUI {
		monitor = ui.NewMonitor(fmt.Sprintf("%s %s", serverName, version.String()))
		go runMonitor(srv, monitor, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-quitChan(monitor):
		logger.Info().Msg("quit from monitor")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}

	if monitor != nil {
		monitor.Stop()
	}
	srv.Stop()
	logger.Info().Msg("server stopped")
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func quitChan(monitor *ui.Monitor) <-chan ui.QuitMsg {
	if monitor == nil {
		return nil
	}
	return monitor.Control().Quit
}

// runMonitor feeds the monitor and applies its key actions to the server
func runMonitor(srv *resonate.Server, monitor *ui.Monitor, logger zerolog.Logger) {
	go func() {
		if err := monitor.Run(); err != nil {
			logger.Error().Err(err).Msg("monitor error")
		}
	}()

	connected := true
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	ctrl := monitor.Control()
	for {
		select {
		case change := <-ctrl.Changes:
			srv.SetVolume(change.Volume, change.Group)
		case id := <-ctrl.Stops:
			srv.StopSession(id)
		case <-ticker.C:
		}

		peers := srv.Peers()
		names := make([]string, 0, len(peers))
		for _, p := range peers {
			names = append(names, p.Name)
		}
		monitor.Update(ui.StatusMsg{
			Connected: &connected,
			Peers:     names,
			Sessions:  srv.Sessions(),
			Groups:    srv.Groups(),
		})
	}
}
