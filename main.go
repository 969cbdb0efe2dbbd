// ABOUTME: Entry point for the Resonate session player
// ABOUTME: Finds a server, mirrors its persistent sessions and reconnects when it goes away
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
	"github.com/Resonate-Protocol/resonate-sessions/pkg/discovery"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/resonate"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
	"github.com/rs/zerolog"
)

var (
	configFile = flag.String("config", "", "Config file (default: ./resonate.yaml if present)")
	serverAddr = flag.String("server", "", "Manual server address (skip mDNS)")
	name       = flag.String("name", "", "Player friendly name (default: hostname-resonate-player)")
	logFile    = flag.String("log-file", "resonate-player.log", "Log file path")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs = flag.Bool("stream-logs", false, "Alias for -no-tui")
)

func flagOverrides() map[string]any {
	overrides := make(map[string]any)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			overrides["player.server"] = *serverAddr
		case "name":
			overrides["player.name"] = *name
		case "log-file":
			overrides["log.file"] = *logFile
		case "log-level":
			overrides["log.level"] = *logLevel
		case "no-tui", "stream-logs":
			overrides["player.tui"] = !(*noTUI || *streamLogs)
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

	// TUI mode logs only to file
	useTUI := cfg.Player.TUI
	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: !useTUI,
	})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = closer.Close() }()

	playerName := cfg.Player.Name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-resonate-player", hostname)
	}

	logger.Info().Str("version", version.Version).Str("name", playerName).Msg("starting Resonate player")

	var monitor *ui.Monitor
	if useTUI {
		monitor = ui.NewMonitor(fmt.Sprintf("%s %s", playerName, version.String()))
		go func() {
			if err := monitor.Run(); err != nil {
				logger.Error().Err(err).Msg("monitor error")
			}
		}()
	}

	serverAddress := cfg.Player.Server
	if serverAddress == "" {
		info, err := discover(cfg.Player.DiscoveryTimeout, logger)
		if err != nil {
			stopMonitor(monitor)
			logger.Fatal().Err(err).Msg("server discovery failed")
		}
		serverAddress = info.Addr()
	}

	backend, err := output.NewOto(output.Config{Logger: &logger})
	if err != nil {
		stopMonitor(monitor)
		logger.Fatal().Err(err).Msg("audio output unavailable")
	}

	player, err := resonate.NewPlayer(resonate.PlayerConfig{
		ServerAddr: serverAddress,
		PlayerName: playerName,
		DeviceInfo: resonate.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		Backend: backend,
		Logger:  &logger,
		OnSessionStarted: func(id, group string, sc session.Config) {
			logger.Info().Str("session", id).Str("group", group).Str("resource", sc.Resource).Msg("mirrored session")
		},
		OnSessionStopped: func(id string) {
			logger.Info().Str("session", id).Msg("mirrored session stopped")
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("player error")
		},
	})
	if err != nil {
		stopMonitor(monitor)
		logger.Fatal().Err(err).Msg("failed to create player")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	stop := make(chan struct{})
	go connectLoop(player, cfg.Player.Reconnect, serverAddress, monitor, logger, stop)
	if monitor != nil {
		go handleControl(player, monitor, stop)
	}

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-quitChan(monitor):
		logger.Info().Msg("received quit signal from TUI")
	}

	close(stop)
	stopMonitor(monitor)
	if err := player.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing player")
	}
	logger.Info().Msg("player stopped")
}

// discover browses mDNS until a server answers or timeout passes
func discover(timeout time.Duration, logger zerolog.Logger) (*discovery.ServerInfo, error) {
	logger.Info().Msg("starting server discovery")

	disc := discovery.NewManager(discovery.Config{Logger: &logger})
	defer disc.Stop()

	if err := disc.Browse(); err != nil {
		return nil, err
	}

	select {
	case info := <-disc.Servers():
		logger.Info().Str("server", info.Name).Str("addr", info.Addr()).Msg("discovered server")
		return info, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no server found after %s", timeout)
	}
}

// connectLoop keeps the player connected, retrying every interval
func connectLoop(player *resonate.Player, interval time.Duration, addr string, monitor *ui.Monitor, logger zerolog.Logger, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		if err := player.Connect(); err != nil {
			logger.Warn().Err(err).Dur("retry_in", interval).Msg("connection failed")
		} else {
			connected := true
			updateMonitor(monitor, ui.StatusMsg{Connected: &connected, ServerName: addr})

			select {
			case <-player.Done():
			case <-stop:
				return
			}

			disconnected := false
			updateMonitor(monitor, ui.StatusMsg{Connected: &disconnected})
		}

		select {
		case <-time.After(interval):
		case <-stop:
			return
		}
	}
}

// handleControl applies monitor key actions and refreshes its state
func handleControl(player *resonate.Player, monitor *ui.Monitor, stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	ctrl := monitor.Control()
	for {
		select {
		case change := <-ctrl.Changes:
			player.SetVolume(change.Volume, change.Group)
		case id := <-ctrl.Stops:
			player.Stop(id)
		case <-ticker.C:
		case <-stop:
			return
		}

		monitor.Update(ui.StatusMsg{
			Sessions: player.Sessions(),
			Groups:   player.Groups(),
		})
	}
}

func updateMonitor(monitor *ui.Monitor, msg ui.StatusMsg) {
	if monitor != nil {
		monitor.Update(msg)
	}
}

func stopMonitor(monitor *ui.Monitor) {
	if monitor != nil {
		monitor.Stop()
	}
}

func quitChan(monitor *ui.Monitor) <-chan ui.QuitMsg {
	if monitor == nil {
		return nil
	}
	return monitor.Control().Quit
}
