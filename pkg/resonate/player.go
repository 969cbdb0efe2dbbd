// ABOUTME: High-level Player API for the dependent peer
// ABOUTME: Mirrors sessions announced by the server into a local registry
package resonate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/protocol"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrDisconnected is reported through OnError when the server goes away
var ErrDisconnected = errors.New("disconnected from server")

const (
	// The server may still hold our previous connection for a moment and
	// rejects a second one with the same client id.
	reconnectAttempts = 5
	reconnectBackoff  = 200 * time.Millisecond
)

// PlayerConfig holds player configuration
type PlayerConfig struct {
	// ServerAddr is the server address (host:port)
	ServerAddr string

	// PlayerName is the display name for this player
	PlayerName string

	// ClientID identifies this player; generated when empty
	ClientID string

	// DeviceInfo provides device identification
	DeviceInfo DeviceInfo

	// Backend creates local playbacks (required)
	Backend session.Backend

	// Logger receives structured logs; nil discards them
	Logger *zerolog.Logger

	// OnSessionStarted is called after a replicated session starts locally
	OnSessionStarted func(id, group string, cfg session.Config)

	// OnSessionStopped is called after a replicated stop is applied
	OnSessionStopped func(id string)

	// OnError is called when errors occur
	OnError func(error)
}

// DeviceInfo describes the player device
type DeviceInfo struct {
	ProductName     string
	Manufacturer    string
	SoftwareVersion string
}

// Player is the dependent peer
type Player struct {
	config   PlayerConfig
	logger   zerolog.Logger
	registry *session.Registry

	// connectMu serializes Connect and Close
	connectMu sync.Mutex

	mu        sync.Mutex
	client    *protocol.Client
	connected bool
	// handled is closed once the current client's event handler has exited
	handled chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPlayer creates a new player with the given configuration
func NewPlayer(config PlayerConfig) (*Player, error) {
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if config.Backend == nil {
		return nil, session.ErrNoBackend
	}
	if config.PlayerName == "" {
		config.PlayerName = "Resonate Player"
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.DeviceInfo.ProductName == "" {
		config.DeviceInfo.ProductName = "Resonate Player"
	}
	if config.DeviceInfo.Manufacturer == "" {
		config.DeviceInfo.Manufacturer = "Resonate"
	}
	if config.DeviceInfo.SoftwareVersion == "" {
		config.DeviceInfo.SoftwareVersion = "1.0.0"
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Player{
		config: config,
		logger: logger.With().Str("module", "resonate.player").Str("server", config.ServerAddr).Logger(),
		registry: session.NewRegistry(session.Options{
			Role:    session.RoleDependent,
			Backend: config.Backend,
			Logger:  config.Logger,
		}),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Connect performs the handshake, starts the registry and asks the server
// for one catch-up so sessions created before this player joined are mirrored.
// A previous connection is closed and its local copies dropped first.
// Callbacks must not call Connect or Close.
func (p *Player) Connect() error {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	if p.ctx.Err() != nil {
		return fmt.Errorf("player closed")
	}

	attempts := 1
	if p.endConnection() {
		attempts = reconnectAttempts
	}

	var client *protocol.Client
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(reconnectBackoff):
			case <-p.ctx.Done():
				return fmt.Errorf("player closed")
			}
		}
		client = p.newClient()
		if err = client.Connect(); err == nil {
			break
		}
		p.logger.Debug().Err(err).Int("attempt", i+1).Msg("connect attempt failed")
	}
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	handled := make(chan struct{})

	p.mu.Lock()
	p.client = client
	p.connected = true
	p.handled = handled
	p.mu.Unlock()

	p.registry.Start()
	p.logger.Info().Str("server_name", client.Server().Name).Msg("connected to server")

	go p.handleEvents(client, handled)

	if err := client.RequestCatchUp(); err != nil {
		client.Close()
		return fmt.Errorf("catch-up request failed: %w", err)
	}

	return nil
}

func (p *Player) newClient() *protocol.Client {
	return protocol.NewClient(protocol.Config{
		ServerAddr: p.config.ServerAddr,
		ClientID:   p.config.ClientID,
		Name:       p.config.PlayerName,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     p.config.DeviceInfo.ProductName,
			Manufacturer:    p.config.DeviceInfo.Manufacturer,
			SoftwareVersion: p.config.DeviceInfo.SoftwareVersion,
		},
		Logger: p.config.Logger,
	})
}

// endConnection closes the current client and waits for its handler, which
// drops the local copies. Once it returns no stale event can reach the
// registry. It reports whether there was a previous connection.
func (p *Player) endConnection() bool {
	p.mu.Lock()
	client, handled := p.client, p.handled
	p.mu.Unlock()

	if client == nil {
		return false
	}
	client.Close()
	<-handled
	return true
}

// handleEvents applies replicated starts and stops in arrival order until
// the connection ends, then drops every local copy
func (p *Player) handleEvents(client *protocol.Client, handled chan struct{}) {
	for {
		// A closed connection wins over events still buffered
		select {
		case <-client.Done():
			p.disconnected(client, handled)
			return
		default:
		}

		select {
		case ev := <-client.Events:
			p.apply(ev)
		case <-client.Done():
			p.disconnected(client, handled)
			return
		}
	}
}

// disconnected drops local copies without telling the server
func (p *Player) disconnected(client *protocol.Client, handled chan struct{}) {
	p.mu.Lock()
	if p.client == client {
		p.connected = false
	}
	p.mu.Unlock()

	p.registry.Shutdown()
	close(handled)

	if p.ctx.Err() == nil {
		p.logger.Warn().Msg("disconnected from server")
		p.notifyError(ErrDisconnected)
	}
}

func (p *Player) apply(ev protocol.SessionEvent) {
	switch {
	case ev.Start != nil:
		cfg := fromWire(ev.Start.Config)
		sess, err := p.registry.Mirror(cfg, ev.Start.ID, ev.Start.Group)
		if err != nil {
			p.logger.Warn().Err(err).Str("session", ev.Start.ID).Msg("failed to mirror session")
			p.notifyError(fmt.Errorf("mirror %s: %w", ev.Start.ID, err))
			return
		}
		if sess != nil && p.config.OnSessionStarted != nil {
			p.config.OnSessionStarted(sess.ID, sess.Group, sess.Config)
		}

	case ev.Stop != nil:
		p.registry.Stop(ev.Stop.ID)
		if p.config.OnSessionStopped != nil {
			p.config.OnSessionStopped(ev.Stop.ID)
		}
	}
}

// Play starts a local session. It is never announced to anyone.
func (p *Player) Play(cfg session.Config, id, group string) (*session.Session, error) {
	return p.registry.Play(cfg, id, group)
}

// Stop stops a local session, mirrored or not
func (p *Player) Stop(id string) {
	p.registry.Stop(id)
}

// SetVolume sets the local volume of group
func (p *Player) SetVolume(volume float64, group string) {
	p.registry.SetVolume(volume, group)
}

// Volume returns the local volume of group
func (p *Player) Volume(group string) float64 {
	return p.registry.Volume(session.Resolve(group, session.DefaultGroup))
}

// Groups returns the local group volume table
func (p *Player) Groups() map[string]float64 {
	return p.registry.Groups()
}

// Sessions lists the live local sessions in creation order
func (p *Player) Sessions() []session.SessionInfo {
	return p.registry.Snapshot()
}

// Connected reports whether the player currently has a server connection
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Done is closed when the current connection ends
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.client.Done()
}

// Close says goodbye to the server and drops every local session
func (p *Player) Close() error {
	p.cancel()

	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.Lock()
	client := p.client
	p.connected = false
	p.mu.Unlock()

	if client != nil && client.IsConnected() {
		if err := client.SendGoodbye("shutdown"); err != nil {
			p.logger.Debug().Err(err).Msg("goodbye not sent")
		}
	}
	p.endConnection()

	p.registry.Shutdown()
	return nil
}

func (p *Player) notifyError(err error) {
	if p.config.OnError != nil {
		p.config.OnError(err)
	}
}
