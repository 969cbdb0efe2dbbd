// ABOUTME: WebSocket client for the Resonate session protocol
// ABOUTME: Handles connection, handshake, catch-up requests and ordered event routing
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// DefaultPath is the WebSocket endpoint served by the authoritative peer
	DefaultPath = "/resonate"

	// ProtocolVersion is the protocol version spoken by this client
	ProtocolVersion = 1

	handshakeTimeout = 5 * time.Second
	writeTimeout     = 10 * time.Second
)

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string
	ClientID   string
	Name       string
	Version    int
	DeviceInfo DeviceInfo
	Logger     *zerolog.Logger
}

// Client is the dependent peer's connection to the authoritative peer
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.Mutex
	logger zerolog.Logger

	// Events delivers session/start and session/stop in arrival order
	Events chan SessionEvent

	server    ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.Version == 0 {
		config.Version = ProtocolVersion
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config: config,
		logger: logger.With().Str("module", "protocol.client").Str("server", config.ServerAddr).Logger(),
		Events: make(chan SessionEvent, 256),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.logger.Info().Str("url", u.String()).Msg("connecting")

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		Version:    c.config.Version,
		DeviceInfo: &c.config.DeviceInfo,
	}

	if err := c.sendJSON(Message{Type: TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if msg.Type != TypeServerHello {
		return fmt.Errorf("expected %s, got %s", TypeServerHello, msg.Type)
	}

	var server ServerHello
	if err := DecodePayload(msg, &server); err != nil {
		return err
	}

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	c.logger.Info().Str("server_id", server.ServerID).Str("server_name", server.Name).Msg("handshake complete")
	return nil
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() ServerHello {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// sendJSON writes a message; gorilla connections allow one writer at a time
func (c *Client) sendJSON(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages until the connection ends
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Debug().Int("ws_type", messageType).Msg("ignoring non-text frame")
			continue
		}

		c.handleJSONMessage(data)
	}
}

// handleJSONMessage routes session lifecycle messages onto Events
func (c *Client) handleJSONMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn().Err(err).Msg("failed to parse message")
		return
	}

	var ev SessionEvent
	switch msg.Type {
	case TypeSessionStart:
		var start SessionStart
		if err := DecodePayload(msg, &start); err != nil {
			c.logger.Warn().Err(err).Msg("bad session/start")
			return
		}
		ev.Start = &start

	case TypeSessionStop:
		var stop SessionStop
		if err := DecodePayload(msg, &stop); err != nil {
			c.logger.Warn().Err(err).Msg("bad session/stop")
			return
		}
		ev.Stop = &stop

	default:
		c.logger.Debug().Str("type", msg.Type).Msg("unknown message type")
		return
	}

	select {
	case c.Events <- ev:
	case <-c.ctx.Done():
	}
}

// RequestCatchUp asks the server to re-announce every active persistent session
func (c *Client) RequestCatchUp() error {
	return c.sendJSON(Message{Type: TypeCatchUp, Payload: CatchUpRequest{}})
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(Message{Type: TypeClientGoodbye, Payload: ClientGoodbye{Reason: reason}})
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		c.logger.Info().Msg("connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
