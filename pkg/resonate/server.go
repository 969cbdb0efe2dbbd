// ABOUTME: Authoritative session server for the Resonate protocol
// ABOUTME: Owns the registry, announces persistent sessions and answers catch-up
package resonate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-sessions/internal/observability"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/discovery"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/protocol"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// ProtocolVersion is the version of the session protocol we implement
	ProtocolVersion = protocol.ProtocolVersion

	// DefaultPath is the websocket endpoint
	DefaultPath = protocol.DefaultPath

	// DefaultPort is the port the server listens on when none is configured
	DefaultPort = 8927

	peerBufferSize = 256
	helloTimeout   = 5 * time.Second
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// ServerConfig configures a session server
type ServerConfig struct {
	// Port to listen on (default: 8927)
	Port int

	// Name of the server for identification
	Name string

	// EnableMDNS enables mDNS service advertisement
	EnableMDNS bool

	// Backend creates local playbacks for non-persistent sessions. A server
	// without a backend can still host persistent sessions.
	Backend session.Backend

	// Logger receives structured logs; nil discards them
	Logger *zerolog.Logger

	// Debug enables per-message logging
	Debug bool
}

// Server is the authoritative peer
type Server struct {
	config   ServerConfig
	serverID string
	logger   zerolog.Logger

	upgrader   websocket.Upgrader
	httpServer *http.Server
	handler    http.Handler

	registry *session.Registry
	metrics  *observability.Metrics

	peers   map[string]*peer
	peersMu sync.RWMutex

	mdnsManager *discovery.Manager

	ready      chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// peer is a connected dependent (internal)
type peer struct {
	ID          string
	Name        string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	// sendChan holds batches; a catch-up burst takes a single slot
	sendChan chan []protocol.Message
	mu       sync.Mutex
	closed   bool
}

// enqueue hands msgs to the writer as one batch; false means the peer is
// closed or full
func (p *peer) enqueue(msgs ...protocol.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	select {
	case p.sendChan <- msgs:
		return true
	default:
		return false
	}
}

// close stops the writer; safe to call more than once
func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.sendChan)
	}
}

// PeerInfo describes a connected dependent peer
type PeerInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
}

// NewServer creates a new session server
func NewServer(config ServerConfig) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Port < 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", config.Port)
	}
	if config.Name == "" {
		config.Name = "Resonate Server"
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		logger:   logger.With().Str("module", "resonate.server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local network deployments accept all origins
				return true
			},
		},
		metrics:  observability.NewMetrics("resonate"),
		peers:    make(map[string]*peer),
		ready:    make(chan struct{}),
		stopChan: make(chan struct{}),
	}

	s.registry = session.NewRegistry(session.Options{
		Role:        session.RoleAuthoritative,
		Backend:     config.Backend,
		Broadcaster: s,
		Logger:      config.Logger,
	})
	s.handler = s.routes()

	return s, nil
}

// ID returns the server's unique id
func (s *Server) ID() string {
	return s.serverID
}

// Start listens on the configured port and blocks until Stop is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve runs the server on ln and blocks until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("name", s.config.Name).Str("server_id", s.serverID).Msg("server starting")

	s.registry.Start()
	s.updateGauges()

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Logger:      s.config.Logger,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to start mDNS advertisement")
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("websocket server listening")
	close(s.ready)

	var serveErr error
	select {
	case <-s.stopChan:
		s.logger.Info().Msg("server shutting down")
	case serveErr = <-errChan:
		s.logger.Error().Err(serveErr).Msg("http server error")
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("http server shutdown error")
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.peersMu.RLock()
	for _, p := range s.peers {
		p.close()
		p.Conn.Close()
	}
	s.peersMu.RUnlock()

	s.wg.Wait()
	s.registry.Shutdown()
	s.logger.Info().Msg("server stopped cleanly")

	return serveErr
}

// Ready is closed once the server accepts connections
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Handler returns the HTTP handler serving websocket, admin and metrics routes
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Play creates a session; persistent sessions are announced to every peer
func (s *Server) Play(cfg session.Config, id, group string) (*session.Session, error) {
	sess, err := s.registry.Play(cfg, id, group)
	if err != nil {
		s.metrics.SessionEvents.WithLabelValues("failed").Inc()
		return nil, err
	}
	s.updateGauges()
	return sess, nil
}

// StopSession stops the session with id, announcing it when it was replicated
func (s *Server) StopSession(id string) {
	s.registry.Stop(id)
	s.updateGauges()
}

// SetVolume sets the local volume of group
func (s *Server) SetVolume(volume float64, group string) {
	s.registry.SetVolume(volume, group)
	s.metrics.GroupVolume.WithLabelValues(session.Resolve(group, session.DefaultGroup)).Set(volume)
}

// Volume returns the local volume of group
func (s *Server) Volume(group string) float64 {
	return s.registry.Volume(session.Resolve(group, session.DefaultGroup))
}

// Groups returns the local group volume table
func (s *Server) Groups() map[string]float64 {
	return s.registry.Groups()
}

// Sessions lists the live sessions in creation order
func (s *Server) Sessions() []session.SessionInfo {
	return s.registry.Snapshot()
}

// Peers returns information about all connected peers
func (s *Server) Peers() []PeerInfo {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()

	peers := make([]PeerInfo, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, PeerInfo{ID: p.ID, Name: p.Name, ConnectedAt: p.ConnectedAt})
	}
	return peers
}

// SessionStarted announces a persistent session to every connected peer
func (s *Server) SessionStarted(cfg session.Config, id, group string) {
	s.metrics.SessionEvents.WithLabelValues("started").Inc()
	s.broadcast(startMessage(cfg, id, group))
}

// SessionStopped announces the end of a persistent session
func (s *Server) SessionStopped(id string) {
	s.metrics.SessionEvents.WithLabelValues("stopped").Inc()
	s.broadcast(stopMessage(id))
}

// broadcast queues msg for every peer. It runs under the registry lock, so
// it never blocks: a peer that cannot keep up is disconnected.
func (s *Server) broadcast(msg protocol.Message) {
	var slow []*peer

	s.peersMu.RLock()
	for _, p := range s.peers {
		if !p.enqueue(msg) {
			slow = append(slow, p)
		} else {
			s.metrics.WSMessages.WithLabelValues("out", msg.Type).Inc()
		}
	}
	s.peersMu.RUnlock()

	for _, p := range slow {
		s.dropPeer(p)
	}
}

// dropPeer closes a peer whose buffer is full; it reconnects and catches up
func (s *Server) dropPeer(p *peer) {
	s.logger.Warn().Str("peer", p.Name).Str("peer_id", p.ID).Msg("peer send buffer full, disconnecting")
	s.metrics.DroppedPeers.Inc()
	p.close()
	p.Conn.Close()
}

func (s *Server) updateGauges() {
	s.metrics.ActiveSessions.Set(float64(s.registry.Len()))
	for group, volume := range s.registry.Groups() {
		s.metrics.GroupVolume.WithLabelValues(group).Set(volume)
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")
	s.handleConnection(conn)
}

// handleConnection manages a peer connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		s.logger.Debug().Msg("rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		s.logger.Debug().Err(err).Msg("error reading hello")
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug().Err(err).Msg("error unmarshaling message")
		return
	}

	if msg.Type != protocol.TypeClientHello {
		s.logger.Debug().Str("type", msg.Type).Msg("expected client/hello")
		return
	}

	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg, &hello); err != nil {
		s.logger.Debug().Err(err).Msg("bad client/hello")
		return
	}

	if hello.ClientID == "" || hello.Name == "" {
		s.logger.Debug().Msg("client hello missing required fields")
		return
	}

	p := &peer{
		ID:          hello.ClientID,
		Name:        hello.Name,
		Conn:        conn,
		ConnectedAt: time.Now(),
		sendChan:    make(chan []protocol.Message, peerBufferSize),
	}

	s.peersMu.Lock()
	if _, exists := s.peers[p.ID]; exists {
		s.peersMu.Unlock()
		s.logger.Warn().Str("peer_id", p.ID).Msg("client id already connected, rejecting duplicate")
		return
	}
	s.peers[p.ID] = p
	s.metrics.ConnectedPeers.Set(float64(len(s.peers)))
	s.peersMu.Unlock()

	s.logger.Info().Str("peer", p.Name).Str("peer_id", p.ID).Msg("peer connected")

	defer func() {
		s.removePeer(p)
		s.logger.Info().Str("peer", p.Name).Str("peer_id", p.ID).Msg("peer disconnected")
	}()

	p.enqueue(protocol.Message{
		Type: protocol.TypeServerHello,
		Payload: protocol.ServerHello{
			ServerID: s.serverID,
			Name:     s.config.Name,
			Version:  ProtocolVersion,
		},
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.peerWriter(p)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug().Err(err).Str("peer", p.Name).Msg("websocket error")
			}
			break
		}

		s.handlePeerMessage(p, data)
	}
}

// peerWriter sends queued messages to the peer
func (s *Server) peerWriter(p *peer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case batch, ok := <-p.sendChan:
			if !ok {
				return
			}

			for _, msg := range batch {
				p.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := p.Conn.WriteJSON(msg); err != nil {
					p.Conn.Close()
					return
				}
			}

		case <-ticker.C:
			if err := p.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				p.Conn.Close()
				return
			}
		}
	}
}

// handlePeerMessage processes messages from peers
func (s *Server) handlePeerMessage(p *peer, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug().Err(err).Str("peer", p.Name).Msg("error unmarshaling message")
		return
	}

	s.metrics.WSMessages.WithLabelValues("in", msg.Type).Inc()

	switch msg.Type {
	case protocol.TypeCatchUp:
		s.handleCatchUp(p)
	case protocol.TypeClientGoodbye:
		var goodbye protocol.ClientGoodbye
		if err := protocol.DecodePayload(msg, &goodbye); err == nil {
			s.logger.Info().Str("peer", p.Name).Str("reason", goodbye.Reason).Msg("peer goodbye")
		}
	default:
		if s.config.Debug {
			s.logger.Debug().Str("type", msg.Type).Str("peer", p.Name).Msg("unknown message type")
		}
	}
}

// handleCatchUp re-announces every replicated session to one peer. The
// starts are queued as one batch under the registry lock, so a broadcast
// cannot overtake them and their number is not bounded by the peer buffer.
func (s *Server) handleCatchUp(p *peer) {
	var n int
	queued := true
	s.registry.Replicated(func(sessions []*session.Session) {
		n = len(sessions)
		if n == 0 {
			return
		}
		batch := make([]protocol.Message, 0, n)
		for _, sess := range sessions {
			batch = append(batch, startMessage(sess.Config, sess.ID, sess.Group))
		}
		queued = p.enqueue(batch...)
	})

	if !queued {
		s.dropPeer(p)
		return
	}

	s.metrics.CatchUpSize.Observe(float64(n))
	s.metrics.WSMessages.WithLabelValues("out", protocol.TypeSessionStart).Add(float64(n))
	s.logger.Debug().Str("peer", p.Name).Int("sessions", n).Msg("catch-up sent")
}

// removePeer removes a peer
func (s *Server) removePeer(p *peer) {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()

	p.close()
	if current, ok := s.peers[p.ID]; ok && current == p {
		delete(s.peers, p.ID)
	}
	s.metrics.ConnectedPeers.Set(float64(len(s.peers)))
}
