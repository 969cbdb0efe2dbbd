// ABOUTME: Test doubles for the resonate package
// ABOUTME: Silent playback backend and helpers for running servers on loopback
package resonate

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
)

type silentPlayback struct {
	resource string

	mu     sync.Mutex
	looped bool
	volume float64

	destroyed  atomic.Bool
	ended      session.Signal
	destroying session.Signal
}

func (p *silentPlayback) Start() error { return nil }

func (p *silentPlayback) Destroy() {
	if p.destroyed.CompareAndSwap(false, true) {
		p.destroying.Emit()
	}
}

func (p *silentPlayback) OnEnded(fn func()) func()      { return p.ended.Subscribe(fn) }
func (p *silentPlayback) OnDestroying(fn func()) func() { return p.destroying.Subscribe(fn) }

func (p *silentPlayback) Looped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.looped
}

func (p *silentPlayback) SetLooped(looped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.looped = looped
}

func (p *silentPlayback) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *silentPlayback) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

func (p *silentPlayback) SetParent(string)        {}
func (p *silentPlayback) SetName(string)          {}
func (p *silentPlayback) SetTimePosition(float64) {}

type silentBackend struct {
	mu        sync.Mutex
	playbacks []*silentPlayback

	// slow makes NewPlayback for that resource wait until gate is closed
	slow    string
	gate    chan struct{}
	entered chan struct{}
}

func (b *silentBackend) NewPlayback(resource string) (session.Playback, error) {
	if b.slow != "" && resource == b.slow {
		select {
		case b.entered <- struct{}{}:
		default:
		}
		<-b.gate
	}

	p := &silentPlayback{resource: resource}
	b.mu.Lock()
	b.playbacks = append(b.playbacks, p)
	b.mu.Unlock()
	return p, nil
}

func (b *silentBackend) live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.playbacks {
		if !p.destroyed.Load() {
			n++
		}
	}
	return n
}

// kickPeers closes every peer connection from the server side
func kickPeers(srv *Server) {
	srv.peersMu.RLock()
	peers := make([]*peer, 0, len(srv.peers))
	for _, p := range srv.peers {
		peers = append(peers, p)
	}
	srv.peersMu.RUnlock()

	for _, p := range peers {
		srv.dropPeer(p)
	}
}

// startServer runs srv on a loopback listener and returns its host:port
func startServer(t *testing.T, srv *Server) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ln)
	}()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	t.Cleanup(func() {
		srv.Stop()
		<-done
	})

	return strings.TrimPrefix(ln.Addr().String(), "http://")
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasSession(infos []session.SessionInfo, id string) bool {
	for _, info := range infos {
		if info.ID == id {
			return true
		}
	}
	return false
}
