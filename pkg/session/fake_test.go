// ABOUTME: Test doubles for the session package
// ABOUTME: In-memory playback backend and recording broadcaster
package session

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type fakePlayback struct {
	resource string

	mu         sync.Mutex
	name       string
	parent     string
	looped     bool
	volume     float64
	position   float64
	properties map[string]any
	started    bool

	destroyed  atomic.Bool
	ended      Signal
	destroying Signal
	startErr   error
}

func (p *fakePlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

func (p *fakePlayback) Destroy() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}
	p.destroying.Emit()
}

func (p *fakePlayback) OnEnded(fn func()) func()      { return p.ended.Subscribe(fn) }
func (p *fakePlayback) OnDestroying(fn func()) func() { return p.destroying.Subscribe(fn) }

func (p *fakePlayback) Looped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.looped
}

func (p *fakePlayback) SetLooped(looped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.looped = looped
}

func (p *fakePlayback) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *fakePlayback) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

func (p *fakePlayback) SetParent(parent string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent = parent
}

func (p *fakePlayback) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

func (p *fakePlayback) SetTimePosition(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
}

func (p *fakePlayback) SetProperty(name string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.HasPrefix(name, "bad") {
		return errors.New("unsupported property")
	}
	if p.properties == nil {
		p.properties = make(map[string]any)
	}
	p.properties[name] = value
	return nil
}

type fakeBackend struct {
	mu        sync.Mutex
	playbacks []*fakePlayback
	err       error
}

func (b *fakeBackend) NewPlayback(resource string) (Playback, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	p := &fakePlayback{resource: resource}
	b.playbacks = append(b.playbacks, p)
	return p, nil
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.playbacks)
}

type broadcast struct {
	kind  string
	id    string
	group string
	cfg   Config
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcast
}

func (b *recordingBroadcaster) SessionStarted(cfg Config, id, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcast{kind: "start", id: id, group: group, cfg: cfg})
}

func (b *recordingBroadcaster) SessionStopped(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcast{kind: "stop", id: id})
}

func (b *recordingBroadcaster) all() []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast(nil), b.events...)
}

// bufferLogger returns a JSON logger writing into buf at debug level
func bufferLogger(buf *bytes.Buffer) *zerolog.Logger {
	l := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &l
}

func countWarnings(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), `"level":"warn"`)
}
