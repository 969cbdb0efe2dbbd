// ABOUTME: Playback primitive contract used by the registry
// ABOUTME: Defines Backend, Playback and the Signal subscription helper
package session

import "sync"

// Backend creates playback primitives for resources
type Backend interface {
	// NewPlayback prepares (but does not start) playback of resource
	NewPlayback(resource string) (Playback, error)
}

// Playback is a single concrete sound owned by the registry once created
type Playback interface {
	// Start begins producing sound
	Start() error

	// Destroy releases the playback. Calling it more than once is a no-op.
	Destroy()

	// OnEnded subscribes to natural end of playback
	OnEnded(fn func()) (cancel func())

	// OnDestroying subscribes to destruction of the playback
	OnDestroying(fn func()) (cancel func())

	Looped() bool
	SetLooped(looped bool)
	Volume() float64
	SetVolume(volume float64)
	SetParent(parent string)
	SetName(name string)

	// SetTimePosition moves the start offset, in seconds
	SetTimePosition(seconds float64)
}

// PropertySetter is implemented by playbacks that accept pass-through properties
type PropertySetter interface {
	SetProperty(name string, value any) error
}

// Signal is a list of callbacks that can be cancelled individually
type Signal struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

// Subscribe registers fn and returns a func that removes it
func (s *Signal) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]func())
	}
	id := s.next
	s.next++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Emit calls every current subscriber outside the lock
func (s *Signal) Emit() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of subscribers
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
