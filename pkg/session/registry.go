// ABOUTME: Session registry owning every live audio session of one peer
// ABOUTME: Creates, mirrors and stops sessions and applies group volume changes
package session

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNoBackend is returned when a local playback is requested without a Backend
var ErrNoBackend = errors.New("no playback backend configured")

// Role selects how a registry takes part in replication
type Role int

const (
	// RoleDependent mirrors sessions announced by the authoritative peer
	RoleDependent Role = iota

	// RoleAuthoritative originates sessions and broadcasts their lifecycle
	RoleAuthoritative
)

func (r Role) String() string {
	if r == RoleAuthoritative {
		return "authoritative"
	}
	return "dependent"
}

// Broadcaster delivers lifecycle notifications to dependent peers.
// Calls are made while the registry lock is held, so implementations must not
// call back into the registry and should only enqueue.
type Broadcaster interface {
	SessionStarted(cfg Config, id, group string)
	SessionStopped(id string)
}

// Options configures a Registry
type Options struct {
	Role        Role
	Backend     Backend
	Broadcaster Broadcaster

	// Logger defaults to a no-op logger
	Logger *zerolog.Logger

	// DefaultParent is assigned to playbacks whose config names no parent
	DefaultParent string
}

// Session is one tracked playback. Fields are read-only after creation.
type Session struct {
	ID     string
	Group  string
	Config Config

	seq        uint64
	playback   Playback
	replicates bool
	cancels    []func()
}

// Playback returns the concrete playback, nil for replication placeholders
func (s *Session) Playback() Playback { return s.playback }

// Replicates reports whether stopping this session is broadcast to dependents
func (s *Session) Replicates() bool { return s.replicates }

// Local reports whether this peer produces the sound
func (s *Session) Local() bool { return s.playback != nil }

func (s *Session) cancel() {
	for _, c := range s.cancels {
		c()
	}
	s.cancels = nil
}

// SessionInfo is a point-in-time view of a session
type SessionInfo struct {
	ID         string  `json:"id"`
	Group      string  `json:"group"`
	Resource   string  `json:"resource"`
	Replicates bool    `json:"replicates"`
	Local      bool    `json:"local"`
	Looped     bool    `json:"looped"`
	Volume     float64 `json:"volume"`
}

// Registry owns the sessions and group volumes of one peer
type Registry struct {
	role          Role
	backend       Backend
	broadcaster   Broadcaster
	defaultParent string
	logger        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	groups   *GroupVolumes
	pending  Pending
	started  bool
	seq      uint64
}

// NewRegistry creates a stopped registry; call Start before use
func NewRegistry(opts Options) *Registry {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Registry{
		role:          opts.Role,
		backend:       opts.Backend,
		broadcaster:   opts.Broadcaster,
		defaultParent: Resolve(opts.DefaultParent, "resonate"),
		logger:        logger.With().Str("module", "session.registry").Str("role", opts.Role.String()).Logger(),
		sessions:      make(map[string]*Session),
		groups:        NewGroupVolumes(),
	}
}

// Role returns the replication role
func (r *Registry) Role() Role { return r.role }

// Start seeds the default group and replays requests queued before start.
// Calling Start on a started registry does nothing.
func (r *Registry) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.groups.Seed(DefaultGroup, DefaultVolume)
	r.started = true
	queued := r.pending.Drain()
	r.mu.Unlock()

	r.logger.Info().Int("queued", len(queued)).Msg("registry started")

	for _, req := range queued {
		var err error
		if req.Mirror {
			_, err = r.Mirror(req.Config, req.ID, req.Group)
		} else {
			_, err = r.Play(req.Config, req.ID, req.Group)
		}
		if err != nil {
			r.logger.Warn().Err(err).Str("session", req.ID).Msg("queued request failed")
		}
	}
}

// Started reports whether Start has been called since the last Shutdown
func (r *Registry) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Play creates a session. An empty id is generated from the resource and an
// empty group means DefaultGroup. Before Start the request is queued and
// (nil, nil) is returned. A persistent config on the authoritative peer
// creates a replication placeholder and announces it to dependents.
func (r *Registry) Play(cfg Config, id, group string) (*Session, error) {
	r.mu.Lock()
	if !r.started {
		r.pending.Push(Request{Config: cfg, ID: id, Group: group})
		r.mu.Unlock()
		r.logger.Debug().Str("session", id).Str("resource", cfg.Resource).Msg("registry not started, request queued")
		return nil, nil
	}
	r.mu.Unlock()

	if id == "" {
		id = NewID(cfg.Resource)
	}
	group = Resolve(group, DefaultGroup)

	if r.role == RoleAuthoritative && cfg.Persistent {
		return r.replicate(cfg, id, group), nil
	}
	return r.realize(cfg, id, group)
}

// Mirror applies a replicated start. It never broadcasts, and a start for an
// id that is already active is treated as a duplicate delivery.
func (r *Registry) Mirror(cfg Config, id, group string) (*Session, error) {
	r.mu.Lock()
	if !r.started {
		r.pending.Push(Request{Config: cfg, ID: id, Group: group, Mirror: true})
		r.mu.Unlock()
		return nil, nil
	}
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		r.logger.Debug().Str("session", id).Msg("duplicate replicated start ignored")
		return existing, nil
	}
	r.mu.Unlock()

	if id == "" {
		id = NewID(cfg.Resource)
	}
	return r.realize(cfg, id, Resolve(group, DefaultGroup))
}

// Stop ends the session with id. Unknown ids are ignored.
func (r *Registry) Stop(id string) {
	r.mu.Lock()
	dropped := r.pending.Remove(id)
	s := r.detachLocked(id)
	r.mu.Unlock()

	if s == nil {
		r.logger.Debug().Str("session", id).Int("dequeued", dropped).Msg("stop for unknown session ignored")
		return
	}

	destroy(s)
	r.logger.Debug().Str("session", id).Bool("local", s.Local()).Msg("session stopped")
}

// SetVolume updates group (DefaultGroup when empty) and every live playback in it
func (r *Registry) SetVolume(volume float64, group string) {
	group = Resolve(group, DefaultGroup)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.groups.Set(group, volume)
	applied := 0
	for _, s := range r.sessions {
		if s.Group == group && s.playback != nil {
			s.playback.SetVolume(volume)
			applied++
		}
	}

	r.logger.Debug().Str("group", group).Float64("volume", volume).Int("sessions", applied).Msg("group volume set")
}

// Volume returns the volume of group (DefaultGroup when empty), 0 if unset
func (r *Registry) Volume(group string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groups.Get(group)
}

// Groups returns a copy of the group volume table
func (r *Registry) Groups() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groups.Groups()
}

// Get returns the live session with id
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot lists live sessions in creation order
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.orderedLocked() {
		info := SessionInfo{
			ID:         s.ID,
			Group:      s.Group,
			Resource:   s.Config.Resource,
			Replicates: s.replicates,
			Local:      s.playback != nil,
			Looped:     s.Config.Looped,
			Volume:     ResolvePtr(s.Config.Volume, r.groups.Get(s.Group)),
		}
		if s.playback != nil {
			info.Looped = s.playback.Looped()
			info.Volume = s.playback.Volume()
		}
		out = append(out, info)
	}
	return out
}

// Replicated calls fn once with every replicated session in creation order.
// fn runs under the registry lock, which orders it against broadcasts; it
// must not call back into the registry.
func (r *Registry) Replicated(fn func(sessions []*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Session
	for _, s := range r.orderedLocked() {
		if s.replicates {
			out = append(out, s)
		}
	}
	fn(out)
}

// Shutdown drops every session without broadcasting and returns the registry
// to its stopped state. Queued requests are discarded.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.started = false
	discarded := len(r.pending.Drain())
	for _, s := range sessions {
		s.cancel()
	}
	r.mu.Unlock()

	for _, s := range sessions {
		destroy(s)
	}

	r.logger.Info().Int("sessions", len(sessions)).Int("discarded", discarded).Msg("registry shut down")
}

// replicate registers a placeholder for a persistent session and announces it
func (r *Registry) replicate(cfg Config, id, group string) *Session {
	s := &Session{ID: id, Group: group, Config: cfg, replicates: true}

	r.mu.Lock()
	old := r.detachLocked(id)
	r.insertLocked(s)
	if r.broadcaster != nil {
		r.broadcaster.SessionStarted(cfg, id, group)
	}
	r.mu.Unlock()

	destroy(old)
	r.logger.Debug().Str("session", id).Str("group", group).Str("resource", cfg.Resource).Msg("persistent session announced")
	return s
}

// realize creates and starts a local playback for the session
func (r *Registry) realize(cfg Config, id, group string) (*Session, error) {
	if r.backend == nil {
		return nil, ErrNoBackend
	}

	pb, err := r.backend.NewPlayback(cfg.Resource)
	if err != nil {
		r.logger.Warn().Err(err).Str("session", id).Str("resource", cfg.Resource).Msg("failed to create playback")
		return nil, fmt.Errorf("create playback for %q: %w", cfg.Resource, err)
	}

	s := &Session{ID: id, Group: group, Config: cfg, playback: pb}
	r.configure(s)
	r.arm(s)

	r.mu.Lock()
	old := r.detachLocked(id)
	if cfg.Volume == nil {
		pb.SetVolume(r.groups.Get(group))
	}
	r.insertLocked(s)
	r.mu.Unlock()

	destroy(old)

	if err := pb.Start(); err != nil {
		r.logger.Warn().Err(err).Str("session", id).Msg("failed to start playback")
		r.remove(s, true)
		return nil, fmt.Errorf("start playback %s: %w", id, err)
	}

	r.logger.Debug().Str("session", id).Str("group", group).Str("resource", cfg.Resource).Msg("session playing")
	return s, nil
}

// configure copies the config onto the playback
func (r *Registry) configure(s *Session) {
	pb, cfg := s.playback, s.Config

	pb.SetName(Resolve(cfg.Name, s.ID))
	pb.SetParent(Resolve(cfg.Parent, r.defaultParent))
	pb.SetLooped(truthy(cfg.Lookup("looped", cfg.Looped)))
	if cfg.TimePosition > 0 {
		pb.SetTimePosition(cfg.TimePosition)
	}
	if cfg.Volume != nil {
		pb.SetVolume(*cfg.Volume)
	}

	if len(cfg.Properties) == 0 {
		return
	}
	setter, ok := pb.(PropertySetter)
	for _, name := range slices.Sorted(maps.Keys(cfg.Properties)) {
		if IsIdentityProperty(name) {
			continue
		}
		if !ok {
			r.logger.Debug().Str("session", s.ID).Str("property", name).Msg("playback takes no extra properties")
			continue
		}
		if err := setter.SetProperty(name, cfg.Properties[name]); err != nil {
			r.logger.Debug().Err(err).Str("session", s.ID).Str("property", name).Msg("property rejected")
		}
	}
}

// arm subscribes the termination listeners for a local session
func (r *Registry) arm(s *Session) {
	destroyOnEnded := ResolvePtr(s.Config.DestroyOnEnded, true)
	looped := s.playback.Looped()

	s.cancels = append(s.cancels, s.playback.OnDestroying(func() {
		r.remove(s, false)
	}))

	if destroyOnEnded && !looped {
		var once sync.Once
		s.cancels = append(s.cancels, s.playback.OnEnded(func() {
			once.Do(func() { r.remove(s, true) })
		}))
		return
	}

	if destroyOnEnded {
		r.logger.Warn().Str("session", s.ID).Str("resource", s.Config.Resource).
			Msg("destroy_on_ended set on looped playback, session only ends when stopped")
	}
}

// remove drops s if it is still the registered session for its id
func (r *Registry) remove(s *Session, destroyPlayback bool) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.ID]; !ok || cur != s {
		r.mu.Unlock()
		return
	}
	r.detachLocked(s.ID)
	r.mu.Unlock()

	if destroyPlayback {
		destroy(s)
	}
	r.logger.Debug().Str("session", s.ID).Msg("session ended")
}

func (r *Registry) insertLocked(s *Session) {
	r.seq++
	s.seq = r.seq
	r.sessions[s.ID] = s
}

// detachLocked removes id from the registry and cancels its listeners.
// The returned session's playback must be destroyed after unlocking.
func (r *Registry) detachLocked(id string) *Session {
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	s.cancel()

	if s.playback == nil && s.replicates && r.role == RoleAuthoritative && r.broadcaster != nil {
		r.broadcaster.SessionStopped(id)
	}
	return s
}

func (r *Registry) orderedLocked() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func destroy(s *Session) {
	if s != nil && s.playback != nil {
		s.playback.Destroy()
	}
}
