// ABOUTME: Oto-based session playback backend
// ABOUTME: One oto context per process, one oto player per session playback
package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
)

const endPollInterval = 50 * time.Millisecond

// Config configures the audio device
type Config struct {
	SampleRate int
	Channels   int
	Logger     *zerolog.Logger
}

// player is the part of *oto.Player a playback drives
type player interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// OtoBackend creates playbacks on a shared oto context
type OtoBackend struct {
	format    audio.Format
	logger    zerolog.Logger
	newPlayer func(r io.Reader) player
	open      func(resource string) (decode.Source, error)
}

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoFmt  audio.Format
)

// NewOto opens the audio device. oto allows one context per process, so
// later calls reuse the first context and its format.
func NewOto(config Config) (*OtoBackend, error) {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.Channels == 0 {
		config.Channels = 2
	}

	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   config.SampleRate,
			ChannelCount: config.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoFmt = audio.Format{SampleRate: config.SampleRate, Channels: config.Channels, BitDepth: 16}
	})
	if otoErr != nil {
		return nil, otoErr
	}

	b := newBackend(otoFmt, config.Logger, func(r io.Reader) player {
		return otoCtx.NewPlayer(r)
	})
	b.logger.Info().Int("sample_rate", otoFmt.SampleRate).Int("channels", otoFmt.Channels).Msg("audio output initialized")
	return b, nil
}

func newBackend(format audio.Format, logger *zerolog.Logger, newPlayer func(io.Reader) player) *OtoBackend {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &OtoBackend{
		format:    format,
		logger:    l.With().Str("module", "audio.output").Logger(),
		newPlayer: newPlayer,
		open:      decode.Open,
	}
}

// Format returns the device format
func (b *OtoBackend) Format() audio.Format {
	return b.format
}

// NewPlayback decodes resource and prepares it for playback
func (b *OtoBackend) NewPlayback(resource string) (session.Playback, error) {
	src, err := b.open(resource)
	if err != nil {
		return nil, err
	}

	return &OtoPlayback{
		backend:  b,
		resource: resource,
		stream:   newStream(src, b.format),
		volume:   1,
		done:     make(chan struct{}),
	}, nil
}

// OtoPlayback is one session's sound
type OtoPlayback struct {
	backend  *OtoBackend
	resource string
	stream   *stream

	mu       sync.Mutex
	player   player
	name     string
	parent   string
	looped   bool
	volume   float64
	position float64
	paused   bool

	destroyed  atomic.Bool
	done       chan struct{}
	ended      session.Signal
	destroying session.Signal
}

// Start seeks to the time position and begins playback
func (p *OtoPlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed.Load() {
		return fmt.Errorf("playback %s destroyed", p.resource)
	}
	if p.player != nil {
		return nil
	}

	if p.position > 0 {
		if err := p.stream.skip(p.position); err != nil {
			return fmt.Errorf("seek %s: %w", p.resource, err)
		}
	}

	p.player = p.backend.newPlayer(p.stream)
	if !p.paused {
		p.player.Play()
	}

	go p.watch(p.player)

	p.backend.logger.Debug().Str("resource", p.resource).Str("name", p.name).Msg("playback started")
	return nil
}

// watch emits ended once the stream is exhausted and the player drained it
func (p *OtoPlayback) watch(pl player) {
	ticker := time.NewTicker(endPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if p.stream.done() && !pl.IsPlaying() {
				if p.destroyed.Load() {
					return
				}
				p.ended.Emit()
				return
			}
		}
	}
}

// Destroy stops playback and releases the source
func (p *OtoPlayback) Destroy() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}
	close(p.done)

	p.mu.Lock()
	pl := p.player
	p.mu.Unlock()

	if pl != nil {
		pl.Close()
	}
	p.stream.close()

	p.destroying.Emit()
}

func (p *OtoPlayback) OnEnded(fn func()) func()      { return p.ended.Subscribe(fn) }
func (p *OtoPlayback) OnDestroying(fn func()) func() { return p.destroying.Subscribe(fn) }

func (p *OtoPlayback) Looped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.looped
}

func (p *OtoPlayback) SetLooped(looped bool) {
	p.mu.Lock()
	p.looped = looped
	p.mu.Unlock()
	p.stream.setLooped(looped)
}

func (p *OtoPlayback) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume sets the software gain; values above 1 amplify with clipping
func (p *OtoPlayback) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	p.stream.setGain(volume)
}

func (p *OtoPlayback) SetParent(parent string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent = parent
}

func (p *OtoPlayback) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

// SetTimePosition sets the start offset; it only applies before Start
func (p *OtoPlayback) SetTimePosition(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
}

// SetProperty accepts "paused" (bool)
func (p *OtoPlayback) SetProperty(name string, value any) error {
	switch name {
	case "paused":
		paused, ok := value.(bool)
		if !ok {
			return fmt.Errorf("paused must be a bool, got %T", value)
		}
		p.SetPaused(paused)
		return nil
	default:
		return fmt.Errorf("unsupported property %q", name)
	}
}

// SetPaused pauses or resumes the player
func (p *OtoPlayback) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = paused
	if p.player == nil {
		return
	}
	if paused {
		p.player.Pause()
	} else {
		p.player.Play()
	}
}

// Name returns the label set by the registry
func (p *OtoPlayback) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Parent returns the container set by the registry
func (p *OtoPlayback) Parent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parent
}
