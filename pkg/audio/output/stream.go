// ABOUTME: PCM byte stream feeding an oto player
// ABOUTME: Converts a decode.Source to the device format with gain and looping
package output

import (
	"errors"
	"io"
	"sync"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio/resample"
)

// stream is an io.Reader of 16-bit little-endian PCM in the device format
type stream struct {
	mu        sync.Mutex
	src       decode.Source
	in        audio.Format
	out       audio.Format
	resampler *resample.Resampler

	gain     float64
	looped   bool
	finished bool

	raw   []int32
	mixed []int32
	res   []int32
}

func newStream(src decode.Source, out audio.Format) *stream {
	in := src.Format()
	s := &stream{src: src, in: in, out: out, gain: 1}
	if in.SampleRate != out.SampleRate {
		s.resampler = resample.New(in.SampleRate, out.SampleRate, out.Channels)
	}
	return s
}

func (s *stream) setGain(gain float64) {
	s.mu.Lock()
	s.gain = gain
	s.mu.Unlock()
}

func (s *stream) setLooped(looped bool) {
	s.mu.Lock()
	s.looped = looped
	s.mu.Unlock()
}

// done reports whether the source has been exhausted without looping
func (s *stream) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// close marks the stream finished and closes the source
func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	return s.src.Close()
}

// skip discards seconds of source audio
func (s *stream) skip(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.in.FrameSamples(seconds)
	buf := make([]int32, 4096*s.in.Channels)
	for remaining > 0 {
		chunk := buf
		if remaining < len(chunk) {
			chunk = chunk[:remaining]
		}
		n, err := s.src.Read(chunk)
		remaining -= n
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return 0, io.EOF
	}

	frames := len(p) / (2 * s.out.Channels)
	if frames == 0 {
		return 0, nil
	}

	inFrames := frames
	if s.resampler != nil {
		inFrames = max(1, s.resampler.InputSamplesNeeded(frames*s.out.Channels)/s.out.Channels)
	}

	rewound := false
	for {
		raw := grow(&s.raw, inFrames*s.in.Channels)
		n, err := s.src.Read(raw)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		if n == 0 {
			// Exhausted; a second empty read right after a rewind means the source is empty
			if !s.looped || rewound {
				s.finished = true
				return 0, io.EOF
			}
			if err := s.src.Rewind(); err != nil {
				return 0, err
			}
			rewound = true
			continue
		}

		samples := s.convert(raw[:n], frames)
		if len(samples) == 0 {
			continue
		}
		audio.ApplyGain(samples, s.gain)
		return audio.PutInt16LE(p, samples), nil
	}
}

// convert remixes channels and resamples to the output format
func (s *stream) convert(raw []int32, maxFrames int) []int32 {
	mixed := grow(&s.mixed, len(raw)/s.in.Channels*s.out.Channels)
	n := audio.Remix(mixed, raw, s.in.Channels, s.out.Channels)
	mixed = mixed[:n]

	if s.resampler == nil {
		if limit := maxFrames * s.out.Channels; len(mixed) > limit {
			mixed = mixed[:limit]
		}
		return mixed
	}

	res := grow(&s.res, maxFrames*s.out.Channels)
	return res[:s.resampler.Resample(mixed, res)]
}

func grow(buf *[]int32, n int) []int32 {
	if cap(*buf) < n {
		*buf = make([]int32, n)
	}
	return (*buf)[:n]
}
