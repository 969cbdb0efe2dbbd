// ABOUTME: Test tone generator source
// ABOUTME: Generates a sine wave, endless or for a fixed duration
package decode

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/audio"
)

const (
	// TonePrefix marks generated tone resources
	TonePrefix = "tone:"

	toneSampleRate = 48000
	toneChannels   = 2
	toneAmplitude  = 0.5
)

// Tone generates a sine wave
type Tone struct {
	frequency   float64
	totalFrames int64 // 0 means endless
	frame       int64
}

// NewTone creates a tone; seconds <= 0 makes it endless
func NewTone(frequency, seconds float64) *Tone {
	t := &Tone{frequency: frequency}
	if seconds > 0 {
		t.totalFrames = int64(seconds * toneSampleRate)
	}
	return t
}

// ParseTone parses "tone:<hz>[:<seconds>]"
func ParseTone(resource string) (*Tone, error) {
	spec, ok := strings.CutPrefix(resource, TonePrefix)
	if !ok {
		return nil, fmt.Errorf("not a tone resource: %q", resource)
	}

	parts := strings.Split(spec, ":")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid tone %q", resource)
	}

	freq, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || freq <= 0 {
		return nil, fmt.Errorf("invalid tone frequency %q", parts[0])
	}

	var seconds float64
	if len(parts) == 2 {
		seconds, err = strconv.ParseFloat(parts[1], 64)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("invalid tone duration %q", parts[1])
		}
	}

	return NewTone(freq, seconds), nil
}

func (t *Tone) Read(samples []int32) (int, error) {
	frames := int64(len(samples) / toneChannels)
	if t.totalFrames > 0 {
		remaining := t.totalFrames - t.frame
		if remaining <= 0 {
			return 0, io.EOF
		}
		if frames > remaining {
			frames = remaining
		}
	}

	for i := int64(0); i < frames; i++ {
		ts := float64(t.frame+i) / toneSampleRate
		v := int32(math.Sin(2*math.Pi*t.frequency*ts) * toneAmplitude * audio.Max24Bit)
		for ch := 0; ch < toneChannels; ch++ {
			samples[int(i)*toneChannels+ch] = v
		}
	}
	t.frame += frames

	return int(frames) * toneChannels, nil
}

func (t *Tone) Format() audio.Format {
	return audio.Format{SampleRate: toneSampleRate, Channels: toneChannels, BitDepth: 24}
}

func (t *Tone) Rewind() error {
	t.frame = 0
	return nil
}

func (t *Tone) Close() error { return nil }
