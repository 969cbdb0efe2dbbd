// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM formats, sample conversion and software gain
package audio

import "encoding/binary"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a PCM stream. Samples are always carried as int32 in
// 24-bit range regardless of BitDepth, which records the source precision.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// FrameSamples returns the number of interleaved samples in d seconds
func (f Format) FrameSamples(seconds float64) int {
	return int(seconds*float64(f.SampleRate)) * f.Channels
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// ScaleTo24Bit moves a sample of the given bit depth into 24-bit range
func ScaleTo24Bit(sample int32, bitDepth int) int32 {
	shift := bitDepth - 24
	switch {
	case shift > 0:
		return sample >> shift
	case shift < 0:
		return sample << -shift
	default:
		return sample
	}
}

// ApplyGain scales samples in place with clipping protection
func ApplyGain(samples []int32, gain float64) {
	if gain == 1 {
		return
	}
	for i, sample := range samples {
		scaled := int64(float64(sample) * gain)

		if scaled > Max24Bit {
			scaled = Max24Bit
		} else if scaled < Min24Bit {
			scaled = Min24Bit
		}

		samples[i] = int32(scaled)
	}
}

// PutInt16LE encodes samples as 16-bit little-endian PCM into dst and
// returns the number of bytes written. dst must hold 2 bytes per sample.
func PutInt16LE(dst []byte, samples []int32) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(SampleToInt16(s)))
	}
	return len(samples) * 2
}

// Remix maps interleaved samples from one channel count to another.
// Mono is duplicated, stereo to mono is averaged, otherwise channels wrap.
func Remix(dst, src []int32, from, to int) int {
	if from == to {
		return copy(dst, src)
	}

	frames := len(src) / from
	if limit := len(dst) / to; frames > limit {
		frames = limit
	}

	for f := 0; f < frames; f++ {
		in := src[f*from : f*from+from]
		out := dst[f*to : f*to+to]
		if to == 1 {
			var sum int64
			for _, s := range in {
				sum += int64(s)
			}
			out[0] = int32(sum / int64(from))
			continue
		}
		for ch := range out {
			out[ch] = in[ch%from]
		}
	}
	return frames * to
}
