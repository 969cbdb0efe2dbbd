// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and the sample conversions shared by decode and output
// Package audio provides PCM types and helpers.
//
// Samples travel through the library as int32 in 24-bit range. The helpers
// here convert to and from 16-bit, apply software gain with clipping, and
// remix between channel counts.
//
// Example:
//
//	format := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
//	audio.ApplyGain(samples, 0.5)
//	n := audio.PutInt16LE(buf, samples)
package audio
