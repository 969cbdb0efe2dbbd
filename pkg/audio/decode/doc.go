// ABOUTME: Audio decoder package turning session resources into PCM
// ABOUTME: Provides the Source interface and Open for tones, MP3 and FLAC
// Package decode opens session resources as PCM sources.
//
// Supported resources:
//   - tone:<hz>[:<seconds>] generates a sine wave (endless without seconds)
//   - *.mp3 files or http(s) URLs, decoded with go-mp3
//   - *.flac files or http(s) URLs, decoded with mewkiz/flac
//
// All sources output interleaved int32 samples in 24-bit range.
//
// Example:
//
//	src, err := decode.Open("rain.flac")
//	n, err := src.Read(samples)
package decode
