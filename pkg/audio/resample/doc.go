// ABOUTME: Sample rate conversion for decoded sources
// ABOUTME: Linear interpolation that keeps state across chunks
// Package resample converts decoded audio to the output device's rate.
//
// A Resampler remembers the last input frame, so a stream can be fed in
// chunks of any size without clicks at chunk boundaries.
//
//	r := resample.New(44100, 48000, 2)
//	in := make([]int32, r.InputSamplesNeeded(len(out)))
//	n := r.Resample(in, out)
package resample
