// ABOUTME: Audio output package backing session playbacks
// ABOUTME: Provides an oto-driven session.Backend with one player per session
// Package output plays decoded resources through the system audio device.
//
// OtoBackend owns the process-wide oto context. Each NewPlayback call opens
// the resource with package decode and returns a Playback that the session
// registry drives: volume is applied in software so values above 1 amplify
// with clipping protection.
//
// Example:
//
//	backend, err := output.NewOto(output.Config{SampleRate: 48000, Channels: 2})
//	registry := session.NewRegistry(session.Options{Backend: backend})
package output
