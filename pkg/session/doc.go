// ABOUTME: Audio session registry package
// ABOUTME: Tracks live playback sessions, group volumes and replication roles
// Package session owns the per-peer state of playable audio sessions.
//
// A Registry creates sessions from a Config, resolves their group volume,
// arms termination listeners on the underlying Playback and, on the
// authoritative peer, reports lifecycle changes to a Broadcaster so that
// dependent peers can mirror them.
//
// Example:
//
//	reg := session.NewRegistry(session.Options{
//	    Role:    session.RoleDependent,
//	    Backend: backend,
//	})
//	reg.Start()
//	sess, err := reg.Play(session.Config{Resource: "sfx/door.mp3"}, "", "sfx")
//	reg.SetVolume(0.5, "sfx")
//	reg.Stop(sess.ID)
package session
