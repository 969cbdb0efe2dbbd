// ABOUTME: High-level replication API for Resonate audio sessions
// ABOUTME: Provides the authoritative Server and the dependent Player
// Package resonate wires the session registry to the websocket protocol.
//
// A Server is the authoritative peer: persistent sessions created on it are
// announced to every connected Player, and a Player that connects late asks
// for a catch-up to learn what is already running. A Player is a dependent
// peer: it mirrors what the Server announces and never re-broadcasts.
//
// Example server:
//
//	srv, err := resonate.NewServer(resonate.ServerConfig{
//	    Port: 8927,
//	    Name: "Living Room",
//	})
//	go srv.Start()
//	srv.Play(session.Config{Resource: "rain.flac", Looped: true, Persistent: true}, "", "ambience")
//
// Example player:
//
//	player, err := resonate.NewPlayer(resonate.PlayerConfig{
//	    ServerAddr: "192.168.1.100:8927",
//	    PlayerName: "Kitchen",
//	    Backend:    backend,
//	})
//	err = player.Connect()
package resonate
