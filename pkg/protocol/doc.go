// ABOUTME: Resonate session replication wire protocol package
// ABOUTME: Defines protocol messages and the dependent-peer WebSocket client
// Package protocol implements the Resonate session replication protocol.
//
// Messages are JSON envelopes carried in WebSocket text frames. The
// authoritative peer announces sessions with session/start and
// session/stop; a dependent peer asks for everything currently playing
// with session/catchup.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8927", Name: "Kitchen"})
//	err := client.Connect()
//	err = client.RequestCatchUp()
//	for ev := range client.Events {
//	    // apply ev.Start / ev.Stop
//	}
package protocol
