// ABOUTME: mDNS service discovery package
// ABOUTME: Discover and advertise Resonate session servers on the local network
// Package discovery provides mDNS service discovery for Resonate session servers.
//
// The authoritative peer advertises itself; dependent peers browse for it.
//
// Example:
//
//	mgr := discovery.NewManager(discovery.Config{ServiceName: "Living Room"})
//	mgr.Browse()
//	server := <-mgr.Servers()
//	fmt.Printf("Found: %s at %s\n", server.Name, server.Addr())
package discovery
