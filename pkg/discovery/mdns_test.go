// ABOUTME: Tests for mDNS service discovery
// ABOUTME: Validates Manager lifecycle and service entry conversion
package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManagerDefaults(t *testing.T) {
	manager := NewManager(Config{ServiceName: "test-service", Port: 8927})
	defer manager.Stop()

	if manager.config.Path != DefaultPath {
		t.Errorf("Expected default path %s, got %s", DefaultPath, manager.config.Path)
	}
	if manager.Servers() == nil {
		t.Fatal("Servers() returned nil channel")
	}
}

func TestManagerStop(t *testing.T) {
	manager := NewManager(Config{ServiceName: "test", Port: 8927})
	manager.Stop()

	select {
	case <-manager.ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("Context should be cancelled after Stop()")
	}
}

func TestGetLocalIPs(t *testing.T) {
	ips, err := getLocalIPs()
	if err != nil {
		t.Fatalf("getLocalIPs failed: %v", err)
	}
	if ips == nil {
		t.Error("getLocalIPs returned nil slice")
	}

	for _, ip := range ips {
		if ip.To4() == nil {
			t.Errorf("getLocalIPs returned non-IPv4 address: %v", ip)
		}
		if ip.IsLoopback() {
			t.Errorf("getLocalIPs returned loopback address: %v", ip)
		}
	}
}

func TestEntryToServer(t *testing.T) {
	tests := []struct {
		name     string
		entry    *mdns.ServiceEntry
		wantNil  bool
		wantName string
		wantAddr string
		wantPath string
	}{
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
		{
			name:    "no ipv4 address",
			entry:   &mdns.ServiceEntry{Name: "x", Port: 8927},
			wantNil: true,
		},
		{
			name: "default path",
			entry: &mdns.ServiceEntry{
				Name:   "Living Room." + ServiceType + ".local.",
				AddrV4: net.IPv4(192, 168, 1, 10),
				Port:   8927,
			},
			wantName: "Living Room",
			wantAddr: "192.168.1.10:8927",
			wantPath: DefaultPath,
		},
		{
			name: "custom path from txt",
			entry: &mdns.ServiceEntry{
				Name:       "Kitchen",
				AddrV4:     net.IPv4(10, 0, 0, 2),
				Port:       9000,
				InfoFields: []string{"path=/custom"},
			},
			wantName: "Kitchen",
			wantAddr: "10.0.0.2:9000",
			wantPath: "/custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entryToServer(tt.entry)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected server info")
			}
			if got.Name != tt.wantName {
				t.Errorf("Name: expected %q, got %q", tt.wantName, got.Name)
			}
			if got.Addr() != tt.wantAddr {
				t.Errorf("Addr: expected %q, got %q", tt.wantAddr, got.Addr())
			}
			if got.Path != tt.wantPath {
				t.Errorf("Path: expected %q, got %q", tt.wantPath, got.Path)
			}
		})
	}
}
