// ABOUTME: Resonate session protocol message type definitions
// ABOUTME: Defines the envelope, handshake and session lifecycle payloads
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeServerHello   = "server/hello"
	TypeClientGoodbye = "client/goodbye"
	TypeSessionStart  = "session/start"
	TypeSessionStop   = "session/stop"
	TypeCatchUp       = "session/catchup"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload converts a generically decoded payload into v
func DecodePayload(msg Message, v interface{}) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", msg.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return nil
}

// ClientHello is sent by dependent peers to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the authoritative peer's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// SessionConfig is the replicated play configuration
type SessionConfig struct {
	Resource       string                 `json:"resource"`
	DestroyOnEnded *bool                  `json:"destroy_on_ended,omitempty"`
	Volume         *float64               `json:"volume,omitempty"`
	Parent         string                 `json:"parent,omitempty"`
	Name           string                 `json:"name,omitempty"`
	Looped         bool                   `json:"looped,omitempty"`
	TimePosition   float64                `json:"time_position,omitempty"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
}

// SessionStart announces a persistent session
type SessionStart struct {
	ID     string        `json:"id"`
	Group  string        `json:"group"`
	Config SessionConfig `json:"config"`
}

// SessionStop announces the end of a persistent session
type SessionStop struct {
	ID string `json:"id"`
}

// CatchUpRequest asks for a session/start for every active persistent session
type CatchUpRequest struct{}

// ClientGoodbye is sent before graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "restart", "user_request"
}

// SessionEvent carries exactly one of Start or Stop, in delivery order
type SessionEvent struct {
	Start *SessionStart
	Stop  *SessionStop
}
