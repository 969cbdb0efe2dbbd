// ABOUTME: Tests for Resonate session protocol message types
// ABOUTME: Verifies wire shapes and payload decoding of protocol messages
package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSessionStartWireShape(t *testing.T) {
	destroy := false
	volume := 0.5
	msg := Message{
		Type: TypeSessionStart,
		Payload: SessionStart{
			ID:    "rain-1",
			Group: "ambience",
			Config: SessionConfig{
				Resource:       "rain.flac",
				DestroyOnEnded: &destroy,
				Volume:         &volume,
				Looped:         true,
				Properties:     map[string]interface{}{"pitch": 1.5},
			},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	s := string(data)
	for _, want := range []string{
		`"type":"session/start"`,
		`"id":"rain-1"`,
		`"group":"ambience"`,
		`"resource":"rain.flac"`,
		`"destroy_on_ended":false`,
		`"volume":0.5`,
		`"looped":true`,
		`"pitch":1.5`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}

	// Unset optional fields stay off the wire
	for _, absent := range []string{`"parent"`, `"name"`, `"time_position"`} {
		if strings.Contains(s, absent) {
			t.Errorf("did not expect %s in %s", absent, s)
		}
	}
}

func TestDecodePayload(t *testing.T) {
	raw := `{"type":"session/start","payload":{"id":"a","group":"g","config":{"resource":"x.mp3","volume":0.25}}}`

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	var start SessionStart
	if err := DecodePayload(msg, &start); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if start.ID != "a" || start.Group != "g" {
		t.Errorf("unexpected identity %q/%q", start.ID, start.Group)
	}
	if start.Config.Resource != "x.mp3" {
		t.Errorf("expected resource x.mp3, got %s", start.Config.Resource)
	}
	if start.Config.Volume == nil || *start.Config.Volume != 0.25 {
		t.Errorf("expected volume 0.25, got %v", start.Config.Volume)
	}
	if start.Config.DestroyOnEnded != nil {
		t.Errorf("expected destroy_on_ended unset, got %v", *start.Config.DestroyOnEnded)
	}
}

func TestDecodePayloadTypeMismatch(t *testing.T) {
	msg := Message{Type: TypeSessionStop, Payload: map[string]interface{}{"id": 42}}

	var stop SessionStop
	err := DecodePayload(msg, &stop)
	if err == nil {
		t.Fatal("expected error decoding numeric id")
	}
	if !strings.Contains(err.Error(), TypeSessionStop) {
		t.Errorf("expected error to name the message type, got %v", err)
	}
}

func TestHelloRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		msgType string
		payload interface{}
	}{
		{"client hello", TypeClientHello, ClientHello{ClientID: "c1", Name: "Kitchen", Version: 1}},
		{"server hello", TypeServerHello, ServerHello{ServerID: "s1", Name: "Main", Version: 1}},
		{"goodbye", TypeClientGoodbye, ClientGoodbye{Reason: "shutdown"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Message{Type: tt.msgType, Payload: tt.payload})
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var decoded Message
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if decoded.Type != tt.msgType {
				t.Errorf("expected type %s, got %s", tt.msgType, decoded.Type)
			}
			if _, ok := decoded.Payload.(map[string]interface{}); !ok {
				t.Errorf("expected object payload, got %T", decoded.Payload)
			}
		})
	}
}
