// ABOUTME: Tests for the Resonate session protocol client
// ABOUTME: Runs the handshake and event routing against an in-process WebSocket server
package protocol

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeServer accepts one connection, answers the hello, then hands the conn to script
func fakeServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var hello Message
		if err := conn.ReadJSON(&hello); err != nil || hello.Type != TypeClientHello {
			t.Errorf("expected client/hello, got %v (%v)", hello.Type, err)
			return
		}
		conn.WriteJSON(Message{Type: TypeServerHello, Payload: ServerHello{ServerID: "srv", Name: "Test", Version: 1}})

		script(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func addr(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func nextEvent(t *testing.T, c *Client) SessionEvent {
	t.Helper()
	select {
	case ev := <-c.Events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return SessionEvent{}
	}
}

func TestClientHandshake(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	c := NewClient(Config{ServerAddr: addr(srv), ClientID: "c1", Name: "Test Client"})
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if !c.IsConnected() {
		t.Error("expected client to be connected")
	}
	if got := c.Server().ServerID; got != "srv" {
		t.Errorf("expected server id srv, got %s", got)
	}
}

func TestClientEventsPreserveOrder(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(Message{Type: TypeSessionStart, Payload: SessionStart{ID: "a", Group: "g", Config: SessionConfig{Resource: "a.mp3"}}})
		conn.WriteJSON(Message{Type: "server/unknown", Payload: map[string]string{}})
		conn.WriteJSON(Message{Type: TypeSessionStop, Payload: SessionStop{ID: "a"}})
		conn.WriteJSON(Message{Type: TypeSessionStart, Payload: SessionStart{ID: "a", Group: "g", Config: SessionConfig{Resource: "b.mp3"}}})
		conn.ReadMessage()
	})

	c := NewClient(Config{ServerAddr: addr(srv), ClientID: "c1"})
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	ev := nextEvent(t, c)
	if ev.Start == nil || ev.Start.Config.Resource != "a.mp3" {
		t.Fatalf("expected start a.mp3, got %+v", ev)
	}
	ev = nextEvent(t, c)
	if ev.Stop == nil || ev.Stop.ID != "a" {
		t.Fatalf("expected stop a, got %+v", ev)
	}
	ev = nextEvent(t, c)
	if ev.Start == nil || ev.Start.Config.Resource != "b.mp3" {
		t.Fatalf("expected start b.mp3, got %+v", ev)
	}
}

func TestClientRequestCatchUp(t *testing.T) {
	got := make(chan string, 1)
	srv := fakeServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		json.Unmarshal(data, &msg)
		got <- msg.Type
	})

	c := NewClient(Config{ServerAddr: addr(srv), ClientID: "c1"})
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if err := c.RequestCatchUp(); err != nil {
		t.Fatalf("catch-up: %v", err)
	}

	select {
	case typ := <-got:
		if typ != TypeCatchUp {
			t.Errorf("expected %s, got %s", TypeCatchUp, typ)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw catch-up request")
	}
}

func TestClientDoneOnServerClose(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {})

	c := NewClient(Config{ServerAddr: addr(srv), ClientID: "c1"})
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected Done after server closed connection")
	}
	if c.IsConnected() {
		t.Error("expected client to report disconnected")
	}
	if err := c.RequestCatchUp(); err == nil {
		t.Error("expected error sending on closed client")
	}
}

func TestClientConnectFailure(t *testing.T) {
	c := NewClient(Config{ServerAddr: "127.0.0.1:1", ClientID: "c1"})
	if err := c.Connect(); err == nil {
		c.Close()
		t.Fatal("expected dial failure")
	}
}
