package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-huebridge/internal/device"
)

func dialWS(t *testing.T, f *testFixture) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(f.server.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + defaultWSPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg WSMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocket_StateChangedBroadcast(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)

	send(t, conn, WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}}})
	resp := receive(t, conn)
	if resp.Type != WSTypeResponse || resp.ID != "1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	f.server.Hub().BroadcastState(device.StateChange{
		ID:         "1A 2B 3C 1",
		Name:       "kitchen",
		On:         true,
		Brightness: 200,
		Source:     device.SourceStatus,
		Timestamp:  time.Now(),
	})

	event := receive(t, conn)
	if event.Type != WSTypeEvent || event.EventType != ChannelStateChanged {
		t.Fatalf("event = %+v", event)
	}
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		t.Fatal(err)
	}
	var got StateEvent
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "1A 2B 3C 1" || !got.On || got.Brightness != 200 || got.Source != device.SourceStatus {
		t.Errorf("payload = %+v", got)
	}
}

func TestWebSocket_UnsubscribedClientsSkipped(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)

	send(t, conn, WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}}})
	receive(t, conn)
	send(t, conn, WSMessage{Type: WSTypeUnsubscribe, ID: "2", Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}}})
	if resp := receive(t, conn); resp.ID != "2" || resp.Type != WSTypeResponse {
		t.Fatalf("unsubscribe response = %+v", resp)
	}

	f.server.Hub().BroadcastState(device.StateChange{ID: "X", Timestamp: time.Now()})

	// The ping reply must be the next message; a leaked event would arrive first.
	send(t, conn, WSMessage{Type: WSTypePing, ID: "3"})
	if resp := receive(t, conn); resp.Type != WSTypePong || resp.ID != "3" {
		t.Errorf("next message = %+v, want pong", resp)
	}
}

func TestWebSocket_BadMessages(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)

	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{nope`},
		{"unknown type", `{"type":"launch","id":"9"}`},
		{"bad subscribe payload", `{"type":"subscribe","id":"8","payload":{"channels":"device.state_changed"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatal(err)
			}
			if resp := receive(t, conn); resp.Type != WSTypeError {
				t.Errorf("response = %+v, want error", resp)
			}
		})
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)

	send(t, conn, WSMessage{Type: WSTypePing, ID: "1"})
	receive(t, conn)
	if n := f.server.Hub().ClientCount(); n != 1 {
		t.Fatalf("ClientCount() = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.server.Hub().Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if n := f.server.Hub().ClientCount(); n != 0 {
		t.Errorf("ClientCount() after Run = %d, want 0", n)
	}
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after hub shutdown")
	}
}
