package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// mockPublisher implements HealthPublisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []publishedMessage
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMessage(nil), m.messages...)
}

type staticSource struct {
	connected bool
	devices   int
}

func (s staticSource) ControllerConnected() bool { return s.connected }
func (s staticSource) DeviceCount() int          { return s.devices }

func decodeHealth(t *testing.T, m publishedMessage) HealthMessage {
	t.Helper()
	var msg HealthMessage
	if err := json.Unmarshal(m.payload, &msg); err != nil {
		t.Fatalf("invalid health payload: %v", err)
	}
	return msg
}

func TestHealthReporter_PublishNow(t *testing.T) {
	tests := []struct {
		name       string
		source     HealthSource
		wantStatus HealthStatus
		wantReason string
	}{
		{"healthy", staticSource{connected: true, devices: 4}, HealthHealthy, ""},
		{"controller down", staticSource{connected: false, devices: 4}, HealthDegraded, "controller disconnected"},
		{"no source", nil, HealthDegraded, "controller disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{connected: true}
			h := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "huebridge-01",
				Version:   "1.2.3",
				Topic:     "graylogic/health/huebridge-01",
				Publisher: pub,
				Source:    tt.source,
			})

			if err := h.PublishNow(); err != nil {
				t.Fatalf("PublishNow() error = %v", err)
			}

			msgs := pub.getMessages()
			if len(msgs) != 1 {
				t.Fatalf("messages = %d, want 1", len(msgs))
			}
			if msgs[0].topic != "graylogic/health/huebridge-01" || !msgs[0].retained || msgs[0].qos != 1 {
				t.Errorf("published to %s retained=%v qos=%d", msgs[0].topic, msgs[0].retained, msgs[0].qos)
			}
			msg := decodeHealth(t, msgs[0])
			if msg.Status != tt.wantStatus || msg.Reason != tt.wantReason {
				t.Errorf("status = %s (%q), want %s (%q)", msg.Status, msg.Reason, tt.wantStatus, tt.wantReason)
			}
			if msg.Bridge != "huebridge-01" || msg.Version != "1.2.3" {
				t.Errorf("identity = %s/%s", msg.Bridge, msg.Version)
			}
			if tt.source != nil && msg.Devices != 4 {
				t.Errorf("devices = %d, want 4", msg.Devices)
			}
		})
	}
}

func TestHealthReporter_SkipsWhenDisconnected(t *testing.T) {
	pub := &mockPublisher{connected: false}
	h := NewHealthReporter(HealthReporterConfig{Publisher: pub, Source: staticSource{connected: true}})

	if err := h.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}
	if len(pub.getMessages()) != 0 {
		t.Error("published while the broker is disconnected")
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	pub := &mockPublisher{connected: true}
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "b",
		Topic:     "t",
		Interval:  10 * time.Millisecond,
		Publisher: pub,
		Source:    staticSource{connected: true, devices: 1},
	})

	if err := h.PublishStarting(); err != nil {
		t.Fatal(err)
	}
	h.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	h.Stop()
	h.Stop()

	msgs := pub.getMessages()
	if len(msgs) < 3 {
		t.Fatalf("messages = %d, want starting, periodic and stopping", len(msgs))
	}
	if first := decodeHealth(t, msgs[0]); first.Status != HealthStarting {
		t.Errorf("first status = %s, want starting", first.Status)
	}
	if last := decodeHealth(t, msgs[len(msgs)-1]); last.Status != HealthStopping {
		t.Errorf("last status = %s, want stopping", last.Status)
	}
}

func TestHealthReporter_CurrentAndLWT(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{BridgeID: "b", Source: staticSource{connected: true, devices: 2}})

	cur := h.Current()
	if cur.Status != HealthHealthy || !cur.ControllerConnected || cur.Devices != 2 {
		t.Errorf("Current() = %+v", cur)
	}

	payload, err := h.LWTPayload()
	if err != nil {
		t.Fatalf("LWTPayload() error = %v", err)
	}
	var lwt HealthMessage
	if err := json.Unmarshal(payload, &lwt); err != nil {
		t.Fatal(err)
	}
	if lwt.Status != HealthOffline || lwt.Bridge != "b" {
		t.Errorf("LWT = %+v", lwt)
	}
}
