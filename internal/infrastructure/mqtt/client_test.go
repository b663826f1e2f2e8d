package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "huebridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "home"}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Entity", topics.Entity("isy", "1A 2B 3C 1"), "home/entity/isy/1A_2B_3C_1"},
		{"State", topics.State("isy", "1A 2B 3C 1"), "home/state/isy/1A_2B_3C_1"},
		{"Command", topics.Command("isy", "12345"), "home/command/isy/12345"},
		{"Ack", topics.Ack("isy", "12345"), "home/ack/isy/12345"},
		{"Health", topics.Health("huebridge-01"), "home/health/huebridge-01"},
		{"SystemStatus", topics.SystemStatus(), "home/system/status"},
		{"AllEntities", topics.AllEntities("isy"), "home/entity/isy/+"},
		{"AllStates", topics.AllStates("isy"), "home/state/isy/+"},
		{"AllAcks", topics.AllAcks("isy"), "home/ack/isy/+"},
		{"default prefix", Topics{}.SystemStatus(), "graylogic/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestTopicAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1A 2B 3C 1", "1A_2B_3C_1"},
		{"  A1 02 ", "A1_02"},
		{"a/b+c#d", "abcd"},
		{"12345", "12345"},
	}

	for _, tt := range tests {
		if got := TopicAddress(tt.input); got != tt.expected {
			t.Errorf("TopicAddress(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "huebridge-test" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "huebridge-test")
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want bridge/secret", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS config with minimum version set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{Prefix: "home"}, "huebridge-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Error("expected retained will")
	}
	if opts.WillTopic != "home/system/status" {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, "home/system/status")
	}
	if !strings.Contains(string(opts.WillPayload), `"unexpected_disconnect"`) {
		t.Errorf("WillPayload = %s, want unexpected_disconnect reason", opts.WillPayload)
	}
}

func TestClient_ValidationBeforeConnect(t *testing.T) {
	c := newClient(testConfig(), Topics{})
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"publish empty topic", func() error { return c.Publish("", nil, 1, false) }, ErrInvalidTopic},
		{"publish invalid qos", func() error { return c.Publish("a/b", nil, 3, false) }, ErrInvalidQoS},
		{"publish oversized", func() error { return c.Publish("a/b", make([]byte, maxPayloadSize+1), 1, false) }, ErrPublishFailed},
		{"publish disconnected", func() error { return c.Publish("a/b", []byte("x"), 1, false) }, ErrNotConnected},
		{"subscribe empty topic", func() error { return c.Subscribe("", 1, noop) }, ErrInvalidTopic},
		{"subscribe invalid qos", func() error { return c.Subscribe("a/b", 5, noop) }, ErrInvalidQoS},
		{"subscribe nil handler", func() error { return c.Subscribe("a/b", 1, nil) }, ErrSubscribeFailed},
		{"subscribe disconnected", func() error { return c.Subscribe("a/b", 1, noop) }, ErrNotConnected},
		{"unsubscribe empty topic", func() error { return c.Unsubscribe("") }, ErrInvalidTopic},
		{"unsubscribe disconnected", func() error { return c.Unsubscribe("a/b") }, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestClient_HealthCheck(t *testing.T) {
	c := newClient(testConfig(), Topics{})

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

func TestClient_CloseWithoutConnection(t *testing.T) {
	c := newClient(testConfig(), Topics{})
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWrapHandler_LogsErrors(t *testing.T) {
	c := newClient(testConfig(), Topics{})
	logger := &mockLogger{}
	c.SetLogger(logger)

	var got string
	h := c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return errors.New("boom")
	})
	h(nil, fakeMessage{topic: "a/b", payload: []byte("42")})

	if got != "a/b=42" {
		t.Errorf("handler saw %q, want %q", got, "a/b=42")
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one entry", logger.warns)
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	c := newClient(testConfig(), Topics{})
	logger := &mockLogger{}
	c.SetLogger(logger)

	h := c.wrapHandler(func(string, []byte) error {
		panic("handler exploded")
	})
	h(nil, fakeMessage{topic: "a/b"})

	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one panic entry", logger.errors)
	}
}

func TestCallbacks(t *testing.T) {
	c := newClient(testConfig(), Topics{})

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })
	c.handleDisconnect(errors.New("network down"))

	if lost == nil || lost.Error() != "network down" {
		t.Errorf("onDisconnect got %v", lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}

func TestStatusPayload(t *testing.T) {
	online := statusPayload("online", "bridge", "")
	if strings.Contains(online, "reason") {
		t.Errorf("online payload has reason: %s", online)
	}
	offline := statusPayload("offline", "bridge", "graceful_shutdown")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}
