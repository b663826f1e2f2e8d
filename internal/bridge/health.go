package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const defaultHealthInterval = 30 * time.Second

// HealthStatus is the operational status reported by the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained health document.
type HealthMessage struct {
	Bridge              string       `json:"bridge"`
	Timestamp           time.Time    `json:"timestamp"`
	Status              HealthStatus `json:"status"`
	Version             string       `json:"version"`
	UptimeSeconds       int64        `json:"uptime_seconds"`
	ControllerConnected bool         `json:"controller_connected"`
	Devices             int          `json:"devices"`
	Reason              string       `json:"reason,omitempty"`
}

// NewLWTMessage returns the message the broker publishes for a bridge that
// disappeared without stopping.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// HealthPublisher publishes health messages. *mqtt.Client satisfies it.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthSource supplies the figures in a health message. *Bridge satisfies it.
type HealthSource interface {
	ControllerConnected() bool
	DeviceCount() int
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Topic is the retained health topic.
	Topic string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Source    HealthSource
	Logger    Logger
}

// HealthReporter publishes the bridge health periodically.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time
	logger    Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best-effort during shutdown
		h.publish(HealthStopping, "bridge stopping")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

// Current returns the message PublishNow would send.
func (h *HealthReporter) Current() HealthMessage {
	status, reason := h.determineStatus()
	return h.message(status, reason)
}

// LWTPayload returns the offline message to register as the MQTT will.
func (h *HealthReporter) LWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.cfg.BridgeID))
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Source == nil || !h.cfg.Source.ControllerConnected() {
		return HealthDegraded, "controller disconnected"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.cfg.BridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.cfg.Source != nil {
		msg.ControllerConnected = h.cfg.Source.ControllerConnected()
		msg.Devices = h.cfg.Source.DeviceCount()
	}
	return msg
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return nil
	}

	payload, err := json.Marshal(h.message(status, reason))
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}
