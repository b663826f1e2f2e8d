package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/mqtt"
)

const (
	defaultCommandTimeout = 5 * time.Second
	defaultSource         = "huebridge"
)

// Transport is the broker connection the client runs on.
// *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// MQTTOptions configures an MQTTClient.
type MQTTOptions struct {
	// Protocol is the protocol topic segment (e.g. "isy").
	Protocol string

	Topics mqtt.Topics

	// DiscoveryWait is how long Dial collects retained entity descriptors.
	DiscoveryWait time.Duration

	// CommandTimeout bounds the wait for a command acknowledgement.
	// Default: 5s.
	CommandTimeout time.Duration

	QoS byte

	// Source is written into every CommandMessage. Default: "huebridge".
	Source string

	// Logger is optional.
	Logger Logger
}

// MQTTClient is a Client backed by a controller adapter on MQTT.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Status callbacks run on the transport's delivery goroutine.
type MQTTClient struct {
	transport Transport
	opts      MQTTOptions
	logger    Logger

	mu       sync.RWMutex
	entities map[string]*mqttEntity
	arrivals int

	pendingMu sync.Mutex
	pending   map[string]chan AckMessage

	done      chan struct{}
	closeOnce sync.Once
	subs      []string
}

// Dial subscribes to the controller adapter's topics and waits for the
// retained entity descriptors.
//
// Dial returns ErrNotConnected when the transport is down. An adapter that
// publishes no entities is not an error here; the caller decides what an
// empty tree means.
func Dial(ctx context.Context, transport Transport, opts MQTTOptions) (*MQTTClient, error) {
	if transport == nil || !transport.IsConnected() {
		return nil, ErrNotConnected
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.Source == "" {
		opts.Source = defaultSource
	}

	c := &MQTTClient{
		transport: transport,
		opts:      opts,
		logger:    opts.Logger,
		entities:  make(map[string]*mqttEntity),
		pending:   make(map[string]chan AckMessage),
		done:      make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}

	handlers := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{opts.Topics.AllEntities(opts.Protocol), c.handleEntity},
		{opts.Topics.AllStates(opts.Protocol), c.handleState},
		{opts.Topics.AllAcks(opts.Protocol), c.handleAck},
	}
	for _, h := range handlers {
		if err := transport.Subscribe(h.topic, opts.QoS, h.handler); err != nil {
			c.unsubscribeAll()
			return nil, fmt.Errorf("subscribing to %s: %w", h.topic, err)
		}
		c.subs = append(c.subs, h.topic)
	}

	if opts.DiscoveryWait > 0 {
		timer := time.NewTimer(opts.DiscoveryWait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			c.unsubscribeAll()
			return nil, fmt.Errorf("waiting for entity discovery: %w", ctx.Err())
		}
	}

	c.logger.Info("controller discovery complete",
		"protocol", opts.Protocol,
		"entities", c.entityCount(),
	)
	return c, nil
}

// Entities returns all known entities in tree order.
func (c *MQTTClient) Entities() []Entity {
	c.mu.RLock()
	list := make([]*mqttEntity, 0, len(c.entities))
	for _, e := range c.entities {
		list = append(list, e)
	}
	c.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		oi, oj := list[i].order(), list[j].order()
		if oi != oj {
			return oi < oj
		}
		return list[i].arrival < list[j].arrival
	})

	out := make([]Entity, len(list))
	for i, e := range list {
		out[i] = e
	}
	return out
}

// Entity looks up an entity by address.
func (c *MQTTClient) Entity(address string) (Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[address]
	if !ok {
		return nil, false
	}
	return e, true
}

// IsConnected reports whether the client is open and the transport is up.
func (c *MQTTClient) IsConnected() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	return c.transport.IsConnected()
}

// Close unsubscribes from the adapter topics and fails in-flight commands
// with ErrClosed. The transport itself is left open.
func (c *MQTTClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.unsubscribeAll()
	})
	return nil
}

func (c *MQTTClient) unsubscribeAll() {
	for _, topic := range c.subs {
		if err := c.transport.Unsubscribe(topic); err != nil {
			c.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
	}
	c.subs = nil
}

func (c *MQTTClient) entityCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

func (c *MQTTClient) handleEntity(topic string, payload []byte) error {
	if len(payload) == 0 {
		c.removeByTopic(topic)
		return nil
	}

	msg, err := decodeEntity(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	e, exists := c.entities[msg.Address]
	if !exists {
		c.arrivals++
		e = newMQTTEntity(c, msg, c.arrivals)
		c.entities[msg.Address] = e
	}
	c.mu.Unlock()

	if exists {
		e.update(msg)
	}
	return nil
}

func (c *MQTTClient) removeByTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr := range c.entities {
		if c.opts.Topics.Entity(c.opts.Protocol, addr) == topic {
			delete(c.entities, addr)
			c.logger.Debug("entity removed", "address", addr)
			return
		}
	}
}

func (c *MQTTClient) handleState(_ string, payload []byte) error {
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: state: %w", ErrInvalidMessage, err)
	}

	c.mu.RLock()
	e, ok := c.entities[msg.Address]
	c.mu.RUnlock()
	if !ok {
		c.logger.Debug("status for unknown entity", "address", msg.Address)
		return nil
	}

	e.setStatus(statusFromWire(msg.Status), true)
	return nil
}

func (c *MQTTClient) handleAck(_ string, payload []byte) error {
	var ack AckMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("%w: ack: %w", ErrInvalidMessage, err)
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[ack.CommandID]
	if ok {
		delete(c.pending, ack.CommandID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- ack // buffered, one ack per command
	}
	return nil
}

// sendCommand publishes a command and waits for its acknowledgement.
func (c *MQTTClient) sendCommand(ctx context.Context, address, command string, params map[string]any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if !c.transport.IsConnected() {
		return ErrNotConnected
	}

	cmd := CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Address:    address,
		Command:    command,
		Parameters: params,
		Source:     c.opts.Source,
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	ackCh := make(chan AckMessage, 1)
	c.pendingMu.Lock()
	c.pending[cmd.ID] = ackCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, cmd.ID)
		c.pendingMu.Unlock()
	}()

	topic := c.opts.Topics.Command(c.opts.Protocol, address)
	if err := c.transport.Publish(topic, payload, c.opts.QoS, false); err != nil {
		return fmt.Errorf("%w: %w", ErrCommandFailed, err)
	}

	timer := time.NewTimer(c.opts.CommandTimeout)
	defer timer.Stop()

	select {
	case ack := <-ackCh:
		return ackError(ack)
	case <-timer.C:
		return fmt.Errorf("%w: %s %s after %v", ErrCommandTimeout, command, address, c.opts.CommandTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", command, address, ctx.Err())
	case <-c.done:
		return ErrClosed
	}
}
