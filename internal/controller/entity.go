package controller

import (
	"context"
	"sync"
)

// mqttEntity is an Entity kept up to date from adapter messages.
type mqttEntity struct {
	client  *MQTTClient
	arrival int

	mu     sync.RWMutex
	desc   EntityMessage
	status Status

	subMu   sync.Mutex
	subs    map[int]func(Status)
	nextSub int
}

func newMQTTEntity(c *MQTTClient, msg EntityMessage, arrival int) *mqttEntity {
	return &mqttEntity{
		client:  c,
		arrival: arrival,
		desc:    msg,
		status:  statusFromWire(msg.Status),
		subs:    make(map[int]func(Status)),
	}
}

func (e *mqttEntity) Address() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desc.Address
}

func (e *mqttEntity) Name() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desc.Name
}

func (e *mqttEntity) Spoken() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desc.Spoken
}

func (e *mqttEntity) Dimmable() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desc.Dimmable
}

func (e *mqttEntity) Protocol() Protocol {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desc.Protocol
}

func (e *mqttEntity) NodeDefID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desc.NodeDefID
}

func (e *mqttEntity) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *mqttEntity) order() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desc.Order
}

func (e *mqttEntity) Groups(responderOnly bool) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for _, g := range e.desc.Groups {
		if responderOnly && !g.Responder {
			continue
		}
		out = append(out, g.Address)
	}
	return out
}

func (e *mqttEntity) SubscribeStatus(fn func(Status)) (cancel func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

func (e *mqttEntity) TurnOn(ctx context.Context) error {
	return e.client.sendCommand(ctx, e.Address(), CommandOn, nil)
}

func (e *mqttEntity) TurnOff(ctx context.Context) error {
	return e.client.sendCommand(ctx, e.Address(), CommandOff, nil)
}

func (e *mqttEntity) TurnOnAt(ctx context.Context, level uint8) error {
	return e.client.sendCommand(ctx, e.Address(), CommandOn, map[string]any{"level": int(level)})
}

// update replaces the descriptor. A changed status is delivered to subscribers.
func (e *mqttEntity) update(msg EntityMessage) {
	e.mu.Lock()
	e.desc = msg
	e.mu.Unlock()

	e.setStatus(statusFromWire(msg.Status), false)
}

// setStatus stores s and notifies subscribers. Without always, subscribers
// are only notified when s differs from the previous value. Callbacks run
// outside the entity locks.
func (e *mqttEntity) setStatus(s Status, always bool) {
	e.mu.Lock()
	changed := e.status != s
	e.status = s
	e.mu.Unlock()

	if !changed && !always {
		return
	}

	e.subMu.Lock()
	fns := make([]func(Status), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
