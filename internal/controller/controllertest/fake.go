// Package controllertest provides in-memory controller entities and clients
// for tests.
package controllertest

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-huebridge/internal/controller"
)

// Call records one action issued against an Entity.
type Call struct {
	Address string
	Action  string // "on", "off" or "on_at"
	Level   uint8
}

// Entity is a scriptable controller.Entity.
type Entity struct {
	mu        sync.Mutex
	address   string
	name      string
	spoken    string
	dimmable  bool
	protocol  controller.Protocol
	nodeDefID string
	status    controller.Status
	groups    []controller.GroupRef

	subs    map[int]func(controller.Status)
	nextSub int

	calls []Call
	errs  map[string]error
}

// NewNode returns a plain node with status 0.
func NewNode(address, name, spoken string, dimmable bool) *Entity {
	return &Entity{
		address:  address,
		name:     name,
		spoken:   spoken,
		dimmable: dimmable,
		protocol: controller.ProtocolNode,
		subs:     make(map[int]func(controller.Status)),
		errs:     make(map[string]error),
	}
}

// NewGroup returns a scene with status 0.
func NewGroup(address, name, spoken string) *Entity {
	e := NewNode(address, name, spoken, false)
	e.protocol = controller.ProtocolGroup
	return e
}

// AddGroup records a scene membership.
func (e *Entity) AddGroup(address string, responder bool) *Entity {
	e.mu.Lock()
	e.groups = append(e.groups, controller.GroupRef{Address: address, Responder: responder})
	e.mu.Unlock()
	return e
}

// SetNodeDefID sets the node definition id.
func (e *Entity) SetNodeDefID(id string) *Entity {
	e.mu.Lock()
	e.nodeDefID = id
	e.mu.Unlock()
	return e
}

// SetName changes the display name.
func (e *Entity) SetName(name string) {
	e.mu.Lock()
	e.name = name
	e.mu.Unlock()
}

// SetSpoken changes the spoken alias.
func (e *Entity) SetSpoken(spoken string) {
	e.mu.Lock()
	e.spoken = spoken
	e.mu.Unlock()
}

// SetStatus stores s without notifying subscribers.
func (e *Entity) SetStatus(s controller.Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// Emit stores s and delivers it to every subscriber, as a status event would.
func (e *Entity) Emit(s controller.Status) {
	e.mu.Lock()
	e.status = s
	fns := make([]func(controller.Status), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// FailWith makes the named action ("on", "off", "on_at") return err.
// A nil err clears the failure.
func (e *Entity) FailWith(action string, err error) {
	e.mu.Lock()
	if err == nil {
		delete(e.errs, action)
	} else {
		e.errs[action] = err
	}
	e.mu.Unlock()
}

// Calls returns the actions issued so far.
func (e *Entity) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Subscribers returns the number of active status subscriptions.
func (e *Entity) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Entity) Address() string { return e.address }

func (e *Entity) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

func (e *Entity) Spoken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spoken
}

func (e *Entity) Dimmable() bool                { return e.dimmable }
func (e *Entity) Protocol() controller.Protocol { return e.protocol }

func (e *Entity) NodeDefID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nodeDefID
}

func (e *Entity) Status() controller.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Entity) Groups(responderOnly bool) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, g := range e.groups {
		if responderOnly && !g.Responder {
			continue
		}
		out = append(out, g.Address)
	}
	return out
}

func (e *Entity) SubscribeStatus(fn func(controller.Status)) (cancel func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

func (e *Entity) TurnOn(_ context.Context) error {
	return e.record(Call{Address: e.address, Action: "on"})
}

func (e *Entity) TurnOff(_ context.Context) error {
	return e.record(Call{Address: e.address, Action: "off"})
}

func (e *Entity) TurnOnAt(_ context.Context, level uint8) error {
	return e.record(Call{Address: e.address, Action: "on_at", Level: level})
}

func (e *Entity) record(c Call) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
	return e.errs[c.Action]
}

// Client is an in-memory controller.Client.
type Client struct {
	mu        sync.Mutex
	entities  []controller.Entity
	connected bool
	closed    bool
}

// NewClient returns a connected client holding entities in tree order.
func NewClient(entities ...*Entity) *Client {
	c := &Client{connected: true}
	for _, e := range entities {
		c.entities = append(c.entities, e)
	}
	return c
}

// SetEntities replaces the tree.
func (c *Client) SetEntities(entities ...*Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = c.entities[:0]
	for _, e := range entities {
		c.entities = append(c.entities, e)
	}
}

// SetConnected changes the reported connection state.
func (c *Client) SetConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) Entities() []controller.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]controller.Entity(nil), c.entities...)
}

func (c *Client) Entity(address string) (controller.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entities {
		if e.Address() == address {
			return e, true
		}
	}
	return nil, false
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

var (
	_ controller.Entity = (*Entity)(nil)
	_ controller.Client = (*Client)(nil)
)
