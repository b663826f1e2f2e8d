package bridge

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-huebridge/internal/controller"
	"github.com/nerrad567/gray-logic-huebridge/internal/device"
)

const (
	defaultConnectAttempts   = 10
	defaultConnectRetryDelay = 3 * time.Second
)

// Logger is the logging dependency of this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dialer opens a connection to the controller.
type Dialer func(ctx context.Context) (controller.Client, error)

// RefreshStatus describes the last completed refresh.
type RefreshStatus struct {
	At      time.Time
	Took    time.Duration
	Devices int
	Err     error
}

// Options configures a Bridge.
type Options struct {
	// BridgeID names this bridge in logs and health messages.
	BridgeID string

	// Dialer opens the controller connection. Required.
	Dialer Dialer

	// Store persists the identity map. Required.
	Store device.IdentityStore

	// Registry receives the handlers. Default: a new registry.
	Registry *device.Registry

	// ConnectAttempts bounds Connect. Default: 10.
	ConnectAttempts int

	// ConnectRetryDelay is the pause between attempts. Default: 3s.
	ConnectRetryDelay time.Duration

	// SceneFallback lets a node that is not directly addressable be driven
	// through the one scene it responds to.
	SceneFallback bool

	// OnRefresh, if set, is called after every refresh attempt.
	OnRefresh func(RefreshStatus)

	Logger Logger
}

// Bridge owns the controller connection and the device registry.
//
// Thread Safety: all methods are safe for concurrent use. Refresh calls are
// serialised.
type Bridge struct {
	opts     Options
	registry *device.Registry
	logger   Logger

	clientMu sync.RWMutex
	client   controller.Client

	refreshMu sync.Mutex
	loaded    bool

	lastMu sync.RWMutex
	last   RefreshStatus

	listenersMu sync.RWMutex
	listeners   []func(device.StateChange)
}

// New creates a bridge. Call Connect, then Refresh.
func New(opts Options) (*Bridge, error) {
	if opts.Dialer == nil {
		return nil, fmt.Errorf("controller dialer is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = defaultConnectAttempts
	}
	if opts.ConnectRetryDelay <= 0 {
		opts.ConnectRetryDelay = defaultConnectRetryDelay
	}
	if opts.Registry == nil {
		opts.Registry = device.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Bridge{
		opts:     opts,
		registry: opts.Registry,
		logger:   opts.Logger,
	}, nil
}

// Registry returns the registry the bridge fills.
func (b *Bridge) Registry() *device.Registry {
	return b.registry
}

// ControllerConnected reports whether a controller connection is up.
func (b *Bridge) ControllerConnected() bool {
	c := b.currentClient()
	return c != nil && c.IsConnected()
}

// DeviceCount returns the number of occupied registry slots.
func (b *Bridge) DeviceCount() int {
	n := 0
	for _, h := range b.registry.Handlers() {
		if h != nil {
			n++
		}
	}
	return n
}

// LastRefresh returns the outcome of the most recent refresh.
func (b *Bridge) LastRefresh() RefreshStatus {
	b.lastMu.RLock()
	defer b.lastMu.RUnlock()
	return b.last
}

// AddStateListener registers fn for every state change of every handler.
// Listeners run on the goroutine that applied the change.
func (b *Bridge) AddStateListener(fn func(device.StateChange)) {
	b.listenersMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenersMu.Unlock()
}

func (b *Bridge) notify(change device.StateChange) {
	b.listenersMu.RLock()
	listeners := slices.Clone(b.listeners)
	b.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

func (b *Bridge) currentClient() controller.Client {
	b.clientMu.RLock()
	defer b.clientMu.RUnlock()
	return b.client
}

// Connect opens the controller connection, retrying up to ConnectAttempts
// times. An existing live connection is kept.
func (b *Bridge) Connect(ctx context.Context) error {
	if b.ControllerConnected() {
		return nil
	}
	b.dropClient()

	var lastErr error
	for attempt := 1; attempt <= b.opts.ConnectAttempts; attempt++ {
		client, err := b.opts.Dialer(ctx)
		if err == nil {
			b.clientMu.Lock()
			b.client = client
			b.clientMu.Unlock()
			b.logger.Info("controller connected", "bridge_id", b.opts.BridgeID, "attempt", attempt)
			return nil
		}
		lastErr = err
		b.logger.Warn("controller connection attempt failed",
			"attempt", attempt,
			"max_attempts", b.opts.ConnectAttempts,
			"error", err,
		)

		if attempt == b.opts.ConnectAttempts {
			break
		}
		timer := time.NewTimer(b.opts.ConnectRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrConnectionFailed, b.opts.ConnectAttempts, lastErr)
}

func (b *Bridge) dropClient() {
	b.clientMu.Lock()
	old := b.client
	b.client = nil
	b.clientMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			b.logger.Debug("closing stale controller client", "error", err)
		}
	}
}

// Refresh rebuilds the registry from the controller tree and persists the
// resulting identity snapshot.
func (b *Bridge) Refresh(ctx context.Context) error {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	start := time.Now()
	devices, err := b.refreshLocked(ctx)
	status := RefreshStatus{At: start.UTC(), Took: time.Since(start), Devices: devices, Err: err}

	b.lastMu.Lock()
	b.last = status
	b.lastMu.Unlock()

	if err != nil {
		b.logger.Error("refresh failed", "bridge_id", b.opts.BridgeID, "error", err)
	} else {
		b.logger.Info("refresh complete",
			"bridge_id", b.opts.BridgeID,
			"devices", devices,
			"slots", b.registry.Count(),
			"took", status.Took,
		)
	}
	if b.opts.OnRefresh != nil {
		b.opts.OnRefresh(status)
	}
	return err
}

func (b *Bridge) refreshLocked(ctx context.Context) (int, error) {
	client := b.currentClient()
	if client == nil || !client.IsConnected() {
		return 0, ErrNotConnected
	}

	entities := client.Entities()
	if len(entities) == 0 {
		return 0, ErrEmptyTree
	}

	if !b.loaded {
		ids, err := b.opts.Store.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("loading identities: %w", err)
		}
		b.registry.Load(ids)
		b.loaded = true
	}

	b.registry.ResetForRescan(b.registry.MaxIdentityIndex())

	var handlers []*device.Handler
	for _, e := range entities {
		if !e.Protocol().Valid() || e.Spoken() == "" {
			continue
		}
		handlers = append(handlers, device.NewHandler(e, device.HandlerOptions{
			Name:          device.SpokenName(e),
			Scene:         b.responderScene(client, e),
			SceneFallback: b.opts.SceneFallback,
			OnChange:      b.notify,
			Logger:        b.logger,
		}))
	}

	placed := 0
	for i, index := range b.registry.ReconcileAll(handlers) {
		h := handlers[i]
		if err := b.registry.Place(index, h); err != nil {
			b.logger.Warn("device not placed", "id", h.ID(), "index", index, "error", err)
			h.Close()
			continue
		}
		placed++
	}
	b.registry.Commit()

	snapshot := b.registry.Snapshot()
	if err := b.opts.Store.Save(ctx, snapshot); err != nil {
		return placed, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	b.registry.Load(snapshot)
	return placed, nil
}

// responderScene returns the scene a plain node responds to when there is
// exactly one.
func (b *Bridge) responderScene(client controller.Client, e controller.Entity) controller.Entity {
	if e.Protocol() != controller.ProtocolNode {
		return nil
	}
	groups := e.Groups(true)
	if len(groups) != 1 {
		return nil
	}
	scene, ok := client.Entity(groups[0])
	if !ok {
		b.logger.Debug("responder scene not in tree", "id", e.Address(), "scene", groups[0])
		return nil
	}
	return scene
}

// Close releases every handler and the controller connection.
func (b *Bridge) Close() error {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	b.registry.Close()
	b.dropClient()
	return nil
}
