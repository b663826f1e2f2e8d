package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-huebridge/internal/controller"
)

// Kind is the bulb model a handler presents. It is decided once, at construction.
type Kind int

const (
	KindOnOffLight Kind = iota + 1
	KindDimmableLight
)

// String returns the bulb type name shown to the emulation boundary.
func (k Kind) String() string {
	switch k {
	case KindOnOffLight:
		return "On/off light"
	case KindDimmableLight:
		return "Dimmable light"
	default:
		return "unknown"
	}
}

// Sources of a StateChange.
const (
	SourceStatus  = "status"
	SourceCommand = "command"
)

// MaxBrightness is the brightness of a fully on device.
const MaxBrightness uint8 = 255

// aliasUseName is the spoken alias meaning "expose under the display name".
const aliasUseName = "1"

// StateChange describes a change applied to a handler's cached state.
type StateChange struct {
	ID         string
	Name       string
	On         bool
	Brightness uint8
	Source     string
	Timestamp  time.Time
}

// Logger defines the logging interface used by handlers and the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// Name overrides the spoken name. Empty means SpokenName(entity).
	Name string

	// Scene is the single scene the node is a responder of, if any.
	// Ignored for group entities.
	Scene controller.Entity

	// SceneFallback retries an action on Scene when the controller reports
	// the node as not directly addressable.
	SceneFallback bool

	// OnChange receives every applied state change.
	OnChange func(StateChange)

	Logger Logger
}

// Handler presents one controller entity as a light.
//
// Thread Safety: all methods are safe for concurrent use. Status events
// arrive on controller goroutines and only touch the handler's own state.
type Handler struct {
	entity   controller.Entity
	scene    controller.Entity
	id       string
	name     string
	kind     Kind
	isScene  bool
	fallback bool
	onChange func(StateChange)
	logger   Logger

	mu         sync.RWMutex
	on         bool
	brightness uint8

	cancel    func()
	closeOnce sync.Once
}

// SpokenName returns the name an entity is exposed under: its spoken alias,
// or its display name when the alias is "1".
func SpokenName(e controller.Entity) string {
	if alias := e.Spoken(); alias != aliasUseName {
		return alias
	}
	return e.Name()
}

// Classify decides the bulb model of an entity.
//
// Groups are dimmable scenes. A dimmable node is dimmable unless its address
// names a secondary keypad button. Everything else is on/off.
func Classify(e controller.Entity) (kind Kind, isScene bool) {
	switch {
	case e.Protocol() == controller.ProtocolGroup:
		return KindDimmableLight, true
	case e.Dimmable() && !controller.IsSecondaryButton(e.Address()):
		return KindDimmableLight, false
	default:
		return KindOnOffLight, false
	}
}

// NewHandler classifies entity, seeds the cached state from its current
// status and subscribes to its status events. Close releases the subscription.
func NewHandler(entity controller.Entity, opts HandlerOptions) *Handler {
	kind, isScene := Classify(entity)

	h := &Handler{
		entity:   entity,
		id:       entity.Address(),
		name:     opts.Name,
		kind:     kind,
		isScene:  isScene,
		fallback: opts.SceneFallback,
		onChange: opts.OnChange,
		logger:   opts.Logger,
	}
	if h.name == "" {
		h.name = SpokenName(entity)
	}
	if !isScene {
		h.scene = opts.Scene
	}
	if h.logger == nil {
		h.logger = noopLogger{}
	}

	h.on, h.brightness = h.translate(entity.Status())
	h.cancel = entity.SubscribeStatus(h.applyStatus)
	return h
}

func (h *Handler) ID() string                { return h.id }
func (h *Handler) Name() string              { return h.name }
func (h *Handler) Kind() Kind                { return h.kind }
func (h *Handler) IsScene() bool             { return h.isScene }
func (h *Handler) Entity() controller.Entity { return h.entity }

// Scene returns the scene recorded for a plain node, or nil.
func (h *Handler) Scene() controller.Entity { return h.scene }

// On reports the cached on flag.
func (h *Handler) On() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.on
}

// Brightness reports the cached brightness.
func (h *Handler) Brightness() uint8 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.brightness
}

// State returns the cached on flag and brightness together.
func (h *Handler) State() (on bool, brightness uint8) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.on, h.brightness
}

// SetOn activates the device. The cached state follows the next status event.
func (h *Handler) SetOn(ctx context.Context) error {
	return h.act(ctx, "on", func(e controller.Entity) error { return e.TurnOn(ctx) })
}

// SetOff deactivates the device. The cached state follows the next status event.
func (h *Handler) SetOff(ctx context.Context) error {
	return h.act(ctx, "off", func(e controller.Entity) error { return e.TurnOff(ctx) })
}

// SetBrightness drives the device towards brightness v.
//
// Zero turns the device off. Scenes and on/off lights are switched fully on.
// Dimmable lights receive v unchanged and are updated by the status event
// that follows, unless the request fell back to the scene, which is switched
// fully on. Every other case writes the expected state immediately.
// On failure the cached state is left as it was.
func (h *Handler) SetBrightness(ctx context.Context, v uint8) error {
	switch {
	case v == 0:
		if err := h.SetOff(ctx); err != nil {
			return err
		}
		h.set(false, 0, SourceCommand)
	case h.isScene || h.kind == KindOnOffLight:
		if err := h.SetOn(ctx); err != nil {
			return err
		}
		h.set(true, MaxBrightness, SourceCommand)
	default:
		viaScene := false
		err := h.act(ctx, "on_at", func(e controller.Entity) error {
			if e == h.scene {
				viaScene = true
				return e.TurnOn(ctx)
			}
			return e.TurnOnAt(ctx, v)
		})
		if err != nil {
			return err
		}
		if viaScene {
			h.set(true, MaxBrightness, SourceCommand)
		}
	}
	return nil
}

// Close releases the status subscription. It is safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
	})
}

// act runs fn against the entity, retrying on the recorded scene when the
// node is not directly addressable and fallback is enabled.
func (h *Handler) act(ctx context.Context, action string, fn func(controller.Entity) error) error {
	err := fn(h.entity)
	if err != nil && h.scene != nil && h.fallback && errors.Is(err, controller.ErrNotAddressable) {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", action, h.id, ctx.Err())
		}
		h.logger.Info("node not addressable, using scene",
			"id", h.id,
			"scene", h.scene.Address(),
			"action", action,
		)
		err = fn(h.scene)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, h.id, err)
	}
	return nil
}

// applyStatus is the status event callback.
func (h *Handler) applyStatus(s controller.Status) {
	on, bri := h.translate(s)
	h.set(on, bri, SourceStatus)
}

// translate maps a native status onto the bulb model.
func (h *Handler) translate(s controller.Status) (on bool, brightness uint8) {
	if s == controller.StatusUnknown || s < 0 {
		h.logger.Warn("unknown status, treating as off", "id", h.id, "name", h.name)
		return false, 0
	}
	if s > controller.Status(MaxBrightness) {
		s = controller.Status(MaxBrightness)
	}
	brightness = uint8(s)
	return brightness != 0, brightness
}

func (h *Handler) set(on bool, brightness uint8, source string) {
	h.mu.Lock()
	changed := h.on != on || h.brightness != brightness
	h.on = on
	h.brightness = brightness
	h.mu.Unlock()

	if !changed || h.onChange == nil {
		return
	}
	h.onChange(StateChange{
		ID:         h.id,
		Name:       h.name,
		On:         on,
		Brightness: brightness,
		Source:     source,
		Timestamp:  time.Now().UTC(),
	})
}
