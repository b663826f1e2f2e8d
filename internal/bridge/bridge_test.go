package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-huebridge/internal/controller"
	"github.com/nerrad567/gray-logic-huebridge/internal/controller/controllertest"
	"github.com/nerrad567/gray-logic-huebridge/internal/device"
)

// memStore is an in-memory device.IdentityStore.
type memStore struct {
	mu      sync.Mutex
	ids     []device.Identity
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) ([]device.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]device.Identity(nil), m.ids...), nil
}

func (m *memStore) Save(_ context.Context, ids []device.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.ids = append([]device.Identity(nil), ids...)
	return nil
}

func (m *memStore) saved() ([]device.Identity, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]device.Identity(nil), m.ids...), m.saves
}

func staticDialer(c controller.Client) Dialer {
	return func(context.Context) (controller.Client, error) { return c, nil }
}

func newTestBridge(t *testing.T, client controller.Client, store device.IdentityStore) *Bridge {
	t.Helper()
	b, err := New(Options{
		BridgeID:          "test",
		Dialer:            staticDialer(client),
		Store:             store,
		ConnectRetryDelay: time.Millisecond,
		SceneFallback:     true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { b.Close() }) //nolint:errcheck // test cleanup
	return b
}

func connectAndRefresh(t *testing.T, b *Bridge) {
	t.Helper()
	ctx := context.Background()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := b.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
}

func slotIDs(r *device.Registry) string {
	var out []string
	for _, h := range r.Handlers() {
		if h == nil {
			out = append(out, "-")
			continue
		}
		out = append(out, h.ID())
	}
	return fmt.Sprint(out)
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Store: &memStore{}}); err == nil {
		t.Error("New() without dialer should fail")
	}
	if _, err := New(Options{Dialer: staticDialer(controllertest.NewClient())}); err == nil {
		t.Error("New() without store should fail")
	}
}

func TestRefresh_FirstRun(t *testing.T) {
	client := controllertest.NewClient(
		controllertest.NewNode("X", "x", "x", true),
		controllertest.NewNode("Y", "y", "y", true),
		controllertest.NewNode("Z", "z", "z", true),
	)
	store := &memStore{}
	b := newTestBridge(t, client, store)

	connectAndRefresh(t, b)

	if got := slotIDs(b.Registry()); got != "[X Y Z]" {
		t.Errorf("slots = %s, want [X Y Z]", got)
	}
	ids, saves := store.saved()
	if saves != 1 || len(ids) != 3 || ids[2] != (device.Identity{Name: "z", ID: "Z", Index: 2}) {
		t.Errorf("saved = %v (%d saves)", ids, saves)
	}
	if b.DeviceCount() != 3 {
		t.Errorf("DeviceCount() = %d, want 3", b.DeviceCount())
	}
}

func TestRefresh_RestartKeepsIndices(t *testing.T) {
	store := &memStore{ids: []device.Identity{
		{Name: "x", ID: "X", Index: 0},
		{Name: "y", ID: "Y", Index: 1},
		{Name: "z", ID: "Z", Index: 2},
	}}
	client := controllertest.NewClient(
		controllertest.NewNode("Z", "z", "z", true),
		controllertest.NewNode("Y", "y", "y", true),
		controllertest.NewNode("X", "x", "x", true),
	)
	b := newTestBridge(t, client, store)

	connectAndRefresh(t, b)

	if got := slotIDs(b.Registry()); got != "[X Y Z]" {
		t.Errorf("slots = %s, want [X Y Z]", got)
	}
}

func TestRefresh_NewDeviceCannotTakeSlotByName(t *testing.T) {
	store := &memStore{ids: []device.Identity{
		{Name: "lamp", ID: "A", Index: 0},
		{Name: "desk", ID: "B", Index: 1},
	}}
	client := controllertest.NewClient(
		controllertest.NewNode("A", "Lamp", "lamp", true),
		controllertest.NewNode("C", "Desk 2", "desk", true),
		controllertest.NewNode("B", "Desk", "desk", true),
	)
	b := newTestBridge(t, client, store)

	connectAndRefresh(t, b)

	if got := slotIDs(b.Registry()); got != "[A B C]" {
		t.Errorf("slots = %s, want [A B C]", got)
	}
}

func TestRefresh_RemovedDeviceLeavesEmptySlot(t *testing.T) {
	store := &memStore{ids: []device.Identity{
		{Name: "a", ID: "A1", Index: 0},
		{Name: "b", ID: "B1", Index: 1},
	}}
	client := controllertest.NewClient(controllertest.NewNode("A1", "a", "a", true))
	b := newTestBridge(t, client, store)

	connectAndRefresh(t, b)

	if got := slotIDs(b.Registry()); got != "[A1 -]" {
		t.Errorf("slots = %s, want [A1 -]", got)
	}
	if b.Registry().Count() != 2 {
		t.Errorf("Count() = %d, want 2", b.Registry().Count())
	}
}

func TestRefresh_EmptyTreeLeavesRegistryAndStore(t *testing.T) {
	x := controllertest.NewNode("X", "x", "x", true)
	client := controllertest.NewClient(x)
	store := &memStore{}
	b := newTestBridge(t, client, store)
	connectAndRefresh(t, b)
	before, _ := b.Registry().Get(0)

	client.SetEntities()
	err := b.Refresh(context.Background())

	if !errors.Is(err, ErrEmptyTree) {
		t.Fatalf("Refresh() error = %v, want ErrEmptyTree", err)
	}
	if after, ok := b.Registry().Get(0); !ok || after != before {
		t.Error("registry changed after an empty tree")
	}
	if x.Subscribers() != 1 {
		t.Error("existing handler was closed after an empty tree")
	}
	if _, saves := store.saved(); saves != 1 {
		t.Errorf("saves = %d, want 1 (no save for the empty tree)", saves)
	}
	if !errors.Is(b.LastRefresh().Err, ErrEmptyTree) {
		t.Errorf("LastRefresh().Err = %v", b.LastRefresh().Err)
	}
}

func TestRefresh_PersistFailure(t *testing.T) {
	client := controllertest.NewClient(controllertest.NewNode("X", "x", "x", true))
	store := &memStore{saveErr: errors.New("disk full")}
	b := newTestBridge(t, client, store)

	if err := b.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := b.Refresh(context.Background())
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("Refresh() error = %v, want ErrPersistFailed", err)
	}
	if h, ok := b.Registry().Get(0); !ok || h.ID() != "X" {
		t.Error("registry unusable after a persist failure")
	}
}

func TestRefresh_LoadFailure(t *testing.T) {
	client := controllertest.NewClient(controllertest.NewNode("X", "x", "x", true))
	b := newTestBridge(t, client, &memStore{loadErr: errors.New("corrupt")})

	if err := b.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Refresh(context.Background()); err == nil {
		t.Error("Refresh() should fail when identities cannot be loaded")
	}
	if b.Registry().Count() != 0 {
		t.Error("registry filled despite load failure")
	}
}

func TestRefresh_NotConnected(t *testing.T) {
	b := newTestBridge(t, controllertest.NewClient(), &memStore{})
	if err := b.Refresh(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Refresh() error = %v, want ErrNotConnected", err)
	}
}

func TestRefresh_NamingAndFiltering(t *testing.T) {
	client := controllertest.NewClient(
		controllertest.NewNode("A", "Kitchen Main", "1", true),
		controllertest.NewNode("B", "Hidden", "", true),
		controllertest.NewNode("A1 02", "Keypad-B2", "keypad two", true),
		controllertest.NewGroup("1001", "Evening", "evening"),
	)
	b := newTestBridge(t, client, &memStore{})
	connectAndRefresh(t, b)

	reg := b.Registry()
	if got := slotIDs(reg); got != "[A A1 02 1001]" {
		t.Fatalf("slots = %s", got)
	}

	kitchen, _ := reg.Get(0)
	if kitchen.Name() != "Kitchen Main" {
		t.Errorf("alias \"1\" name = %q, want display name", kitchen.Name())
	}
	keypad, _ := reg.Get(1)
	if keypad.Kind() != device.KindOnOffLight {
		t.Errorf("secondary button kind = %v, want on/off", keypad.Kind())
	}
	scene, _ := reg.Get(2)
	if !scene.IsScene() || scene.Kind() != device.KindDimmableLight {
		t.Errorf("group = %v/%v, want dimmable scene", scene.Kind(), scene.IsScene())
	}
}

func TestRefresh_ResponderScene(t *testing.T) {
	single := controllertest.NewNode("N1", "Lamp", "lamp", true).AddGroup("S1", true).AddGroup("S2", false)
	multi := controllertest.NewNode("N2", "Fan", "fan", false).AddGroup("S1", true).AddGroup("S2", true)
	missing := controllertest.NewNode("N3", "Porch", "porch", false).AddGroup("GONE", true)
	client := controllertest.NewClient(
		single, multi, missing,
		controllertest.NewGroup("S1", "Evening", ""),
		controllertest.NewGroup("S2", "Morning", ""),
	)
	b := newTestBridge(t, client, &memStore{})
	connectAndRefresh(t, b)

	reg := b.Registry()
	h0, _ := reg.Get(0)
	if h0.Scene() == nil || h0.Scene().Address() != "S1" {
		t.Errorf("single responder scene = %v, want S1", h0.Scene())
	}
	h1, _ := reg.Get(1)
	if h1.Scene() != nil {
		t.Error("node responding to two scenes recorded one")
	}
	h2, _ := reg.Get(2)
	if h2.Scene() != nil {
		t.Error("scene missing from the tree was recorded")
	}
}

func TestRefresh_ReplacesHandlers(t *testing.T) {
	x := controllertest.NewNode("X", "x", "x", true)
	b := newTestBridge(t, controllertest.NewClient(x), &memStore{})
	connectAndRefresh(t, b)
	first, _ := b.Registry().Get(0)

	if err := b.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, _ := b.Registry().Get(0)

	if first == second {
		t.Error("refresh did not rebuild the handler")
	}
	if x.Subscribers() != 1 {
		t.Errorf("subscribers = %d, want 1 after rebuild", x.Subscribers())
	}
}

func TestStateListeners(t *testing.T) {
	x := controllertest.NewNode("X", "Kitchen", "kitchen", true)
	b := newTestBridge(t, controllertest.NewClient(x), &memStore{})

	var mu sync.Mutex
	var got []device.StateChange
	b.AddStateListener(func(c device.StateChange) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	connectAndRefresh(t, b)

	x.Emit(200)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].ID != "X" || got[0].Brightness != 200 || got[0].Source != device.SourceStatus {
		t.Errorf("changes = %+v", got)
	}
}

func TestOnRefreshHook(t *testing.T) {
	var statuses []RefreshStatus
	client := controllertest.NewClient(controllertest.NewNode("X", "x", "x", true))
	b, err := New(Options{
		Dialer:    staticDialer(client),
		Store:     &memStore{},
		OnRefresh: func(s RefreshStatus) { statuses = append(statuses, s) },
	})
	if err != nil {
		t.Fatal(err)
	}
	connectAndRefresh(t, b)

	if len(statuses) != 1 || statuses[0].Devices != 1 || statuses[0].Err != nil {
		t.Errorf("statuses = %+v", statuses)
	}
}

func TestConnect_Retries(t *testing.T) {
	client := controllertest.NewClient()
	attempts := 0
	b, err := New(Options{
		Dialer: func(context.Context) (controller.Client, error) {
			attempts++
			if attempts < 3 {
				return nil, controller.ErrNotConnected
			}
			return client, nil
		},
		Store:             &memStore{},
		ConnectAttempts:   5,
		ConnectRetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if attempts != 3 || !b.ControllerConnected() {
		t.Errorf("attempts = %d, connected = %v", attempts, b.ControllerConnected())
	}

	// A live connection is reused.
	if err := b.Connect(context.Background()); err != nil || attempts != 3 {
		t.Errorf("second Connect() = %v after %d attempts", err, attempts)
	}
}

func TestConnect_GivesUp(t *testing.T) {
	attempts := 0
	b, err := New(Options{
		Dialer: func(context.Context) (controller.Client, error) {
			attempts++
			return nil, controller.ErrNotConnected
		},
		Store:             &memStore{},
		ConnectAttempts:   4,
		ConnectRetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = b.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) || !errors.Is(err, controller.ErrNotConnected) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed wrapping the dial error", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestConnect_ReplacesDeadClient(t *testing.T) {
	first := controllertest.NewClient()
	second := controllertest.NewClient()
	clients := []*controllertest.Client{first, second}
	b, err := New(Options{
		Dialer: func(context.Context) (controller.Client, error) {
			c := clients[0]
			clients = clients[1:]
			return c, nil
		},
		Store: &memStore{},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	first.SetConnected(false)
	if b.ControllerConnected() {
		t.Fatal("ControllerConnected() = true with a dead client")
	}
	if err := b.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !first.Closed() || !b.ControllerConnected() {
		t.Error("dead client was not replaced")
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	b, err := New(Options{
		Dialer: func(context.Context) (controller.Client, error) {
			return nil, controller.ErrNotConnected
		},
		Store:             &memStore{},
		ConnectAttempts:   3,
		ConnectRetryDelay: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = b.Connect(ctx)
	if !errors.Is(err, ErrConnectionFailed) || !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v", err)
	}
}
