package device

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the numbered slots presented to the emulation boundary and
// the identity map that keeps those numbers stable.
//
// A slot is either a Handler or empty. Indices are never shifted: removing a
// device leaves an empty slot behind.
//
// All public methods are thread-safe.
type Registry struct {
	mu         sync.RWMutex
	slots      []*Handler
	staged     []*Handler // slots being built by the current scan
	scanning   bool
	identities map[int]Identity // recorded identities by index
	claimed    map[int]bool     // indices handed out since the last rescan
	logger     Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[int]Identity),
		claimed:    make(map[int]bool),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Load replaces the identity map. Entries with a negative index are skipped;
// for duplicated indices the last entry wins.
func (r *Registry) Load(ids []Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.identities = make(map[int]Identity, len(ids))
	for _, id := range ids {
		if id.Index < 0 {
			r.logger.Warn("skipping identity with negative index", "id", id.ID, "name", id.Name, "index", id.Index)
			continue
		}
		r.identities[id.Index] = id
	}
	r.logger.Debug("identity map loaded", "count", len(r.identities))
}

// Identities returns the identity map ordered by index.
func (r *Registry) Identities() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identity, 0, len(r.identities))
	for _, id := range r.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// MaxIdentityIndex returns the highest index in the identity map, or -1.
func (r *Registry) MaxIdentityIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	highest := -1
	for idx := range r.identities {
		if idx > highest {
			highest = idx
		}
	}
	return highest
}

// ResetForRescan starts a scan with maxPriorIndex+1 empty staged slots, so
// indices recorded in the identity map are reserved before any entity is
// reconciled. Readers keep seeing the current slots until Commit.
func (r *Registry) ResetForRescan(maxPriorIndex int) {
	size := maxPriorIndex + 1
	if size < 0 {
		size = 0
	}

	r.mu.Lock()
	abandoned := r.staged
	r.staged = make([]*Handler, size)
	r.scanning = true
	r.claimed = make(map[int]bool)
	live := append([]*Handler(nil), r.slots...)
	r.mu.Unlock()

	closeDropped(abandoned, live)
}

// Commit swaps the staged slots in and closes every handler that did not
// survive the scan. It is a no-op outside a scan.
func (r *Registry) Commit() {
	r.mu.Lock()
	if !r.scanning {
		r.mu.Unlock()
		return
	}
	old := r.slots
	r.slots = r.staged
	r.staged = nil
	r.scanning = false
	current := append([]*Handler(nil), r.slots...)
	r.mu.Unlock()

	closeDropped(old, current)
}

// closeDropped closes the handlers of old that are not in current.
func closeDropped(old, current []*Handler) {
	keep := make(map[*Handler]bool, len(current))
	for _, h := range current {
		if h != nil {
			keep[h] = true
		}
	}
	for _, h := range old {
		if h != nil && !keep[h] {
			h.Close()
		}
	}
}

// Reconcile returns the index h must occupy. It is ReconcileAll for a
// single handler.
func (r *Registry) Reconcile(h *Handler) int {
	return r.ReconcileAll([]*Handler{h})[0]
}

// ReconcileAll returns the index each handler must occupy, in order.
//
// Every id match is resolved before any name is considered, so a handler
// whose id is still recorded keeps its index whatever the walk order. A name
// match is used only when its index is unclaimed in this scan and the id
// recorded there is not present among hs. Without a match the next index is
// the current slot count; the slot table grows by one empty slot to reserve
// it. The identity map is updated to each handler's current id and name.
func (r *Registry) ReconcileAll(hs []*Handler) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	inScan := make(map[string]bool, len(hs))
	for _, h := range hs {
		inScan[h.ID()] = true
	}
	order := r.identityIndicesLocked()

	indices := make([]int, len(hs))
	for i, h := range hs {
		indices[i] = -1
		for _, idx := range order {
			if r.identities[idx].ID == h.ID() && !r.claimed[idx] {
				indices[i] = idx
				r.claimed[idx] = true
				break
			}
		}
	}

	for i, h := range hs {
		how := "id"
		if indices[i] < 0 {
			how = "name"
			for _, idx := range order {
				id := r.identities[idx]
				if id.Name == h.Name() && !r.claimed[idx] && !inScan[id.ID] {
					indices[i] = idx
					break
				}
			}
		}
		if indices[i] < 0 {
			how = "new"
			table := r.targetLocked()
			indices[i] = len(*table)
			*table = append(*table, nil)
		}
		r.recordLocked(h, indices[i], how)
	}
	return indices
}

func (r *Registry) recordLocked(h *Handler, index int, how string) {
	if prev, ok := r.identities[index]; ok && (prev.ID != h.ID() || prev.Name != h.Name()) {
		r.logger.Info("identity updated", "index", index, "old_id", prev.ID, "id", h.ID(), "old_name", prev.Name, "name", h.Name())
	}
	r.identities[index] = Identity{Name: h.Name(), ID: h.ID(), Index: index}
	r.claimed[index] = true
	r.logger.Debug("device reconciled", "id", h.ID(), "name", h.Name(), "index", index, "match", how)
}

func (r *Registry) identityIndicesLocked() []int {
	indices := make([]int, 0, len(r.identities))
	for idx := range r.identities {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// targetLocked returns the table scan writes go to: the staged slots during
// a scan, the live slots otherwise.
func (r *Registry) targetLocked() *[]*Handler {
	if r.scanning {
		return &r.staged
	}
	return &r.slots
}

// Place installs h at index, growing the slot table with empty slots as
// needed. During a scan the staged table is written. A handler already at
// index is replaced and closed unless it is h.
func (r *Registry) Place(index int, h *Handler) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if h == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	table := r.targetLocked()
	for len(*table) <= index {
		*table = append(*table, nil)
	}
	old := (*table)[index]
	(*table)[index] = h
	r.claimed[index] = true
	r.mu.Unlock()

	if old != nil && old != h {
		old.Close()
	}
	return nil
}

// Snapshot returns the identities of the occupied slots, ordered by index.
func (r *Registry) Snapshot() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identity, 0, len(r.slots))
	for i, h := range r.slots {
		if h == nil {
			continue
		}
		out = append(out, Identity{Name: h.Name(), ID: h.ID(), Index: i})
	}
	return out
}

// Count returns the number of slots, empty ones included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// Get returns the handler at index. The second result is false for empty
// or out of range slots.
func (r *Registry) Get(index int) (*Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.slots) || r.slots[index] == nil {
		return nil, false
	}
	return r.slots[index], true
}

// IndexOf returns the slot holding the handler with the given id.
func (r *Registry) IndexOf(id string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, h := range r.slots {
		if h != nil && h.ID() == id {
			return i, true
		}
	}
	return -1, false
}

// Handlers returns a copy of the slot table. Empty slots are nil.
func (r *Registry) Handlers() []*Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Handler(nil), r.slots...)
}

// Close closes every handler, staged ones included, and empties the slot
// table.
func (r *Registry) Close() {
	r.mu.Lock()
	old := append(append([]*Handler(nil), r.slots...), r.staged...)
	r.slots = nil
	r.staged = nil
	r.scanning = false
	r.claimed = make(map[int]bool)
	r.mu.Unlock()

	closeDropped(old, nil)
}
