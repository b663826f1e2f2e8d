package device

import (
	"context"
	"fmt"
)

// SnapshotVersion is the identity snapshot format written by this package.
const SnapshotVersion = 1

// Identity ties a controller id and spoken name to a slot index.
type Identity struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Index int    `json:"index"`
}

// Snapshot is the persisted form of the identity map.
type Snapshot struct {
	Version int        `json:"version"`
	Devices []Identity `json:"devices"`
}

// IdentityStore persists the identity map between runs.
type IdentityStore interface {
	// Load returns the saved identities. A store that was never written
	// returns an empty slice and no error.
	Load(ctx context.Context) ([]Identity, error)

	// Save replaces the saved identities atomically.
	Save(ctx context.Context, ids []Identity) error
}

// MaxIndex returns the highest index in ids, or -1 when ids is empty.
func MaxIndex(ids []Identity) int {
	highest := -1
	for _, id := range ids {
		if id.Index > highest {
			highest = id.Index
		}
	}
	return highest
}

// validateSnapshot checks a decoded snapshot. Version 0 is read as the
// current version.
func validateSnapshot(s Snapshot) error {
	if s.Version > SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	seen := make(map[int]string, len(s.Devices))
	for _, d := range s.Devices {
		if d.Index < 0 {
			return fmt.Errorf("%w: %s has index %d", ErrInvalidSnapshot, d.ID, d.Index)
		}
		if other, dup := seen[d.Index]; dup {
			return fmt.Errorf("%w: index %d used by %s and %s", ErrInvalidSnapshot, d.Index, other, d.ID)
		}
		seen[d.Index] = d.ID
	}
	return nil
}
