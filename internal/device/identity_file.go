package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	identityDirPermissions  = 0o755
	identityFilePermissions = 0o644
)

// FileIdentityStore keeps the identity snapshot in a JSON file.
//
// Saves write a temporary file in the same directory and rename it over the
// target, so a reader never observes a partial snapshot.
type FileIdentityStore struct {
	path string
	mu   sync.Mutex
}

// NewFileIdentityStore returns a store for the file at path.
func NewFileIdentityStore(path string) *FileIdentityStore {
	return &FileIdentityStore{path: path}
}

// Path returns the snapshot file path.
func (s *FileIdentityStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file yields no identities.
func (s *FileIdentityStore) Load(_ context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Identity{}, nil
		}
		return nil, fmt.Errorf("reading identity snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}
	if snap.Devices == nil {
		snap.Devices = []Identity{}
	}
	return snap.Devices, nil
}

// Save writes ids as a version 1 snapshot.
func (s *FileIdentityStore) Save(ctx context.Context, ids []Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ids == nil {
		ids = []Identity{}
	}
	data, err := json.MarshalIndent(Snapshot{Version: SnapshotVersion, Devices: ids}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding identity snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, identityDirPermissions); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, identityFilePermissions); err != nil {
		return fmt.Errorf("setting snapshot permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing identity snapshot: %w", err)
	}
	return nil
}
