package device

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/database"
)

// SQLiteIdentityStore keeps the identity map in the device_identities table.
// The schema is created by the migrations package.
type SQLiteIdentityStore struct {
	db *database.DB
}

// NewSQLiteIdentityStore creates a store on an open, migrated database.
func NewSQLiteIdentityStore(db *database.DB) *SQLiteIdentityStore {
	return &SQLiteIdentityStore{db: db}
}

// Load returns every stored identity ordered by index.
func (s *SQLiteIdentityStore) Load(ctx context.Context) ([]Identity, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM identity_snapshots",
	).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot version: %w", err)
	}
	if version > SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, slot_index FROM device_identities ORDER BY slot_index",
	)
	if err != nil {
		return nil, fmt.Errorf("querying identities: %w", err)
	}
	defer rows.Close()

	ids := []Identity{}
	for rows.Next() {
		var id Identity
		if err := rows.Scan(&id.ID, &id.Name, &id.Index); err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identities: %w", err)
	}
	return ids, nil
}

// Save replaces the stored identities in one transaction.
func (s *SQLiteIdentityStore) Save(ctx context.Context, ids []Identity) error {
	if err := validateSnapshot(Snapshot{Version: SnapshotVersion, Devices: ids}); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM device_identities"); err != nil {
		return fmt.Errorf("clearing identities: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO device_identities (id, name, slot_index, updated_at) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id.ID, id.Name, id.Index, now); err != nil {
			return fmt.Errorf("inserting identity %s: %w", id.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identity_snapshots (singleton, version, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(singleton) DO UPDATE SET version = excluded.version, saved_at = excluded.saved_at`,
		SnapshotVersion, now,
	)
	if err != nil {
		return fmt.Errorf("recording snapshot version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing identities: %w", err)
	}
	return nil
}
