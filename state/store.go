// Package state persists the complete simulation snapshot between runs.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/rustyeddy/simex/sim"
)

// Store writes snapshots to a single JSON file. Saves go through a temp file
// and rename, so a crash mid-write never leaves a truncated snapshot visible
// to Load.
type Store struct {
	path string
}

// NewStore creates the snapshot store, making the parent directory if
// needed.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("state store path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create state dir")
		}
	}
	return &Store{path: path}, nil
}

// Save atomically persists the snapshot.
func (s *Store) Save(snap sim.Snapshot) error {
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist snapshot")
	}
	return nil
}

// Load returns the most recent complete snapshot, or sim.ErrNotFound when
// none has been saved.
func (s *Store) Load() (sim.Snapshot, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sim.Snapshot{}, sim.ErrNotFound
		}
		return sim.Snapshot{}, errors.Wrap(err, "read snapshot")
	}
	if len(payload) == 0 {
		return sim.Snapshot{}, sim.ErrNotFound
	}

	var snap sim.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return sim.Snapshot{}, errors.Wrap(err, "decode snapshot")
	}
	return snap, nil
}

// Clear deletes persisted state. Missing state is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "clear snapshot")
	}
	return nil
}
