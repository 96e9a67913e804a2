// Package state persists the last observation per target URL as a single
// JSON file with atomic replace semantics.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pagewatch/internal/monitor"
	"pagewatch/pkg/logx"
)

// Store maps target URL -> most recent observation on disk.
//
// The file is exclusively owned by the poll loop; no concurrent instance
// of the monitor may run against the same path (single-writer constraint,
// documented rather than enforced by a lock).
type Store struct {
	path string
	log  logx.Logger
}

func New(path string, log logx.Logger) *Store {
	return &Store{path: path, log: log}
}

// Load reads the state file. A missing or corrupt file yields an empty
// map: losing history only means every target re-baselines, which is
// preferable to refusing to start.
func (s *Store) Load() map[string]monitor.Observation {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("state file unreadable; starting empty", logx.String("path", s.path), logx.Err(err))
		}
		return map[string]monitor.Observation{}
	}

	var m map[string]monitor.Observation
	if err := json.Unmarshal(b, &m); err != nil {
		s.log.Warn("state file corrupt; starting empty", logx.String("path", s.path), logx.Err(err))
		return map[string]monitor.Observation{}
	}
	if m == nil {
		m = map[string]monitor.Observation{}
	}
	return m
}

// Save writes the full state via a sibling temp file and an atomic rename,
// so the on-disk file is always either the previous or the new complete
// state.
func (s *Store) Save(m map[string]monitor.Observation) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("state: create dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("state: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("state: rename: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }
