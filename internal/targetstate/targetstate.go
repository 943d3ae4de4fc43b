// Package targetstate implements the persisted desired posture (C2):
// Secured or Unsecured, written atomically to disk via a temp file plus
// rename so a crash mid-write never leaves a corrupt file behind.
package targetstate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"vpnguard/internal/logging"
)

// State is the user's desired posture.
type State int

const (
	Unsecured State = iota
	Secured
)

func (s State) String() string {
	if s == Secured {
		return "secured"
	}
	return "unsecured"
}

type onDisk struct {
	State State `yaml:"state"`
}

// Store persists State to disk and tracks a "locked" mode used during
// restart (spec.md §4.2): once locked, further writes are refused so the
// restarted process observes the pre-restart intent untouched.
type Store struct {
	mu     sync.Mutex
	path   string
	state  State
	locked bool
}

// Load reads the target state from path. An incomplete or missing file
// is treated as absent and defaults to Unsecured, per spec.md §4.2.
func Load(path string) (*Store, error) {
	s := &Store{path: path, state: Unsecured}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("targetstate: read %s: %w", path, err)
	}

	var d onDisk
	if err := yaml.Unmarshal(data, &d); err != nil {
		logging.Log.Warnf("TargetState", "corrupt state file %s, treating as absent: %v", path, err)
		return s, nil
	}
	s.state = d.State
	return s, nil
}

// Get returns the current in-memory state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set persists state then updates the in-memory value, unless the
// store is locked (see Lock).
func (s *Store) Set(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return nil
	}
	if err := s.persist(state); err != nil {
		return err
	}
	s.state = state
	return nil
}

// Force persists state unconditionally, bypassing the locked flag, for
// a caller that must set the target regardless of the previously
// persisted value. The daemon entrypoint does not call it: auto-connect
// does not force Secured at startup.
func (s *Store) Force(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(state); err != nil {
		return err
	}
	s.state = state
	return nil
}

// Lock prevents further persistence until the process exits. Used by
// PrepareRestart so the restarted process observes the pre-restart
// target state rather than whatever Set calls race in during teardown.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = true
}

// Finalize marks the store unusable for further Set calls. Every Set
// already persists before returning, so there is nothing to flush.
// Idempotent.
func (s *Store) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = true
	return nil
}

func (s *Store) persist(state State) error {
	data, err := yaml.Marshal(onDisk{State: state})
	if err != nil {
		return fmt.Errorf("targetstate: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".targetstate-*.tmp")
	if err != nil {
		return fmt.Errorf("targetstate: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("targetstate: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("targetstate: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("targetstate: rename into place: %w", err)
	}
	return nil
}
