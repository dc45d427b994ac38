// Package localstate keeps the CLI's last known identity on disk.
package localstate

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is what the CLI remembers between runs. A non-empty UserID is the
// "signed in" flag shown before the server confirms it.
type State struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SavedAt      time.Time `json:"saved_at"`
}

func (s State) SignedIn() bool {
	return s.UserID != "" && s.AccessToken != ""
}

type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath is ~/.config/pokedex/state.json, or a file in the working
// directory when no config dir is available.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pokedex-state.json"
	}
	return filepath.Join(dir, "pokedex", "state.json")
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the saved state. A missing file is an empty state.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}

	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, err
	}
	return st, nil
}

func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now().UTC()
	}

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	// replaced atomically
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the saved state. Clearing twice is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
